package lock

// Lock ids used with the advisory-lock manager. Each long-running role that
// must be mutually exclusive across processes owns one id.
const (
	MigrationLock = iota
	ScheduleExecutorLock
)

type DistributedLockManager interface {
	// Acquire blocks until the lock is held.
	Acquire(lockID int) error

	// TryAcquire returns false without blocking when another process holds
	// the lock.
	TryAcquire(lockID int) (bool, error)

	Release(lockID int) error
}
