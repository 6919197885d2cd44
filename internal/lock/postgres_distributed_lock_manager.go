package lock

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// PostgresDistributedLockManager backs the lock ids with Postgres advisory
// locks. Advisory locks are session-scoped, so each held lock pins its own
// *sql.Conn: acquiring and releasing through the shared pool would route the
// two statements to different connections, leaking the lock on the acquiring
// session while pg_advisory_unlock returns false elsewhere.
type PostgresDistributedLockManager struct {
	db *sql.DB

	mu   sync.Mutex
	held map[int]*sql.Conn
}

func NewPostgresDistributedLockManager(db *sql.DB) *PostgresDistributedLockManager {
	return &PostgresDistributedLockManager{
		db:   db,
		held: make(map[int]*sql.Conn),
	}
}

func (l *PostgresDistributedLockManager) Acquire(lockID int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := l.reserve(ctx, lockID)
	if err != nil {
		return err
	}
	if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock($1)", lockID); err != nil {
		l.unreserve(lockID, conn)
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	return nil
}

func (l *PostgresDistributedLockManager) TryAcquire(lockID int) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := l.reserve(ctx, lockID)
	if err != nil {
		return false, err
	}
	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", lockID).Scan(&acquired); err != nil {
		l.unreserve(lockID, conn)
		return false, fmt.Errorf("failed to try lock: %w", err)
	}
	if !acquired {
		l.unreserve(lockID, conn)
		return false, nil
	}
	return true, nil
}

func (l *PostgresDistributedLockManager) Release(lockID int) error {
	l.mu.Lock()
	conn, ok := l.held[lockID]
	delete(l.held, lockID)
	l.mu.Unlock()
	if !ok {
		return fmt.Errorf("failed to release lock: lock %d is not held", lockID)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Closing the connection releases the session lock even if the unlock
	// statement fails.
	_, err := conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", lockID)
	conn.Close()
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// reserve pins a pool connection under the lock id before any SQL runs, so
// two local callers can never race the same id onto two sessions. Holding an
// id this process already holds is rejected rather than deadlocking.
func (l *PostgresDistributedLockManager) reserve(ctx context.Context, lockID int) (*sql.Conn, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}

	l.mu.Lock()
	if _, taken := l.held[lockID]; taken {
		l.mu.Unlock()
		conn.Close()
		return nil, fmt.Errorf("failed to acquire lock: lock %d is already held", lockID)
	}
	l.held[lockID] = conn
	l.mu.Unlock()
	return conn, nil
}

func (l *PostgresDistributedLockManager) unreserve(lockID int, conn *sql.Conn) {
	l.mu.Lock()
	delete(l.held, lockID)
	l.mu.Unlock()
	conn.Close()
}
