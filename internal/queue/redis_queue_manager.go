package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taskforge/taskforge/internal/models"
)

const (
	readyKey      = "scheduler:ready"
	delayedKey    = "scheduler:delayed"
	processingKey = "scheduler:processing"
	deadLetterKey = "scheduler:deadletter"
)

// RedisManager implements Manager on Redis sorted sets plus one hash for the
// processing index. ZPOPMIN provides the atomic pop that establishes job
// ownership across workers.
type RedisManager struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisManager(client *redis.Client) *RedisManager {
	return &RedisManager{client: client, now: time.Now}
}

// readyScore encodes priority by adding a fixed per-band offset to the
// enqueue timestamp. Pop-min then yields FIFO within a band and strict
// priority across bands for backlogs shorter than the inter-band gap.
func readyScore(at time.Time, priority models.Priority) float64 {
	return float64(at.UnixMilli() + priority.OffsetMillis())
}

func delayedMember(jobID string, priority models.Priority) string {
	return jobID + ":" + priority.String()
}

func parseDelayedMember(member string) (jobID string, priority models.Priority) {
	idx := strings.LastIndex(member, ":")
	if idx < 0 {
		return member, models.PriorityNormal
	}
	jobID = member[:idx]
	p, err := models.ParsePriority(member[idx+1:])
	if err != nil {
		p = models.PriorityNormal
	}
	return jobID, p
}

func (m *RedisManager) Enqueue(ctx context.Context, jobID string, priority models.Priority) error {
	err := m.client.ZAdd(ctx, readyKey, redis.Z{
		Score:  readyScore(m.now(), priority),
		Member: jobID,
	}).Err()
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", jobID, err)
	}
	return nil
}

func (m *RedisManager) EnqueueDelayed(ctx context.Context, jobID string, fireAt time.Time, priority models.Priority) error {
	err := m.client.ZAdd(ctx, delayedKey, redis.Z{
		Score:  float64(fireAt.UnixMilli()),
		Member: delayedMember(jobID, priority),
	}).Err()
	if err != nil {
		return fmt.Errorf("enqueue delayed %s: %w", jobID, err)
	}
	return nil
}

func (m *RedisManager) Dequeue(ctx context.Context) (string, bool, error) {
	popped, err := m.client.ZPopMin(ctx, readyKey, 1).Result()
	if err != nil {
		return "", false, fmt.Errorf("dequeue: %w", err)
	}
	if len(popped) == 0 {
		return "", false, nil
	}
	jobID, ok := popped[0].Member.(string)
	if !ok {
		return "", false, fmt.Errorf("dequeue: unexpected member type %T", popped[0].Member)
	}
	return jobID, true, nil
}

func (m *RedisManager) PromoteDelayed(ctx context.Context) (int, error) {
	now := m.now()
	due, err := m.client.ZRangeByScore(ctx, delayedKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", now.UnixMilli()),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("promote delayed: %w", err)
	}

	promoted := 0
	for _, member := range due {
		// Add-first so a crash between the two writes leaves the member in
		// both indexes rather than in neither; the next pass converges. NX
		// keeps the first promoter's score, and ZREM succeeds for exactly
		// one of any set of concurrent promoters.
		jobID, priority := parseDelayedMember(member)
		err = m.client.ZAddNX(ctx, readyKey, redis.Z{
			Score:  readyScore(now, priority),
			Member: jobID,
		}).Err()
		if err != nil {
			return promoted, fmt.Errorf("promote delayed: ready add %s: %w", jobID, err)
		}
		removed, err := m.client.ZRem(ctx, delayedKey, member).Result()
		if err != nil {
			return promoted, fmt.Errorf("promote delayed: remove %q: %w", member, err)
		}
		if removed == 1 {
			promoted++
		}
	}
	return promoted, nil
}

func (m *RedisManager) MarkProcessing(ctx context.Context, jobID, workerID string) error {
	entry, err := json.Marshal(ProcessingEntry{WorkerID: workerID, StartedAt: m.now().UTC()})
	if err != nil {
		return fmt.Errorf("mark processing %s: %w", jobID, err)
	}
	if err := m.client.HSet(ctx, processingKey, jobID, entry).Err(); err != nil {
		return fmt.Errorf("mark processing %s: %w", jobID, err)
	}
	return nil
}

func (m *RedisManager) MarkCompleted(ctx context.Context, jobID string) error {
	if err := m.client.HDel(ctx, processingKey, jobID).Err(); err != nil {
		return fmt.Errorf("mark completed %s: %w", jobID, err)
	}
	return nil
}

func (m *RedisManager) Requeue(ctx context.Context, jobID string, priority models.Priority, delay time.Duration) error {
	if err := m.client.HDel(ctx, processingKey, jobID).Err(); err != nil {
		return fmt.Errorf("requeue %s: %w", jobID, err)
	}
	return m.EnqueueDelayed(ctx, jobID, m.now().Add(delay), priority)
}

func (m *RedisManager) MoveToDLQ(ctx context.Context, jobID, reason string) error {
	failedAt := m.now()
	member := fmt.Sprintf("%s/%s/%d", jobID, reason, failedAt.UnixMilli())
	err := m.client.ZAdd(ctx, deadLetterKey, redis.Z{
		Score:  float64(failedAt.UnixMilli()),
		Member: member,
	}).Err()
	if err != nil {
		return fmt.Errorf("move to dlq %s: %w", jobID, err)
	}
	if err := m.client.HDel(ctx, processingKey, jobID).Err(); err != nil {
		return fmt.Errorf("move to dlq %s: %w", jobID, err)
	}
	return nil
}

func (m *RedisManager) RemoveFromDLQ(ctx context.Context, jobID string) error {
	members, err := m.client.ZRange(ctx, deadLetterKey, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("remove from dlq %s: %w", jobID, err)
	}
	prefix := jobID + "/"
	for _, member := range members {
		if !strings.HasPrefix(member, prefix) {
			continue
		}
		if err := m.client.ZRem(ctx, deadLetterKey, member).Err(); err != nil {
			return fmt.Errorf("remove from dlq %s: %w", jobID, err)
		}
	}
	return nil
}

func (m *RedisManager) Stats(ctx context.Context) (*Stats, error) {
	ready, err := m.client.ZCard(ctx, readyKey).Result()
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	delayed, err := m.client.ZCard(ctx, delayedKey).Result()
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	processing, err := m.client.HLen(ctx, processingKey).Result()
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	deadLetter, err := m.client.ZCard(ctx, deadLetterKey).Result()
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	return &Stats{
		Ready:      ready,
		Delayed:    delayed,
		Processing: processing,
		DeadLetter: deadLetter,
	}, nil
}

func (m *RedisManager) Ping(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}
