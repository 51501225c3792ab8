package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/domainwatch/internal/core/domain"
)

const (
	dueKey     = "revalidation:due"
	payloadKey = "revalidation:payload"
)

func statusKey(taskID string) string {
	return fmt.Sprintf("task_status:%s", taskID)
}

// Task is one claimed queue entry.
type Task struct {
	Key     string
	Payload []byte
}

// TaskQueue is the durable revalidation queue on Redis: a sorted set scored
// by due time, with payloads in a companion hash. The member IS the task
// key, so resubmitting a (domain, section) pair moves its due time instead
// of creating a duplicate.
type TaskQueue struct {
	rdb       *redis.Client
	statusTTL time.Duration
}

// NewTaskQueue creates a task queue on the shared client.
func NewTaskQueue(client *Client) *TaskQueue {
	return &TaskQueue{rdb: client.rdb, statusTTL: 24 * time.Hour}
}

// Submit enqueues (or re-times) the task under its deterministic key.
func (q *TaskQueue) Submit(ctx context.Context, key string, payload []byte, notBefore time.Time) (bool, error) {
	pipe := q.rdb.TxPipeline()
	pipe.ZAdd(ctx, dueKey, redis.Z{
		Score:  float64(notBefore.UnixMilli()),
		Member: key,
	})
	pipe.HSet(ctx, payloadKey, key, payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("queue submit failed: %w", err)
	}
	return true, nil
}

// Due claims up to limit tasks whose due time has passed. A task counts as
// claimed only when this instance's ZRem removes it, so concurrent pollers
// never both take the same entry.
func (q *TaskQueue) Due(ctx context.Context, now time.Time, limit int64) ([]Task, error) {
	members, err := q.rdb.ZRangeByScore(ctx, dueKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%d", now.UnixMilli()),
		Count: limit,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("zrangebyscore failed: %w", err)
	}

	tasks := make([]Task, 0, len(members))
	for _, member := range members {
		removed, err := q.rdb.ZRem(ctx, dueKey, member).Result()
		if err != nil {
			return tasks, fmt.Errorf("zrem failed: %w", err)
		}
		if removed == 0 {
			// Another instance claimed it first.
			continue
		}

		payload, err := q.rdb.HGet(ctx, payloadKey, member).Bytes()
		if err == redis.Nil {
			payload = nil
		} else if err != nil {
			return tasks, fmt.Errorf("hget payload failed: %w", err)
		}
		q.rdb.HDel(ctx, payloadKey, member)

		tasks = append(tasks, Task{Key: member, Payload: payload})
	}
	return tasks, nil
}

// Pending returns the number of queued tasks.
func (q *TaskQueue) Pending(ctx context.Context) (int64, error) {
	n, err := q.rdb.ZCard(ctx, dueKey).Result()
	if err != nil {
		return 0, fmt.Errorf("zcard failed: %w", err)
	}
	return n, nil
}

// SetStatus records a task's lifecycle state with a bounded TTL.
func (q *TaskQueue) SetStatus(ctx context.Context, taskID string, status domain.TaskStatus) error {
	if err := q.rdb.Set(ctx, statusKey(taskID), string(status), q.statusTTL).Err(); err != nil {
		return fmt.Errorf("set status failed: %w", err)
	}
	return nil
}

// GetStatus reads a task's lifecycle state. Expired or never-written ids
// report TaskUnknown.
func (q *TaskQueue) GetStatus(ctx context.Context, taskID string) (domain.TaskStatus, error) {
	val, err := q.rdb.Get(ctx, statusKey(taskID)).Result()
	if err == redis.Nil {
		return domain.TaskUnknown, nil
	}
	if err != nil {
		return domain.TaskUnknown, fmt.Errorf("get status failed: %w", err)
	}
	return domain.TaskStatus(val), nil
}
