package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisQueue implements Queue on a Redis sorted set. ZPOPMIN gives the
// atomic remove-and-return that the worker concurrency model relies on.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue connects to Redis and returns a queue backed by the sorted
// set stored under key. The connection is verified with a ping so wiring
// errors surface at startup rather than on first enqueue.
func NewRedisQueue(ctx context.Context, addr, password string, db int, key string) (*RedisQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     10,
		MinIdleConns: 2,
		PoolTimeout:  5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisQueue{client: client, key: key}, nil
}

// Enqueue adds the task id to the sorted set. ZADD on an existing member
// replaces its score, which gives the required last-write-wins behavior
// for re-enqueued ids.
func (q *RedisQueue) Enqueue(ctx context.Context, taskID uuid.UUID, priority int) error {
	score := Score(priority, time.Now().UTC())
	if err := q.client.ZAdd(ctx, q.key, redis.Z{Score: score, Member: taskID.String()}).Err(); err != nil {
		return fmt.Errorf("failed to enqueue task %s: %w", taskID, err)
	}
	return nil
}

// Dequeue pops the member with the lowest score. ZPOPMIN is atomic at the
// Redis level, so concurrent workers can never receive the same id.
func (q *RedisQueue) Dequeue(ctx context.Context) (uuid.UUID, error) {
	results, err := q.client.ZPopMin(ctx, q.key, 1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return uuid.Nil, ErrEmpty
		}
		return uuid.Nil, fmt.Errorf("failed to dequeue task: %w", err)
	}
	if len(results) == 0 {
		return uuid.Nil, ErrEmpty
	}

	member, ok := results[0].Member.(string)
	if !ok {
		return uuid.Nil, fmt.Errorf("unexpected member type %T in queue", results[0].Member)
	}

	taskID, err := uuid.Parse(member)
	if err != nil {
		return uuid.Nil, fmt.Errorf("malformed task id %q in queue: %w", member, err)
	}

	return taskID, nil
}

// Peek returns up to n entries ordered ascending by score without
// removing them.
func (q *RedisQueue) Peek(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}

	results, err := q.client.ZRangeWithScores(ctx, q.key, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to peek queue: %w", err)
	}

	entries := make([]Entry, 0, len(results))
	for _, z := range results {
		member, ok := z.Member.(string)
		if !ok {
			continue
		}
		taskID, err := uuid.Parse(member)
		if err != nil {
			continue
		}
		entries = append(entries, Entry{TaskID: taskID, Score: z.Score})
	}

	return entries, nil
}

// Remove deletes the task id from the sorted set if present.
func (q *RedisQueue) Remove(ctx context.Context, taskID uuid.UUID) error {
	if err := q.client.ZRem(ctx, q.key, taskID.String()).Err(); err != nil {
		return fmt.Errorf("failed to remove task %s from queue: %w", taskID, err)
	}
	return nil
}

// Length returns the cardinality of the sorted set.
func (q *RedisQueue) Length(ctx context.Context) (int64, error) {
	length, err := q.client.ZCard(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue length: %w", err)
	}
	return length, nil
}

// Close releases the underlying Redis client.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}
