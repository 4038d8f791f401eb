// Package queue implements the durable priority queue of task identifiers.
// The queue is a score-ordered multiset: lower score dequeues first. Scores
// fold the task priority into an integer band and the enqueue timestamp
// into a small fraction, so higher-priority tasks always win and equal
// priorities drain in FIFO order.
//
// The queue is a volatile index over task rows, not a source of truth;
// losing its contents is recoverable by rescanning pending tasks.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrEmpty is returned by Dequeue when the queue holds no tasks.
var ErrEmpty = errors.New("queue is empty")

// Entry is a queued task identifier with its raw ordering score,
// as returned by Peek for operational inspection.
type Entry struct {
	TaskID uuid.UUID `json:"task_id"`
	Score  float64   `json:"score"`
}

// Queue is a durable, score-ordered multiset of task identifiers.
//
// Dequeue is the sole concurrency-control primitive preventing two workers
// from picking up the same task: implementations must remove-and-return
// atomically, never as a read-then-delete pair.
type Queue interface {
	// Enqueue inserts or re-inserts a task id with the given priority
	// (1-5, 5 highest). Re-enqueueing an id already present updates its
	// score; last write wins.
	Enqueue(ctx context.Context, taskID uuid.UUID, priority int) error

	// Dequeue atomically removes and returns the single lowest-scored id.
	// Returns ErrEmpty if the queue holds no tasks.
	Dequeue(ctx context.Context) (uuid.UUID, error)

	// Peek returns up to n entries ordered ascending by score without
	// removing them.
	Peek(ctx context.Context, n int) ([]Entry, error)

	// Remove unconditionally removes a task id if present; no-op otherwise.
	Remove(ctx context.Context, taskID uuid.UUID) error

	// Length returns the current number of queued tasks.
	Length(ctx context.Context) (int64, error)
}

// timestampDivisor scales the enqueue time (in microseconds) far below the
// integer priority bands. A float64 carries 52 mantissa bits, so the
// scaled fraction preserves microsecond FIFO ordering without ever
// overturning the priority band.
const timestampDivisor = 1e15

// Score computes the ordering score for a task: (10 - priority) plus a
// fractional timestamp. Priority 5 maps to band 5, priority 1 to band 9,
// so higher priorities sort first; within a band, earlier enqueues win.
func Score(priority int, now time.Time) float64 {
	return float64(10-priority) + float64(now.UnixMicro())/timestampDivisor
}
