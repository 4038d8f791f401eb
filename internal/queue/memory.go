package queue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryQueue implements Queue in process memory. It exists so the worker,
// selector, and services can be exercised without a Redis instance; it
// honors the same ordering and atomicity contract as RedisQueue.
type MemoryQueue struct {
	mu     sync.Mutex
	scores map[uuid.UUID]float64

	// seq breaks ties between enqueues landing on the same clock reading,
	// which the wall clock cannot distinguish under test speeds.
	seq  int64
	seqs map[uuid.UUID]int64
}

// NewMemoryQueue returns an empty in-memory queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		scores: make(map[uuid.UUID]float64),
		seqs:   make(map[uuid.UUID]int64),
	}
}

// Enqueue inserts or re-inserts the task id; last write wins.
func (q *MemoryQueue) Enqueue(ctx context.Context, taskID uuid.UUID, priority int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.seq++
	q.scores[taskID] = Score(priority, time.Now().UTC())
	q.seqs[taskID] = q.seq
	return nil
}

// Dequeue removes and returns the lowest-scored id under a single lock
// acquisition, mirroring the atomicity of ZPOPMIN.
func (q *MemoryQueue) Dequeue(ctx context.Context) (uuid.UUID, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.scores) == 0 {
		return uuid.Nil, ErrEmpty
	}

	var best uuid.UUID
	found := false
	for id := range q.scores {
		if !found || q.less(id, best) {
			best = id
			found = true
		}
	}

	delete(q.scores, best)
	delete(q.seqs, best)
	return best, nil
}

// Peek returns up to n entries ordered ascending by score.
func (q *MemoryQueue) Peek(ctx context.Context, n int) ([]Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	ids := make([]uuid.UUID, 0, len(q.scores))
	for id := range q.scores {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return q.less(ids[i], ids[j]) })

	if n < len(ids) {
		ids = ids[:n]
	}

	entries := make([]Entry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, Entry{TaskID: id, Score: q.scores[id]})
	}
	return entries, nil
}

// Remove deletes the task id if present.
func (q *MemoryQueue) Remove(ctx context.Context, taskID uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.scores, taskID)
	delete(q.seqs, taskID)
	return nil
}

// Length returns the current cardinality.
func (q *MemoryQueue) Length(ctx context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	return int64(len(q.scores)), nil
}

// less orders by score, then by enqueue sequence for same-instant ties.
// Callers must hold q.mu.
func (q *MemoryQueue) less(a, b uuid.UUID) bool {
	if q.scores[a] != q.scores[b] {
		return q.scores[a] < q.scores[b]
	}
	return q.seqs[a] < q.seqs[b]
}
