// Package queue provides the bounded play queue feeding the wall the next source.
package queue

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/osa030/videowall/internal/domain/source"
)

// MaxSize is the hard cap on pending items.
const MaxSize = 15

// Queue is an ordered, bounded pending list plus a currently playing slot.
// Invalid ids or indices are no-ops.
type Queue struct {
	mu sync.RWMutex

	items   []source.QueueItem
	current *source.QueueItem

	maxSize int
	newID   func() string
	now     func() time.Time
}

// New creates an empty queue capped at MaxSize.
func New() *Queue {
	return &Queue{
		items:   make([]source.QueueItem, 0, MaxSize),
		maxSize: MaxSize,
		newID:   func() string { return uuid.New().String() },
		now:     time.Now,
	}
}

// Enqueue appends src with a fresh id and timestamp.
// Returns false without mutating the queue when it is full.
func (q *Queue) Enqueue(src source.Source) (source.QueueItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) >= q.maxSize {
		return source.QueueItem{}, false
	}

	item := source.QueueItem{
		ID:         q.newID(),
		Source:     src,
		EnqueuedAt: q.now(),
	}
	q.items = append(q.items, item)
	return item, true
}

// Remove removes the item with the given id.
func (q *Queue) Remove(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := q.indexLocked(id)
	if i < 0 {
		return
	}
	q.items = append(q.items[:i], q.items[i+1:]...)
}

// MoveUp swaps the item with its predecessor. No-op at the head.
func (q *Queue) MoveUp(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := q.indexLocked(id)
	if i <= 0 {
		return
	}
	q.items[i-1], q.items[i] = q.items[i], q.items[i-1]
}

// MoveDown swaps the item with its successor. No-op at the tail.
func (q *Queue) MoveDown(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := q.indexLocked(id)
	if i < 0 || i >= len(q.items)-1 {
		return
	}
	q.items[i], q.items[i+1] = q.items[i+1], q.items[i]
}

// Reorder moves the item at from to position to, shifting the items between.
func (q *Queue) Reorder(from, to int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.items)
	if from == to || from < 0 || to < 0 || from >= n || to >= n {
		return
	}

	item := q.items[from]
	if from < to {
		copy(q.items[from:to], q.items[from+1:to+1])
	} else {
		copy(q.items[to+1:from+1], q.items[to:from])
	}
	q.items[to] = item
}

// DequeueNext removes the head and makes it the currently playing item.
// Returns false and leaves the current item untouched when the queue is empty.
func (q *Queue) DequeueNext() (source.QueueItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return source.QueueItem{}, false
	}

	item := q.items[0]
	q.items = append(q.items[:0], q.items[1:]...)
	q.current = &item
	return item, true
}

// CurrentlyPlaying returns the last dequeued item.
func (q *Queue) CurrentlyPlaying() (source.QueueItem, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.current == nil {
		return source.QueueItem{}, false
	}
	return *q.current, true
}

// ClearCurrent forgets the currently playing item.
func (q *Queue) ClearCurrent() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.current = nil
}

// Items returns a copy of the pending items in order.
func (q *Queue) Items() []source.QueueItem {
	q.mu.RLock()
	defer q.mu.RUnlock()

	result := make([]source.QueueItem, len(q.items))
	copy(result, q.items)
	return result
}

// Len returns the number of pending items.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.items)
}

// IsEmpty returns true if nothing is pending.
func (q *Queue) IsEmpty() bool {
	return q.Len() == 0
}

// Contains reports whether a pending item points at the same media as src.
func (q *Queue) Contains(src source.Source) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	for _, it := range q.items {
		if it.Source.SameAs(src) {
			return true
		}
	}
	return false
}

func (q *Queue) indexLocked(id string) int {
	for i, it := range q.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}
