package scheduler

import "sync"

// Queue holds the pending invokes of a single function in submission order.
// It is unbounded: a wedged function process makes the queue grow with the
// callers, not the scheduler.
type Queue struct {
	mu    sync.Mutex
	items []*Invoke
}

func NewQueue() *Queue {
	return &Queue{}
}

// Push appends an invoke to the tail of the queue.
func (q *Queue) Push(inv *Invoke) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, inv)
}

// Pop removes and returns the oldest queued invoke, or nil if the queue is
// empty. It never blocks waiting for work.
func (q *Queue) Pop() *Invoke {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	inv := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return inv
}

// Len reports how many invokes are currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
