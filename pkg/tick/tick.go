// Package tick provides the deferred "next tick" execution used to coalesce store notifications.
package tick

import "sync"

// Scheduler defers a callback to the end of the current unit of work.
type Scheduler interface {
	Defer(fn func())
}

// Queue is a Scheduler whose deferred callbacks run when Flush is called.
// A host calls Flush at the end of each unit of work (a command, a request, a file event).
type Queue struct {
	mu      sync.Mutex
	pending []func()
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Defer appends fn to the queue.
func (q *Queue) Defer(fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, fn)
}

// Pending reports the number of queued callbacks.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Flush runs queued callbacks until the queue is empty, including callbacks
// deferred by the callbacks themselves. It returns how many ran.
func (q *Queue) Flush() int {
	ran := 0
	for {
		q.mu.Lock()
		batch := q.pending
		q.pending = nil
		q.mu.Unlock()

		if len(batch) == 0 {
			return ran
		}
		for _, fn := range batch {
			fn()
			ran++
		}
	}
}
