package events

import (
	"sync"
)

// Queue is an unbounded asynchronous Publisher. Events are handed to the
// underlying Publisher in order on a dedicated goroutine, so a handler may
// call back into whatever published the event without deadlocking.
type Queue struct {
	next Publisher

	mu      sync.Mutex
	cond    *sync.Cond
	pending []*Event
	busy    bool
	closed  bool
	done    chan struct{}
}

// NewQueue starts a queue that forwards to next.
func NewQueue(next Publisher) *Queue {
	q := &Queue{next: next, done: make(chan struct{})}
	q.cond = sync.NewCond(&q.mu)
	go q.run()
	return q
}

// Publish enqueues ev. Events published after Close are dropped.
func (q *Queue) Publish(ev *Event) {
	if ev == nil {
		return
	}
	q.mu.Lock()
	if !q.closed {
		q.pending = append(q.pending, ev)
		q.cond.Broadcast()
	}
	q.mu.Unlock()
}

// Flush blocks until every event enqueued so far has been delivered.
func (q *Queue) Flush() {
	q.mu.Lock()
	for (len(q.pending) > 0 || q.busy) && !q.closed {
		q.cond.Wait()
	}
	q.mu.Unlock()
}

// Close delivers what is already queued and stops the worker.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
	<-q.done
}

func (q *Queue) run() {
	defer close(q.done)

	q.mu.Lock()
	for {
		for len(q.pending) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.pending) == 0 && q.closed {
			q.mu.Unlock()
			return
		}

		batch := q.pending
		q.pending = nil
		q.busy = true
		q.mu.Unlock()

		for _, ev := range batch {
			q.next.Publish(ev)
		}

		q.mu.Lock()
		q.busy = false
		q.cond.Broadcast()
	}
}
