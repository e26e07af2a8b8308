package worker

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueStopped is returned when enqueueing after the pool has shut down.
var ErrQueueStopped = errors.New("worker: queue stopped")

// queue is a FIFO of deck ids. A deck that is already pending or being
// processed is not queued a second time.
type queue struct {
	mu      sync.Mutex
	pending []string
	known   map[string]struct{} // pending or active
	signal  chan struct{}
	stopped bool
}

func newQueue() *queue {
	return &queue{
		known:  make(map[string]struct{}),
		signal: make(chan struct{}, 1),
	}
}

// push adds id and reports whether it was newly queued.
func (q *queue) push(id string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return false, ErrQueueStopped
	}
	if _, ok := q.known[id]; ok {
		return false, nil
	}
	q.known[id] = struct{}{}
	q.pending = append(q.pending, id)
	q.notify()
	return true, nil
}

// notify wakes one waiting worker. Callers hold mu.
func (q *queue) notify() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// pop blocks until an id is available or ctx is done.
func (q *queue) pop(ctx context.Context) (string, bool) {
	for {
		q.mu.Lock()
		if len(q.pending) > 0 {
			id := q.pending[0]
			q.pending = q.pending[1:]
			if len(q.pending) > 0 {
				q.notify()
			}
			q.mu.Unlock()
			return id, true
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return "", false
		case <-q.signal:
		}
	}
}

// done releases id so it can be queued again.
func (q *queue) done(id string) {
	q.mu.Lock()
	delete(q.known, id)
	q.mu.Unlock()
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *queue) stop() {
	q.mu.Lock()
	q.stopped = true
	q.mu.Unlock()
}
