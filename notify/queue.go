package notify

import (
	"context"
	"errors"
	"sync"

	"github.com/kingG4e/web-control-panel/interfaces"
)

// ErrQueueClosed is returned by Dequeue after the queue has been removed
// from the broker.
var ErrQueueClosed = errors.New("notification queue closed")

// Queue is a concurrency-safe FIFO delivery queue for one recipient.
// Enqueue never blocks; a slow consumer only grows the backlog. Within
// one queue, publish order equals consumption order.
type Queue struct {
	mu     sync.Mutex
	items  []interfaces.Notification
	closed bool

	wake chan struct{}
	done chan struct{}
}

func newQueue() *Queue {
	return &Queue{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Enqueue appends a notification. Items enqueued after Close are dropped.
func (q *Queue) Enqueue(n interfaces.Notification) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, n)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Dequeue removes and returns the oldest notification, blocking until one
// is available, the context is done, or the queue is closed.
func (q *Queue) Dequeue(ctx context.Context) (interfaces.Notification, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			n := q.items[0]
			q.items = q.items[1:]
			remaining := len(q.items)
			q.mu.Unlock()

			// Keep other waiters runnable when items remain.
			if remaining > 0 {
				select {
				case q.wake <- struct{}{}:
				default:
				}
			}
			return n, nil
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return interfaces.Notification{}, ErrQueueClosed
		}

		select {
		case <-ctx.Done():
			return interfaces.Notification{}, ctx.Err()
		case <-q.done:
		case <-q.wake:
		}
	}
}

// TryDequeue removes and returns the oldest notification without
// blocking. The second return value reports whether one was available.
func (q *Queue) TryDequeue() (interfaces.Notification, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return interfaces.Notification{}, false
	}
	n := q.items[0]
	q.items = q.items[1:]
	return n, true
}

// Len returns the number of buffered notifications.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// close marks the queue closed and wakes all blocked consumers. Called by
// the broker on Remove.
func (q *Queue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()
	close(q.done)
}
