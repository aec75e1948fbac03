// Package notify implements in-process notification delivery: a broker
// holding per-recipient FIFO queues created and destroyed per active
// session, plus an optional SMTP mailer for provisioning outcomes.
//
// The broker is the only structure shared across request workers without
// a surrounding transaction; a single mutex guards registry mutation
// while individual queue operations take only the queue's own lock.
package notify

import (
	"log/slog"
	"sync"

	"github.com/kingG4e/web-control-panel/interfaces"
)

// Broker maps recipient user ids to their active delivery queues.
type Broker struct {
	mu     sync.Mutex
	queues map[uint]*Queue
	log    *slog.Logger
}

// NewBroker creates an empty notification broker.
func NewBroker(log *slog.Logger) *Broker {
	return &Broker{
		queues: make(map[uint]*Queue),
		log:    log,
	}
}

// Acquire returns the delivery queue for a user, creating it if absent.
// Acquire is idempotent: concurrent sessions of the same user share one
// queue.
func (b *Broker) Acquire(userID uint) *Queue {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.queues[userID]
	if !ok {
		q = newQueue()
		b.queues[userID] = q
		b.log.Debug("Notification queue created", slog.Uint64("userID", uint64(userID)))
	}
	return q
}

// Remove deletes a user's queue, used on session end. After removal,
// in-flight publishes to that id are dropped, not buffered. Blocked
// consumers are woken with ErrQueueClosed.
func (b *Broker) Remove(userID uint) {
	b.mu.Lock()
	q, ok := b.queues[userID]
	delete(b.queues, userID)
	b.mu.Unlock()

	if ok {
		q.close()
		b.log.Debug("Notification queue removed", slog.Uint64("userID", uint64(userID)))
	}
}

// Publish delivers a notification. A targeted notification is enqueued
// to the recipient's queue if one exists; on a miss, and for untargeted
// notifications, the global flag fans out to every currently registered
// queue. Notifications with no matching queue are dropped. Publish never
// fails and never blocks on a slow consumer beyond the enqueue itself.
func (b *Broker) Publish(n interfaces.Notification) {
	b.mu.Lock()
	var targets []*Queue
	if q, ok := b.queues[n.UserID]; n.UserID != 0 && ok {
		targets = []*Queue{q}
	} else if n.Global {
		targets = make([]*Queue, 0, len(b.queues))
		for _, q := range b.queues {
			targets = append(targets, q)
		}
	}
	b.mu.Unlock()

	if len(targets) == 0 {
		b.log.Debug("Notification dropped: no registered recipient",
			slog.String("title", n.Title),
			slog.Uint64("userID", uint64(n.UserID)))
		return
	}

	for _, q := range targets {
		q.Enqueue(n)
	}
}

// ActiveQueues returns the number of registered queues, for diagnostics.
func (b *Broker) ActiveQueues() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queues)
}
