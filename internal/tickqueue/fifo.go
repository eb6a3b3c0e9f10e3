// Package tickqueue implements the bounded FIFO shared between the
// producer and consumer loops. It is a direct Go port of the original
// pthread mutex/condition-variable queue (original_source's
// queueInit/queueAdd/queueDel/queue struct): a fixed-capacity ring
// buffer with blocking Enqueue/Dequeue and strict FIFO ordering.
//
// No ecosystem library in the retrieval pack offers a blocking bounded
// queue with this exact "stop on shutdown, never drop" contract, so
// this is built directly on sync.Mutex/sync.Cond — see DESIGN.md.
package tickqueue

import (
	"sync"

	"github.com/azanium/tickstream/internal/trade"
)

// ErrStopped is returned by Enqueue/Dequeue once shutdown has been
// requested and the operation cannot complete.
type ErrStopped struct{}

func (ErrStopped) Error() string { return "tickqueue: stopped" }

// FIFO is a fixed-capacity ring buffer of trade.Trade with blocking
// producer/consumer coordination. The zero value is not usable; use
// New.
type FIFO struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	notEmpty *sync.Cond

	buf   []trade.Trade
	head  int
	tail  int
	size  int

	stopped bool
}

// New creates a FIFO with the given fixed capacity.
func New(capacity int) *FIFO {
	if capacity <= 0 {
		panic("tickqueue: capacity must be positive")
	}
	q := &FIFO{buf: make([]trade.Trade, capacity)}
	q.notFull = sync.NewCond(&q.mu)
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Cap returns the queue's fixed capacity.
func (q *FIFO) Cap() int {
	return len(q.buf)
}

// Len returns the current number of queued trades. Intended for
// metrics sampling; callers must not rely on it for synchronization.
func (q *FIFO) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Enqueue blocks while the queue is full. If Stop has been called it
// returns ErrStopped without enqueuing, whether or not the queue was
// full at the time. On success it wakes one blocked consumer.
func (q *FIFO) Enqueue(t trade.Trade) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.size == len(q.buf) && !q.stopped {
		q.notFull.Wait()
	}
	if q.stopped {
		return ErrStopped{}
	}

	q.buf[q.tail] = t
	q.tail = (q.tail + 1) % len(q.buf)
	q.size++

	q.notEmpty.Signal()
	return nil
}

// Dequeue blocks while the queue is empty. If Stop has been called and
// the queue is still empty it returns ErrStopped. On success it
// removes the head and wakes one blocked producer.
func (q *FIFO) Dequeue() (trade.Trade, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.size == 0 && !q.stopped {
		q.notEmpty.Wait()
	}
	if q.size == 0 && q.stopped {
		return trade.Trade{}, ErrStopped{}
	}

	t := q.buf[q.head]
	q.head = (q.head + 1) % len(q.buf)
	q.size--

	q.notFull.Signal()
	return t, nil
}

// Stop marks the queue as shutting down and wakes every blocked
// producer and consumer. Safe to call more than once.
func (q *FIFO) Stop() {
	q.mu.Lock()
	q.stopped = true
	q.mu.Unlock()

	q.notFull.Broadcast()
	q.notEmpty.Broadcast()
}
