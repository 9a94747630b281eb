package daemon

import (
	"context"
	"sync"

	"github.com/barryels/Spark/internal/rpc"
)

// call is one request waiting for the control loop.
type call struct {
	ctx context.Context
	req *rpc.Request
	// done receives the response. Nil for fire-and-forget requests.
	done chan rpc.Response[any]
}

// callQueue is a thread-safe FIFO queue for calls.
//
// Sessions enqueue from their own goroutines while the Run loop dequeues.
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop.
type callQueue struct {
	mu     sync.Mutex
	calls  []*call
	closed bool
	signal chan struct{} // Signals call availability (buffered, size 1)
}

func newCallQueue() *callQueue {
	return &callQueue{
		calls:  make([]*call, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds a call to the back of the queue.
// Returns false if the queue is closed.
func (q *callQueue) Enqueue(c *call) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.calls = append(q.calls, c)

	// Non-blocking: the buffer of 1 coalesces multiple signals
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue attempts to dequeue without blocking.
func (q *callQueue) TryDequeue() (*call, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.calls) == 0 {
		return nil, false
	}

	c := q.calls[0]
	q.calls[0] = nil
	if len(q.calls) == 1 {
		q.calls = q.calls[:0]
	} else {
		q.calls = q.calls[1:]
	}
	return c, true
}

// Wait returns a channel that signals when calls may be available.
// It is closed once the queue is closed.
func (q *callQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *callQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.calls)
}

// Closed reports whether Close has been called.
func (q *callQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close stops further enqueues and wakes the loop.
// Calls already queued are still delivered by TryDequeue.
func (q *callQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
