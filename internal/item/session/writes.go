package session

import (
	"context"
	"sync"
)

type write struct {
	id     string
	result chan<- error
	op     func(ctx context.Context) error
}

// writeQueue is an unbounded FIFO so the loop never blocks on persistence
type writeQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []write
	closed bool
}

func newWriteQueue() *writeQueue {
	q := &writeQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *writeQueue) push(w write) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items = append(q.items, w)
	q.cond.Signal()
}

// pop blocks until a write is available. It drains the queue after close
// and reports false once empty.
func (q *writeQueue) pop() (write, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return write{}, false
	}
	w := q.items[0]
	q.items[0] = write{}
	q.items = q.items[1:]
	return w, true
}

func (q *writeQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}
