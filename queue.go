package gocelery

import "sync"

// outbound is one task message awaiting dispatch.
type outbound struct {
	id     string
	name   string
	args   []interface{}
	kwargs map[string]interface{}
}

// sendQueue is the unbounded FIFO feeding the dispatch loop. Publish
// must never block the caller, so a bounded channel is not enough.
type sendQueue struct {
	mu     sync.Mutex
	items  []*outbound
	signal chan struct{}
	closed bool
}

func newSendQueue() *sendQueue {
	return &sendQueue{signal: make(chan struct{}, 1)}
}

// push appends a message. Returns false once the queue is closed.
func (q *sendQueue) push(m *outbound) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, m)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// pop blocks until a message is available. Returns false once the
// queue is closed and drained.
func (q *sendQueue) pop() (*outbound, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			m := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return m, true
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return nil, false
		}
		<-q.signal
	}
}

func (q *sendQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}
