package gocelery

import "sync"

// readyGate is the one-way NOT_READY to READY latch between connection
// establishment and the dispatch loop. Opening is monotonic: there is
// no transition back, reconnection is owned by the broker and backend
// implementations.
type readyGate struct {
	once sync.Once
	ch   chan struct{}
}

func newReadyGate() *readyGate {
	return &readyGate{ch: make(chan struct{})}
}

// open marks the gate ready. Only the first call has an effect; every
// waiter is released at the same instant.
func (g *readyGate) open() {
	g.once.Do(func() {
		close(g.ch)
	})
}

// ready returns a channel that is closed once the gate is open. Callers
// arriving after that observe an already closed channel and do not wait.
func (g *readyGate) ready() <-chan struct{} {
	return g.ch
}

func (g *readyGate) isOpen() bool {
	select {
	case <-g.ch:
		return true
	default:
		return false
	}
}
