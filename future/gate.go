package future

import "sync"

// gate is the single-use synchronization primitive described in spec §9:
// every waiter that takes a reference to the current gate under the
// handle's mutex is released exactly when that specific tick completes.
// A gate may be the target of two release calls on the handle's terminal
// tick (the gate observed at Enter and the "retired" gate are the same
// instance in that case), so release is idempotent.
type gate struct {
	once sync.Once
	ch   chan struct{}
}

func newGate() *gate {
	return &gate{ch: make(chan struct{})}
}

func (g *gate) release() {
	g.once.Do(func() { close(g.ch) })
}

func (g *gate) wait() <-chan struct{} {
	return g.ch
}
