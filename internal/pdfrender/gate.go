package pdfrender

import (
	"runtime"
	"sync"
)

// fallbackMaxActive is used when the runtime cannot report usable CPUs.
const fallbackMaxActive = 4

// Gate is a counting admission control that bounds how many conversion tasks
// are active at once. A single mutex and condition variable guard the active
// counter for Acquire, Release and Drain alike.
type Gate struct {
	mu        sync.Mutex
	cond      *sync.Cond
	maxActive int
	active    int
	peak      int
}

// NewGate creates a gate admitting at most maxActive concurrent tasks.
// Non-positive values are replaced by ResolveMaxActive(0).
func NewGate(maxActive int) *Gate {
	if maxActive < 1 {
		maxActive = ResolveMaxActive(0)
	}

	gate := &Gate{maxActive: maxActive}
	gate.cond = sync.NewCond(&gate.mu)

	return gate
}

// ResolveMaxActive returns workers when positive, otherwise the number of
// usable execution units, falling back to 4.
func ResolveMaxActive(workers int) int {
	if workers > 0 {
		return workers
	}

	available := runtime.GOMAXPROCS(0)
	if available < 1 {
		return fallbackMaxActive
	}

	return available
}

// Acquire blocks until a slot is free and takes it.
func (gate *Gate) Acquire() {
	gate.mu.Lock()
	defer gate.mu.Unlock()

	for gate.active >= gate.maxActive {
		gate.cond.Wait()
	}

	gate.active++
	if gate.active > gate.peak {
		gate.peak = gate.active
	}
}

// Release frees one slot. Releasing without a matching Acquire panics.
func (gate *Gate) Release() {
	gate.mu.Lock()
	defer gate.mu.Unlock()

	if gate.active == 0 {
		panic("pdfrender: gate released more times than acquired")
	}

	gate.active--

	// One slot opened, so one waiter suffices. At zero a drain waiter and a
	// producer may both be parked.
	if gate.active == 0 {
		gate.cond.Broadcast()

		return
	}

	gate.cond.Signal()
}

// Drain blocks until no task holds a slot. Callers must guarantee no further
// Acquire calls happen concurrently.
func (gate *Gate) Drain() {
	gate.mu.Lock()
	defer gate.mu.Unlock()

	for gate.active > 0 {
		gate.cond.Wait()
	}
}

// Active returns the number of slots currently held.
func (gate *Gate) Active() int {
	gate.mu.Lock()
	defer gate.mu.Unlock()

	return gate.active
}

// Peak returns the highest number of slots held at once.
func (gate *Gate) Peak() int {
	gate.mu.Lock()
	defer gate.mu.Unlock()

	return gate.peak
}

// Capacity returns the configured maximum.
func (gate *Gate) Capacity() int {
	return gate.maxActive
}
