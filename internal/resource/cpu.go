package resource

import (
	"context"
	"fmt"
	"sync"
)

// CPUManager runs a pool of k worker goroutines, one per advertised cpu
// (§4.4). Cpus carves a CpuHandle bound to a subset of that pool's width
// for one call's declared requirement.
type CPUManager struct {
	workers int
	jobs    chan job
	started chan struct{}
}

// NewCPUManager builds a manager for a node advertising workers cpus.
// Initialize must be called once before any CpuHandle.Run.
func NewCPUManager(workers int) *CPUManager {
	if workers <= 0 {
		panic(fmt.Sprintf("resource: NewCPUManager: workers must be positive, got %d", workers))
	}
	return &CPUManager{
		workers: workers,
		jobs:    make(chan job),
		started: make(chan struct{}),
	}
}

// Initialize starts the worker pool. Workers drain jobs in the order they
// are handed off, giving FIFO-among-waiters dispatch (§8 property 6).
func (m *CPUManager) Initialize(ctx context.Context) error {
	for i := 0; i < m.workers; i++ {
		go m.work(ctx)
	}
	close(m.started)
	return nil
}

func (m *CPUManager) work(ctx context.Context) {
	for {
		select {
		case j, ok := <-m.jobs:
			if !ok {
				return
			}
			v, err := j.fn(ctx)
			j.outcome.mu.Lock()
			j.outcome.value, j.outcome.err = v, err
			close(j.outcome.done)
			j.outcome.mu.Unlock()
			<-j.sem // release the permit only once the closure has finished
		case <-ctx.Done():
			return
		}
	}
}

// Cpus returns a handle bound to n of this pool's permits — the
// "cpus::<N>() -> CpuHandle" of §4.4. n is typically the call's declared
// cpus requirement; it need not equal the pool's total width.
func (m *CPUManager) Cpus(n int) *CpuHandle {
	if n <= 0 {
		panic(fmt.Sprintf("resource: Cpus: n must be positive, got %d", n))
	}
	return &CpuHandle{sem: make(chan struct{}, n), jobs: m.jobs}
}

// Closure is the blocking or CPU-bound user work handed to a CpuHandle.
type Closure func(ctx context.Context) (any, error)

type job struct {
	fn      Closure
	sem     chan struct{}
	outcome *Outcome
}

// CpuHandle gates concurrent execution of Closures to its semaphore
// width. Multiple handles may draw workers from the same underlying
// CPUManager pool.
type CpuHandle struct {
	sem chan struct{}
	jobs chan job
}

// Run acquires a permit and hands fn to a pool worker, returning once fn
// has been queued (not once it has run) — the "future<future<T>>" shape
// of §4.4: Run is the outer future, the returned Outcome the inner one.
// Dropping the returned Outcome without calling Wait does not stop fn
// from running; its result is simply discarded (§4.4 cancellation).
func (h *CpuHandle) Run(ctx context.Context, fn Closure) (*Outcome, error) {
	select {
	case h.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	o := &Outcome{done: make(chan struct{})}
	j := job{fn: fn, sem: h.sem, outcome: o}
	select {
	case h.jobs <- j:
		return o, nil
	case <-ctx.Done():
		<-h.sem // release the permit we grabbed but never handed off
		return nil, ctx.Err()
	}
}

// Outcome is the inner future returned by CpuHandle.Run: the result of
// one queued Closure, available once Wait unblocks.
type Outcome struct {
	mu    sync.Mutex
	done  chan struct{}
	value any
	err   error
}

// Wait blocks until the closure has finished executing on a worker.
func (o *Outcome) Wait(ctx context.Context) (any, error) {
	select {
	case <-o.done:
		return o.value, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
