package resource

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestCpuHandleGatesConcurrency(t *testing.T) {
	m := NewCPUManager(3)
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	handle := m.Cpus(3)

	var inFlight, maxInFlight int
	var mu sync.Mutex
	track := func(delta int) {
		mu.Lock()
		inFlight += delta
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()
	}

	var outcomes []*Outcome
	for i := 0; i < 6; i++ {
		o, err := handle.Run(context.Background(), func(ctx context.Context) (any, error) {
			track(1)
			time.Sleep(30 * time.Millisecond)
			track(-1)
			return nil, nil
		})
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		outcomes = append(outcomes, o)
	}
	for _, o := range outcomes {
		if _, err := o.Wait(context.Background()); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if maxInFlight > 3 {
		t.Fatalf("want at most 3 concurrent closures, observed %d", maxInFlight)
	}
}

func TestCpuHandleFIFOOrder(t *testing.T) {
	m := NewCPUManager(1)
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	handle := m.Cpus(1)

	const n = 10
	var mu sync.Mutex
	var started []int
	var outcomes [n]*Outcome
	for i := 0; i < n; i++ {
		i := i
		o, err := handle.Run(context.Background(), func(ctx context.Context) (any, error) {
			mu.Lock()
			started = append(started, i)
			mu.Unlock()
			return i, nil
		})
		if err != nil {
			t.Fatalf("Run %d: %v", i, err)
		}
		outcomes[i] = o
		// Wait for this job to finish before submitting the next, since
		// width is 1 — forces a strict, easily asserted order.
		if _, err := o.Wait(context.Background()); err != nil {
			t.Fatalf("Wait %d: %v", i, err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	for i, got := range started {
		if got != i {
			t.Fatalf("want submission order %d, got %v", i, started)
		}
	}
}

func TestCpuHandleDiscardsResultWithoutWait(t *testing.T) {
	m := NewCPUManager(2)
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	handle := m.Cpus(2)

	done := make(chan struct{})
	if _, err := handle.Run(context.Background(), func(ctx context.Context) (any, error) {
		close(done)
		return 1, nil
	}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("closure never ran despite its Outcome being discarded")
	}
}
