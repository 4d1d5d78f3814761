package procs

import (
	"context"
	"fmt"
	"time"

	"dfut/internal/core"
	"dfut/internal/protocol"
)

func init() {
	protocol.Register("procs.slow", Slow{})
	protocol.Register("procs.fast", Fast{})
}

// Slow is the CPU-gated blocker test_cpu.rs ports into §8's S3 scenario: a
// call declaring one cpu of requirement, which occupies that permit for
// Duration before returning. Three of these against a capacity-3 CPU node
// all run concurrently; a fourth would queue behind them.
type Slow struct {
	Duration time.Duration
}

// NewSlow builds a Slow call blocking for d.
func NewSlow(d time.Duration) Slow { return Slow{Duration: d} }

// RemoteDeps implements core.Call. Slow takes no future arguments.
func (c Slow) RemoteDeps() []core.RemoteDep { return nil }

// ResourceReqs implements core.Call: one cpu, matching test_cpu.rs's
// `#[requires(cpus(1))]`.
func (c Slow) ResourceReqs() []core.ResourceReq {
	return []core.ResourceReq{{Name: "cpus", Amount: 1}}
}

// Run implements core.Call: it occupies one cpu permit for the declared
// duration and returns once released.
func (c Slow) Run(ctx context.Context, rt core.Runtime) (core.Value, error) {
	cpus, err := rt.Cpus(1)
	if err != nil {
		return nil, fmt.Errorf("procs.slow: %w", err)
	}
	outcome, err := cpus.Run(ctx, func(ctx context.Context) (any, error) {
		select {
		case <-time.After(c.Duration):
			return true, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	if err != nil {
		return nil, fmt.Errorf("procs.slow: %w", err)
	}
	return outcome.Wait(ctx)
}

// Fast is the no-op test_cpu.rs races against Slow: it declares no
// resource requirement at all, so the scheduler never queues it behind the
// CPU pool's permits.
type Fast struct{}

// RemoteDeps implements core.Call.
func (c Fast) RemoteDeps() []core.RemoteDep { return nil }

// ResourceReqs implements core.Call.
func (c Fast) ResourceReqs() []core.ResourceReq { return nil }

// Run implements core.Call.
func (c Fast) Run(ctx context.Context, rt core.Runtime) (core.Value, error) {
	return true, nil
}
