// Package procs is a hand-written call front-end: one exported struct per
// user procedure, each satisfying core.Call directly. It plays the role the
// original runtime's dfut_procs! macro plays (§9, §C) — Go has no macros,
// so the variants that macro would generate are written out here instead,
// each registering its own wire tag in an init().
package procs

import (
	"context"
	"fmt"

	"dfut"
	"dfut/internal/core"
	"dfut/internal/protocol"
)

func init() {
	protocol.Register("procs.add", Add{})
}

// Add is the runtime's canonical two-argument call, ported from the
// original's `add(a: i32, b: i32) -> i32` (macros.rs). Either argument may
// be a literal or a future belonging to any node in the cluster.
type Add struct {
	A dfut.MaybeFut[int]
	B dfut.MaybeFut[int]
}

// NewAdd builds an Add call over two already-wrapped arguments.
func NewAdd(a, b dfut.MaybeFut[int]) Add { return Add{A: a, B: b} }

// RemoteDeps implements core.Call.
func (c Add) RemoteDeps() []core.RemoteDep {
	var deps []core.RemoteDep
	if dep, ok := c.A.RemoteDep(); ok {
		deps = append(deps, dep)
	}
	if dep, ok := c.B.RemoteDep(); ok {
		deps = append(deps, dep)
	}
	return deps
}

// ResourceReqs implements core.Call. add does no CPU-bound work of its own.
func (c Add) ResourceReqs() []core.ResourceReq { return nil }

// Run implements core.Call.
func (c Add) Run(ctx context.Context, rt core.Runtime) (core.Value, error) {
	a, err := c.A.Resolve(ctx, rt)
	if err != nil {
		return nil, fmt.Errorf("procs.add: resolve a: %w", err)
	}
	b, err := c.B.Resolve(ctx, rt)
	if err != nil {
		return nil, fmt.Errorf("procs.add: resolve b: %w", err)
	}
	return a + b, nil
}
