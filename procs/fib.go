package procs

import (
	"context"
	"fmt"

	"dfut"
	"dfut/internal/core"
	"dfut/internal/protocol"
)

func init() {
	protocol.Register("procs.fib", Fib{})
}

// Fib is the chaining call demo/src/main.rs ports into §8's fib scenario: a
// call whose body spawns two further Fib calls and one Add call, never
// retrieving the two Fib futures itself — only the final Add result is
// resolved, so Fib(n-1) and Fib(n-2) are chained straight into Add's
// arguments without ever materialising at this node.
type Fib struct {
	N dfut.MaybeFut[int]
}

// NewFib builds a Fib call over an already-wrapped argument.
func NewFib(n dfut.MaybeFut[int]) Fib { return Fib{N: n} }

// RemoteDeps implements core.Call.
func (c Fib) RemoteDeps() []core.RemoteDep {
	if dep, ok := c.N.RemoteDep(); ok {
		return []core.RemoteDep{dep}
	}
	return nil
}

// ResourceReqs implements core.Call.
func (c Fib) ResourceReqs() []core.ResourceReq { return nil }

// Run implements core.Call.
func (c Fib) Run(ctx context.Context, rt core.Runtime) (core.Value, error) {
	n, err := c.N.Resolve(ctx, rt)
	if err != nil {
		return nil, fmt.Errorf("procs.fib: resolve n: %w", err)
	}
	if n <= 1 {
		return 1, nil
	}

	a, err := dfut.Spawn[int](ctx, rt, NewFib(dfut.Val(n-1)))
	if err != nil {
		return nil, fmt.Errorf("procs.fib: spawn fib(%d): %w", n-1, err)
	}
	b, err := dfut.Spawn[int](ctx, rt, NewFib(dfut.Val(n-2)))
	if err != nil {
		return nil, fmt.Errorf("procs.fib: spawn fib(%d): %w", n-2, err)
	}

	sum, err := dfut.Spawn[int](ctx, rt, NewAdd(dfut.Fut(a), dfut.Fut(b)))
	if err != nil {
		return nil, fmt.Errorf("procs.fib: spawn add: %w", err)
	}
	return sum.Resolve(ctx, rt)
}
