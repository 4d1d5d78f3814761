package procs

import (
	"context"
	"fmt"

	"dfut"
	"dfut/internal/core"
	"dfut/internal/protocol"
)

func init() {
	protocol.Register("procs.ladder", Ladder{})
}

// Ladder is a stub port of the original's wiki_ladder(path, target) (§C,
// macros.rs): unlike Add and Fib it takes a variable-length slice of
// dependencies rather than a fixed arity, so it is the one call in this
// package whose RemoteDeps can hold more than the two entries a worked
// add/fib example ever needs. The original body is itself a stub
// (`vec!["a".to_owned()]`); this port keeps that spirit, resolving every
// step already on the path and appending Target rather than performing any
// real search.
type Ladder struct {
	Path   []dfut.MaybeFut[string]
	Target string
}

// NewLadder builds a Ladder call over an already-wrapped path.
func NewLadder(path []dfut.MaybeFut[string], target string) Ladder {
	return Ladder{Path: path, Target: target}
}

// RemoteDeps implements core.Call.
func (c Ladder) RemoteDeps() []core.RemoteDep {
	var deps []core.RemoteDep
	for _, step := range c.Path {
		if dep, ok := step.RemoteDep(); ok {
			deps = append(deps, dep)
		}
	}
	return deps
}

// ResourceReqs implements core.Call.
func (c Ladder) ResourceReqs() []core.ResourceReq { return nil }

// Run implements core.Call.
func (c Ladder) Run(ctx context.Context, rt core.Runtime) (core.Value, error) {
	path := make([]string, 0, len(c.Path)+1)
	for i, step := range c.Path {
		s, err := step.Resolve(ctx, rt)
		if err != nil {
			return nil, fmt.Errorf("procs.ladder: resolve step %d: %w", i, err)
		}
		path = append(path, s)
	}
	return append(path, c.Target), nil
}
