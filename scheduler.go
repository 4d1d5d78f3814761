package dfut

import (
	"context"
	"math/rand/v2"
	"sort"

	"dfut/internal/core"

	"go.opentelemetry.io/otel/attribute"
)

// Spawn places call through rt — whichever configured peer satisfies its
// declared resource requirements (§4.3: a pure capability filter, never a
// weighted balancer — load is never considered) — and returns a ref the
// caller now owns for the slot it just created. rt is the Runtime of the
// node issuing the spawn: top-level user code passes the Node it started,
// a Call.Run body passes the Runtime it was itself given.
func Spawn[T any](ctx context.Context, rt core.Runtime, call core.Call) (*DFutRef[T], error) {
	owner, id, err := rt.Spawn(ctx, call)
	if err != nil {
		return nil, err
	}
	return newSpawnRef[T](owner, id), nil
}

// Spawn implements core.Runtime.
func (n *Node) Spawn(ctx context.Context, call core.Call) (core.NodeId, core.DFutId, error) {
	_, span := tracer.Start(ctx, "dfut.spawn")
	defer span.End()

	owner, err := n.choosePeer(call.ResourceReqs())
	if err != nil {
		return 0, core.DFutId{}, err
	}
	span.SetAttributes(attribute.Int64("dfut.owner", int64(owner)))

	id := core.NewId()
	if err := n.peers[owner].Spawn(id, call); err != nil {
		return 0, core.DFutId{}, err
	}

	n.spawnCounter.Add(ctx, 1)
	return owner, id, nil
}

// choosePeer collects every peer whose advertised resources satisfy every
// requirement in reqs, then picks uniformly at random among them (§4.3).
// If exactly one peer qualifies it is returned deterministically — there
// is nothing to randomise among a set of size one.
func (n *Node) choosePeer(reqs []core.ResourceReq) (core.NodeId, error) {
	var candidates []core.NodeId
	for id, peer := range n.cluster {
		if core.Satisfies(peer.Resources, reqs) {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) == 0 {
		return 0, ErrNoEligiblePeer
	}

	// Candidates come from ranging a map, whose iteration order is
	// randomised by the runtime; sort first so the candidate list has a
	// stable order. The pick itself uses math/rand/v2's package-level
	// source, which is randomly seeded, so draws differ from run to run.
	sort.Slice(candidates, func(i, j int) bool { return candidates[i] < candidates[j] })

	return candidates[rand.IntN(len(candidates))], nil
}
