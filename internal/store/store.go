// Package store implements the distributed object/task store of §4.1: a
// map from DFutId to a slot that is either still being computed or ready,
// together with the per-instance reference-counting protocol that reclaims
// a slot once no live DFutRef can reach it.
package store

import (
	"context"
	"fmt"
	"sync"

	"dfut/internal/core"
)

// entry is one store slot. instances tracks, per InstanceId, how many
// live references currently carry that identity; the slot is reachable
// iff some counter is still positive (§3's reference-count invariant).
//
// done is closed exactly once, by the single producer goroutine spawned
// from Put, after value/err are set — any number of waiters may select on
// it; a waiter that arrives after the close simply reads value/err
// straight away, which is the "late subscriber reads the cached Ready
// value" behaviour of §4.1.
type entry struct {
	mu        sync.Mutex
	instances map[core.InstanceId]int
	owned     bool

	done  chan struct{}
	value core.Value
	err   error
}

func newEntry() *entry {
	return &entry{
		instances: map[core.InstanceId]int{core.NilInstance: 1},
		done:      make(chan struct{}),
	}
}

// Store is the process-local slot map. The zero value is not usable; use
// New.
type Store struct {
	mu      sync.Mutex
	entries map[core.DFutId]*entry
}

func New() *Store {
	return &Store{entries: map[core.DFutId]*entry{}}
}

// getOrCreate returns the entry for id, creating a fresh Pending one
// seeded with {NIL: 1} if none exists yet. Both Put and Get route through
// this so that whichever arrives first — the owning node's run_task, or a
// ref-delta from a clone/retrieve racing ahead of it over the network —
// observes the same genesis state (§4.1's correctness rationale: the slot
// is always born under NIL:1, regardless of which caller happens to
// instantiate the map entry first).
func (s *Store) getOrCreate(id core.DFutId) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		e = newEntry()
		s.entries[id] = e
	}
	return e
}

// Run is the work a Put slot executes to produce its Value; it is
// supplied by the caller (node.go, wired to Call.Run) rather than owned
// by this package, which never knows how to execute a Call.
type Run func(ctx context.Context) (core.Value, error)

// Put creates (or attaches to) the slot named by id and launches run in
// the background. A second Put against an id that already has a run
// attached is §8 property 1's fatal "value uniqueness" violation and
// returns core.ErrDuplicateSlot.
func (s *Store) Put(ctx context.Context, id core.DFutId, run Run) error {
	e := s.getOrCreate(id)

	e.mu.Lock()
	if e.owned {
		e.mu.Unlock()
		return fmt.Errorf("store: slot %s: %w", id, core.ErrDuplicateSlot)
	}
	e.owned = true
	e.mu.Unlock()

	go func() {
		v, err := run(ctx)
		e.mu.Lock()
		e.value, e.err = v, err
		close(e.done)
		e.mu.Unlock()
	}()
	return nil
}

// PendingValue is the result of Get: either a slot still being computed,
// which Resolve awaits, or one already Ready.
type PendingValue struct {
	entry *entry
	ready bool
	value core.Value
	err   error
}

// Resolve awaits the slot's value exactly once per PendingValue. Multiple
// PendingValues against the same slot may all Resolve concurrently — they
// share the one producer goroutine started by Put (§8 property 3:
// resolve-once, observe-many).
func (p PendingValue) Resolve(ctx context.Context) (core.Value, error) {
	if p.ready {
		return p.value, p.err
	}
	select {
	case <-p.entry.done:
		return p.entry.value, p.entry.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Get applies the ref-delta carried by data, then returns a PendingValue
// for the slot — unless the delta just emptied the instance map, in which
// case the slot is also removed from the store so no other consumer can
// ever reach it again (§4.1).
func (s *Store) Get(ctx context.Context, data core.RefData) (PendingValue, error) {
	e := s.getOrCreate(data.Id)

	e.mu.Lock()
	empty, err := applyRefDelta(e.instances, data)
	if err != nil {
		e.mu.Unlock()
		return PendingValue{}, err
	}

	var pv PendingValue
	if e.ready() {
		pv = PendingValue{ready: true, value: e.value, err: e.err}
	} else {
		pv = PendingValue{entry: e}
	}
	e.mu.Unlock()

	if empty {
		s.mu.Lock()
		delete(s.entries, data.Id)
		s.mu.Unlock()
	}
	return pv, nil
}

func (e *entry) ready() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

// applyRefDelta mutates instances in place per §4.1/§9, fixed:
//  1. decrement instances[data.Parent]; remove that key if it reaches 0.
//  2. add data.Children to instances[data.Instance]; remove *that* key
//     (not the parent's, again) if the sum is 0.
//  3. every counter must stay >= 0; a negative counter is a ref-counting
//     bug in the call front-end and is fatal, never recovered from.
//
// It reports whether the map is now empty (slot unreachable).
func applyRefDelta(instances map[core.InstanceId]int, data core.RefData) (empty bool, err error) {
	instances[data.Parent]--
	if instances[data.Parent] < 0 {
		return false, fmt.Errorf("store: slot %s instance %s: %w", data.Id, data.Parent, core.ErrInvariant)
	}
	if instances[data.Parent] == 0 {
		delete(instances, data.Parent)
	}

	instances[data.Instance] += data.Children
	if instances[data.Instance] < 0 {
		return false, fmt.Errorf("store: slot %s instance %s: %w", data.Id, data.Instance, core.ErrInvariant)
	}
	if instances[data.Instance] == 0 {
		delete(instances, data.Instance)
	}

	return len(instances) == 0, nil
}
