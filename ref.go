package dfut

import (
	"context"
	"fmt"
	"sync"

	"dfut/internal/core"

	jsoniter "github.com/json-iterator/go"
)

var refJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// DFutRef is a handle to a value that is, or will be, stored on some node
// (§3). It is not a pure value: Clone mutates the source (incrementing
// its children count), so a DFutRef carries interior mutability and must
// never be copied by assignment — always go through Clone.
type DFutRef[T any] struct {
	mu sync.Mutex

	owner    core.NodeId
	id       core.DFutId
	instance core.InstanceId
	parent   core.InstanceId
	children int

	consumed bool
}

// newSpawnRef builds the ref a spawn's caller implicitly holds: the slot's
// genesis instance, NIL, with no parent and no clones yet (§3: "its map
// starts as { NIL: 1 }").
func newSpawnRef[T any](owner core.NodeId, id core.DFutId) *DFutRef[T] {
	return &DFutRef[T]{
		owner:    owner,
		id:       id,
		instance: core.NilInstance,
		parent:   core.NilInstance,
	}
}

// fromRefData reconstructs a ref on the receiving side of a wire transfer:
// data names the instance the sender already owns and has snapshotted, not
// one this side has created, so the result starts unconsumed and ready for
// the eventual Call.Run to resolve it.
func fromRefData[T any](data core.RefData) *DFutRef[T] {
	return &DFutRef[T]{
		owner:    data.Owner,
		id:       data.Id,
		instance: data.Instance,
		parent:   data.Parent,
		children: data.Children,
	}
}

// snapshot reads r's current wire shape without marking it consumed — used
// when a call argument is serialised to cross the wire as part of a
// CallCommand. The ref only actually dies later, when the receiving call
// body resolves it (§4.5); marshalling it is not resolving it, so a call
// that never runs must not leak or double-free the slot.
func (r *DFutRef[T]) snapshot() core.RefData {
	r.mu.Lock()
	defer r.mu.Unlock()
	return core.RefData{
		Owner:    r.owner,
		Id:       r.id,
		Instance: r.instance,
		Parent:   r.parent,
		Children: r.children,
	}
}

// Owner returns the node id that holds this ref's slot.
func (r *DFutRef[T]) Owner() core.NodeId { return r.owner }

// Id returns the DFutId naming this ref's slot.
func (r *DFutRef[T]) Id() core.DFutId { return r.id }

// Clone produces a new reference to the same slot, recording the clone
// side effect on r: the parent's children count is incremented and the
// new ref's parent is set to r's own instance (§3).
func (r *DFutRef[T]) Clone() *DFutRef[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.consumed {
		panic("dfut: Clone called on a DFutRef that was already resolved or shipped")
	}
	r.children++
	return &DFutRef[T]{
		owner:    r.owner,
		id:       r.id,
		instance: core.NewId(),
		parent:   r.instance,
	}
}

// consume marks r dead and returns the ref-delta its death emits to the
// owning node's instance map. It is an error to consume a ref twice — the
// call front-end contract (§9) requires exactly one resolve ref-delta per
// reference.
func (r *DFutRef[T]) consume() (core.RefData, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.consumed {
		return core.RefData{}, fmt.Errorf("dfut: ref %s already consumed: %w", r.instance, core.ErrInvariant)
	}
	r.consumed = true
	return core.RefData{
		Owner:    r.owner,
		Id:       r.id,
		Instance: r.instance,
		Parent:   r.parent,
		Children: r.children,
	}, nil
}

// Resolve retrieves r's value through rt, consuming r: calling it a second
// time (on r or on the MaybeFut/Clone wrapping it) is a programming error.
// rt is the Runtime of whichever node holds the caller: top-level user code
// passes the Node it started, a Call.Run body passes the Runtime it was
// itself given (§4.5).
func (r *DFutRef[T]) Resolve(ctx context.Context, rt core.Runtime) (T, error) {
	var zero T
	data, err := r.consume()
	if err != nil {
		return zero, err
	}
	v, err := rt.Retrieve(ctx, data)
	if err != nil {
		return zero, err
	}
	return convertValue[T](v)
}

// convertValue coerces an opaque core.Value into T. The local (self-loop)
// retrieve path never serialises, so v is already exactly T and a direct
// type assertion succeeds; the remote path round-trips through JSON
// (internal/protocol), which loses Go's static type (e.g. every number
// becomes float64) — round-tripping v back through JSON into a T value
// repairs that, at the one place the generic type is known.
func convertValue[T any](v core.Value) (T, error) {
	var zero T
	if t, ok := v.(T); ok {
		return t, nil
	}
	b, err := refJSON.Marshal(v)
	if err != nil {
		return zero, fmt.Errorf("dfut: convert value: %w", err)
	}
	var out T
	if err := refJSON.Unmarshal(b, &out); err != nil {
		return zero, fmt.Errorf("dfut: convert value to %T: %w", out, err)
	}
	return out, nil
}

// MaybeFut is either a literal T or a future that will produce one (§3):
// the shape call arguments take so they may be either inline or remote.
type MaybeFut[T any] struct {
	hasValue bool
	value    T
	fut      *DFutRef[T]
}

// Val wraps a literal argument.
func Val[T any](v T) MaybeFut[T] { return MaybeFut[T]{hasValue: true, value: v} }

// Fut wraps a future argument.
func Fut[T any](f *DFutRef[T]) MaybeFut[T] { return MaybeFut[T]{fut: f} }

// RemoteDep reports the (owner, id) pair a Fut-variant MaybeFut depends
// on, for Call.RemoteDeps (§4.5); ok is false for a Val variant.
func (m MaybeFut[T]) RemoteDep() (dep core.RemoteDep, ok bool) {
	if m.fut == nil {
		return core.RemoteDep{}, false
	}
	return core.RemoteDep{Owner: m.fut.owner, Id: m.fut.id}, true
}

// Resolve yields m's value: the literal directly, or the future's value
// via rt.Retrieve — consuming the ref exactly once (§4.5's "resolve every
// MaybeFut::Fut via node.retrieve, which consumes the ref").
func (m MaybeFut[T]) Resolve(ctx context.Context, rt core.Runtime) (T, error) {
	if m.hasValue {
		return m.value, nil
	}
	return m.fut.Resolve(ctx, rt)
}

// maybeFutWire is MaybeFut's self-describing wire form (§6: "tags for sum
// variants, tags for MaybeFut"): exactly one of the two fields is present.
type maybeFutWire[T any] struct {
	Value *T            `json:"value,omitempty"`
	Fut   *core.RefData `json:"fut,omitempty"`
}

// MarshalJSON lets a MaybeFut field travel inside a Call that is shipped to
// a remote peer as a CallCommand. A Fut variant snapshots its underlying
// ref rather than consuming it: the ref only dies once the call body on the
// far side actually calls Resolve (§4.5).
func (m MaybeFut[T]) MarshalJSON() ([]byte, error) {
	if m.hasValue {
		return refJSON.Marshal(maybeFutWire[T]{Value: &m.value})
	}
	data := m.fut.snapshot()
	return refJSON.Marshal(maybeFutWire[T]{Fut: &data})
}

// UnmarshalJSON reconstructs whichever variant the wire form carries.
func (m *MaybeFut[T]) UnmarshalJSON(b []byte) error {
	var wire maybeFutWire[T]
	if err := refJSON.Unmarshal(b, &wire); err != nil {
		return fmt.Errorf("dfut: decode MaybeFut: %w", err)
	}
	switch {
	case wire.Value != nil:
		m.hasValue = true
		m.value = *wire.Value
	case wire.Fut != nil:
		m.fut = fromRefData[T](*wire.Fut)
	default:
		return fmt.Errorf("dfut: decode MaybeFut: neither value nor fut present")
	}
	return nil
}
