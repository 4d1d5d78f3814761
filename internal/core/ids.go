// Package core holds the small set of types shared by every subsystem of
// the runtime (store, protocol, session, resource manager) so that those
// packages can depend on one leaf package instead of on each other or on
// the root package — the root package dfut is the one that depends on all
// of them, not the reverse.
package core

import "github.com/google/uuid"

// NodeId identifies a peer within a run. Small, dense, fixed for the life
// of the cluster.
type NodeId uint32

// DFutId names a value slot in the distributed object store.
type DFutId = uuid.UUID

// InstanceId names one reference (a DFutRef) to a slot.
type InstanceId = uuid.UUID

// NilInstance is the sentinel instance id a spawn's caller implicitly
// holds before any clone of the returned DFutRef ever occurs.
var NilInstance = uuid.Nil

// NewId mints a fresh random 128-bit id for use as a DFutId or InstanceId.
func NewId() uuid.UUID { return uuid.New() }
