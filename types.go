// Package dfut is a distributed futures runtime: programs spawn calls whose
// arguments and results are futures that may live on any node of a fixed
// peer-to-peer cluster. The runtime schedules each call on some node,
// executes it asynchronously, stores the result, and transparently resolves
// remote-value references — including chaining a future produced on one
// node directly into a call scheduled on another, without the caller ever
// materialising it.
package dfut

import "dfut/internal/core"

// NodeId identifies a peer within a run. It is small, dense, and fixed for
// the lifetime of the cluster — membership does not change after Start.
type NodeId = core.NodeId

// DFutId names a value slot in the distributed object store. It is minted
// once per spawn and is globally unique with overwhelming probability.
type DFutId = core.DFutId

// InstanceId names one reference (a DFutRef) to a slot. A fresh InstanceId
// is minted whenever a DFutRef is constructed or cloned.
type InstanceId = core.InstanceId

// NilInstance is the sentinel instance id used for the reference a spawn's
// caller implicitly holds before any DFutRef is ever cloned.
var NilInstance = core.NilInstance

// NewId mints a fresh random 128-bit id for use as a DFutId or InstanceId.
func NewId() DFutId { return core.NewId() }

// ResourceConfig is the set of named, non-negative capacities a node
// advertises (e.g. "cpus": 4). A resource type that does not recognise a
// key simply never matches a requirement naming it.
type ResourceConfig = core.ResourceConfig

// ResourceReq is one entry of a call's declared resource requirements: at
// least Amount units of the named resource.
type ResourceReq = core.ResourceReq

// RemoteDep names one remote future a call depends on: the node that owns
// the slot and the slot's id.
type RemoteDep = core.RemoteDep

// Value is an opaque, type-erased call result (see internal/core.Value).
type Value = core.Value

// Call is the abstract, serialisable unit of work consumed from the (out
// of scope) call-definition front-end: §4.5.
type Call = core.Call

// Runtime is the narrow per-call view of a Node: resolve a dependency, ask
// which node is executing, or spawn a further call.
type Runtime = core.Runtime
