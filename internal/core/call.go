package core

import (
	"context"

	"dfut/internal/resource"
)

// Value is an opaque, type-erased call result. Identity is by slot, not by
// bytes: multiple waiters of the same slot share the one decoded value. Go's
// garbage collector already keeps a Value alive for as long as anything
// holds it, so — unlike the Arc<dyn Any> the original runtime uses — no
// separate reference count is layered on top of it here; the store's
// instance-count protocol (§4.1) is about which DFutRefs can still reach a
// slot, not about freeing the bytes of the Value itself.
type Value = any

// RemoteDep names one remote future a call depends on.
type RemoteDep struct {
	Owner NodeId
	Id    DFutId
}

// Runtime is the narrow view of a Node that a Call's Run method needs:
// resolve a remote dependency, know which node is running, acquire CPU
// permits, or spawn a further call. It exists so that internal/protocol,
// internal/session, and procs can depend on it without importing the root
// package (which in turn depends on all of them) — see SPEC_FULL.md §D.
// Every Node implements it, and more than one Node may exist in a process
// at once; nothing in this package assumes there is exactly one.
type Runtime interface {
	// Retrieve fetches the value named by dep, applying dep's ref-delta at
	// the owning node and consuming this reference (§4.1/§4.2).
	Retrieve(ctx context.Context, dep RefData) (Value, error)
	// Self returns the id of the node executing the call.
	Self() NodeId
	// Cpus returns a handle bound to n permits of this node's CPU resource
	// pool (§4.4), for a call body that needs to run blocking or
	// CPU-bound work under quota. Returns an error if the node has no CPU
	// resource manager configured.
	Cpus(n int) (*resource.CpuHandle, error)
	// Spawn places call on whichever configured peer satisfies its declared
	// resource requirements and returns the (owner, id) pair naming the
	// slot it just created (§4.3). It is how a Call.Run body, or top-level
	// user code holding a Runtime, issues a further spawn — there being no
	// process-wide Node to reach instead, since more than one Node can run
	// in a single process (e.g. an in-process test cluster).
	Spawn(ctx context.Context, call Call) (NodeId, DFutId, error)
}

// Call is the abstract, serialisable unit of work the store and scheduler
// treat entirely opaquely (§4.5). A code-generation front-end is expected
// to produce one Call implementation per user procedure; this runtime
// module never constructs one itself.
type Call interface {
	// Run resolves every remote dependency via rt, executes the user body,
	// and returns the result (or an error, if the body itself failed).
	Run(ctx context.Context, rt Runtime) (Value, error)
	// RemoteDeps enumerates the call's remote future dependencies.
	RemoteDeps() []RemoteDep
	// ResourceReqs enumerates the call's declared resource requirements.
	ResourceReqs() []ResourceReq
}
