// Package protocol implements the wire protocol of §4.2/§6: a length-
// prefixed framing of a self-describing, tagged encoding of the Command
// sum type that joins every pair of peers.
package protocol

import "dfut/internal/core"

// Command is the sum type carried over one peer's stream (§4.2):
//
//	Command =
//	  CallCommand      { id, call }
//	  RetrieveCommand  { ref_data }
//	  CompletedCommand { instance, payload }
//
// It is modelled as an interface with an unexported marker method, the
// usual Go stand-in for a closed sum type, rather than one struct with
// several maybe-nil fields.
type Command interface{ isCommand() }

// CallCommand ships a freshly spawned call to the node that will run it.
type CallCommand struct {
	Id   core.DFutId
	Call core.Call
}

func (CallCommand) isCommand() {}

// RetrieveCommand requests the value named by Data from its owner. The
// reply-channel half of the original design (a Rust oneshot::Sender) has
// no wire representation — it never crosses isCommand's serialised form;
// internal/session keeps it out-of-band in the outstanding-request map.
type RetrieveCommand struct {
	Data core.RefData
}

func (RetrieveCommand) isCommand() {}

// CompletedCommand answers a RetrieveCommand. Instance correlates the
// reply to the request that asked for it (§4.2). A failed retrieve (the
// owning slot's Call panicked, or was cancelled) still answers: ErrKind is
// non-empty and Payload is unused, so the fault propagates to the remote
// waiter instead of hanging it forever (§7's Panic/Cancelled propagation).
type CompletedCommand struct {
	Instance core.InstanceId
	Payload  []byte
	ErrKind  string
	ErrMsg   string
}

func (CompletedCommand) isCommand() {}
