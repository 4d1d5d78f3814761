package core

import "context"

// Handler is the narrow view of a Node that internal/session needs to
// dispatch incoming wire traffic, without session importing the root
// package (which itself imports session) — the same leaf-package role
// Runtime plays for Call.Run.
type Handler interface {
	// RunTask stores a fresh slot for id and executes call in the
	// background, the local-node half of handling an incoming
	// CallCommand (§4.2).
	RunTask(ctx context.Context, id DFutId, call Call)

	// LocalRetrieve applies data's ref-delta against the local store and
	// resolves the resulting value. Used both for an incoming
	// RetrieveCommand from a remote peer and, directly, by the Local
	// session variant's self-loop retrieve (§9's "Self-loop session").
	LocalRetrieve(ctx context.Context, data RefData) (Value, error)
}
