package dfut

import "dfut/internal/core"

// Kind distinguishes the user-visible failure modes of an awaited DFutRef
// (§7): Panic, Cancelled, Network. Retries and recovery are never performed
// automatically — callers branch on Kind and decide.
type Kind = core.Kind

const (
	KindPanic     = core.KindPanic
	KindCancelled = core.KindCancelled
	KindNetwork   = core.KindNetwork
)

// Error is the error a DFutRef.Resolve returns when the awaited value never
// arrives cleanly.
type Error = core.Error

// NewError builds a Error of the given kind, optionally wrapping a cause.
func NewError(kind Kind, cause error) *Error { return core.NewError(kind, cause) }

// Fatal-path sentinels (§7).
var (
	ErrDuplicateSlot  = core.ErrDuplicateSlot
	ErrNoEligiblePeer = core.ErrNoEligiblePeer
	ErrInvariant      = core.ErrInvariant
	ErrNoSession      = core.ErrNoSession
	ErrNotStarted     = core.ErrNotStarted
)
