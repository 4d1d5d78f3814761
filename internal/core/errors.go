package core

import "errors"

// Kind distinguishes the user-visible failure modes of an awaited DFutRef
// (§7). Retries and recovery are never performed automatically.
type Kind int

const (
	// KindPanic means the call body itself failed.
	KindPanic Kind = iota
	// KindCancelled means the slot's owning session was torn down before a
	// value was ever produced.
	KindCancelled
	// KindNetwork means the peer holding the slot became unreachable while
	// a Retrieve was outstanding.
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindPanic:
		return "panic"
	case KindCancelled:
		return "cancelled"
	case KindNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// ParseKind is String's inverse, used to reconstruct a Kind carried across
// the wire in a CompletedCommand's ErrKind field. An unrecognised tag maps
// to KindNetwork, since that is always a safe fallback: the fault
// definitely came from the transport layer regardless of what produced it
// upstream.
func ParseKind(s string) Kind {
	switch s {
	case "panic":
		return KindPanic
	case "cancelled":
		return KindCancelled
	default:
		return KindNetwork
	}
}

// Error is returned when an awaited value never arrives cleanly.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Kind.String() + ": " + e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a Error of the given kind, optionally wrapping a cause.
func NewError(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Err: cause}
}

// Fatal-path sentinels (§7). Configuration errors, scheduler starvation and
// store invariant violations are programming errors, not user errors.
var (
	// ErrDuplicateSlot is returned when Put is called twice for the same
	// DFutId — testable property #1.
	ErrDuplicateSlot = errors.New("dfut: slot already created")
	// ErrNoEligiblePeer is returned by Spawn when no configured peer
	// satisfies every declared resource requirement.
	ErrNoEligiblePeer = errors.New("dfut: no peer satisfies resource requirements")
	// ErrInvariant marks a reference-count invariant violation.
	ErrInvariant = errors.New("dfut: reference-count invariant violated")
	// ErrNoSession is returned when an operation targets a peer whose
	// session was never established, or was torn down and not replaced.
	ErrNoSession = errors.New("dfut: no session for peer")
	// ErrNotStarted is returned when an operation is attempted against a
	// session whose local or remote side has not yet been started.
	ErrNotStarted = errors.New("dfut: peer session not started")
)
