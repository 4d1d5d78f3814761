package session

import (
	"context"

	"dfut/internal/core"
)

// localSession is the self-loop variant (§9): it bypasses serialisation
// entirely and calls straight into the local Handler, so that a node
// scheduling work onto itself behaves exactly like scheduling onto any
// other peer from the caller's point of view, without ever blocking on a
// channel — the loopback property that rules out self-stalls (§5).
type localSession struct {
	handler core.Handler
}

func newLocalSession(handler core.Handler) *localSession {
	return &localSession{handler: handler}
}

func (l *localSession) spawnCall(id core.DFutId, call core.Call) error {
	l.handler.RunTask(context.Background(), id, call)
	return nil
}

func (l *localSession) retrieve(ctx context.Context, data core.RefData) (core.Value, error) {
	return l.handler.LocalRetrieve(ctx, data)
}

// abort on a Local session is defined to satisfy inner. Nothing in this
// module calls Peer.Abort or StartRemote on the self-loop peer; if either
// ever reaches it, abort panics.
func (l *localSession) abort() {
	panic("session: attempted to abort the local session")
}
