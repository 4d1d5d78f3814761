// Package session implements the per-peer session/connection multiplexer
// of §4.2: one duplex channel per peer (including loopback), a send/receive
// state machine, and the outstanding-Retrieve correlation map.
package session

import (
	"context"
	"fmt"
	"sync"

	"dfut/internal/core"
)

// inner is what a live session variant (Local or Remote) must do to serve
// Peer. Swapping Peer.active to a new inner is how §4.2's "restart aborts
// the previous Remote session" is implemented.
type inner interface {
	spawnCall(id core.DFutId, call core.Call) error
	retrieve(ctx context.Context, data core.RefData) (core.Value, error)
	abort()
}

// Peer is the state attached to one cluster member: Uninitialised until
// StartLocal/StartRemote is called, then Local or Remote for the rest of
// the process's life (restarted in place on a new accepted stream).
type Peer struct {
	id core.NodeId

	mu     sync.Mutex
	active inner
}

// New returns an Uninitialised Peer for id. Callers must StartLocal or
// StartRemote it before Spawn/Retrieve will succeed.
func New(id core.NodeId) *Peer {
	return &Peer{id: id}
}

// StartLocal installs the self-loop variant. It must be called at most
// once, for the node's own id, and never again for that peer.
func (p *Peer) StartLocal(handler core.Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active != nil {
		panic(fmt.Sprintf("session: peer %d already started", p.id))
	}
	p.active = newLocalSession(handler)
}

// StartRemote installs a Remote session backed by conn, aborting and
// replacing whatever session (if any) was previously active — the
// "restart" path of §4.2: a late accept for an existing peer wins and the
// loser's outstanding Retrieves surface a Network error.
func (p *Peer) StartRemote(conn Conn, handler core.Handler) {
	next := newRemoteSession(conn, handler)

	p.mu.Lock()
	old := p.active
	p.active = next
	p.mu.Unlock()

	if old != nil {
		old.abort()
	}
}

// Spawn ships a freshly minted call to this peer (Local: runs it inline;
// Remote: enqueues a CallCommand). id must already be unique — the
// scheduler mints it before calling Spawn.
func (p *Peer) Spawn(id core.DFutId, call core.Call) error {
	p.mu.Lock()
	active := p.active
	p.mu.Unlock()
	if active == nil {
		return fmt.Errorf("session: peer %d: %w", p.id, core.ErrNotStarted)
	}
	return active.spawnCall(id, call)
}

// Retrieve resolves the slot named by data, either inline (Local) or by
// issuing a RetrieveCommand and awaiting the matching Completed (Remote).
func (p *Peer) Retrieve(ctx context.Context, data core.RefData) (core.Value, error) {
	p.mu.Lock()
	active := p.active
	p.mu.Unlock()
	if active == nil {
		return nil, fmt.Errorf("session: peer %d: %w", p.id, core.ErrNotStarted)
	}
	return active.retrieve(ctx, data)
}

// Abort tears down whatever session is active, e.g. on node shutdown.
func (p *Peer) Abort() {
	p.mu.Lock()
	active := p.active
	p.mu.Unlock()
	if active != nil {
		active.abort()
	}
}
