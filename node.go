package dfut

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"syscall"

	"dfut/config"
	"dfut/internal/core"
	"dfut/internal/resource"
	"dfut/internal/session"
	"dfut/internal/store"

	multierror "github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

var (
	tracer = otel.Tracer("dfut")
	meter  = otel.Meter("dfut")
)

// Node is one member's membership in the cluster (§4.3): construct it with
// New and bring it up with Start. A process may run more than one Node
// concurrently (e.g. an in-process test cluster); a Node carries no
// process-wide state, so callers reach one only through the handle they
// were given — the *Node returned by New, or the core.Runtime passed into
// a Call.Run body.
type Node struct {
	id      core.NodeId
	cluster config.Cluster

	store     *store.Store
	resources resource.Manager
	cpus      *resource.CPUManager

	peers map[core.NodeId]*session.Peer

	spawnCounter metric.Int64Counter
}

var (
	_ core.Runtime = (*Node)(nil)
	_ core.Handler = (*Node)(nil)
)

// New builds a Node for id out of cluster, without starting it. The
// resource manager is chosen from id's own advertised resources: a
// positive "cpus" entry gets a CPUManager of that width, otherwise the
// node runs with NoneManager.
func New(id core.NodeId, cluster config.Cluster) (*Node, error) {
	self, ok := cluster[id]
	if !ok {
		return nil, fmt.Errorf("dfut: cluster config has no entry for node %d", id)
	}
	if self.Addr == "" {
		return nil, fmt.Errorf("dfut: node %d has no address", id)
	}

	n := &Node{
		id:      id,
		cluster: cluster,
		store:   store.New(),
		peers:   make(map[core.NodeId]*session.Peer, len(cluster)),
	}

	if cpus := self.Resources["cpus"]; cpus > 0 {
		n.cpus = resource.NewCPUManager(cpus)
		n.resources = n.cpus
	} else {
		n.resources = resource.NoneManager{}
	}

	for peerID := range cluster {
		n.peers[peerID] = session.New(peerID)
	}

	counter, err := meter.Int64Counter("dfut.spawn.count",
		metric.WithDescription("number of calls spawned by this node"))
	if err != nil {
		return nil, fmt.Errorf("dfut: build spawn counter: %w", err)
	}
	n.spawnCounter = counter

	return n, nil
}

// Self implements core.Runtime.
func (n *Node) Self() core.NodeId { return n.id }

// Cpus implements core.Runtime.
func (n *Node) Cpus(width int) (*resource.CpuHandle, error) {
	if n.cpus == nil {
		return nil, fmt.Errorf("dfut: node %d has no cpu resource manager configured", n.id)
	}
	return n.cpus.Cpus(width), nil
}

// Retrieve implements core.Runtime: it resolves dep by delegating to the
// owning peer's session, whether that is the self-loop or a remote peer.
func (n *Node) Retrieve(ctx context.Context, dep core.RefData) (core.Value, error) {
	ctx, span := tracer.Start(ctx, "dfut.retrieve")
	defer span.End()

	peer, ok := n.peers[dep.Owner]
	if !ok {
		return nil, fmt.Errorf("dfut: node %d: unknown peer %d: %w", n.id, dep.Owner, ErrNoSession)
	}
	return peer.Retrieve(ctx, dep)
}

// LocalRetrieve implements core.Handler: it applies dep's ref-delta
// directly against this node's own store, bypassing any session — used
// both by the Local session variant and to answer an incoming
// RetrieveCommand.
func (n *Node) LocalRetrieve(ctx context.Context, dep core.RefData) (core.Value, error) {
	pv, err := n.store.Get(ctx, dep)
	if err != nil {
		return nil, fmt.Errorf("dfut: node %d: %w", n.id, err)
	}
	return pv.Resolve(ctx)
}

// RunTask implements core.Handler: it creates a fresh slot for id and
// executes call in the background (§4.1/§4.2).
func (n *Node) RunTask(ctx context.Context, id core.DFutId, call core.Call) {
	runErr := n.store.Put(ctx, id, func(ctx context.Context) (core.Value, error) {
		ctx, span := tracer.Start(ctx, "dfut.call.run")
		defer span.End()
		return runCallGuarded(ctx, call, n)
	})
	if runErr != nil {
		slog.Error("dfut: duplicate slot creation", "node", n.id, "dfut_id", id, "err", runErr)
	}
}

// runCallGuarded turns a panicking Call.Run into a Panic-kind error
// instead of taking the node process down with it (§7: "a user panic
// inside a call body propagates as a failed slot").
func runCallGuarded(ctx context.Context, call core.Call, rt core.Runtime) (v core.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = core.NewError(core.KindPanic, fmt.Errorf("%v", r))
		}
	}()
	return call.Run(ctx, rt)
}

// Start brings every peer session up (loopback first, then listener +
// connectors per §4.3), initialises the resource manager, and — if main is
// non-nil — runs it to completion. If main is nil, Start blocks until the
// listener's accept loop ends. Start carries no process-wide side effect:
// any number of Nodes may be started concurrently in one process, each
// only ever reached through the core.Runtime handed to its own callers and
// call bodies (e.g. the Runtime a test harness's leader function receives).
func (n *Node) Start(ctx context.Context, main func(ctx context.Context) error) error {
	n.peers[n.id].StartLocal(n)

	if err := n.resources.Initialize(ctx); err != nil {
		return fmt.Errorf("dfut: node %d: initialize resource manager: %w", n.id, err)
	}

	g, gctx := errgroup.WithContext(ctx)

	listener, err := listen(n.cluster[n.id].Addr)
	if err != nil {
		return fmt.Errorf("dfut: node %d: listen on %s: %w", n.id, n.cluster[n.id].Addr, err)
	}

	// Accept() does not observe context cancellation on its own; without
	// this, a follower node (main == nil) would block forever once its
	// caller cancels ctx, since nothing else ever closes the listener.
	go func() {
		<-gctx.Done()
		_ = listener.Close()
	}()

	g.Go(func() error { return n.acceptLoop(gctx, listener) })

	if err := n.connectAll(gctx); err != nil {
		slog.Warn("dfut: some peers could not be dialed", "node", n.id, "err", err)
	}

	if main != nil {
		result := main(gctx)
		_ = listener.Close()
		return result
	}

	return g.Wait()
}

func (n *Node) acceptLoop(ctx context.Context, listener net.Listener) error {
	addrToID := make(map[string]core.NodeId, len(n.cluster))
	for id, peer := range n.cluster {
		addrToID[peer.Addr] = id
	}

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				slog.Warn("dfut: accept failed", "node", n.id, "err", err)
				continue
			}
		}

		id, ok := addrToID[conn.RemoteAddr().String()]
		if !ok {
			slog.Warn("dfut: accepted connection from unrecognised address", "node", n.id, "remote", conn.RemoteAddr())
			_ = conn.Close()
			continue
		}
		slog.Info("dfut: accepted peer connection", "node", n.id, "peer", id)
		n.peers[id].StartRemote(conn, n)
	}
}

// connectAll dials every other peer concurrently. A dial failure is
// aggregated rather than aborting the whole connect phase — one slow or
// down peer should not prevent the rest of the cluster from coming up
// (the listener's accept loop may still complete that peer's session
// later, from the other direction).
func (n *Node) connectAll(ctx context.Context) error {
	myAddr := n.cluster[n.id].Addr

	var mu sync.Mutex
	var dialErrs error

	g, ctx := errgroup.WithContext(ctx)
	for peerID, peer := range n.cluster {
		if peerID == n.id {
			continue
		}
		peerID, addr := peerID, peer.Addr
		g.Go(func() error {
			conn, err := dial(ctx, myAddr, addr)
			if err != nil {
				mu.Lock()
				dialErrs = multierror.Append(dialErrs, fmt.Errorf("dial peer %d (%s): %w", peerID, addr, err))
				mu.Unlock()
				return nil
			}
			slog.Info("dfut: connected to peer", "node", n.id, "peer", peerID)
			n.peers[peerID].StartRemote(conn, n)
			return nil
		})
	}
	_ = g.Wait()
	return dialErrs
}

func listen(addr string) (net.Listener, error) {
	lc := net.ListenConfig{Control: controlReuse}
	return lc.Listen(context.Background(), "tcp", addr)
}

func dial(ctx context.Context, localAddr, remoteAddr string) (net.Conn, error) {
	d := net.Dialer{Control: controlReuse}
	if localAddr != "" {
		laddr, err := net.ResolveTCPAddr("tcp", localAddr)
		if err != nil {
			return nil, fmt.Errorf("resolve local addr %s: %w", localAddr, err)
		}
		d.LocalAddr = laddr
	}
	return d.DialContext(ctx, "tcp", remoteAddr)
}

// controlReuse sets SO_REUSEADDR and SO_REUSEPORT on a listener or dialer
// socket, so the two half-connections a pair of peers race to establish
// (§4.3) never collide on "address already in use".
func controlReuse(network, address string, c syscall.RawConn) error {
	var setErr error
	err := c.Control(func(fd uintptr) {
		if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			setErr = err
			return
		}
		setErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
	})
	if err != nil {
		return err
	}
	return setErr
}
