package session

import (
	"context"
	"errors"
	"net"
	"sync"

	"dfut/internal/core"
	"dfut/internal/protocol"

	"golang.org/x/sync/errgroup"
)

// Conn is the transport a remote session multiplexes over: a TCP stream
// in production, anything satisfying net.Conn in tests.
type Conn = net.Conn

type retrieveReply struct {
	value core.Value
	err   error
}

// remoteSession is one peer's Remote variant (§4.2): an outgoing command
// queue drained by sendLoop, and recvLoop demultiplexing incoming frames,
// dispatching Calls to the Handler, serving Retrieves, and resolving
// outstanding ones against their Completed reply.
type remoteSession struct {
	conn    Conn
	handler core.Handler

	outCh chan protocol.Command

	mu          sync.Mutex
	outstanding map[core.InstanceId]chan retrieveReply

	cancel context.CancelFunc
	closed chan struct{}
}

func newRemoteSession(conn Conn, handler core.Handler) *remoteSession {
	ctx, cancel := context.WithCancel(context.Background())
	rs := &remoteSession{
		conn:        conn,
		handler:     handler,
		outCh:       make(chan protocol.Command, 64),
		outstanding: map[core.InstanceId]chan retrieveReply{},
		cancel:      cancel,
		closed:      make(chan struct{}),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return rs.sendLoop(gctx) })
	g.Go(func() error { return rs.recvLoop(gctx) })
	go func() {
		_ = g.Wait()
		rs.teardown()
	}()

	return rs
}

func (rs *remoteSession) spawnCall(id core.DFutId, call core.Call) error {
	select {
	case rs.outCh <- protocol.CallCommand{Id: id, Call: call}:
		return nil
	case <-rs.closed:
		return core.NewError(core.KindNetwork, core.ErrNoSession)
	}
}

func (rs *remoteSession) retrieve(ctx context.Context, data core.RefData) (core.Value, error) {
	reply := make(chan retrieveReply, 1)
	rs.mu.Lock()
	rs.outstanding[data.Instance] = reply
	rs.mu.Unlock()

	unregister := func() {
		rs.mu.Lock()
		delete(rs.outstanding, data.Instance)
		rs.mu.Unlock()
	}

	select {
	case rs.outCh <- protocol.RetrieveCommand{Data: data}:
	case <-rs.closed:
		unregister()
		return nil, core.NewError(core.KindNetwork, core.ErrNoSession)
	case <-ctx.Done():
		unregister()
		return nil, ctx.Err()
	}

	select {
	case r := <-reply:
		return r.value, r.err
	case <-rs.closed:
		return nil, core.NewError(core.KindNetwork, core.ErrNoSession)
	case <-ctx.Done():
		unregister()
		return nil, ctx.Err()
	}
}

// abort cancels both loops and closes the underlying connection, which is
// what actually unblocks a goroutine parked in a blocking Read/Write (a
// cancelled context alone does not interrupt in-flight I/O on a plain
// net.Conn). teardown, run once both loops have exited, fails every
// outstanding Retrieve with a Network error (§4.2's restart semantics).
func (rs *remoteSession) abort() {
	rs.cancel()
	_ = rs.conn.Close()
}

func (rs *remoteSession) teardown() {
	close(rs.closed)
	_ = rs.conn.Close()

	rs.mu.Lock()
	outstanding := rs.outstanding
	rs.outstanding = map[core.InstanceId]chan retrieveReply{}
	rs.mu.Unlock()

	for _, reply := range outstanding {
		reply <- retrieveReply{err: core.NewError(core.KindNetwork, core.ErrNoSession)}
	}
}

func (rs *remoteSession) sendLoop(ctx context.Context) error {
	for {
		select {
		case cmd := <-rs.outCh:
			payload, err := protocol.EncodeCommand(cmd)
			if err != nil {
				return err
			}
			if err := protocol.WriteFrame(rs.conn, payload); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (rs *remoteSession) recvLoop(ctx context.Context) error {
	for {
		payload, err := protocol.ReadFrame(rs.conn)
		if err != nil {
			return err
		}
		cmd, err := protocol.DecodeCommand(payload)
		if err != nil {
			return err
		}

		switch c := cmd.(type) {
		case protocol.CallCommand:
			rs.handler.RunTask(ctx, c.Id, c.Call)
		case protocol.RetrieveCommand:
			go rs.serveRetrieve(ctx, c.Data)
		case protocol.CompletedCommand:
			rs.completeOutstanding(c)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// serveRetrieve answers an incoming RetrieveCommand (§4.2's "spawn a task
// that calls store get(ref_data).resolve(), serialises the value, and
// enqueues a Completed"). A failed resolve still answers, carrying its
// Kind across the wire, so the remote waiter fails instead of hanging.
func (rs *remoteSession) serveRetrieve(ctx context.Context, data core.RefData) {
	var cc protocol.CompletedCommand
	cc.Instance = data.Instance

	value, err := rs.handler.LocalRetrieve(ctx, data)
	if err != nil {
		var derr *core.Error
		if errors.As(err, &derr) {
			cc.ErrKind, cc.ErrMsg = derr.Kind.String(), derr.Error()
		} else {
			cc.ErrKind, cc.ErrMsg = core.KindNetwork.String(), err.Error()
		}
	} else {
		payload, encErr := protocol.EncodeValue(value)
		if encErr != nil {
			cc.ErrKind, cc.ErrMsg = core.KindNetwork.String(), encErr.Error()
		} else {
			cc.Payload = payload
		}
	}

	select {
	case rs.outCh <- cc:
	case <-rs.closed:
	}
}

func (rs *remoteSession) completeOutstanding(c protocol.CompletedCommand) {
	rs.mu.Lock()
	reply, ok := rs.outstanding[c.Instance]
	if ok {
		delete(rs.outstanding, c.Instance)
	}
	rs.mu.Unlock()
	if !ok {
		return
	}

	var r retrieveReply
	if c.ErrKind != "" {
		r.err = core.NewError(core.ParseKind(c.ErrKind), errors.New(c.ErrMsg))
	} else {
		v, err := protocol.DecodeValue(c.Payload)
		r.value, r.err = v, err
	}
	reply <- r
}
