package session

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"dfut/internal/core"
	"dfut/internal/protocol"
)

// echoCall is a minimal core.Call used only to exercise the session
// plumbing; it carries a string and returns it unchanged.
type echoCall struct {
	Msg string
}

func (echoCall) RemoteDeps() []core.RemoteDep       { return nil }
func (echoCall) ResourceReqs() []core.ResourceReq   { return nil }
func (c echoCall) Run(context.Context, core.Runtime) (core.Value, error) {
	return c.Msg, nil
}

func init() {
	protocol.Register("test.echo", echoCall{})
}

type fakeHandler struct {
	mu      sync.Mutex
	ran     []core.DFutId
	onRun   func(id core.DFutId, call core.Call)
	results map[core.InstanceId]core.Value
	errs    map[core.InstanceId]error
}

func newFakeHandler() *fakeHandler {
	return &fakeHandler{
		results: map[core.InstanceId]core.Value{},
		errs:    map[core.InstanceId]error{},
	}
}

func (f *fakeHandler) RunTask(ctx context.Context, id core.DFutId, call core.Call) {
	f.mu.Lock()
	f.ran = append(f.ran, id)
	hook := f.onRun
	f.mu.Unlock()
	if hook != nil {
		hook(id, call)
	}
}

func (f *fakeHandler) LocalRetrieve(ctx context.Context, data core.RefData) (core.Value, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[data.Instance]; ok {
		return nil, err
	}
	return f.results[data.Instance], nil
}

func TestLocalSessionBypassesSerialisation(t *testing.T) {
	h := newFakeHandler()
	p := New(core.NodeId(0))
	p.StartLocal(h)

	id := core.NewId()
	if err := p.Spawn(id, echoCall{Msg: "hi"}); err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	h.mu.Lock()
	ran := len(h.ran)
	h.mu.Unlock()
	if ran != 1 {
		t.Fatalf("want 1 RunTask call, got %d", ran)
	}

	instance := core.NewId()
	h.mu.Lock()
	h.results[instance] = "value"
	h.mu.Unlock()

	v, err := p.Retrieve(context.Background(), core.RefData{Id: id, Instance: instance})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if v != "value" {
		t.Fatalf("want %q, got %v", "value", v)
	}
}

func TestUnstartedPeerFails(t *testing.T) {
	p := New(core.NodeId(1))
	if err := p.Spawn(core.NewId(), echoCall{}); err == nil {
		t.Fatal("want error spawning on an unstarted peer")
	}
	if _, err := p.Retrieve(context.Background(), core.RefData{}); err == nil {
		t.Fatal("want error retrieving on an unstarted peer")
	}
}

func wireRemotePeers(t *testing.T) (a, b *Peer, ha, hb *fakeHandler) {
	t.Helper()
	connA, connB := net.Pipe()
	ha, hb = newFakeHandler(), newFakeHandler()
	a, b = New(core.NodeId(0)), New(core.NodeId(1))
	a.StartRemote(connA, ha)
	b.StartRemote(connB, hb)
	return a, b, ha, hb
}

func TestRemoteSessionSpawnDeliversCall(t *testing.T) {
	a, _, _, hb := wireRemotePeers(t)
	defer a.Abort()

	id := core.NewId()
	done := make(chan struct{})
	hb.mu.Lock()
	hb.onRun = func(gotID core.DFutId, call core.Call) {
		if gotID != id {
			t.Errorf("want id %s, got %s", id, gotID)
		}
		if ec, ok := call.(echoCall); !ok || ec.Msg != "ping" {
			t.Errorf("want echoCall{ping}, got %#v", call)
		}
		close(done)
	}
	hb.mu.Unlock()

	if err := a.Spawn(id, echoCall{Msg: "ping"}); err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("remote RunTask never observed")
	}
}

func TestRemoteSessionRetrieveRoundTrip(t *testing.T) {
	a, _, _, hb := wireRemotePeers(t)
	defer a.Abort()

	instance := core.NewId()
	hb.mu.Lock()
	hb.results[instance] = "remote-value"
	hb.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	v, err := a.Retrieve(ctx, core.RefData{Id: core.NewId(), Instance: instance})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if v != "remote-value" {
		t.Fatalf("want %q, got %v", "remote-value", v)
	}
}

func TestRemoteSessionRetrieveCarriesErrorKind(t *testing.T) {
	a, _, _, hb := wireRemotePeers(t)
	defer a.Abort()

	instance := core.NewId()
	hb.mu.Lock()
	hb.errs[instance] = core.NewError(core.KindPanic, nil)
	hb.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := a.Retrieve(ctx, core.RefData{Id: core.NewId(), Instance: instance})
	if err == nil {
		t.Fatal("want an error")
	}
	var derr *core.Error
	if !asDfutError(err, &derr) {
		t.Fatalf("want *core.Error, got %T: %v", err, err)
	}
	if derr.Kind != core.KindPanic {
		t.Fatalf("want KindPanic, got %v", derr.Kind)
	}
}

func TestRemoteSessionRestartAbortsOutstanding(t *testing.T) {
	connA1, connB1 := net.Pipe()
	ha := newFakeHandler()
	peerA := New(core.NodeId(0))
	peerA.StartRemote(connA1, ha)

	// Nothing ever answers this Retrieve on the other end of connB1 — it
	// stays outstanding until the restart below aborts it.
	errCh := make(chan error, 1)
	go func() {
		_, err := peerA.Retrieve(context.Background(), core.RefData{Id: core.NewId(), Instance: core.NewId()})
		errCh <- err
	}()
	time.Sleep(20 * time.Millisecond)

	connA2, _ := net.Pipe()
	peerA.StartRemote(connA2, ha)
	defer peerA.Abort()

	select {
	case err := <-errCh:
		var derr *core.Error
		if !asDfutError(err, &derr) {
			t.Fatalf("want *core.Error, got %T: %v", err, err)
		}
		if derr.Kind != core.KindNetwork {
			t.Fatalf("want KindNetwork, got %v", derr.Kind)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("outstanding retrieve was never aborted by the restart")
	}

	_ = connB1.Close()
}

func asDfutError(err error, target **core.Error) bool {
	de, ok := err.(*core.Error)
	if !ok {
		return false
	}
	*target = de
	return true
}
