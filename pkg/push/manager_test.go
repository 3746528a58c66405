package push

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"hubsync/pkg/models"
	"hubsync/pkg/timeline"
	"hubsync/pkg/transport"
)

type fakeConn struct {
	mu     sync.Mutex
	frames chan []byte
	closed bool
}

func newFakeConn() *fakeConn { return &fakeConn{frames: make(chan []byte, 16)} }

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	b, ok := <-c.frames
	if !ok {
		return 0, nil, errors.New("connection closed")
	}
	return 1, b, nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.frames)
	}
	return nil
}

type recordSink struct {
	mu     sync.Mutex
	states []models.ConnState
	raws   []timeline.Raw
	errs   []error
}

func (s *recordSink) ApplyPush(_ string, raw timeline.Raw) {
	s.mu.Lock()
	s.raws = append(s.raws, raw)
	s.mu.Unlock()
}

func (s *recordSink) SetConnState(_ string, st models.ConnState) {
	s.mu.Lock()
	s.states = append(s.states, st)
	s.mu.Unlock()
}

func (s *recordSink) RecordGroupError(_ string, err error) {
	s.mu.Lock()
	s.errs = append(s.errs, err)
	s.mu.Unlock()
}

func (s *recordSink) lastState() models.ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.states) == 0 {
		return ""
	}
	return s.states[len(s.states)-1]
}

func (s *recordSink) waitState(t *testing.T, want models.ConnState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.lastState() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state never reached %s (last %s)", want, s.lastState())
}

func (s *recordSink) waitRaws(t *testing.T, n int) []timeline.Raw {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		if len(s.raws) >= n {
			out := append([]timeline.Raw{}, s.raws...)
			s.mu.Unlock()
			return out
		}
		s.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("never received %d payloads", n)
	return nil
}

func newTestManager(sink Sink) (*Manager, *transport.Credentials) {
	creds := transport.NewCredentials("tok", "ref")
	return NewManager("http://backend.local/api", "", creds, sink), creds
}

func TestConnectDeliversFrames(t *testing.T) {
	sink := &recordSink{}
	m, _ := newTestManager(sink)
	conn := newFakeConn()
	m.SetDialer(func(ctx context.Context, wsURL string) (Conn, error) {
		want := "ws://backend.local/ws/chat/groups/g1/?token=tok"
		if wsURL != want {
			t.Errorf("dialed %s, want %s", wsURL, want)
		}
		return conn, nil
	})

	m.Connect("g1")
	sink.waitState(t, models.ConnOpen)

	conn.frames <- []byte(`{"type":"message.created","payload":{"id":"m1","text":"hi"}}`)
	conn.frames <- []byte(`{"type":"message.updated","payload":{"id":"m1","text":"hi!"}}`)
	raws := sink.waitRaws(t, 2)
	if string(raws[0].ID) != `"m1"` {
		t.Errorf("payload id = %s", raws[0].ID)
	}
	m.Disconnect("g1")
}

func TestConnectIsIdempotent(t *testing.T) {
	sink := &recordSink{}
	m, _ := newTestManager(sink)
	var dials atomic.Int64
	m.SetDialer(func(ctx context.Context, wsURL string) (Conn, error) {
		dials.Add(1)
		return newFakeConn(), nil
	})

	m.Connect("g1")
	m.Connect("g1")
	m.Connect("g1")
	sink.waitState(t, models.ConnOpen)

	if got := dials.Load(); got != 1 {
		t.Errorf("dialed %d times, want 1", got)
	}
	m.Disconnect("g1")
}

func TestConnectWithoutTokenIsNoOp(t *testing.T) {
	sink := &recordSink{}
	m, creds := newTestManager(sink)
	creds.Clear()
	m.SetDialer(func(ctx context.Context, wsURL string) (Conn, error) {
		t.Error("dial must not happen without a token")
		return nil, errors.New("no")
	})

	m.Connect("g1")
	time.Sleep(20 * time.Millisecond)
	if len(sink.states) != 0 {
		t.Errorf("states = %v, want none", sink.states)
	}
}

func TestManualDisconnectEndsIdle(t *testing.T) {
	sink := &recordSink{}
	m, _ := newTestManager(sink)
	conn := newFakeConn()
	var dials atomic.Int64
	m.SetDialer(func(ctx context.Context, wsURL string) (Conn, error) {
		dials.Add(1)
		return conn, nil
	})

	m.Connect("g1")
	sink.waitState(t, models.ConnOpen)
	m.Disconnect("g1")
	sink.waitState(t, models.ConnIdle)

	// The read loop has ended; give a misbehaving reconnect a moment to
	// surface, then confirm nothing redialed and closed never overwrote idle.
	time.Sleep(50 * time.Millisecond)
	if got := dials.Load(); got != 1 {
		t.Errorf("dialed %d times after manual disconnect", got)
	}
	if got := sink.lastState(); got != models.ConnIdle {
		t.Errorf("final state = %s, want idle", got)
	}
}

func TestDisconnectDuringDialStaysCleared(t *testing.T) {
	sink := &recordSink{}
	m, _ := newTestManager(sink)
	release := make(chan struct{})
	m.SetDialer(func(ctx context.Context, wsURL string) (Conn, error) {
		<-release
		return nil, errors.New("refused")
	})

	m.Connect("g1")
	sink.waitState(t, models.ConnConnecting)
	m.Disconnect("g1")
	sink.waitState(t, models.ConnIdle)

	// The late dial failure must not report anything for the cleared group.
	close(release)
	time.Sleep(50 * time.Millisecond)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.errs) != 0 {
		t.Errorf("errs after manual disconnect = %v", sink.errs)
	}
	if got := sink.states[len(sink.states)-1]; got != models.ConnIdle {
		t.Errorf("final state = %s, want idle", got)
	}
}

func TestServerDropRedialsAfterDelay(t *testing.T) {
	sink := &recordSink{}
	m, _ := newTestManager(sink)
	m.SetReconnectDelay(20 * time.Millisecond)
	var dials atomic.Int64
	first := newFakeConn()
	m.SetDialer(func(ctx context.Context, wsURL string) (Conn, error) {
		if dials.Add(1) == 1 {
			return first, nil
		}
		return newFakeConn(), nil
	})

	m.Connect("g1")
	sink.waitState(t, models.ConnOpen)
	first.Close()
	sink.waitState(t, models.ConnClosed)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && dials.Load() < 2 {
		time.Sleep(5 * time.Millisecond)
	}
	if got := dials.Load(); got < 2 {
		t.Fatalf("no redial after the retry delay (dials = %d)", got)
	}
	m.CloseAll()
}

func TestDisconnectCancelsPendingRetry(t *testing.T) {
	sink := &recordSink{}
	m, _ := newTestManager(sink)
	m.SetReconnectDelay(60 * time.Millisecond)
	var dials atomic.Int64
	conn := newFakeConn()
	m.SetDialer(func(ctx context.Context, wsURL string) (Conn, error) {
		dials.Add(1)
		return conn, nil
	})

	m.Connect("g1")
	sink.waitState(t, models.ConnOpen)
	conn.Close()
	sink.waitState(t, models.ConnClosed)
	time.Sleep(20 * time.Millisecond)

	// A retry is now pending; a manual disconnect must stop its timer.
	m.Disconnect("g1")
	sink.waitState(t, models.ConnIdle)
	time.Sleep(150 * time.Millisecond)

	if got := dials.Load(); got != 1 {
		t.Errorf("retry fired after manual disconnect (dials = %d)", got)
	}
	if got := sink.lastState(); got != models.ConnIdle {
		t.Errorf("final state = %s, want idle", got)
	}
}

func TestServerDropTransitionsToClosed(t *testing.T) {
	sink := &recordSink{}
	m, _ := newTestManager(sink)
	conn := newFakeConn()
	m.SetDialer(func(ctx context.Context, wsURL string) (Conn, error) {
		return conn, nil
	})

	m.Connect("g1")
	sink.waitState(t, models.ConnOpen)
	conn.Close()
	sink.waitState(t, models.ConnClosed)
	m.CloseAll()
}

func TestDialFailureRecordsErrorAndCloses(t *testing.T) {
	sink := &recordSink{}
	m, _ := newTestManager(sink)
	m.SetDialer(func(ctx context.Context, wsURL string) (Conn, error) {
		return nil, errors.New("refused")
	})

	m.Connect("g1")
	sink.waitState(t, models.ConnClosed)

	sink.mu.Lock()
	if len(sink.errs) != 1 || sink.errs[0].Error() != "refused" {
		t.Errorf("errs = %v", sink.errs)
	}
	sink.mu.Unlock()
	m.CloseAll()
}

func TestErrorFrameRecordsDetail(t *testing.T) {
	sink := &recordSink{}
	m, _ := newTestManager(sink)
	conn := newFakeConn()
	m.SetDialer(func(ctx context.Context, wsURL string) (Conn, error) {
		return conn, nil
	})

	m.Connect("g1")
	sink.waitState(t, models.ConnOpen)
	conn.frames <- []byte(`{"type":"error","payload":{"detail":"not a member"}}`)
	conn.frames <- []byte(`{"type":"error"}`)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		sink.mu.Lock()
		n := len(sink.errs)
		sink.mu.Unlock()
		if n >= 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	sink.mu.Lock()
	if len(sink.errs) != 2 {
		sink.mu.Unlock()
		t.Fatalf("errs = %v", sink.errs)
	}
	if sink.errs[0].Error() != "not a member" {
		t.Errorf("detail = %q", sink.errs[0])
	}
	if sink.errs[1].Error() != "push channel error" {
		t.Errorf("fallback = %q", sink.errs[1])
	}
	sink.mu.Unlock()
	m.Disconnect("g1")
}

func TestUnknownAndMalformedFramesIgnored(t *testing.T) {
	sink := &recordSink{}
	m, _ := newTestManager(sink)
	conn := newFakeConn()
	m.SetDialer(func(ctx context.Context, wsURL string) (Conn, error) {
		return conn, nil
	})

	m.Connect("g1")
	sink.waitState(t, models.ConnOpen)
	conn.frames <- []byte(`not json at all`)
	conn.frames <- []byte(`{"type":"typing.started","payload":{}}`)
	conn.frames <- []byte(`{"type":"message.created","payload":{"id":"m1"}}`)

	raws := sink.waitRaws(t, 1)
	if len(raws) != 1 {
		t.Fatalf("payloads = %d, want only the recognized frame", len(raws))
	}
	sink.mu.Lock()
	if len(sink.errs) != 0 {
		t.Errorf("unexpected errors: %v", sink.errs)
	}
	sink.mu.Unlock()
	m.Disconnect("g1")
}
