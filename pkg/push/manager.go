package push

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"hubsync/pkg/logger"
	"hubsync/pkg/models"
	"hubsync/pkg/telemetry"
	"hubsync/pkg/timeline"
	"hubsync/pkg/transport"
)

// ReconnectDelay is the fixed wait before a dropped connection is retried.
// No backoff growth or jitter: drops are expected to be transient and the
// backend tolerates a 5s probe cadence.
const ReconnectDelay = 5 * time.Second

// Sink receives connection events. Implemented by the session store; all
// methods must be safe for concurrent use.
type Sink interface {
	// ApplyPush merges one inbound message payload into the group timeline.
	ApplyPush(groupID string, raw timeline.Raw)
	// SetConnState records the current push-channel state for the group.
	// ConnIdle means the entry was cleared by a manual disconnect.
	SetConnState(groupID string, state models.ConnState)
	// RecordGroupError stores a background error for UI inspection.
	RecordGroupError(groupID string, err error)
}

// Conn is the minimal surface the manager needs from a websocket
// connection; *websocket.Conn satisfies it.
type Conn interface {
	ReadMessage() (int, []byte, error)
	Close() error
}

// Dialer opens a websocket connection to the given address.
type Dialer func(ctx context.Context, wsURL string) (Conn, error)

// GorillaDialer dials with the default gorilla websocket dialer.
func GorillaDialer(ctx context.Context, wsURL string) (Conn, error) {
	c, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Manager owns at most one live push connection per group and recovers
// non-manual drops on a fixed interval. The current access token is read
// fresh at every attempt so a rotation is never missed.
type Manager struct {
	apiBase string
	wsBase  string
	creds   *transport.Credentials
	sink    Sink
	dial    Dialer
	delay   time.Duration

	mu      sync.Mutex
	conns   map[string]*groupConn
	retries map[string]*time.Timer
}

type groupConn struct {
	conn   Conn
	manual bool
}

func NewManager(apiBase, wsBase string, creds *transport.Credentials, sink Sink) *Manager {
	return &Manager{
		apiBase: apiBase,
		wsBase:  wsBase,
		creds:   creds,
		sink:    sink,
		dial:    GorillaDialer,
		delay:   ReconnectDelay,
		conns:   map[string]*groupConn{},
		retries: map[string]*time.Timer{},
	}
}

// SetDialer overrides the websocket dialer; used by tests.
func (m *Manager) SetDialer(d Dialer) {
	if d != nil {
		m.dial = d
	}
}

// SetReconnectDelay overrides the retry delay; used by tests.
func (m *Manager) SetReconnectDelay(d time.Duration) {
	if d > 0 {
		m.delay = d
	}
}

// Connect is idempotent: while a connection for the group is open or being
// established it is a no-op. Missing group id or credential fails fast with
// a log line only; the connection lifecycle never throws to the caller.
func (m *Manager) Connect(groupID string) {
	token := m.creds.AccessToken()
	wsURL, err := BuildSocketURL(m.apiBase, m.wsBase, groupID, token)
	if err != nil {
		logger.Warn("push_connect_skipped", "group", groupID, "error", err)
		return
	}

	m.mu.Lock()
	if m.conns[groupID] != nil {
		m.mu.Unlock()
		return
	}
	m.clearRetryLocked(groupID)
	gc := &groupConn{}
	m.conns[groupID] = gc
	m.mu.Unlock()

	m.sink.SetConnState(groupID, models.ConnConnecting)
	go m.dialAndRun(groupID, gc, wsURL)
}

// Disconnect marks the close as manual, tears the connection down and
// cancels any pending reconnect. Safe to call when no connection exists.
func (m *Manager) Disconnect(groupID string) {
	m.mu.Lock()
	m.clearRetryLocked(groupID)
	gc := m.conns[groupID]
	var conn Conn
	if gc != nil {
		gc.manual = true
		conn = gc.conn
		delete(m.conns, groupID)
	}
	m.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	m.sink.SetConnState(groupID, models.ConnIdle)
	logger.Debug("push_disconnected", "group", groupID)
}

// CloseAll disconnects every group; used on session reset and shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	groups := make([]string, 0, len(m.conns)+len(m.retries))
	for g := range m.conns {
		groups = append(groups, g)
	}
	for g := range m.retries {
		groups = append(groups, g)
	}
	m.mu.Unlock()

	seen := map[string]bool{}
	for _, g := range groups {
		if !seen[g] {
			seen[g] = true
			m.Disconnect(g)
		}
	}
}

func (m *Manager) dialAndRun(groupID string, gc *groupConn, wsURL string) {
	conn, err := m.dial(context.Background(), wsURL)
	if err != nil {
		m.mu.Lock()
		manual := gc.manual
		m.mu.Unlock()
		if manual {
			// Disconnected while the dial was in flight; the session was
			// already cleared and a late failure must not resurrect it.
			return
		}
		logger.Error("push_dial_failed", "group", groupID, "error", err)
		m.sink.RecordGroupError(groupID, err)
		// Mirror the error-then-close event order of a failed socket open;
		// finish settles the state at closed and schedules the retry.
		m.sink.SetConnState(groupID, models.ConnError)
		m.finish(groupID, gc)
		return
	}

	m.mu.Lock()
	if gc.manual {
		// Disconnected while the dial was in flight.
		m.mu.Unlock()
		_ = conn.Close()
		return
	}
	gc.conn = conn
	m.mu.Unlock()

	m.sink.SetConnState(groupID, models.ConnOpen)
	telemetry.ConnectionsOpen.Inc()
	logger.Info("push_connected", "group", groupID)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		m.handleFrame(groupID, data)
	}
	telemetry.ConnectionsOpen.Dec()
	m.finish(groupID, gc)
}

// finish runs close handling after the read loop (or a failed dial) ends:
// non-manual drops transition to closed and schedule a retry.
func (m *Manager) finish(groupID string, gc *groupConn) {
	m.mu.Lock()
	manual := gc.manual
	if m.conns[groupID] == gc {
		delete(m.conns, groupID)
	}
	m.mu.Unlock()

	if manual {
		// Disconnect already cleared the state entry.
		return
	}
	m.sink.SetConnState(groupID, models.ConnClosed)
	m.scheduleReconnect(groupID)
}

func (m *Manager) scheduleReconnect(groupID string) {
	if m.creds.AccessToken() == "" {
		logger.Warn("push_retry_abandoned", "group", groupID, "reason", "no credential")
		return
	}

	m.mu.Lock()
	m.clearRetryLocked(groupID)
	m.retries[groupID] = time.AfterFunc(m.delay, func() {
		m.mu.Lock()
		delete(m.retries, groupID)
		m.mu.Unlock()
		// Read the credential fresh; a token rotated since the drop is
		// used, a token revoked since the drop cancels the retry.
		if m.creds.AccessToken() == "" {
			return
		}
		m.Connect(groupID)
	})
	m.mu.Unlock()

	telemetry.ReconnectsScheduled.Inc()
	logger.Info("push_retry_scheduled", "group", groupID, "delay", m.delay)
}

func (m *Manager) clearRetryLocked(groupID string) {
	if t := m.retries[groupID]; t != nil {
		t.Stop()
		delete(m.retries, groupID)
	}
}

func (m *Manager) handleFrame(groupID string, data []byte) {
	var frame struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		logger.Warn("push_frame_unparseable", "group", groupID, "error", err)
		telemetry.FramesDropped.Inc()
		return
	}

	switch frame.Type {
	case models.FrameConnectionEstablished:
		telemetry.FramesReceived.WithLabelValues(frame.Type).Inc()
		m.sink.SetConnState(groupID, models.ConnOpen)

	case models.FrameError:
		telemetry.FramesReceived.WithLabelValues(frame.Type).Inc()
		detail := errorDetail(frame.Payload)
		m.sink.RecordGroupError(groupID, errors.New(detail))

	case models.FrameMessageCreated, models.FrameMessageUpdated, models.FrameMessageDeleted:
		telemetry.FramesReceived.WithLabelValues(frame.Type).Inc()
		if len(frame.Payload) == 0 || string(frame.Payload) == "null" {
			return
		}
		var raw timeline.Raw
		if err := json.Unmarshal(frame.Payload, &raw); err != nil {
			logger.Warn("push_payload_unparseable", "group", groupID, "type", frame.Type, "error", err)
			telemetry.FramesDropped.Inc()
			return
		}
		m.sink.ApplyPush(groupID, raw)

	default:
		// Unrecognized types are ignored for forward compatibility.
		telemetry.FramesReceived.WithLabelValues("other").Inc()
	}
}

func errorDetail(payload json.RawMessage) string {
	var data struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(payload, &data); err == nil && data.Detail != "" {
		return data.Detail
	}
	return "push channel error"
}
