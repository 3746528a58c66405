// Package session holds the per-group chat state: the canonical timeline
// plus the flags, connection state and upload records that belong to it.
// All mutation funnels through the store so readers never observe a
// partial or conflicting view.
package session

import (
	"errors"
	"sort"
	"sync"
	"time"

	"hubsync/pkg/models"
	"hubsync/pkg/timeline"
	"hubsync/pkg/transport"
)

var (
	// ErrMissingGroup is returned when an operation is issued without a
	// group id.
	ErrMissingGroup = errors.New("missing group id")
	// ErrSendBusy is returned when a send for the group is already
	// pending; no second request is issued.
	ErrSendBusy = errors.New("still sending the previous message")
	// ErrNoFile is returned by UploadAttachment when no file was given.
	ErrNoFile = errors.New("no file selected")
)

// Connector is the push-channel lifecycle the store drives; implemented by
// push.Manager. A nil Connector disables the push channel (REST only).
type Connector interface {
	Connect(groupID string)
	Disconnect(groupID string)
	CloseAll()
}

// UploadRecord tracks one attachment upload keyed by a correlation id.
type UploadRecord struct {
	ID        string                  `json:"id"`
	Filename  string                  `json:"filename"`
	Status    string                  `json:"status"`
	Error     string                  `json:"error,omitempty"`
	Result    *transport.UploadResult `json:"result,omitempty"`
	UpdatedAt time.Time               `json:"updatedAt"`
}

// groupSession is the per-group record. Zero value is a valid empty session.
type groupSession struct {
	timeline  []models.Message
	loading   bool
	hasMore   bool
	sending   bool
	lastErr   error
	connState models.ConnState
}

// Snapshot is a point-in-time copy of one group's state, safe to hand to
// any reader.
type Snapshot struct {
	GroupID   string            `json:"groupId"`
	Messages  []models.Message  `json:"messages"`
	Loading   bool              `json:"loading"`
	HasMore   bool              `json:"hasMore"`
	Sending   bool              `json:"sending"`
	ConnState models.ConnState  `json:"connectionState"`
	LastError string            `json:"lastError,omitempty"`
}

// Store is the aggregate root binding history loading, sends, uploads and
// the push channel per group id. Sessions are created lazily on first
// access and live until Reset or a manual Disconnect for their group.
type Store struct {
	api      *transport.Client
	conns    Connector
	pageSize int

	mu       sync.Mutex
	groups   map[string]*groupSession
	uploads  map[string]*UploadRecord
	watchers map[string][]chan struct{}
}

func NewStore(api *transport.Client, pageSize int) *Store {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &Store{
		api:      api,
		pageSize: pageSize,
		groups:   map[string]*groupSession{},
		uploads:  map[string]*UploadRecord{},
		watchers: map[string][]chan struct{}{},
	}
}

// SetConnector attaches the push-channel manager. Set once during wiring,
// before the store is used.
func (st *Store) SetConnector(c Connector) { st.conns = c }

// ensureLocked returns the session for a group, creating it lazily.
func (st *Store) ensureLocked(groupID string) *groupSession {
	s := st.groups[groupID]
	if s == nil {
		s = &groupSession{connState: models.ConnIdle}
		st.groups[groupID] = s
	}
	return s
}

// Connect opens the push channel for a group. Failures are absorbed into
// session state; nothing is returned.
func (st *Store) Connect(groupID string) {
	if st.conns == nil || groupID == "" {
		return
	}
	st.conns.Connect(groupID)
}

// Disconnect tears down the group's push channel and clears the whole
// session record: timeline, flags and pending reconnect. Safe to call when
// nothing exists for the group.
func (st *Store) Disconnect(groupID string) {
	if st.conns != nil {
		st.conns.Disconnect(groupID)
	}
	st.mu.Lock()
	delete(st.groups, groupID)
	st.mu.Unlock()
	st.notify(groupID)
}

// Reset clears every session: used on logout or account switch. All push
// connections are closed and pending reconnects cancelled first.
func (st *Store) Reset() {
	if st.conns != nil {
		st.conns.CloseAll()
	}
	st.mu.Lock()
	groups := make([]string, 0, len(st.groups))
	for g := range st.groups {
		groups = append(groups, g)
	}
	st.groups = map[string]*groupSession{}
	st.uploads = map[string]*UploadRecord{}
	st.mu.Unlock()

	for _, g := range groups {
		st.notify(g)
	}
	st.notify("")
}

// Groups lists the group ids with a session, sorted for stable output.
func (st *Store) Groups() []string {
	st.mu.Lock()
	out := make([]string, 0, len(st.groups))
	for g := range st.groups {
		out = append(out, g)
	}
	st.mu.Unlock()
	sort.Strings(out)
	return out
}

// Snapshot copies one group's current state. An untouched group yields an
// empty idle snapshot.
func (st *Store) Snapshot(groupID string) Snapshot {
	st.mu.Lock()
	defer st.mu.Unlock()

	snap := Snapshot{GroupID: groupID, Messages: []models.Message{}, ConnState: models.ConnIdle}
	s := st.groups[groupID]
	if s == nil {
		return snap
	}
	snap.Messages = append(snap.Messages, s.timeline...)
	snap.Loading = s.loading
	snap.HasMore = s.hasMore
	snap.Sending = s.sending
	if s.connState != "" {
		snap.ConnState = s.connState
	}
	if s.lastErr != nil {
		snap.LastError = s.lastErr.Error()
	}
	return snap
}

// Uploads copies the upload records, newest first.
func (st *Store) Uploads() []UploadRecord {
	st.mu.Lock()
	out := make([]UploadRecord, 0, len(st.uploads))
	for _, r := range st.uploads {
		out = append(out, *r)
	}
	st.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

// Watch returns a channel that signals whenever the group's state changes,
// plus a cancel func. The empty group id watches store-wide events
// (uploads, reset). Signals coalesce; readers snapshot on wake.
func (st *Store) Watch(groupID string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	st.mu.Lock()
	st.watchers[groupID] = append(st.watchers[groupID], ch)
	st.mu.Unlock()

	cancel := func() {
		st.mu.Lock()
		defer st.mu.Unlock()
		list := st.watchers[groupID]
		for i, c := range list {
			if c == ch {
				st.watchers[groupID] = append(list[:i], list[i+1:]...)
				return
			}
		}
	}
	return ch, cancel
}

func (st *Store) notify(groupID string) {
	st.mu.Lock()
	list := append([]chan struct{}{}, st.watchers[groupID]...)
	st.mu.Unlock()
	for _, ch := range list {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// --- push.Sink implementation ---

// ApplyPush append-merges one inbound push payload into the group timeline.
func (st *Store) ApplyPush(groupID string, raw timeline.Raw) {
	msgs := timeline.Normalize([]timeline.Raw{raw})
	if len(msgs) == 0 {
		return
	}
	st.mu.Lock()
	s := st.ensureLocked(groupID)
	s.timeline = timeline.Merge(s.timeline, msgs, timeline.Append)
	st.mu.Unlock()
	st.notify(groupID)
}

// SetConnState records the push-channel state. ConnIdle does not create a
// session: it is the cleared state after a manual disconnect.
func (st *Store) SetConnState(groupID string, state models.ConnState) {
	st.mu.Lock()
	if state == models.ConnIdle {
		if s := st.groups[groupID]; s != nil {
			s.connState = state
		}
	} else {
		st.ensureLocked(groupID).connState = state
	}
	st.mu.Unlock()
	st.notify(groupID)
}

// RecordGroupError stores a background error (push channel build, open or
// server-signalled) for UI inspection without closing anything.
func (st *Store) RecordGroupError(groupID string, err error) {
	st.mu.Lock()
	st.ensureLocked(groupID).lastErr = err
	st.mu.Unlock()
	st.notify(groupID)
}
