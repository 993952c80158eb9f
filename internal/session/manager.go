package session

import (
	"crypto/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mr-tron/base58"
	cmap "github.com/orcaman/concurrent-map"
	"github.com/oklog/ulid/v2"

	"github.com/vantrix/realmcore/internal/codec"
	"github.com/vantrix/realmcore/internal/logging"
)

// KickReason classifies why a session was forcibly removed.
type KickReason string

const (
	ReasonDisplacedByLogin KickReason = "displaced_by_login"
	ReasonServerShutdown   KickReason = "server_shutdown"
	ReasonIdleTimeout      KickReason = "idle_timeout"
	ReasonProtocolError    KickReason = "protocol_error"
)

// Config bounds the Manager's behavior, matching spec.md §6's
// session.* options.
type Config struct {
	ReconnectGrace  time.Duration
	OutboxCapacity  uint64
}

func DefaultConfig() Config {
	return Config{ReconnectGrace: 30 * time.Second, OutboxCapacity: 256}
}

// Manager owns every live Session: the three indexes (by sessionId, by
// roleId, by reconnectToken) described in spec.md §4.2.
type Manager struct {
	cfg   Config
	codec *codec.Codec

	byID    cmap.ConcurrentMap
	byRole  cmap.ConcurrentMap
	byToken cmap.ConcurrentMap

	nextID atomic.Uint64

	entropy *ulid.MonotonicEntropy
	entMu   sync.Mutex
}

// NewManager constructs a Manager with the given config.
func NewManager(cfg Config) *Manager {
	if cfg.ReconnectGrace == 0 {
		cfg.ReconnectGrace = 30 * time.Second
	}
	if cfg.OutboxCapacity == 0 {
		cfg.OutboxCapacity = 256
	}
	return &Manager{
		cfg:     cfg,
		codec:   codec.New(codec.DefaultMaxFrame),
		byID:    cmap.New(),
		byRole:  cmap.New(),
		byToken: cmap.New(),
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

func (m *Manager) newToken() string {
	m.entMu.Lock()
	id := ulid.MustNew(ulid.Timestamp(time.Now()), m.entropy)
	m.entMu.Unlock()
	return base58.Encode(id.Bytes())
}

func idKey(id uint64) string {
	// cmap is string-keyed; render the numeric id compactly.
	return uint64ToString(id)
}

func uint64ToString(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

func roleKey(roleID uint64) string { return uint64ToString(roleID) }

// CreateSession allocates a new session bound to conn, in state
// Active, per spec.md §4.2.
func (m *Manager) CreateSession(conn Transport) *Session {
	id := m.nextID.Add(1)
	s := &Session{
		id:             id,
		remoteAddress:  conn.RemoteAddr().String(),
		conn:           conn,
		state:          StateActive,
		createdAt:      time.Now(),
		lastActiveAt:   time.Now(),
		reconnectToken: m.newToken(),
		outbox:         newRingOutbox(m.cfg.OutboxCapacity),
	}
	m.byID.Set(idKey(id), s)
	m.byToken.Set(s.reconnectToken, s)
	go s.runWriter()
	logging.Infof("session %d created from %s", id, s.remoteAddress)
	return s
}

// BindRole binds roleID to session s. If another session already
// holds roleID, it is kicked with ReasonDisplacedByLogin first, per
// spec.md §4.2's Displacement rule.
func (m *Manager) BindRole(s *Session, roleID uint64, roleName string) {
	if existing, ok := m.byRole.Get(roleKey(roleID)); ok {
		if old, ok := existing.(*Session); ok && old != s {
			m.Kick(old, ReasonDisplacedByLogin)
		}
	}

	s.mu.Lock()
	s.roleID = roleID
	s.roleName = roleName
	s.authenticated = true
	s.touch()
	s.mu.Unlock()

	m.byRole.Set(roleKey(roleID), s)
	logging.Infof("session %d bound to role %d (%s)", s.ID(), roleID, roleName)
}

// OnDisconnect transitions s out of Active. Unauthenticated sessions
// are removed immediately; authenticated ones enter Disconnected and
// remain in the indexes until the reconnect grace window expires.
func (m *Manager) OnDisconnect(s *Session) {
	s.mu.Lock()
	authenticated := s.authenticated
	s.mu.Unlock()

	if !authenticated {
		m.removeAll(s)
		s.outbox.Close()
		return
	}

	s.mu.Lock()
	s.state = StateDisconnected
	s.disconnectedAt = time.Now()
	s.mu.Unlock()
	logging.Infof("session %d disconnected, entering grace window", s.ID())
}

// Reconnect resumes a Disconnected session identified by token onto a
// new transport, preserving sessionId and roleId, per spec.md §4.2 and
// the Reconnect Identity testable property.
func (m *Manager) Reconnect(token string, newConn Transport) *Session {
	v, ok := m.byToken.Get(token)
	if !ok {
		return nil
	}
	s, ok := v.(*Session)
	if !ok {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateDisconnected {
		return nil
	}
	if time.Since(s.disconnectedAt) > m.cfg.ReconnectGrace {
		return nil
	}

	s.conn = newConn
	s.remoteAddress = newConn.RemoteAddr().String()
	s.state = StateActive
	s.touch()
	logging.Infof("session %d reconnected from %s", s.id, s.remoteAddress)
	return s
}

// Kick sends a best-effort kicked push, removes s from every index,
// and closes its transport. After Kick, lookups never return s again.
// The push is written directly to the transport, ahead of the bounded
// outbox, so it cannot be starved by whatever is already queued or
// dropped by a subsequent outbox.Close, per spec.md §4.2's kick
// operation and §8 scenario 2.
func (m *Manager) Kick(s *Session, reason KickReason) {
	logging.Infof("session %d kicked: %s", s.ID(), reason)
	s.mu.Lock()
	conn := s.conn
	s.state = StateClosed
	s.mu.Unlock()

	if conn != nil {
		if _, err := conn.Write(encodeKickFrame(m.codec, reason)); err != nil {
			logging.Warnf("session %d: failed to deliver kick push: %v", s.ID(), err)
		}
	}

	m.removeAll(s)
	s.outbox.Close()
	if conn != nil {
		_ = conn.Close()
	}
}

func (m *Manager) removeAll(s *Session) {
	m.byID.Remove(idKey(s.ID()))
	if s.RoleID() != 0 {
		// Only remove the role index entry if it still points at s —
		// a newer session may have already displaced it.
		if v, ok := m.byRole.Get(roleKey(s.RoleID())); ok {
			if existing, ok := v.(*Session); ok && existing == s {
				m.byRole.Remove(roleKey(s.RoleID()))
			}
		}
	}
	m.byToken.Remove(s.ReconnectToken())
}

// Push enqueues frame for roleID's active session; a no-op if no such
// session exists or it is not Active. Never blocks and never grows the
// outbound queue beyond its configured capacity, per spec.md §4.2.
func (m *Manager) Push(roleID uint64, frame []byte) bool {
	v, ok := m.byRole.Get(roleKey(roleID))
	if !ok {
		return false
	}
	s, ok := v.(*Session)
	if !ok || s.State() != StateActive {
		return false
	}
	if !s.outbox.TryPush(frame) {
		logging.Warnf("session %d: outbox full, bouncing push as slow-client", s.ID())
		return false
	}
	return true
}

// Broadcast delivers frame best-effort to every authenticated Active
// session for which filter returns true (or all, if filter is nil).
func (m *Manager) Broadcast(frame []byte, filter func(*Session) bool) {
	for item := range m.byID.IterBuffered() {
		s, ok := item.Val.(*Session)
		if !ok {
			continue
		}
		if s.State() != StateActive || !s.Authenticated() {
			continue
		}
		if filter != nil && !filter(s) {
			continue
		}
		s.outbox.TryPush(frame)
	}
}

// Reap removes every Disconnected session whose grace window has
// elapsed. Intended to run on a periodic tick (spec.md §4.2/§5).
func (m *Manager) Reap() int {
	removed := 0
	for item := range m.byID.IterBuffered() {
		s, ok := item.Val.(*Session)
		if !ok {
			continue
		}
		s.mu.Lock()
		expired := s.state == StateDisconnected && time.Since(s.disconnectedAt) > m.cfg.ReconnectGrace
		s.mu.Unlock()
		if expired {
			m.removeAll(s)
			s.outbox.Close()
			removed++
		}
	}
	if removed > 0 {
		logging.Infof("reap: removed %d expired sessions", removed)
	}
	return removed
}

// PushToSession enqueues frame directly onto the session identified by
// sessionID, regardless of role binding — used by the dispatcher to
// deliver a response/push to the connection that sent the request,
// which may not yet be authenticated.
func (m *Manager) PushToSession(sessionID uint64, frame []byte) bool {
	v, ok := m.byID.Get(idKey(sessionID))
	if !ok {
		return false
	}
	s, ok := v.(*Session)
	if !ok || s.State() != StateActive {
		return false
	}
	if !s.outbox.TryPush(frame) {
		logging.Warnf("session %d: outbox full, bouncing reply as slow-client", s.ID())
		return false
	}
	return true
}

// BySessionID looks up a tracked session by its sessionId, regardless
// of role binding — used by handlers (e.g. login) that need to bind a
// role onto the connection that sent the request.
func (m *Manager) BySessionID(sessionID uint64) (*Session, bool) {
	v, ok := m.byID.Get(idKey(sessionID))
	if !ok {
		return nil, false
	}
	s, ok := v.(*Session)
	return s, ok
}

// ByRole looks up the current session bound to roleID, if any.
func (m *Manager) ByRole(roleID uint64) (*Session, bool) {
	v, ok := m.byRole.Get(roleKey(roleID))
	if !ok {
		return nil, false
	}
	s, ok := v.(*Session)
	return s, ok
}

// Count returns the number of tracked sessions (any state).
func (m *Manager) Count() int {
	return m.byID.Count()
}
