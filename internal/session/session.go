// Package session owns every live connection: binding authenticated
// identities to sessions, disconnect-with-grace reconnect, and
// push/broadcast of outbound frames. See spec.md §3 and §4.2.
package session

import (
	"net"
	"sync"
	"time"
)

// State is the session's place in the lifecycle state machine
// described in spec.md §4.2.
type State int

const (
	StateActive State = iota
	StateDisconnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateDisconnected:
		return "disconnected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Transport abstracts the underlying connection so the same Session
// type serves a raw TCP conn or a WebSocket conn (internal/transport).
type Transport interface {
	net.Conn
}

// Session is the server-side view of one client connection, per
// spec.md §3.
type Session struct {
	mu sync.RWMutex

	id              uint64
	remoteAddress   string
	roleID          uint64
	roleName        string
	accountID       string
	serverID        string
	authenticated   bool
	reconnectToken  string
	state           State
	lastActiveAt    time.Time
	disconnectedAt  time.Time
	createdAt       time.Time

	conn Transport

	// outbox is the per-connection bounded outbound queue; the writer
	// goroutine owns draining it. Assigned by the manager at creation.
	outbox Outbox
}

// ID is the process-unique monotonically increasing session id.
func (s *Session) ID() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

func (s *Session) RemoteAddress() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.remoteAddress
}

func (s *Session) RoleID() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roleID
}

func (s *Session) AccountID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accountID
}

func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) ReconnectToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reconnectToken
}

func (s *Session) touch() {
	s.lastActiveAt = time.Now()
}

// Outbox is the bounded per-connection write queue. Implemented in
// outbox.go atop Workiva/go-datastructures' ring-buffer queue.
type Outbox interface {
	// TryPush enqueues a frame for the writer goroutine. It returns
	// false immediately (no blocking) if the queue is full — the
	// caller maps that to the slow-client bounce, per spec.md §4.2.
	TryPush(frame []byte) bool
	Close()
}
