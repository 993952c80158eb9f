package session

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/vantrix/realmcore/internal/codec"
)

// fakeConn is a minimal net.Conn for exercising the Manager without a
// real socket. It records every Write so tests can assert on what the
// Manager pushed before closing a connection.
type fakeConn struct {
	addr   string
	closed bool

	mu      sync.Mutex
	written [][]byte
}

func (f *fakeConn) Read(b []byte) (int, error) { return 0, nil }

func (f *fakeConn) Write(b []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, append([]byte(nil), b...))
	return len(b), nil
}

func (f *fakeConn) lastWrite() ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.written) == 0 {
		return nil, false
	}
	return f.written[len(f.written)-1], true
}

func (f *fakeConn) Close() error                        { f.closed = true; return nil }
func (f *fakeConn) LocalAddr() net.Addr                 { return fakeAddr(f.addr) }
func (f *fakeConn) RemoteAddr() net.Addr                { return fakeAddr(f.addr) }
func (f *fakeConn) SetDeadline(t time.Time) error       { return nil }
func (f *fakeConn) SetReadDeadline(t time.Time) error   { return nil }
func (f *fakeConn) SetWriteDeadline(t time.Time) error  { return nil }

type fakeAddr string

func (a fakeAddr) Network() string { return "fake" }
func (a fakeAddr) String() string  { return string(a) }

func TestDisplacement(t *testing.T) {
	m := NewManager(DefaultConfig())
	conn1 := &fakeConn{addr: "1.1.1.1:1"}
	s1 := m.CreateSession(conn1)
	s2 := m.CreateSession(&fakeConn{addr: "2.2.2.2:2"})

	m.BindRole(s1, 100, "hero")
	m.BindRole(s2, 100, "hero")

	got, ok := m.ByRole(100)
	if !ok || got != s2 {
		t.Fatalf("expected role 100 to resolve to s2")
	}
	if s1.State() != StateClosed {
		t.Fatalf("expected s1 to be kicked (closed), got %v", s1.State())
	}

	frame, ok := conn1.lastWrite()
	if !ok {
		t.Fatalf("expected a kicked push to be written to s1's connection before close")
	}
	msg, _, err := codec.New(0).DecodeFrame(frame)
	if err != nil {
		t.Fatalf("failed to decode kicked push frame: %v", err)
	}
	if msg.SeqID != 0 {
		t.Fatalf("expected a push frame (seqId 0), got seqId %d", msg.SeqID)
	}
	if !conn1.closed {
		t.Fatalf("expected s1's connection to be closed after the kick push")
	}
}

func TestReconnectWithinGrace(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ReconnectGrace = 50 * time.Millisecond
	m := NewManager(cfg)

	s := m.CreateSession(&fakeConn{addr: "1.1.1.1:1"})
	m.BindRole(s, 7, "mage")
	token := s.ReconnectToken()

	m.OnDisconnect(s)
	if s.State() != StateDisconnected {
		t.Fatalf("expected disconnected state")
	}

	got := m.Reconnect(token, &fakeConn{addr: "3.3.3.3:3"})
	if got == nil {
		t.Fatalf("expected reconnect to succeed within grace")
	}
	if got.ID() != s.ID() || got.RoleID() != s.RoleID() {
		t.Fatalf("reconnect changed identity: %+v", got)
	}
}

func TestReconnectAfterGraceExpires(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ReconnectGrace = 10 * time.Millisecond
	m := NewManager(cfg)

	s := m.CreateSession(&fakeConn{addr: "1.1.1.1:1"})
	m.BindRole(s, 7, "mage")
	token := s.ReconnectToken()
	m.OnDisconnect(s)

	time.Sleep(30 * time.Millisecond)
	m.Reap()

	got := m.Reconnect(token, &fakeConn{addr: "3.3.3.3:3"})
	if got != nil {
		t.Fatalf("expected reconnect to fail after grace expired")
	}
}

func TestUnauthenticatedDisconnectRemovesImmediately(t *testing.T) {
	m := NewManager(DefaultConfig())
	s := m.CreateSession(&fakeConn{addr: "1.1.1.1:1"})
	m.OnDisconnect(s)
	if m.Count() != 0 {
		t.Fatalf("expected unauthenticated session removed immediately, count=%d", m.Count())
	}
}
