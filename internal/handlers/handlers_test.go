package handlers

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/vantrix/realmcore/internal/dispatch"
	"github.com/vantrix/realmcore/internal/session"
)

type fakeConn struct{}

func (fakeConn) Read([]byte) (int, error)           { return 0, nil }
func (fakeConn) Write(p []byte) (int, error)        { return len(p), nil }
func (fakeConn) Close() error                       { return nil }
func (fakeConn) LocalAddr() net.Addr                { return fakeAddr{} }
func (fakeConn) RemoteAddr() net.Addr               { return fakeAddr{} }
func (fakeConn) SetDeadline(t time.Time) error      { return nil }
func (fakeConn) SetReadDeadline(t time.Time) error  { return nil }
func (fakeConn) SetWriteDeadline(t time.Time) error { return nil }

type fakeAddr struct{}

func (fakeAddr) Network() string { return "tcp" }
func (fakeAddr) String() string  { return "test:0" }

type stubCreds struct {
	roleID   uint64
	roleName string
	err      error
}

func (s stubCreds) Authenticate(account, token string) (uint64, string, error) {
	if s.err != nil {
		return 0, "", s.err
	}
	return s.roleID, s.roleName, nil
}

func TestRegisterPingDecodesAndInvokes(t *testing.T) {
	reg := dispatch.NewRegistry()
	RegisterPing(reg, 1)

	h, ok := reg.Lookup(1)
	if !ok {
		t.Fatal("expected ping handler to be registered")
	}
	req, err := h.Decode(nil)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	resp, err := h.Invoke(&dispatch.RequestContext{Ctx: context.Background()}, req)
	if err != nil {
		t.Fatalf("invoke failed: %v", err)
	}
	m, ok := resp.(map[string]int64)
	if !ok || m["serverTimeMs"] <= 0 {
		t.Fatalf("expected a positive serverTimeMs, got %+v", resp)
	}
}

func TestRegisterEchoRoundTrips(t *testing.T) {
	reg := dispatch.NewRegistry()
	RegisterEcho(reg, 2)

	h, _ := reg.Lookup(2)
	req, err := h.Decode([]byte("hello"))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	resp, err := h.Invoke(&dispatch.RequestContext{}, req)
	if err != nil {
		t.Fatalf("invoke failed: %v", err)
	}
	if string(resp.([]byte)) != "hello" {
		t.Fatalf("expected echo to round-trip the body, got %q", resp)
	}
}

func TestRegisterLoginRejectsMissingFields(t *testing.T) {
	reg := dispatch.NewRegistry()
	mgr := session.NewManager(session.DefaultConfig())
	RegisterLogin(reg, mgr, stubCreds{roleID: 5, roleName: "hero"}, 3)

	h, _ := reg.Lookup(3)
	if _, err := h.Decode([]byte(`{"account":"a"}`)); err == nil {
		t.Fatal("expected decode to reject a body missing token")
	}
}

func TestRegisterLoginBindsRoleOnSuccess(t *testing.T) {
	reg := dispatch.NewRegistry()
	mgr := session.NewManager(session.DefaultConfig())
	RegisterLogin(reg, mgr, stubCreds{roleID: 5, roleName: "hero"}, 3)

	sess := mgr.CreateSession(fakeConn{})
	h, _ := reg.Lookup(3)
	req, err := h.Decode([]byte(`{"account":"a","token":"t"}`))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	resp, err := h.Invoke(&dispatch.RequestContext{SessionID: sess.ID()}, req)
	if err != nil {
		t.Fatalf("invoke failed: %v", err)
	}
	data := resp.(map[string]any)
	if data["roleId"].(uint64) != 5 {
		t.Fatalf("expected roleId 5, got %+v", data)
	}
	if sess.RoleID() != 5 || !sess.Authenticated() {
		t.Fatalf("expected login to bind the session's role, got roleID=%d authenticated=%v", sess.RoleID(), sess.Authenticated())
	}
}
