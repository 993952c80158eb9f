package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vantrix/realmcore/internal/actorsystem"
	"github.com/vantrix/realmcore/internal/codec"
)

type fakeSession struct {
	id   uint64
	role uint64
	auth bool
}

func (s fakeSession) ID() uint64         { return s.id }
func (s fakeSession) RoleID() uint64     { return s.role }
func (s fakeSession) Authenticated() bool { return s.auth }

type recordingPusher struct {
	mu     sync.Mutex
	frames map[uint64][][]byte
}

func newRecordingPusher() *recordingPusher {
	return &recordingPusher{frames: make(map[uint64][][]byte)}
}

func (p *recordingPusher) PushToSession(sessionID uint64, frame []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frames[sessionID] = append(p.frames[sessionID], frame)
	return true
}

func (p *recordingPusher) last(sessionID uint64) (codec.Message, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	frames := p.frames[sessionID]
	if len(frames) == 0 {
		return codec.Message{}, false
	}
	c := codec.New(0)
	msg, _, err := c.DecodeFrame(frames[len(frames)-1])
	if err != nil {
		return codec.Message{}, false
	}
	return msg, true
}

// plainReply encodes success bodies verbatim (as a []byte) and errors
// as a single-byte kind tag, just enough to assert on in tests.
type plainReply struct{}

func (plainReply) EncodeSuccess(resp any) ([]byte, error) {
	if resp == nil {
		return []byte{}, nil
	}
	b, ok := resp.([]byte)
	if !ok {
		return nil, errors.New("plainReply: resp must be []byte")
	}
	return b, nil
}

func (plainReply) EncodeError(kind ErrorKind, detail string) ([]byte, error) {
	return []byte{byte(kind)}, nil
}

func newTestDispatcher(pusher Pusher) *Dispatcher {
	return New(NewRegistry(), codec.New(0), pusher, nil, nil, plainReply{}, nil)
}

func TestDispatchUnauthorizedWhenAuthRequired(t *testing.T) {
	pusher := newRecordingPusher()
	d := newTestDispatcher(pusher)
	d.Registry.Register(&Handler{
		ProtocolKey: 1,
		Name:        "secure.ping",
		RequireAuth: true,
		Decode:      func(body []byte) (any, error) { return body, nil },
		Invoke:      func(rc *RequestContext, req any) (any, error) { return []byte("pong"), nil },
	})

	sess := fakeSession{id: 7, auth: false}
	d.Dispatch(context.Background(), sess, codec.Message{SeqID: 1, ProtocolID: 0, MethodID: 1})

	resp, ok := pusher.last(7)
	if !ok {
		t.Fatal("expected a reply frame")
	}
	if len(resp.Body) != 1 || ErrorKind(resp.Body[0]) != ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized body, got %v", resp.Body)
	}
}

func TestDispatchUnknownProtocol(t *testing.T) {
	pusher := newRecordingPusher()
	d := newTestDispatcher(pusher)

	sess := fakeSession{id: 3, auth: true}
	d.Dispatch(context.Background(), sess, codec.Message{SeqID: 9, ProtocolID: 5, MethodID: 9})

	resp, ok := pusher.last(3)
	if !ok {
		t.Fatal("expected a reply frame")
	}
	if ErrorKind(resp.Body[0]) != ErrUnknownProtocol {
		t.Fatalf("expected ErrUnknownProtocol, got %v", resp.Body)
	}
}

func TestDispatchEchoesRequestSeqAndProtocol(t *testing.T) {
	pusher := newRecordingPusher()
	d := newTestDispatcher(pusher)
	d.Registry.Register(&Handler{
		ProtocolKey: (1 << 8) | 2,
		Name:        "echo",
		Decode:      func(body []byte) (any, error) { return body, nil },
		Invoke:      func(rc *RequestContext, req any) (any, error) { return req.([]byte), nil },
	})

	sess := fakeSession{id: 1, auth: true}
	d.Dispatch(context.Background(), sess, codec.Message{SeqID: 42, ProtocolID: 1, MethodID: 2, Body: []byte("hi")})

	resp, ok := pusher.last(1)
	if !ok {
		t.Fatal("expected a reply frame")
	}
	if resp.SeqID != 42 || resp.ProtocolID != 1 || resp.MethodID != 2 {
		t.Fatalf("expected echoed seq/protocol/method, got %+v", resp)
	}
	if string(resp.Body) != "hi" {
		t.Fatalf("expected echoed body, got %q", resp.Body)
	}
}

func TestDispatchPanicIsContained(t *testing.T) {
	pusher := newRecordingPusher()
	d := newTestDispatcher(pusher)
	d.Registry.Register(&Handler{
		ProtocolKey: 1,
		Name:        "boom",
		Decode:      func(body []byte) (any, error) { return body, nil },
		Invoke: func(rc *RequestContext, req any) (any, error) {
			panic("kaboom")
		},
	})

	sess := fakeSession{id: 2, auth: true}
	d.Dispatch(context.Background(), sess, codec.Message{SeqID: 1, MethodID: 1})

	resp, ok := pusher.last(2)
	if !ok {
		t.Fatal("expected a reply frame despite handler panic")
	}
	if ErrorKind(resp.Body[0]) != ErrHandlerFailed {
		t.Fatalf("expected ErrHandlerFailed, got %v", resp.Body)
	}
}

func TestDispatchRateLimited(t *testing.T) {
	pusher := newRecordingPusher()
	d := newTestDispatcher(pusher)
	d.Registry.Register(&Handler{
		ProtocolKey:     1,
		Name:            "limited",
		RateLimitPerSec: 1,
		Decode:          func(body []byte) (any, error) { return body, nil },
		Invoke:          func(rc *RequestContext, req any) (any, error) { return []byte("ok"), nil },
	})

	sess := fakeSession{id: 4, auth: true}
	d.Dispatch(context.Background(), sess, codec.Message{SeqID: 1, MethodID: 1})
	d.Dispatch(context.Background(), sess, codec.Message{SeqID: 2, MethodID: 1})

	resp, ok := pusher.last(4)
	if !ok {
		t.Fatal("expected a reply frame")
	}
	if ErrorKind(resp.Body[0]) != ErrRateLimited {
		t.Fatalf("expected second call to be rate limited, got %v", resp.Body)
	}
}

type fakeRouter struct {
	delay time.Duration
	resp  any
	err   error
}

func (r fakeRouter) Route(ctx context.Context, actorID uint64, kind string, payload any, timeout time.Duration) (any, error) {
	select {
	case <-time.After(r.delay):
		return r.resp, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestDispatchActorTimeout(t *testing.T) {
	pusher := newRecordingPusher()
	d := New(NewRegistry(), codec.New(0), pusher, fakeRouter{delay: 50 * time.Millisecond}, nil, plainReply{}, nil)
	d.DefaultDelay = 5 * time.Millisecond
	d.Registry.Register(&Handler{
		ProtocolKey: 1,
		Name:        "slow.actor",
		RunOn:       RunOnActor,
		Decode:      func(body []byte) (any, error) { return body, nil },
	})

	sess := fakeSession{id: 5, role: 9, auth: true}
	d.Dispatch(context.Background(), sess, codec.Message{SeqID: 1, MethodID: 1})

	deadline := time.After(200 * time.Millisecond)
	for {
		if resp, ok := pusher.last(5); ok {
			if ErrorKind(resp.Body[0]) != ErrTimeout {
				t.Fatalf("expected ErrTimeout, got %v", resp.Body)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for actor-timeout reply")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestDispatchActorErrorsClassifyToWireKinds(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"mailbox full", actorsystem.ErrMailboxFull, ErrBusy},
		{"actor stopping", actorsystem.ErrActorStopping, ErrBusy},
		{"system overloaded", actorsystem.ErrSystemOverloaded, ErrSystemOverloaded},
		{"load failed", actorsystem.ErrLoadFailed, ErrLoadFailed},
	}

	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pusher := newRecordingPusher()
			d := New(NewRegistry(), codec.New(0), pusher, fakeRouter{err: tc.err}, nil, plainReply{}, nil)
			d.Registry.Register(&Handler{
				ProtocolKey: 1,
				Name:        "actor.op",
				RunOn:       RunOnActor,
				Decode:      func(body []byte) (any, error) { return body, nil },
			})

			sess := fakeSession{id: uint64(100 + i), role: 9, auth: true}
			d.Dispatch(context.Background(), sess, codec.Message{SeqID: 1, MethodID: 1})

			deadline := time.After(200 * time.Millisecond)
			for {
				if resp, ok := pusher.last(sess.id); ok {
					if ErrorKind(resp.Body[0]) != tc.want {
						t.Fatalf("expected %v, got %v", tc.want, resp.Body)
					}
					return
				}
				select {
				case <-deadline:
					t.Fatal("timed out waiting for classified actor-error reply")
				case <-time.After(time.Millisecond):
				}
			}
		})
	}
}

func TestDispatchHandlerFailedStillWinsForUnrecognizedActorError(t *testing.T) {
	pusher := newRecordingPusher()
	d := New(NewRegistry(), codec.New(0), pusher, fakeRouter{err: errors.New("boom")}, nil, plainReply{}, nil)
	d.Registry.Register(&Handler{
		ProtocolKey: 1,
		Name:        "actor.op",
		RunOn:       RunOnActor,
		Decode:      func(body []byte) (any, error) { return body, nil },
	})

	sess := fakeSession{id: 6, role: 9, auth: true}
	d.Dispatch(context.Background(), sess, codec.Message{SeqID: 1, MethodID: 1})

	deadline := time.After(200 * time.Millisecond)
	for {
		if resp, ok := pusher.last(6); ok {
			if ErrorKind(resp.Body[0]) != ErrHandlerFailed {
				t.Fatalf("expected ErrHandlerFailed, got %v", resp.Body)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for reply")
		case <-time.After(time.Millisecond):
		}
	}
}
