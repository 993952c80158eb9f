package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/vantrix/realmcore/internal/actorsystem"
	"github.com/vantrix/realmcore/internal/codec"
	"github.com/vantrix/realmcore/internal/logging"
)

// ErrorKind is the abstract error taxonomy from spec.md §7. It never
// leaves the request boundary as a Go error value; it's encoded into
// the reply envelope by the caller-supplied error encoder.
type ErrorKind int

const (
	ErrNone ErrorKind = iota
	ErrBadRequest
	ErrUnauthorized
	ErrRoleNotSelected
	ErrUnknownProtocol
	ErrRateLimited
	ErrBusy
	ErrTimeout
	ErrHandlerFailed
	ErrSystemOverloaded
	ErrLoadFailed
)

// SessionView is the minimal session-derived context the dispatcher
// needs; internal/session.Session satisfies it directly.
type SessionView interface {
	ID() uint64
	RoleID() uint64
	Authenticated() bool
}

// Pusher delivers an encoded frame back to the originating connection.
type Pusher interface {
	PushToSession(sessionID uint64, frame []byte) bool
}

// ActorRouter routes an actor-bound request to the entity keyed by
// actorID and waits (up to timeout) for the handler's reply, per
// spec.md §4.3 step 6's Actor runOn. internal/actorsystem.System[S]
// implements this via its generic Ask, boxing kind/payload into its
// own Message type.
type ActorRouter interface {
	Route(ctx context.Context, actorID uint64, kind string, payload any, timeout time.Duration) (any, error)
}

// AsyncPool executes a func() on a general-purpose worker pool,
// implementing the cooperative-async runOn from spec.md §4.3.
type AsyncPool interface {
	Submit(func())
}

// ReplyEncoder turns a handler result (or classified error) into the
// wire body of a Response frame. The core does not define the
// envelope's internal (code, message) layout — that's a handler-layer
// contract per spec.md §6 — so callers supply it.
type ReplyEncoder interface {
	EncodeSuccess(resp any) ([]byte, error)
	EncodeError(kind ErrorKind, detail string) ([]byte, error)
}

// Metrics receives per-request observations for the observability
// sink described in spec.md §4.3/§7. Optional: a nil Metrics is fine.
type Metrics interface {
	ObserveRequest(handlerName string, durationNs uint64, kind ErrorKind)
	ObserveSlow(handlerName string, durationMs int64)
}

// Dispatcher implements the pipeline of spec.md §4.3.
type Dispatcher struct {
	Registry     *Registry
	Codec        *codec.Codec
	Pusher       Pusher
	ActorRouter  ActorRouter
	AsyncPool    AsyncPool
	Reply        ReplyEncoder
	Metrics      Metrics
	limiters     *limiterTable
	DefaultDelay time.Duration
}

// New constructs a Dispatcher. Any of ActorRouter/AsyncPool/Metrics
// may be nil if the deployment doesn't use that runOn kind / doesn't
// wire metrics.
func New(registry *Registry, c *codec.Codec, pusher Pusher, router ActorRouter, pool AsyncPool, reply ReplyEncoder, metrics Metrics) *Dispatcher {
	return &Dispatcher{
		Registry:     registry,
		Codec:        c,
		Pusher:       pusher,
		ActorRouter:  router,
		AsyncPool:    pool,
		Reply:        reply,
		Metrics:      metrics,
		limiters:     newLimiterTable(),
		DefaultDelay: DefaultTimeout,
	}
}

// Dispatch executes the full pipeline for one inbound Request frame,
// per spec.md §4.3. It always pushes exactly one Response frame
// carrying the request's seqId back to the originating session,
// except when the request is a Push (seqId==0), which the dispatcher
// never receives from a client (pushes are server->client only) and
// which this method treats as a protocol error if it somehow occurs.
func (d *Dispatcher) Dispatch(ctx context.Context, sess SessionView, msg codec.Message) {
	if msg.Kind() != codec.KindRequest {
		logging.Warnf("dispatch: session %d sent a push-shaped frame (seqId=0); ignoring", sess.ID())
		return
	}

	start := time.Now()
	h, ok := d.Registry.Lookup(msg.ProtocolKey())
	if !ok {
		d.reply(sess, msg, nil, ErrUnknownProtocol, "unknown protocol")
		return
	}

	if h.RequireAuth && !sess.Authenticated() {
		d.finish(h, start, ErrUnauthorized)
		d.reply(sess, msg, nil, ErrUnauthorized, "authentication required")
		return
	}
	if h.RequireRole && sess.RoleID() == 0 {
		d.finish(h, start, ErrRoleNotSelected)
		d.reply(sess, msg, nil, ErrRoleNotSelected, "no role selected")
		return
	}
	if !d.limiters.Allow(h.ProtocolKey, h.RateLimitPerSec) {
		d.finish(h, start, ErrRateLimited)
		d.reply(sess, msg, nil, ErrRateLimited, "rate limited")
		return
	}

	req, err := h.Decode(msg.Body)
	if err != nil {
		d.finish(h, start, ErrBadRequest)
		d.reply(sess, msg, nil, ErrBadRequest, "malformed request body")
		return
	}

	rc := &RequestContext{
		Ctx:           ctx,
		SessionID:     sess.ID(),
		RoleID:        sess.RoleID(),
		Authenticated: sess.Authenticated(),
		SeqID:         msg.SeqID,
	}
	reply := replyTarget{sessID: sess.ID(), seqID: msg.SeqID, protocolID: msg.ProtocolID, methodID: msg.MethodID}

	switch h.RunOn {
	case RunOnCaller:
		d.runInline(h, rc, req, reply, start)
	case RunOnAsync:
		d.runAsync(h, rc, req, reply, start)
	case RunOnActor:
		d.runActor(h, rc, req, reply, start)
	default:
		d.finish(h, start, ErrHandlerFailed)
		d.replyTo(reply, nil, ErrHandlerFailed, "unrecognized runOn")
	}
}

func (d *Dispatcher) runInline(h *Handler, rc *RequestContext, req any, reply replyTarget, start time.Time) {
	resp, err := d.safeInvoke(h, rc, req)
	d.complete(h, start, reply, resp, err)
}

func (d *Dispatcher) runAsync(h *Handler, rc *RequestContext, req any, reply replyTarget, start time.Time) {
	task := func() {
		resp, err := d.safeInvoke(h, rc, req)
		d.complete(h, start, reply, resp, err)
	}
	if d.AsyncPool != nil {
		d.AsyncPool.Submit(task)
	} else {
		go task()
	}
}

func (d *Dispatcher) runActor(h *Handler, rc *RequestContext, req any, reply replyTarget, start time.Time) {
	if d.ActorRouter == nil {
		d.finish(h, start, ErrHandlerFailed)
		d.replyTo(reply, nil, ErrHandlerFailed, "no actor router configured")
		return
	}
	timeout := d.DefaultDelay
	deadlineCtx, cancel := context.WithTimeout(rc.Ctx, timeout)
	go func() {
		defer cancel()
		resp, err := d.ActorRouter.Route(deadlineCtx, rc.RoleID, h.Name, req, timeout)
		if err == nil {
			d.complete(h, start, reply, resp, nil)
			return
		}
		if deadlineCtx.Err() != nil {
			d.finish(h, start, ErrTimeout)
			d.replyTo(reply, nil, ErrTimeout, "request timed out")
			return
		}
		if kind, ok := classifyActorError(err); ok {
			d.finish(h, start, kind)
			d.replyTo(reply, nil, kind, err.Error())
			return
		}
		d.complete(h, start, reply, resp, err)
	}()
}

// classifyActorError maps the actor runtime's admission/lifecycle
// sentinels onto the dispatcher's wire-visible error taxonomy (spec.md
// §4.4 Backpressure, §7), instead of letting them fall through to the
// generic HandlerFailed. Any other error reports false so the caller
// keeps its existing HandlerFailed handling.
func classifyActorError(err error) (ErrorKind, bool) {
	switch {
	case errors.Is(err, actorsystem.ErrMailboxFull), errors.Is(err, actorsystem.ErrActorStopping):
		return ErrBusy, true
	case errors.Is(err, actorsystem.ErrSystemOverloaded):
		return ErrSystemOverloaded, true
	case errors.Is(err, actorsystem.ErrLoadFailed):
		return ErrLoadFailed, true
	default:
		return ErrNone, false
	}
}

// safeInvoke recovers from panics inside handler bodies, per spec.md
// §4.4's failure containment: the fault is caught, logged with a
// trace id, and counted, but the process and the actor stay alive.
func (d *Dispatcher) safeInvoke(h *Handler, rc *RequestContext, req any) (resp any, err error) {
	defer func() {
		if r := recover(); r != nil {
			traceID := shortuuid.New()
			logging.Errorf("handler %q panicked (trace=%s): %v", h.Name, traceID, r)
			err = errHandlerPanic{trace: traceID}
		}
	}()
	return h.Invoke(rc, req)
}

type errHandlerPanic struct{ trace string }

func (e errHandlerPanic) Error() string { return "handler panicked, trace=" + e.trace }

func (d *Dispatcher) complete(h *Handler, start time.Time, reply replyTarget, resp any, err error) {
	if err != nil {
		detail := err.Error()
		var panicErr errHandlerPanic
		if errors.As(err, &panicErr) {
			detail = "handler failed"
		}
		d.finish(h, start, ErrHandlerFailed)
		d.replyTo(reply, nil, ErrHandlerFailed, detail)
		return
	}
	d.finish(h, start, ErrNone)
	d.replyTo(reply, resp, ErrNone, "")
}

func (d *Dispatcher) finish(h *Handler, start time.Time, kind ErrorKind) {
	elapsed := time.Since(start)
	h.Stats.record(uint64(elapsed.Nanoseconds()), kind != ErrNone)
	if d.Metrics != nil {
		d.Metrics.ObserveRequest(h.Name, uint64(elapsed.Nanoseconds()), kind)
	}
	if h.SlowThresholdMs > 0 && elapsed.Milliseconds() > int64(h.SlowThresholdMs) {
		if d.Metrics != nil {
			d.Metrics.ObserveSlow(h.Name, elapsed.Milliseconds())
		}
		logging.Warnf("handler %q slow: %dms (threshold %dms)", h.Name, elapsed.Milliseconds(), h.SlowThresholdMs)
	}
}

// replyTarget carries everything needed to address and frame a
// response, captured from the request before it's handed off to a
// runOn (Caller/Async/Actor) that may complete on another goroutine.
type replyTarget struct {
	sessID     uint64
	seqID      uint32
	protocolID uint16
	methodID   uint16
}

func (d *Dispatcher) reply(sess SessionView, msg codec.Message, resp any, kind ErrorKind, detail string) {
	d.replyTo(replyTarget{sessID: sess.ID(), seqID: msg.SeqID, protocolID: msg.ProtocolID, methodID: msg.MethodID}, resp, kind, detail)
}

// replyTo encodes resp (or the classified error) and pushes it back to
// the session that sent the original request. The response frame
// echoes the request's protocolId/methodId so the client can route it
// without keeping its own seqId->protocol table.
func (d *Dispatcher) replyTo(target replyTarget, resp any, kind ErrorKind, detail string) {
	var body []byte
	var err error
	if kind == ErrNone {
		body, err = d.Reply.EncodeSuccess(resp)
	} else {
		body, err = d.Reply.EncodeError(kind, detail)
	}
	if err != nil {
		logging.Errorf("dispatch: failed to encode reply for session %d: %v", target.sessID, err)
		return
	}
	frame := d.Codec.Encode(codec.Message{
		SeqID:      target.seqID,
		ProtocolID: target.protocolID,
		MethodID:   target.methodID,
		Body:       body,
	})
	d.Pusher.PushToSession(target.sessID, frame)
}
