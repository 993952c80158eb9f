// Package dispatch implements the Protocol Dispatcher: registry of
// handlers keyed by protocol id, and the per-request pipeline
// (auth -> rate-limit -> decode -> invoke -> encode -> reply) described
// in spec.md §4.3.
package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/vantrix/realmcore/internal/logging"
)

// RunOn selects the execution model for a handler's invoker, per
// spec.md §3/§4.3.
type RunOn int

const (
	RunOnCaller RunOn = iota
	RunOnAsync
	RunOnActor
)

// RequestContext is handed to every invoker. It exposes the session
// identity and a deadline-bound context; it intentionally does not
// expose the raw Session type, keeping handler code decoupled from
// transport concerns.
type RequestContext struct {
	Ctx           context.Context
	SessionID     uint64
	RoleID        uint64
	Authenticated bool
	SeqID         uint32
}

// Decoder turns a raw request body into the handler's request type.
type Decoder func(body []byte) (any, error)

// Invoker executes the handler's business logic against a decoded
// request, returning a response value to encode or an error.
type Invoker func(rc *RequestContext, req any) (any, error)

// Encoder serializes a response value back to bytes for the wire.
// Handler.Encode is optional and the Dispatcher does not call it: every
// reply body, success or error, comes from the Dispatcher's
// ReplyEncoder (EncodeSuccess or EncodeError).
type Encoder func(resp any) ([]byte, error)

// Handler is the static, immutable-after-registration descriptor from
// spec.md §3.
type Handler struct {
	ProtocolKey     uint32
	Name            string
	RequireAuth     bool
	RequireRole     bool
	RateLimitPerSec int
	SlowThresholdMs int
	RunOn           RunOn
	ActorKind       string // only meaningful when RunOn == RunOnActor
	Decode          Decoder
	Encode          Encoder
	Invoke          Invoker

	Stats Stats
}

// Registry holds every handler registered at startup, keyed by
// protocolKey. Registration is a one-time startup activity; duplicate
// keys are a Fatal invariant violation per spec.md §7.
type Registry struct {
	mu       sync.RWMutex
	handlers map[uint32]*Handler

	unseenMu sync.Mutex
	unseen   map[uint32]bool
}

func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[uint32]*Handler),
		unseen:   make(map[uint32]bool),
	}
}

// Register adds h to the registry. It exits the process (via
// logging.Fatalf) on a duplicate protocolKey or a nil Decode, matching spec.md §7's Fatal class: invariants
// violated at startup fail fast rather than being recovered.
func (r *Registry) Register(h *Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[h.ProtocolKey]; exists {
		logging.Fatalf("dispatch: duplicate protocolKey %d (handler %q)", h.ProtocolKey, h.Name)
		return
	}
	if h.Decode == nil {
		logging.Fatalf("dispatch: handler %q missing decoder", h.Name)
		return
	}
	r.handlers[h.ProtocolKey] = h
	logging.Infof("dispatch: registered handler %q (key=%d, runOn=%d)", h.Name, h.ProtocolKey, h.RunOn)
}

// Lookup resolves a handler by protocolKey. The first lookup miss for
// a given key logs a warning; subsequent misses for the same key are
// suppressed, per spec.md §7's UnknownProtocol note.
func (r *Registry) Lookup(key uint32) (*Handler, bool) {
	r.mu.RLock()
	h, ok := r.handlers[key]
	r.mu.RUnlock()
	if ok {
		return h, true
	}
	r.unseenMu.Lock()
	first := !r.unseen[key]
	r.unseen[key] = true
	r.unseenMu.Unlock()
	if first {
		logging.Warnf("dispatch: unknown protocol key %d", key)
	}
	return nil, false
}

// DefaultTimeout is used when a handler/request does not specify a
// deadline, per spec.md §6's dispatcher.defaultTimeoutMs.
const DefaultTimeout = 5 * time.Second
