package actorsystem

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sony/gobreaker"

	"github.com/vantrix/realmcore/internal/logging"
)

// LoadFunc reconstructs an entity's state from its persistence layer.
// Called exactly once per entity residency, from inside that entity's
// own goroutine, in response to Started.
type LoadFunc[S any] func(actorID uint64) (S, error)

// SaveFunc persists an entity's current state. Called from inside the
// entity's own goroutine, wrapped in the System's circuit breaker.
type SaveFunc[S any] func(actorID uint64, state S) error

// HandleFunc is the entity's business logic: given the current
// HandlerContext and an inbound Message, produce a response (or error)
// for the asker, if any.
type HandleFunc[S any] func(hc *HandlerContext[S], msg Message) (any, error)

// AlertSink receives operator-facing alerts for conditions spec.md §7
// classifies as Alert-severity (SaveFailed, SystemOverloaded, ...).
// internal/observability supplies the production implementation; nil
// is a valid no-op.
type AlertSink interface {
	Alert(kind, detail string)
}

// Config bounds one System's admission and lifecycle behavior, per
// spec.md §6's actor.* options.
type Config struct {
	// Kind labels this System in logs/metrics (e.g. "player", "guild").
	Kind string

	// MailboxCapacity bounds how many in-flight messages one entity may
	// have enqueued before Send/Ask start rejecting with
	// ErrMailboxFull.
	MailboxCapacity int

	// MaxResident is the soft cap: the idle/eviction tick evicts the
	// least-recently-active Ready entities first once residency
	// exceeds it.
	MaxResident int

	// HardCap rejects new entity creation outright with
	// ErrSystemOverloaded once residency reaches it. Must be >=
	// MaxResident; defaults to 2x MaxResident if zero.
	HardCap int

	// IdleTimeout is how long an entity may go without activity before
	// the idle tick stops it.
	IdleTimeout time.Duration

	// MinResidency guards newly loaded entities against being evicted
	// again within the same tick window they were created in.
	MinResidency time.Duration

	// SaveInterval is the period of the dirty-flush tick.
	SaveInterval time.Duration

	// MaintenanceInterval is the period of the idle/capacity-eviction
	// tick. Defaults to IdleTimeout/4 if zero.
	MaintenanceInterval time.Duration
}

func (c *Config) setDefaults() {
	if c.MailboxCapacity <= 0 {
		c.MailboxCapacity = 256
	}
	if c.MaxResident <= 0 {
		c.MaxResident = 10000
	}
	if c.HardCap <= 0 {
		c.HardCap = c.MaxResident * 2
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 10 * time.Minute
	}
	if c.MinResidency <= 0 {
		c.MinResidency = 5 * time.Second
	}
	if c.SaveInterval <= 0 {
		c.SaveInterval = 30 * time.Second
	}
	if c.MaintenanceInterval <= 0 {
		c.MaintenanceInterval = c.IdleTimeout / 4
	}
}

// System is a generic entity runtime over one asynkron/protoactor-go
// ActorSystem: it owns the admission control, lifecycle, dirty
// tracking, idle eviction, and persistence-breaker concerns described
// in spec.md §3/§4.4, while protoactor supplies the per-entity
// single-writer mailbox and scheduling.
type System[S any] struct {
	cfg Config

	ps      *actor.ActorSystem
	entries *lru.Cache[uint64, *entry[S]]
	mu      sync.Mutex // guards create-if-absent against entries

	load   LoadFunc[S]
	save   SaveFunc[S]
	handle HandleFunc[S]

	breaker *gobreaker.CircuitBreaker
	alerts  AlertSink

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New constructs a System backed by ps. load/save/handle must be
// non-nil; alerts may be nil.
func New[S any](ps *actor.ActorSystem, cfg Config, load LoadFunc[S], save SaveFunc[S], handle HandleFunc[S], alerts AlertSink) *System[S] {
	cfg.setDefaults()
	entries, err := lru.New[uint64, *entry[S]](cfg.HardCap)
	if err != nil {
		// Only returns an error for size <= 0, which setDefaults rules out.
		logging.Fatalf("actorsystem[%s]: failed to construct resident cache: %v", cfg.Kind, err)
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Kind + "-persistence",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warnf("actorsystem[%s]: persistence breaker %s -> %s", name, from, to)
		},
	})
	return &System[S]{
		cfg:     cfg,
		ps:      ps,
		entries: entries,
		load:    load,
		save:    save,
		handle:  handle,
		breaker: breaker,
		alerts:  alerts,
		stopCh:  make(chan struct{}),
	}
}

// getOrCreate returns the resident entry for id, spawning a fresh
// entityActor for it if it isn't already resident. Fails with
// ErrSystemOverloaded if residency is already at the hard cap.
func (s *System[S]) getOrCreate(id uint64) (*entry[S], error) {
	if e, ok := s.entries.Get(id); ok {
		return e, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries.Get(id); ok {
		return e, nil
	}
	if s.entries.Len() >= s.cfg.HardCap {
		if s.alerts != nil {
			s.alerts.Alert("SystemOverloaded", fmt.Sprintf("%s: resident hard cap %d reached", s.cfg.Kind, s.cfg.HardCap))
		}
		return nil, ErrSystemOverloaded
	}

	ent := newEntry[S](id)
	props := actor.PropsFromProducer(func() actor.Actor {
		return &entityActor[S]{sys: s, ent: ent}
	})
	ent.pid = s.ps.Root.Spawn(props)
	s.entries.Add(id, ent)
	return ent, nil
}

// admit resolves (creating if necessary) the entry for actorID and
// reserves one mailbox slot on it, failing fast if the entity is
// stopping/stopped or already at its mailbox bound.
func (s *System[S]) admit(actorID uint64) (*entry[S], error) {
	ent, err := s.getOrCreate(actorID)
	if err != nil {
		return nil, err
	}
	lc := lifecycleState(ent.lifecycle.Load())
	if lc == lifeStopping || lc == lifeStopped {
		return nil, ErrActorStopping
	}
	if int(ent.pending.Load()) >= s.cfg.MailboxCapacity {
		return nil, ErrMailboxFull
	}
	ent.pending.Add(1)
	return ent, nil
}

func (s *System[S]) remove(id uint64) {
	s.entries.Remove(id)
}

// Send delivers (kind, payload) to the entity identified by actorID,
// fire-and-forget. Returns an error without sending if the entity
// can't currently accept the message (mailbox full, stopping, or the
// system is at its resident hard cap).
func (s *System[S]) Send(actorID uint64, kind string, payload any) error {
	ent, err := s.admit(actorID)
	if err != nil {
		return err
	}
	s.ps.Root.Send(ent.pid, Message{Kind: kind, Payload: payload})
	return nil
}

// Ask delivers (kind, payload) to the entity identified by actorID and
// blocks the calling goroutine (NOT an actor's own Receive loop — this
// is for external callers such as the Protocol Dispatcher) until the
// entity responds or timeout elapses.
func (s *System[S]) Ask(ctx context.Context, actorID uint64, kind string, payload any, timeout time.Duration) (any, error) {
	ent, err := s.admit(actorID)
	if err != nil {
		return nil, err
	}
	fut := s.ps.Root.RequestFuture(ent.pid, Message{Kind: kind, Payload: payload}, timeout)
	res, err := fut.Result()
	if err != nil {
		return nil, ErrTimeout
	}
	r, ok := res.(Reply)
	if !ok {
		return nil, fmt.Errorf("actorsystem[%s]: unexpected reply type %T", s.cfg.Kind, res)
	}
	return r.Value, r.Err
}

// Route adapts Ask to internal/dispatch.ActorRouter's signature, so a
// System[S] can be handed directly to dispatch.New as its ActorRouter.
func (s *System[S]) Route(ctx context.Context, actorID uint64, kind string, payload any, timeout time.Duration) (any, error) {
	return s.Ask(ctx, actorID, kind, payload, timeout)
}

// Resident reports how many entities are currently resident.
func (s *System[S]) Resident() int {
	return s.entries.Len()
}
