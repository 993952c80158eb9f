package actorsystem

import (
	"fmt"

	"github.com/asynkron/protoactor-go/actor"

	"github.com/vantrix/realmcore/internal/logging"
)

// entityActor is the protoactor-go Actor backing exactly one resident
// entity. It supplies the single-writer mailbox goroutine for free and
// this package layers load/save/lifecycle/dirty-tracking on top of its
// Receive loop, per spec.md §3/§4.4.
type entityActor[S any] struct {
	sys *System[S]
	ent *entry[S]
}

func (a *entityActor[S]) Receive(ctx actor.Context) {
	switch m := ctx.Message().(type) {
	case *actor.Started:
		a.onStarted(ctx)
	case *actor.Stopped:
		// Lifecycle is already lifeStopped by the time doStop calls
		// ctx.Stop; nothing further to do here.
	case Message:
		a.onMessage(ctx, m)
	case Reply:
		// The tail of a HandlerContext.Ask's RequestFuture, delivered
		// via PipeTo as an ordinary mailbox message — never inline. It
		// never went through admit, so count it in before onMessage
		// counts it out.
		a.ent.pending.Add(1)
		a.onMessage(ctx, Message{Kind: kindAskReply, Payload: m})
	case *actor.TimeoutError:
		a.ent.pending.Add(1)
		a.onMessage(ctx, Message{Kind: kindAskReply, Payload: Reply{Err: ErrTimeout}})
	}
}

func (a *entityActor[S]) onStarted(ctx actor.Context) {
	a.ent.lifecycle.Store(int32(lifeLoading))
	state, err := a.sys.load(a.ent.id)
	if err != nil {
		a.ent.loadFailed.Store(true)
		a.ent.lifecycle.Store(int32(lifeStopped))
		logging.Errorf("actorsystem[%s]: entity %d failed to load: %v", a.sys.cfg.Kind, a.ent.id, err)
		a.sys.remove(a.ent.id)
		ctx.Stop(ctx.Self())
		return
	}
	a.ent.state = state
	a.ent.lifecycle.Store(int32(lifeReady))
	a.ent.touch()
}

func (a *entityActor[S]) onMessage(ctx actor.Context, msg Message) {
	a.ent.pending.Add(-1)

	lc := lifecycleState(a.ent.lifecycle.Load())
	if lc == lifeStopped {
		a.respond(ctx, nil, a.stoppedErr())
		return
	}

	switch msg.Kind {
	case kindSave:
		a.doSave(ctx, false)
		a.respond(ctx, nil, nil)
	case kindStop:
		a.doStop(ctx)
	case kindTick:
		a.respond(ctx, nil, nil)
	default:
		if lc != lifeReady {
			a.respond(ctx, nil, a.stoppedErr())
			return
		}
		a.ent.touch()
		hc := &HandlerContext[S]{ctx: ctx, sys: a.sys, ent: a.ent}
		resp, err := a.sys.handle(hc, msg)
		a.respond(ctx, resp, err)
	}
}

// stoppedErr classifies why lc is lifeStopped: an entity that never
// finished loading reports LoadFailed to every queued message, never
// the generic ActorStopping (spec.md §7's LoadFailed class).
func (a *entityActor[S]) stoppedErr() error {
	if a.ent.loadFailed.Load() {
		return ErrLoadFailed
	}
	return ErrActorStopping
}

// respond answers via protoactor's Request/Respond mechanism whenever
// the message arrived with a sender attached — true both for an
// external System.Ask (a temporary future PID) and an actor-to-actor
// HandlerContext.Ask (also routed through a future, per RequestFuture's
// own implementation). Fire-and-forget Sends have no sender and this
// is a no-op for them.
func (a *entityActor[S]) respond(ctx actor.Context, resp any, err error) {
	if ctx.Sender() == nil {
		return
	}
	ctx.Respond(Reply{Value: resp, Err: err})
}

func (a *entityActor[S]) doSave(ctx actor.Context, force bool) {
	if !force && !a.ent.dirty.Load() {
		return
	}
	_, err := a.sys.breaker.Execute(func() (any, error) {
		return nil, a.sys.save(a.ent.id, a.ent.state)
	})
	if err != nil {
		logging.Errorf("actorsystem[%s]: entity %d save failed: %v", a.sys.cfg.Kind, a.ent.id, err)
		if a.sys.alerts != nil {
			a.sys.alerts.Alert("SaveFailed", fmt.Sprintf("%s/%d: %v", a.sys.cfg.Kind, a.ent.id, err))
		}
		return
	}
	a.ent.dirty.Store(false)
}

// doStop implements the Stopping sequence of spec.md §4.4: no further
// user messages are accepted (the lifecycle flip happens first), any
// already-enqueued messages ahead of this Stop in the mailbox have
// already been processed by FIFO delivery, then saveState runs exactly
// once regardless of the dirty flag, then the entity is retired.
func (a *entityActor[S]) doStop(ctx actor.Context) {
	a.ent.lifecycle.Store(int32(lifeStopping))
	a.doSave(ctx, true)
	a.ent.lifecycle.Store(int32(lifeStopped))
	a.sys.remove(a.ent.id)
	a.respond(ctx, nil, nil)
	ctx.Stop(ctx.Self())
}
