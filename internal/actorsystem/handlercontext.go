package actorsystem

import (
	"time"

	"github.com/asynkron/protoactor-go/actor"
)

// HandlerContext is what a HandleFunc receives for one message. It
// exposes the entity's own mutable state (only ever touched from this
// goroutine, so no lock is needed) and the two ways a handler affects
// the System around it: marking itself dirty, and asking another
// entity without blocking its own mailbox.
type HandlerContext[S any] struct {
	ctx actor.Context
	sys *System[S]
	ent *entry[S]
}

// State returns a pointer to the entity's business state for the
// handler to read or mutate in place.
func (h *HandlerContext[S]) State() *S { return &h.ent.state }

// MarkDirty flags the entity for persistence on the next save tick, per
// spec.md's dirty-save law: the save tick never saves a clean entity.
// Stop saves once whether or not the entity is dirty.
func (h *HandlerContext[S]) MarkDirty() { h.ent.dirty.Store(true) }

// ActorID returns the id of the entity this handler is running for.
func (h *HandlerContext[S]) ActorID() uint64 { return h.ent.id }

// Ask sends (kind, payload) to another entity in the same System and
// arranges for the reply to be delivered back to THIS entity's own
// mailbox as an ordinary Message{Kind: AskReplyKind}, never inline and
// never blocking the caller's Receive loop — per spec.md §4.4's
// re-entrancy rule. The payload carried by the eventual reply is a
// Reply{Value, Err}; callers distinguish concurrent asks by embedding a
// correlation value of their own choosing in payload/response.
func (h *HandlerContext[S]) Ask(targetID uint64, kind string, payload any, timeout time.Duration) error {
	target, err := h.sys.admit(targetID)
	if err != nil {
		return err
	}
	future := h.ctx.RequestFuture(target.pid, Message{Kind: kind, Payload: payload}, timeout)
	future.PipeTo(h.ctx.Self())
	return nil
}

// AskReplyKind is the Message.Kind a HandleFunc observes when a
// previous Ask's continuation lands back on its own mailbox; the
// payload is a Reply.
const AskReplyKind = kindAskReply
