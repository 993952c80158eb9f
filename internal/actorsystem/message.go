// Package actorsystem implements the Actor Runtime: per-entity
// single-consumer mailboxes, lifecycle (load -> run -> idle-evict ->
// save), dirty-tracking with periodic flush, and controlled
// cross-entity messaging. See spec.md §3, §4.4, §5.
//
// Each entity is executed as a dedicated asynkron/protoactor-go actor,
// which supplies the single-writer mailbox goroutine for free; this
// package layers bounded admission, explicit lifecycle, dirty/save,
// idle eviction, and capacity control on top of it.
package actorsystem

// Reserved system message kinds, per spec.md §3/§4.4.
const (
	kindLoad     = "__load__"
	kindSave     = "__save__"
	kindStop     = "__stop__"
	kindTick     = "__tick__"
	kindAskReply = "__ask_reply__"
)

// Message is the ActorMessage of spec.md §3: a kind tag and an
// arbitrary payload. System-reserved kinds are not constructible by
// callers of Send/Ask (they pass user-defined kind strings); this
// package enqueues the reserved kinds itself for lifecycle/persistence.
type Message struct {
	Kind    string
	Payload any
}

// Reply is what an Ask resolves to, whether the asker is external
// (Dispatcher, via System.Ask) or another actor (via
// HandlerContext.Ask's PipeTo continuation).
type Reply struct {
	Value any
	Err   error
}
