package actorsystem

import (
	"sync/atomic"
	"time"

	"github.com/asynkron/protoactor-go/actor"
)

// lifecycleState is the explicit per-entity state machine of spec.md
// §3/§4.4, layered over protoactor's own Started/Stopping/Stopped.
type lifecycleState int32

const (
	lifeNew lifecycleState = iota
	lifeLoading
	lifeReady
	lifeStopping
	lifeStopped
)

func (s lifecycleState) String() string {
	switch s {
	case lifeNew:
		return "New"
	case lifeLoading:
		return "Loading"
	case lifeReady:
		return "Ready"
	case lifeStopping:
		return "Stopping"
	case lifeStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// entry is the System's bookkeeping record for one resident entity: its
// protoactor PID, its business state, and the admission/dirty/lifecycle
// accounting the System layers on top of the bare actor.
type entry[S any] struct {
	id  uint64
	pid *actor.PID

	// state is only ever read or mutated from inside the entity's own
	// Receive loop (the protoactor goroutine for this PID), preserving
	// the single-writer property without an explicit lock.
	state S

	dirty      atomic.Bool
	lifecycle  atomic.Int32
	pending    atomic.Int32
	lastActive atomic.Int64 // UnixNano
	createdAt  time.Time

	// loadFailed distinguishes "stopped because loadState errored" from
	// every other route to lifeStopped (doStop, force-stop on shutdown),
	// so queued messages can be classified as LoadFailed rather than the
	// generic ActorStopping, per spec.md §7.
	loadFailed atomic.Bool
}

func newEntry[S any](id uint64) *entry[S] {
	e := &entry[S]{id: id, createdAt: time.Now()}
	e.lifecycle.Store(int32(lifeNew))
	e.lastActive.Store(time.Now().UnixNano())
	return e
}

func (e *entry[S]) touch() {
	e.lastActive.Store(time.Now().UnixNano())
}

func (e *entry[S]) lastActiveAt() time.Time {
	return time.Unix(0, e.lastActive.Load())
}
