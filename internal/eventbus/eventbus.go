// Package eventbus defines the collaborator boundary for cross-process
// fan-out: the shape a future cluster/sharding layer would plug into,
// without this module implementing or depending on one. Cross-process
// actor fan-out is explicitly out of scope (spec.md's Non-goals); this
// package exists so internal/actorsystem and internal/handlers have a
// stable interface to call today, satisfied by a no-op here.
package eventbus

import "context"

// Event is an opaque cross-process notification: a kind tag and a
// payload the receiving process is expected to already know how to
// interpret (e.g. via a shared protocol package), exactly mirroring
// internal/actorsystem.Message's shape one level up the stack.
type Event struct {
	Kind    string
	Payload []byte
}

// Publisher broadcasts an Event to every other process subscribed to
// topic. A real implementation would be backed by a message broker;
// this module only defines the boundary.
type Publisher interface {
	Publish(ctx context.Context, topic string, evt Event) error
}

// Subscriber receives Events published to topic by any process
// (including this one).
type Subscriber interface {
	Subscribe(ctx context.Context, topic string, handle func(Event)) (unsubscribe func(), err error)
}

// Noop implements both Publisher and Subscriber by discarding
// everything: the correct collaborator for a single-process deployment,
// and the default wiring until a real fan-out transport is chosen.
type Noop struct{}

func (Noop) Publish(ctx context.Context, topic string, evt Event) error { return nil }

func (Noop) Subscribe(ctx context.Context, topic string, handle func(Event)) (func(), error) {
	return func() {}, nil
}
