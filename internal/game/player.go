// Package game is the one concrete instantiation of the generic entity
// runtime in internal/actorsystem: a "player" entity kind, its
// persisted state, and the message kinds its handlers speak. A real
// deployment would have many such packages (guild, room, ...); this one
// exists to exercise internal/actorsystem and internal/dispatch's Actor
// runOn end to end.
package game

import (
	"context"
	"time"

	"github.com/asynkron/protoactor-go/actor"

	"github.com/vantrix/realmcore/internal/actorsystem"
	"github.com/vantrix/realmcore/internal/persistence"
)

// PlayerState is the per-entity business state for the "player" kind.
type PlayerState struct {
	Name  string `json:"name"`
	Level int    `json:"level"`
	Exp   int64  `json:"exp"`
}

const (
	// KindGetProfile asks for the current profile snapshot.
	KindGetProfile = "profile.get"
	// KindGrantExp applies an experience delta, payload is int64.
	KindGrantExp = "profile.grantExp"
)

const expPerLevel = 1000

// NewPlayerSystem constructs the actorsystem.System[PlayerState] backing
// every player entity, wired to store for persistence and alerts for
// operator-facing conditions (SaveFailed, SystemOverloaded).
func NewPlayerSystem(ps *actor.ActorSystem, store persistence.KeyValueStore, alerts actorsystem.AlertSink) *actorsystem.System[PlayerState] {
	binding := persistence.NewBinding[PlayerState](context.Background(), store, "player")
	return actorsystem.New(ps, actorsystem.Config{
		Kind:            "player",
		MailboxCapacity: 256,
		MaxResident:     50000,
		IdleTimeout:     10 * time.Minute,
		SaveInterval:    30 * time.Second,
	}, binding.Load, binding.Save, handle, alerts)
}

func handle(hc *actorsystem.HandlerContext[PlayerState], msg actorsystem.Message) (any, error) {
	switch msg.Kind {
	case KindGetProfile:
		s := *hc.State()
		return s, nil
	case KindGrantExp:
		delta, _ := msg.Payload.(int64)
		state := hc.State()
		state.Exp += delta
		for state.Exp >= expPerLevel {
			state.Exp -= expPerLevel
			state.Level++
		}
		hc.MarkDirty()
		return *state, nil
	default:
		return nil, nil
	}
}
