// Package persistence implements the loadState/saveState collaborator
// that internal/actorsystem.System[S] calls on an entity's Started and
// Stop/Save transitions (spec.md §3/§4.4). It separates the
// storage-agnostic byte-blob contract (KeyValueStore) from the
// per-entity-type (de)serialization, so swapping memory/Redis/Postgres
// backends never touches actorsystem or handler code.
//
// This supersedes the teacher's server/internal/game/db_cache_layer.go,
// which declared the same Redis+Postgres intent as TODO stubs and
// never implemented them.
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned by a KeyValueStore when (kind, id) has never
// been saved.
var ErrNotFound = errors.New("persistence: entity not found")

// KeyValueStore is the storage-agnostic persistence primitive: get or
// set one entity's serialized state by (kind, id). Every backend
// (memory, Redis, Postgres) implements exactly this.
type KeyValueStore interface {
	Get(ctx context.Context, kind string, id uint64) ([]byte, error)
	Set(ctx context.Context, kind string, id uint64, blob []byte) error
	Close() error
}

// Binding adapts a KeyValueStore plus JSON (de)serialization into the
// LoadFunc[S]/SaveFunc[S] pair actorsystem.New requires for one entity
// kind. A fresh zero-value S is returned, not ErrNotFound, when no
// record exists yet — a newly-created entity loads as empty state
// rather than failing, matching spec.md §4.4's "Loading: loadState is
// called... on failure, the entity transitions to Stopped" note, which
// reserves failure for real backend errors, not absence of a prior
// save.
type Binding[S any] struct {
	store KeyValueStore
	kind  string
	ctx   context.Context
}

// NewBinding constructs a Binding for entity kind over store. ctx
// bounds every Get/Set call issued by the resulting Load/Save
// functions (actorsystem calls them synchronously from inside an
// entity's own goroutine, so a long-lived background context is
// appropriate here, not a per-request one).
func NewBinding[S any](ctx context.Context, store KeyValueStore, kind string) *Binding[S] {
	return &Binding[S]{store: store, kind: kind, ctx: ctx}
}

// Load implements actorsystem.LoadFunc[S].
func (b *Binding[S]) Load(actorID uint64) (S, error) {
	var state S
	blob, err := b.store.Get(b.ctx, b.kind, actorID)
	if errors.Is(err, ErrNotFound) {
		return state, nil
	}
	if err != nil {
		return state, fmt.Errorf("persistence: load %s/%d: %w", b.kind, actorID, err)
	}
	if err := json.Unmarshal(blob, &state); err != nil {
		return state, fmt.Errorf("persistence: decode %s/%d: %w", b.kind, actorID, err)
	}
	return state, nil
}

// Save implements actorsystem.SaveFunc[S].
func (b *Binding[S]) Save(actorID uint64, state S) error {
	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("persistence: encode %s/%d: %w", b.kind, actorID, err)
	}
	if err := b.store.Set(b.ctx, b.kind, actorID, blob); err != nil {
		return fmt.Errorf("persistence: save %s/%d: %w", b.kind, actorID, err)
	}
	return nil
}
