package persistence

import (
	"context"
	"testing"
)

type widgetState struct {
	Count int    `json:"count"`
	Name  string `json:"name"`
}

func TestBindingLoadOfUnsavedEntityIsZeroValue(t *testing.T) {
	store := NewMemoryStore()
	b := NewBinding[widgetState](context.Background(), store, "widget")

	state, err := b.Load(1)
	if err != nil {
		t.Fatalf("unexpected error loading never-saved entity: %v", err)
	}
	if state != (widgetState{}) {
		t.Fatalf("expected zero-value state, got %+v", state)
	}
}

func TestBindingSaveThenLoadRoundTrips(t *testing.T) {
	store := NewMemoryStore()
	b := NewBinding[widgetState](context.Background(), store, "widget")

	want := widgetState{Count: 5, Name: "sprocket"}
	if err := b.Save(1, want); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, err := b.Load(1)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestBindingKeysAreScopedByKind(t *testing.T) {
	store := NewMemoryStore()
	widgets := NewBinding[widgetState](context.Background(), store, "widget")
	gadgets := NewBinding[widgetState](context.Background(), store, "gadget")

	if err := widgets.Save(1, widgetState{Count: 1}); err != nil {
		t.Fatalf("save widget failed: %v", err)
	}
	got, err := gadgets.Load(1)
	if err != nil {
		t.Fatalf("load gadget failed: %v", err)
	}
	if got.Count != 0 {
		t.Fatalf("expected gadget/1 to be unaffected by widget/1's save, got %+v", got)
	}
}
