package actorsystem

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/asynkron/protoactor-go/actor"
)

type counterState struct {
	Value int
}

func newTestSystem(t *testing.T, cfg Config, saveCalls *atomic.Int64) *System[counterState] {
	t.Helper()
	ps := actor.NewActorSystem()
	load := func(actorID uint64) (counterState, error) {
		return counterState{}, nil
	}
	save := func(actorID uint64, state counterState) error {
		if saveCalls != nil {
			saveCalls.Add(1)
		}
		return nil
	}
	handle := func(hc *HandlerContext[counterState], msg Message) (any, error) {
		switch msg.Kind {
		case "inc":
			hc.State().Value++
			hc.MarkDirty()
			return hc.State().Value, nil
		case "get":
			return hc.State().Value, nil
		case "slow":
			time.Sleep(30 * time.Millisecond)
			return nil, nil
		default:
			return nil, nil
		}
	}
	return New[counterState](ps, cfg, load, save, handle, nil)
}

func TestSingleWriterSequentialIncrements(t *testing.T) {
	sys := newTestSystem(t, Config{Kind: "counter", MailboxCapacity: 1000, MaxResident: 10}, nil)

	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := sys.Ask(context.Background(), 1, "inc", nil, time.Second)
			if err != nil {
				t.Errorf("inc failed: %v", err)
			}
		}()
	}
	wg.Wait()

	v, err := sys.Ask(context.Background(), 1, "get", nil, time.Second)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if v.(int) != n {
		t.Fatalf("expected %d concurrent increments to land exactly once each, got %d", n, v)
	}
}

func TestMailboxRejectsWhenFull(t *testing.T) {
	sys := newTestSystem(t, Config{Kind: "counter", MailboxCapacity: 2, MaxResident: 10}, nil)

	var rejected atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := sys.Ask(context.Background(), 1, "slow", nil, 2*time.Second)
			if err == ErrMailboxFull {
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()

	if rejected.Load() == 0 {
		t.Fatal("expected at least one Ask to be rejected with ErrMailboxFull under a bounded mailbox")
	}
}

func TestDirtySaveLaw(t *testing.T) {
	var saveCalls atomic.Int64
	sys := newTestSystem(t, Config{Kind: "counter", MailboxCapacity: 100, MaxResident: 10}, &saveCalls)

	if _, err := sys.Ask(context.Background(), 1, "get", nil, time.Second); err != nil {
		t.Fatalf("get failed: %v", err)
	}
	sys.saveTick()
	time.Sleep(20 * time.Millisecond)
	if saveCalls.Load() != 0 {
		t.Fatalf("expected no save for a never-dirtied entity, got %d", saveCalls.Load())
	}

	if _, err := sys.Ask(context.Background(), 1, "inc", nil, time.Second); err != nil {
		t.Fatalf("inc failed: %v", err)
	}
	sys.saveTick()
	time.Sleep(20 * time.Millisecond)
	if saveCalls.Load() != 1 {
		t.Fatalf("expected exactly one save after the entity was dirtied, got %d", saveCalls.Load())
	}
}

func TestIdleEvictionStopsAndSaves(t *testing.T) {
	var saveCalls atomic.Int64
	sys := newTestSystem(t, Config{
		Kind:            "counter",
		MailboxCapacity: 100,
		MaxResident:     10,
		IdleTimeout:     time.Millisecond,
		MinResidency:    time.Nanosecond,
	}, &saveCalls)

	if _, err := sys.Ask(context.Background(), 1, "inc", nil, time.Second); err != nil {
		t.Fatalf("inc failed: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	sys.idleTick()
	time.Sleep(20 * time.Millisecond)

	if saveCalls.Load() != 1 {
		t.Fatalf("expected idle eviction to force exactly one save, got %d", saveCalls.Load())
	}
	if sys.Resident() != 0 {
		t.Fatalf("expected the evicted entity to no longer be resident, got %d resident", sys.Resident())
	}
}

func TestSystemOverloadedAtHardCap(t *testing.T) {
	sys := newTestSystem(t, Config{Kind: "counter", MailboxCapacity: 10, MaxResident: 1, HardCap: 1}, nil)

	if _, err := sys.Ask(context.Background(), 1, "get", nil, time.Second); err != nil {
		t.Fatalf("first entity creation failed: %v", err)
	}
	if _, err := sys.Ask(context.Background(), 2, "get", nil, time.Second); err != ErrSystemOverloaded {
		t.Fatalf("expected ErrSystemOverloaded for a second distinct entity past the hard cap, got %v", err)
	}
}

func TestStopRetiresEntityAndFreshRecreateStartsClean(t *testing.T) {
	sys := newTestSystem(t, Config{Kind: "counter", MailboxCapacity: 10, MaxResident: 10}, nil)

	if _, err := sys.Ask(context.Background(), 1, "inc", nil, time.Second); err != nil {
		t.Fatalf("inc failed: %v", err)
	}

	ent, ok := sys.entries.Get(1)
	if !ok {
		t.Fatal("expected entity 1 to be resident")
	}
	sys.sendSystem(ent, kindStop)
	time.Sleep(30 * time.Millisecond)

	if sys.Resident() != 0 {
		t.Fatalf("expected the stopped entity to be retired from residency, got %d resident", sys.Resident())
	}

	v, err := sys.Ask(context.Background(), 1, "get", nil, time.Second)
	if err != nil {
		t.Fatalf("expected re-creating entity 1 after it stopped to succeed, got %v", err)
	}
	if v.(int) != 0 {
		t.Fatalf("expected the recreated entity to start from a fresh load, got Value=%d", v)
	}
}
