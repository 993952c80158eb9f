package actorsystem

import (
	"sync"
	"time"

	"github.com/vantrix/realmcore/internal/logging"
)

// sendSystem delivers a reserved-kind message to ent, bypassing the
// caller-facing admission checks in admit: persistence and lifecycle
// housekeeping must never be blocked by ordinary backpressure.
func (s *System[S]) sendSystem(ent *entry[S], kind string) {
	ent.pending.Add(1)
	s.ps.Root.Send(ent.pid, Message{Kind: kind})
}

// saveTick sends a Save message to every Ready, dirty entity. Per the
// dirty-save law, entries that were never marked dirty are skipped
// entirely; doSave's own guard inside the entity makes this
// belt-and-suspenders rather than load-bearing.
func (s *System[S]) saveTick() {
	for _, id := range s.entries.Keys() {
		ent, ok := s.entries.Peek(id)
		if !ok {
			continue
		}
		if lifecycleState(ent.lifecycle.Load()) != lifeReady {
			continue
		}
		if !ent.dirty.Load() {
			continue
		}
		s.sendSystem(ent, kindSave)
	}
}

// idleTick stops Ready entities that have been idle past IdleTimeout,
// then — if residency still exceeds MaxResident — stops the
// least-recently-active Ready entities until it no longer does. Keys()
// returns oldest-accessed first, which (since every user Send/Ask goes
// through admit -> entries.Get, bumping recency) tracks
// least-recently-active closely enough for this soft cap.
func (s *System[S]) idleTick() {
	now := time.Now()
	keys := s.entries.Keys()

	for _, id := range keys {
		ent, ok := s.entries.Peek(id)
		if !ok {
			continue
		}
		if lifecycleState(ent.lifecycle.Load()) != lifeReady {
			continue
		}
		if now.Sub(ent.createdAt) < s.cfg.MinResidency {
			continue
		}
		if now.Sub(ent.lastActiveAt()) > s.cfg.IdleTimeout {
			s.sendSystem(ent, kindStop)
		}
	}

	if excess := s.entries.Len() - s.cfg.MaxResident; excess > 0 {
		for _, id := range keys {
			if excess <= 0 {
				break
			}
			ent, ok := s.entries.Peek(id)
			if !ok {
				continue
			}
			if lifecycleState(ent.lifecycle.Load()) != lifeReady {
				continue
			}
			if now.Sub(ent.createdAt) < s.cfg.MinResidency {
				continue
			}
			s.sendSystem(ent, kindStop)
			excess--
		}
	}
}

// StartMaintenance launches the periodic save-flush and idle/capacity
// eviction ticks. Call once after constructing the System; stop it via
// Shutdown.
func (s *System[S]) StartMaintenance() {
	s.wg.Add(2)
	go s.runTicker(s.cfg.SaveInterval, s.saveTick)
	go s.runTicker(s.cfg.MaintenanceInterval, s.idleTick)
}

func (s *System[S]) runTicker(interval time.Duration, fn func()) {
	defer s.wg.Done()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			fn()
		case <-s.stopCh:
			return
		}
	}
}

// Shutdown stops every resident entity (each still runs its own save
// on the way down) and waits up to drainTimeout for them to finish.
// Entities that haven't finished by then are force-stopped without a
// final save, matching spec.md §5's bounded-drain shutdown sequence.
func (s *System[S]) Shutdown(drainTimeout time.Duration) {
	close(s.stopCh)
	s.wg.Wait()

	keys := s.entries.Keys()
	var drain sync.WaitGroup
	for _, id := range keys {
		ent, ok := s.entries.Peek(id)
		if !ok {
			continue
		}
		drain.Add(1)
		go func(e *entry[S]) {
			defer drain.Done()
			s.sendSystem(e, kindStop)
		}(ent)
	}

	drain.Wait()

	// Each entity removes itself from entries once its Stop has run.
	deadline := time.After(drainTimeout)
	for s.entries.Len() > 0 {
		select {
		case <-deadline:
			logging.Warnf("actorsystem[%s]: shutdown drain timed out after %s; force-stopping stragglers without save", s.cfg.Kind, drainTimeout)
			for _, id := range s.entries.Keys() {
				if ent, ok := s.entries.Peek(id); ok {
					s.ps.Root.Stop(ent.pid)
				}
			}
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
}
