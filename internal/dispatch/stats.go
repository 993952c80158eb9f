package dispatch

import "sync/atomic"

// Stats accumulates per-handler rolling statistics: request count,
// cumulative and max latency, and error count, per spec.md §3/§4.3.
type Stats struct {
	count   atomic.Uint64
	totalNs atomic.Uint64
	maxNs   atomic.Uint64
	errors  atomic.Uint64
}

func (s *Stats) record(durationNs uint64, failed bool) {
	s.count.Add(1)
	s.totalNs.Add(durationNs)
	if failed {
		s.errors.Add(1)
	}
	for {
		cur := s.maxNs.Load()
		if durationNs <= cur {
			break
		}
		if s.maxNs.CompareAndSwap(cur, durationNs) {
			break
		}
	}
}

// Snapshot is a point-in-time, immutable copy of Stats for reporting.
type Snapshot struct {
	Count   uint64
	TotalNs uint64
	MaxNs   uint64
	Errors  uint64
}

func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Count:   s.count.Load(),
		TotalNs: s.totalNs.Load(),
		MaxNs:   s.maxNs.Load(),
		Errors:  s.errors.Load(),
	}
}

// AvgNs returns the mean latency in nanoseconds, or 0 if no requests
// have been recorded yet.
func (sn Snapshot) AvgNs() uint64 {
	if sn.Count == 0 {
		return 0
	}
	return sn.TotalNs / sn.Count
}
