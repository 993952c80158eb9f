package dispatch

import (
	"encoding/binary"
	"sync"

	"github.com/twmb/murmur3"
	"golang.org/x/time/rate"
)

// shardCount controls the striping width of the rate limiter table;
// handlers hash onto a shard by protocolKey to avoid a single global
// lock across potentially hundreds of registered handlers.
const shardCount = 64

// limiterTable is a per-handler, per-second token bucket limiter,
// sharded by murmur3(protocolKey) to bound lock contention, per
// spec.md §4.3's rate-limit step and SPEC_FULL.md §4.3.
type limiterTable struct {
	shards [shardCount]struct {
		mu       sync.Mutex
		limiters map[uint32]*rate.Limiter
	}
}

func newLimiterTable() *limiterTable {
	t := &limiterTable{}
	for i := range t.shards {
		t.shards[i].limiters = make(map[uint32]*rate.Limiter)
	}
	return t
}

func shardFor(key uint32) uint32 {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], key)
	return murmur3.Sum32(buf[:]) % shardCount
}

// Allow reports whether a request for protocolKey with the given
// per-second limit is admitted. limitPerSec <= 0 disables rate
// limiting for that handler, per spec.md's "if >0" rule.
func (t *limiterTable) Allow(protocolKey uint32, limitPerSec int) bool {
	if limitPerSec <= 0 {
		return true
	}
	shard := &t.shards[shardFor(protocolKey)]
	shard.mu.Lock()
	defer shard.mu.Unlock()
	lim, ok := shard.limiters[protocolKey]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(limitPerSec), limitPerSec)
		shard.limiters[protocolKey] = lim
	}
	return lim.Allow()
}
