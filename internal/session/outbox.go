package session

import (
	gdsqueue "github.com/Workiva/go-datastructures/queue"

	"github.com/vantrix/realmcore/internal/logging"
)

// ringOutbox is the bounded, single-writer outbound queue backing
// Session.outbox. It is deliberately bounded: push/broadcast never
// accumulate beyond the connection's write buffer, per spec.md §4.2 —
// a full queue bounces as a slow-client condition, not unbounded growth.
type ringOutbox struct {
	ring *gdsqueue.RingBuffer
}

func newRingOutbox(capacity uint64) *ringOutbox {
	if capacity == 0 {
		capacity = 256
	}
	return &ringOutbox{ring: gdsqueue.NewRingBuffer(capacity)}
}

func (o *ringOutbox) TryPush(frame []byte) bool {
	ok, err := o.ring.Offer(frame)
	if err != nil {
		// Disposed: session is being torn down.
		return false
	}
	return ok
}

func (o *ringOutbox) Close() {
	o.ring.Dispose()
}

// runWriter drains the ring buffer and writes each frame to the
// session's transport, in FIFO order, until the buffer is disposed.
// This is the "one outbound queue, one writer" serialization point
// from spec.md §5.
func (s *Session) runWriter() {
	ro, ok := s.outbox.(*ringOutbox)
	if !ok {
		return
	}
	for {
		item, err := ro.ring.Get()
		if err != nil {
			return // disposed
		}
		frame, ok := item.([]byte)
		if !ok {
			continue
		}
		s.mu.RLock()
		conn := s.conn
		s.mu.RUnlock()
		if conn == nil {
			continue
		}
		if _, werr := conn.Write(frame); werr != nil {
			logging.Warnf("session %d: write error: %v", s.id, werr)
			continue
		}
	}
}
