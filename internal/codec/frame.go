// Package codec implements the wire frame used between client and
// server: a length-prefixed binary envelope carrying a request,
// response, or push. See spec.md §3 and §6.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Kind classifies a Message by direction/intent. It is not carried on
// the wire and not stored on Message; Message.Kind derives it from the
// seqId alone and never returns KindResponse.
type Kind int

const (
	KindRequest Kind = iota
	KindResponse
	KindPush
)

// HeaderSize is the number of bytes in the fixed header that follows
// the 4-byte length prefix: seqId(4) + protocolId(2) + methodId(2).
const HeaderSize = 8

// DefaultMaxFrame is used when a codec is constructed without an
// explicit limit.
const DefaultMaxFrame = 64 * 1024

var (
	// ErrFrameTooLarge is returned when a frame's declared length
	// exceeds the configured MaxFrame.
	ErrFrameTooLarge = errors.New("codec: frame exceeds max size")
	// ErrMalformed is returned for a frame whose declared length is
	// smaller than HeaderSize (can't even hold the fixed header).
	ErrMalformed = errors.New("codec: malformed frame header")
	// ErrNeedMore signals a partial read: the caller should buffer
	// more bytes and retry. It is not a protocol error.
	ErrNeedMore = errors.New("codec: need more bytes")
)

// Message is the decoded frame: the network envelope described in
// spec.md §3. Length on the wire excludes the 4-byte length field
// itself: length == HeaderSize + len(Body).
type Message struct {
	SeqID      uint32
	ProtocolID uint16
	MethodID   uint16
	Body       []byte
}

// ProtocolKey returns the composite key used to look up a handler:
// (protocolId<<8) | methodId, per spec.md §3.
func (m Message) ProtocolKey() uint32 {
	return (uint32(m.ProtocolID) << 8) | uint32(m.MethodID)
}

// Kind classifies the message by its seqId: pushes always carry
// seqId == 0 per spec.md §3.
func (m Message) Kind() Kind {
	if m.SeqID == 0 {
		return KindPush
	}
	return KindRequest
}

// WireLength returns the value that belongs in the frame's length
// field for this message: HeaderSize + len(Body), excluding the length
// field itself (spec.md §6's resolved Open Question).
func (m Message) WireLength() uint32 {
	return uint32(HeaderSize + len(m.Body))
}

// Codec encodes and decodes frames against a configured maximum size.
// It is stateless per call; the Reader type in reader.go adds the
// buffering needed to handle TCP fragmentation across multiple reads.
type Codec struct {
	MaxFrame uint32
}

// New returns a Codec with the given max frame size, or
// DefaultMaxFrame if maxFrame is zero.
func New(maxFrame uint32) *Codec {
	if maxFrame == 0 {
		maxFrame = DefaultMaxFrame
	}
	return &Codec{MaxFrame: maxFrame}
}

// Encode serializes msg into a full wire frame (length prefix plus
// header plus body).
func (c *Codec) Encode(msg Message) []byte {
	length := msg.WireLength()
	buf := make([]byte, 4+length)
	binary.BigEndian.PutUint32(buf[0:4], length)
	binary.BigEndian.PutUint32(buf[4:8], msg.SeqID)
	binary.BigEndian.PutUint16(buf[8:10], msg.ProtocolID)
	binary.BigEndian.PutUint16(buf[10:12], msg.MethodID)
	copy(buf[12:], msg.Body)
	return buf
}

// DecodeFrame decodes a single frame from a buffer that already
// contains the full length-prefixed frame (length field included).
// Returns the message, the number of bytes consumed, and an error.
// ErrNeedMore is returned (consumed==0) when buf does not yet hold a
// complete frame; callers should read more bytes and retry.
func (c *Codec) DecodeFrame(buf []byte) (Message, int, error) {
	if len(buf) < 4 {
		return Message{}, 0, ErrNeedMore
	}
	length := binary.BigEndian.Uint32(buf[0:4])
	if length < HeaderSize {
		return Message{}, 0, fmt.Errorf("%w: length %d shorter than header", ErrMalformed, length)
	}
	if length > c.MaxFrame {
		return Message{}, 0, fmt.Errorf("%w: length %d exceeds max %d", ErrFrameTooLarge, length, c.MaxFrame)
	}
	total := 4 + int(length)
	if len(buf) < total {
		return Message{}, 0, ErrNeedMore
	}
	body := append([]byte(nil), buf[12:total]...)
	msg := Message{
		SeqID:      binary.BigEndian.Uint32(buf[4:8]),
		ProtocolID: binary.BigEndian.Uint16(buf[8:10]),
		MethodID:   binary.BigEndian.Uint16(buf[10:12]),
		Body:       body,
	}
	return msg, total, nil
}
