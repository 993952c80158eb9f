package actorsystem

import "errors"

var (
	// ErrMailboxFull is returned when an entity's mailbox is already at
	// its configured capacity, per spec.md §4.4's bounded-mailbox rule.
	ErrMailboxFull = errors.New("actorsystem: mailbox full")
	// ErrActorStopping is returned when Send/Ask targets an entity that
	// has already begun (or finished) its shutdown sequence.
	ErrActorStopping = errors.New("actorsystem: actor stopping or stopped")
	// ErrSystemOverloaded is returned when a creation would exceed the
	// configured hard cap on resident entities.
	ErrSystemOverloaded = errors.New("actorsystem: resident hard cap reached")
	// ErrLoadFailed is returned to any message delivered to an entity
	// whose initial loadState call failed.
	ErrLoadFailed = errors.New("actorsystem: entity failed to load")
	// ErrTimeout is returned by Ask when no reply arrives before the
	// deadline.
	ErrTimeout = errors.New("actorsystem: ask timed out")
)
