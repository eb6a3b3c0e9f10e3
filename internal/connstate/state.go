// Package connstate models the Connection Manager's state machine as a
// typed enum, per the redesign notes in the spec (the original source
// used a bare int with values in {-1, 0, 1}). The state is stored in an
// atomic so the Producer Loop's "relaxed read" policy (§5 of the spec:
// stale reads from C3 resolve on the next service iteration) is a
// lock-free load rather than a mutex acquisition.
package connstate

import "sync/atomic"

// State is the discrete connection state.
type State int32

const (
	// Connecting is the state right after a session object is created,
	// before the transport reports a handshake result.
	Connecting State = iota
	// Established means the handshake completed and subscribe frames
	// have been (or are about to be) sent.
	Established
	// Closed means the session ended normally or was force-reset by
	// the minute aggregator; the producer must tear down and reconnect.
	Closed
	// ClientError means the transport reported a connection error; the
	// producer must tear down, wait 500ms, and reconnect.
	ClientError
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Established:
		return "established"
	case Closed:
		return "closed"
	case ClientError:
		return "client_error"
	default:
		return "unknown"
	}
}

// Cell holds one atomically-accessed connection state value.
type Cell struct {
	v atomic.Int32
}

// NewCell returns a Cell initialized to Connecting.
func NewCell() *Cell {
	c := &Cell{}
	c.v.Store(int32(Connecting))
	return c
}

// Load returns the current state.
func (c *Cell) Load() State {
	return State(c.v.Load())
}

// Store sets the state unconditionally.
func (c *Cell) Store(s State) {
	c.v.Store(int32(s))
}

// CompareAndSwap atomically sets the state to next if it is currently
// cur, returning whether the swap happened.
func (c *Cell) CompareAndSwap(cur, next State) bool {
	return c.v.CompareAndSwap(int32(cur), int32(next))
}
