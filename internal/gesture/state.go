// Package gesture holds the open/closed hand state and hands it from the
// detection loop to its readers.
package gesture

import (
	"fmt"
	"sync/atomic"
)

// State is the binary hand gesture.
type State int32

const (
	// Open is reported for an open hand and whenever no hand is visible.
	Open State = iota
	// Closed is reported for a fist.
	Closed
)

// String returns "OPEN" or "CLOSED".
func (s State) String() string {
	switch s {
	case Open:
		return "OPEN"
	case Closed:
		return "CLOSED"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// MarshalText implements encoding.TextMarshaler so states serialize by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "OPEN":
		*s = Open
	case "CLOSED":
		*s = Closed
	default:
		return fmt.Errorf("unknown gesture %q", text)
	}
	return nil
}

// Cell holds the current gesture. One goroutine writes it, any number read it.
// The zero value reads as Open.
type Cell struct {
	v atomic.Int32
}

// Load returns the current gesture.
func (c *Cell) Load() State {
	return State(c.v.Load())
}

// Store sets the gesture and returns the previous one.
func (c *Cell) Store(s State) State {
	return State(c.v.Swap(int32(s)))
}
