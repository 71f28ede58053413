package gesture

// Edge describes a change of gesture.
type Edge int

const (
	NoEdge Edge = iota
	// Closing is the OPEN -> CLOSED transition.
	Closing
	// Opening is the CLOSED -> OPEN transition.
	Opening
)

func (e Edge) String() string {
	switch e {
	case Closing:
		return "closing"
	case Opening:
		return "opening"
	default:
		return "none"
	}
}

// EdgeBetween reports the edge crossed going from prev to next.
func EdgeBetween(prev, next State) Edge {
	switch {
	case prev == Open && next == Closed:
		return Closing
	case prev == Closed && next == Open:
		return Opening
	default:
		return NoEdge
	}
}
