package editor

import "fmt"

// State is the lifecycle state of an editor.
type State int32

const (
	Closed State = iota
	Opening
	Open
	Closing
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Opening:
		return "opening"
	case Open:
		return "open"
	case Closing:
		return "closing"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// transitions lists the allowed next states for each state.
var transitions = map[State][]State{
	Closed:  {Opening},
	Opening: {Open, Closed},
	Open:    {Closing},
	Closing: {Closed},
}

// CanTransition reports whether from -> to is an allowed lifecycle step.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
