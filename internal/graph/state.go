package graph

import "fmt"

// State is the lifecycle position of a task node.
type State int

const (
	StatePending State = iota
	StateReady
	StateRunning
	StateCompleted
	StateFailed
)

var stateNames = [...]string{"pending", "ready", "running", "completed", "failed"}

func (s State) String() string {
	if int(s) < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// transitions lists the legal moves out of each state. Pending and Ready
// may fail without running: a failed parent short-circuits a pending node,
// and a reference that cannot be resolved fails a ready one.
var transitions = map[State][]State{
	StatePending: {StateReady, StateFailed},
	StateReady:   {StateRunning, StateFailed},
	StateRunning: {StateCompleted, StateFailed},
}

func (s State) canTransition(to State) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}
