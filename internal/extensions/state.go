// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package extensions

// State is the lifecycle state of a configured extension.
type State uint8

// Lifecycle states. Records only move Discovered -> Initializing -> Initialized
// or Discovered -> Initializing -> Failed. Failed -> Discovered happens only on
// an explicit re-trigger.
const (
	StateDiscovered State = iota
	StateInitializing
	StateInitialized
	StateFailed

	// stateAbsent is the from state reported when a record is first registered.
	stateAbsent State = 0xff
)

// States lists every state, in lifecycle order.
var States = []State{StateDiscovered, StateInitializing, StateInitialized, StateFailed}

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateDiscovered:
		return "discovered"
	case StateInitializing:
		return "initializing"
	case StateInitialized:
		return "initialized"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// transitions is the allowed-edge table.
var transitions = map[State][]State{
	StateDiscovered:   {StateInitializing},
	StateInitializing: {StateInitialized, StateFailed},
	StateFailed:       {StateDiscovered},
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
