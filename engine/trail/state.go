package trail

// State is a phase of the per-frame trail pipeline.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateAppending
	StateCulling
	StateClassifyingLOD
	StateGeneratingRibbons
	StateDrawing
	StateReleased
)

var stateNames = map[State]string{
	StateUninitialized:     "Uninitialized",
	StateReady:             "Ready",
	StateAppending:         "Appending",
	StateCulling:           "Culling",
	StateClassifyingLOD:    "ClassifyingLOD",
	StateGeneratingRibbons: "GeneratingRibbons",
	StateDrawing:           "Drawing",
	StateReleased:          "Released",
}

// String returns the state name.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "Unknown"
}

// transitions lists the legal successors of each state. Released is reachable from
// every state and is handled separately.
var transitions = map[State][]State{
	StateUninitialized:     {StateReady},
	StateReady:             {StateAppending, StateDrawing, StateUninitialized},
	StateAppending:         {StateCulling},
	StateCulling:           {StateClassifyingLOD},
	StateClassifyingLOD:    {StateGeneratingRibbons},
	StateGeneratingRibbons: {StateDrawing, StateAppending, StateUninitialized},
	StateDrawing:           {StateReady},
}

// CanTransition reports whether moving from one state to another is legal.
//
// Parameters:
//   - from: the current state
//   - to: the requested state
//
// Returns:
//   - bool: true if the transition is allowed
func CanTransition(from, to State) bool {
	if to == StateReleased {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
