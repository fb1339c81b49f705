package workflow

import "github.com/obsdb/odb/pkg/odbtype"

// DeriveExecutionState reduces the recorded lifecycle state of every
// atom an observation has accumulated across its visits into the
// three-valued ExecutionState Resolve and AllowedTransitions consume
// (spec.md §4.I, "ExecutionState ... from Recorder"). An observation
// with no atoms at all has never been executed; one atom still Ongoing
// means the observation is mid-visit; otherwise, having reached this
// point with every atom in a terminal state, it is Completed.
//
// spec.md leaves the exact Recorder→ExecutionState mapping
// unspecified beyond naming the three values; this is the resolution
// recorded in DESIGN.md.
func DeriveExecutionState(atomStates []odbtype.AtomExecutionState) ExecutionState {
	if len(atomStates) == 0 {
		return ExecutionNone
	}
	for _, s := range atomStates {
		if s == odbtype.AtomOngoing {
			return ExecutionOngoing
		}
	}
	for _, s := range atomStates {
		if !s.IsTerminal() {
			return ExecutionOngoing
		}
	}
	return ExecutionCompleted
}
