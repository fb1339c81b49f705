// Package recorder implements the ExecutionRecorder of spec.md §4.F: a
// hierarchical state machine that ingests telescope events and persists
// visits, atoms, steps, and datasets with correct lifecycle transitions.
package recorder

import (
	"github.com/obsdb/odb/pkg/odbtype"
	"github.com/obsdb/odb/pkg/timeestimator"
)

// Visit is a single physical telescope session for one observation
// (spec.md §3).
type Visit struct {
	ID            odbtype.VisitID
	ObservationID string
	Instrument    string
	CreatedAt     odbtype.Timestamp
}

// Atom is an indivisible group of steps (spec.md §3).
type Atom struct {
	ID            odbtype.AtomID
	VisitID       odbtype.VisitID
	ObservationID string
	Instrument    string
	SequenceType  odbtype.SequenceType
	StepCount     int
	GeneratedID   *string
	State         odbtype.AtomExecutionState
}

// Step is one instrument configuration plus a StepConfig variant
// (spec.md §3).
type Step struct {
	ID            odbtype.StepID
	AtomID        odbtype.AtomID
	ObservationID string
	Instrument    string
	StepIndex     int // 1-based, monotonically increasing per observation
	ObserveClass  odbtype.ObserveClass
	GeneratedID   *string
	State         odbtype.StepExecutionState
	Estimate      timeestimator.StepEstimate
	CompletedAt   *odbtype.Timestamp
	DatasetQA     *odbtype.DatasetQAState
}

// Dataset is one recorded data product, belonging to exactly one step
// (spec.md §3).
type Dataset struct {
	ID            odbtype.DatasetID
	StepID        odbtype.StepID
	ObservationID string
	Site          odbtype.Site
	Filename      string
	QAState       *odbtype.DatasetQAState
}
