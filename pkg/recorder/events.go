package recorder

import "github.com/obsdb/odb/pkg/odbtype"

// EventKind discriminates the ExecutionEvent tagged union (spec.md §3,
// "ExecutionEvent: Slew | Sequence(command) | Atom(stage) | Step(stage)
// | Dataset(stage)").
type EventKind int

const (
	EventSlew EventKind = iota
	EventSequence
	EventAtom
	EventStep
	EventDataset
)

// SequenceCommand is the Sequence event's payload.
type SequenceCommand string

const (
	SequenceStart SequenceCommand = "START"
	SequenceStop  SequenceCommand = "STOP"
)

// AtomStage is the Atom event's payload.
type AtomStage string

const (
	AtomStageStart AtomStage = "START"
	AtomStageEnd   AtomStage = "END"
)

// StepStage is the Step event's payload.
type StepStage string

const (
	StepStageStart StepStage = "START"
	StepStageEnd   StepStage = "END"
	StepStageAbort StepStage = "ABORT"
	StepStageStop  StepStage = "STOP"
)

// DatasetStage is the Dataset event's payload.
type DatasetStage string

const DatasetStageRecorded DatasetStage = "RECORDED"

// ExecutionEvent is the common shape of every event ingested by
// recordEvent (spec.md §4.F). Every event carries a visit-scoped,
// strictly monotonic timestamp (spec.md §5, "Ordering guarantees").
type ExecutionEvent interface {
	Kind() EventKind
	EventVisitID() odbtype.VisitID
	EventTimestamp() odbtype.Timestamp
}

type eventBase struct {
	VisitID   odbtype.VisitID
	Timestamp odbtype.Timestamp
}

func (e eventBase) EventVisitID() odbtype.VisitID       { return e.VisitID }
func (e eventBase) EventTimestamp() odbtype.Timestamp    { return e.Timestamp }

type SlewEvent struct{ eventBase }

func (SlewEvent) Kind() EventKind { return EventSlew }

// NewSlewEvent builds a Slew event for visitID at ts.
func NewSlewEvent(visitID odbtype.VisitID, ts odbtype.Timestamp) SlewEvent {
	return SlewEvent{eventBase{VisitID: visitID, Timestamp: ts}}
}

type SequenceEvent struct {
	eventBase
	Command SequenceCommand
}

func (SequenceEvent) Kind() EventKind { return EventSequence }

// NewSequenceEvent builds a Sequence(command) event.
func NewSequenceEvent(visitID odbtype.VisitID, ts odbtype.Timestamp, command SequenceCommand) SequenceEvent {
	return SequenceEvent{eventBase{VisitID: visitID, Timestamp: ts}, command}
}

type AtomEvent struct {
	eventBase
	AtomID odbtype.AtomID
	Stage  AtomStage
}

func (AtomEvent) Kind() EventKind { return EventAtom }

// NewAtomEvent builds an Atom(stage) event.
func NewAtomEvent(visitID odbtype.VisitID, ts odbtype.Timestamp, atomID odbtype.AtomID, stage AtomStage) AtomEvent {
	return AtomEvent{eventBase{VisitID: visitID, Timestamp: ts}, atomID, stage}
}

type StepEvent struct {
	eventBase
	StepID odbtype.StepID
	Stage  StepStage
}

func (StepEvent) Kind() EventKind { return EventStep }

// NewStepEvent builds a Step(stage) event.
func NewStepEvent(visitID odbtype.VisitID, ts odbtype.Timestamp, stepID odbtype.StepID, stage StepStage) StepEvent {
	return StepEvent{eventBase{VisitID: visitID, Timestamp: ts}, stepID, stage}
}

type DatasetEvent struct {
	eventBase
	DatasetID odbtype.DatasetID
	Stage     DatasetStage
}

func (DatasetEvent) Kind() EventKind { return EventDataset }

// NewDatasetEvent builds a Dataset(stage) event.
func NewDatasetEvent(visitID odbtype.VisitID, ts odbtype.Timestamp, datasetID odbtype.DatasetID, stage DatasetStage) DatasetEvent {
	return DatasetEvent{eventBase{VisitID: visitID, Timestamp: ts}, datasetID, stage}
}
