// Package observation persists the Observation and Program entities of
// spec.md §3 and backs the Query/Mutation surface of spec.md §6 that
// the core's four subsystems treat as out-of-scope collaborators (CfP
// CRUD, proposal submission) but whose minimal shape still has to exist
// for execution.digest/config/timeChargeInvoice to be reachable from an
// observation id. Constraint validation (CfP matching, partner
// approval) stays out of scope; this package only stores and retrieves
// the declarative inputs the other subsystems consume.
package observation

import (
	"github.com/obsdb/odb/pkg/odbtype"
	"github.com/obsdb/odb/pkg/workflow"
)

// Observation is a logical science request (spec.md §3).
type Observation struct {
	ID                   odbtype.ObservationID
	ProgramID            odbtype.ProgramID
	ObservingMode        string
	ModeParams           []byte // opaque JSON, interpreted by pkg/sequence's generator
	Constraints          odbtype.ConstraintSet
	PositionAngle        odbtype.PositionAngleConstraint
	BaseCoordinates      *odbtype.Coordinates
	ScienceBand          odbtype.ScienceBand
	CalibrationRole      odbtype.CalibrationRole
	UserWorkflowOverride *workflow.UserState
	CreatedAt            odbtype.Timestamp
}

// Program is the funding/proposal grouping an Observation references
// (spec.md §3, "program reference"). CfP/proposal CRUD itself is out of
// scope (spec.md §1); this is the minimal identity Observation.ProgramID
// resolves against.
type Program struct {
	ID        odbtype.ProgramID
	Reference string
}

// CreateObservationInput is the payload of Mutation.createObservation
// (spec.md §6).
type CreateObservationInput struct {
	ProgramID       odbtype.ProgramID
	ObservingMode   string
	ModeParams      []byte
	Constraints     odbtype.ConstraintSet
	PositionAngle   odbtype.PositionAngleConstraint
	BaseCoordinates *odbtype.Coordinates
	ScienceBand     odbtype.ScienceBand
	CalibrationRole odbtype.CalibrationRole
}

// ObservationPatch is the partial-update payload of
// Mutation.updateObservations's `set` argument (spec.md §6). Nil fields
// are left untouched.
type ObservationPatch struct {
	ScienceBand          *odbtype.ScienceBand
	UserWorkflowOverride *workflow.UserState
	Constraints          *odbtype.ConstraintSet
}
