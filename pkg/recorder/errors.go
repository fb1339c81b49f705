package recorder

import (
	"fmt"

	apperrors "github.com/obsdb/odb/internal/errors"
)

// ObservationNotFound reports that id does not name a known observation
// (spec.md §4.F, insertVisit precondition).
func ObservationNotFound(id string) error { return apperrors.NotFound("observation", id) }

// VisitNotFound reports that id does not name a known visit (spec.md
// §4.F, insertAtom precondition).
func VisitNotFound(id string) error { return apperrors.NotFound("visit", id) }

// AtomNotFound reports that id does not name a known atom (spec.md
// §4.F, insertStep precondition).
func AtomNotFound(id string) error { return apperrors.NotFound("atom", id) }

// StepNotFound reports that id does not name a known step (spec.md
// §4.F, insertDataset precondition).
func StepNotFound(id string) error { return apperrors.NotFound("step", id) }

// ReusedFilename reports a filename collision within one observation
// (spec.md §4.F, insertDataset: "filename unique per observation").
func ReusedFilename(filename string) error {
	return apperrors.DuplicateResource(fmt.Sprintf("dataset filename %q already used for this observation", filename))
}

// InstrumentMismatch reports that a visit or atom's instrument does not
// match the instrument of the entity being inserted under it (spec.md
// §4.F, every insert* precondition).
func InstrumentMismatch(expected, got string) error {
	return apperrors.InvalidArgument(fmt.Sprintf("instrument mismatch: expected %q, got %q", expected, got))
}
