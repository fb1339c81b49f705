package recorder

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/obsdb/odb/internal/database"
	apperrors "github.com/obsdb/odb/internal/errors"
	"github.com/obsdb/odb/pkg/metrics"
	"github.com/obsdb/odb/pkg/odbtype"
)

// Recorder is the orchestration layer above Repository that owns the
// event-driven state-transition rules of spec.md §4.F. Repository
// itself is pure CRUD; Recorder is where "StartAtom abandons every
// other Ongoing atom" and friends live.
type Recorder struct {
	repo   *Repository
	logger logr.Logger
}

// NewRecorder builds a Recorder over repo.
func NewRecorder(repo *Repository, logger logr.Logger) *Recorder {
	return &Recorder{repo: repo, logger: logger}
}

// InsertVisit creates a new visit for obsID and, per spec.md §4.F
// ("Observation-level 'abandon all' used when a new visit begins"),
// abandons every non-terminal atom and step the observation still has
// from a prior visit.
func (r *Recorder) InsertVisit(ctx context.Context, tx database.Tx, obsID, instrument string) (Visit, error) {
	visit, err := r.repo.InsertVisit(ctx, tx, obsID, instrument)
	if err != nil {
		return Visit{}, err
	}
	if err := r.abandonAll(ctx, tx, obsID); err != nil {
		return Visit{}, err
	}
	return visit, nil
}

func (r *Recorder) abandonAll(ctx context.Context, tx database.Tx, obsID string) error {
	atoms, err := r.repo.NonTerminalAtoms(ctx, tx, obsID)
	if err != nil {
		return err
	}
	for _, aid := range atoms {
		if err := r.repo.SetAtomState(ctx, tx, aid, odbtype.AtomAbandoned); err != nil {
			return err
		}
	}
	steps, err := r.repo.NonTerminalSteps(ctx, tx, obsID)
	if err != nil {
		return err
	}
	for _, sid := range steps {
		if err := r.repo.SetStepState(ctx, tx, sid, odbtype.StepAbandoned, nil); err != nil {
			return err
		}
	}
	return nil
}

// RecordEvent ingests e within tx: it appends the event to the log,
// validates per-visit timestamp monotonicity, and drives the atom/step
// state transitions the event implies (spec.md §4.F). authorized stands
// in for the caller's access check (spec.md §7, NotAuthorized); the API
// edge is expected to have already evaluated it (e.g. via an OPA
// policy) before calling RecordEvent.
func (r *Recorder) RecordEvent(ctx context.Context, tx database.Tx, authorized bool, e ExecutionEvent) error {
	if !authorized {
		metrics.RecordTransitionError("not_authorized")
		return apperrors.NotAuthorized("caller is not authorized to record execution events")
	}

	if err := r.checkMonotonic(ctx, tx, e); err != nil {
		metrics.RecordTransitionError("not_monotonic")
		return err
	}
	if err := r.repo.AppendEvent(ctx, tx, e); err != nil {
		metrics.RecordTransitionError("append_failed")
		return err
	}
	metrics.RecordEvent(eventKindLabel(e.Kind()))

	switch evt := e.(type) {
	case AtomEvent:
		return r.handleAtomEvent(ctx, tx, evt)
	case StepEvent:
		return r.handleStepEvent(ctx, tx, evt)
	case SlewEvent, SequenceEvent, DatasetEvent:
		// Recorded only; no atom/step state transition is defined for
		// these kinds (spec.md §4.F transition table).
		return nil
	default:
		metrics.RecordTransitionError("unrecognized_kind")
		return apperrors.New(apperrors.ErrorTypeInternal, "unrecognized execution event kind")
	}
}

// eventKindLabel renders k as the low-cardinality metrics label for
// EventsRecordedTotal.
func eventKindLabel(k EventKind) string {
	switch k {
	case EventSlew:
		return "SLEW"
	case EventSequence:
		return "SEQUENCE"
	case EventAtom:
		return "ATOM"
	case EventStep:
		return "STEP"
	case EventDataset:
		return "DATASET"
	default:
		return "UNKNOWN"
	}
}

// checkMonotonic enforces "events within a visit are strictly ordered by
// timestamp; the engine panics on disorder" (spec.md §5). A panic (not
// a returned error) is deliberate: out-of-order delivery within a visit
// is a transport-layer bug, not a recoverable domain condition.
func (r *Recorder) checkMonotonic(ctx context.Context, tx database.Tx, e ExecutionEvent) error {
	last, ok, err := r.repo.LastEventTimestamp(ctx, tx, e.EventVisitID().String())
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	next := e.EventTimestamp().Time().UnixMicro()
	if next <= last {
		panic(fmt.Sprintf("recorder: non-monotonic event for visit %s: %d <= %d", e.EventVisitID(), next, last))
	}
	return nil
}

// handleAtomEvent applies the Atom(stage) transitions of spec.md §4.F.
func (r *Recorder) handleAtomEvent(ctx context.Context, tx database.Tx, evt AtomEvent) error {
	atom, err := r.repo.GetAtom(ctx, database.NoTransaction{}, evt.AtomID)
	if err != nil {
		return err
	}
	switch evt.Stage {
	case AtomStageStart:
		if err := r.repo.SetAtomState(ctx, tx, evt.AtomID, odbtype.AtomOngoing); err != nil {
			return err
		}
		return r.abandonOtherOngoingAtoms(ctx, tx, atom.ObservationID, evt.AtomID)
	case AtomStageEnd:
		return r.repo.SetAtomState(ctx, tx, evt.AtomID, odbtype.AtomCompleted)
	default:
		return apperrors.Newf(apperrors.ErrorTypeInternal, "unrecognized atom stage %q", evt.Stage)
	}
}

// abandonOtherOngoingAtoms abandons every Ongoing atom of obsID other
// than keep, along with each abandoned atom's own Ongoing steps
// (spec.md §4.F StartAtom: "abandon every other Ongoing atom for this
// observation and their Ongoing steps").
func (r *Recorder) abandonOtherOngoingAtoms(ctx context.Context, tx database.Tx, obsID string, keep odbtype.AtomID) error {
	others, err := r.repo.OngoingAtomsExcept(ctx, tx, obsID, keep)
	if err != nil {
		return err
	}
	steps, err := r.repo.OngoingStepsExcept(ctx, tx, obsID, keep)
	if err != nil {
		return err
	}
	for _, sid := range steps {
		if err := r.repo.SetStepState(ctx, tx, sid, odbtype.StepAbandoned, nil); err != nil {
			return err
		}
	}
	for _, aid := range others {
		if err := r.repo.SetAtomState(ctx, tx, aid, odbtype.AtomAbandoned); err != nil {
			return err
		}
	}
	return nil
}

// handleStepEvent applies the Step(stage) transitions of spec.md §4.F.
func (r *Recorder) handleStepEvent(ctx context.Context, tx database.Tx, evt StepEvent) error {
	switch evt.Stage {
	case StepStageStart:
		step, err := r.repo.GetStep(ctx, database.NoTransaction{}, evt.StepID)
		if err != nil {
			return err
		}
		others, err := r.repo.OngoingStepsExcept(ctx, tx, step.ObservationID, step.AtomID)
		if err != nil {
			return err
		}
		for _, sid := range others {
			if err := r.repo.SetStepState(ctx, tx, sid, odbtype.StepAbandoned, nil); err != nil {
				return err
			}
		}
		return r.repo.SetStepState(ctx, tx, evt.StepID, odbtype.StepOngoing, nil)
	case StepStageEnd:
		t := evt.Timestamp
		return r.repo.SetStepState(ctx, tx, evt.StepID, odbtype.StepCompleted, &t)
	case StepStageAbort:
		return r.repo.SetStepState(ctx, tx, evt.StepID, odbtype.StepAborted, nil)
	case StepStageStop:
		return r.repo.SetStepState(ctx, tx, evt.StepID, odbtype.StepStopped, nil)
	default:
		return apperrors.Newf(apperrors.ErrorTypeInternal, "unrecognized step stage %q", evt.Stage)
	}
}
