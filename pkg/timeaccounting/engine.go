package timeaccounting

import (
	"context"
	"sort"

	apperrors "github.com/obsdb/odb/internal/errors"
	"github.com/obsdb/odb/pkg/odbtype"
	"github.com/obsdb/odb/pkg/recorder"
)

// StepClassifier resolves the AtomID and ChargeClass a step belongs to,
// so the engine can attach a Context to the interval a step occupies
// without re-deriving it from the recorder's tables on every fold.
type StepClassifier interface {
	ClassifyStep(ctx context.Context, stepID odbtype.StepID) (atomID odbtype.AtomID, chargeClass odbtype.ChargeClass, err error)
}

// Engine implements the event-stream-to-invoice pipeline of spec.md
// §4.H.
type Engine struct {
	Classifier StepClassifier
}

// NewEngine builds an Engine over classifier.
func NewEngine(classifier StepClassifier) *Engine {
	return &Engine{Classifier: classifier}
}

// FoldResult is Fold's output: the charged state plus whether any Atom
// event occurred at all, which the NoData discount needs to
// distinguish "science was attempted and produced no data" from a bare
// engineering session that never started a sequence atom (spec.md
// §4.H, NoData rule; see DESIGN.md for the resolution of this
// distinction).
type FoldResult struct {
	State           State
	SawAnyAtomEvent bool
}

// Fold validates event ordering, then groups contiguous events sharing
// the same Context into entries and fills the gaps between them with a
// visit-level entry (spec.md §4.H steps 1-4). Unlike the recorder's
// RecordEvent (which panics on disorder per spec.md §5), Fold returns
// an error: accounting recomputation is a read path, and a malformed
// event history should surface as a normal domain error rather than
// crash the request.
func (e *Engine) Fold(ctx context.Context, visitID odbtype.VisitID, events []recorder.ExecutionEvent) (FoldResult, error) {
	sorted := make([]recorder.ExecutionEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EventTimestamp().Before(sorted[j].EventTimestamp())
	})
	for i := 1; i < len(sorted); i++ {
		if !sorted[i].EventTimestamp().After(sorted[i-1].EventTimestamp()) {
			return FoldResult{}, apperrors.InvalidArgument("execution events for a visit must be strictly ordered by timestamp")
		}
	}

	state := Empty()
	sawAnyAtomEvent := false

	type pending struct {
		start odbtype.Timestamp
		ctx   Context
	}
	var cur *pending

	flush := func(end odbtype.Timestamp) {
		if cur == nil {
			return
		}
		state = state.Put(odbtype.NewInterval(cur.start, end), cur.ctx)
		cur = nil
	}
	idleContext := Context{VisitID: visitID, ChargeClass: odbtype.ChargeProgram}
	startIdle := func(ts odbtype.Timestamp) {
		cur = &pending{start: ts, ctx: idleContext}
	}

	for _, evt := range sorted {
		switch ev := evt.(type) {
		case recorder.SlewEvent:
			// Carries no Context of its own; absorbed into whatever span
			// is currently open.
		case recorder.SequenceEvent:
			switch ev.Command {
			case recorder.SequenceStart:
				flush(ev.EventTimestamp())
				startIdle(ev.EventTimestamp())
			case recorder.SequenceStop:
				flush(ev.EventTimestamp())
			}
		case recorder.AtomEvent:
			sawAnyAtomEvent = true
		case recorder.StepEvent:
			switch ev.Stage {
			case recorder.StepStageStart:
				flush(ev.EventTimestamp())
				atomID, chargeClass, err := e.Classifier.ClassifyStep(ctx, ev.StepID)
				if err != nil {
					return FoldResult{}, err
				}
				cur = &pending{
					start: ev.EventTimestamp(),
					ctx: Context{
						VisitID:     visitID,
						ChargeClass: chargeClass,
						Step:        &StepContext{AtomID: atomID, StepID: ev.StepID, ChargeClass: chargeClass},
					},
				}
			case recorder.StepStageEnd, recorder.StepStageAbort, recorder.StepStageStop:
				flush(ev.EventTimestamp())
				startIdle(ev.EventTimestamp())
			}
		case recorder.DatasetEvent:
			// Recorded only; a dataset's QA state affects accounting only
			// through the QA-failed discount, applied after folding.
		}
	}
	// A step or session left open at the end of the stream (no closing
	// event yet) contributes no charged time — its duration is still
	// unknown, not zero, so leaving it unflushed rather than guessing an
	// end instant is the only sound choice.

	return FoldResult{State: state, SawAnyAtomEvent: sawAnyAtomEvent}, nil
}
