package recorder

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/obsdb/odb/internal/database"
	apperrors "github.com/obsdb/odb/internal/errors"
	"github.com/obsdb/odb/pkg/odbtype"
)

// eventPayload is the JSON shape persisted in execution_event.payload;
// only the fields relevant to the event's Kind are populated (spec.md
// §3, "ExecutionEvent ... each carries a timestamp ... and the relevant
// ids").
type eventPayload struct {
	Command   *SequenceCommand `json:"command,omitempty"`
	AtomID    *string          `json:"atomId,omitempty"`
	AtomStage *AtomStage       `json:"atomStage,omitempty"`
	StepID    *string          `json:"stepId,omitempty"`
	StepStage *StepStage       `json:"stepStage,omitempty"`
	DatasetID *string          `json:"datasetId,omitempty"`
	DatasetStage *DatasetStage `json:"datasetStage,omitempty"`
}

func eventTypeName(k EventKind) string {
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

// AppendEvent persists e to the execution_event log (spec.md §4.F
// recordEvent: "appends event"). Event ingestion is not retried
// internally (spec.md §7): a caller whose transaction fails after this
// insert is expected to retry the whole recordEvent call idempotently.
func (r *Repository) AppendEvent(ctx context.Context, tx database.Tx, e ExecutionEvent) error {
	payload := eventPayload{}
	switch evt := e.(type) {
	case SlewEvent:
	case SequenceEvent:
		payload.Command = &evt.Command
	case AtomEvent:
		id := evt.AtomID.String()
		payload.AtomID = &id
		payload.AtomStage = &evt.Stage
	case StepEvent:
		id := evt.StepID.String()
		payload.StepID = &id
		payload.StepStage = &evt.Stage
	case DatasetEvent:
		id := evt.DatasetID.String()
		payload.DatasetID = &id
		payload.DatasetStage = &evt.Stage
	default:
		return apperrors.New(apperrors.ErrorTypeInternal, "unrecognized execution event kind")
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeInternal, "serializing execution event")
	}

	var visitExists int
	err = tx.QueryRowxContext(ctx, `SELECT COUNT(*) FROM visit WHERE id = $1`, e.EventVisitID().String()).Scan(&visitExists)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "checking visit existence")
	}
	if visitExists == 0 {
		return VisitNotFound(e.EventVisitID().String())
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO execution_event (visit_id, event_type, payload, occurred_at) VALUES ($1, $2, $3, $4)`,
		e.EventVisitID().String(), eventTypeName(e.Kind()), raw, e.EventTimestamp().Time(),
	)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "appending execution event")
	}
	return nil
}

// LastEventTimestamp returns the timestamp of the most recently
// appended event for visitID, or false if the visit has none yet. The
// recorder uses this to enforce "events within a visit are strictly
// ordered by timestamp" (spec.md §5).
func (r *Repository) LastEventTimestamp(ctx context.Context, tx database.Tx, visitID string) (int64, bool, error) {
	var micros sql.NullFloat64
	err := tx.QueryRowxContext(ctx,
		`SELECT EXTRACT(EPOCH FROM MAX(occurred_at)) * 1e6 FROM execution_event WHERE visit_id = $1`, visitID,
	).Scan(&micros)
	if err != nil {
		return 0, false, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "reading last event timestamp")
	}
	if !micros.Valid {
		return 0, false, nil
	}
	return int64(micros.Float64), true, nil
}

// ListEventsForVisit reconstructs every event appended for visitID, in
// the order the log holds them, so the TimeAccountingEngine can rebuild
// the visit's state on demand (spec.md §3, "Lifecycles": "Time
// accounting state is rebuilt from event history on demand").
func (r *Repository) ListEventsForVisit(ctx context.Context, _ database.NoTransaction, visitID odbtype.VisitID) ([]ExecutionEvent, error) {
	rows, err := r.db.QueryxContext(ctx,
		`SELECT event_type, payload, occurred_at FROM execution_event WHERE visit_id = $1 ORDER BY occurred_at ASC, id ASC`,
		visitID.String(),
	)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "listing execution events")
	}
	defer rows.Close()

	var events []ExecutionEvent
	for rows.Next() {
		var (
			eventType string
			raw       []byte
			occurred  time.Time
		)
		if err := rows.Scan(&eventType, &raw, &occurred); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "scanning execution event")
		}
		var payload eventPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "deserializing execution event")
		}
		ts := odbtype.TimestampFromTime(occurred)
		event, err := payload.toEvent(visitID, ts, eventType)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// toEvent reverses AppendEvent's encoding, rebuilding the concrete
// ExecutionEvent variant the payload was written for.
func (p eventPayload) toEvent(visitID odbtype.VisitID, ts odbtype.Timestamp, eventType string) (ExecutionEvent, error) {
	switch eventType {
	case "SLEW":
		return NewSlewEvent(visitID, ts), nil
	case "SEQUENCE":
		if p.Command == nil {
			return nil, apperrors.New(apperrors.ErrorTypeInternal, "sequence event missing command")
		}
		return NewSequenceEvent(visitID, ts, *p.Command), nil
	case "ATOM":
		if p.AtomID == nil || p.AtomStage == nil {
			return nil, apperrors.New(apperrors.ErrorTypeInternal, "atom event missing id or stage")
		}
		atomID, err := odbtype.ParseAtomID(*p.AtomID)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "parsing atom id")
		}
		return NewAtomEvent(visitID, ts, atomID, *p.AtomStage), nil
	case "STEP":
		if p.StepID == nil || p.StepStage == nil {
			return nil, apperrors.New(apperrors.ErrorTypeInternal, "step event missing id or stage")
		}
		stepID, err := odbtype.ParseStepID(*p.StepID)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "parsing step id")
		}
		return NewStepEvent(visitID, ts, stepID, *p.StepStage), nil
	case "DATASET":
		if p.DatasetID == nil || p.DatasetStage == nil {
			return nil, apperrors.New(apperrors.ErrorTypeInternal, "dataset event missing id or stage")
		}
		gid, err := odbtype.ParseGID(*p.DatasetID)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "parsing dataset id")
		}
		return NewDatasetEvent(visitID, ts, odbtype.DatasetID(gid), *p.DatasetStage), nil
	default:
		return nil, apperrors.Newf(apperrors.ErrorTypeInternal, "unrecognized persisted event type %q", eventType)
	}
}
