package recorder

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/binary"
	"errors"
	"time"

	"github.com/go-logr/logr"
	"github.com/jmoiron/sqlx"

	"github.com/obsdb/odb/internal/database"
	apperrors "github.com/obsdb/odb/internal/errors"
	"github.com/obsdb/odb/pkg/odbtype"
	"github.com/obsdb/odb/pkg/timeestimator"
)

// datasetSeq mints the counter value backing a new dataset GID. Datasets
// are created directly against the database rather than through an
// in-process sequence, so a random 64-bit value stands in for a true
// monotonic counter; GID only requires its value be unique and
// comparable, not chronological.
func datasetSeq() uint64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return uint64(time.Now().UnixNano())
	}
	return binary.BigEndian.Uint64(buf[:])
}

// Repository is the ExecutionRecorder's persistence layer (spec.md
// §4.F). Mutations, and the reads that run inside a mutation's
// transaction (e.g. OngoingAtomsExcept, NonTerminalSteps), take an
// injected database.Tx; standalone reads take the
// database.NoTransaction marker, so a caller can never accidentally
// nest a transaction inside a read path.
type Repository struct {
	db     *sqlx.DB
	logger logr.Logger
}

// NewRepository builds a Repository over db, logging through logger.
func NewRepository(db *sqlx.DB, logger logr.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// InsertVisit persists a new visit for obsID (spec.md §4.F:
// "observation exists, instrument matches" → "new visit persisted").
func (r *Repository) InsertVisit(ctx context.Context, tx database.Tx, obsID, instrument string) (Visit, error) {
	var exists int
	err := tx.QueryRowxContext(ctx,
		`SELECT COUNT(*) FROM observation WHERE id = $1`, obsID,
	).Scan(&exists)
	if err != nil {
		return Visit{}, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "checking observation existence")
	}
	if exists == 0 {
		return Visit{}, ObservationNotFound(obsID)
	}

	visit := Visit{
		ID:            odbtype.NewVisitID(),
		ObservationID: obsID,
		Instrument:    instrument,
		CreatedAt:     odbtype.TimestampFromTime(time.Now()),
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO visit (id, observation_id, instrument, created_at) VALUES ($1, $2, $3, $4)`,
		visit.ID.String(), visit.ObservationID, visit.Instrument, visit.CreatedAt.Time(),
	)
	if err != nil {
		return Visit{}, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "inserting visit")
	}
	return visit, nil
}

// GetVisit reads a visit by id (spec.md §5, read API over NoTransaction).
func (r *Repository) GetVisit(ctx context.Context, _ database.NoTransaction, id odbtype.VisitID) (Visit, error) {
	var row struct {
		ObservationID string    `db:"observation_id"`
		Instrument    string    `db:"instrument"`
		CreatedAt     time.Time `db:"created_at"`
	}
	err := r.db.QueryRowxContext(ctx,
		`SELECT observation_id, instrument, created_at FROM visit WHERE id = $1`, id.String(),
	).Scan(&row.ObservationID, &row.Instrument, &row.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Visit{}, VisitNotFound(id.String())
	}
	if err != nil {
		return Visit{}, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "reading visit")
	}
	return Visit{
		ID:            id,
		ObservationID: row.ObservationID,
		Instrument:    row.Instrument,
		CreatedAt:     odbtype.TimestampFromTime(row.CreatedAt),
	}, nil
}

// ListVisitsForObservation returns every visit of obsID, ordered by
// creation time (spec.md §6, Query.observation.execution.visits).
func (r *Repository) ListVisitsForObservation(ctx context.Context, _ database.NoTransaction, obsID string) ([]Visit, error) {
	rows, err := r.db.QueryxContext(ctx,
		`SELECT id, instrument, created_at FROM visit WHERE observation_id = $1 ORDER BY created_at ASC`, obsID,
	)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "listing visits for observation")
	}
	defer rows.Close()

	var out []Visit
	for rows.Next() {
		var row struct {
			ID         string    `db:"id"`
			Instrument string    `db:"instrument"`
			CreatedAt  time.Time `db:"created_at"`
		}
		if err := rows.Scan(&row.ID, &row.Instrument, &row.CreatedAt); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "scanning visit")
		}
		id, err := odbtype.ParseVisitID(row.ID)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "parsing visit id")
		}
		out = append(out, Visit{ID: id, ObservationID: obsID, Instrument: row.Instrument, CreatedAt: odbtype.TimestampFromTime(row.CreatedAt)})
	}
	return out, rows.Err()
}

// InsertAtom persists a new NotStarted atom under visitID (spec.md
// §4.F).
func (r *Repository) InsertAtom(ctx context.Context, tx database.Tx, visitID odbtype.VisitID, instrument string, stepCount int, seqType odbtype.SequenceType, generatedID *string) (Atom, error) {
	var obsID, visitInstrument string
	err := tx.QueryRowxContext(ctx,
		`SELECT observation_id, instrument FROM visit WHERE id = $1`, visitID.String(),
	).Scan(&obsID, &visitInstrument)
	if errors.Is(err, sql.ErrNoRows) {
		return Atom{}, VisitNotFound(visitID.String())
	}
	if err != nil {
		return Atom{}, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "checking visit existence")
	}
	if visitInstrument != instrument {
		return Atom{}, InstrumentMismatch(visitInstrument, instrument)
	}

	atom := Atom{
		ID:            odbtype.NewAtomID(),
		VisitID:       visitID,
		ObservationID: obsID,
		Instrument:    instrument,
		SequenceType:  seqType,
		StepCount:     stepCount,
		GeneratedID:   generatedID,
		State:         odbtype.AtomNotStarted,
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO atom_record (id, visit_id, observation_id, instrument, sequence_type, step_count, generated_id, state)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		atom.ID.String(), atom.VisitID.String(), atom.ObservationID, atom.Instrument,
		string(atom.SequenceType), atom.StepCount, nullableString(atom.GeneratedID), string(atom.State),
	)
	if err != nil {
		return Atom{}, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "inserting atom")
	}
	return atom, nil
}

// InsertStep persists a new NotStarted step under atomID. stepConfigJSON
// is the caller's pre-serialized StepConfig variant; estimate is the
// TimeEstimator's verdict for this step (spec.md §4.F, §4.D).
func (r *Repository) InsertStep(ctx context.Context, tx database.Tx, atomID odbtype.AtomID, instrument string, observeClass odbtype.ObserveClass, stepConfigJSON []byte, estimate timeestimator.StepEstimate, generatedID *string) (Step, error) {
	var obsID, atomInstrument string
	err := tx.QueryRowxContext(ctx,
		`SELECT observation_id, instrument FROM atom_record WHERE id = $1`, atomID.String(),
	).Scan(&obsID, &atomInstrument)
	if errors.Is(err, sql.ErrNoRows) {
		return Step{}, AtomNotFound(atomID.String())
	}
	if err != nil {
		return Step{}, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "checking atom existence")
	}
	if atomInstrument != instrument {
		return Step{}, InstrumentMismatch(atomInstrument, instrument)
	}

	var stepIndex int
	err = tx.QueryRowxContext(ctx,
		`SELECT COALESCE(MAX(step_index), 0) + 1 FROM step_record WHERE observation_id = $1`, obsID,
	).Scan(&stepIndex)
	if err != nil {
		return Step{}, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "allocating step index")
	}

	step := Step{
		ID:            odbtype.NewStepID(),
		AtomID:        atomID,
		ObservationID: obsID,
		Instrument:    instrument,
		StepIndex:     stepIndex,
		ObserveClass:  observeClass,
		GeneratedID:   generatedID,
		State:         odbtype.StepNotStarted,
		Estimate:      estimate,
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO step_record (id, atom_id, observation_id, instrument, step_index, step_config, observe_class, generated_id, state, time_estimate_micros)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		step.ID.String(), step.AtomID.String(), step.ObservationID, step.Instrument, step.StepIndex,
		stepConfigJSON, string(step.ObserveClass), nullableString(step.GeneratedID), string(step.State),
		estimate.Total.Total().Micros(),
	)
	if err != nil {
		return Step{}, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "inserting step")
	}
	return step, nil
}

// LastStepConfigForAtom returns the most recently inserted step's raw
// step_config bytes for atomID, ordered by step_index, so the API edge
// can recover the previous step's instrument configuration for
// pkg/timeestimator's config-change cost model (spec.md §4.D). Returns
// nil if the atom has no steps yet.
func (r *Repository) LastStepConfigForAtom(ctx context.Context, _ database.NoTransaction, atomID odbtype.AtomID) ([]byte, error) {
	var cfg []byte
	err := r.db.QueryRowxContext(ctx,
		`SELECT step_config FROM step_record WHERE atom_id = $1 ORDER BY step_index DESC LIMIT 1`, atomID.String(),
	).Scan(&cfg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "reading previous step config")
	}
	return cfg, nil
}

// InsertDataset persists a new dataset under stepID, enforcing
// observation-scoped filename uniqueness (spec.md §4.F).
func (r *Repository) InsertDataset(ctx context.Context, tx database.Tx, stepID odbtype.StepID, filename string, qa *odbtype.DatasetQAState) (Dataset, error) {
	var obsID string
	err := tx.QueryRowxContext(ctx,
		`SELECT observation_id FROM step_record WHERE id = $1`, stepID.String(),
	).Scan(&obsID)
	if errors.Is(err, sql.ErrNoRows) {
		return Dataset{}, StepNotFound(stepID.String())
	}
	if err != nil {
		return Dataset{}, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "checking step existence")
	}

	var exists int
	err = tx.QueryRowxContext(ctx,
		`SELECT COUNT(*) FROM t_dataset WHERE observation_id = $1 AND filename = $2`, obsID, filename,
	).Scan(&exists)
	if err != nil {
		return Dataset{}, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "checking filename uniqueness")
	}
	if exists > 0 {
		return Dataset{}, ReusedFilename(filename)
	}

	dataset := Dataset{
		ID:            odbtype.DatasetID(odbtype.NewGID("d", datasetSeq())),
		StepID:        stepID,
		ObservationID: obsID,
		Filename:      filename,
		QAState:       qa,
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO t_dataset (id, step_id, observation_id, filename, qa_state) VALUES ($1, $2, $3, $4, $5)`,
		dataset.ID.String(), dataset.StepID.String(), dataset.ObservationID, dataset.Filename, nullableQA(dataset.QAState),
	)
	if err != nil {
		return Dataset{}, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "inserting dataset")
	}
	return dataset, nil
}

// GetAtom reads an atom by id (spec.md §5, read APIs require
// database.NoTransaction to prevent accidental transaction nesting).
func (r *Repository) GetAtom(ctx context.Context, _ database.NoTransaction, id odbtype.AtomID) (Atom, error) {
	var (
		row struct {
			ObservationID string `db:"observation_id"`
			Instrument    string `db:"instrument"`
			SequenceType  string `db:"sequence_type"`
			StepCount     int    `db:"step_count"`
			State         string `db:"state"`
		}
	)
	err := r.db.QueryRowxContext(ctx,
		`SELECT observation_id, instrument, sequence_type, step_count, state FROM atom_record WHERE id = $1`, id.String(),
	).Scan(&row.ObservationID, &row.Instrument, &row.SequenceType, &row.StepCount, &row.State)
	if errors.Is(err, sql.ErrNoRows) {
		return Atom{}, AtomNotFound(id.String())
	}
	if err != nil {
		return Atom{}, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "reading atom")
	}
	return Atom{
		ID:            id,
		ObservationID: row.ObservationID,
		Instrument:    row.Instrument,
		SequenceType:  odbtype.SequenceType(row.SequenceType),
		StepCount:     row.StepCount,
		State:         odbtype.AtomExecutionState(row.State),
	}, nil
}

// GetStep reads a step by id (spec.md §5, read API over NoTransaction).
func (r *Repository) GetStep(ctx context.Context, _ database.NoTransaction, id odbtype.StepID) (Step, error) {
	var row struct {
		AtomID        string `db:"atom_id"`
		ObservationID string `db:"observation_id"`
		Instrument    string `db:"instrument"`
		StepIndex     int    `db:"step_index"`
		ObserveClass  string `db:"observe_class"`
		State         string `db:"state"`
	}
	err := r.db.QueryRowxContext(ctx,
		`SELECT atom_id, observation_id, instrument, step_index, observe_class, state FROM step_record WHERE id = $1`, id.String(),
	).Scan(&row.AtomID, &row.ObservationID, &row.Instrument, &row.StepIndex, &row.ObserveClass, &row.State)
	if errors.Is(err, sql.ErrNoRows) {
		return Step{}, StepNotFound(id.String())
	}
	if err != nil {
		return Step{}, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "reading step")
	}
	atomID, err := odbtype.ParseAtomID(row.AtomID)
	if err != nil {
		return Step{}, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "parsing atom id")
	}
	return Step{
		ID:            id,
		AtomID:        atomID,
		ObservationID: row.ObservationID,
		Instrument:    row.Instrument,
		StepIndex:     row.StepIndex,
		ObserveClass:  odbtype.ObserveClass(row.ObserveClass),
		State:         odbtype.StepExecutionState(row.State),
	}, nil
}

// SetAtomState updates atom id's lifecycle state unconditionally; callers
// enforce the non-terminal-to-terminal direction (spec.md §3,
// "Lifecycles").
func (r *Repository) SetAtomState(ctx context.Context, tx database.Tx, id odbtype.AtomID, state odbtype.AtomExecutionState) error {
	_, err := tx.ExecContext(ctx, `UPDATE atom_record SET state = $1 WHERE id = $2`, string(state), id.String())
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "updating atom state")
	}
	return nil
}

// SetStepState updates step id's lifecycle state and, if completedAt is
// non-nil, its completion timestamp (spec.md §3, Step.completedAt).
func (r *Repository) SetStepState(ctx context.Context, tx database.Tx, id odbtype.StepID, state odbtype.StepExecutionState, completedAt *odbtype.Timestamp) error {
	if completedAt != nil {
		_, err := tx.ExecContext(ctx,
			`UPDATE step_record SET state = $1, completed_at = $2 WHERE id = $3`,
			string(state), completedAt.Time(), id.String(),
		)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "updating step state")
		}
		return nil
	}
	_, err := tx.ExecContext(ctx, `UPDATE step_record SET state = $1 WHERE id = $2`, string(state), id.String())
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "updating step state")
	}
	return nil
}

// OngoingAtomsExcept returns the ids of every Ongoing atom belonging to
// obsID other than exclude, used by the "abandon every other Ongoing
// atom" rule of spec.md §4.F.
func (r *Repository) OngoingAtomsExcept(ctx context.Context, tx database.Tx, obsID string, exclude odbtype.AtomID) ([]odbtype.AtomID, error) {
	rows, err := tx.QueryxContext(ctx,
		`SELECT id FROM atom_record WHERE observation_id = $1 AND state = $2 AND id != $3`,
		obsID, string(odbtype.AtomOngoing), exclude.String(),
	)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "listing ongoing atoms")
	}
	defer rows.Close()
	return scanAtomIDs(rows)
}

// OngoingStepsExcept returns the ids of every Ongoing step belonging to
// obsID, excluding steps under exceptAtom (spec.md §4.F StartStep rule:
// "abandon every other Ongoing step for this observation except those
// in aid").
func (r *Repository) OngoingStepsExcept(ctx context.Context, tx database.Tx, obsID string, exceptAtom odbtype.AtomID) ([]odbtype.StepID, error) {
	rows, err := tx.QueryxContext(ctx,
		`SELECT id FROM step_record WHERE observation_id = $1 AND state = $2 AND atom_id != $3`,
		obsID, string(odbtype.StepOngoing), exceptAtom.String(),
	)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "listing ongoing steps")
	}
	defer rows.Close()
	return scanStepIDs(rows)
}

// NonTerminalAtoms returns every atom of obsID not yet in a terminal
// state, for the observation-level "abandon all" rule applied when a
// new visit begins (spec.md §4.F).
func (r *Repository) NonTerminalAtoms(ctx context.Context, tx database.Tx, obsID string) ([]odbtype.AtomID, error) {
	rows, err := tx.QueryxContext(ctx,
		`SELECT id FROM atom_record WHERE observation_id = $1 AND state NOT IN ($2, $3)`,
		obsID, string(odbtype.AtomCompleted), string(odbtype.AtomAbandoned),
	)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "listing non-terminal atoms")
	}
	defer rows.Close()
	return scanAtomIDs(rows)
}

// NonTerminalSteps returns every step of obsID not yet in a terminal
// state.
func (r *Repository) NonTerminalSteps(ctx context.Context, tx database.Tx, obsID string) ([]odbtype.StepID, error) {
	rows, err := tx.QueryxContext(ctx,
		`SELECT id FROM step_record WHERE observation_id = $1 AND state NOT IN ($2, $3, $4, $5)`,
		obsID, string(odbtype.StepCompleted), string(odbtype.StepAborted), string(odbtype.StepStopped), string(odbtype.StepAbandoned),
	)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "listing non-terminal steps")
	}
	defer rows.Close()
	return scanStepIDs(rows)
}

func scanAtomIDs(rows *sqlx.Rows) ([]odbtype.AtomID, error) {
	var ids []odbtype.AtomID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "scanning atom id")
		}
		id, err := odbtype.ParseAtomID(raw)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "parsing atom id")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AtomStatesForObservation returns the lifecycle state of every atom
// recorded for obsID across all of its visits, for deriving the
// observation's ExecutionState (spec.md §4.I, "Inputs per observation").
func (r *Repository) AtomStatesForObservation(ctx context.Context, _ database.NoTransaction, obsID string) ([]odbtype.AtomExecutionState, error) {
	rows, err := r.db.QueryxContext(ctx,
		`SELECT state FROM atom_record WHERE observation_id = $1`, obsID,
	)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "listing atom states for observation")
	}
	defer rows.Close()

	var states []odbtype.AtomExecutionState
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "scanning atom state")
		}
		states = append(states, odbtype.AtomExecutionState(s))
	}
	return states, rows.Err()
}

// FailedStepsForVisit returns the StepID of every step under visitID
// whose dataset QA state is Fail, for the timeaccounting engine's
// QA-failed discount rule (spec.md §4.H).
func (r *Repository) FailedStepsForVisit(ctx context.Context, _ database.NoTransaction, visitID odbtype.VisitID) ([]odbtype.StepID, error) {
	rows, err := r.db.QueryxContext(ctx,
		`SELECT d.step_id FROM t_dataset d
		 JOIN step_record s ON s.id = d.step_id
		 JOIN atom_record a ON a.id = s.atom_id
		 WHERE a.visit_id = $1 AND d.qa_state = $2`,
		visitID.String(), string(odbtype.QAFail),
	)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "listing QA-failed steps for visit")
	}
	defer rows.Close()
	return scanStepIDs(rows)
}

func scanStepIDs(rows *sqlx.Rows) ([]odbtype.StepID, error) {
	var ids []odbtype.StepID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "scanning step id")
		}
		id, err := odbtype.ParseStepID(raw)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "parsing step id")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func nullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullableQA(qa *odbtype.DatasetQAState) sql.NullString {
	if qa == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*qa), Valid: true}
}
