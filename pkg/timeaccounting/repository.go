package timeaccounting

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/obsdb/odb/internal/database"
	apperrors "github.com/obsdb/odb/internal/errors"
	"github.com/obsdb/odb/pkg/odbtype"
)

// RecorderClassifier implements StepClassifier by reading step_record
// directly, so the engine's Fold never needs its own copy of step
// lifecycle state (spec.md §4.F/§4.H share the same tables).
type RecorderClassifier struct {
	db *sqlx.DB
}

// NewRecorderClassifier builds a RecorderClassifier over db.
func NewRecorderClassifier(db *sqlx.DB) *RecorderClassifier {
	return &RecorderClassifier{db: db}
}

func (c *RecorderClassifier) ClassifyStep(ctx context.Context, stepID odbtype.StepID) (odbtype.AtomID, odbtype.ChargeClass, error) {
	var row struct {
		AtomID       string `db:"atom_id"`
		ObserveClass string `db:"observe_class"`
	}
	err := c.db.QueryRowxContext(ctx,
		`SELECT atom_id, observe_class FROM step_record WHERE id = $1`, stepID.String(),
	).Scan(&row.AtomID, &row.ObserveClass)
	if errors.Is(err, sql.ErrNoRows) {
		return odbtype.AtomID{}, "", apperrors.NotFound("step", stepID.String())
	}
	if err != nil {
		return odbtype.AtomID{}, "", apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "resolving step classification")
	}
	atomID, err := odbtype.ParseAtomID(row.AtomID)
	if err != nil {
		return odbtype.AtomID{}, "", apperrors.Wrap(err, apperrors.ErrorTypeInternal, "parsing atom id")
	}
	return atomID, odbtype.ChargeClassFor(odbtype.ObserveClass(row.ObserveClass)), nil
}

// Repository persists manually-entered corrections and, optionally, a
// materialized discount snapshot so a visit's invoice can be rendered
// without replaying its full event history on every read (spec.md §3,
// "Lifecycles": "persisted form is the event log plus optionally a
// materialized interval table").
type Repository struct {
	db *sqlx.DB
}

// NewRepository builds a Repository over db.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// InsertCorrection persists c against visitID (spec.md §6,
// addTimeChargeCorrection).
func (r *Repository) InsertCorrection(ctx context.Context, tx database.Tx, visitID odbtype.VisitID, c Correction) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO time_charge_correction (visit_id, charge_class, op, amount_micros, app_user, comment)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		visitID.String(), string(c.ChargeClass), string(c.Op), c.Amount.Micros(), c.User, c.Comment,
	)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "inserting time charge correction")
	}
	return nil
}

// ListCorrections returns every correction recorded for visitID, in
// insertion order — the order spec.md §4.H requires corrections be
// applied in.
func (r *Repository) ListCorrections(ctx context.Context, _ database.NoTransaction, visitID odbtype.VisitID) ([]Correction, error) {
	rows, err := r.db.QueryxContext(ctx,
		`SELECT charge_class, op, amount_micros, app_user, comment FROM time_charge_correction
		 WHERE visit_id = $1 ORDER BY id ASC`, visitID.String(),
	)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "listing time charge corrections")
	}
	defer rows.Close()

	var out []Correction
	for rows.Next() {
		var row struct {
			ChargeClass  string `db:"charge_class"`
			Op           string `db:"op"`
			AmountMicros int64  `db:"amount_micros"`
			AppUser      string `db:"app_user"`
			Comment      sql.NullString
		}
		if err := rows.Scan(&row.ChargeClass, &row.Op, &row.AmountMicros, &row.AppUser, &row.Comment); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "scanning time charge correction")
		}
		out = append(out, Correction{
			ChargeClass: odbtype.ChargeClass(row.ChargeClass),
			Op:          CorrectionOp(row.Op),
			Amount:      odbtype.SpanFromMicros(row.AmountMicros),
			User:        row.AppUser,
			Comment:     row.Comment.String,
		})
	}
	return out, rows.Err()
}
