package observation

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-logr/logr"
	"github.com/jmoiron/sqlx"

	"github.com/obsdb/odb/internal/database"
	apperrors "github.com/obsdb/odb/internal/errors"
	"github.com/obsdb/odb/pkg/odbtype"
	"github.com/obsdb/odb/pkg/workflow"
)

// Repository is the Observation/Program persistence layer, matching the
// sqlx + database.Tx/NoTransaction shape of pkg/recorder.Repository.
type Repository struct {
	db     *sqlx.DB
	logger logr.Logger
}

// NewRepository builds a Repository over db.
func NewRepository(db *sqlx.DB, logger logr.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// observationSeq mints the counter value backing a new observation GID,
// the same scheme pkg/recorder.datasetSeq uses for dataset ids.
func observationSeq() uint64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return uint64(time.Now().UnixNano())
	}
	return binary.BigEndian.Uint64(buf[:])
}

// persistedConstraints is the JSON shape written to observation.constraint_set.
// odbtype's value types keep their fields unexported for invariant
// safety, so persistence round-trips through this plain DTO rather than
// marshaling them directly.
type persistedConstraints struct {
	CloudExtinction   odbtype.CloudExtinction             `json:"cloudExtinction"`
	ImageQuality      odbtype.ImageQuality                `json:"imageQuality"`
	SkyBackground     odbtype.SkyBackground               `json:"skyBackground"`
	WaterVapor        odbtype.WaterVapor                  `json:"waterVapor"`
	ElevationKind     odbtype.ElevationRangeKind           `json:"elevationKind"`
	ElevationMin      float64                              `json:"elevationMin"`
	ElevationMax      float64                              `json:"elevationMax"`
	PositionAngleKind odbtype.PositionAngleConstraintKind `json:"positionAngleKind"`
	PositionAngleDeg  float64                              `json:"positionAngleDeg"`
	HasBaseCoords     bool                                 `json:"hasBaseCoords"`
	BaseRADeg         float64                              `json:"baseRaDeg"`
	BaseDecDeg        float64                              `json:"baseDecDeg"`
}

func encodeConstraints(obs CreateObservationInput) ([]byte, error) {
	p := persistedConstraints{
		CloudExtinction:   obs.Constraints.CloudExtinction,
		ImageQuality:      obs.Constraints.ImageQuality,
		SkyBackground:     obs.Constraints.SkyBackground,
		WaterVapor:        obs.Constraints.WaterVapor,
		ElevationKind:     obs.Constraints.Elevation.Kind,
		ElevationMin:      obs.Constraints.Elevation.Min,
		ElevationMax:      obs.Constraints.Elevation.Max,
		PositionAngleKind: obs.PositionAngle.Kind,
		PositionAngleDeg:  obs.PositionAngle.Angle.Degrees(),
	}
	if obs.BaseCoordinates != nil {
		p.HasBaseCoords = true
		p.BaseRADeg = obs.BaseCoordinates.RA.Degrees()
		p.BaseDecDeg = obs.BaseCoordinates.Dec.Degrees()
	}
	return json.Marshal(p)
}

func decodeConstraints(raw []byte) (odbtype.ConstraintSet, odbtype.PositionAngleConstraint, *odbtype.Coordinates, error) {
	var p persistedConstraints
	if err := json.Unmarshal(raw, &p); err != nil {
		return odbtype.ConstraintSet{}, odbtype.PositionAngleConstraint{}, nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "decoding observation constraint set")
	}
	constraints := odbtype.ConstraintSet{
		CloudExtinction: p.CloudExtinction,
		ImageQuality:    p.ImageQuality,
		SkyBackground:   p.SkyBackground,
		WaterVapor:      p.WaterVapor,
		Elevation: odbtype.ElevationRange{
			Kind: p.ElevationKind,
			Min:  p.ElevationMin,
			Max:  p.ElevationMax,
		},
	}
	posAngle := odbtype.PositionAngleConstraint{
		Kind:  p.PositionAngleKind,
		Angle: odbtype.AngleFromDegrees(p.PositionAngleDeg),
	}
	var coords *odbtype.Coordinates
	if p.HasBaseCoords {
		coords = &odbtype.Coordinates{
			RA:  odbtype.AngleFromDegrees(p.BaseRADeg),
			Dec: odbtype.AngleFromDegrees(p.BaseDecDeg),
		}
	}
	return constraints, posAngle, coords, nil
}

// observationRow is the flat scan target for a SELECT against
// observation.
type observationRow struct {
	ID                   string         `db:"id"`
	ProgramID            string         `db:"program_id"`
	ObservingMode        string         `db:"observing_mode"`
	ModeParams           []byte         `db:"mode_params"`
	ConstraintSet        []byte         `db:"constraint_set"`
	ScienceBand          string         `db:"science_band"`
	CalibrationRole      string         `db:"calibration_role"`
	UserWorkflowOverride sql.NullString `db:"user_workflow_override"`
	CreatedAt            time.Time      `db:"created_at"`
}

func (r observationRow) toObservation() (Observation, error) {
	id, err := odbtype.ParseGID(r.ID)
	if err != nil {
		return Observation{}, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "parsing observation id")
	}
	programID, err := odbtype.ParseGID(r.ProgramID)
	if err != nil {
		return Observation{}, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "parsing program id")
	}
	constraints, posAngle, coords, err := decodeConstraints(r.ConstraintSet)
	if err != nil {
		return Observation{}, err
	}
	var override *workflow.UserState
	if r.UserWorkflowOverride.Valid {
		s := workflow.UserState(r.UserWorkflowOverride.String)
		override = &s
	}
	return Observation{
		ID:                   odbtype.ObservationID(id),
		ProgramID:            odbtype.ProgramID(programID),
		ObservingMode:        r.ObservingMode,
		ModeParams:           r.ModeParams,
		Constraints:          constraints,
		PositionAngle:        posAngle,
		BaseCoordinates:      coords,
		ScienceBand:          odbtype.ScienceBand(r.ScienceBand),
		CalibrationRole:      odbtype.CalibrationRole(r.CalibrationRole),
		UserWorkflowOverride: override,
		CreatedAt:            odbtype.TimestampFromTime(r.CreatedAt),
	}, nil
}

// Create inserts a new Observation for in (Mutation.createObservation,
// spec.md §6).
func (r *Repository) Create(ctx context.Context, tx database.Tx, in CreateObservationInput) (Observation, error) {
	var programExists int
	err := tx.QueryRowxContext(ctx, `SELECT COUNT(*) FROM program WHERE id = $1`, in.ProgramID.String()).Scan(&programExists)
	if err != nil {
		return Observation{}, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "checking program existence")
	}
	if programExists == 0 {
		return Observation{}, apperrors.NotFound("program", in.ProgramID.String())
	}

	constraintJSON, err := encodeConstraints(in)
	if err != nil {
		return Observation{}, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "encoding observation constraint set")
	}
	if in.ModeParams == nil {
		in.ModeParams = []byte("{}")
	}

	id := odbtype.ObservationID(odbtype.NewGID("o", observationSeq()))
	now := time.Now()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO observation (id, program_id, observing_mode, mode_params, constraint_set, science_band, calibration_role, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id.String(), in.ProgramID.String(), in.ObservingMode, in.ModeParams, constraintJSON,
		string(in.ScienceBand), string(in.CalibrationRole), now,
	)
	if err != nil {
		return Observation{}, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "inserting observation")
	}

	return Observation{
		ID:              id,
		ProgramID:       in.ProgramID,
		ObservingMode:   in.ObservingMode,
		ModeParams:      in.ModeParams,
		Constraints:     in.Constraints,
		PositionAngle:   in.PositionAngle,
		BaseCoordinates: in.BaseCoordinates,
		ScienceBand:     in.ScienceBand,
		CalibrationRole: in.CalibrationRole,
		CreatedAt:       odbtype.TimestampFromTime(now),
	}, nil
}

// Get reads one Observation by id (Query.observation, spec.md §6).
func (r *Repository) Get(ctx context.Context, _ database.NoTransaction, id odbtype.ObservationID) (Observation, error) {
	var row observationRow
	err := r.db.GetContext(ctx, &row, `SELECT id, program_id, observing_mode, mode_params, constraint_set, science_band, calibration_role, user_workflow_override, created_at FROM observation WHERE id = $1`, id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return Observation{}, apperrors.NotFound("observation", id.String())
	}
	if err != nil {
		return Observation{}, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "reading observation")
	}
	return row.toObservation()
}

// List returns up to limit observations across all programs, most
// recently created first (Query.observations, spec.md §6). Predicate
// filtering ("where") is layered on top by pkg/api/filter, which asks
// List for an unfiltered page and evaluates the predicate in-process.
func (r *Repository) List(ctx context.Context, _ database.NoTransaction, limit int) ([]Observation, error) {
	var rows []observationRow
	err := r.db.SelectContext(ctx,
		&rows,
		`SELECT id, program_id, observing_mode, mode_params, constraint_set, science_band, calibration_role, user_workflow_override, created_at
		 FROM observation ORDER BY created_at DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "listing observations")
	}
	out := make([]Observation, 0, len(rows))
	for _, row := range rows {
		obs, err := row.toObservation()
		if err != nil {
			return nil, err
		}
		out = append(out, obs)
	}
	return out, nil
}

// Update applies patch to every observation in ids (Mutation.updateObservations,
// spec.md §6); it returns the number of rows touched. Only the
// ScienceBand and UserWorkflowOverride fields are written; patch.Constraints
// is not applied by Update.
func (r *Repository) Update(ctx context.Context, tx database.Tx, ids []odbtype.ObservationID, patch ObservationPatch) (int, error) {
	touched := 0
	for _, id := range ids {
		hit := false
		if patch.ScienceBand != nil {
			res, err := tx.ExecContext(ctx, `UPDATE observation SET science_band = $1 WHERE id = $2`, string(*patch.ScienceBand), id.String())
			if err != nil {
				return touched, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "updating observation science band")
			}
			if n, _ := res.RowsAffected(); n > 0 {
				hit = true
			}
		}
		if patch.UserWorkflowOverride != nil {
			res, err := tx.ExecContext(ctx, `UPDATE observation SET user_workflow_override = $1 WHERE id = $2`, string(*patch.UserWorkflowOverride), id.String())
			if err != nil {
				return touched, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "updating observation workflow override")
			}
			if n, _ := res.RowsAffected(); n > 0 {
				hit = true
			}
		}
		if hit {
			touched++
		}
	}
	return touched, nil
}

// Clone duplicates sourceID's row under a fresh id, optionally applying
// patch to the copy (Mutation.cloneObservation, spec.md §6).
func (r *Repository) Clone(ctx context.Context, tx database.Tx, sourceID odbtype.ObservationID, patch *ObservationPatch) (Observation, error) {
	var row observationRow
	err := tx.QueryRowxContext(ctx,
		`SELECT id, program_id, observing_mode, mode_params, constraint_set, science_band, calibration_role, user_workflow_override, created_at FROM observation WHERE id = $1`,
		sourceID.String(),
	).Scan(&row.ID, &row.ProgramID, &row.ObservingMode, &row.ModeParams, &row.ConstraintSet, &row.ScienceBand, &row.CalibrationRole, &row.UserWorkflowOverride, &row.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Observation{}, apperrors.NotFound("observation", sourceID.String())
	}
	if err != nil {
		return Observation{}, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "reading observation to clone")
	}

	scienceBand := row.ScienceBand
	if patch != nil && patch.ScienceBand != nil {
		scienceBand = string(*patch.ScienceBand)
	}
	constraintSet := row.ConstraintSet
	if patch != nil && patch.Constraints != nil {
		var src persistedConstraints
		if err := json.Unmarshal(row.ConstraintSet, &src); err != nil {
			return Observation{}, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "decoding source constraint set")
		}
		encoded, err := json.Marshal(persistedConstraints{
			CloudExtinction:   patch.Constraints.CloudExtinction,
			ImageQuality:      patch.Constraints.ImageQuality,
			SkyBackground:     patch.Constraints.SkyBackground,
			WaterVapor:        patch.Constraints.WaterVapor,
			ElevationKind:     patch.Constraints.Elevation.Kind,
			ElevationMin:      patch.Constraints.Elevation.Min,
			ElevationMax:      patch.Constraints.Elevation.Max,
			PositionAngleKind: src.PositionAngleKind,
			PositionAngleDeg:  src.PositionAngleDeg,
			HasBaseCoords:     src.HasBaseCoords,
			BaseRADeg:         src.BaseRADeg,
			BaseDecDeg:        src.BaseDecDeg,
		})
		if err != nil {
			return Observation{}, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "encoding cloned constraint set")
		}
		constraintSet = encoded
	}

	newID := odbtype.ObservationID(odbtype.NewGID("o", observationSeq()))
	now := time.Now()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO observation (id, program_id, observing_mode, mode_params, constraint_set, science_band, calibration_role, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		newID.String(), row.ProgramID, row.ObservingMode, row.ModeParams, constraintSet, scienceBand, row.CalibrationRole, now,
	)
	if err != nil {
		return Observation{}, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "inserting cloned observation")
	}

	cloned := row
	cloned.ID = newID.String()
	cloned.ScienceBand = scienceBand
	cloned.ConstraintSet = constraintSet
	cloned.CreatedAt = now
	return cloned.toObservation()
}

// GetProgram reads one Program by id (Query.program, spec.md §6).
func (r *Repository) GetProgram(ctx context.Context, _ database.NoTransaction, id odbtype.ProgramID) (Program, error) {
	var row struct {
		ID        string `db:"id"`
		Reference string `db:"reference"`
	}
	err := r.db.GetContext(ctx, &row, `SELECT id, reference FROM program WHERE id = $1`, id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return Program{}, apperrors.NotFound("program", id.String())
	}
	if err != nil {
		return Program{}, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "reading program")
	}
	gid, err := odbtype.ParseGID(row.ID)
	if err != nil {
		return Program{}, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "parsing program id")
	}
	return Program{ID: odbtype.ProgramID(gid), Reference: row.Reference}, nil
}

// GetProgramByReference resolves a Program by its human-assigned
// reference string (Query.program(reference), spec.md §6).
func (r *Repository) GetProgramByReference(ctx context.Context, _ database.NoTransaction, reference string) (Program, error) {
	var row struct {
		ID        string `db:"id"`
		Reference string `db:"reference"`
	}
	err := r.db.GetContext(ctx, &row, `SELECT id, reference FROM program WHERE reference = $1`, reference)
	if errors.Is(err, sql.ErrNoRows) {
		return Program{}, apperrors.NotFound("program", reference)
	}
	if err != nil {
		return Program{}, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "reading program by reference")
	}
	gid, err := odbtype.ParseGID(row.ID)
	if err != nil {
		return Program{}, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "parsing program id")
	}
	return Program{ID: odbtype.ProgramID(gid), Reference: row.Reference}, nil
}

// ListPrograms returns up to limit programs (Query.programs, spec.md §6).
func (r *Repository) ListPrograms(ctx context.Context, _ database.NoTransaction, limit int) ([]Program, error) {
	var rows []struct {
		ID        string `db:"id"`
		Reference string `db:"reference"`
	}
	err := r.db.SelectContext(ctx, &rows, `SELECT id, reference FROM program ORDER BY reference LIMIT $1`, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "listing programs")
	}
	out := make([]Program, 0, len(rows))
	for _, row := range rows {
		gid, err := odbtype.ParseGID(row.ID)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "parsing program id")
		}
		out = append(out, Program{ID: odbtype.ProgramID(gid), Reference: row.Reference})
	}
	return out, nil
}

// CreateProgram inserts a new Program. Proposal submission and CfP
// approval themselves stay out of scope (spec.md §1); this exists only
// so Observation.ProgramID has something to reference in tests and
// local deployments.
func (r *Repository) CreateProgram(ctx context.Context, tx database.Tx, reference string) (Program, error) {
	id := odbtype.ProgramID(odbtype.NewGID("p", observationSeq()))
	_, err := tx.ExecContext(ctx, `INSERT INTO program (id, reference) VALUES ($1, $2)`, id.String(), reference)
	if err != nil {
		return Program{}, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "inserting program")
	}
	return Program{ID: id, Reference: reference}, nil
}
