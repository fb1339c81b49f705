package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/obsdb/odb/internal/errors"
	"github.com/obsdb/odb/internal/database"
	"github.com/obsdb/odb/pkg/api/filter"
	"github.com/obsdb/odb/pkg/metrics"
	"github.com/obsdb/odb/pkg/observation"
	"github.com/obsdb/odb/pkg/odbtype"
	"github.com/obsdb/odb/pkg/workflow"
)

const defaultListLimit = 50

func parseLimit(r *http.Request, def int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperrors.InvalidArgument("limit must be a non-negative integer")
	}
	return n, nil
}

// toRow marshals v to its JSON projection for filter.Predicate.Match.
func toRow(v interface{}) (map[string]interface{}, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "projecting row for filtering")
	}
	var row map[string]interface{}
	if err := json.Unmarshal(b, &row); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "projecting row for filtering")
	}
	return row, nil
}

// Query.observation(id) (spec.md §6).
func (h *Handler) getObservation(w http.ResponseWriter, r *http.Request) {
	id, err := parseObservationID(chi.URLParam(r, "observationID"))
	if err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	obs, err := h.observations.Get(r.Context(), database.NoTransaction{}, id)
	if err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	writeJSON(w, observationDTO(obs))
}

// Query.observations(where, limit) (spec.md §6).
func (h *Handler) listObservations(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, defaultListLimit)
	if err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	pred, err := filter.Compile(r.URL.Query().Get("where"))
	if err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	all, err := h.observations.List(r.Context(), database.NoTransaction{}, limit)
	if err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	out := make([]ObservationDTO, 0, len(all))
	for _, o := range all {
		dto := observationDTO(o)
		row, err := toRow(dto)
		if err != nil {
			writeProblem(w, h.logger, err)
			return
		}
		matched, err := pred.Match(row)
		if err != nil {
			writeProblem(w, h.logger, err)
			return
		}
		if matched {
			out = append(out, dto)
		}
	}
	writeJSON(w, out)
}

// Mutation.createObservation(input) (spec.md §6).
func (h *Handler) createObservation(w http.ResponseWriter, r *http.Request) {
	if err := h.authorize(r, "createObservation"); err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	var req CreateObservationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeProblem(w, h.logger, apperrors.Wrap(err, apperrors.ErrorTypeValidation, "invalid createObservation request"))
		return
	}
	programID, err := parseProgramID(req.ProgramID)
	if err != nil {
		writeProblem(w, h.logger, err)
		return
	}

	tx, err := database.BeginTx(r.Context(), h.db)
	if err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	var created observation.Observation
	defer tx.CommitOrRollback(&err)
	created, err = h.observations.Create(r.Context(), tx, req.toInput(programID))
	if err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	writeCreated(w, observationDTO(created))
}

// Mutation.updateObservations(set, where) (spec.md §6).
func (h *Handler) updateObservations(w http.ResponseWriter, r *http.Request) {
	if err := h.authorize(r, "updateObservations"); err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	var req UpdateObservationsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeProblem(w, h.logger, apperrors.Wrap(err, apperrors.ErrorTypeValidation, "invalid updateObservations request"))
		return
	}
	ids := make([]odbtype.ObservationID, 0, len(req.IDs))
	for _, s := range req.IDs {
		id, err := parseObservationID(s)
		if err != nil {
			writeProblem(w, h.logger, err)
			return
		}
		ids = append(ids, id)
	}

	var err error
	tx, err := database.BeginTx(r.Context(), h.db)
	if err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	var n int
	defer tx.CommitOrRollback(&err)
	n, err = h.observations.Update(r.Context(), tx, ids, *req.Set.toDomain())
	if err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	writeJSON(w, map[string]int{"updated": n})
}

// Mutation.cloneObservation(id, set?) (spec.md §6).
func (h *Handler) cloneObservation(w http.ResponseWriter, r *http.Request) {
	if err := h.authorize(r, "cloneObservation"); err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	sourceID, err := parseObservationID(chi.URLParam(r, "observationID"))
	if err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	var req CloneObservationRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeProblem(w, h.logger, err)
			return
		}
	}

	tx, err := database.BeginTx(r.Context(), h.db)
	if err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	var cloned observation.Observation
	defer tx.CommitOrRollback(&err)
	cloned, err = h.observations.Clone(r.Context(), tx, sourceID, req.Set.toDomain())
	if err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	writeCreated(w, observationDTO(cloned))
}

// Query.program(id|reference) (spec.md §6).
func (h *Handler) getProgram(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "programID")
	if id, err := parseProgramID(raw); err == nil {
		if prog, err := h.observations.GetProgram(r.Context(), database.NoTransaction{}, id); err == nil {
			writeJSON(w, programDTO(prog))
			return
		}
	}
	prog, err := h.observations.GetProgramByReference(r.Context(), database.NoTransaction{}, raw)
	if err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	writeJSON(w, programDTO(prog))
}

// Query.programs(where, limit) (spec.md §6).
func (h *Handler) listPrograms(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, defaultListLimit)
	if err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	pred, err := filter.Compile(r.URL.Query().Get("where"))
	if err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	all, err := h.observations.ListPrograms(r.Context(), database.NoTransaction{}, limit)
	if err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	out := make([]ProgramDTO, 0, len(all))
	for _, p := range all {
		dto := programDTO(p)
		row, err := toRow(dto)
		if err != nil {
			writeProblem(w, h.logger, err)
			return
		}
		matched, err := pred.Match(row)
		if err != nil {
			writeProblem(w, h.logger, err)
			return
		}
		if matched {
			out = append(out, dto)
		}
	}
	writeJSON(w, out)
}

type createProgramRequest struct {
	Reference string `json:"reference" validate:"required"`
}

func (h *Handler) createProgram(w http.ResponseWriter, r *http.Request) {
	var req createProgramRequest
	if err := decodeJSON(r, &req); err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeProblem(w, h.logger, apperrors.Wrap(err, apperrors.ErrorTypeValidation, "invalid createProgram request"))
		return
	}

	tx, err := database.BeginTx(r.Context(), h.db)
	if err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	var created observation.Program
	defer tx.CommitOrRollback(&err)
	created, err = h.observations.CreateProgram(r.Context(), tx, req.Reference)
	if err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	writeCreated(w, programDTO(created))
}

// getWorkflowState derives and returns an observation's WorkflowState
// plus its legal next transitions (spec.md §4.I), folding in the
// recorder's execution state via workflow.DeriveExecutionState.
func (h *Handler) getWorkflowState(w http.ResponseWriter, r *http.Request) {
	id, err := parseObservationID(chi.URLParam(r, "observationID"))
	if err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	obs, err := h.observations.Get(r.Context(), database.NoTransaction{}, id)
	if err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	atomStates, err := h.recorderRepo.AtomStatesForObservation(r.Context(), database.NoTransaction{}, id.String())
	if err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	execState := workflow.DeriveExecutionState(atomStates)
	isCalibration := obs.CalibrationRole.IsCalibration()

	// ValidationErrors (CfP/Configuration/ITC validity) are computed by
	// systems outside this repository's scope; absent that input every
	// observation is treated as fully Defined unless its ExecutionState
	// or UserState override says otherwise. See DESIGN.md.
	in := workflow.Input{
		ExecutionState:   execState,
		UserState:        workflow.DeriveUserState(obs.UserWorkflowOverride, isCalibration),
		IsCalibration:    isCalibration,
		ProposalAccepted: true,
	}
	state := workflow.Resolve(in)
	metrics.RecordWorkflowState(string(state))
	allowed := workflow.AllowedTransitions(state, in)

	allowedStrs := make([]string, 0, len(allowed))
	for _, s := range allowed {
		allowedStrs = append(allowedStrs, string(s))
	}
	writeJSON(w, WorkflowStateDTO{State: string(state), AllowedTransitions: allowedStrs})
}
