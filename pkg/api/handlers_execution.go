package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/obsdb/odb/internal/database"
	apperrors "github.com/obsdb/odb/internal/errors"
	"github.com/obsdb/odb/pkg/odbtype"
	"github.com/obsdb/odb/pkg/recorder"
	"github.com/obsdb/odb/pkg/sequence"
	"github.com/obsdb/odb/pkg/timeaccounting"
	"github.com/obsdb/odb/pkg/timeestimator"
)

// parseFutureLimit reads the futureLimit query parameter defaulting to
// def; range checking against the server's configured max happens in
// the caller so the error message can name that max (spec.md §8, E2E-2).
func parseFutureLimit(r *http.Request, def int) (int, error) {
	raw := r.URL.Query().Get("futureLimit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperrors.InvalidArgument("futureLimit must be a non-negative integer")
	}
	return n, nil
}

// Query.observation.execution.digest (spec.md §6).
func (h *Handler) getDigest(w http.ResponseWriter, r *http.Request) {
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
	d, err := h.digester.Digest(r.Context(), obs.ProgramID.String(), id.String())
	if err != nil {
		h.alertOnFailure(r.Context(), id.String(), err)
		writeProblem(w, h.logger, err)
		return
	}
	writeJSON(w, digestDTO(d))
}

// Query.observation.execution.config(futureLimit) (spec.md §6).
// futureLimit ranges 0..100, default 25; out of range fails with
// InvalidArgument (spec.md §8, E2E-2).
func (h *Handler) getConfig(w http.ResponseWriter, r *http.Request) {
	id, err := parseObservationID(chi.URLParam(r, "observationID"))
	if err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	futureLimit, err := parseFutureLimit(r, h.futureLimitDefault)
	if err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	if futureLimit > h.futureLimitMax {
		writeProblem(w, h.logger, apperrors.InvalidArgument(fmt.Sprintf(
			"Future limit must range from 0 to %d, but was %d.", h.futureLimitMax, futureLimit)))
		return
	}

	cfg, err := h.digester.ResolveConfig(r.Context(), id.String())
	if err != nil {
		h.alertOnFailure(r.Context(), id.String(), err)
		writeProblem(w, h.logger, err)
		return
	}

	acquisition, err := h.streamConfigDTO(r, cfg.Static, cfg.Acquisition, futureLimit)
	if err != nil {
		h.alertOnFailure(r.Context(), id.String(), err)
		writeProblem(w, h.logger, err)
		return
	}
	science, err := h.streamConfigDTO(r, cfg.Static, cfg.Science, futureLimit)
	if err != nil {
		h.alertOnFailure(r.Context(), id.String(), err)
		writeProblem(w, h.logger, err)
		return
	}

	writeJSON(w, ConfigDTO{
		Static:      staticConfigDTO(cfg.Static),
		Acquisition: acquisition,
		Science:     science,
	})
}

// streamConfigDTO realizes the next atom and up to futureLimit atoms
// beyond it from stream, expanding SmartGcal placeholders so the wire
// shape only ever carries concrete steps (spec.md §6,
// "acquisition{nextAtom, possibleFuture[<=futureLimit], hasMore}").
func (h *Handler) streamConfigDTO(r *http.Request, static sequence.StaticConfig, stream sequence.Stream, futureLimit int) (StreamConfigDTO, error) {
	atoms, err := stream.Take(futureLimit + 1)
	if err != nil {
		return StreamConfigDTO{}, err
	}
	out := StreamConfigDTO{PossibleFuture: []ProtoAtomDTO{}}
	if len(atoms) == 0 {
		return out, nil
	}
	next, err := h.digester.ExpandAtom(r.Context(), static, atoms[0])
	if err != nil {
		return StreamConfigDTO{}, err
	}
	nextDTO := protoAtomDTO(next)
	out.NextAtom = &nextDTO
	for _, atom := range atoms[1:] {
		expanded, err := h.digester.ExpandAtom(r.Context(), static, atom)
		if err != nil {
			return StreamConfigDTO{}, err
		}
		out.PossibleFuture = append(out.PossibleFuture, protoAtomDTO(expanded))
	}
	// Acquisition and science streams are conceptually infinite producer
	// functions (spec.md §4.C, §9 "Ownership of lazy sequences"); there
	// is no terminal index to detect, so hasMore is always true once a
	// next atom exists.
	out.HasMore = true
	return out, nil
}

// Query.observation.execution.visits (spec.md §6).
func (h *Handler) listVisits(w http.ResponseWriter, r *http.Request) {
	id, err := parseObservationID(chi.URLParam(r, "observationID"))
	if err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	visits, err := h.recorderRepo.ListVisitsForObservation(r.Context(), database.NoTransaction{}, id.String())
	if err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	out := make([]VisitDTO, 0, len(visits))
	for _, v := range visits {
		out = append(out, visitDTO(v))
	}
	writeJSON(w, out)
}

func (h *Handler) getVisit(w http.ResponseWriter, r *http.Request) {
	id, err := parseVisitID(chi.URLParam(r, "visitID"))
	if err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	v, err := h.recorderRepo.GetVisit(r.Context(), database.NoTransaction{}, id)
	if err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	writeJSON(w, visitDTO(v))
}

func (h *Handler) getAtom(w http.ResponseWriter, r *http.Request) {
	id, err := parseAtomID(chi.URLParam(r, "atomID"))
	if err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	a, err := h.recorderRepo.GetAtom(r.Context(), database.NoTransaction{}, id)
	if err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	writeJSON(w, atomDTO(a))
}

func (h *Handler) getStep(w http.ResponseWriter, r *http.Request) {
	id, err := parseStepID(chi.URLParam(r, "stepID"))
	if err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	s, err := h.recorderRepo.GetStep(r.Context(), database.NoTransaction{}, id)
	if err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	writeJSON(w, stepDTO(s))
}

// Mutation.recordVisit (spec.md §6).
func (h *Handler) recordVisit(w http.ResponseWriter, r *http.Request) {
	if err := h.authorize(r, "recordVisit"); err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	var req InsertVisitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeProblem(w, h.logger, apperrors.Wrap(err, apperrors.ErrorTypeValidation, "invalid recordVisit request"))
		return
	}

	tx, err := database.BeginTx(r.Context(), h.db)
	if err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	var visit recorder.Visit
	defer tx.CommitOrRollback(&err)
	visit, err = h.recorder.InsertVisit(r.Context(), tx, req.ObservationID, req.Instrument)
	if err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	writeCreated(w, visitDTO(visit))
}

// Mutation.recordAtom (spec.md §6).
func (h *Handler) recordAtom(w http.ResponseWriter, r *http.Request) {
	if err := h.authorize(r, "recordAtom"); err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	var req InsertAtomRequest
	if err := decodeJSON(r, &req); err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeProblem(w, h.logger, apperrors.Wrap(err, apperrors.ErrorTypeValidation, "invalid recordAtom request"))
		return
	}
	visitID, err := parseVisitID(req.VisitID)
	if err != nil {
		writeProblem(w, h.logger, err)
		return
	}

	tx, err := database.BeginTx(r.Context(), h.db)
	if err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	var atom recorder.Atom
	defer tx.CommitOrRollback(&err)
	atom, err = h.recorderRepo.InsertAtom(r.Context(), tx, visitID, req.Instrument, req.StepCount,
		odbtype.SequenceType(req.SequenceType), req.GeneratedID)
	if err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	writeCreated(w, atomDTO(atom))
}

// stepConfigPayload is the instrument-configuration slice carried in
// InsertStepRequest.StepConfig, decoded here (rather than in
// pkg/timeestimator) because only the API edge needs to cross the
// wire/domain boundary for it (spec.md §4.D StepInput).
type stepConfigPayload struct {
	Grating       string  `json:"grating"`
	Filter        string  `json:"filter"`
	FPU           string  `json:"fpu"`
	ReadMode      string  `json:"readMode"`
	Binning       string  `json:"binning"`
	ROI           string  `json:"roi"`
	OffsetPArcsec float64 `json:"offsetPArcsec"`
	OffsetQArcsec float64 `json:"offsetQArcsec"`
	AmpCount      int     `json:"ampCount"`
}

func (p stepConfigPayload) instrumentConfig() timeestimator.InstrumentConfig {
	return timeestimator.InstrumentConfig{
		Grating:  p.Grating,
		Filter:   p.Filter,
		FPU:      p.FPU,
		ReadMode: p.ReadMode,
		Binning:  p.Binning,
		ROI:      p.ROI,
		OffsetP:  odbtype.AngleFromArcsec(p.OffsetPArcsec),
		OffsetQ:  odbtype.AngleFromArcsec(p.OffsetQArcsec),
	}
}

func (p stepConfigPayload) detectorConfig() timeestimator.DetectorConfig {
	mode := timeestimator.AmpReadSlow
	if p.ReadMode == "FAST" {
		mode = timeestimator.AmpReadFast
	}
	ampCount := p.AmpCount
	if ampCount <= 0 {
		ampCount = 1
	}
	return timeestimator.DetectorConfig{AmpCount: ampCount, AmpReadMode: mode}
}

// Mutation.recordStep (spec.md §6). The estimate the recorder persists
// is computed here against the atom's previously-inserted step, so the
// config-change cost model of spec.md §4.D sees the same instrument
// transition an execution-time digest would have.
func (h *Handler) recordStep(w http.ResponseWriter, r *http.Request) {
	if err := h.authorize(r, "recordStep"); err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	var req InsertStepRequest
	if err := decodeJSON(r, &req); err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeProblem(w, h.logger, apperrors.Wrap(err, apperrors.ErrorTypeValidation, "invalid recordStep request"))
		return
	}
	atomID, err := parseAtomID(req.AtomID)
	if err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	var payload stepConfigPayload
	if err := json.Unmarshal(req.StepConfig, &payload); err != nil {
		writeProblem(w, h.logger, apperrors.Wrap(err, apperrors.ErrorTypeValidation, "malformed stepConfig"))
		return
	}

	prevBytes, err := h.recorderRepo.LastStepConfigForAtom(r.Context(), database.NoTransaction{}, atomID)
	if err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	var prevInstrument *timeestimator.InstrumentConfig
	if prevBytes != nil {
		var prevPayload stepConfigPayload
		if err := json.Unmarshal(prevBytes, &prevPayload); err == nil {
			cfg := prevPayload.instrumentConfig()
			prevInstrument = &cfg
		}
	}

	estimate := timeestimator.Estimate(prevInstrument, timeestimator.StepInput{
		Config:       payload.instrumentConfig(),
		ObserveClass: odbtype.ObserveClass(req.ObserveClass),
		ExposureTime: odbtype.SpanFromDuration(time.Duration(req.ExposureSeconds * float64(time.Second))),
	}, payload.detectorConfig())

	tx, err := database.BeginTx(r.Context(), h.db)
	if err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	var step recorder.Step
	defer tx.CommitOrRollback(&err)
	step, err = h.recorderRepo.InsertStep(r.Context(), tx, atomID, req.Instrument,
		odbtype.ObserveClass(req.ObserveClass), req.StepConfig, estimate, req.GeneratedID)
	if err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	writeCreated(w, stepDTO(step))
}

// Mutation.recordDataset (spec.md §6).
func (h *Handler) recordDataset(w http.ResponseWriter, r *http.Request) {
	if err := h.authorize(r, "recordDataset"); err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	var req InsertDatasetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeProblem(w, h.logger, apperrors.Wrap(err, apperrors.ErrorTypeValidation, "invalid recordDataset request"))
		return
	}
	stepID, err := parseStepID(req.StepID)
	if err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	var qa *odbtype.DatasetQAState
	if req.QAState != nil {
		state := odbtype.DatasetQAState(*req.QAState)
		qa = &state
	}

	tx, err := database.BeginTx(r.Context(), h.db)
	if err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	var ds recorder.Dataset
	defer tx.CommitOrRollback(&err)
	ds, err = h.recorderRepo.InsertDataset(r.Context(), tx, stepID, req.Filename, qa)
	if err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	writeCreated(w, datasetDTO(ds))
}

// recordEvent ingests one event of any ExecutionEvent kind (spec.md §6:
// "one event ingestion per event kind"), discriminated by
// RecordEventRequest.Kind.
func (h *Handler) recordEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.authorize(r, "recordEvent"); err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	var req RecordEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeProblem(w, h.logger, apperrors.Wrap(err, apperrors.ErrorTypeValidation, "invalid recordEvent request"))
		return
	}
	visitID, err := parseVisitID(req.VisitID)
	if err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	ts, err := time.Parse(time.RFC3339Nano, req.Timestamp)
	if err != nil {
		writeProblem(w, h.logger, apperrors.InvalidArgument("timestamp must be RFC3339"))
		return
	}
	timestamp := odbtype.TimestampFromTime(ts)

	event, err := h.buildEvent(req, visitID, timestamp)
	if err != nil {
		writeProblem(w, h.logger, err)
		return
	}

	tx, err := database.BeginTx(r.Context(), h.db)
	if err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	defer tx.CommitOrRollback(&err)
	if err = h.recorder.RecordEvent(r.Context(), tx, true, event); err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) buildEvent(req RecordEventRequest, visitID odbtype.VisitID, ts odbtype.Timestamp) (recorder.ExecutionEvent, error) {
	switch req.Kind {
	case "SLEW":
		return recorder.NewSlewEvent(visitID, ts), nil
	case "SEQUENCE":
		if req.Command == nil {
			return nil, apperrors.InvalidArgument("SEQUENCE event requires command")
		}
		return recorder.NewSequenceEvent(visitID, ts, recorder.SequenceCommand(*req.Command)), nil
	case "ATOM":
		if req.AtomID == nil || req.AtomStage == nil {
			return nil, apperrors.InvalidArgument("ATOM event requires atomId and atomStage")
		}
		atomID, err := parseAtomID(*req.AtomID)
		if err != nil {
			return nil, err
		}
		return recorder.NewAtomEvent(visitID, ts, atomID, recorder.AtomStage(*req.AtomStage)), nil
	case "STEP":
		if req.StepID == nil || req.StepStage == nil {
			return nil, apperrors.InvalidArgument("STEP event requires stepId and stepStage")
		}
		stepID, err := parseStepID(*req.StepID)
		if err != nil {
			return nil, err
		}
		return recorder.NewStepEvent(visitID, ts, stepID, recorder.StepStage(*req.StepStage)), nil
	case "DATASET":
		if req.DatasetID == nil {
			return nil, apperrors.InvalidArgument("DATASET event requires datasetId")
		}
		gid, err := odbtype.ParseGID(*req.DatasetID)
		if err != nil {
			return nil, apperrors.InvalidArgument("malformed dataset id")
		}
		stage := recorder.DatasetStageRecorded
		if req.DatasetStage != nil {
			stage = recorder.DatasetStage(*req.DatasetStage)
		}
		return recorder.NewDatasetEvent(visitID, ts, odbtype.DatasetID(gid), stage), nil
	default:
		return nil, apperrors.InvalidArgument("unrecognized event kind " + req.Kind)
	}
}

// Query.observation.execution.visits[].timeChargeInvoice (spec.md §6).
// The twilight windows a visit's charged time may span are supplied by
// the caller (spec.md §9, the exact twilight model is externally
// configured) rather than resolved internally.
func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	visitID, err := parseVisitID(chi.URLParam(r, "visitID"))
	if err != nil {
		writeProblem(w, h.logger, err)
		return
	}

	var req InvoiceRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeProblem(w, h.logger, err)
			return
		}
	}

	events, err := h.recorderRepo.ListEventsForVisit(r.Context(), database.NoTransaction{}, visitID)
	if err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	failedSteps, err := h.recorderRepo.FailedStepsForVisit(r.Context(), database.NoTransaction{}, visitID)
	if err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	failed := make([]timeaccounting.FailedDataset, 0, len(failedSteps))
	for _, sid := range failedSteps {
		failed = append(failed, timeaccounting.FailedDataset{StepID: sid})
	}
	corrections, err := h.taRepo.ListCorrections(r.Context(), database.NoTransaction{}, visitID)
	if err != nil {
		writeProblem(w, h.logger, err)
		return
	}

	nights := make([]timeaccounting.NightWindow, 0, len(req.Nights))
	for _, n := range req.Nights {
		nights = append(nights, n.toDomain())
	}

	invoice, err := h.taEngine.BuildInvoice(r.Context(), timeaccounting.BuildInvoiceInput{
		VisitID:     visitID,
		Events:      events,
		Nights:      nights,
		FailedData:  failed,
		Corrections: corrections,
	})
	if err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	writeJSON(w, invoiceDTO(invoice))
}

// Mutation.addTimeChargeCorrection (spec.md §6). Amounts over 365 days
// are rejected with InvalidArgument (spec.md §8, E2E-7).
func (h *Handler) addCorrection(w http.ResponseWriter, r *http.Request) {
	if err := h.authorize(r, "addTimeChargeCorrection"); err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	visitID, err := parseVisitID(chi.URLParam(r, "visitID"))
	if err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	var req CorrectionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeProblem(w, h.logger, apperrors.Wrap(err, apperrors.ErrorTypeValidation, "invalid addTimeChargeCorrection request"))
		return
	}

	amount := odbtype.SpanFromDuration(time.Duration(req.Seconds * float64(time.Second)))
	correction, err := timeaccounting.NewCorrection(
		odbtype.ChargeClass(req.ChargeClass), timeaccounting.CorrectionOp(req.Op), amount, req.User, req.Comment)
	if err != nil {
		writeProblem(w, h.logger, err)
		return
	}

	tx, err := database.BeginTx(r.Context(), h.db)
	if err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	defer tx.CommitOrRollback(&err)
	if err = h.taRepo.InsertCorrection(r.Context(), tx, visitID, correction); err != nil {
		writeProblem(w, h.logger, err)
		return
	}
	writeCreated(w, correctionDTO(correction))
}
