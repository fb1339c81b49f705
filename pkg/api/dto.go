// Package api exposes the transport-neutral query/mutation surface of
// spec.md §6 as a REST API over go-chi/chi, the same way the teacher's
// datastorage and gateway packages front their domain logic with a chi
// router (see test/unit/datastorage/workflow_lifecycle_handler_test.go
// and test/integration/gateway/cors_test.go, the only teacher sources
// this package's handler/router shape is grounded on — the teacher's
// own server implementation was not part of the retrieved pack).
//
// odbtype's value types (Angle, TimeSpan, CategorizedTime, GID, UUIDID)
// keep their internal fields unexported to protect their invariants, so
// every wire payload here is a plain DTO that converts explicitly
// through their accessor methods rather than relying on default JSON
// struct tags.
package api

import (
	"encoding/json"
	"time"

	"github.com/obsdb/odb/pkg/digest"
	"github.com/obsdb/odb/pkg/observation"
	"github.com/obsdb/odb/pkg/odbtype"
	"github.com/obsdb/odb/pkg/recorder"
	"github.com/obsdb/odb/pkg/sequence"
	"github.com/obsdb/odb/pkg/timeaccounting"
	"github.com/obsdb/odb/pkg/workflow"
)

// CoordinatesDTO is the wire shape of odbtype.Coordinates.
type CoordinatesDTO struct {
	RADeg  float64 `json:"raDeg"`
	DecDeg float64 `json:"decDeg"`
}

func coordinatesDTO(c *odbtype.Coordinates) *CoordinatesDTO {
	if c == nil {
		return nil
	}
	return &CoordinatesDTO{RADeg: c.RA.Degrees(), DecDeg: c.Dec.Degrees()}
}

func (c *CoordinatesDTO) toDomain() *odbtype.Coordinates {
	if c == nil {
		return nil
	}
	return &odbtype.Coordinates{RA: odbtype.AngleFromDegrees(c.RADeg), Dec: odbtype.AngleFromDegrees(c.DecDeg)}
}

// ElevationRangeDTO is the wire shape of odbtype.ElevationRange.
type ElevationRangeDTO struct {
	Kind string  `json:"kind"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// PositionAngleDTO is the wire shape of odbtype.PositionAngleConstraint.
type PositionAngleDTO struct {
	Kind      string  `json:"kind"`
	AngleDeg float64 `json:"angleDeg"`
}

// ConstraintsDTO is the wire shape of odbtype.ConstraintSet.
type ConstraintsDTO struct {
	CloudExtinction string            `json:"cloudExtinction"`
	ImageQuality    string            `json:"imageQuality"`
	SkyBackground   string            `json:"skyBackground"`
	WaterVapor      string            `json:"waterVapor"`
	Elevation       ElevationRangeDTO `json:"elevation"`
}

func constraintsDTO(c odbtype.ConstraintSet) ConstraintsDTO {
	return ConstraintsDTO{
		CloudExtinction: string(c.CloudExtinction),
		ImageQuality:    string(c.ImageQuality),
		SkyBackground:   string(c.SkyBackground),
		WaterVapor:      string(c.WaterVapor),
		Elevation: ElevationRangeDTO{
			Kind: string(c.Elevation.Kind),
			Min:  c.Elevation.Min,
			Max:  c.Elevation.Max,
		},
	}
}

func (c ConstraintsDTO) toDomain() odbtype.ConstraintSet {
	return odbtype.ConstraintSet{
		CloudExtinction: odbtype.CloudExtinction(c.CloudExtinction),
		ImageQuality:    odbtype.ImageQuality(c.ImageQuality),
		SkyBackground:   odbtype.SkyBackground(c.SkyBackground),
		WaterVapor:      odbtype.WaterVapor(c.WaterVapor),
		Elevation: odbtype.ElevationRange{
			Kind: odbtype.ElevationRangeKind(c.Elevation.Kind),
			Min:  c.Elevation.Min,
			Max:  c.Elevation.Max,
		},
	}
}

// ObservationDTO is the wire shape of observation.Observation
// (Query.observation, spec.md §6).
type ObservationDTO struct {
	ID                   string           `json:"id"`
	ProgramID            string           `json:"programId"`
	ObservingMode        string           `json:"observingMode"`
	ModeParams           json.RawMessage  `json:"modeParams"`
	Constraints          ConstraintsDTO   `json:"constraints"`
	PositionAngle        PositionAngleDTO `json:"positionAngle"`
	BaseCoordinates      *CoordinatesDTO  `json:"baseCoordinates,omitempty"`
	ScienceBand          string           `json:"scienceBand"`
	CalibrationRole      string           `json:"calibrationRole"`
	UserWorkflowOverride *string          `json:"userWorkflowOverride,omitempty"`
	CreatedAt            time.Time        `json:"createdAt"`
}

func observationDTO(o observation.Observation) ObservationDTO {
	var override *string
	if o.UserWorkflowOverride != nil {
		s := string(*o.UserWorkflowOverride)
		override = &s
	}
	return ObservationDTO{
		ID:            o.ID.String(),
		ProgramID:     o.ProgramID.String(),
		ObservingMode: o.ObservingMode,
		ModeParams:    json.RawMessage(o.ModeParams),
		Constraints:   constraintsDTO(o.Constraints),
		PositionAngle: PositionAngleDTO{
			Kind:     string(o.PositionAngle.Kind),
			AngleDeg: o.PositionAngle.Angle.Degrees(),
		},
		BaseCoordinates:      coordinatesDTO(o.BaseCoordinates),
		ScienceBand:          string(o.ScienceBand),
		CalibrationRole:      string(o.CalibrationRole),
		UserWorkflowOverride: override,
		CreatedAt:            o.CreatedAt.Time(),
	}
}

// ProgramDTO is the wire shape of observation.Program.
type ProgramDTO struct {
	ID        string `json:"id"`
	Reference string `json:"reference"`
}

func programDTO(p observation.Program) ProgramDTO {
	return ProgramDTO{ID: p.ID.String(), Reference: p.Reference}
}

// CreateObservationRequest is Mutation.createObservation's payload
// (spec.md §6).
type CreateObservationRequest struct {
	ProgramID       string           `json:"programId" validate:"required"`
	ObservingMode   string           `json:"observingMode" validate:"required"`
	ModeParams      json.RawMessage  `json:"modeParams"`
	Constraints     ConstraintsDTO   `json:"constraints"`
	PositionAngle   PositionAngleDTO `json:"positionAngle"`
	BaseCoordinates *CoordinatesDTO  `json:"baseCoordinates,omitempty"`
	ScienceBand     string           `json:"scienceBand" validate:"required"`
	CalibrationRole string           `json:"calibrationRole"`
}

func (r CreateObservationRequest) toInput(programID odbtype.ProgramID) observation.CreateObservationInput {
	return observation.CreateObservationInput{
		ProgramID:     programID,
		ObservingMode: r.ObservingMode,
		ModeParams:    []byte(r.ModeParams),
		Constraints:   r.Constraints.toDomain(),
		PositionAngle: odbtype.PositionAngleConstraint{
			Kind:  odbtype.PositionAngleConstraintKind(r.PositionAngle.Kind),
			Angle: odbtype.AngleFromDegrees(r.PositionAngle.AngleDeg),
		},
		BaseCoordinates: r.BaseCoordinates.toDomain(),
		ScienceBand:     odbtype.ScienceBand(r.ScienceBand),
		CalibrationRole: odbtype.CalibrationRole(r.CalibrationRole),
	}
}

// ObservationPatchDTO is the wire shape of observation.ObservationPatch,
// the `set` argument of updateObservations/cloneObservation (spec.md §6).
type ObservationPatchDTO struct {
	ScienceBand          *string         `json:"scienceBand,omitempty"`
	UserWorkflowOverride *string         `json:"userWorkflowOverride,omitempty"`
	Constraints          *ConstraintsDTO `json:"constraints,omitempty"`
}

func (p *ObservationPatchDTO) toDomain() *observation.ObservationPatch {
	if p == nil {
		return nil
	}
	patch := &observation.ObservationPatch{}
	if p.ScienceBand != nil {
		sb := odbtype.ScienceBand(*p.ScienceBand)
		patch.ScienceBand = &sb
	}
	if p.UserWorkflowOverride != nil {
		us := workflow.UserState(*p.UserWorkflowOverride)
		patch.UserWorkflowOverride = &us
	}
	if p.Constraints != nil {
		c := p.Constraints.toDomain()
		patch.Constraints = &c
	}
	return patch
}

// UpdateObservationsRequest is Mutation.updateObservations's payload
// (spec.md §6: "updateObservations(set, where)"). `where` is carried as
// an explicit id list rather than a predicate: the predicate form lives
// in the GET /observations `where` query parameter, resolved by
// pkg/api/filter against the already-loaded page.
type UpdateObservationsRequest struct {
	IDs []string            `json:"ids" validate:"required,min=1"`
	Set ObservationPatchDTO `json:"set"`
}

// CloneObservationRequest is Mutation.cloneObservation's payload.
type CloneObservationRequest struct {
	Set *ObservationPatchDTO `json:"set,omitempty"`
}

// VisitDTO is the wire shape of recorder.Visit.
type VisitDTO struct {
	ID            string    `json:"id"`
	ObservationID string    `json:"observationId"`
	Instrument    string    `json:"instrument"`
	CreatedAt     time.Time `json:"createdAt"`
}

func visitDTO(v recorder.Visit) VisitDTO {
	return VisitDTO{ID: v.ID.String(), ObservationID: v.ObservationID, Instrument: v.Instrument, CreatedAt: v.CreatedAt.Time()}
}

// AtomDTO is the wire shape of recorder.Atom.
type AtomDTO struct {
	ID            string  `json:"id"`
	VisitID       string  `json:"visitId"`
	ObservationID string  `json:"observationId"`
	Instrument    string  `json:"instrument"`
	SequenceType  string  `json:"sequenceType"`
	StepCount     int     `json:"stepCount"`
	GeneratedID   *string `json:"generatedId,omitempty"`
	State         string  `json:"state"`
}

func atomDTO(a recorder.Atom) AtomDTO {
	return AtomDTO{
		ID:            a.ID.String(),
		VisitID:       a.VisitID.String(),
		ObservationID: a.ObservationID,
		Instrument:    a.Instrument,
		SequenceType:  string(a.SequenceType),
		StepCount:     a.StepCount,
		GeneratedID:   a.GeneratedID,
		State:         string(a.State),
	}
}

// StepDTO is the wire shape of recorder.Step.
type StepDTO struct {
	ID            string  `json:"id"`
	AtomID        string  `json:"atomId"`
	ObservationID string  `json:"observationId"`
	Instrument    string  `json:"instrument"`
	StepIndex     int     `json:"stepIndex"`
	ObserveClass  string  `json:"observeClass"`
	GeneratedID   *string `json:"generatedId,omitempty"`
	State         string  `json:"state"`
}

func stepDTO(s recorder.Step) StepDTO {
	return StepDTO{
		ID:            s.ID.String(),
		AtomID:        s.AtomID.String(),
		ObservationID: s.ObservationID,
		Instrument:    s.Instrument,
		StepIndex:     s.StepIndex,
		ObserveClass:  string(s.ObserveClass),
		GeneratedID:   s.GeneratedID,
		State:         string(s.State),
	}
}

// DatasetDTO is the wire shape of recorder.Dataset.
type DatasetDTO struct {
	ID            string  `json:"id"`
	StepID        string  `json:"stepId"`
	ObservationID string  `json:"observationId"`
	Filename      string  `json:"filename"`
	QAState       *string `json:"qaState,omitempty"`
}

func datasetDTO(d recorder.Dataset) DatasetDTO {
	var qa *string
	if d.QAState != nil {
		s := string(*d.QAState)
		qa = &s
	}
	return DatasetDTO{ID: d.ID.String(), StepID: d.StepID.String(), ObservationID: d.ObservationID, Filename: d.Filename, QAState: qa}
}

// InsertVisitRequest is Mutation.recordVisit's payload.
type InsertVisitRequest struct {
	ObservationID string `json:"observationId" validate:"required"`
	Instrument    string `json:"instrument" validate:"required"`
}

// InsertAtomRequest is Mutation.recordAtom's payload.
type InsertAtomRequest struct {
	VisitID      string  `json:"visitId" validate:"required"`
	Instrument   string  `json:"instrument" validate:"required"`
	StepCount    int     `json:"stepCount" validate:"gte=0"`
	SequenceType string  `json:"sequenceType" validate:"required"`
	GeneratedID  *string `json:"generatedId,omitempty"`
}

// InsertStepRequest is Mutation.recordStep's payload.
type InsertStepRequest struct {
	AtomID         string          `json:"atomId" validate:"required"`
	Instrument     string          `json:"instrument" validate:"required"`
	ObserveClass   string          `json:"observeClass" validate:"required"`
	StepConfig     json.RawMessage `json:"stepConfig"`
	GeneratedID    *string         `json:"generatedId,omitempty"`
	ExposureSeconds float64        `json:"exposureSeconds" validate:"gte=0"`
}

// InsertDatasetRequest is Mutation.recordDataset's payload.
type InsertDatasetRequest struct {
	StepID   string  `json:"stepId" validate:"required"`
	Filename string  `json:"filename" validate:"required"`
	QAState  *string `json:"qaState,omitempty"`
}

// RecordEventRequest is one event ingestion per event kind (spec.md §6:
// "recordVisit, recordAtom, recordStep, recordDataset, and one event
// ingestion per event kind"). Kind discriminates which of AtomID/StepID/
// DatasetID/Stage/Command is populated.
type RecordEventRequest struct {
	VisitID      string  `json:"visitId" validate:"required"`
	Kind         string  `json:"kind" validate:"required,oneof=SLEW SEQUENCE ATOM STEP DATASET"`
	Timestamp    string  `json:"timestamp" validate:"required"`
	Command      *string `json:"command,omitempty"`
	AtomID       *string `json:"atomId,omitempty"`
	AtomStage    *string `json:"atomStage,omitempty"`
	StepID       *string `json:"stepId,omitempty"`
	StepStage    *string `json:"stepStage,omitempty"`
	DatasetID    *string `json:"datasetId,omitempty"`
	DatasetStage *string `json:"datasetStage,omitempty"`
}

// DigestDTO is the wire shape of digest.ExecutionDigest
// (Query.observation.execution.digest, spec.md §6).
type DigestDTO struct {
	Setup       SetupTimeDTO      `json:"setup"`
	Acquisition SequenceDigestDTO `json:"acquisition"`
	Science     SequenceDigestDTO `json:"science"`
}

// SetupTimeDTO is the wire shape of digest.SetupTime.
type SetupTimeDTO struct {
	FullSeconds          float64 `json:"fullSeconds"`
	ReacquisitionSeconds float64 `json:"reacquisitionSeconds"`
}

// CategorizedTimeDTO is the wire shape of odbtype.CategorizedTime,
// broken out per charge class for readability on the wire (spec.md §6:
// "plannedTime{charges[],total}").
type CategorizedTimeDTO struct {
	Charges map[string]float64 `json:"charges"`
	Total   float64            `json:"total"`
}

func categorizedTimeDTO(c odbtype.CategorizedTime) CategorizedTimeDTO {
	charges := make(map[string]float64, len(odbtype.ChargeClasses))
	c.ForEach(func(cc odbtype.ChargeClass, span odbtype.TimeSpan) {
		charges[string(cc)] = span.Seconds()
	})
	return CategorizedTimeDTO{Charges: charges, Total: c.Total().Seconds()}
}

// OffsetPairDTO is the wire shape of digest.OffsetPair.
type OffsetPairDTO struct {
	PArcsec float64 `json:"pArcsec"`
	QArcsec float64 `json:"qArcsec"`
}

// SequenceDigestDTO is the wire shape of digest.SequenceDigest.
type SequenceDigestDTO struct {
	ObserveClass string              `json:"observeClass"`
	PlannedTime  CategorizedTimeDTO  `json:"plannedTime"`
	Offsets      []OffsetPairDTO     `json:"offsets"`
	AtomCount    int                 `json:"atomCount"`
}

func sequenceDigestDTO(s digest.SequenceDigest) SequenceDigestDTO {
	offsets := make([]OffsetPairDTO, 0, len(s.Offsets))
	for _, o := range s.Offsets {
		offsets = append(offsets, OffsetPairDTO{PArcsec: o.P.Arcsec(), QArcsec: o.Q.Arcsec()})
	}
	return SequenceDigestDTO{
		ObserveClass: string(s.ObserveClass),
		PlannedTime:  categorizedTimeDTO(s.PlannedTime),
		Offsets:      offsets,
		AtomCount:    s.AtomCount,
	}
}

func digestDTO(d digest.ExecutionDigest) DigestDTO {
	return DigestDTO{
		Setup: SetupTimeDTO{
			FullSeconds:          d.Setup.Full.Seconds(),
			ReacquisitionSeconds: d.Setup.Reacquisition.Seconds(),
		},
		Acquisition: sequenceDigestDTO(d.Acquisition),
		Science:     sequenceDigestDTO(d.Science),
	}
}

// ProtoStepDTO is the wire shape of sequence.ProtoStep; Config is
// rendered as a discriminated {kind, ...} object rather than a bare
// interface so a JSON consumer can switch on it without a schema.
type ProtoStepDTO struct {
	Description  string                 `json:"description"`
	ObserveClass string                 `json:"observeClass"`
	WavelengthNM float64                `json:"wavelengthNm"`
	ROI          string                 `json:"roi"`
	Config       map[string]interface{} `json:"config"`
}

func protoStepDTO(s sequence.ProtoStep) ProtoStepDTO {
	cfg := map[string]interface{}{"kind": s.Config.Kind().String()}
	switch c := s.Config.(type) {
	case sequence.ScienceConfig:
		cfg["offsetP"] = c.Offset.P.Arcsec()
		cfg["offsetQ"] = c.Offset.Q.Arcsec()
		cfg["guideState"] = string(c.GuideState)
	case sequence.SmartGcalConfig:
		cfg["calType"] = string(c.Type)
	case sequence.GcalConfig:
		cfg["exposureSeconds"] = c.ExposureTime.Seconds()
	}
	return ProtoStepDTO{
		Description:  s.Description,
		ObserveClass: string(s.ObserveClass),
		WavelengthNM: s.Wavelength.Nanometers(),
		ROI:          s.ROI,
		Config:       cfg,
	}
}

// ProtoAtomDTO is the wire shape of sequence.ProtoAtom.
type ProtoAtomDTO struct {
	Description  string         `json:"description"`
	SequenceType string         `json:"sequenceType"`
	Steps        []ProtoStepDTO `json:"steps"`
}

func protoAtomDTO(a sequence.ProtoAtom) ProtoAtomDTO {
	steps := make([]ProtoStepDTO, 0, len(a.Steps))
	for _, s := range a.Steps {
		steps = append(steps, protoStepDTO(s))
	}
	return ProtoAtomDTO{Description: a.Description, SequenceType: string(a.SequenceType), Steps: steps}
}

// StaticConfigDTO is the wire shape of sequence.StaticConfig.
type StaticConfigDTO struct {
	Instrument string `json:"instrument"`
	Grating    string `json:"grating"`
	Filter     string `json:"filter"`
	FPU        string `json:"fpu"`
	ReadMode   string `json:"readMode"`
	Binning    string `json:"binning"`
}

func staticConfigDTO(s sequence.StaticConfig) StaticConfigDTO {
	return StaticConfigDTO{Instrument: s.Instrument, Grating: s.Grating, Filter: s.Filter, FPU: s.FPU, ReadMode: s.ReadMode, Binning: s.Binning}
}

// StreamConfigDTO is the wire shape of one of config's two stream
// sections (spec.md §6: "acquisition{nextAtom, possibleFuture[≤futureLimit], hasMore}").
type StreamConfigDTO struct {
	NextAtom       *ProtoAtomDTO  `json:"nextAtom"`
	PossibleFuture []ProtoAtomDTO `json:"possibleFuture"`
	HasMore        bool           `json:"hasMore"`
}

// ConfigDTO is Query.observation.execution.config's response shape.
type ConfigDTO struct {
	Static      StaticConfigDTO `json:"static"`
	Acquisition StreamConfigDTO `json:"acquisition"`
	Science     StreamConfigDTO `json:"science"`
}

// DiscountEntryDTO is the wire shape of timeaccounting.DiscountEntry.
type DiscountEntryDTO struct {
	Category    string  `json:"category"`
	ChargeClass string  `json:"chargeClass"`
	Seconds     float64 `json:"seconds"`
	Comment     string  `json:"comment"`
}

func discountEntryDTO(d timeaccounting.DiscountEntry) DiscountEntryDTO {
	return DiscountEntryDTO{Category: string(d.Category), ChargeClass: string(d.ChargeClass), Seconds: d.Amount.Seconds(), Comment: d.Comment}
}

// CorrectionDTO is the wire shape of timeaccounting.Correction.
type CorrectionDTO struct {
	ChargeClass string  `json:"chargeClass"`
	Op          string  `json:"op"`
	Seconds     float64 `json:"seconds"`
	User        string  `json:"user"`
	Comment     string  `json:"comment"`
}

func correctionDTO(c timeaccounting.Correction) CorrectionDTO {
	return CorrectionDTO{ChargeClass: string(c.ChargeClass), Op: string(c.Op), Seconds: c.Amount.Seconds(), User: c.User, Comment: c.Comment}
}

// InvoiceDTO is the wire shape of timeaccounting.Invoice
// (Query.observation.execution.visits[].timeChargeInvoice, spec.md §6).
type InvoiceDTO struct {
	ExecutionTime CategorizedTimeDTO `json:"executionTime"`
	Discounts     []DiscountEntryDTO `json:"discounts"`
	Corrections   []CorrectionDTO    `json:"corrections"`
	FinalCharge   CategorizedTimeDTO `json:"finalCharge"`
}

func invoiceDTO(inv timeaccounting.Invoice) InvoiceDTO {
	discounts := make([]DiscountEntryDTO, 0, len(inv.Discounts))
	for _, d := range inv.Discounts {
		discounts = append(discounts, discountEntryDTO(d))
	}
	corrections := make([]CorrectionDTO, 0, len(inv.Corrections))
	for _, c := range inv.Corrections {
		corrections = append(corrections, correctionDTO(c))
	}
	return InvoiceDTO{
		ExecutionTime: categorizedTimeDTO(inv.ExecutionTime),
		Discounts:     discounts,
		Corrections:   corrections,
		FinalCharge:   categorizedTimeDTO(inv.FinalCharge),
	}
}

// NightWindowDTO is the wire shape of timeaccounting.NightWindow, the
// externally-resolved twilight model a timeChargeInvoice request
// supplies (spec.md §9, "the caller resolves the nautical-vs-astronomical
// model externally").
type NightWindowDTO struct {
	Site  string    `json:"site" validate:"required"`
	Start time.Time `json:"start" validate:"required"`
	End   time.Time `json:"end" validate:"required"`
}

func (n NightWindowDTO) toDomain() timeaccounting.NightWindow {
	return timeaccounting.NightWindow{
		Site:  odbtype.Site(n.Site),
		Start: odbtype.TimestampFromTime(n.Start),
		End:   odbtype.TimestampFromTime(n.End),
	}
}

// CorrectionRequest is Mutation.addTimeChargeCorrection's payload
// (spec.md §6).
type CorrectionRequest struct {
	ChargeClass string  `json:"chargeClass" validate:"required"`
	Op          string  `json:"op" validate:"required,oneof=ADD SUBTRACT"`
	Seconds     float64 `json:"amountSeconds" validate:"gte=0"`
	User        string  `json:"user"`
	Comment     string  `json:"comment"`
}

// InvoiceRequest supplies the twilight windows TimeChargeInvoice folds
// against, since spec.md leaves their resolution external to the
// engine itself.
type InvoiceRequest struct {
	Nights []NightWindowDTO `json:"nights"`
}

// WorkflowStateDTO is the wire shape of a resolved workflow state plus
// its legal next transitions (spec.md §4.I).
type WorkflowStateDTO struct {
	State              string   `json:"state"`
	AllowedTransitions []string `json:"allowedTransitions"`
}
