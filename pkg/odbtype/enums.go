package odbtype

// ChargeClass is the charge category a chunk of telescope time is
// billed against (spec.md §3, CategorizedTime).
type ChargeClass string

const (
	ChargeProgram    ChargeClass = "PROGRAM"
	ChargePartner    ChargeClass = "PARTNER"
	ChargeNonCharged ChargeClass = "NON_CHARGED"
)

// ChargeClasses lists every ChargeClass in a stable, enumerable order —
// used wherever a CategorizedTime must be summed or rendered
// deterministically.
var ChargeClasses = []ChargeClass{ChargeProgram, ChargePartner, ChargeNonCharged}

// ObserveClass drives charge classification of a step (GLOSSARY).
type ObserveClass string

const (
	ObserveClassScience      ObserveClass = "SCIENCE"
	ObserveClassProgramCal   ObserveClass = "PROGRAM_CAL"
	ObserveClassPartnerCal   ObserveClass = "PARTNER_CAL"
	ObserveClassAcquisition  ObserveClass = "ACQUISITION"
	ObserveClassAcqCal       ObserveClass = "ACQUISITION_CAL"
	ObserveClassDayCal       ObserveClass = "DAY_CAL"
)

// ChargeClassFor maps an ObserveClass to the ChargeClass its time is
// billed against.
func ChargeClassFor(oc ObserveClass) ChargeClass {
	switch oc {
	case ObserveClassScience, ObserveClassAcquisition:
		return ChargeProgram
	case ObserveClassPartnerCal:
		return ChargePartner
	case ObserveClassProgramCal, ObserveClassAcqCal:
		return ChargeProgram
	default:
		return ChargeNonCharged
	}
}

// SequenceType distinguishes an atom's acquisition steps from its
// science steps (spec.md §3, Atom).
type SequenceType string

const (
	SequenceAcquisition SequenceType = "ACQUISITION"
	SequenceScience     SequenceType = "SCIENCE"
)

// AtomExecutionState is the lifecycle of an Atom (spec.md §3).
type AtomExecutionState string

const (
	AtomNotStarted AtomExecutionState = "NOT_STARTED"
	AtomOngoing    AtomExecutionState = "ONGOING"
	AtomCompleted  AtomExecutionState = "COMPLETED"
	AtomAbandoned  AtomExecutionState = "ABANDONED"
)

// IsTerminal reports whether the atom state admits no further
// transitions.
func (s AtomExecutionState) IsTerminal() bool {
	return s == AtomCompleted || s == AtomAbandoned
}

// StepExecutionState is the lifecycle of a Step (spec.md §3).
type StepExecutionState string

const (
	StepNotStarted StepExecutionState = "NOT_STARTED"
	StepOngoing    StepExecutionState = "ONGOING"
	StepCompleted  StepExecutionState = "COMPLETED"
	StepAborted    StepExecutionState = "ABORTED"
	StepStopped    StepExecutionState = "STOPPED"
	StepAbandoned  StepExecutionState = "ABANDONED"
)

// IsTerminal reports whether the step state admits no further
// transitions.
func (s StepExecutionState) IsTerminal() bool {
	switch s {
	case StepCompleted, StepAborted, StepStopped, StepAbandoned:
		return true
	default:
		return false
	}
}

// DatasetQAState is the quality-assessment verdict on a dataset
// (spec.md §3, Dataset).
type DatasetQAState string

const (
	QAPass   DatasetQAState = "PASS"
	QAUsable DatasetQAState = "USABLE"
	QAFail   DatasetQAState = "FAIL"
)

// CloudExtinction, ImageQuality, SkyBackground, and WaterVapor are the
// observing-condition constraint axes of spec.md §3 (Observation).
type (
	CloudExtinction string
	ImageQuality    string
	SkyBackground   string
	WaterVapor      string
)

const (
	CloudExtinctionPointOne  CloudExtinction = "POINT_ONE"
	CloudExtinctionPointThree CloudExtinction = "POINT_THREE"
	CloudExtinctionPointFive CloudExtinction = "POINT_FIVE"
	CloudExtinctionOnePointZero CloudExtinction = "ONE_POINT_ZERO"

	ImageQualityPointOne  ImageQuality = "POINT_ONE"
	ImageQualityPointTwo  ImageQuality = "POINT_TWO"
	ImageQualityPointFour ImageQuality = "POINT_FOUR"
	ImageQualityPointSix  ImageQuality = "POINT_SIX"
	ImageQualityPointEight ImageQuality = "POINT_EIGHT"
	ImageQualityOnePointZero ImageQuality = "ONE_POINT_ZERO"

	SkyBackgroundDark  SkyBackground = "DARK"
	SkyBackgroundGrey  SkyBackground = "GREY"
	SkyBackgroundBright SkyBackground = "BRIGHT"

	WaterVapor20  WaterVapor = "WET_20"
	WaterVapor50  WaterVapor = "WET_50"
	WaterVapor80  WaterVapor = "WET_80"
	WaterVaporAny WaterVapor = "WET_ANY"
)

// ScienceBand is the funding/priority tier of an observation
// (spec.md §3).
type ScienceBand string

const (
	ScienceBand1 ScienceBand = "BAND_1"
	ScienceBand2 ScienceBand = "BAND_2"
	ScienceBand3 ScienceBand = "BAND_3"
	ScienceBand4 ScienceBand = "BAND_4"
)

// CalibrationRole marks an observation as a science target or one of the
// several calibration roles (spec.md §3, §4.I "Calibration observations
// expose []").
type CalibrationRole string

const (
	CalibrationRoleNone     CalibrationRole = "NONE"
	CalibrationRoleTelluric CalibrationRole = "TELLURIC"
	CalibrationRoleSpecPhoto CalibrationRole = "SPECPHOTO"
	CalibrationRoleTwilight CalibrationRole = "TWILIGHT"

	CalibrationRoleFlux CalibrationRole = "FLUX"
)

// IsCalibration reports whether the role marks a non-science observation.
func (r CalibrationRole) IsCalibration() bool { return r != CalibrationRoleNone }

// Site identifies the observatory site a dataset or visit belongs to
// (spec.md §6, filename format "[NS]YYYYMMDDS####.fits").
type Site string

const (
	SiteNorth Site = "N"
	SiteSouth Site = "S"
)
