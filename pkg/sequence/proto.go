// Package sequence implements the SequenceGenerator of spec.md §4.C: it
// expands a declarative observing mode into lazy acquisition and
// science atom streams, then (after the caller slices them to a finite
// length) expands any SmartGcal placeholders into concrete Gcal steps.
package sequence

import (
	"fmt"

	"github.com/obsdb/odb/pkg/odbtype"
	"github.com/obsdb/odb/pkg/smartgcal"
)

// GuideState is whether guiding is enabled for a science step.
type GuideState string

const (
	GuideEnabled  GuideState = "ENABLED"
	GuideDisabled GuideState = "DISABLED"
)

// Offset is a (p, q) telescope offset in arcsec-scale Angles.
type Offset struct {
	P odbtype.Angle
	Q odbtype.Angle
}

// StepConfig is the sum type of spec.md §3 (Step): exactly one of Bias,
// Dark, Gcal, Science, or SmartGcal. Implementations are exhaustively
// matched via Kind(); there is no default case.
type StepConfig interface {
	Kind() StepConfigKind
}

type StepConfigKind int

const (
	KindBias StepConfigKind = iota
	KindDark
	KindGcal
	KindScience
	KindSmartGcal
)

func (k StepConfigKind) String() string {
	switch k {
	case KindBias:
		return "Bias"
	case KindDark:
		return "Dark"
	case KindGcal:
		return "Gcal"
	case KindScience:
		return "Science"
	case KindSmartGcal:
		return "SmartGcal"
	default:
		return fmt.Sprintf("StepConfigKind(%d)", int(k))
	}
}

type BiasConfig struct{}

func (BiasConfig) Kind() StepConfigKind { return KindBias }

type DarkConfig struct{}

func (DarkConfig) Kind() StepConfigKind { return KindDark }

// GcalConfig is a resolved calibration-unit exposure (GLOSSARY: Gcal).
type GcalConfig struct {
	smartgcal.GcalConfig
}

func (GcalConfig) Kind() StepConfigKind { return KindGcal }

// ScienceConfig is a science exposure: a telescope offset plus the
// guiding state during the exposure.
type ScienceConfig struct {
	Offset     Offset
	GuideState GuideState
}

func (ScienceConfig) Kind() StepConfigKind { return KindScience }

// SmartGcalConfig is the unexpanded placeholder of spec.md §4.C,
// resolved to one or more GcalConfig steps by ExpandSmartGcal.
type SmartGcalConfig struct {
	Type smartgcal.CalibrationType
}

func (SmartGcalConfig) Kind() StepConfigKind { return KindSmartGcal }

// ProtoStep is one unmaterialized step: an instrument configuration
// slot plus its StepConfig variant and a human-readable description
// (spec.md §4.C, e.g. "q -15.0″, λ 500.0 nm").
type ProtoStep struct {
	Description  string
	Config       StepConfig
	ObserveClass odbtype.ObserveClass
	Wavelength   odbtype.Wavelength // zero value if not wavelength-bearing

	// ROI is this step's detector region of interest. It varies within a
	// sequence (the acquisition atom's declining ROI); every other
	// instrument setting is carried on StaticConfig instead.
	ROI string
}

// ProtoAtom is an indivisible, ordered group of ProtoSteps (spec.md §3).
type ProtoAtom struct {
	Description  string
	SequenceType odbtype.SequenceType
	Steps        []ProtoStep
}

// StaticConfig is the instrument configuration shared by every step of
// an observation's sequence (detector mode, grating home position,
// etc.) — opaque to the generator beyond what the estimator needs.
type StaticConfig struct {
	Instrument string
	Grating    string
	Filter     string
	FPU        string
	ReadMode   string
	Binning    string
}

// ProtoExecutionConfig is the generator's output: a static config plus
// two independent, potentially-infinite atom streams (spec.md §4.C).
type ProtoExecutionConfig struct {
	Static       StaticConfig
	Acquisition  Stream
	Science      Stream
}
