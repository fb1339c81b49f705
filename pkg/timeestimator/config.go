// Package timeestimator implements the per-step cost model of spec.md
// §4.D: given the previous step's instrument configuration and the next
// step's, it returns a StepEstimate split into a config-change cost and
// a detector cost, both CategorizedTime values so downstream folding
// (digest, invoice) never has to re-derive charge classes.
package timeestimator

import (
	"github.com/obsdb/odb/pkg/odbtype"
)

// InstrumentConfig is the slice of a step's configuration the cost
// model reasons about. It is deliberately narrower than a full Step:
// only the fields that can trigger a config-change cost or affect
// detector readout.
type InstrumentConfig struct {
	Grating  string
	Filter   string
	FPU      string
	ReadMode string
	Binning  string
	ROI      string
	OffsetP  odbtype.Angle
	OffsetQ  odbtype.Angle
}

// StepInput is one step's estimator input: its instrument configuration,
// the charge class its time is billed against, and the exposure time
// the ITC (or a fixed acquisition constant) assigned it.
type StepInput struct {
	Config       InstrumentConfig
	ObserveClass odbtype.ObserveClass
	ExposureTime odbtype.TimeSpan
}

// AmpReadMode is the detector amplifier readout speed.
type AmpReadMode string

const (
	AmpReadSlow AmpReadMode = "SLOW"
	AmpReadFast AmpReadMode = "FAST"
)

// DetectorConfig carries the parameters readout(binning, ampCount,
// ampReadMode, ROI) of spec.md §4.D needs beyond what InstrumentConfig
// already has.
type DetectorConfig struct {
	AmpCount    int
	AmpReadMode AmpReadMode
}
