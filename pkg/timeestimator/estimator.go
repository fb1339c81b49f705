package timeestimator

import (
	"math"
	"time"

	"github.com/obsdb/odb/pkg/odbtype"
)

// ChangeKind enumerates the config-change cost axes of spec.md §4.D, in
// the declared enum order used to tie-break equal-cost selections.
type ChangeKind int

const (
	ChangeGrating ChangeKind = iota
	ChangeFilter
	ChangeFPU
	ChangeOffset
	ChangeReadMode
	ChangeBinning
)

var changeKindOrder = []ChangeKind{ChangeGrating, ChangeFilter, ChangeFPU, ChangeOffset, ChangeReadMode, ChangeBinning}

// Cost model constants. These are fixed overheads for a mechanism
// change (grating wheel, filter wheel, FPU slide, instrument readout
// electronics reconfiguration) plus a per-arcsecond telescope-offset
// rate; all deterministic and independent of any external oracle.
var (
	gratingChangeCost  = odbtype.SpanFromDuration(90 * time.Second)
	filterChangeCost   = odbtype.SpanFromDuration(20 * time.Second)
	fpuChangeCost      = odbtype.SpanFromDuration(30 * time.Second)
	readModeChangeCost = odbtype.SpanFromDuration(15 * time.Second)
	binningChangeCost  = odbtype.SpanFromDuration(10 * time.Second)

	offsetBaseCost   = odbtype.SpanFromDuration(5 * time.Second)
	offsetRatePerArc = 0.1 // seconds of overhead per arcsecond moved

	// writeCost is the fixed per-step dataset-write overhead.
	writeCost = odbtype.SpanFromDuration(10 * time.Second)

	// readoutBasePerAmp is the per-amplifier readout cost at SLOW mode, full
	// frame. FAST halves it; binning and a reduced ROI scale it down.
	readoutBasePerAmp = odbtype.SpanFromDuration(8 * time.Second)
)

// CategorizedTimeEstimate is a CategorizedTime produced by the cost
// model rather than recorded from an actual exposure; the distinct name
// documents provenance at call sites without changing representation.
type CategorizedTimeEstimate = odbtype.CategorizedTime

// StepEstimate is the estimator's output (spec.md §4.D).
type StepEstimate struct {
	ConfigChange *CategorizedTimeEstimate
	Detector     CategorizedTimeEstimate
	Total        CategorizedTimeEstimate
}

// Estimate computes the StepEstimate for nextStep given the previous
// step's instrument configuration (nil if nextStep is the first step of
// its sequence) and the next step's detector parameters.
func Estimate(previous *InstrumentConfig, next StepInput, detector DetectorConfig) StepEstimate {
	chargeClass := odbtype.ChargeClassFor(next.ObserveClass)

	var configChange *CategorizedTimeEstimate
	if previous != nil {
		selected := selectedChangeCost(*previous, next.Config)
		estimate := odbtype.Single(chargeClass, selected)
		configChange = &estimate
	}

	detectorEstimate := odbtype.Single(chargeClass, detectorCost(next, detector))

	total := detectorEstimate
	if configChange != nil {
		total = total.Plus(*configChange)
	}

	return StepEstimate{
		ConfigChange: configChange,
		Detector:     detectorEstimate,
		Total:        total,
	}
}

// selectedChangeCost enumerates every applicable change cost between
// prev and next and returns the maximum, tying-by-enum-order on equal
// costs (spec.md §4.D).
func selectedChangeCost(prev, next InstrumentConfig) odbtype.TimeSpan {
	costs := changeCosts(prev, next)

	selected := odbtype.ZeroSpan
	for _, kind := range changeKindOrder {
		if costs[kind].Cmp(selected) > 0 {
			selected = costs[kind]
		}
	}
	return selected
}

func changeCosts(prev, next InstrumentConfig) map[ChangeKind]odbtype.TimeSpan {
	costs := make(map[ChangeKind]odbtype.TimeSpan, len(changeKindOrder))
	costs[ChangeGrating] = costIfChanged(prev.Grating != next.Grating, gratingChangeCost)
	costs[ChangeFilter] = costIfChanged(prev.Filter != next.Filter, filterChangeCost)
	costs[ChangeFPU] = costIfChanged(prev.FPU != next.FPU, fpuChangeCost)
	costs[ChangeOffset] = offsetCost(prev, next)
	costs[ChangeReadMode] = costIfChanged(prev.ReadMode != next.ReadMode, readModeChangeCost)
	costs[ChangeBinning] = costIfChanged(prev.Binning != next.Binning, binningChangeCost)
	return costs
}

func costIfChanged(changed bool, cost odbtype.TimeSpan) odbtype.TimeSpan {
	if changed {
		return cost
	}
	return odbtype.ZeroSpan
}

// offsetCost is the linear model: base cost plus a per-arcsecond rate
// over the Euclidean distance moved in (p, q).
func offsetCost(prev, next InstrumentConfig) odbtype.TimeSpan {
	dp := next.OffsetP.Sub(prev.OffsetP).AbsArcsec()
	dq := next.OffsetQ.Sub(prev.OffsetQ).AbsArcsec()
	if dp == 0 && dq == 0 {
		return odbtype.ZeroSpan
	}
	distance := math.Sqrt(dp*dp + dq*dq)
	return offsetBaseCost.Add(odbtype.SpanFromDuration(time.Duration(distance*offsetRatePerArc*float64(time.Second))))
}

// detectorCost = exposure + readout(binning, ampCount, ampReadMode, ROI) + write.
func detectorCost(next StepInput, detector DetectorConfig) odbtype.TimeSpan {
	readout := readoutCost(next.Config, detector)
	return next.ExposureTime.Add(readout).Add(writeCost)
}

func readoutCost(cfg InstrumentConfig, detector DetectorConfig) odbtype.TimeSpan {
	ampCount := detector.AmpCount
	if ampCount <= 0 {
		ampCount = 1
	}
	perAmp := readoutBasePerAmp
	if detector.AmpReadMode == AmpReadFast {
		perAmp = odbtype.SpanFromMicros(perAmp.Micros() / 2)
	}
	perAmp = odbtype.SpanFromMicros(perAmp.Micros() / int64(binningFactor(cfg.Binning)))
	perAmp = odbtype.SpanFromMicros(perAmp.Micros() * int64(roiFactorNumerator(cfg.ROI)) / int64(roiFactorDenominator))

	total := odbtype.ZeroSpan
	for i := 0; i < ampCount; i++ {
		total = total.Add(perAmp)
	}
	return total
}

// binningFactor maps a binning mode string to the readout speedup it
// grants (NxN binning reads out roughly N times faster).
func binningFactor(binning string) int {
	switch binning {
	case "2x2":
		return 2
	case "4x4":
		return 4
	default:
		return 1
	}
}

const roiFactorDenominator = 4

// roiFactorNumerator maps a region-of-interest name to its fraction of
// a full-frame readout, expressed as quarters (spec.md §4.D, "declining
// ROI" acquisition atom).
func roiFactorNumerator(roi string) int {
	switch roi {
	case "CENTRAL_SPECTRUM":
		return 2
	case "CENTRAL_STAMP":
		return 1
	default: // FULL_FRAME and anything unrecognized
		return roiFactorDenominator
	}
}
