package sequence

import (
	"fmt"

	apperrors "github.com/obsdb/odb/internal/errors"
	"github.com/obsdb/odb/pkg/odbtype"
)

// acquisitionROIs is the fixed 3-step acquisition atom's declining
// region-of-interest sequence (spec.md §4.C: "acquisition is a fixed
// 3-step atom at declining ROI").
var acquisitionROIs = []string{"FULL_FRAME", "CENTRAL_SPECTRUM", "CENTRAL_STAMP"}

// Generate expands params into a ProtoExecutionConfig. It is the single
// entry point of the SequenceGenerator (spec.md §4.C); today it
// understands the GMOS long-slit observing modes only.
func Generate(params GeneratorParams) (ProtoExecutionConfig, error) {
	switch params.Mode.Kind {
	case ObservingModeGmosNorthLongSlit, ObservingModeGmosSouthLongSlit:
		return generateGmosLongSlit(params)
	default:
		return ProtoExecutionConfig{}, apperrors.InvalidData(params.ObservationID,
			fmt.Sprintf("unsupported observing mode %q", params.Mode.Kind))
	}
}

func generateGmosLongSlit(params GeneratorParams) (ProtoExecutionConfig, error) {
	cfg := params.Mode.GmosLongSlit
	if cfg == nil {
		return ProtoExecutionConfig{}, apperrors.InvalidData(params.ObservationID, "GMOS long-slit mode missing its configuration")
	}
	if len(cfg.WavelengthDithers) == 0 {
		return ProtoExecutionConfig{}, apperrors.InvalidData(params.ObservationID, "GMOS long-slit mode requires at least one wavelength dither")
	}
	if len(cfg.SpatialOffsets) == 0 {
		return ProtoExecutionConfig{}, apperrors.InvalidData(params.ObservationID, "GMOS long-slit mode requires at least one spatial offset")
	}
	if params.Integration.ExposureCount < 0 {
		return ProtoExecutionConfig{}, apperrors.InvalidData(params.ObservationID, "ITC exposure count must be non-negative")
	}

	static := StaticConfig{
		Instrument: string(params.Mode.Kind),
		Grating:    cfg.Grating,
		Filter:     cfg.Filter,
		FPU:        cfg.FPU,
		ReadMode:   cfg.ReadMode,
		Binning:    cfg.Binning,
	}

	acquisition := NewStream(gmosAcquisitionAtom(cfg))
	science := NewStream(gmosScienceAtom(cfg, params.Integration))

	return ProtoExecutionConfig{
		Static:      static,
		Acquisition: acquisition,
		Science:     science,
	}, nil
}

func gmosAcquisitionAtom(cfg *GmosLongSlitConfig) AtomAt {
	return func(index int) (ProtoAtom, error) {
		steps := make([]ProtoStep, len(acquisitionROIs))
		for i, roi := range acquisitionROIs {
			steps[i] = ProtoStep{
				Description: fmt.Sprintf("acquisition %s", roi),
				Config: ScienceConfig{
					Offset:     Offset{},
					GuideState: GuideDisabled,
				},
				ObserveClass: odbtype.ObserveClassAcquisition,
				Wavelength:   cfg.CentralWavelength,
				ROI:          roi,
			}
		}
		return ProtoAtom{
			Description:  "acquisition",
			SequenceType: odbtype.SequenceAcquisition,
			Steps:        steps,
		}, nil
	}
}

// gmosScienceAtom builds the infinite science atom generator: an A-B-A
// cycle over the cross product of wavelength dithers and spatial
// offsets, each atom pairing one science exposure with one SmartGcal
// placeholder in alternating order (spec.md §4.C).
func gmosScienceAtom(cfg *GmosLongSlitConfig, integ IntegrationTime) AtomAt {
	dithers := cfg.WavelengthDithers
	offsets := cfg.SpatialOffsets
	patternLen := len(dithers) * len(offsets)

	return func(index int) (ProtoAtom, error) {
		pos := index % patternLen
		ditherIdx := pos % len(dithers)
		offsetIdx := (pos / len(dithers)) % len(offsets)

		wavelength := odbtype.WavelengthFromPicometers(cfg.CentralWavelength.Picometers() + dithers[ditherIdx].Picometers())
		qOffset := offsets[offsetIdx]

		description := fmt.Sprintf("q %s, λ %s", qOffset, wavelength)

		scienceStep := ProtoStep{
			Description: description,
			Config: ScienceConfig{
				Offset:     Offset{Q: qOffset},
				GuideState: cfg.GuideState,
			},
			ObserveClass: odbtype.ObserveClassScience,
			Wavelength:   wavelength,
			ROI:          cfg.ROI,
		}
		gcalStep := ProtoStep{
			Description:  fmt.Sprintf("SmartGcal %s", cfg.CalType),
			Config:       SmartGcalConfig{Type: cfg.CalType},
			ObserveClass: odbtype.ObserveClassPartnerCal,
			Wavelength:   wavelength,
			ROI:          cfg.ROI,
		}

		var steps []ProtoStep
		if index%2 == 0 {
			steps = []ProtoStep{scienceStep, gcalStep}
		} else {
			steps = []ProtoStep{gcalStep, scienceStep}
		}

		return ProtoAtom{
			Description:  description,
			SequenceType: odbtype.SequenceScience,
			Steps:        steps,
		}, nil
	}
}
