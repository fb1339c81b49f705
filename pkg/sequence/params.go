package sequence

import (
	"github.com/obsdb/odb/pkg/odbtype"
	"github.com/obsdb/odb/pkg/smartgcal"
)

// ObservingModeKind enumerates the observing modes the generator knows
// how to expand. spec.md §4.C names GMOS long-slit explicitly; other
// modes are Open Questions left for a future generator registration.
type ObservingModeKind string

const (
	ObservingModeGmosNorthLongSlit ObservingModeKind = "GMOS_NORTH_LONG_SLIT"
	ObservingModeGmosSouthLongSlit ObservingModeKind = "GMOS_SOUTH_LONG_SLIT"
)

// GmosLongSlitConfig is the declarative shape of a GMOS long-slit
// observing mode (spec.md §4.C).
type GmosLongSlitConfig struct {
	Grating    string
	Filter     string
	FPU        string
	ReadMode   string
	Binning    string
	ROI        string
	GuideState GuideState

	// CentralWavelength is the nominal central wavelength; WavelengthDithers
	// are signed offsets from it applied round-robin across atoms.
	CentralWavelength odbtype.Wavelength
	WavelengthDithers []odbtype.Wavelength

	// SpatialOffsets are the q-offset dither pattern applied round-robin
	// across atoms, cycled independently of the wavelength dithers.
	SpatialOffsets []odbtype.Angle

	CalType smartgcal.CalibrationType
}

// ObservingMode is the tagged union of supported modes.
type ObservingMode struct {
	Kind        ObservingModeKind
	GmosLongSlit *GmosLongSlitConfig
}

// IntegrationTime is the ITC's verdict on how science exposures should be
// counted and timed (spec.md §1, §4.C: "integration time from ITC").
type IntegrationTime struct {
	ExposureTime  odbtype.TimeSpan
	ExposureCount int
}

// GeneratorParams is the input to SequenceGenerator.Generate (spec.md
// §4.C).
type GeneratorParams struct {
	ObservationID   string
	Mode            ObservingMode
	Integration     IntegrationTime
}
