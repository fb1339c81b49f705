package odbtype

import (
	"fmt"
	"math"
)

// Wavelength is stored as an integer count of picometers so that
// arithmetic and equality are exact, matching the "bit-equal output"
// determinism requirement on the estimator (spec.md §4.D).
type Wavelength struct {
	picometers int64
}

// WavelengthFromPicometers constructs a Wavelength from an exact
// picometer count.
func WavelengthFromPicometers(pm int64) Wavelength {
	return Wavelength{picometers: pm}
}

// WavelengthFromNanometers constructs a Wavelength from a floating point
// nanometer value, rounding to the nearest picometer.
func WavelengthFromNanometers(nm float64) Wavelength {
	return Wavelength{picometers: int64(math.Round(nm * 1000))}
}

func (w Wavelength) Picometers() int64 { return w.picometers }

func (w Wavelength) Nanometers() float64 { return float64(w.picometers) / 1000.0 }

// Sub returns w - other as a signed picometer count.
func (w Wavelength) Sub(other Wavelength) int64 {
	return w.picometers - other.picometers
}

func (w Wavelength) String() string {
	return fmt.Sprintf("%.1f nm", w.Nanometers())
}
