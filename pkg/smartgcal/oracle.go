// Package smartgcal implements the Smart-GCAL lookup oracle of
// spec.md §4.C/§1: given an instrument configuration and a calibration
// type, it returns the ordered concrete Gcal steps a SmartGcal
// placeholder step expands to.
//
// spec.md §1 lists Smart-GCAL as an "abstract external oracle"; the
// StaticOracle here is the in-process stand-in the sequence generator
// calls through the Oracle interface, with a gobreaker-wrapped HTTP
// implementation available for a real lookup-table service.
package smartgcal

import (
	"context"
	"fmt"

	apperrors "github.com/obsdb/odb/internal/errors"
	"github.com/obsdb/odb/pkg/odbtype"
)

// CalibrationType distinguishes the two families of Gcal exposure
// (GLOSSARY: "Gcal").
type CalibrationType string

const (
	CalFlat CalibrationType = "FLAT"
	CalArc  CalibrationType = "ARC"
)

// Key identifies one row of the Smart-GCAL lookup table: an instrument
// configuration plus the calibration type being requested.
type Key struct {
	Instrument string
	Disperser  string
	Filter     string
	FPU        string
	CalType    CalibrationType
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s/%s/%s", k.Instrument, k.Disperser, k.Filter, k.FPU, k.CalType)
}

// GcalConfig is one concrete calibration-unit exposure: lamp, filter,
// diffuser, and shutter state plus the exposure time the lookup table
// assigns it (GLOSSARY: "Gcal").
type GcalConfig struct {
	Lamp         string
	Filter       string
	Diffuser     string
	Shutter      string
	ExposureTime odbtype.TimeSpan
}

// Oracle resolves a Key to its ordered list of GcalConfig steps.
type Oracle interface {
	Lookup(ctx context.Context, key Key) ([]GcalConfig, error)
}

// MissingDef builds the InvalidData failure spec.md §4.C names as
// "MissingSmartGcalDef(key)".
func MissingDef(key Key) error {
	return apperrors.InvalidData(key.String(), "no Smart-GCAL definition for this instrument configuration")
}

// StaticOracle is an in-memory Oracle backed by a fixed lookup table,
// suitable for tests and for seeding a real lookup service.
type StaticOracle struct {
	defs map[Key][]GcalConfig
}

// NewStaticOracle builds a StaticOracle from a table of definitions. The
// table is copied defensively so callers may keep mutating their own map.
func NewStaticOracle(defs map[Key][]GcalConfig) *StaticOracle {
	copied := make(map[Key][]GcalConfig, len(defs))
	for k, v := range defs {
		cfgs := make([]GcalConfig, len(v))
		copy(cfgs, v)
		copied[k] = cfgs
	}
	return &StaticOracle{defs: copied}
}

func (o *StaticOracle) Lookup(_ context.Context, key Key) ([]GcalConfig, error) {
	cfgs, ok := o.defs[key]
	if !ok {
		return nil, MissingDef(key)
	}
	out := make([]GcalConfig, len(cfgs))
	copy(out, cfgs)
	return out, nil
}
