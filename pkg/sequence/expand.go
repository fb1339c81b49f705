package sequence

import (
	"context"

	"github.com/obsdb/odb/pkg/smartgcal"
)

// ExpandSmartGcal replaces every SmartGcalConfig placeholder step in atom
// with the one or more concrete Gcal steps the oracle resolves it to
// (spec.md §4.C: "SmartGcal steps expand ... at realization time").
// Non-SmartGcal steps pass through unchanged.
func ExpandSmartGcal(ctx context.Context, oracle smartgcal.Oracle, atom ProtoAtom, key func(ProtoStep, SmartGcalConfig) smartgcal.Key) (ProtoAtom, error) {
	expanded := make([]ProtoStep, 0, len(atom.Steps))
	for _, step := range atom.Steps {
		sg, ok := step.Config.(SmartGcalConfig)
		if !ok {
			expanded = append(expanded, step)
			continue
		}
		cfgs, err := oracle.Lookup(ctx, key(step, sg))
		if err != nil {
			return ProtoAtom{}, err
		}
		for _, cfg := range cfgs {
			expanded = append(expanded, ProtoStep{
				Description:  step.Description,
				Config:       GcalConfig{GcalConfig: cfg},
				ObserveClass: step.ObserveClass,
				Wavelength:   step.Wavelength,
			})
		}
	}
	return ProtoAtom{
		Description:  atom.Description,
		SequenceType: atom.SequenceType,
		Steps:        expanded,
	}, nil
}
