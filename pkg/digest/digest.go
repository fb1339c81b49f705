package digest

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/obsdb/odb/pkg/metrics"
	"github.com/obsdb/odb/pkg/odbtype"
	"github.com/obsdb/odb/pkg/sequence"
	"github.com/obsdb/odb/pkg/smartgcal"
	"github.com/obsdb/odb/pkg/timeestimator"
)

// ParamsResolver loads the generator params for an observation
// (spec.md §4.E step 1).
type ParamsResolver interface {
	ResolveParams(ctx context.Context, observationID string) (sequence.GeneratorParams, error)
}

// ModeFingerprint renders an observing mode to the canonical byte
// sequence MD5'd into a DigestKey (spec.md §6).
type ModeFingerprint func(sequence.ObservingMode) []byte

// GcalKey derives the Smart-GCAL lookup key for a step's placeholder
// config, given the static instrument configuration it executes under.
type GcalKey func(sequence.StaticConfig, sequence.ProtoStep, sequence.SmartGcalConfig) smartgcal.Key

// Digester implements the digest(pid, oid) pipeline of spec.md §4.E.
type Digester struct {
	Resolver    ParamsResolver
	ItcCache    ItcCache
	Oracle      ItcOracle
	DigestCache Cache
	SmartGcal   smartgcal.Oracle
	GcalKeyFor  GcalKey
	Fingerprint ModeFingerprint
	CommitHash  []byte
	Setup       SetupTime

	// AcquisitionExposure is the fixed per-step exposure time charged to
	// acquisition steps, which the ITC does not estimate.
	AcquisitionExposure odbtype.TimeSpan

	group singleflight.Group
}

// Digest resolves, or computes and caches, the ExecutionDigest for one
// observation (spec.md §4.E).
func (d *Digester) Digest(ctx context.Context, programID, observationID string) (ExecutionDigest, error) {
	params, err := d.Resolver.ResolveParams(ctx, observationID)
	if err != nil {
		return ExecutionDigest{}, err
	}

	itc, err := d.resolveItc(ctx, observationID, params)
	if err != nil {
		return ExecutionDigest{}, err
	}
	params.Integration = itc.IntegrationTime()

	key := DigestKey{
		ProgramID:     programID,
		ObservationID: observationID,
		MD5Hash: ComputeHash(HashInput{
			ModeFingerprint:    d.Fingerprint(params.Mode),
			ExposureTimeMicros: odbtype.SpanFromDuration(itc.ExposureTime).Micros(),
			ExposureCount:      int32(itc.ExposureCount),
			CommitHash:         d.CommitHash,
		}),
	}

	if cached, ok, err := d.DigestCache.Get(ctx, key); err != nil {
		return ExecutionDigest{}, err
	} else if ok {
		metrics.RecordDigestHit()
		return *cached, nil
	}

	computeStart := time.Now()
	result, err, _ := d.group.Do(key.String(), func() (interface{}, error) {
		return d.compute(ctx, params)
	})
	if err != nil {
		return ExecutionDigest{}, err
	}
	metrics.RecordDigestMiss(time.Since(computeStart))
	computed := result.(ExecutionDigest)

	if err := d.DigestCache.Put(ctx, key, computed); err != nil {
		return ExecutionDigest{}, err
	}
	return computed, nil
}

func (d *Digester) resolveItc(ctx context.Context, observationID string, params sequence.GeneratorParams) (ItcResult, error) {
	if cached, ok, err := d.ItcCache.Get(ctx, observationID); err != nil {
		return ItcResult{}, err
	} else if ok {
		return *cached, nil
	}
	result, err := d.Oracle.Estimate(ctx, params)
	if err != nil {
		metrics.RecordOracleCall("itc", "error")
		return ItcResult{}, err
	}
	metrics.RecordOracleCall("itc", "success")
	if err := d.ItcCache.Put(ctx, observationID, result); err != nil {
		return ItcResult{}, err
	}
	return result, nil
}

func (d *Digester) compute(ctx context.Context, params sequence.GeneratorParams) (ExecutionDigest, error) {
	cfg, err := sequence.Generate(params)
	if err != nil {
		return ExecutionDigest{}, err
	}

	acquisitionAtoms, err := cfg.Acquisition.Take(1)
	if err != nil {
		return ExecutionDigest{}, err
	}
	scienceAtoms, err := cfg.Science.Take(params.Integration.ExposureCount)
	if err != nil {
		return ExecutionDigest{}, err
	}

	acquisition, err := d.foldSequence(ctx, cfg.Static, acquisitionAtoms, params)
	if err != nil {
		return ExecutionDigest{}, err
	}
	science, err := d.foldSequence(ctx, cfg.Static, scienceAtoms, params)
	if err != nil {
		return ExecutionDigest{}, err
	}

	return ExecutionDigest{
		Setup:       d.Setup,
		Acquisition: acquisition,
		Science:     science,
	}, nil
}

// foldSequence expands SmartGcal placeholders and folds every step's
// time estimate into one SequenceDigest (spec.md §4.E step 4).
func (d *Digester) foldSequence(ctx context.Context, static sequence.StaticConfig, atoms []sequence.ProtoAtom, params sequence.GeneratorParams) (SequenceDigest, error) {
	planned := odbtype.ZeroCategorizedTime()
	offsets := make(map[OffsetPair]struct{})
	var observeClass odbtype.ObserveClass

	var previous *timeestimator.InstrumentConfig
	for _, atom := range atoms {
		expanded, err := d.expand(ctx, static, atom)
		if err != nil {
			return SequenceDigest{}, err
		}
		for _, step := range expanded.Steps {
			if observeClass == "" {
				observeClass = step.ObserveClass
			}
			if sc, ok := step.Config.(sequence.ScienceConfig); ok {
				offsets[OffsetPair{P: sc.Offset.P, Q: sc.Offset.Q}] = struct{}{}
			}

			instrument := instrumentConfigFor(static, step)
			estimate := timeestimator.Estimate(previous, timeestimator.StepInput{
				Config:       instrument,
				ObserveClass: step.ObserveClass,
				ExposureTime: d.exposureTimeFor(step, params.Integration),
			}, detectorConfigFor(static))
			planned = planned.Plus(estimate.Total)
			previous = &instrument
		}
	}

	offsetList := make([]OffsetPair, 0, len(offsets))
	for o := range offsets {
		offsetList = append(offsetList, o)
	}

	return SequenceDigest{
		ObserveClass: observeClass,
		PlannedTime:  planned,
		Offsets:      offsetList,
		AtomCount:    len(atoms),
	}, nil
}

func (d *Digester) expand(ctx context.Context, static sequence.StaticConfig, atom sequence.ProtoAtom) (sequence.ProtoAtom, error) {
	hasPlaceholder := false
	for _, step := range atom.Steps {
		if step.Config.Kind() == sequence.KindSmartGcal {
			hasPlaceholder = true
			break
		}
	}
	if !hasPlaceholder {
		return atom, nil
	}
	expanded, err := sequence.ExpandSmartGcal(ctx, d.SmartGcal, atom, func(step sequence.ProtoStep, sg sequence.SmartGcalConfig) smartgcal.Key {
		return d.GcalKeyFor(static, step, sg)
	})
	if err != nil {
		metrics.RecordOracleCall("smartgcal", "error")
		return sequence.ProtoAtom{}, err
	}
	metrics.RecordOracleCall("smartgcal", "success")
	return expanded, nil
}

// exposureTimeFor assigns the exposure time a step's detector cost is
// charged for: the ITC-assigned duration for science exposures, the
// Smart-GCAL lookup's own exposure time for resolved Gcal steps, and a
// fixed constant for acquisition exposures (the ITC does not estimate
// acquisition time).
func (d *Digester) exposureTimeFor(step sequence.ProtoStep, integ sequence.IntegrationTime) odbtype.TimeSpan {
	switch cfg := step.Config.(type) {
	case sequence.GcalConfig:
		return cfg.ExposureTime
	case sequence.ScienceConfig:
		if step.ObserveClass == odbtype.ObserveClassAcquisition {
			return d.AcquisitionExposure
		}
		return integ.ExposureTime
	default:
		return odbtype.ZeroSpan
	}
}

func instrumentConfigFor(static sequence.StaticConfig, step sequence.ProtoStep) timeestimator.InstrumentConfig {
	cfg := timeestimator.InstrumentConfig{
		Grating:  static.Grating,
		Filter:   static.Filter,
		FPU:      static.FPU,
		ReadMode: static.ReadMode,
		Binning:  static.Binning,
		ROI:      step.ROI,
	}
	if sc, ok := step.Config.(sequence.ScienceConfig); ok {
		cfg.OffsetP = sc.Offset.P
		cfg.OffsetQ = sc.Offset.Q
	}
	return cfg
}

func detectorConfigFor(static sequence.StaticConfig) timeestimator.DetectorConfig {
	mode := timeestimator.AmpReadSlow
	if static.ReadMode == "FAST" {
		mode = timeestimator.AmpReadFast
	}
	return timeestimator.DetectorConfig{AmpCount: 1, AmpReadMode: mode}
}

// defaultFingerprint is a simple ModeFingerprint suitable for tests and
// for modes whose kind and dither pattern fully determine their digest
// bytes.
func defaultFingerprint(mode sequence.ObservingMode) []byte {
	if mode.GmosLongSlit == nil {
		return []byte(mode.Kind)
	}
	cfg := mode.GmosLongSlit
	return []byte(fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s", mode.Kind, cfg.Grating, cfg.Filter, cfg.FPU, cfg.ReadMode, cfg.Binning, cfg.ROI))
}

// DefaultFingerprint exposes defaultFingerprint for callers that don't
// need a custom mode encoding.
var DefaultFingerprint ModeFingerprint = defaultFingerprint
