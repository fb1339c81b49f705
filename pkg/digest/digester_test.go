package digest_test

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/obsdb/odb/pkg/digest"
	"github.com/obsdb/odb/pkg/odbtype"
	"github.com/obsdb/odb/pkg/sequence"
	"github.com/obsdb/odb/pkg/smartgcal"
)

type fakeResolver struct {
	params sequence.GeneratorParams
}

func (f fakeResolver) ResolveParams(ctx context.Context, observationID string) (sequence.GeneratorParams, error) {
	return f.params, nil
}

type fakeOracle struct {
	calls  int
	mu     sync.Mutex
	result digest.ItcResult
}

func (f *fakeOracle) Estimate(ctx context.Context, params sequence.GeneratorParams) (digest.ItcResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.result, nil
}

type memItcCache struct {
	mu    sync.Mutex
	items map[string]digest.ItcResult
}

func newMemItcCache() *memItcCache { return &memItcCache{items: map[string]digest.ItcResult{}} }

func (c *memItcCache) Get(ctx context.Context, observationID string) (*digest.ItcResult, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.items[observationID]
	if !ok {
		return nil, false, nil
	}
	return &r, true, nil
}

func (c *memItcCache) Put(ctx context.Context, observationID string, result digest.ItcResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[observationID] = result
	return nil
}

type memDigestCache struct {
	mu    sync.Mutex
	items map[digest.DigestKey]digest.ExecutionDigest
}

func newMemDigestCache() *memDigestCache {
	return &memDigestCache{items: map[digest.DigestKey]digest.ExecutionDigest{}}
}

func (c *memDigestCache) Get(ctx context.Context, key digest.DigestKey) (*digest.ExecutionDigest, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.items[key]
	if !ok {
		return nil, false, nil
	}
	return &d, true, nil
}

func (c *memDigestCache) Put(ctx context.Context, key digest.DigestKey, d digest.ExecutionDigest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = d
	return nil
}

func longSlitParams() sequence.GeneratorParams {
	return sequence.GeneratorParams{
		ObservationID: "o-1",
		Mode: sequence.ObservingMode{
			Kind: sequence.ObservingModeGmosNorthLongSlit,
			GmosLongSlit: &sequence.GmosLongSlitConfig{
				Grating:           "B600",
				Filter:            "none",
				FPU:               "1.0arcsec",
				ReadMode:          "SLOW",
				Binning:           "1x1",
				ROI:               "FULL_FRAME",
				GuideState:        sequence.GuideEnabled,
				CentralWavelength: odbtype.WavelengthFromNanometers(500),
				WavelengthDithers: []odbtype.Wavelength{odbtype.WavelengthFromNanometers(0), odbtype.WavelengthFromNanometers(5)},
				SpatialOffsets:    []odbtype.Angle{odbtype.AngleFromArcsec(-15), odbtype.AngleFromArcsec(15)},
				CalType:           smartgcal.CalArc,
			},
		},
	}
}

func newDigester(oracle digest.ItcOracle, itcCache digest.ItcCache, digestCache digest.Cache) *digest.Digester {
	return &digest.Digester{
		Resolver:    fakeResolver{params: longSlitParams()},
		ItcCache:    itcCache,
		Oracle:      oracle,
		DigestCache: digestCache,
		SmartGcal: smartgcal.NewStaticOracle(map[smartgcal.Key][]smartgcal.GcalConfig{
			{Instrument: "GMOS_NORTH_LONG_SLIT", Disperser: "", Filter: "", FPU: "", CalType: smartgcal.CalArc}: {
				{Lamp: "CuAr", Filter: "none", Diffuser: "IR", Shutter: "OPEN", ExposureTime: odbtype.SpanFromMicros(1_000_000)},
			},
		}),
		GcalKeyFor: func(static sequence.StaticConfig, step sequence.ProtoStep, sg sequence.SmartGcalConfig) smartgcal.Key {
			return smartgcal.Key{Instrument: static.Instrument, CalType: sg.Type}
		},
		Fingerprint:         digest.DefaultFingerprint,
		CommitHash:          []byte("test-commit"),
		Setup:               digest.SetupTime{Full: odbtype.SpanFromMicros(960_000_000), Reacquisition: odbtype.SpanFromMicros(300_000_000)},
		AcquisitionExposure: odbtype.SpanFromDuration(5 * time.Second),
	}
}

var _ = Describe("Digester", func() {
	It("computes a digest with the configured setup time and atom counts", func() {
		oracle := &fakeOracle{result: digest.ItcResult{ExposureTime: 300 * time.Second, ExposureCount: 4}}
		d := newDigester(oracle, newMemItcCache(), newMemDigestCache())

		got, err := d.Digest(context.Background(), "p-1", "o-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Setup.Full).To(Equal(odbtype.SpanFromMicros(960_000_000)))
		Expect(got.Acquisition.AtomCount).To(Equal(1))
		Expect(got.Science.AtomCount).To(Equal(4))
		Expect(got.Science.PlannedTime.Total().IsZero()).To(BeFalse())
	})

	It("caches the digest: a second call does not recompute or re-call the ITC", func() {
		oracle := &fakeOracle{result: digest.ItcResult{ExposureTime: 300 * time.Second, ExposureCount: 4}}
		itcCache := newMemItcCache()
		d := newDigester(oracle, itcCache, newMemDigestCache())

		_, err := d.Digest(context.Background(), "p-1", "o-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(oracle.calls).To(Equal(1))

		_, err = d.Digest(context.Background(), "p-1", "o-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(oracle.calls).To(Equal(1), "a cached ITC result must not trigger a second oracle call")
	})

	It("is deterministic: identical params and commit hash produce the identical digest", func() {
		oracle1 := &fakeOracle{result: digest.ItcResult{ExposureTime: 300 * time.Second, ExposureCount: 4}}
		oracle2 := &fakeOracle{result: digest.ItcResult{ExposureTime: 300 * time.Second, ExposureCount: 4}}

		d1 := newDigester(oracle1, newMemItcCache(), newMemDigestCache())
		d2 := newDigester(oracle2, newMemItcCache(), newMemDigestCache())

		got1, err := d1.Digest(context.Background(), "p-1", "o-1")
		Expect(err).NotTo(HaveOccurred())
		got2, err := d2.Digest(context.Background(), "p-1", "o-1")
		Expect(err).NotTo(HaveOccurred())

		Expect(got1).To(Equal(got2))
	})
})
