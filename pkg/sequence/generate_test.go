package sequence_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/obsdb/odb/pkg/odbtype"
	"github.com/obsdb/odb/pkg/sequence"
	"github.com/obsdb/odb/pkg/smartgcal"
)

func validParams() sequence.GeneratorParams {
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
				GuideState:        sequence.GuideEnabled,
				CentralWavelength: odbtype.WavelengthFromNanometers(500.0),
				WavelengthDithers: []odbtype.Wavelength{
					odbtype.WavelengthFromNanometers(0),
					odbtype.WavelengthFromNanometers(5),
				},
				SpatialOffsets: []odbtype.Angle{
					odbtype.AngleFromArcsec(-15),
					odbtype.AngleFromArcsec(15),
				},
				CalType: smartgcal.CalArc,
			},
		},
		Integration: sequence.IntegrationTime{
			ExposureTime:  odbtype.SpanFromMicros(300_000_000),
			ExposureCount: 6,
		},
	}
}

var _ = Describe("Generate", func() {
	It("rejects an unsupported observing mode", func() {
		params := validParams()
		params.Mode.Kind = "UNKNOWN_MODE"
		_, err := sequence.Generate(params)
		Expect(err).To(HaveOccurred())
	})

	It("rejects a missing GmosLongSlit configuration", func() {
		params := validParams()
		params.Mode.GmosLongSlit = nil
		_, err := sequence.Generate(params)
		Expect(err).To(HaveOccurred())
	})

	It("rejects an empty wavelength dither list", func() {
		params := validParams()
		params.Mode.GmosLongSlit.WavelengthDithers = nil
		_, err := sequence.Generate(params)
		Expect(err).To(HaveOccurred())
	})

	It("rejects an empty spatial offset list", func() {
		params := validParams()
		params.Mode.GmosLongSlit.SpatialOffsets = nil
		_, err := sequence.Generate(params)
		Expect(err).To(HaveOccurred())
	})

	It("builds a fixed 3-step acquisition atom at declining ROI", func() {
		cfg, err := sequence.Generate(validParams())
		Expect(err).NotTo(HaveOccurred())

		atoms, err := cfg.Acquisition.Take(1)
		Expect(err).NotTo(HaveOccurred())
		Expect(atoms).To(HaveLen(1))
		Expect(atoms[0].Steps).To(HaveLen(3))
		for _, step := range atoms[0].Steps {
			Expect(step.ObserveClass).To(Equal(odbtype.ObserveClassAcquisition))
			Expect(step.Config.Kind()).To(Equal(sequence.KindScience))
		}
	})

	It("alternates science/gcal ordering by atom index parity", func() {
		cfg, err := sequence.Generate(validParams())
		Expect(err).NotTo(HaveOccurred())

		atoms, err := cfg.Science.Take(4)
		Expect(err).NotTo(HaveOccurred())
		Expect(atoms).To(HaveLen(4))

		Expect(atoms[0].Steps[0].Config.Kind()).To(Equal(sequence.KindScience))
		Expect(atoms[0].Steps[1].Config.Kind()).To(Equal(sequence.KindSmartGcal))

		Expect(atoms[1].Steps[0].Config.Kind()).To(Equal(sequence.KindSmartGcal))
		Expect(atoms[1].Steps[1].Config.Kind()).To(Equal(sequence.KindScience))
	})

	It("cycles the wavelength dither and spatial offset cross product", func() {
		cfg, err := sequence.Generate(validParams())
		Expect(err).NotTo(HaveOccurred())

		atoms, err := cfg.Science.Take(4)
		Expect(err).NotTo(HaveOccurred())

		atom0, err := cfg.Science.At(0)
		Expect(err).NotTo(HaveOccurred())
		atom4, err := cfg.Science.At(4)
		Expect(err).NotTo(HaveOccurred())
		Expect(atom4.Description).To(Equal(atom0.Description))
		Expect(atoms).To(HaveLen(4))
	})

	It("is a pure function of index: At and Take agree", func() {
		cfg, err := sequence.Generate(validParams())
		Expect(err).NotTo(HaveOccurred())

		atoms, err := cfg.Science.Take(3)
		Expect(err).NotTo(HaveOccurred())
		atom2, err := cfg.Science.At(2)
		Expect(err).NotTo(HaveOccurred())
		Expect(atoms[2]).To(Equal(atom2))
	})
})

var _ = Describe("ExpandSmartGcal", func() {
	arcKey := smartgcal.Key{
		Instrument: "GMOS-N",
		Disperser:  "B600",
		Filter:     "none",
		FPU:        "1.0arcsec",
		CalType:    smartgcal.CalArc,
	}

	keyFor := func(step sequence.ProtoStep, sg sequence.SmartGcalConfig) smartgcal.Key {
		return smartgcal.Key{
			Instrument: "GMOS-N",
			Disperser:  "B600",
			Filter:     "none",
			FPU:        "1.0arcsec",
			CalType:    sg.Type,
		}
	}

	It("replaces a SmartGcal placeholder with the oracle's resolved steps", func() {
		oracle := smartgcal.NewStaticOracle(map[smartgcal.Key][]smartgcal.GcalConfig{
			arcKey: {
				{Lamp: "CuAr", Filter: "none", Diffuser: "IR", Shutter: "OPEN", ExposureTime: odbtype.SpanFromMicros(1_000_000)},
			},
		})

		atom := sequence.ProtoAtom{
			Description:  "q -15.0″, λ 500.0 nm",
			SequenceType: odbtype.SequenceScience,
			Steps: []sequence.ProtoStep{
				{Config: sequence.ScienceConfig{}, ObserveClass: odbtype.ObserveClassScience},
				{Config: sequence.SmartGcalConfig{Type: smartgcal.CalArc}, ObserveClass: odbtype.ObserveClassPartnerCal},
			},
		}

		expanded, err := sequence.ExpandSmartGcal(context.Background(), oracle, atom, keyFor)
		Expect(err).NotTo(HaveOccurred())
		Expect(expanded.Steps).To(HaveLen(2))
		Expect(expanded.Steps[0].Config.Kind()).To(Equal(sequence.KindScience))
		Expect(expanded.Steps[1].Config.Kind()).To(Equal(sequence.KindGcal))
	})

	It("propagates MissingSmartGcalDef when no definition exists", func() {
		oracle := smartgcal.NewStaticOracle(nil)
		atom := sequence.ProtoAtom{
			Steps: []sequence.ProtoStep{
				{Config: sequence.SmartGcalConfig{Type: smartgcal.CalArc}},
			},
		}

		_, err := sequence.ExpandSmartGcal(context.Background(), oracle, atom, keyFor)
		Expect(err).To(HaveOccurred())
	})
})
