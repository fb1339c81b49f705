package timeestimator_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/obsdb/odb/pkg/odbtype"
	"github.com/obsdb/odb/pkg/timeestimator"
)

func baseConfig() timeestimator.InstrumentConfig {
	return timeestimator.InstrumentConfig{
		Grating:  "B600",
		Filter:   "none",
		FPU:      "1.0arcsec",
		ReadMode: "SLOW",
		Binning:  "1x1",
		ROI:      "FULL_FRAME",
	}
}

func baseDetector() timeestimator.DetectorConfig {
	return timeestimator.DetectorConfig{AmpCount: 1, AmpReadMode: timeestimator.AmpReadSlow}
}

var _ = Describe("Estimate", func() {
	It("has no config-change cost for the first step of a sequence", func() {
		input := timeestimator.StepInput{
			Config:       baseConfig(),
			ObserveClass: odbtype.ObserveClassScience,
			ExposureTime: odbtype.SpanFromDuration(60 * time.Second),
		}
		est := timeestimator.Estimate(nil, input, baseDetector())

		Expect(est.ConfigChange).To(BeNil())
		Expect(est.Detector.Get(odbtype.ChargeProgram)).To(Equal(odbtype.SpanFromDuration(78 * time.Second)))
		Expect(est.Total).To(Equal(est.Detector))
	})

	It("charges zero config-change cost when nothing differs from the previous step", func() {
		prev := baseConfig()
		input := timeestimator.StepInput{
			Config:       baseConfig(),
			ObserveClass: odbtype.ObserveClassScience,
			ExposureTime: odbtype.SpanFromDuration(60 * time.Second),
		}
		est := timeestimator.Estimate(&prev, input, baseDetector())

		Expect(est.ConfigChange).NotTo(BeNil())
		Expect(est.ConfigChange.Total()).To(Equal(odbtype.ZeroSpan))
	})

	It("selects the grating change cost over a simultaneous filter change", func() {
		prev := baseConfig()
		next := baseConfig()
		next.Grating = "R400"
		next.Filter = "OG515"

		input := timeestimator.StepInput{
			Config:       next,
			ObserveClass: odbtype.ObserveClassScience,
			ExposureTime: odbtype.SpanFromDuration(60 * time.Second),
		}
		est := timeestimator.Estimate(&prev, input, baseDetector())

		Expect(est.ConfigChange.Total()).To(Equal(odbtype.SpanFromDuration(90 * time.Second)))
	})

	It("charges the linear offset-distance cost for a science dither", func() {
		prev := baseConfig()
		next := baseConfig()
		next.OffsetQ = odbtype.AngleFromArcsec(15)

		input := timeestimator.StepInput{
			Config:       next,
			ObserveClass: odbtype.ObserveClassScience,
			ExposureTime: odbtype.SpanFromDuration(60 * time.Second),
		}
		est := timeestimator.Estimate(&prev, input, baseDetector())

		expected := odbtype.SpanFromDuration(time.Duration((5.0+15.0*0.1)*float64(time.Second)))
		Expect(est.ConfigChange.Total()).To(Equal(expected))
	})

	It("attributes the config-change and detector cost to the step's charge class", func() {
		prev := baseConfig()
		next := baseConfig()
		next.Binning = "2x2"

		input := timeestimator.StepInput{
			Config:       next,
			ObserveClass: odbtype.ObserveClassPartnerCal,
			ExposureTime: odbtype.SpanFromDuration(10 * time.Second),
		}
		est := timeestimator.Estimate(&prev, input, baseDetector())

		Expect(est.ConfigChange.Get(odbtype.ChargePartner).IsZero()).To(BeFalse())
		Expect(est.ConfigChange.Get(odbtype.ChargeProgram).IsZero()).To(BeTrue())
		Expect(est.Total.Get(odbtype.ChargePartner)).To(Equal(est.ConfigChange.Total().Add(est.Detector.Total())))
	})

	It("halves readout cost in FAST amp mode and scales it down with binning", func() {
		input := timeestimator.StepInput{
			Config:       baseConfig(),
			ObserveClass: odbtype.ObserveClassScience,
			ExposureTime: odbtype.ZeroSpan,
		}
		slow := timeestimator.Estimate(nil, input, timeestimator.DetectorConfig{AmpCount: 1, AmpReadMode: timeestimator.AmpReadSlow})

		binned := baseConfig()
		binned.Binning = "2x2"
		input.Config = binned
		fast := timeestimator.Estimate(nil, input, timeestimator.DetectorConfig{AmpCount: 1, AmpReadMode: timeestimator.AmpReadFast})

		Expect(fast.Detector.Total().Cmp(slow.Detector.Total())).To(Equal(-1))
	})

	It("reduces readout cost for a smaller region of interest", func() {
		full := baseConfig()
		stamp := baseConfig()
		stamp.ROI = "CENTRAL_STAMP"

		fullInput := timeestimator.StepInput{Config: full, ObserveClass: odbtype.ObserveClassAcquisition, ExposureTime: odbtype.ZeroSpan}
		stampInput := timeestimator.StepInput{Config: stamp, ObserveClass: odbtype.ObserveClassAcquisition, ExposureTime: odbtype.ZeroSpan}

		fullEst := timeestimator.Estimate(nil, fullInput, baseDetector())
		stampEst := timeestimator.Estimate(nil, stampInput, baseDetector())

		Expect(stampEst.Detector.Total().Cmp(fullEst.Detector.Total())).To(Equal(-1))
	})

	It("is deterministic: equal inputs produce bit-equal output", func() {
		prev := baseConfig()
		input := timeestimator.StepInput{
			Config:       baseConfig(),
			ObserveClass: odbtype.ObserveClassScience,
			ExposureTime: odbtype.SpanFromDuration(42 * time.Second),
		}
		a := timeestimator.Estimate(&prev, input, baseDetector())
		b := timeestimator.Estimate(&prev, input, baseDetector())
		Expect(a).To(Equal(b))
	})
})
