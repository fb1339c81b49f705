package smartgcal_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/obsdb/odb/internal/errors"
	"github.com/obsdb/odb/pkg/odbtype"
	"github.com/obsdb/odb/pkg/smartgcal"
)

var _ = Describe("StaticOracle", func() {
	key := smartgcal.Key{Instrument: "GMOS-N", Disperser: "B600", Filter: "none", FPU: "1.0arcsec", CalType: smartgcal.CalFlat}
	cfg := smartgcal.GcalConfig{Lamp: "QH", Filter: "none", Diffuser: "VISIBLE", Shutter: "OPEN", ExposureTime: odbtype.SpanFromMicros(2_000_000)}

	It("resolves a known key to its defined steps", func() {
		oracle := smartgcal.NewStaticOracle(map[smartgcal.Key][]smartgcal.GcalConfig{key: {cfg}})
		got, err := oracle.Lookup(context.Background(), key)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal([]smartgcal.GcalConfig{cfg}))
	})

	It("returns MissingDef for an unknown key", func() {
		oracle := smartgcal.NewStaticOracle(nil)
		_, err := oracle.Lookup(context.Background(), key)
		Expect(err).To(HaveOccurred())
		Expect(errors.IsType(err, errors.ErrorTypeInvalidData)).To(BeTrue())
	})

	It("defensively copies the definition table on construction", func() {
		defs := map[smartgcal.Key][]smartgcal.GcalConfig{key: {cfg}}
		oracle := smartgcal.NewStaticOracle(defs)
		defs[key][0].Lamp = "mutated"

		got, err := oracle.Lookup(context.Background(), key)
		Expect(err).NotTo(HaveOccurred())
		Expect(got[0].Lamp).To(Equal("QH"))
	})

	It("defensively copies the result slice on lookup", func() {
		oracle := smartgcal.NewStaticOracle(map[smartgcal.Key][]smartgcal.GcalConfig{key: {cfg}})
		got, err := oracle.Lookup(context.Background(), key)
		Expect(err).NotTo(HaveOccurred())
		got[0].Lamp = "mutated"

		got2, err := oracle.Lookup(context.Background(), key)
		Expect(err).NotTo(HaveOccurred())
		Expect(got2[0].Lamp).To(Equal("QH"))
	})
})
