package odbtype_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/obsdb/odb/pkg/odbtype"
)

var _ = Describe("CategorizedTime", func() {
	Describe("Plus", func() {
		It("sums element-wise per charge class", func() {
			a := odbtype.Single(odbtype.ChargeProgram, odbtype.SpanFromDuration(10*time.Second))
			b := odbtype.Single(odbtype.ChargeProgram, odbtype.SpanFromDuration(5*time.Second))
			sum := a.Plus(b)
			Expect(sum.Get(odbtype.ChargeProgram).Seconds()).To(Equal(15.0))
			Expect(sum.Get(odbtype.ChargePartner).Seconds()).To(Equal(0.0))
		})

		It("saturates at MaxSpan", func() {
			a := odbtype.Single(odbtype.ChargeProgram, odbtype.MaxSpan)
			b := odbtype.Single(odbtype.ChargeProgram, odbtype.SpanFromDuration(time.Hour))
			sum := a.Plus(b)
			Expect(sum.Get(odbtype.ChargeProgram)).To(Equal(odbtype.MaxSpan))
		})
	})

	Describe("Minus", func() {
		It("saturates at zero rather than going negative", func() {
			a := odbtype.Single(odbtype.ChargeProgram, odbtype.SpanFromDuration(5*time.Second))
			b := odbtype.Single(odbtype.ChargeProgram, odbtype.SpanFromDuration(10*time.Second))
			diff := a.Minus(b)
			Expect(diff.Get(odbtype.ChargeProgram).IsZero()).To(BeTrue())
		})
	})

	Describe("Total", func() {
		It("sums across all charge classes", func() {
			c := odbtype.NewCategorizedTime(map[odbtype.ChargeClass]odbtype.TimeSpan{
				odbtype.ChargeProgram: odbtype.SpanFromDuration(10 * time.Second),
				odbtype.ChargePartner: odbtype.SpanFromDuration(5 * time.Second),
			})
			Expect(c.Total().Seconds()).To(Equal(15.0))
		})
	})
})
