package odbtype_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/obsdb/odb/pkg/odbtype"
)

func ts(sec int) odbtype.Timestamp {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return odbtype.TimestampFromTime(base.Add(time.Duration(sec) * time.Second))
}

var _ = Describe("TimestampInterval", func() {
	Describe("Contains", func() {
		DescribeTable("half-open semantics",
			func(start, end, probe int, expected bool) {
				iv := odbtype.NewInterval(ts(start), ts(end))
				Expect(iv.Contains(ts(probe))).To(Equal(expected))
			},
			Entry("start boundary is inclusive", 0, 10, 0, true),
			Entry("end boundary is exclusive", 0, 10, 10, false),
			Entry("interior point is contained", 0, 10, 5, true),
			Entry("point before start is excluded", 0, 10, -1, false),
		)
	})

	Describe("Overlaps", func() {
		DescribeTable("overlap detection",
			func(aStart, aEnd, bStart, bEnd int, expected bool) {
				a := odbtype.NewInterval(ts(aStart), ts(aEnd))
				b := odbtype.NewInterval(ts(bStart), ts(bEnd))
				Expect(a.Overlaps(b)).To(Equal(expected))
			},
			Entry("disjoint intervals do not overlap", 0, 5, 10, 15, false),
			Entry("abutting intervals do not overlap", 0, 5, 5, 10, false),
			Entry("overlapping intervals overlap", 0, 10, 5, 15, true),
			Entry("identical intervals overlap", 0, 10, 0, 10, true),
		)
	})

	Describe("Abuts", func() {
		It("is true when one interval's end equals the other's start", func() {
			a := odbtype.NewInterval(ts(0), ts(5))
			b := odbtype.NewInterval(ts(5), ts(10))
			Expect(a.Abuts(b)).To(BeTrue())
			Expect(b.Abuts(a)).To(BeTrue())
		})

		It("is false for overlapping intervals", func() {
			a := odbtype.NewInterval(ts(0), ts(10))
			b := odbtype.NewInterval(ts(5), ts(15))
			Expect(a.Abuts(b)).To(BeFalse())
		})
	})

	Describe("Span", func() {
		It("returns the smallest interval containing both", func() {
			a := odbtype.NewInterval(ts(0), ts(5))
			b := odbtype.NewInterval(ts(10), ts(15))
			span := a.Span(b)
			Expect(span.Start).To(Equal(ts(0)))
			Expect(span.End).To(Equal(ts(15)))
		})
	})

	Describe("Intersect", func() {
		It("returns the empty interval when disjoint", func() {
			a := odbtype.NewInterval(ts(0), ts(5))
			b := odbtype.NewInterval(ts(10), ts(15))
			Expect(a.Intersect(b).IsEmpty()).To(BeTrue())
		})

		It("returns the overlapping region", func() {
			a := odbtype.NewInterval(ts(0), ts(10))
			b := odbtype.NewInterval(ts(5), ts(15))
			got := a.Intersect(b)
			Expect(got.Start).To(Equal(ts(5)))
			Expect(got.End).To(Equal(ts(10)))
		})
	})

	Describe("Duration", func() {
		It("computes End-Start", func() {
			iv := odbtype.NewInterval(ts(0), ts(10))
			Expect(iv.Duration().Seconds()).To(Equal(10.0))
		})
	})
})
