package timeaccounting_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/obsdb/odb/pkg/odbtype"
	"github.com/obsdb/odb/pkg/timeaccounting"
)

func ts(sec int) odbtype.Timestamp {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return odbtype.TimestampFromTime(base.Add(time.Duration(sec) * time.Second))
}

func iv(start, end int) odbtype.TimestampInterval {
	return odbtype.NewInterval(ts(start), ts(end))
}

var _ = Describe("State", func() {
	visit := odbtype.NewVisitID()
	atomA := odbtype.NewAtomID()
	atomB := odbtype.NewAtomID()
	stepA := odbtype.NewStepID()
	stepB := odbtype.NewStepID()

	ctxProgram := timeaccounting.Context{VisitID: visit, ChargeClass: odbtype.ChargeProgram}
	ctxStepA := timeaccounting.Context{
		VisitID: visit, ChargeClass: odbtype.ChargeProgram,
		Step: &timeaccounting.StepContext{AtomID: atomA, StepID: stepA, ChargeClass: odbtype.ChargeProgram},
	}
	ctxStepB := timeaccounting.Context{
		VisitID: visit, ChargeClass: odbtype.ChargePartner,
		Step: &timeaccounting.StepContext{AtomID: atomB, StepID: stepB, ChargeClass: odbtype.ChargePartner},
	}

	buildState := func() timeaccounting.State {
		s := timeaccounting.Empty()
		s = s.Put(iv(0, 5), ctxStepA)
		s = s.Put(iv(5, 10), ctxProgram)
		s = s.Put(iv(10, 15), ctxStepB)
		return s
	}

	Describe("Put", func() {
		It("merges abutting entries with an equal context", func() {
			s := timeaccounting.Empty()
			s = s.Put(iv(0, 5), ctxProgram)
			s = s.Put(iv(5, 10), ctxProgram)
			entries := s.ToMap()
			Expect(entries).To(HaveLen(1))
			Expect(entries[0].Interval).To(Equal(iv(0, 10)))
		})

		It("keeps distinct contexts as separate entries", func() {
			s := buildState()
			Expect(s.ToMap()).To(HaveLen(3))
		})

		It("drops empty intervals", func() {
			s := timeaccounting.Empty().Put(iv(5, 5), ctxProgram)
			Expect(s.IsEmpty()).To(BeTrue())
		})
	})

	Describe("Until/From", func() {
		It("retains the boundary instant wholly on the From side", func() {
			s := buildState()
			until := s.Until(ts(5))
			from := s.From(ts(5))
			Expect(until.ToMap()).To(HaveLen(1))
			Expect(until.ToMap()[0].Interval).To(Equal(iv(0, 5)))
			Expect(from.ToMap()).To(HaveLen(2))
			Expect(from.ToMap()[0].Interval.Start).To(Equal(ts(5)))
		})

		It("satisfies until(t) ++ from(t) == state for an interior split", func() {
			s := buildState()
			t := ts(7)
			until := s.Until(t)
			from := s.From(t)
			recombined := append(append([]timeaccounting.Entry{}, until.ToMap()...), from.ToMap()...)
			Expect(totalDuration(recombined)).To(Equal(totalDuration(s.ToMap())))
		})
	})

	Describe("Between/Excluding", func() {
		It("partitions the state with no overlap", func() {
			s := buildState()
			window := iv(3, 12)
			between := s.Between(window)
			excluding := s.Excluding(window)
			Expect(totalDuration(between.ToMap()) + totalDuration(excluding.ToMap())).To(Equal(totalDuration(s.ToMap())))
			for _, e := range between.ToMap() {
				Expect(e.Interval.Overlaps(window) || window.Contains(e.Interval.Start)).To(BeTrue())
			}
		})

		It("returns the empty state for Between of an empty interval", func() {
			s := buildState()
			Expect(s.Between(odbtype.TimestampInterval{}).IsEmpty()).To(BeTrue())
		})
	})

	Describe("Charge", func() {
		It("sums durations per charge class", func() {
			s := buildState()
			charge := s.Charge()
			Expect(charge.Get(odbtype.ChargeProgram).Duration()).To(Equal(10 * time.Second))
			Expect(charge.Get(odbtype.ChargePartner).Duration()).To(Equal(5 * time.Second))
		})
	})

	Describe("PartitionOnAtomBoundary", func() {
		It("never splits an atom across the two halves", func() {
			s := timeaccounting.Empty()
			s = s.Put(iv(0, 5), ctxStepA)
			s = s.Put(iv(5, 8), timeaccounting.Context{
				VisitID: visit, ChargeClass: odbtype.ChargeProgram,
				Step: &timeaccounting.StepContext{AtomID: atomA, StepID: odbtype.NewStepID(), ChargeClass: odbtype.ChargeProgram},
			})
			s = s.Put(iv(8, 12), ctxStepB)

			within, outside := s.PartitionOnAtomBoundary(iv(1, 2))
			for _, e := range within.ToMap() {
				if e.Context.Step != nil {
					Expect(e.Context.Step.AtomID).To(Equal(atomA))
				}
			}
			for _, e := range outside.ToMap() {
				if e.Context.Step != nil {
					Expect(e.Context.Step.AtomID).ToNot(Equal(atomA))
				}
			}
		})
	})

	Describe("PartitionOnAtom", func() {
		It("splits entries by whether their step context names the atom", func() {
			s := buildState()
			withA, withoutA := s.PartitionOnAtom(atomA)
			Expect(withA.ToMap()).To(HaveLen(1))
			Expect(withoutA.ToMap()).To(HaveLen(2))
		})
	})
})

func totalDuration(entries []timeaccounting.Entry) time.Duration {
	var total time.Duration
	for _, e := range entries {
		total += e.Interval.Duration().Duration()
	}
	return total
}
