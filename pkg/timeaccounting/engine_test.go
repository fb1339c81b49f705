package timeaccounting_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	apperrors "github.com/obsdb/odb/internal/errors"
	"github.com/obsdb/odb/pkg/odbtype"
	"github.com/obsdb/odb/pkg/recorder"
	"github.com/obsdb/odb/pkg/timeaccounting"
)

// fakeClassifier answers ClassifyStep from an in-memory map, standing in
// for a database-backed RecorderClassifier in these engine tests.
type fakeClassifier struct {
	byStep map[odbtype.StepID]struct {
		atom  odbtype.AtomID
		class odbtype.ChargeClass
	}
}

func newFakeClassifier() *fakeClassifier {
	return &fakeClassifier{byStep: map[odbtype.StepID]struct {
		atom  odbtype.AtomID
		class odbtype.ChargeClass
	}{}}
}

func (f *fakeClassifier) add(step odbtype.StepID, atom odbtype.AtomID, class odbtype.ChargeClass) {
	f.byStep[step] = struct {
		atom  odbtype.AtomID
		class odbtype.ChargeClass
	}{atom, class}
}

func (f *fakeClassifier) ClassifyStep(_ context.Context, stepID odbtype.StepID) (odbtype.AtomID, odbtype.ChargeClass, error) {
	v, ok := f.byStep[stepID]
	if !ok {
		return odbtype.AtomID{}, "", apperrors.NotFound("step", stepID.String())
	}
	return v.atom, v.class, nil
}

var _ = Describe("Engine", func() {
	var visit odbtype.VisitID

	BeforeEach(func() {
		visit = odbtype.NewVisitID()
	})

	It("charges nothing for a visit with no events (E2E-3)", func() {
		engine := timeaccounting.NewEngine(newFakeClassifier())
		invoice, err := engine.BuildInvoice(context.Background(), timeaccounting.BuildInvoiceInput{
			VisitID: visit,
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(invoice.ExecutionTime.Total().IsZero()).To(BeTrue())
		Expect(invoice.Discounts).To(BeEmpty())
		Expect(invoice.FinalCharge.Total().IsZero()).To(BeTrue())
	})

	It("charges a simple Start/Stop session to Program with no discount (E2E-4)", func() {
		engine := timeaccounting.NewEngine(newFakeClassifier())
		events := []recorder.ExecutionEvent{
			recorder.NewSequenceEvent(visit, ts(0), recorder.SequenceStart),
			recorder.NewSequenceEvent(visit, ts(10), recorder.SequenceStop),
		}
		invoice, err := engine.BuildInvoice(context.Background(), timeaccounting.BuildInvoiceInput{
			VisitID: visit,
			Events:  events,
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(invoice.ExecutionTime.Get(odbtype.ChargeProgram).Duration()).To(Equal(10 * time.Second))
		Expect(invoice.Discounts).To(BeEmpty())
		Expect(invoice.FinalCharge.Get(odbtype.ChargeProgram).Duration()).To(Equal(10 * time.Second))
	})

	It("discounts the portion of a charge outside the twilight window (E2E-5)", func() {
		engine := timeaccounting.NewEngine(newFakeClassifier())
		events := []recorder.ExecutionEvent{
			recorder.NewSequenceEvent(visit, ts(-1), recorder.SequenceStart),
			recorder.NewSequenceEvent(visit, ts(1), recorder.SequenceStop),
		}
		night := timeaccounting.NightWindow{Site: odbtype.SiteNorth, Start: ts(0), End: ts(100)}
		invoice, err := engine.BuildInvoice(context.Background(), timeaccounting.BuildInvoiceInput{
			VisitID: visit,
			Events:  events,
			Nights:  []timeaccounting.NightWindow{night},
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(invoice.ExecutionTime.Get(odbtype.ChargeProgram).Duration()).To(Equal(2 * time.Second))
		Expect(invoice.Discounts).To(HaveLen(1))
		Expect(invoice.Discounts[0].Category).To(Equal(timeaccounting.DiscountDaylight))
		Expect(invoice.Discounts[0].Amount.Duration()).To(Equal(1 * time.Second))
		Expect(invoice.FinalCharge.Get(odbtype.ChargeProgram).Duration()).To(Equal(1 * time.Second))
	})

	It("discounts the full atom-spanning interval for a QA-failed dataset (E2E-6)", func() {
		classifier := newFakeClassifier()
		atom1 := odbtype.NewAtomID()
		atom2 := odbtype.NewAtomID()
		step1 := odbtype.NewStepID()
		step2 := odbtype.NewStepID()
		classifier.add(step1, atom1, odbtype.ChargeProgram)
		classifier.add(step2, atom2, odbtype.ChargeProgram)

		engine := timeaccounting.NewEngine(classifier)
		events := []recorder.ExecutionEvent{
			recorder.NewAtomEvent(visit, ts(-1), atom1, recorder.AtomStageStart),
			recorder.NewStepEvent(visit, ts(0), step1, recorder.StepStageStart),
			recorder.NewStepEvent(visit, ts(3), step1, recorder.StepStageEnd),
			recorder.NewAtomEvent(visit, ts(4), atom1, recorder.AtomStageEnd),
			recorder.NewAtomEvent(visit, ts(5), atom2, recorder.AtomStageStart),
			recorder.NewStepEvent(visit, ts(6), step2, recorder.StepStageStart),
			recorder.NewStepEvent(visit, ts(11), step2, recorder.StepStageEnd),
			recorder.NewAtomEvent(visit, ts(12), atom2, recorder.AtomStageEnd),
		}
		invoice, err := engine.BuildInvoice(context.Background(), timeaccounting.BuildInvoiceInput{
			VisitID:    visit,
			Events:     events,
			FailedData: []timeaccounting.FailedDataset{{StepID: step2}},
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(invoice.ExecutionTime.Get(odbtype.ChargeProgram).Duration()).To(Equal(11 * time.Second))
		Expect(invoice.Discounts).To(HaveLen(1))
		Expect(invoice.Discounts[0].Amount.Duration()).To(Equal(5 * time.Second))
		Expect(invoice.FinalCharge.Get(odbtype.ChargeProgram).Duration()).To(Equal(6 * time.Second))
	})

	It("orders corrections after discounts and saturates at zero (E2E-7)", func() {
		engine := timeaccounting.NewEngine(newFakeClassifier())
		events := []recorder.ExecutionEvent{
			recorder.NewSequenceEvent(visit, ts(0), recorder.SequenceStart),
			recorder.NewSequenceEvent(visit, ts(10), recorder.SequenceStop),
		}
		correction, err := timeaccounting.NewCorrection(odbtype.ChargeProgram, timeaccounting.CorrectionSubtract, odbtype.SpanFromDuration(11*time.Second), "obs-user", "penalty")
		Expect(err).ToNot(HaveOccurred())

		invoice, err := engine.BuildInvoice(context.Background(), timeaccounting.BuildInvoiceInput{
			VisitID:     visit,
			Events:      events,
			Corrections: []timeaccounting.Correction{correction},
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(invoice.FinalCharge.Get(odbtype.ChargeProgram).IsZero()).To(BeTrue())

		_, err = timeaccounting.NewCorrection(odbtype.ChargeProgram, timeaccounting.CorrectionAdd, odbtype.SpanFromDuration(366*24*time.Hour), "obs-user", "too much")
		Expect(err).To(HaveOccurred())
	})

	It("returns an error, not a panic, for non-monotonic events (the recorder, not the engine, panics on disorder)", func() {
		// The engine itself returns an error rather than panicking on
		// disorder (it is a read path); the recorder's RecordEvent is
		// where spec.md §5's panic-on-disorder rule applies.
		engine := timeaccounting.NewEngine(newFakeClassifier())
		events := []recorder.ExecutionEvent{
			recorder.NewSequenceEvent(visit, ts(10), recorder.SequenceStart),
			recorder.NewSequenceEvent(visit, ts(10), recorder.SequenceStop),
		}
		_, err := engine.BuildInvoice(context.Background(), timeaccounting.BuildInvoiceInput{
			VisitID: visit,
			Events:  events,
		})
		Expect(err).To(HaveOccurred())
	})
})
