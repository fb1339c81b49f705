package timeaccounting

import (
	"context"

	apperrors "github.com/obsdb/odb/internal/errors"
	"github.com/obsdb/odb/pkg/metrics"
	"github.com/obsdb/odb/pkg/odbtype"
	"github.com/obsdb/odb/pkg/recorder"
)

// CorrectionOp is the sign of a manual TimeCharge correction (spec.md
// §4.H).
type CorrectionOp string

const (
	CorrectionAdd      CorrectionOp = "ADD"
	CorrectionSubtract CorrectionOp = "SUBTRACT"
)

// Correction is one manual adjustment to a visit's post-discount totals
// (spec.md §4.H, §6 addTimeChargeCorrection).
type Correction struct {
	ChargeClass odbtype.ChargeClass
	Op          CorrectionOp
	Amount      odbtype.TimeSpan
	User        string
	Comment     string
}

// NewCorrection validates and builds a Correction. Individual amounts
// are capped at 365 days (spec.md §4.H, §6); odbtype.MaxSpan is that
// same 365-day ceiling, reused here rather than redeclared.
func NewCorrection(chargeClass odbtype.ChargeClass, op CorrectionOp, amount odbtype.TimeSpan, user, comment string) (Correction, error) {
	if amount.Cmp(odbtype.MaxSpan) > 0 {
		return Correction{}, apperrors.InvalidArgument("correction amount must not exceed 365 days")
	}
	if op != CorrectionAdd && op != CorrectionSubtract {
		return Correction{}, apperrors.InvalidArgument("correction op must be ADD or SUBTRACT")
	}
	return Correction{ChargeClass: chargeClass, Op: op, Amount: amount, User: user, Comment: comment}, nil
}

// Invoice is TimeCharge.Invoice of spec.md §3: executionTime, the
// discounts and corrections applied to it, and the resulting
// finalCharge.
type Invoice struct {
	ExecutionTime odbtype.CategorizedTime
	Discounts     []DiscountEntry
	Corrections   []Correction
	FinalCharge   odbtype.CategorizedTime
}

// BuildInvoiceInput bundles everything BuildInvoice needs beyond the
// raw event stream: the per-night twilight windows the visit's charged
// time may span, any datasets whose QA has failed, and manual
// corrections already on file for the visit.
type BuildInvoiceInput struct {
	VisitID     odbtype.VisitID
	Events      []recorder.ExecutionEvent
	Nights      []NightWindow
	FailedData  []FailedDataset
	Corrections []Correction
}

// BuildInvoice runs the full spec.md §4.H pipeline: fold events into a
// State, apply the Daylight/NoData/QA-failed discounts, then apply
// corrections in insertion order to produce the final invoice.
func (e *Engine) BuildInvoice(ctx context.Context, in BuildInvoiceInput) (Invoice, error) {
	timer := metrics.NewTimer()
	defer timer.RecordInvoiceBuild()

	result, err := e.Fold(ctx, in.VisitID, in.Events)
	if err != nil {
		return Invoice{}, err
	}

	var discounts []DiscountEntry
	for _, night := range in.Nights {
		discounts = append(discounts, DaylightDiscount(result.State, night)...)
	}
	discounts = append(discounts, NoDataDiscount(result)...)
	discounts = append(discounts, QAFailedDiscount(result.State, in.FailedData)...)

	executionTime := result.State.Charge()
	current := executionTime.Minus(discountTotal(discounts))

	for _, c := range in.Corrections {
		switch c.Op {
		case CorrectionAdd:
			current = current.Plus(odbtype.Single(c.ChargeClass, c.Amount))
		case CorrectionSubtract:
			current = current.Minus(odbtype.Single(c.ChargeClass, c.Amount))
		}
	}

	return Invoice{
		ExecutionTime: executionTime,
		Discounts:     discounts,
		Corrections:   in.Corrections,
		FinalCharge:   current,
	}, nil
}
