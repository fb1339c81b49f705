package timeaccounting

import (
	"github.com/obsdb/odb/pkg/odbtype"
)

// DiscountCategory names the rule that produced a DiscountEntry
// (spec.md §4.H).
type DiscountCategory string

const (
	DiscountDaylight  DiscountCategory = "DAYLIGHT"
	DiscountNoData    DiscountCategory = "NO_DATA"
	DiscountQAFailed  DiscountCategory = "QA_FAILED"
)

// DiscountEntry is one line of TimeCharge.Invoice.discounts (spec.md
// §3).
type DiscountEntry struct {
	Category    DiscountCategory
	ChargeClass odbtype.ChargeClass
	Amount      odbtype.TimeSpan
	Comment     string
}

// discountTotal reduces a slice of DiscountEntry to the CategorizedTime
// subtracted from executionTime (spec.md §4.H invoice equation).
func discountTotal(entries []DiscountEntry) odbtype.CategorizedTime {
	total := odbtype.ZeroCategorizedTime()
	for _, d := range entries {
		total = total.Plus(odbtype.Single(d.ChargeClass, d.Amount))
	}
	return total
}

// NightWindow is the local twilight window for one night at a site:
// the period considered "night" (chargeable sky time), expressed in
// absolute instants so the caller resolves the nautical-vs-astronomical
// model externally (spec.md §4.H, §9 open question).
type NightWindow struct {
	Site  odbtype.Site
	Start odbtype.Timestamp
	End   odbtype.Timestamp
}

// night returns the window as a TimestampInterval.
func (w NightWindow) night() odbtype.TimestampInterval {
	return odbtype.NewInterval(w.Start, w.End)
}

// DaylightDiscount discounts the portion of any charged interval
// outside the site's local twilight window for that night (spec.md
// §4.H). Only the overlap of state with the complement of window.night()
// is discounted; its ChargeClass is the discounted entry's own class so
// the discount nets out against the class it displaced.
func DaylightDiscount(state State, window NightWindow) []DiscountEntry {
	outside := state.Excluding(window.night()).Charge()

	var entries []DiscountEntry
	for _, cc := range odbtype.ChargeClasses {
		amount := outside.Get(cc)
		if amount.IsZero() {
			continue
		}
		entries = append(entries, DiscountEntry{
			Category:    DiscountDaylight,
			ChargeClass: cc,
			Amount:      amount,
			Comment:     string(window.Site) + " daylight",
		})
	}
	return entries
}

// NoDataDiscount discounts the entire charged time of a visit whose
// state has no step-context entries despite at least one atom having
// been attempted — "pure session time with no datasets produced"
// (spec.md §4.H). A visit that never started a single atom (e.g. a bare
// engineering Start/Stop session) is not eligible: see DESIGN.md for
// why this distinction is necessary to match spec.md §8's E2E-4.
func NoDataDiscount(result FoldResult) []DiscountEntry {
	if !result.SawAnyAtomEvent {
		return nil
	}
	if len(result.State.AllAtoms()) > 0 {
		return nil
	}
	total := result.State.Charge()
	var entries []DiscountEntry
	for _, cc := range odbtype.ChargeClasses {
		amount := total.Get(cc)
		if amount.IsZero() {
			continue
		}
		entries = append(entries, DiscountEntry{
			Category:    DiscountNoData,
			ChargeClass: cc,
			Amount:      amount,
			Comment:     "visit produced no datasets",
		})
	}
	return entries
}

// FailedDataset names one dataset whose QA state is Fail, identifying
// the step it belongs to so the discount can locate the atom it must
// not split across (spec.md §4.H QA-failed rule).
type FailedDataset struct {
	StepID odbtype.StepID
}

// QAFailedDiscount discounts the minimal atom-spanning interval
// containing each failed dataset's step, never splitting an atom across
// the discounted/kept boundary (spec.md §4.H, uses
// PartitionOnAtomBoundary).
func QAFailedDiscount(state State, failed []FailedDataset) []DiscountEntry {
	var entries []DiscountEntry
	for _, f := range failed {
		stepInterval := intervalForStep(state, f.StepID)
		if stepInterval.IsEmpty() {
			continue
		}
		within, _ := state.PartitionOnAtomBoundary(stepInterval)
		charge := within.Charge()
		for _, cc := range odbtype.ChargeClasses {
			amount := charge.Get(cc)
			if amount.IsZero() {
				continue
			}
			entries = append(entries, DiscountEntry{
				Category:    DiscountQAFailed,
				ChargeClass: cc,
				Amount:      amount,
				Comment:     "dataset QA failed for step " + f.StepID.String(),
			})
		}
	}
	return entries
}

func intervalForStep(state State, stepID odbtype.StepID) odbtype.TimestampInterval {
	for _, e := range state.ToMap() {
		if e.Context.Step != nil && e.Context.Step.StepID == stepID {
			return e.Interval
		}
	}
	return odbtype.TimestampInterval{}
}
