// Package timeaccounting implements the TimeAccountingState interval
// algebra (spec.md §4.G) and the TimeAccountingEngine that folds an
// event stream into a charged invoice (spec.md §4.H).
package timeaccounting

import (
	"sort"

	"github.com/obsdb/odb/pkg/odbtype"
)

// StepContext is the optional per-step detail a charged interval can
// carry (spec.md §3, TimeAccountingState core invariant).
type StepContext struct {
	AtomID      odbtype.AtomID
	StepID      odbtype.StepID
	ChargeClass odbtype.ChargeClass
}

// Context is the label attached to every charged interval. Step is nil
// for visit-level time with no associated step (e.g. a gap-fill entry).
type Context struct {
	VisitID     odbtype.VisitID
	ChargeClass odbtype.ChargeClass
	Step        *StepContext
}

// Equal reports whether c and other carry the same value — the
// condition under which two abutting entries are merged (spec.md §3,
// "such pairs are always merged").
func (c Context) Equal(other Context) bool {
	if c.VisitID != other.VisitID || c.ChargeClass != other.ChargeClass {
		return false
	}
	if (c.Step == nil) != (other.Step == nil) {
		return false
	}
	if c.Step == nil {
		return true
	}
	return *c.Step == *other.Step
}

// Entry is one (interval, Context) pair of a TimeAccountingState.
type Entry struct {
	Interval odbtype.TimestampInterval
	Context  Context
}

// State is the ordered mapping from non-overlapping, non-empty
// TimestampInterval to Context described in spec.md §3. The zero value
// is the empty state.
type State struct {
	entries []Entry
}

// Empty returns the empty TimeAccountingState.
func Empty() State { return State{} }

// ToMap returns the state's entries in start-time order — always
// pairwise disjoint, with no empty intervals and no two abutting
// entries sharing an equal Context (spec.md §8 invariant 1).
func (s State) ToMap() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// IsEmpty reports whether the state carries no entries.
func (s State) IsEmpty() bool { return len(s.entries) == 0 }

// Put appends (interval, ctx) to the state. Put assumes interval starts
// at or after every existing entry's end — the shape produced by the
// engine's left-to-right fold — and merges with the immediately
// preceding entry when contexts are equal and the intervals abut or
// overlap, preserving the "no two abutting equal-context entries"
// invariant.
func (s State) Put(interval odbtype.TimestampInterval, ctx Context) State {
	if interval.IsEmpty() {
		return s
	}
	if len(s.entries) == 0 {
		return State{entries: []Entry{{Interval: interval, Context: ctx}}}
	}
	last := s.entries[len(s.entries)-1]
	if last.Context.Equal(ctx) && !last.Interval.End.Before(interval.Start) {
		merged := make([]Entry, len(s.entries))
		copy(merged, s.entries)
		merged[len(merged)-1] = Entry{Interval: last.Interval.Span(interval), Context: ctx}
		return State{entries: merged}
	}
	out := make([]Entry, len(s.entries), len(s.entries)+1)
	copy(out, s.entries)
	out = append(out, Entry{Interval: interval, Context: ctx})
	return State{entries: out}
}

// Until splits the state at t, retaining the portion ending at or
// before t; an entry straddling t is cut, keeping its [start, t) part.
// (spec.md §4.G, "interval on the t boundary retained wholly by from").
func (s State) Until(t odbtype.Timestamp) State {
	var out []Entry
	for _, e := range s.entries {
		if !e.Interval.Start.Before(t) {
			break
		}
		if e.Interval.End.After(t) {
			out = append(out, Entry{Interval: odbtype.NewInterval(e.Interval.Start, t), Context: e.Context})
			break
		}
		out = append(out, e)
	}
	return State{entries: out}
}

// From splits the state at t, retaining the portion from t onward; an
// entry straddling t keeps its [t, end) part, i.e. the boundary itself
// belongs wholly to From (spec.md §4.G).
func (s State) From(t odbtype.Timestamp) State {
	var out []Entry
	for _, e := range s.entries {
		if e.Interval.End.Before(t) || e.Interval.End.Equal(t) {
			continue
		}
		if e.Interval.Start.Before(t) {
			out = append(out, Entry{Interval: odbtype.NewInterval(t, e.Interval.End), Context: e.Context})
			continue
		}
		out = append(out, e)
	}
	return State{entries: out}
}

// Between returns the portion of the state within i: From(i.Start).
// Until(i.End). Returns the empty state if i is empty (spec.md §4.G).
func (s State) Between(i odbtype.TimestampInterval) State {
	if i.IsEmpty() {
		return Empty()
	}
	return s.From(i.Start).Until(i.End)
}

// Excluding returns the portion of the state outside i: Until(i.Start)
// ++ From(i.End). Between and Excluding partition the state (spec.md
// §4.G, §8 invariant 2).
func (s State) Excluding(i odbtype.TimestampInterval) State {
	if i.IsEmpty() {
		return s
	}
	left := s.Until(i.Start)
	right := s.From(i.End)
	return State{entries: append(append([]Entry{}, left.entries...), right.entries...)}
}

// Charge sums interval durations per ChargeClass across every entry
// (spec.md §4.G).
func (s State) Charge() odbtype.CategorizedTime {
	total := odbtype.ZeroCategorizedTime()
	for _, e := range s.entries {
		total = total.Plus(odbtype.Single(e.Context.ChargeClass, e.Interval.Duration()))
	}
	return total
}

// AllAtoms returns the distinct AtomIDs referenced by any entry's step
// context, in first-seen order (spec.md §4.G).
func (s State) AllAtoms() []odbtype.AtomID {
	seen := make(map[odbtype.AtomID]struct{})
	var out []odbtype.AtomID
	for _, e := range s.entries {
		if e.Context.Step == nil {
			continue
		}
		aid := e.Context.Step.AtomID
		if _, ok := seen[aid]; ok {
			continue
		}
		seen[aid] = struct{}{}
		out = append(out, aid)
	}
	return out
}

// AtomsIntersecting returns the distinct AtomIDs of entries overlapping
// i, in first-seen order (spec.md §4.G).
func (s State) AtomsIntersecting(i odbtype.TimestampInterval) []odbtype.AtomID {
	seen := make(map[odbtype.AtomID]struct{})
	var out []odbtype.AtomID
	for _, e := range s.entries {
		if e.Context.Step == nil || !e.Interval.Overlaps(i) {
			continue
		}
		aid := e.Context.Step.AtomID
		if _, ok := seen[aid]; ok {
			continue
		}
		seen[aid] = struct{}{}
		out = append(out, aid)
	}
	return out
}

// IntervalContaining returns the smallest interval spanning every entry
// whose step context names one of atoms. Returns the empty interval if
// atoms is empty or none match (spec.md §4.G).
func (s State) IntervalContaining(atoms []odbtype.AtomID) odbtype.TimestampInterval {
	want := make(map[odbtype.AtomID]struct{}, len(atoms))
	for _, a := range atoms {
		want[a] = struct{}{}
	}
	var span odbtype.TimestampInterval
	for _, e := range s.entries {
		if e.Context.Step == nil {
			continue
		}
		if _, ok := want[e.Context.Step.AtomID]; !ok {
			continue
		}
		span = span.Span(e.Interval)
	}
	return span
}

// PartitionOnAtomBoundary partitions the state on i, grown to cover any
// atom it intersects in full, so that no atom is ever split across the
// two returned halves (spec.md §4.G, §8 invariant 3). Per spec.md §9's
// open question, the widening is applied unconditionally — including
// when i intersects no atom at all, in which case IntervalContaining
// returns the empty interval and Span leaves i unchanged.
func (s State) PartitionOnAtomBoundary(i odbtype.TimestampInterval) (within, outside State) {
	widened := s.IntervalContaining(s.AtomsIntersecting(i)).Span(i)
	return s.Between(widened), s.Excluding(widened)
}

// PartitionOnAtom splits the state by whether each entry's step context
// names aid (spec.md §4.G).
func (s State) PartitionOnAtom(aid odbtype.AtomID) (withAtom, withoutAtom State) {
	var a, b []Entry
	for _, e := range s.entries {
		if e.Context.Step != nil && e.Context.Step.AtomID == aid {
			a = append(a, e)
		} else {
			b = append(b, e)
		}
	}
	return State{entries: a}, State{entries: b}
}

// FromEntries builds a State from a set of entries that are not
// necessarily ordered or merged, normalizing them as Put would. Intended
// for tests and for materializing a state read back from storage.
func FromEntries(entries []Entry) State {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Interval.Start.Before(sorted[j].Interval.Start)
	})
	s := Empty()
	for _, e := range sorted {
		s = s.Put(e.Interval, e.Context)
	}
	return s
}
