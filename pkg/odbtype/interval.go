package odbtype

import "fmt"

// TimestampInterval is a half-open interval [Start, End) of instants. A
// half-open representation is what lets TimeAccountingState's "boundary
// retained wholly by from" rule (spec.md §4.G, until/from) fall out of
// plain comparisons instead of special-cased edge handling.
type TimestampInterval struct {
	Start Timestamp
	End   Timestamp
}

// NewInterval builds [start, end); it panics if end is before start,
// since an inverted interval is a programmer error, not a domain one.
func NewInterval(start, end Timestamp) TimestampInterval {
	if end.Before(start) {
		panic(fmt.Sprintf("odbtype: inverted interval [%s, %s)", start, end))
	}
	return TimestampInterval{Start: start, End: end}
}

// IsEmpty reports whether the interval spans zero duration.
func (i TimestampInterval) IsEmpty() bool { return !i.Start.Before(i.End) }

// Duration returns End - Start.
func (i TimestampInterval) Duration() TimeSpan {
	if i.IsEmpty() {
		return ZeroSpan
	}
	return i.End.Sub(i.Start)
}

// Contains reports whether t falls within [Start, End).
func (i TimestampInterval) Contains(t Timestamp) bool {
	return !t.Before(i.Start) && t.Before(i.End)
}

// Overlaps reports whether i and other share any instant.
func (i TimestampInterval) Overlaps(other TimestampInterval) bool {
	if i.IsEmpty() || other.IsEmpty() {
		return false
	}
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

// Abuts reports whether i and other are disjoint but touch at a shared
// boundary (i.End == other.Start or other.End == i.Start).
func (i TimestampInterval) Abuts(other TimestampInterval) bool {
	if i.Overlaps(other) {
		return false
	}
	return i.End.Equal(other.Start) || other.End.Equal(i.Start)
}

// Span returns the smallest interval containing both i and other.
func (i TimestampInterval) Span(other TimestampInterval) TimestampInterval {
	if i.IsEmpty() {
		return other
	}
	if other.IsEmpty() {
		return i
	}
	start := i.Start
	if other.Start.Before(start) {
		start = other.Start
	}
	end := i.End
	if other.End.After(end) {
		end = other.End
	}
	return TimestampInterval{Start: start, End: end}
}

// Intersect returns the overlap of i and other, or an empty interval if
// they do not overlap.
func (i TimestampInterval) Intersect(other TimestampInterval) TimestampInterval {
	if !i.Overlaps(other) {
		return TimestampInterval{}
	}
	start := i.Start
	if other.Start.After(start) {
		start = other.Start
	}
	end := i.End
	if other.End.Before(end) {
		end = other.End
	}
	return TimestampInterval{Start: start, End: end}
}

func (i TimestampInterval) String() string {
	return fmt.Sprintf("[%s, %s)", i.Start, i.End)
}
