package odbtype

import "time"

// Timestamp is an instant truncated to microsecond precision, the unit
// in which the wire format (spec.md §6) and the MD5 digest key
// (spec.md §6, "exposure-time microseconds (8 bytes LE)") are expressed.
type Timestamp struct {
	t time.Time
}

// TimestampFromTime truncates t to microsecond precision.
func TimestampFromTime(t time.Time) Timestamp {
	return Timestamp{t: t.UTC().Truncate(time.Microsecond)}
}

func (ts Timestamp) Time() time.Time { return ts.t }

// Before, After, and Equal mirror time.Time's comparison trio.
func (ts Timestamp) Before(other Timestamp) bool { return ts.t.Before(other.t) }
func (ts Timestamp) After(other Timestamp) bool  { return ts.t.After(other.t) }
func (ts Timestamp) Equal(other Timestamp) bool  { return ts.t.Equal(other.t) }

// Add returns ts shifted forward by span.
func (ts Timestamp) Add(span TimeSpan) Timestamp {
	return TimestampFromTime(ts.t.Add(span.Duration()))
}

// Sub returns the span from other to ts. TimeSpan is non-negative, so a
// ts before other yields zero rather than a negative span (e.g. step
// duration = end.Sub(start) is meaningful only with end after start).
func (ts Timestamp) Sub(other Timestamp) TimeSpan {
	d := ts.t.Sub(other.t)
	return SpanFromDuration(d)
}

func (ts Timestamp) String() string {
	return ts.t.Format(time.RFC3339Nano)
}
