package odbtype

import (
	"fmt"
	"time"
)

// TimeSpan is a non-negative duration stored as an exact microsecond
// count. Non-negativity is enforced at construction; callers that need
// a signed delta should work in raw microseconds and re-wrap.
type TimeSpan struct {
	micros int64
}

// ZeroSpan is the additive identity.
var ZeroSpan = TimeSpan{}

// SpanFromMicros constructs a TimeSpan, clamping negative input to zero.
func SpanFromMicros(micros int64) TimeSpan {
	if micros < 0 {
		micros = 0
	}
	return TimeSpan{micros: micros}
}

// SpanFromDuration constructs a TimeSpan from a time.Duration, clamping
// negative durations to zero.
func SpanFromDuration(d time.Duration) TimeSpan {
	return SpanFromMicros(d.Microseconds())
}

func (t TimeSpan) Micros() int64 { return t.micros }

func (t TimeSpan) Duration() time.Duration { return time.Duration(t.micros) * time.Microsecond }

func (t TimeSpan) Seconds() float64 { return float64(t.micros) / 1e6 }

// Add returns t+other; the sum is always non-negative since both
// operands are.
func (t TimeSpan) Add(other TimeSpan) TimeSpan {
	return TimeSpan{micros: t.micros + other.micros}
}

// Sub returns max(0, t-other), i.e. saturating subtraction.
func (t TimeSpan) Sub(other TimeSpan) TimeSpan {
	return SpanFromMicros(t.micros - other.micros)
}

// Cmp returns -1, 0, 1 as t orders before, equal to, or after other.
func (t TimeSpan) Cmp(other TimeSpan) int {
	switch {
	case t.micros < other.micros:
		return -1
	case t.micros > other.micros:
		return 1
	default:
		return 0
	}
}

func (t TimeSpan) IsZero() bool { return t.micros == 0 }

func (t TimeSpan) String() string {
	return fmt.Sprintf("%.3fs", t.Seconds())
}

// MaxSpan is the saturation ceiling applied to any single TimeSpan
// accumulation (spec.md §3, CategorizedTime: "saturates at a declared
// maximum"). 365 days mirrors the correction cap of spec.md §4.H.
var MaxSpan = SpanFromDuration(365 * 24 * time.Hour)

// AddSaturating returns t+other, clamped to MaxSpan.
func (t TimeSpan) AddSaturating(other TimeSpan) TimeSpan {
	sum := t.Add(other)
	if sum.Cmp(MaxSpan) > 0 {
		return MaxSpan
	}
	return sum
}
