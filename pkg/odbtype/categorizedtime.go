package odbtype

// CategorizedTime maps each ChargeClass to a non-negative TimeSpan,
// summed element-wise and saturating at MaxSpan (spec.md §3).
type CategorizedTime struct {
	byClass map[ChargeClass]TimeSpan
}

// NewCategorizedTime builds a CategorizedTime from explicit per-class
// values; classes not present default to zero.
func NewCategorizedTime(byClass map[ChargeClass]TimeSpan) CategorizedTime {
	c := CategorizedTime{byClass: make(map[ChargeClass]TimeSpan, len(ChargeClasses))}
	for _, cc := range ChargeClasses {
		if v, ok := byClass[cc]; ok {
			c.byClass[cc] = v
		} else {
			c.byClass[cc] = ZeroSpan
		}
	}
	return c
}

// ZeroCategorizedTime is the additive identity.
func ZeroCategorizedTime() CategorizedTime {
	return NewCategorizedTime(nil)
}

// Single builds a CategorizedTime with all of span attributed to one
// class.
func Single(cc ChargeClass, span TimeSpan) CategorizedTime {
	return NewCategorizedTime(map[ChargeClass]TimeSpan{cc: span})
}

// Get returns the span charged to cc.
func (c CategorizedTime) Get(cc ChargeClass) TimeSpan {
	if c.byClass == nil {
		return ZeroSpan
	}
	return c.byClass[cc]
}

// Plus returns the element-wise, saturating sum of c and other.
func (c CategorizedTime) Plus(other CategorizedTime) CategorizedTime {
	out := make(map[ChargeClass]TimeSpan, len(ChargeClasses))
	for _, cc := range ChargeClasses {
		out[cc] = c.Get(cc).AddSaturating(other.Get(cc))
	}
	return NewCategorizedTime(out)
}

// Minus returns the element-wise, saturating-at-zero difference c-other.
func (c CategorizedTime) Minus(other CategorizedTime) CategorizedTime {
	out := make(map[ChargeClass]TimeSpan, len(ChargeClasses))
	for _, cc := range ChargeClasses {
		out[cc] = c.Get(cc).Sub(other.Get(cc))
	}
	return NewCategorizedTime(out)
}

// Total returns the sum of every class's span.
func (c CategorizedTime) Total() TimeSpan {
	total := ZeroSpan
	for _, cc := range ChargeClasses {
		total = total.AddSaturating(c.Get(cc))
	}
	return total
}

// Equal reports whether c and other carry the same value per class.
func (c CategorizedTime) Equal(other CategorizedTime) bool {
	for _, cc := range ChargeClasses {
		if c.Get(cc) != other.Get(cc) {
			return false
		}
	}
	return true
}

// ForEach calls fn for every ChargeClass in stable order.
func (c CategorizedTime) ForEach(fn func(ChargeClass, TimeSpan)) {
	for _, cc := range ChargeClasses {
		fn(cc, c.Get(cc))
	}
}
