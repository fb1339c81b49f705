package sequence

import (
	"math"

	apperrors "github.com/obsdb/odb/internal/errors"
)

// MaxAtomCount mirrors the Scala source's Int.MaxValue overflow check
// (spec.md §4.C, "SequenceTooLong if atom count exceeds Int.MaxValue").
const MaxAtomCount = math.MaxInt32

// AtomAt produces the atom at a given zero-based index. It must be a
// pure, deterministic function of index (spec.md §4.C: "pure/
// deterministic in their input"); generators never retain state across
// calls.
type AtomAt func(index int) (ProtoAtom, error)

// Stream is a lazy, conceptually infinite sequence of atoms realized
// only on demand — "Ownership of lazy sequences" (spec.md §9): no
// unbounded buffer is ever materialized, only the slice Take produces.
type Stream struct {
	next AtomAt
}

// NewStream wraps a generator function as a Stream.
func NewStream(next AtomAt) Stream {
	return Stream{next: next}
}

// Take realizes the first n atoms. n=0 returns an empty, non-nil slice.
func (s Stream) Take(n int) ([]ProtoAtom, error) {
	if n < 0 {
		return nil, apperrors.InvalidArgument("take count must be non-negative")
	}
	if n > MaxAtomCount {
		return nil, apperrors.SequenceTooLong()
	}
	atoms := make([]ProtoAtom, 0, n)
	for i := 0; i < n; i++ {
		atom, err := s.next(i)
		if err != nil {
			return nil, err
		}
		atoms = append(atoms, atom)
	}
	return atoms, nil
}

// At realizes a single atom at index, without materializing any
// others — used by config(futureLimit) to peek ahead (spec.md §6).
func (s Stream) At(index int) (ProtoAtom, error) {
	return s.next(index)
}
