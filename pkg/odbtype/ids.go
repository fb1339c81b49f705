// Package odbtype implements the core value algebra shared by every ODB
// component: identifiers, physical quantities, time, and coordinates.
// Nothing in this package touches a database or a network.
package odbtype

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// GID is a compact, totally ordered, string-roundtrippable entity
// identifier of the form "<prefix>-<hex>", e.g. "o-1a2b3c" for an
// Observation. GIDs order by prefix, then by numeric value.
type GID struct {
	prefix string
	value  uint64
}

// NewGID builds a GID from a prefix and a non-negative counter value.
func NewGID(prefix string, value uint64) GID {
	return GID{prefix: prefix, value: value}
}

func (g GID) String() string {
	return fmt.Sprintf("%s-%x", g.prefix, g.value)
}

// Prefix returns the GID's entity-kind tag, e.g. "o" for Observation.
func (g GID) Prefix() string { return g.prefix }

// IsZero reports whether g is the zero value.
func (g GID) IsZero() bool { return g.prefix == "" && g.value == 0 }

// Compare returns -1, 0, or 1 as g orders before, equal to, or after other.
func (g GID) Compare(other GID) int {
	if c := strings.Compare(g.prefix, other.prefix); c != 0 {
		return c
	}
	switch {
	case g.value < other.value:
		return -1
	case g.value > other.value:
		return 1
	default:
		return 0
	}
}

// ParseGID parses the "<prefix>-<hex>" form produced by String.
func ParseGID(s string) (GID, error) {
	prefix, hex, ok := strings.Cut(s, "-")
	if !ok || prefix == "" || hex == "" {
		return GID{}, fmt.Errorf("odbtype: invalid gid %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 64)
	if err != nil {
		return GID{}, fmt.Errorf("odbtype: invalid gid %q: %w", s, err)
	}
	return GID{prefix: prefix, value: v}, nil
}

// ObservationID, ProgramID, and DatasetID are gid-style entity
// identifiers per spec.md §3 ("entity ids ... are compact gid-style
// tags").
type (
	ObservationID GID
	ProgramID     GID
)

func (o ObservationID) String() string { return GID(o).String() }
func (p ProgramID) String() string     { return GID(p).String() }

// UUIDID is a v4-UUID-backed identifier used for Atom, Step, and Visit
// per spec.md §3 ("UUID-based ids ... are v4").
type UUIDID struct {
	id uuid.UUID
}

// NewUUIDID mints a fresh v4 identifier.
func NewUUIDID() UUIDID { return UUIDID{id: uuid.New()} }

// ParseUUIDID parses the canonical UUID string form.
func ParseUUIDID(s string) (UUIDID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return UUIDID{}, fmt.Errorf("odbtype: invalid uuid id %q: %w", s, err)
	}
	return UUIDID{id: id}, nil
}

func (u UUIDID) String() string { return u.id.String() }
func (u UUIDID) IsZero() bool   { return u.id == uuid.Nil }

// Compare orders two UUIDID values by their canonical string form, which
// is a stable (if not chronological) total order.
func (u UUIDID) Compare(other UUIDID) int {
	return strings.Compare(u.id.String(), other.id.String())
}

type (
	AtomID  UUIDID
	StepID  UUIDID
	VisitID UUIDID
)

func NewAtomID() AtomID   { return AtomID(NewUUIDID()) }
func NewStepID() StepID   { return StepID(NewUUIDID()) }
func NewVisitID() VisitID { return VisitID(NewUUIDID()) }

func (a AtomID) String() string  { return UUIDID(a).String() }
func (s StepID) String() string  { return UUIDID(s).String() }
func (v VisitID) String() string { return UUIDID(v).String() }

func (a AtomID) IsZero() bool  { return UUIDID(a).IsZero() }
func (s StepID) IsZero() bool  { return UUIDID(s).IsZero() }
func (v VisitID) IsZero() bool { return UUIDID(v).IsZero() }

func ParseAtomID(s string) (AtomID, error) {
	u, err := ParseUUIDID(s)
	return AtomID(u), err
}

func ParseStepID(s string) (StepID, error) {
	u, err := ParseUUIDID(s)
	return StepID(u), err
}

func ParseVisitID(s string) (VisitID, error) {
	u, err := ParseUUIDID(s)
	return VisitID(u), err
}

// DatasetID is a gid-style identifier for a dataset (distinct from its
// FITS filename, which is derived separately — see Dataset.Filename).
type DatasetID GID

func (d DatasetID) String() string { return GID(d).String() }
