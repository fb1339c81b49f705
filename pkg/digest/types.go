// Package digest implements the ExecutionDigest content-addressed cache
// of spec.md §4.E: it resolves an observation's generator params and ITC
// result, hashes them together with the running commit, and either
// serves a cached digest or computes one by running the sequence
// generator, SmartGcal expansion, and time estimator end to end.
package digest

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"

	"github.com/obsdb/odb/pkg/odbtype"
)

// SetupTime is the fixed telescope setup overhead charged once per
// observation regardless of atom count (spec.md §3, ExecutionDigest).
type SetupTime struct {
	Full         odbtype.TimeSpan
	Reacquisition odbtype.TimeSpan
}

// SequenceDigest summarizes one of an ExecutionDigest's two sequences
// (spec.md §3: "a triple (observe-class, categorized planned time, set
// of offsets, atom count)").
type SequenceDigest struct {
	ObserveClass odbtype.ObserveClass
	PlannedTime  odbtype.CategorizedTime
	Offsets      []OffsetPair
	AtomCount    int
}

// OffsetPair is a (p, q) telescope offset pair, comparable so it can be
// deduplicated into a set.
type OffsetPair struct {
	P, Q odbtype.Angle
}

// ExecutionDigest is the generator's time-accounting summary for one
// observation (spec.md §3).
type ExecutionDigest struct {
	Setup       SetupTime
	Acquisition SequenceDigest
	Science     SequenceDigest
}

// DigestKey is the cache key of spec.md §4.E: programId, observationId,
// and the MD5 hash of the canonical input bytes.
type DigestKey struct {
	ProgramID      string
	ObservationID  string
	MD5Hash        [md5.Size]byte
}

func (k DigestKey) String() string {
	return fmt.Sprintf("%s/%s/%x", k.ProgramID, k.ObservationID, k.MD5Hash)
}

// HashInput is the canonical byte source hashed into a DigestKey
// (spec.md §6, "Wire formats": "little-endian concatenation of:
// observing-mode fingerprint bytes, exposure-time microseconds (8 bytes
// LE), exposure count (4 bytes LE), commit-hash bytes").
type HashInput struct {
	ModeFingerprint    []byte
	ExposureTimeMicros int64
	ExposureCount      int32
	CommitHash         []byte
}

// ComputeHash produces the MD5 digest of in's canonical little-endian
// byte encoding.
func ComputeHash(in HashInput) [md5.Size]byte {
	buf := make([]byte, 0, len(in.ModeFingerprint)+8+4+len(in.CommitHash))
	buf = append(buf, in.ModeFingerprint...)

	var timeBytes [8]byte
	binary.LittleEndian.PutUint64(timeBytes[:], uint64(in.ExposureTimeMicros))
	buf = append(buf, timeBytes[:]...)

	var countBytes [4]byte
	binary.LittleEndian.PutUint32(countBytes[:], uint32(in.ExposureCount))
	buf = append(buf, countBytes[:]...)

	buf = append(buf, in.CommitHash...)

	return md5.Sum(buf)
}
