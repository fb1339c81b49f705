package digest_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/obsdb/odb/pkg/digest"
)

var _ = Describe("ComputeHash", func() {
	It("is deterministic for identical input", func() {
		in := digest.HashInput{
			ModeFingerprint:    []byte("GMOS_NORTH_LONG_SLIT"),
			ExposureTimeMicros: 300_000_000,
			ExposureCount:      6,
			CommitHash:         []byte("abc123"),
		}
		Expect(digest.ComputeHash(in)).To(Equal(digest.ComputeHash(in)))
	})

	It("differs when the exposure count changes", func() {
		base := digest.HashInput{
			ModeFingerprint:    []byte("GMOS_NORTH_LONG_SLIT"),
			ExposureTimeMicros: 300_000_000,
			ExposureCount:      6,
			CommitHash:         []byte("abc123"),
		}
		changed := base
		changed.ExposureCount = 7

		Expect(digest.ComputeHash(base)).NotTo(Equal(digest.ComputeHash(changed)))
	})

	It("differs when the commit hash changes", func() {
		base := digest.HashInput{
			ModeFingerprint:    []byte("GMOS_NORTH_LONG_SLIT"),
			ExposureTimeMicros: 300_000_000,
			ExposureCount:      6,
			CommitHash:         []byte("abc123"),
		}
		changed := base
		changed.CommitHash = []byte("def456")

		Expect(digest.ComputeHash(base)).NotTo(Equal(digest.ComputeHash(changed)))
	})
})
