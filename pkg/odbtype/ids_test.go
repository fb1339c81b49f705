package odbtype_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/obsdb/odb/pkg/odbtype"
)

var _ = Describe("GID", func() {
	It("round-trips through String/ParseGID", func() {
		g := odbtype.NewGID("o", 0x2a)
		parsed, err := odbtype.ParseGID(g.String())
		Expect(err).NotTo(HaveOccurred())
		Expect(parsed).To(Equal(g))
		Expect(g.String()).To(Equal("o-2a"))
	})

	It("rejects malformed strings", func() {
		_, err := odbtype.ParseGID("not-a-valid-hex-gid")
		Expect(err).To(HaveOccurred())
	})

	It("orders lexically by prefix then value", func() {
		a := odbtype.NewGID("o", 1)
		b := odbtype.NewGID("o", 2)
		Expect(a.Compare(b)).To(Equal(-1))
		Expect(b.Compare(a)).To(Equal(1))
		Expect(a.Compare(a)).To(Equal(0))
	})
})

var _ = Describe("UUIDID", func() {
	It("mints distinct identifiers", func() {
		a := odbtype.NewAtomID()
		b := odbtype.NewAtomID()
		Expect(a.String()).NotTo(Equal(b.String()))
	})

	It("round-trips through Parse", func() {
		a := odbtype.NewStepID()
		parsed, err := odbtype.ParseStepID(a.String())
		Expect(err).NotTo(HaveOccurred())
		Expect(parsed).To(Equal(a))
	})
})
