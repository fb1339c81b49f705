package filter_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/obsdb/odb/pkg/api/filter"
)

var _ = Describe("Predicate", func() {
	DescribeTable("Match",
		func(expr string, row map[string]interface{}, expected bool) {
			p, err := filter.Compile(expr)
			Expect(err).NotTo(HaveOccurred())

			matched, err := p.Match(row)
			Expect(err).NotTo(HaveOccurred())
			Expect(matched).To(Equal(expected))
		},
		Entry("empty expression always matches", "", map[string]interface{}{"scienceBand": "BAND1"}, true),
		Entry("equality match", `.scienceBand == "BAND1"`, map[string]interface{}{"scienceBand": "BAND1"}, true),
		Entry("equality mismatch", `.scienceBand == "BAND1"`, map[string]interface{}{"scienceBand": "BAND2"}, false),
		Entry("nested field access", `.constraints.imageQuality == "PERCENT_70"`,
			map[string]interface{}{"constraints": map[string]interface{}{"imageQuality": "PERCENT_70"}}, true),
		Entry("null output is falsy", `.missing`, map[string]interface{}{"scienceBand": "BAND1"}, false),
	)

	It("rejects an unparsable expression", func() {
		_, err := filter.Compile("not a valid jq program {{{")
		Expect(err).To(HaveOccurred())
	})
})
