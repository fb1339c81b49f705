package timeaccounting_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestTimeaccounting(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Timeaccounting Suite")
}
