package timeestimator_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestTimeEstimator(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "TimeEstimator Suite")
}
