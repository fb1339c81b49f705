package smartgcal_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestSmartGcal(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "SmartGcal Suite")
}
