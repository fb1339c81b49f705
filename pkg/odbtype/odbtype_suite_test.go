package odbtype_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestOdbtype(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Odbtype Suite")
}
