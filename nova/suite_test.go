package nova_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestNova(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "nova suite")
}
