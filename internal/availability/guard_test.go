package availability_test

import (
	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/backbone81/graph-txlog/internal/availability"
)

var _ = Describe("Guard", func() {
	It("should be available without requirements", func() {
		guard := availability.NewGuard(logr.Discard())
		Expect(guard.IsAvailable()).To(BeTrue())
		Expect(guard.Requirements()).To(BeEmpty())
	})

	It("should be unavailable until all requirements are fulfilled", func() {
		guard := availability.NewGuard(logr.Discard())
		guard.Require("catch-up")
		guard.Require("recovery")
		guard.Require("catch-up")
		Expect(guard.IsAvailable()).To(BeFalse())
		Expect(guard.Requirements()).To(Equal([]string{"catch-up", "recovery"}))

		guard.Fulfill("catch-up")
		Expect(guard.IsAvailable()).To(BeFalse())

		guard.Fulfill("recovery")
		Expect(guard.IsAvailable()).To(BeTrue())

		guard.Fulfill("unknown")
		Expect(guard.IsAvailable()).To(BeTrue())
	})
})
