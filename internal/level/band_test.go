package level_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/evaluation-sync/internal/level"
)

var _ = Describe("Position bands", func() {
	DescribeTable("BandOf",
		func(lvl int, expected level.Band) {
			Expect(level.BandOf(lvl)).To(Equal(expected))
		},
		Entry("junior floor", 1, level.BandJunior),
		Entry("junior ceiling", 4, level.BandJunior),
		Entry("middle floor", 5, level.BandMiddle),
		Entry("middle ceiling", 9, level.BandMiddle),
		Entry("senior floor", 10, level.BandSenior),
		Entry("chairman", 13, level.BandSenior),
	)

	It("accepts positions whose level agrees with the band", func() {
		Expect(level.CheckPosition("senior", 12)).To(Succeed())
		Expect(level.CheckPosition("middle", 9)).To(Succeed())
		Expect(level.CheckPosition("junior", 2)).To(Succeed())
	})

	It("reports a mismatch instead of accepting it", func() {
		err := level.CheckPosition("senior", 3)
		var mismatch *level.BandMismatch
		Expect(err).To(BeAssignableToTypeOf(mismatch))
		Expect(err.Error()).To(ContainSubstring("declared senior"))
	})

	It("rejects unknown management levels", func() {
		Expect(level.CheckPosition("executive", 12)).NotTo(Succeed())
	})

	It("corrects levels to the nearest band edge", func() {
		Expect(level.Correct("senior", 3)).To(Equal(10))
		Expect(level.Correct("middle", 1)).To(Equal(5))
		Expect(level.Correct("middle", 13)).To(Equal(9))
		Expect(level.Correct("junior", 8)).To(Equal(4))
		Expect(level.Correct("junior", 0)).To(Equal(1))
		Expect(level.Correct("middle", 7)).To(Equal(7))
		Expect(level.Correct("unknown", 7)).To(Equal(7))
	})
})
