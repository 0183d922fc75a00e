package level_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/evaluation-sync/internal/level"
)

var _ = Describe("Normalizer", func() {
	var n *level.Normalizer

	BeforeEach(func() {
		n = level.Default()
	})

	Describe("title overrides", func() {
		It("forces department managers to 9 whatever the raw level", func() {
			for _, raw := range []int{-3, 0, 1, 9, 13, 99} {
				Expect(n.Normalize("部门经理", raw)).To(Equal(9))
			}
		})

		It("matches the pattern as a substring", func() {
			Expect(n.Normalize("研发部门经理", 2)).To(Equal(9))
			Expect(n.Normalize("Senior Department Manager ", 14)).To(Equal(9))
		})

		It("applies the first matching rule", func() {
			custom := level.MustNormalizer([]level.Rule{
				{Pattern: "总监", Level: 11},
				{Pattern: "总", Level: 13},
			})
			Expect(custom.Normalize("技术总监", 1)).To(Equal(11))
			Expect(custom.Normalize("总经理", 1)).To(Equal(13))
		})

		It("supports exact matching", func() {
			exact := level.MustNormalizer([]level.Rule{{Pattern: "CEO", Match: level.MatchExact, Level: 15}})
			Expect(exact.Normalize("ceo", 3)).To(Equal(15))
			Expect(exact.Normalize("Deputy CEO", 3)).To(Equal(3))
		})
	})

	Describe("pass-through", func() {
		It("keeps the raw level when no rule matches", func() {
			Expect(n.Normalize("董事长", 13)).To(Equal(13))
			Expect(n.Normalize("工程师", 4)).To(Equal(4))
		})

		It("defaults absent or unusable levels to 1", func() {
			Expect(n.Normalize("工程师", 0)).To(Equal(1))
			Expect(n.NormalizeRaw("工程师", "")).To(Equal(1))
			Expect(n.NormalizeRaw("工程师", "abc")).To(Equal(1))
			Expect(n.NormalizeRaw("工程师", "-2")).To(Equal(1))
		})

		It("parses textual levels", func() {
			Expect(n.NormalizeRaw("董事长", " 13 ")).To(Equal(13))
			Expect(n.NormalizeRaw("部门经理", "1")).To(Equal(9))
		})

		It("accepts integral levels written as decimals or exponents", func() {
			Expect(n.NormalizeRaw("董事长", "13.0")).To(Equal(13))
			Expect(n.NormalizeRaw("董事长", "1.3e1")).To(Equal(13))
			Expect(n.NormalizeRaw("工程师", " 4.00 ")).To(Equal(4))
		})

		It("treats fractional and out of range numbers as absent", func() {
			Expect(n.NormalizeRaw("工程师", "12.5")).To(Equal(1))
			Expect(n.NormalizeRaw("工程师", "1e40")).To(Equal(1))
			Expect(n.NormalizeRaw("工程师", "NaN")).To(Equal(1))
		})
	})

	It("is idempotent and deterministic", func() {
		titles := []string{"部门经理", "董事长", "工程师", ""}
		for _, title := range titles {
			for raw := -1; raw <= 15; raw++ {
				once := n.Normalize(title, raw)
				Expect(n.Normalize(title, once)).To(Equal(once))
				Expect(n.Normalize(title, raw)).To(Equal(once))
			}
		}
	})

	It("reports whether a title was corrected", func() {
		Expect(n.Corrected("部门经理")).To(BeTrue())
		Expect(n.Corrected("董事长")).To(BeFalse())
	})

	Describe("NewNormalizer", func() {
		It("rejects empty patterns", func() {
			_, err := level.NewNormalizer([]level.Rule{{Pattern: " ", Level: 3}})
			Expect(err).To(HaveOccurred())
		})

		It("rejects levels below 1", func() {
			_, err := level.NewNormalizer([]level.Rule{{Pattern: "x", Level: 0}})
			Expect(err).To(HaveOccurred())
		})

		It("rejects unknown match kinds", func() {
			_, err := level.NewNormalizer([]level.Rule{{Pattern: "x", Match: "regex", Level: 2}})
			Expect(err).To(HaveOccurred())
		})

		It("does not share the caller's slice", func() {
			rules := []level.Rule{{Pattern: "x", Level: 2}}
			custom := level.MustNormalizer(rules)
			rules[0].Level = 7
			Expect(custom.Normalize("x", 1)).To(Equal(2))
		})
	})
})
