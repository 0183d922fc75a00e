package relationship_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/evaluation-sync/internal"
	"github.com/frahmantamala/evaluation-sync/internal/relationship"
)

var _ = Describe("Policy", func() {
	It("defaults to threshold 12 and the 5..9 manager band", func() {
		p := relationship.DefaultPolicy()
		Expect(p.Validate()).To(Succeed())
		Expect(p.IsLeader(employee("t", "a", "", 12))).To(BeTrue())
		Expect(p.IsLeader(employee("t", "a", "", 11))).To(BeFalse())
		Expect(p.IsManager(employee("t", "a", "Senior DEPARTMENT MANAGER", 9))).To(BeTrue())
		Expect(p.IsManager(employee("t", "a", "销售部门经理", 5))).To(BeTrue())
		Expect(p.IsManager(employee("t", "a", "部门经理", 10))).To(BeFalse())
	})

	DescribeTable("rejects invalid policies",
		func(p relationship.Policy) {
			err := p.Validate()
			Expect(internal.HasCode(err, internal.ErrCodeInvalidPolicy)).To(BeTrue())
		},
		Entry("zero threshold", relationship.Policy{SeniorThreshold: 0, ManagerPatterns: []string{"x"}, MiddleBand: relationship.LevelBand{Min: 1, Max: 2}}),
		Entry("no patterns", relationship.Policy{SeniorThreshold: 5, MiddleBand: relationship.LevelBand{Min: 1, Max: 2}}),
		Entry("blank pattern", relationship.Policy{SeniorThreshold: 5, ManagerPatterns: []string{" "}, MiddleBand: relationship.LevelBand{Min: 1, Max: 2}}),
		Entry("inverted band", relationship.Policy{SeniorThreshold: 5, ManagerPatterns: []string{"x"}, MiddleBand: relationship.LevelBand{Min: 9, Max: 5}}),
	)

	Describe("per-tenant overrides", func() {
		const doc = `
tenants:
  acme:
    senior_threshold: 11
  globex:
    manager_patterns: ["head of"]
    middle_band: {min: 4, max: 8}
`
		It("merges overrides onto the defaults", func() {
			policies, err := relationship.ParsePolicies([]byte(doc), relationship.DefaultPolicy())
			Expect(err).NotTo(HaveOccurred())

			acme := policies.PolicyFor("acme")
			Expect(acme.SeniorThreshold).To(Equal(11))
			Expect(acme.ManagerPatterns).To(Equal(relationship.DefaultPolicy().ManagerPatterns))

			globex := policies.PolicyFor("globex")
			Expect(globex.SeniorThreshold).To(Equal(12))
			Expect(globex.ManagerPatterns).To(Equal([]string{"head of"}))
			Expect(globex.MiddleBand).To(Equal(relationship.LevelBand{Min: 4, Max: 8}))

			Expect(policies.PolicyFor("other")).To(Equal(relationship.DefaultPolicy()))
		})

		It("rejects an override that makes the policy invalid", func() {
			_, err := relationship.ParsePolicies([]byte("tenants:\n  acme:\n    middle_band: {min: 9, max: 2}\n"), relationship.DefaultPolicy())
			Expect(err).To(MatchError(ContainSubstring("acme")))
		})

		It("rejects malformed YAML", func() {
			_, err := relationship.ParsePolicies([]byte("tenants: ["), relationship.DefaultPolicy())
			Expect(err).To(HaveOccurred())
		})

		It("loads from a file and tolerates an empty path", func() {
			path := filepath.Join(GinkgoT().TempDir(), "policy.yml")
			Expect(os.WriteFile(path, []byte(doc), 0o600)).To(Succeed())

			policies, err := relationship.LoadPolicies(path, relationship.DefaultPolicy())
			Expect(err).NotTo(HaveOccurred())
			Expect(policies.PolicyFor("acme").SeniorThreshold).To(Equal(11))

			policies, err = relationship.LoadPolicies("", relationship.DefaultPolicy())
			Expect(err).NotTo(HaveOccurred())
			Expect(policies.PolicyFor("acme").SeniorThreshold).To(Equal(12))

			_, err = relationship.LoadPolicies(filepath.Join(GinkgoT().TempDir(), "missing.yml"), relationship.DefaultPolicy())
			Expect(err).To(HaveOccurred())
		})
	})
})
