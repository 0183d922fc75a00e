package relationship_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/xuri/excelize/v2"

	"github.com/frahmantamala/evaluation-sync/internal/relationship"
)

var _ = Describe("Export", func() {
	It("writes one row per pair under a header", func() {
		rels := []relationship.Relationship{
			{TenantID: "wei", EvaluatorID: "E1", EvalueeID: "E2"},
			{TenantID: "wei", EvaluatorID: "E1", EvalueeID: "E3"},
		}
		names := map[string]string{"E1": "曹操", "E2": "许褚", "E3": "张辽"}

		var buf bytes.Buffer
		Expect(relationship.Export(&buf, rels, names)).To(Succeed())

		f, err := excelize.OpenReader(&buf)
		Expect(err).NotTo(HaveOccurred())
		defer f.Close()

		rows, err := f.GetRows("Relationships")
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(Equal([][]string{
			{"Evaluator ID", "Evaluator", "Evaluee ID", "Evaluee"},
			{"E1", "曹操", "E2", "许褚"},
			{"E1", "曹操", "E3", "张辽"},
		}))
	})

	It("writes only the header for an empty set", func() {
		var buf bytes.Buffer
		Expect(relationship.Export(&buf, nil, nil)).To(Succeed())

		f, err := excelize.OpenReader(&buf)
		Expect(err).NotTo(HaveOccurred())
		defer f.Close()
		rows, err := f.GetRows("Relationships")
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(1))
	})
})
