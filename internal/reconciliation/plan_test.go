package reconciliation_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/evaluation-sync/internal"
	"github.com/frahmantamala/evaluation-sync/internal/directory"
	"github.com/frahmantamala/evaluation-sync/internal/level"
	"github.com/frahmantamala/evaluation-sync/internal/reconciliation"
)

func normalized(records ...directory.EmployeeRecord) []reconciliation.NormalizedRecord {
	return reconciliation.NormalizeRecords(level.Default(), records)
}

func candidateIDs(plan reconciliation.Plan) []string {
	ids := make([]string, 0, len(plan.Candidates))
	for _, c := range plan.Candidates {
		ids = append(ids, c.Record.ID)
	}
	return ids
}

var _ = Describe("NormalizeRecords", func() {
	It("corrects manager levels and defaults unusable ones", func() {
		out := normalized(
			record("E1", "曹操", "董事长", "13"),
			record("E2", "许褚", "部门经理", "10"),
			record("E3", "Nobody", "Clerk", "abc"),
			directory.EmployeeRecord{ID: "E4", Name: "Pos", PositionName: "Department Manager", Level: "3"},
		)
		Expect(out[0].NormalizedLevel).To(Equal(13))
		Expect(out[1].NormalizedLevel).To(Equal(9))
		Expect(out[2].NormalizedLevel).To(Equal(1))
		Expect(out[3].NormalizedLevel).To(Equal(9))
		Expect(out[1].Level).To(Equal(directory.RawLevel("10")))

		corrected := []bool{out[0].LevelCorrected, out[1].LevelCorrected, out[2].LevelCorrected, out[3].LevelCorrected}
		Expect(corrected).To(Equal([]bool{false, true, false, true}))
	})
})

var _ = Describe("PlanImport", func() {
	It("skips inactive records and fails invalid or repeated ones", func() {
		inactive := record("E2", "Gone", "", "3")
		inactive.Active = boolPtr(false)

		plan := reconciliation.PlanImport(normalized(
			record("E1", "Ada", "", "3"),
			inactive,
			record("E3", "", "", "3"),
			record("E1", "Ada again", "", "3"),
			record("E4", "Bob", "", "3"),
		))

		Expect(candidateIDs(plan)).To(Equal([]string{"E1", "E4"}))
		Expect(plan.Skips).To(Equal([]reconciliation.RecordSkip{{Index: 1, EmployeeID: "E2", Reason: reconciliation.SkipInactive}}))
		Expect(plan.Failures).To(HaveLen(2))
		Expect(plan.Failures[0].Index).To(Equal(2))
		Expect(plan.Failures[1].EmployeeID).To(Equal("E1"))
		Expect(plan.Failures[1].Err).To(MatchError(internal.ErrRecordImport))
	})

	It("drops one link per supervisor cycle", func() {
		a := record("A", "A", "", "3")
		a.SupervisorID = strPtr("C")
		b := record("B", "B", "", "3")
		b.SupervisorID = strPtr("A")
		c := record("C", "C", "", "3")
		c.SupervisorID = strPtr("B")
		d := record("D", "D", "", "3")
		d.SupervisorID = strPtr("A")
		e := record("E", "E", "", "3")
		e.SupervisorID = strPtr("outside")

		plan := reconciliation.PlanImport(normalized(a, b, c, d, e))
		Expect(plan.CyclesBroken).To(Equal([]string{"A"}))

		byID := map[string]*string{}
		for _, cand := range plan.Candidates {
			byID[cand.Record.ID] = cand.Record.SupervisorID
		}
		Expect(byID["A"]).To(BeNil())
		Expect(*byID["B"]).To(Equal("A"))
		Expect(*byID["D"]).To(Equal("A"))
		Expect(*byID["E"]).To(Equal("outside"))
	})

	It("handles two disjoint cycles", func() {
		x := record("X", "X", "", "3")
		x.SupervisorID = strPtr("Y")
		y := record("Y", "Y", "", "3")
		y.SupervisorID = strPtr("X")
		p := record("P", "P", "", "3")
		p.SupervisorID = strPtr("Q")
		q := record("Q", "Q", "", "3")
		q.SupervisorID = strPtr("P")

		plan := reconciliation.PlanImport(normalized(x, y, p, q))
		Expect(plan.CyclesBroken).To(ConsistOf("P", "X"))
	})

	It("does not mutate the input records", func() {
		a := record("A", "A", "", "3")
		a.SupervisorID = strPtr("B")
		b := record("B", "B", "", "3")
		b.SupervisorID = strPtr("A")
		in := normalized(a, b)

		reconciliation.PlanImport(in)
		Expect(in[0].SupervisorID).NotTo(BeNil())
		Expect(in[1].SupervisorID).NotTo(BeNil())
	})
})
