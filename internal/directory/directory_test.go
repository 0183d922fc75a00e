package directory_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/evaluation-sync/internal"
	"github.com/frahmantamala/evaluation-sync/internal/directory"
	"github.com/frahmantamala/evaluation-sync/internal/level"
)

type flakySource struct {
	calls    atomic.Int32
	failures int32
	err      error
}

func (f *flakySource) Fetch(_ context.Context, tenantID string) (directory.Snapshot, error) {
	n := f.calls.Add(1)
	if n <= f.failures {
		return directory.Snapshot{}, f.err
	}
	return directory.NewSnapshot(tenantID, []directory.EmployeeRecord{{ID: "E1", Name: "Ada"}}, 1, time.Now()), nil
}

var _ = Describe("EmployeeRecord", func() {
	Describe("level decoding", func() {
		DescribeTable("accepts numbers, strings and null",
			func(payload string, expected directory.RawLevel) {
				var rec directory.EmployeeRecord
				Expect(json.Unmarshal([]byte(payload), &rec)).To(Succeed())
				Expect(rec.Level).To(Equal(expected))
			},
			Entry("number", `{"id":"E1","level":13}`, directory.RawLevel("13")),
			Entry("string", `{"id":"E1","level":" 7 "}`, directory.RawLevel(" 7 ")),
			Entry("null", `{"id":"E1","level":null}`, directory.RawLevel("")),
			Entry("missing", `{"id":"E1"}`, directory.RawLevel("")),
			Entry("decimal number", `{"id":"E1","level":13.0}`, directory.RawLevel("13.0")),
		)

		It("keeps a decimal chairman level usable after normalization", func() {
			var rec directory.EmployeeRecord
			Expect(json.Unmarshal([]byte(`{"id":"E1","title":"董事长","level":13.0}`), &rec)).To(Succeed())
			Expect(level.Default().NormalizeRaw(rec.EffectiveTitle(), string(rec.Level))).To(Equal(13))
		})

		It("rejects a level that is neither number nor string", func() {
			var rec directory.EmployeeRecord
			Expect(json.Unmarshal([]byte(`{"id":"E1","level":{"x":1}}`), &rec)).NotTo(Succeed())
		})
	})

	Describe("Validate", func() {
		It("accepts a complete record", func() {
			rec := directory.EmployeeRecord{ID: "E1", Name: "Ada", Email: "ada@example.com"}
			Expect(rec.Validate()).To(Succeed())
		})

		It("requires id and name", func() {
			err := directory.EmployeeRecord{}.Validate()
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeValidationFailed))
			Expect(appErr.GetDetailedMessage()).To(ContainSubstring("ID"))
			Expect(appErr.GetDetailedMessage()).To(ContainSubstring("Name"))
		})

		It("rejects a malformed email", func() {
			rec := directory.EmployeeRecord{ID: "E1", Name: "Ada", Email: "nope"}
			Expect(rec.Validate()).To(HaveOccurred())
		})

		It("rejects self supervision", func() {
			rec := directory.EmployeeRecord{ID: "E1", Name: "Ada", SupervisorID: strPtr("E1")}
			Expect(rec.Validate()).To(HaveOccurred())
		})
	})

	It("defaults to active and falls back to the position name", func() {
		rec := directory.EmployeeRecord{ID: "E1", PositionName: "部门经理"}
		Expect(rec.IsActive()).To(BeTrue())
		Expect(rec.EffectiveTitle()).To(Equal("部门经理"))

		rec.Active = boolPtr(false)
		rec.Title = "Lead"
		Expect(rec.IsActive()).To(BeFalse())
		Expect(rec.EffectiveTitle()).To(Equal("Lead"))
	})
})

var _ = Describe("Snapshot", func() {
	It("is not affected by later changes to the input or output slices", func() {
		in := []directory.EmployeeRecord{{ID: "E1", Name: "Ada"}}
		snap := directory.NewSnapshot("acme", in, 1, time.Now())
		in[0].Name = "changed"

		out := snap.Records()
		out[0].Name = "changed again"

		Expect(snap.Records()[0].Name).To(Equal("Ada"))
		Expect(snap.Len()).To(Equal(1))
		Expect(snap.TenantID()).To(Equal("acme"))
	})
})

var _ = Describe("WithRetry", func() {
	It("restarts a failed fetch", func() {
		src := &flakySource{failures: 2, err: internal.ErrSourceUnavailable}
		snap, err := directory.WithRetry(src, 2, time.Millisecond, testLogger).Fetch(context.Background(), "acme")
		Expect(err).NotTo(HaveOccurred())
		Expect(snap.Len()).To(Equal(1))
		Expect(src.calls.Load()).To(Equal(int32(3)))
	})

	It("gives up after the configured attempts", func() {
		src := &flakySource{failures: 10, err: internal.ErrSourceUnavailable}
		_, err := directory.WithRetry(src, 1, time.Millisecond, testLogger).Fetch(context.Background(), "acme")
		Expect(err).To(MatchError(internal.ErrSourceUnavailable))
		Expect(src.calls.Load()).To(Equal(int32(2)))
	})

	It("does not retry other failures", func() {
		src := &flakySource{failures: 10, err: internal.ErrCrossTenantAccess}
		_, err := directory.WithRetry(src, 3, time.Millisecond, testLogger).Fetch(context.Background(), "acme")
		Expect(err).To(MatchError(internal.ErrCrossTenantAccess))
		Expect(src.calls.Load()).To(Equal(int32(1)))
	})

	It("stops waiting when the context ends", func() {
		src := &flakySource{failures: 10, err: internal.ErrSourceUnavailable}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := directory.WithRetry(src, 3, time.Hour, testLogger).Fetch(ctx, "acme")
		Expect(err).To(MatchError(internal.ErrSourceUnavailable))
		Expect(errors.Is(err, context.Canceled)).To(BeTrue())
	})
})
