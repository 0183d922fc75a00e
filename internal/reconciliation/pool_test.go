package reconciliation_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/evaluation-sync/internal/reconciliation"
)

type fakeSyncer struct {
	delay   time.Duration
	fail    map[string]error
	running int32
	peak    int32

	mu   sync.Mutex
	seen []string
}

func (f *fakeSyncer) Sync(ctx context.Context, tenantID string) (*reconciliation.SyncOutcome, error) {
	n := atomic.AddInt32(&f.running, 1)
	defer atomic.AddInt32(&f.running, -1)
	for {
		peak := atomic.LoadInt32(&f.peak)
		if n <= peak || atomic.CompareAndSwapInt32(&f.peak, peak, n) {
			break
		}
	}

	f.mu.Lock()
	f.seen = append(f.seen, tenantID)
	f.mu.Unlock()

	time.Sleep(f.delay)
	if err := f.fail[tenantID]; err != nil {
		return nil, err
	}
	return &reconciliation.SyncOutcome{
		Result: &reconciliation.Result{TenantID: tenantID},
	}, nil
}

var _ = Describe("Pool", func() {
	It("syncs every tenant and keeps input order", func() {
		boom := errors.New("boom")
		syncer := &fakeSyncer{delay: 5 * time.Millisecond, fail: map[string]error{"shu": boom}}
		pool := reconciliation.NewPool(syncer, 2, testLogger)

		outcomes := pool.Run(context.Background(), []string{"wei", "shu", "wu", "jin"})

		Expect(outcomes).To(HaveLen(4))
		for i, id := range []string{"wei", "shu", "wu", "jin"} {
			Expect(outcomes[i].TenantID).To(Equal(id))
		}
		Expect(outcomes[1].Err).To(MatchError(boom))
		Expect(outcomes[0].Err).NotTo(HaveOccurred())
		Expect(outcomes[3].Outcome.Result.TenantID).To(Equal("jin"))
		Expect(syncer.seen).To(ConsistOf("wei", "shu", "wu", "jin"))
	})

	It("never runs more tenants than workers at once", func() {
		syncer := &fakeSyncer{delay: 10 * time.Millisecond}
		pool := reconciliation.NewPool(syncer, 3, testLogger)

		tenants := make([]string, 12)
		for i := range tenants {
			tenants[i] = string(rune('a' + i))
		}
		pool.Run(context.Background(), tenants)

		Expect(atomic.LoadInt32(&syncer.peak)).To(BeNumerically("<=", 3))
		Expect(syncer.seen).To(HaveLen(12))
	})

	It("returns immediately for no tenants", func() {
		pool := reconciliation.NewPool(&fakeSyncer{}, 0, testLogger)
		Expect(pool.Run(context.Background(), nil)).To(BeEmpty())
	})

	It("marks undispatched tenants with the context error", func() {
		syncer := &fakeSyncer{}
		pool := reconciliation.NewPool(syncer, 1, testLogger)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		outcomes := pool.Run(ctx, []string{"wei", "shu"})

		Expect(outcomes).To(HaveLen(2))
		for _, o := range outcomes {
			if o.Err != nil {
				Expect(o.Err).To(MatchError(context.Canceled))
			}
		}
		Expect(outcomes[1].TenantID).To(Equal("shu"))
	})
})
