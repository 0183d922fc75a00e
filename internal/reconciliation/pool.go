package reconciliation

import (
	"context"
	"log/slog"
	"sync"
)

// Syncer is the part of Service the pool drives.
type Syncer interface {
	Sync(ctx context.Context, tenantID string) (*SyncOutcome, error)
}

type SyncJob struct {
	Index    int
	TenantID string
}

type TenantOutcome struct {
	TenantID string
	Outcome  *SyncOutcome
	Err      error
}

type Worker struct {
	ID         int
	WorkerPool chan chan SyncJob
	JobChannel chan SyncJob
	Logger     *slog.Logger
}

func NewWorker(id int, workerPool chan chan SyncJob, logger *slog.Logger) *Worker {
	return &Worker{
		ID:         id,
		WorkerPool: workerPool,
		JobChannel: make(chan SyncJob),
		Logger:     logger,
	}
}

func (w *Worker) Start(ctx context.Context, wg *sync.WaitGroup, processFunc func(SyncJob)) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		for {
			w.WorkerPool <- w.JobChannel

			select {
			case job := <-w.JobChannel:
				w.Logger.Debug("worker processing tenant", "worker_id", w.ID, "tenant_id", job.TenantID)
				processFunc(job)
			case <-ctx.Done():
				w.Logger.Debug("worker shutting down", "worker_id", w.ID)
				return
			}
		}
	}()
}

// Pool syncs many tenants with at most maxWorkers running at once. Tenants
// are independent: one failing never stops the others.
type Pool struct {
	syncer     Syncer
	maxWorkers int
	logger     *slog.Logger
}

func NewPool(syncer Syncer, maxWorkers int, logger *slog.Logger) *Pool {
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	return &Pool{syncer: syncer, maxWorkers: maxWorkers, logger: logger}
}

// Run returns one outcome per tenant, in input order. Tenants not yet
// dispatched when ctx ends carry ctx's error.
func (p *Pool) Run(ctx context.Context, tenantIDs []string) []TenantOutcome {
	results := make([]TenantOutcome, len(tenantIDs))
	if len(tenantIDs) == 0 {
		return results
	}

	workers := p.maxWorkers
	if workers > len(tenantIDs) {
		workers = len(tenantIDs)
	}

	poolCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	workerPool := make(chan chan SyncJob, workers)
	var workersWG, jobsWG sync.WaitGroup

	for i := 0; i < workers; i++ {
		worker := NewWorker(i, workerPool, p.logger)
		worker.Start(poolCtx, &workersWG, func(job SyncJob) {
			defer jobsWG.Done()
			outcome, err := p.syncer.Sync(ctx, job.TenantID)
			results[job.Index] = TenantOutcome{TenantID: job.TenantID, Outcome: outcome, Err: err}
		})
	}

	p.logger.Info("fleet sync started", "tenants", len(tenantIDs), "workers", workers)

dispatch:
	for i, tenantID := range tenantIDs {
		select {
		case jobChannel := <-workerPool:
			jobsWG.Add(1)
			jobChannel <- SyncJob{Index: i, TenantID: tenantID}
		case <-ctx.Done():
			for j := i; j < len(tenantIDs); j++ {
				results[j] = TenantOutcome{TenantID: tenantIDs[j], Err: ctx.Err()}
			}
			break dispatch
		}
	}

	jobsWG.Wait()
	cancel()
	workersWG.Wait()

	var failed int
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	p.logger.Info("fleet sync finished", "tenants", len(tenantIDs), "failed", failed)
	return results
}
