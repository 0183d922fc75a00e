package reconciliation

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/frahmantamala/evaluation-sync/internal"
	"github.com/frahmantamala/evaluation-sync/internal/core/datamodel/evaluation"
	"github.com/frahmantamala/evaluation-sync/internal/core/events"
	"github.com/frahmantamala/evaluation-sync/internal/directory"
	"github.com/frahmantamala/evaluation-sync/internal/level"
	"github.com/frahmantamala/evaluation-sync/internal/relationship"
	"github.com/frahmantamala/evaluation-sync/internal/tenancy"
	"github.com/frahmantamala/evaluation-sync/pkg/logger"
)

// Dependencies of a Service. Publisher and Recorder may be nil; Generator
// may be nil when relationships are produced elsewhere.
type Dependencies struct {
	Guard        *tenancy.Guard
	Source       directory.Source
	Normalizer   *level.Normalizer
	Store        StoreAPI
	Generator    Generator
	Locker       tenancy.Locker
	Publisher    events.Publisher
	Recorder     Recorder
	Logger       *slog.Logger
	FetchTimeout time.Duration
}

type Service struct {
	guard        *tenancy.Guard
	source       directory.Source
	normalizer   *level.Normalizer
	store        StoreAPI
	generator    Generator
	locker       tenancy.Locker
	publisher    events.Publisher
	recorder     Recorder
	logger       *slog.Logger
	fetchTimeout time.Duration
	now          func() time.Time
}

func NewService(deps Dependencies) *Service {
	normalizer := deps.Normalizer
	if normalizer == nil {
		normalizer = level.Default()
	}
	locker := deps.Locker
	if locker == nil {
		locker = tenancy.NewLocalLocker()
	}
	return &Service{
		guard:        deps.Guard,
		source:       deps.Source,
		normalizer:   normalizer,
		store:        deps.Store,
		generator:    deps.Generator,
		locker:       locker,
		publisher:    deps.Publisher,
		recorder:     deps.Recorder,
		logger:       deps.Logger,
		fetchTimeout: deps.FetchTimeout,
		now:          time.Now,
	}
}

// Reconcile replaces the tenant's employee replica with records. Downstream
// evaluation data, relationships included, is cleared with it.
func (s *Service) Reconcile(ctx context.Context, tenantID string, records []NormalizedRecord) (*Result, error) {
	runID := uuid.New().String()
	ctx = internal.ContextWithRunID(ctx, runID)
	started := s.now()

	var result *Result
	err := s.guard.Run(ctx, tenantID, func(ctx context.Context, scope *tenancy.Scope) error {
		release, err := s.acquire(ctx, tenantID)
		if err != nil {
			return err
		}
		defer release()

		result, err = s.replace(ctx, scope, runID, records, nil)
		return err
	})

	s.finish(ctx, tenantID, runID, started, result, err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Sync runs the whole pipeline for one tenant: fetch, normalize,
// reconcile and regenerate relationships, holding the tenant lock
// throughout.
func (s *Service) Sync(ctx context.Context, tenantID string) (*SyncOutcome, error) {
	runID := uuid.New().String()
	ctx = internal.ContextWithRunID(ctx, runID)
	ctx = logger.With(ctx, "run_id", runID)
	started := s.now()

	outcome := &SyncOutcome{}
	err := s.guard.Run(ctx, tenantID, func(ctx context.Context, scope *tenancy.Scope) error {
		release, err := s.acquire(ctx, tenantID)
		if err != nil {
			return err
		}
		defer release()

		snap, err := s.fetch(ctx, tenantID)
		if err != nil {
			return err
		}
		outcome.Fetched = snap.Len()
		outcome.Pages = snap.Pages()
		outcome.FetchedAt = snap.FetchedAt()

		records := NormalizeRecords(s.normalizer, snap.Records())
		for _, r := range records {
			if !r.LevelCorrected {
				continue
			}
			outcome.LevelsCorrected++
			logger.From(ctx).Debug("level corrected by title rule",
				"employee_id", r.ID,
				"title", r.EffectiveTitle(),
				"raw_level", string(r.Level),
				"level", r.NormalizedLevel)
		}

		var after AfterReplace
		if s.generator != nil {
			after = func(ctx context.Context, tx *gorm.DB, employees []evaluation.Employee) error {
				rels, err := s.generator.ReplaceInTx(ctx, tx, scope, runID, employees)
				outcome.Relationships = rels
				return err
			}
		}

		outcome.Result, err = s.replace(ctx, scope, runID, records, after)
		return err
	})

	s.finish(ctx, tenantID, runID, started, outcome.Result, err)
	if err != nil {
		return nil, err
	}

	if s.generator != nil {
		s.generator.Announce(ctx, tenantID, runID, len(outcome.Relationships))
	}
	if outcome.Relationships == nil {
		outcome.Relationships = []relationship.Relationship{}
	}
	return outcome, nil
}

// Runs lists the latest audit rows of a tenant, newest first.
func (s *Service) Runs(ctx context.Context, tenantID string, limit int) ([]evaluation.SyncRun, error) {
	var runs []evaluation.SyncRun
	err := s.guard.Run(ctx, tenantID, func(ctx context.Context, scope *tenancy.Scope) error {
		var err error
		runs, err = s.store.ListRuns(ctx, scope, limit)
		return err
	})
	return runs, err
}

// Employees lists the current replica of a tenant.
func (s *Service) Employees(ctx context.Context, tenantID string) ([]evaluation.Employee, error) {
	var employees []evaluation.Employee
	err := s.guard.Run(ctx, tenantID, func(ctx context.Context, scope *tenancy.Scope) error {
		var err error
		employees, err = s.store.ListEmployees(ctx, scope)
		return err
	})
	return employees, err
}

func (s *Service) acquire(ctx context.Context, tenantID string) (func(), error) {
	release, err := s.locker.Acquire(ctx, tenantID)
	if err != nil {
		if internal.HasCode(err, internal.ErrCodeSyncInProgress) && s.recorder != nil {
			s.recorder.RecordLockContention(tenantID)
		}
		s.logger.Warn("tenant lock not acquired", "tenant_id", tenantID, "error", err)
		return nil, err
	}
	return release, nil
}

// fetch bounds the source call by the fetch timeout. Whatever goes wrong
// before the transaction starts is SOURCE_UNAVAILABLE, except isolation
// failures.
func (s *Service) fetch(ctx context.Context, tenantID string) (directory.Snapshot, error) {
	fetchCtx, cancel := internal.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	snap, err := s.source.Fetch(fetchCtx, tenantID)
	if err != nil {
		if internal.HasCode(err, internal.ErrCodeCrossTenantAccess) {
			_ = s.guard.Violation(ctx, tenantID, "unknown", "directory_source")
			return directory.Snapshot{}, err
		}
		if internal.HasCode(err, internal.ErrCodeSourceUnavailable) {
			return directory.Snapshot{}, err
		}
		return directory.Snapshot{}, internal.ErrSourceUnavailable.WithCause(err)
	}
	if snap.TenantID() != tenantID {
		return directory.Snapshot{}, s.guard.Violation(ctx, tenantID, snap.TenantID(), "snapshot")
	}
	return snap, nil
}

func (s *Service) replace(ctx context.Context, scope *tenancy.Scope, runID string, records []NormalizedRecord, after AfterReplace) (*Result, error) {
	// records of another tenant are never relabelled
	for _, r := range records {
		if r.TenantID != "" && r.TenantID != scope.TenantID() {
			return nil, s.guard.Violation(ctx, scope.TenantID(), r.TenantID, "reconcile_records")
		}
	}

	plan := PlanImport(records)
	for _, id := range plan.CyclesBroken {
		logger.From(ctx).Warn("supervisor cycle broken", "tenant_id", scope.TenantID(), "employee_id", id)
	}

	started := s.now()
	result, err := s.store.ReplaceEmployees(ctx, scope, plan, ReplaceOptions{
		RunID:        runID,
		At:           started,
		MaxEmployees: scope.Tenant().MaxEmployees,
		After:        after,
	})
	if err != nil {
		return nil, err
	}

	result.StartedAt = started
	result.FinishedAt = s.now()
	return result, nil
}

// finish logs, audits, counts and announces a run, successful or not.
func (s *Service) finish(ctx context.Context, tenantID, runID string, started time.Time, result *Result, err error) {
	took := s.now().Sub(started)
	status := statusOf(err)

	var created, skipped, failed int
	if result != nil {
		created, skipped, failed = result.Created, result.Skipped, result.Failed
	}

	if s.recorder != nil {
		s.recorder.RecordSync(tenantID, status, created, skipped, failed, took)
	}

	if err != nil {
		s.logger.Error("reconciliation failed",
			"tenant_id", tenantID,
			"run_id", runID,
			"status", status,
			"error", err)
		s.publish(ctx, events.NewSyncFailedEvent(tenantID, runID, string(codeOf(err)), err.Error()))
	} else {
		s.logger.Info("reconciliation finished",
			"tenant_id", tenantID,
			"run_id", runID,
			"created", created,
			"skipped", skipped,
			"failed", failed,
			"supervisor_cycles_broken", result.SupervisorCyclesBroken,
			"took", took)
		s.publish(ctx, events.NewEmployeesReconciledEvent(tenantID, runID, created, skipped, failed))
	}

	if !audited(status) {
		return
	}
	finished := s.now()
	run := &evaluation.SyncRun{
		ID:         runID,
		TenantID:   tenantID,
		Status:     status,
		Created:    created,
		Skipped:    skipped,
		Failed:     failed,
		StartedAt:  started,
		FinishedAt: &finished,
	}
	if err != nil {
		run.FirstError = err.Error()
	} else {
		run.FirstError = result.FirstError()
	}
	// detached from the caller so a cancelled run is still recorded
	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if auditErr := s.store.RecordRun(auditCtx, run); auditErr != nil {
		s.logger.Error("failed to record sync run", "tenant_id", tenantID, "run_id", runID, "error", auditErr)
	}
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event", "event_type", event.EventType(), "error", err)
	}
}

const statusRejected = "rejected"

func statusOf(err error) string {
	switch {
	case err == nil:
		return evaluation.SyncRunSucceeded
	case internal.HasCode(err, internal.ErrCodeSourceUnavailable):
		return evaluation.SyncRunSourceUnavailable
	case internal.HasCode(err, internal.ErrCodeReconciliationAborted),
		internal.HasCode(err, internal.ErrCodeCrossTenantAccess):
		return evaluation.SyncRunAborted
	default:
		return statusRejected
	}
}

// audited reports whether a status gets an audit row. Rejected runs never
// touched the tenant.
func audited(status string) bool {
	return status != statusRejected
}

func codeOf(err error) internal.ErrorCode {
	if appErr, ok := internal.IsAppError(err); ok {
		return appErr.Code
	}
	return "INTERNAL_ERROR"
}
