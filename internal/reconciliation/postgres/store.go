package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/frahmantamala/evaluation-sync/internal"
	"github.com/frahmantamala/evaluation-sync/internal/core/datamodel/evaluation"
	"github.com/frahmantamala/evaluation-sync/internal/reconciliation"
	"github.com/frahmantamala/evaluation-sync/internal/tenancy"
)

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) reconciliation.StoreAPI {
	return &Store{db: db}
}

// cascade lists the tables cleared before a snapshot is inserted, children
// first.
var cascade = []interface{}{
	&evaluation.Result{},
	&evaluation.TaskAssignment{},
	&evaluation.Task{},
	&evaluation.Relationship{},
	&evaluation.Employee{},
}

// ReplaceEmployees swaps the tenant's replica for plan inside one
// transaction. Each insert runs under its own savepoint so a rejected row
// costs only itself; anything else rolls back to the prior snapshot.
func (s *Store) ReplaceEmployees(ctx context.Context, scope *tenancy.Scope, plan reconciliation.Plan, opts reconciliation.ReplaceOptions) (result *reconciliation.Result, err error) {
	result = &reconciliation.Result{
		RunID:                  opts.RunID,
		TenantID:               scope.TenantID(),
		Skips:                  append([]reconciliation.RecordSkip(nil), plan.Skips...),
		Failures:               append([]reconciliation.RecordFailure(nil), plan.Failures...),
		SupervisorCyclesBroken: len(plan.CyclesBroken),
	}

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, aborted(result, 0, fmt.Errorf("begin: %w", tx.Error))
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, model := range cascade {
		if err := scope.DB(tx).Delete(model).Error; err != nil {
			return nil, aborted(result, 0, fmt.Errorf("clear %T: %w", model, err))
		}
	}

	imported := make([]evaluation.Employee, 0, len(plan.Candidates))
	for i, c := range plan.Candidates {
		if err := ctx.Err(); err != nil {
			return nil, aborted(result, len(imported), err)
		}

		if opts.MaxEmployees > 0 && len(imported) >= opts.MaxEmployees {
			result.Skips = append(result.Skips, reconciliation.RecordSkip{
				Index:      c.Index,
				EmployeeID: c.Record.ID,
				Reason:     reconciliation.SkipQuotaExceeded,
			})
			continue
		}

		row := reconciliation.ToEmployee(scope.TenantID(), opts.RunID, opts.At, c.Record)
		savepoint := fmt.Sprintf("record_%d", i)
		if err := tx.SavePoint(savepoint).Error; err != nil {
			return nil, aborted(result, len(imported), fmt.Errorf("savepoint: %w", err))
		}
		if err := tx.Create(&row).Error; err != nil {
			if internal.HasCode(err, internal.ErrCodeCrossTenantAccess) {
				return nil, err
			}
			if rbErr := tx.RollbackTo(savepoint).Error; rbErr != nil {
				return nil, aborted(result, len(imported), fmt.Errorf("rollback to savepoint: %w", rbErr))
			}
			result.Failures = append(result.Failures, reconciliation.NewRecordFailure(c.Index, c.Record.ID, err))
			continue
		}
		imported = append(imported, row)
	}

	if opts.After != nil {
		if err := opts.After(ctx, tx, imported); err != nil {
			if internal.HasCode(err, internal.ErrCodeCrossTenantAccess) {
				return nil, err
			}
			return nil, aborted(result, len(imported), err)
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, aborted(result, len(imported), fmt.Errorf("commit: %w", err))
	}

	result.Created = len(imported)
	result.Skipped = len(result.Skips)
	result.Failed = len(result.Failures)
	return result, nil
}

func aborted(partial *reconciliation.Result, imported int, cause error) error {
	details := map[string]interface{}{
		"tenant_id": partial.TenantID,
		"run_id":    partial.RunID,
		"imported":  imported,
		"failed":    len(partial.Failures),
	}
	if first := partial.FirstError(); first != "" {
		details["first_record_error"] = first
	}
	return internal.ErrReconciliationAborted.
		WithMessage("reconciliation of tenant %s aborted, prior snapshot kept", partial.TenantID).
		WithDetails(details).
		WithCause(cause)
}

func (s *Store) ListEmployees(ctx context.Context, scope *tenancy.Scope) ([]evaluation.Employee, error) {
	var employees []evaluation.Employee
	err := scope.DB(s.db.WithContext(ctx)).
		Order("employee_id ASC").
		Find(&employees).Error
	return employees, err
}

// RecordRun writes the audit row. Never call it inside the replace
// transaction: aborted runs must stay visible.
func (s *Store) RecordRun(ctx context.Context, run *evaluation.SyncRun) error {
	return s.db.WithContext(ctx).Create(run).Error
}

func (s *Store) ListRuns(ctx context.Context, scope *tenancy.Scope, limit int) ([]evaluation.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []evaluation.SyncRun
	err := scope.DB(s.db.WithContext(ctx)).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}
