package relationship

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/frahmantamala/evaluation-sync/internal/core/datamodel/evaluation"
	"github.com/frahmantamala/evaluation-sync/internal/core/events"
	"github.com/frahmantamala/evaluation-sync/internal/tenancy"
)

// Recorder receives the size of each generated set. Optional.
type Recorder interface {
	RecordRelationships(tenantID string, count int)
}

type Service struct {
	repo      RepositoryAPI
	guard     *tenancy.Guard
	policies  PolicyProvider
	locker    tenancy.Locker
	publisher events.Publisher
	recorder  Recorder
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(repo RepositoryAPI, guard *tenancy.Guard, policies PolicyProvider, locker tenancy.Locker, publisher events.Publisher, recorder Recorder, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		guard:     guard,
		policies:  policies,
		locker:    locker,
		publisher: publisher,
		recorder:  recorder,
		logger:    logger,
		now:       time.Now,
	}
}

// GenerateForTenant recomputes and atomically replaces the tenant's
// relationships from the current employee replica.
func (s *Service) GenerateForTenant(ctx context.Context, tenantID string) ([]Relationship, error) {
	var rels []Relationship
	runID := uuid.New().String()

	err := s.guard.Run(ctx, tenantID, func(ctx context.Context, scope *tenancy.Scope) error {
		release, err := s.locker.Acquire(ctx, tenantID)
		if err != nil {
			return err
		}
		defer release()

		return s.repo.Transaction(ctx, func(repo RepositoryAPI) error {
			employees, err := repo.ListEmployees(ctx, scope)
			if err != nil {
				return fmt.Errorf("list employees: %w", err)
			}
			rels, err = s.replace(ctx, repo, scope, runID, employees)
			return err
		})
	})
	if err != nil {
		s.logger.Error("relationship generation failed", "tenant_id", tenantID, "error", err)
		return nil, err
	}

	s.Announce(ctx, tenantID, runID, len(rels))
	return rels, nil
}

// ReplaceInTx generates from employees and replaces the persisted set
// inside tx. The caller owns the tenant lock and the transaction.
func (s *Service) ReplaceInTx(ctx context.Context, tx *gorm.DB, scope *tenancy.Scope, runID string, employees []evaluation.Employee) ([]Relationship, error) {
	return s.replace(ctx, s.repo.WithTx(tx), scope, runID, employees)
}

func (s *Service) replace(ctx context.Context, repo RepositoryAPI, scope *tenancy.Scope, runID string, employees []evaluation.Employee) ([]Relationship, error) {
	if err := tenancy.CheckAll(ctx, scope, employees); err != nil {
		return nil, err
	}

	policy := s.policies.PolicyFor(scope.TenantID())
	rels := Generate(scope.TenantID(), employees, policy)

	if err := repo.Replace(ctx, scope, runID, rels, s.now()); err != nil {
		return nil, fmt.Errorf("replace relationships: %w", err)
	}

	s.logger.Info("relationships generated",
		"tenant_id", scope.TenantID(),
		"run_id", runID,
		"employees", len(employees),
		"relationships", len(rels))
	return rels, nil
}

// Announce publishes and records a finished generation.
func (s *Service) Announce(ctx context.Context, tenantID, runID string, count int) {
	if s.recorder != nil {
		s.recorder.RecordRelationships(tenantID, count)
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, events.NewRelationshipsGeneratedEvent(tenantID, runID, count)); err != nil {
			s.logger.Warn("failed to publish relationships event", "tenant_id", tenantID, "error", err)
		}
	}
}

// List returns the persisted relationships ordered by evaluator, evaluee.
func (s *Service) List(ctx context.Context, tenantID string) ([]Relationship, error) {
	var rels []Relationship
	err := s.guard.Run(ctx, tenantID, func(ctx context.Context, scope *tenancy.Scope) error {
		var err error
		rels, err = s.repo.List(ctx, scope)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rels, nil
}

// Roster is the persisted set with employee names, for exports.
func (s *Service) Roster(ctx context.Context, tenantID string) ([]Relationship, map[string]string, error) {
	var (
		rels  []Relationship
		names map[string]string
	)
	err := s.guard.Run(ctx, tenantID, func(ctx context.Context, scope *tenancy.Scope) error {
		var err error
		if rels, err = s.repo.List(ctx, scope); err != nil {
			return err
		}
		employees, err := s.repo.ListEmployees(ctx, scope)
		if err != nil {
			return err
		}
		names = make(map[string]string, len(employees))
		for _, e := range employees {
			names[e.EmployeeID] = e.Name
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return rels, names, nil
}
