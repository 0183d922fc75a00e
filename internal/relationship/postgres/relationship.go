package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/frahmantamala/evaluation-sync/internal/core/datamodel/evaluation"
	"github.com/frahmantamala/evaluation-sync/internal/relationship"
	"github.com/frahmantamala/evaluation-sync/internal/tenancy"
)

const insertBatchSize = 500

type RelationshipRepository struct {
	db *gorm.DB
}

func NewRelationshipRepository(db *gorm.DB) relationship.RepositoryAPI {
	return &RelationshipRepository{db: db}
}

func (r *RelationshipRepository) WithTx(tx *gorm.DB) relationship.RepositoryAPI {
	return &RelationshipRepository{db: tx}
}

func (r *RelationshipRepository) Transaction(ctx context.Context, fn func(repo relationship.RepositoryAPI) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}

func (r *RelationshipRepository) ListEmployees(ctx context.Context, scope *tenancy.Scope) ([]evaluation.Employee, error) {
	var employees []evaluation.Employee
	err := scope.DB(r.db.WithContext(ctx)).
		Order("employee_id ASC").
		Find(&employees).Error
	return employees, err
}

// Replace deletes the tenant's relationships and inserts rels. It must run
// inside a transaction for the swap to be atomic.
func (r *RelationshipRepository) Replace(ctx context.Context, scope *tenancy.Scope, runID string, rels []relationship.Relationship, at time.Time) error {
	db := r.db.WithContext(ctx)
	if err := scope.DB(db).Delete(&evaluation.Relationship{}).Error; err != nil {
		return err
	}
	if len(rels) == 0 {
		return nil
	}

	rows := make([]evaluation.Relationship, 0, len(rels))
	for _, rel := range rels {
		rows = append(rows, evaluation.Relationship{
			TenantID:    rel.TenantID,
			EvaluatorID: rel.EvaluatorID,
			EvalueeID:   rel.EvalueeID,
			RunID:       runID,
			GeneratedAt: at,
		})
	}
	return db.CreateInBatches(&rows, insertBatchSize).Error
}

func (r *RelationshipRepository) List(ctx context.Context, scope *tenancy.Scope) ([]relationship.Relationship, error) {
	var rows []evaluation.Relationship
	err := scope.DB(r.db.WithContext(ctx)).
		Order("evaluator_id ASC, evaluee_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	rels := make([]relationship.Relationship, 0, len(rows))
	for _, row := range rows {
		rels = append(rels, relationship.Relationship{
			TenantID:    row.TenantID,
			EvaluatorID: row.EvaluatorID,
			EvalueeID:   row.EvalueeID,
		})
	}
	return rels, nil
}
