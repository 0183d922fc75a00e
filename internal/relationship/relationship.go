// Package relationship computes who evaluates whom inside a tenant: every
// leader evaluates every department manager.
package relationship

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/frahmantamala/evaluation-sync/internal/core/datamodel/evaluation"
	"github.com/frahmantamala/evaluation-sync/internal/tenancy"
)

type Relationship struct {
	TenantID    string `json:"tenant_id"`
	EvaluatorID string `json:"evaluator_id"`
	EvalueeID   string `json:"evaluee_id"`
}

// RepositoryAPI persists the relationship set of a tenant. WithTx returns
// a repository bound to an open transaction.
type RepositoryAPI interface {
	WithTx(tx *gorm.DB) RepositoryAPI
	ListEmployees(ctx context.Context, scope *tenancy.Scope) ([]evaluation.Employee, error)
	Replace(ctx context.Context, scope *tenancy.Scope, runID string, rels []Relationship, at time.Time) error
	List(ctx context.Context, scope *tenancy.Scope) ([]Relationship, error)
	Transaction(ctx context.Context, fn func(repo RepositoryAPI) error) error
}
