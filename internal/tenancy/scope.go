package tenancy

import (
	"context"

	"gorm.io/gorm"

	tenantDatamodel "github.com/frahmantamala/evaluation-sync/internal/core/datamodel/tenant"
)

// Scope is handed to code running under Guard.Run.
type Scope struct {
	tenant *tenantDatamodel.Tenant
	guard  *Guard
}

func (s *Scope) TenantID() string {
	return s.tenant.ID
}

// Tenant returns a copy of the tenant record, quotas included.
func (s *Scope) Tenant() tenantDatamodel.Tenant {
	return *s.tenant
}

// DB filters every statement issued through the returned session by the
// scope's tenant.
func (s *Scope) DB(db *gorm.DB) *gorm.DB {
	tenantID := s.tenant.ID
	return db.Scopes(func(tx *gorm.DB) *gorm.DB {
		return tx.Where("tenant_id = ?", tenantID)
	})
}

// Check fails when entity belongs to another tenant.
func (s *Scope) Check(ctx context.Context, entity Owned) error {
	if owner := entity.OwnerTenantID(); owner != s.tenant.ID {
		return s.guard.violation(ctx, s.tenant.ID, owner, "scope check")
	}
	return nil
}

// CheckAll is Check over a slice; it stops at the first foreign entity.
func CheckAll[T Owned](ctx context.Context, s *Scope, entities []T) error {
	for _, e := range entities {
		if err := s.Check(ctx, e); err != nil {
			return err
		}
	}
	return nil
}
