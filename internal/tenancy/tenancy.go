// Package tenancy binds every operation to exactly one tenant and turns any
// attempt to touch another tenant's rows into a hard CROSS_TENANT_ACCESS
// failure instead of a silent filter.
package tenancy

import (
	"context"
	"time"

	tenantDatamodel "github.com/frahmantamala/evaluation-sync/internal/core/datamodel/tenant"
)

// Owned is implemented by every tenant-scoped model.
type Owned interface {
	OwnerTenantID() string
}

type RepositoryAPI interface {
	GetByID(ctx context.Context, id string) (*tenantDatamodel.Tenant, error)
	ListSyncable(ctx context.Context, now time.Time) ([]*tenantDatamodel.Tenant, error)
	Create(ctx context.Context, t *tenantDatamodel.Tenant) error
	UpdateStatus(ctx context.Context, id, status string) error
}

// ViolationRecorder counts blocked cross-tenant attempts. Optional.
type ViolationRecorder interface {
	RecordCrossTenantViolation(tenantID string)
}
