package tenancy

import (
	"context"
	"log/slog"
	"time"

	"github.com/frahmantamala/evaluation-sync/internal"
	tenantDatamodel "github.com/frahmantamala/evaluation-sync/internal/core/datamodel/tenant"
	"github.com/frahmantamala/evaluation-sync/pkg/logger"
)

// Guard binds operations to one active tenant.
type Guard struct {
	repo     RepositoryAPI
	recorder ViolationRecorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewGuard returns a Guard. recorder may be nil.
func NewGuard(repo RepositoryAPI, recorder ViolationRecorder, logger *slog.Logger) *Guard {
	return &Guard{
		repo:     repo,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}
}

// Run executes fn with ctx and scope bound to tenantID. The tenant must
// exist and be syncable. Running inside a context already bound to another
// tenant is a cross-tenant access.
func (g *Guard) Run(ctx context.Context, tenantID string, fn func(ctx context.Context, scope *Scope) error) error {
	if tenantID == "" {
		return internal.ErrTenantRequired
	}

	if bound := internal.TenantIDFromContext(ctx); bound != "" && bound != tenantID {
		return g.violation(ctx, bound, tenantID, "nested guard")
	}

	t, err := g.repo.GetByID(ctx, tenantID)
	if err != nil {
		return err
	}

	if !t.IsSyncable(g.now()) {
		g.logger.Warn("tenant not syncable",
			"tenant_id", tenantID,
			"status", t.Status,
			"expires_at", t.ExpiresAt)
		return internal.ErrTenantInactive.WithMessage("tenant %s is %s", tenantID, effectiveStatus(t, g.now()))
	}

	ctx = internal.ContextWithTenantID(ctx, tenantID)
	ctx = logger.With(ctx, "tenant_id", tenantID)

	return fn(ctx, &Scope{tenant: t, guard: g})
}

// Violation reports a cross-tenant access detected outside the guard, such
// as a directory payload carrying another tenant's records.
func (g *Guard) Violation(ctx context.Context, boundTenant, otherTenant, where string) error {
	return g.violation(ctx, boundTenant, otherTenant, where)
}

// violation logs a security event and returns the error to surface.
func (g *Guard) violation(ctx context.Context, boundTenant, otherTenant, where string) error {
	g.logger.Error("cross-tenant access blocked",
		"security_event", "cross_tenant_access",
		"tenant_id", boundTenant,
		"other_tenant_id", otherTenant,
		"where", where,
		"run_id", internal.RunIDFromContext(ctx))

	if g.recorder != nil {
		g.recorder.RecordCrossTenantViolation(boundTenant)
	}

	return internal.ErrCrossTenantAccess.WithMessage(
		"operation bound to tenant %s attempted to access tenant %s", boundTenant, otherTenant)
}

func effectiveStatus(t *tenantDatamodel.Tenant, now time.Time) string {
	if t.Status == tenantDatamodel.StatusActive && t.ExpiresAt != nil && !t.ExpiresAt.After(now) {
		return tenantDatamodel.StatusExpired
	}
	return t.Status
}
