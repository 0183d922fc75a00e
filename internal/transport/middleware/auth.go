package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/evaluation-sync/internal"
	"github.com/frahmantamala/evaluation-sync/internal/auth"
	"github.com/frahmantamala/evaluation-sync/internal/tenancy"
	"github.com/frahmantamala/evaluation-sync/internal/transport"
	"github.com/frahmantamala/evaluation-sync/pkg/logger"
)

type claimsKey struct{}

// ClaimsFromContext returns the service token claims TenantAuth stored.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*auth.Claims)
	return claims, ok
}

// TenantAuth admits a request only when its bearer token belongs to the
// tenant named by the {tenantID} route parameter. A token for any other
// tenant is a cross-tenant access attempt.
func TenantAuth(issuer auth.TokenIssuer, recorder tenancy.ViolationRecorder, lg *slog.Logger) func(http.Handler) http.Handler {
	base := transport.NewBaseHandler(lg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := transport.BearerToken(r)
			if token == "" {
				base.HandleServiceError(w, internal.ErrInvalidToken.WithMessage("missing bearer token"))
				return
			}

			claims, err := issuer.Validate(token)
			if err != nil {
				base.Logger.Warn("rejected service token", "path", r.URL.Path, "error", err)
				base.HandleServiceError(w, err)
				return
			}

			tenantID := chi.URLParam(r, "tenantID")
			if tenantID != claims.TenantID {
				base.Logger.Error("cross-tenant request blocked",
					"security_event", "cross_tenant_access",
					"token_tenant_id", claims.TenantID,
					"path_tenant_id", tenantID,
					"path", r.URL.Path)
				if recorder != nil {
					recorder.RecordCrossTenantViolation(claims.TenantID)
				}
				base.HandleServiceError(w, internal.ErrCrossTenantAccess.WithMessage(
					"token of tenant %s cannot access tenant %s", claims.TenantID, tenantID))
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey{}, claims)
			ctx = logger.With(ctx, "tenant_id", tenantID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
