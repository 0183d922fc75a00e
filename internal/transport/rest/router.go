package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/frahmantamala/evaluation-sync/internal/auth"
	"github.com/frahmantamala/evaluation-sync/internal/reconciliation"
	"github.com/frahmantamala/evaluation-sync/internal/relationship"
	"github.com/frahmantamala/evaluation-sync/internal/tenancy"
	"github.com/frahmantamala/evaluation-sync/internal/transport/middleware"
)

type Routes struct {
	DB                  *sql.DB
	Redis               *redis.Client
	Issuer              auth.TokenIssuer
	Violations          tenancy.ViolationRecorder
	SyncHandler         *reconciliation.Handler
	RelationshipHandler *relationship.Handler
	Metrics             http.Handler
	MetricsPath         string
	Logger              *slog.Logger
}

func RegisterAllRoutes(router *chi.Mux, routes Routes) {
	healthHandler := NewHealthHandler(routes.DB, routes.Redis)

	// Apply global middleware
	router.Use(middleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(middleware.LoggingMiddleware(routes.Logger))
	router.Use(middleware.RecoveryMiddleware(routes.Logger))

	if routes.Metrics != nil {
		path := routes.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.Handle(path, routes.Metrics)
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		// Every tenant route requires a service token of that very tenant.
		r.Route("/tenants/{tenantID}", func(tr chi.Router) {
			tr.Use(middleware.TenantAuth(routes.Issuer, routes.Violations, routes.Logger))

			if routes.SyncHandler != nil {
				tr.Post("/sync", routes.SyncHandler.Sync)
				tr.Get("/runs", routes.SyncHandler.GetRuns)
				tr.Get("/employees", routes.SyncHandler.GetEmployees)
			}

			if routes.RelationshipHandler != nil {
				tr.Route("/relationships", func(rr chi.Router) {
					rr.Get("/", routes.RelationshipHandler.GetRelationships)
					rr.Post("/generate", routes.RelationshipHandler.Generate)
					rr.Get("/export", routes.RelationshipHandler.Export)
				})
			}
		})
	})
}
