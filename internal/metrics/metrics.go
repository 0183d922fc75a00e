package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the sync pipeline's collectors on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	SyncRunsTotal   *prometheus.CounterVec
	SyncDuration    *prometheus.HistogramVec
	RecordsTotal    *prometheus.CounterVec
	Relationships   *prometheus.GaugeVec
	CrossTenantHits *prometheus.CounterVec
	LockContention  *prometheus.CounterVec
}

// NewMetrics registers every collector on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		SyncRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "evaluation_sync_runs_total",
				Help: "Reconciliation runs by final status",
			},
			[]string{"tenant_id", "status"},
		),

		SyncDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "evaluation_sync_duration_seconds",
				Help:    "Duration of a full tenant sync",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tenant_id"},
		),

		RecordsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "evaluation_sync_records_total",
				Help: "Snapshot records by import outcome",
			},
			[]string{"tenant_id", "outcome"},
		),

		Relationships: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "evaluation_relationships",
				Help: "Evaluator/evaluee pairs currently persisted",
			},
			[]string{"tenant_id"},
		),

		CrossTenantHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "evaluation_cross_tenant_violations_total",
				Help: "Blocked cross-tenant access attempts",
			},
			[]string{"tenant_id"},
		),

		LockContention: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "evaluation_sync_lock_contention_total",
				Help: "Sync attempts rejected because the tenant was busy",
			},
			[]string{"tenant_id"},
		),
	}
}

func (m *Metrics) RecordSync(tenantID, status string, created, skipped, failed int, took time.Duration) {
	m.SyncRunsTotal.WithLabelValues(tenantID, status).Inc()
	m.SyncDuration.WithLabelValues(tenantID).Observe(took.Seconds())
	m.RecordsTotal.WithLabelValues(tenantID, "created").Add(float64(created))
	m.RecordsTotal.WithLabelValues(tenantID, "skipped").Add(float64(skipped))
	m.RecordsTotal.WithLabelValues(tenantID, "failed").Add(float64(failed))
}

func (m *Metrics) RecordRelationships(tenantID string, count int) {
	m.Relationships.WithLabelValues(tenantID).Set(float64(count))
}

func (m *Metrics) RecordCrossTenantViolation(tenantID string) {
	m.CrossTenantHits.WithLabelValues(tenantID).Inc()
}

func (m *Metrics) RecordLockContention(tenantID string) {
	m.LockContention.WithLabelValues(tenantID).Inc()
}

// Handler serves the private registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
