package reconciliation

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/evaluation-sync/internal/core/datamodel/evaluation"
	"github.com/frahmantamala/evaluation-sync/internal/transport"
)

type ServiceAPI interface {
	Sync(ctx context.Context, tenantID string) (*SyncOutcome, error)
	Runs(ctx context.Context, tenantID string, limit int) ([]evaluation.SyncRun, error)
	Employees(ctx context.Context, tenantID string) ([]evaluation.Employee, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

// Sync handles POST /tenants/{tenantID}/sync. It blocks until the run ends.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	outcome, err := h.Service.Sync(r.Context(), tenantID)
	if err != nil {
		h.Logger.Error("Sync: service error", "error", err, "tenant_id", tenantID)
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("Sync: tenant reconciled",
		"tenant_id", tenantID,
		"run_id", outcome.Result.RunID,
		"created", outcome.Result.Created,
		"relationships", len(outcome.Relationships))

	h.WriteJSON(w, http.StatusOK, SyncResponse{SyncOutcome: outcome})
}

func (h *Handler) GetRuns(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	runs, err := h.Service.Runs(r.Context(), tenantID, limit)
	if err != nil {
		h.Logger.Error("GetRuns: service error", "error", err, "tenant_id", tenantID)
		h.HandleServiceError(w, err)
		return
	}

	resp := RunsResponse{TenantID: tenantID, Runs: make([]RunResponse, 0, len(runs))}
	for _, run := range runs {
		resp.Runs = append(resp.Runs, ToRunResponse(run))
	}
	h.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetEmployees(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	employees, err := h.Service.Employees(r.Context(), tenantID)
	if err != nil {
		h.Logger.Error("GetEmployees: service error", "error", err, "tenant_id", tenantID)
		h.HandleServiceError(w, err)
		return
	}

	resp := EmployeesResponse{TenantID: tenantID, Employees: make([]EmployeeResponse, 0, len(employees))}
	for _, e := range employees {
		resp.Employees = append(resp.Employees, ToEmployeeResponse(e))
	}
	h.WriteJSON(w, http.StatusOK, resp)
}
