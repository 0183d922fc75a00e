package relationship

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/evaluation-sync/internal/transport"
)

type ServiceAPI interface {
	GenerateForTenant(ctx context.Context, tenantID string) ([]Relationship, error)
	List(ctx context.Context, tenantID string) ([]Relationship, error)
	Roster(ctx context.Context, tenantID string) ([]Relationship, map[string]string, error)
}

type RelationshipsResponse struct {
	TenantID      string         `json:"tenant_id"`
	Count         int            `json:"count"`
	Relationships []Relationship `json:"relationships"`
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

func (h *Handler) GetRelationships(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	rels, err := h.Service.List(r.Context(), tenantID)
	if err != nil {
		h.Logger.Error("GetRelationships: service error", "error", err, "tenant_id", tenantID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, newRelationshipsResponse(tenantID, rels))
}

// Generate rebuilds the relationship set from the current replica without
// touching employees.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	rels, err := h.Service.GenerateForTenant(r.Context(), tenantID)
	if err != nil {
		h.Logger.Error("Generate: service error", "error", err, "tenant_id", tenantID)
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("Generate: relationships regenerated", "tenant_id", tenantID, "count", len(rels))
	h.WriteJSON(w, http.StatusOK, newRelationshipsResponse(tenantID, rels))
}

func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	rels, names, err := h.Service.Roster(r.Context(), tenantID)
	if err != nil {
		h.Logger.Error("Export: service error", "error", err, "tenant_id", tenantID)
		h.HandleServiceError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := Export(&buf, rels, names); err != nil {
		h.Logger.Error("Export: failed to build workbook", "error", err, "tenant_id", tenantID)
		h.WriteError(w, http.StatusInternalServerError, "failed to export relationships")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="relationships-%s.xlsx"`, tenantID))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.Logger.Warn("Export: write interrupted", "error", err, "tenant_id", tenantID)
	}
}

func newRelationshipsResponse(tenantID string, rels []Relationship) RelationshipsResponse {
	if rels == nil {
		rels = []Relationship{}
	}
	return RelationshipsResponse{TenantID: tenantID, Count: len(rels), Relationships: rels}
}
