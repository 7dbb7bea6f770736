package handler

import (
	"context"
	"net/http"

	"github.com/dandantas/vigil/internal/model"
	"github.com/dandantas/vigil/pkg/middleware"
)

// GenerationTrigger runs a generation cycle on demand
type GenerationTrigger interface {
	TriggerOnce(ctx context.Context) (model.GenerationResult, error)
}

// AssignmentReader exposes assignment introspection
type AssignmentReader interface {
	Stats(ctx context.Context) (model.AssignmentStats, error)
	OpenLeases(ctx context.Context, workerID string) ([]model.OpenLease, error)
	OpenLeasesForIdentity(ctx context.Context, identity string) ([]model.OpenLease, error)
}

// AssignmentHandler handles generation triggers and lease queries
type AssignmentHandler struct {
	trigger     GenerationTrigger
	assignments AssignmentReader
}

// NewAssignmentHandler creates a new assignment handler
func NewAssignmentHandler(trigger GenerationTrigger, assignments AssignmentReader) *AssignmentHandler {
	return &AssignmentHandler{
		trigger:     trigger,
		assignments: assignments,
	}
}

// LeasesResponse represents the open leases of one worker
type LeasesResponse struct {
	Total  int               `json:"total"`
	Leases []model.OpenLease `json:"leases"`
}

// Generate handles POST /api/v1/assignments/generate
func (h *AssignmentHandler) Generate(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	result, err := h.trigger.TriggerOnce(r.Context())
	if err != nil {
		// The structured result still describes the failure.
		writeJSON(w, http.StatusServiceUnavailable, result)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Stats handles GET /api/v1/assignments/stats
func (h *AssignmentHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	stats, err := h.assignments.Stats(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// Leases handles GET /api/v1/leases. Without worker_id the caller's own
// leases are returned.
func (h *AssignmentHandler) Leases(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	var (
		leases []model.OpenLease
		err    error
	)

	if workerID := r.URL.Query().Get("worker_id"); workerID != "" {
		leases, err = h.assignments.OpenLeases(r.Context(), workerID)
	} else {
		identity := middleware.GetWorkerIdentity(r.Context())
		if identity == "" {
			writeError(w, http.StatusUnauthorized, "worker identity required")
			return
		}
		leases, err = h.assignments.OpenLeasesForIdentity(r.Context(), identity)
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, LeasesResponse{
		Total:  len(leases),
		Leases: leases,
	})
}
