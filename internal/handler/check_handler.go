package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dandantas/vigil/internal/model"
	"github.com/dandantas/vigil/internal/service"
	"github.com/dandantas/vigil/pkg/middleware"
)

const maxCheckBodyBytes = 64 << 10

// CheckService ingests and lists check results
type CheckService interface {
	Submit(ctx context.Context, input service.SubmitCheckInput) (*model.CheckResult, error)
	ListByTask(ctx context.Context, taskID string, page, limit int) ([]model.CheckResult, int64, error)
}

// CheckHandler handles check submission and history
type CheckHandler struct {
	service CheckService
}

// NewCheckHandler creates a new check handler
func NewCheckHandler(service CheckService) *CheckHandler {
	return &CheckHandler{
		service: service,
	}
}

// CheckListResponse represents check history list response
type CheckListResponse struct {
	Total   int64                      `json:"total"`
	Page    int                        `json:"page"`
	Limit   int                        `json:"limit"`
	Results []model.CheckResultSummary `json:"results"`
}

// Submit handles POST /api/v1/checks
func (h *CheckHandler) Submit(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetWorkerIdentity(r.Context())
	if identity == "" {
		writeError(w, http.StatusUnauthorized, "worker identity required")
		return
	}

	var input service.SubmitCheckInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCheckBodyBytes)).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	input.WorkerIdentity = identity

	result, err := h.service.Submit(r.Context(), input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, result.ToSummary())
}

// List handles GET /api/v1/checks?task_id=
func (h *CheckHandler) List(w http.ResponseWriter, r *http.Request) {
	taskID := r.URL.Query().Get("task_id")
	if taskID == "" {
		writeError(w, http.StatusBadRequest, "task_id is required")
		return
	}

	page := parseQueryInt(r, "page", 1)
	limit := parseQueryInt(r, "limit", 20)

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	results, total, err := h.service.ListByTask(r.Context(), taskID, page, limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	summaries := make([]model.CheckResultSummary, 0, len(results))
	for i := range results {
		summaries = append(summaries, results[i].ToSummary())
	}

	writeJSON(w, http.StatusOK, CheckListResponse{
		Total:   total,
		Page:    page,
		Limit:   limit,
		Results: summaries,
	})
}
