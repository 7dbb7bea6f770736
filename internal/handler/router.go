package handler

import (
	"net/http"

	"github.com/dandantas/vigil/pkg/middleware"
)

// Router handles HTTP routing
type Router struct {
	assignmentHandler *AssignmentHandler
	checkHandler      *CheckHandler
	healthHandler     *HealthHandler
	metricsHandler    http.Handler
	observer          middleware.RequestObserver
	corsConfig        middleware.CORSConfig
}

// NewRouter creates a new router. metricsHandler and observer may be nil.
func NewRouter(
	assignmentHandler *AssignmentHandler,
	checkHandler *CheckHandler,
	healthHandler *HealthHandler,
	metricsHandler http.Handler,
	observer middleware.RequestObserver,
	corsConfig middleware.CORSConfig,
) *Router {
	return &Router{
		assignmentHandler: assignmentHandler,
		checkHandler:      checkHandler,
		healthHandler:     healthHandler,
		metricsHandler:    metricsHandler,
		observer:          observer,
		corsConfig:        corsConfig,
	}
}

// Handler returns the configured HTTP handler with middleware
func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health endpoints
	mux.HandleFunc("/health", rt.healthHandler.Health)
	mux.HandleFunc("/ready", rt.healthHandler.Ready)
	if rt.metricsHandler != nil {
		mux.Handle("/metrics", rt.metricsHandler)
	}

	// API endpoints
	mux.HandleFunc("/api/v1/assignments/generate", rt.assignmentHandler.Generate)
	mux.HandleFunc("/api/v1/assignments/stats", rt.assignmentHandler.Stats)
	mux.HandleFunc("/api/v1/leases", rt.assignmentHandler.Leases)
	mux.HandleFunc("/api/v1/checks", rt.handleChecks)

	// Apply middleware (CORS first to handle preflight requests)
	handler := middleware.CORS(rt.corsConfig)(mux)
	handler = middleware.Recovery(handler)
	if rt.observer != nil {
		handler = middleware.Metrics(rt.observer)(handler)
	}
	handler = middleware.Logging(handler)
	handler = middleware.WorkerIdentity(handler)
	handler = middleware.CorrelationID(handler)

	return handler
}

// handleChecks routes check collection endpoints
func (rt *Router) handleChecks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		rt.checkHandler.List(w, r)
	case http.MethodPost:
		rt.checkHandler.Submit(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}
