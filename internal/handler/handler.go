package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	_ "github.com/mtlprog/teamtask/docs" // Import generated docs
	"github.com/mtlprog/teamtask/internal/handler/dto"
	"github.com/mtlprog/teamtask/internal/middleware"
	"github.com/mtlprog/teamtask/internal/ratelimit"
	"github.com/mtlprog/teamtask/internal/service"
	"github.com/mtlprog/teamtask/internal/static"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	store          service.Store
	taskService    *service.TaskService
	projectService *service.ProjectService
	authService    *service.AuthService
	authMiddleware *middleware.AuthMiddleware
	limiter        *ratelimit.Limiter
}

// New creates a new Handler instance with all dependencies.
// A nil limiter disables login rate limiting.
func New(store service.Store, authService *service.AuthService, limiter *ratelimit.Limiter, opts ...service.Option) *Handler {
	// Create services
	taskService := service.NewTaskService(store, opts...)
	projectService := service.NewProjectService(store)

	// Create middleware
	authMiddleware := middleware.NewAuthMiddleware(authService)

	return &Handler{
		store:          store,
		taskService:    taskService,
		projectService: projectService,
		authService:    authService,
		authMiddleware: authMiddleware,
		limiter:        limiter,
	}
}

// RegisterRoutes registers all HTTP routes.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Health check
	mux.HandleFunc("GET /healthz", h.handleHealthz)

	// API reference
	mux.HandleFunc("GET /api.md", h.handleAPIMd)

	// Swagger UI
	mux.HandleFunc("GET /swagger/", httpSwagger.Handler())

	// Public auth routes
	mux.HandleFunc("POST /api/v1/auth/register", h.handleRegister)
	mux.Handle("POST /api/v1/auth/login",
		ratelimit.Middleware(h.limiter, "login", ratelimit.ClientIP)(http.HandlerFunc(h.handleLogin)))

	// API v1 routes with authentication
	mux.Handle("GET /api/v1/me", h.authenticated(h.handleMe))
	mux.Handle("GET /api/v1/users", h.authenticated(h.handleListUsers))
	mux.Handle("GET /api/v1/projects", h.authenticated(h.handleListProjects))
	mux.Handle("POST /api/v1/projects", h.authenticated(h.handleCreateProject))
	mux.Handle("GET /api/v1/tasks", h.authenticated(h.handleListTasks))
	mux.Handle("POST /api/v1/tasks", h.authenticated(h.handleCreateTask))
	mux.Handle("GET /api/v1/tasks/{id}", h.authenticated(h.handleGetTask))
	mux.Handle("PATCH /api/v1/tasks/{id}", h.authenticated(h.handleUpdateTask))
	mux.Handle("DELETE /api/v1/tasks/{id}", h.authenticated(h.handleDeleteTask))
	mux.Handle("PATCH /api/v1/tasks/{id}/status", h.authenticated(h.handleTransitionStatus))
	mux.Handle("GET /api/v1/stats", h.authenticated(h.handleGetStats))
	mux.Handle("GET /api/v1/deletions", h.authenticated(h.handleListDeletions))
}

func (h *Handler) authenticated(fn http.HandlerFunc) http.Handler {
	return h.authMiddleware.Authenticate(fn)
}

// handleHealthz returns 200 OK if the store is reachable.
func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.store.Ping(ctx); err != nil {
		slog.Error("store health check failed", "error", err)
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// handleAPIMd serves the embedded API reference.
func (h *Handler) handleAPIMd(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(static.APIMd))
}

// Ping checks if the store is reachable (used for testing).
func (h *Handler) Ping(ctx context.Context) error {
	return h.store.Ping(ctx)
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// respondError writes a standard error response.
func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, dto.NewErrorResponse(code, message))
}

// respondDomainError maps a service error onto the error response format.
func respondDomainError(w http.ResponseWriter, err error) {
	status, code, message := dto.MapDomainError(err)
	respondError(w, status, code, message)
}

// decodeJSON decodes the request body into v.
// Returns false if the body is invalid (error already sent to client).
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return false
	}
	return true
}

// extractTaskID extracts and validates task ID from path parameter.
// Returns (taskID, true) if valid, ("", false) if invalid (error already sent to client).
func extractTaskID(w http.ResponseWriter, r *http.Request) (string, bool) {
	taskID := r.PathValue("id")
	if taskID == "" {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "task id is required")
		return "", false
	}

	if _, err := uuid.Parse(taskID); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "task id must be a valid UUID")
		return "", false
	}

	return taskID, true
}
