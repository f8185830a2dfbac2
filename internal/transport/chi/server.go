// Package chi exposes the navigation search API over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/caseflow/navsearch/internal/domain"
	healthuc "github.com/caseflow/navsearch/internal/usecase/health"
)

// ErrorCode is the machine-readable error discriminator in API responses.
type ErrorCode string

const (
	// CodeBadRequest marks malformed or invalid request input.
	CodeBadRequest ErrorCode = "bad_request"
	// CodeUnauthorized marks a missing or invalid API key.
	CodeUnauthorized ErrorCode = "unauthorized"
	// CodeUnknownEntityType marks a reindex request for an unregistered type.
	CodeUnknownEntityType ErrorCode = "unknown_entity_type"
	// CodeStorageError marks a backend storage fault.
	CodeStorageError ErrorCode = "storage_error"
	// CodeInternalError marks any other unexpected failure.
	CodeInternalError ErrorCode = "internal_error"
)

// ErrorResponse is the API error body.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// Navigator handles one search query end to end.
type Navigator interface {
	Search(ctx context.Context, query, scope string, limit int) (domain.Response, error)
}

// TargetCatalog lists the navigable targets and validates entity types.
type TargetCatalog interface {
	AllTargets() []domain.NavigationTarget
	Describe(entityType string) (domain.NavigationTarget, error)
}

// Reindexer schedules embedding regeneration for an entity.
type Reindexer interface {
	Enqueue(ref domain.EntityRef)
}

// CachePurger drops all cached classifications.
type CachePurger interface {
	Purge(ctx context.Context) error
}

// Server hosts the API handlers.
type Server struct {
	navigator Navigator
	targets   TargetCatalog
	reindexer Reindexer
	cache     CachePurger
	health    *healthuc.Service
	logger    *zap.Logger
	maxLimit  int
}

// NewServer creates an HTTP API server.
func NewServer(
	navigator Navigator,
	targets TargetCatalog,
	reindexer Reindexer,
	cache CachePurger,
	health *healthuc.Service,
	maxLimit int,
	logger *zap.Logger,
) *Server {
	return &Server{
		navigator: navigator,
		targets:   targets,
		reindexer: reindexer,
		cache:     cache,
		health:    health,
		logger:    logger,
		maxLimit:  maxLimit,
	}
}

// Routes mounts the API handlers on the router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/api/v1/search", s.SearchQuery)
	r.Get("/api/v1/targets", s.ListTargets)
	r.Post("/api/v1/entities/{type}/{id}/reindex", s.ReindexEntity)
	r.Delete("/api/v1/cache", s.PurgeCache)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// searchRequest is the POST /api/v1/search body.
type searchRequest struct {
	Query string `json:"query"`
	Scope string `json:"scope,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// SearchQuery handles POST /api/v1/search.
func (s *Server) SearchQuery(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Limit < 0 || req.Limit > s.maxLimit {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "limit out of range")
		return
	}

	resp, err := s.navigator.Search(r.Context(), req.Query, req.Scope, req.Limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// targetResponse is one entry of GET /api/v1/targets.
type targetResponse struct {
	PageKey          string   `json:"page_key"`
	DisplayName      string   `json:"display_name"`
	Path             string   `json:"path"`
	EntityType       string   `json:"entity_type"`
	FilterableFields []string `json:"filterable_fields"`
	Searchable       bool     `json:"searchable"`
}

// ListTargets handles GET /api/v1/targets.
func (s *Server) ListTargets(w http.ResponseWriter, r *http.Request) {
	targets := s.targets.AllTargets()
	items := make([]targetResponse, len(targets))
	for i, t := range targets {
		items[i] = targetResponse{
			PageKey:          t.PageKey,
			DisplayName:      t.DisplayName,
			Path:             t.Path,
			EntityType:       t.EntityType,
			FilterableFields: t.FilterableFields,
			Searchable:       t.Searchable,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// ReindexEntity handles POST /api/v1/entities/{type}/{id}/reindex. The work
// is queued, not performed inline; 202 means scheduled, not done.
func (s *Server) ReindexEntity(w http.ResponseWriter, r *http.Request) {
	entityType := chi.URLParam(r, "type")
	id := chi.URLParam(r, "id")
	if entityType == "" || id == "" {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "entity type and id are required")
		return
	}

	if _, err := s.targets.Describe(entityType); err != nil {
		writeError(w, http.StatusNotFound, CodeUnknownEntityType, "unknown entity type: "+entityType)
		return
	}

	s.reindexer.Enqueue(domain.EntityRef{ID: id, Type: entityType})
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// PurgeCache handles DELETE /api/v1/cache. Drops every cached
// classification; intended for use after navigation target changes.
func (s *Server) PurgeCache(w http.ResponseWriter, r *http.Request) {
	if err := s.cache.Purge(r.Context()); err != nil {
		s.logger.Error("cache purge failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, CodeStorageError, "cache purge failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "purged"})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrStorageQuery) {
		s.logger.Error("storage query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, CodeStorageError, "storage query failed")
		return
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}
