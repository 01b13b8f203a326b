package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/phenodex/internal/domain"
	healthuc "github.com/kailas-cloud/phenodex/internal/usecase/health"
	queryuc "github.com/kailas-cloud/phenodex/internal/usecase/query"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeBadRequest       = "bad_request"
	CodeValidationFailed = "validation_failed"
	CodeNoValidEmbedding = "no_valid_embeddings"
	CodeNotFound         = "not_found"
	CodeUnauthorized     = "unauthorized"
	CodeInternalError    = "internal_error"
)

// Querier is the consumer interface for the query service (ISP).
type Querier interface {
	TopK(ctx context.Context, phenotypes []string, k int) ([]domain.Ranked, error)
	All(ctx context.Context, phenotypes []string) ([]domain.Ranked, error)
	TopKWeighted(ctx context.Context, weights map[string]float64, k int) ([]domain.Ranked, error)
	AllWeighted(ctx context.Context, weights map[string]float64) ([]domain.Ranked, error)
}

// HealthChecker is the consumer interface for the health service (ISP).
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// QueryRequest is the body of POST /v1/query.
type QueryRequest struct {
	Phenotypes []string `json:"phenotypes"`
	K          *int     `json:"k,omitempty"`
	All        bool     `json:"all"`
	Weighted   bool     `json:"weighted"`
	// Weights overrides the equal weighting of Phenotypes for weighted queries.
	Weights map[string]float64 `json:"weights,omitempty"`
}

// QueryResultItem is one ranked disease.
type QueryResultItem struct {
	DiseaseID string  `json:"disease_id"`
	Name      string  `json:"name,omitempty"`
	Distance  float64 `json:"distance"`
}

// QueryResponse is the body returned by POST /v1/query.
type QueryResponse struct {
	Items []QueryResultItem `json:"items"`
	Total int               `json:"total"`
}

// HealthResponse is the body returned by GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server exposes the query service over HTTP.
type Server struct {
	query         Querier
	health        HealthChecker
	defaultK      int
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. defaultK is used when a request omits k.
func NewServer(query Querier, health HealthChecker, defaultK int, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultK <= 0 {
		defaultK = 10
	}
	s := &Server{
		query:    query,
		health:   health,
		defaultK: defaultK,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrNoValidEmbeddings, http.StatusBadRequest, CodeNoValidEmbedding),
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
	}
	return s
}

// Routes registers the API endpoints on r.
func (s *Server) Routes(r chi.Router) {
	r.Post("/v1/query", s.Query)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// Query handles POST /v1/query.
func (s *Server) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Phenotypes) == 0 && len(req.Weights) == 0 {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "At least one phenotype is required")
		return
	}

	k := s.defaultK
	if req.K != nil {
		k = *req.K
	}

	var (
		ranked []domain.Ranked
		err    error
	)
	ctx := r.Context()
	switch {
	case req.Weighted:
		weights := req.Weights
		if len(weights) == 0 {
			weights = queryuc.EqualWeights(req.Phenotypes)
		}
		if req.All {
			ranked, err = s.query.AllWeighted(ctx, weights)
		} else {
			ranked, err = s.query.TopKWeighted(ctx, weights, k)
		}
	case req.All:
		ranked, err = s.query.All(ctx, req.Phenotypes)
	default:
		ranked, err = s.query.TopK(ctx, req.Phenotypes, k)
	}
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]QueryResultItem, len(ranked))
	for i, rk := range ranked {
		items[i] = QueryResultItem{DiseaseID: rk.DiseaseID, Name: rk.Name, Distance: rk.Distance}
	}
	writeJSON(w, http.StatusOK, QueryResponse{Items: items, Total: len(items)})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrNoValidEmbeddings,
		domain.ErrInvalidQuery,
		domain.ErrNotFound,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
