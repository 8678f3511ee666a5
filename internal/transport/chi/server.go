package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	gochi "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/facetdex/internal/domain"
	facetsuc "github.com/kailas-cloud/facetdex/internal/usecase/facets"
	healthuc "github.com/kailas-cloud/facetdex/internal/usecase/health"
	rebuilduc "github.com/kailas-cloud/facetdex/internal/usecase/rebuild"
	searchuc "github.com/kailas-cloud/facetdex/internal/usecase/search"
	taxonomyuc "github.com/kailas-cloud/facetdex/internal/usecase/taxonomy"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server is the hand-rolled chi HTTP API.
type Server struct {
	search        *searchuc.Service
	facets        *facetsuc.Service
	taxonomy      *taxonomyuc.Service
	rebuild       *rebuilduc.Service
	health        *healthuc.Service
	queryTimeout  time.Duration
	adminTokens   []string
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	search *searchuc.Service,
	facets *facetsuc.Service,
	taxonomy *taxonomyuc.Service,
	rebuild *rebuilduc.Service,
	health *healthuc.Service,
	queryTimeout time.Duration,
	adminTokens []string,
	logger *zap.Logger,
) *Server {
	s := &Server{
		search:       search,
		facets:       facets,
		taxonomy:     taxonomy,
		rebuild:      rebuild,
		health:       health,
		queryTimeout: queryTimeout,
		adminTokens:  adminTokens,
		logger:       logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrNoGeneration, http.StatusServiceUnavailable, "no_generation"),
		sentinelHandler(domain.ErrQueryTimeout, http.StatusGatewayTimeout, "query_timeout"),
		sentinelHandler(domain.ErrRebuildInProgress, http.StatusConflict, "rebuild_in_progress"),
		sentinelHandler(domain.ErrRebuildThrottled, http.StatusTooManyRequests, "rebuild_throttled"),
		sentinelHandler(domain.ErrUnknownNode, http.StatusNotFound, "unknown_node"),
		sentinelHandler(domain.ErrSourceUnavailable, http.StatusBadGateway, "source_unavailable"),
	}
	return s
}

// Routes mounts every endpoint on the router. Admin routes carry bearer auth.
func (s *Server) Routes(r gochi.Router) {
	r.Route("/api/v1", func(r gochi.Router) {
		r.Post("/search", s.Search)
		r.Post("/facets", s.Facets)
		r.Get("/taxonomy", s.Taxonomy)
		r.Get("/taxonomy/{code}", s.TaxonomyNode)
		r.Route("/admin", func(r gochi.Router) {
			r.Use(BearerAuthMiddleware(s.adminTokens))
			r.Post("/rebuild", s.Rebuild)
		})
	})
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// Search handles POST /api/v1/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}

	q := req.toQuery(s.logger)

	ctx, cancel := s.queryContext(r.Context())
	defer cancel()

	page, err := s.search.Search(ctx, q)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, searchResponseFrom(page, q))
}

// Facets handles POST /api/v1/facets. Accepts the search request shape;
// sort and pagination are ignored.
func (s *Server) Facets(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}

	q := req.toQuery(s.logger)

	ctx, cancel := s.queryContext(r.Context())
	defer cancel()

	f, err := s.facets.Compute(ctx, q)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, facetsResponseFrom(f))
}

// Taxonomy handles GET /api/v1/taxonomy.
func (s *Server) Taxonomy(w http.ResponseWriter, r *http.Request) {
	nodes, err := s.taxonomy.Tree()
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	resp := taxonomyResponse{Nodes: make([]nodeDTO, len(nodes))}
	for i, n := range nodes {
		resp.Nodes[i] = nodeFrom(n)
	}
	writeJSON(w, http.StatusOK, resp)
}

// TaxonomyNode handles GET /api/v1/taxonomy/{code}.
func (s *Server) TaxonomyNode(w http.ResponseWriter, r *http.Request) {
	node, err := s.taxonomy.Node(gochi.URLParam(r, "code"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nodeFrom(node))
}

// Rebuild handles POST /api/v1/admin/rebuild.
func (s *Server) Rebuild(w http.ResponseWriter, r *http.Request) {
	report, err := s.rebuild.Rebuild(r.Context())
	if err != nil {
		if report.GenerationID != "" {
			// The rebuild ran and failed; return the partial report.
			writeJSON(w, http.StatusInternalServerError, rebuildResponseFrom(report))
			return
		}
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rebuildResponseFrom(report))
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

func (s *Server) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}

func rebuildResponseFrom(report rebuilduc.Report) rebuildResponse {
	resp := rebuildResponse{
		GenerationID:     report.GenerationID,
		Status:           report.Status,
		Items:            report.Items,
		PhaseDurationsMs: make(map[string]int64, len(report.PhaseDurations)),
		UnknownCodes:     report.UnknownCodes,
	}
	for phase, d := range report.PhaseDurations {
		resp.PhaseDurationsMs[phase] = d.Milliseconds()
	}
	for _, dr := range report.DeadRules {
		resp.DeadRules = append(resp.DeadRules, deadRuleDTO{
			Name:           dr.Name,
			Priority:       dr.Priority,
			AttrKeyMissing: dr.AttrKeyMissing,
		})
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrNoGeneration,
		domain.ErrQueryTimeout,
		domain.ErrRebuildInProgress,
		domain.ErrRebuildThrottled,
		domain.ErrUnknownNode,
		domain.ErrSourceUnavailable,
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
	writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
}
