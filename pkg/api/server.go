// Package api exposes the skill graph over HTTP. Read endpoints answer from
// the last published snapshot; build, refresh and remove go through the
// service writer and publish before responding.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skillgraph/pkg/graphstore"
	"github.com/jingkaihe/skillgraph/pkg/logger"
	"github.com/jingkaihe/skillgraph/pkg/presenter"
	"github.com/jingkaihe/skillgraph/pkg/query"
	"github.com/jingkaihe/skillgraph/pkg/service"
	graphtypes "github.com/jingkaihe/skillgraph/pkg/types/graph"
)

// Server serves the graph API over HTTP
type Server struct {
	router  *mux.Router
	service *service.Service
	config  *ServerConfig
	server  *http.Server
}

// ServerConfig holds the configuration for the HTTP server
type ServerConfig struct {
	Host string
	Port int
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Host == "" {
		return errors.New("host cannot be empty")
	}
	if c.Port < 1 || c.Port > 65535 {
		return errors.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	return nil
}

// NewServer creates an API server over an existing graph service. The
// service's lifecycle stays with the caller; Close only stops the listener.
func NewServer(config *ServerConfig, svc *service.Service) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid server configuration")
	}
	if svc == nil {
		return nil, errors.New("server requires a graph service")
	}

	s := &Server{
		router:  mux.NewRouter(),
		service: svc,
		config:  config,
	}
	s.setupRoutes()
	return s, nil
}

// setupRoutes configures all the HTTP routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/stats", s.handleStats).Methods("GET")
	api.HandleFunc("/graph", s.handleGraph).Methods("GET")
	api.HandleFunc("/skills", s.handleListSkills).Methods("GET")
	api.HandleFunc("/skills/{id}", s.handleGetSkill).Methods("GET")
	api.HandleFunc("/skills/{id}", s.handleRemoveSkill).Methods("DELETE")
	api.HandleFunc("/skills/{id}/neighbors", s.handleNeighbors).Methods("GET")
	api.HandleFunc("/skills/{id}/refresh", s.handleRefreshSkill).Methods("POST")
	api.HandleFunc("/edges", s.handleEdges).Methods("GET")
	api.HandleFunc("/path", s.handlePath).Methods("GET")
	api.HandleFunc("/leverage/top", s.handleTopLeverage).Methods("GET")
	api.HandleFunc("/gaps", s.handleGaps).Methods("GET")
	api.HandleFunc("/gaps/isolated", s.handleIsolatedSkills).Methods("GET")
	api.HandleFunc("/gaps/unused", s.handleUnusedSkills).Methods("GET")
	api.HandleFunc("/clusters", s.handleClusters).Methods("GET")
	api.HandleFunc("/clusters/{tag}", s.handleClusterByTag).Methods("GET")
	api.HandleFunc("/build", s.handleBuild).Methods("POST")

	s.router.HandleFunc("/healthz", s.handleHealthz).Methods("GET")

	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.corsMiddleware)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, statusCode: 200}

		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		logger.G(r.Context()).WithFields(map[string]any{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rw.statusCode,
			"duration":    duration,
			"remote_addr": r.RemoteAddr,
		}).Info("HTTP request")
	})
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// query returns an engine over the published snapshot, writing a 409 when
// nothing has been built yet.
func (s *Server) query(w http.ResponseWriter) (*query.Engine, bool) {
	q, err := s.service.Query()
	if err != nil {
		s.writeServiceError(w, "graph not available", err)
		return nil, false
	}
	return q, true
}

// API Handlers

// handleStats handles GET /api/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	q, ok := s.query(w)
	if !ok {
		return
	}
	s.writeJSONResponse(w, q.Stats())
}

// handleGraph handles GET /api/graph
func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	q, ok := s.query(w)
	if !ok {
		return
	}
	s.writeJSONResponse(w, q.Document())
}

// handleListSkills handles GET /api/skills with optional phase and tag filters
func (s *Server) handleListSkills(w http.ResponseWriter, r *http.Request) {
	q, ok := s.query(w)
	if !ok {
		return
	}

	params := r.URL.Query()
	nodes := q.Nodes()

	if phaseStr := params.Get("phase"); phaseStr != "" {
		phase, err := graphtypes.ParsePhase(phaseStr)
		if err != nil {
			s.writeErrorResponse(w, http.StatusBadRequest, "invalid phase parameter", err)
			return
		}
		nodes = q.NodesByPhase(phase)
	}
	if tag := params.Get("tag"); tag != "" {
		filtered := nodes[:0:0]
		for _, node := range nodes {
			if node.HasTag(tag) {
				filtered = append(filtered, node)
			}
		}
		nodes = filtered
	}

	s.writeJSONResponse(w, map[string]any{
		"skills": nodes,
		"count":  len(nodes),
	})
}

// handleGetSkill handles GET /api/skills/{id}
func (s *Server) handleGetSkill(w http.ResponseWriter, r *http.Request) {
	q, ok := s.query(w)
	if !ok {
		return
	}

	id := mux.Vars(r)["id"]
	detail, err := q.Node(id)
	if err != nil {
		s.writeServiceError(w, "failed to get skill", err)
		return
	}
	s.writeJSONResponse(w, detail)
}

// handleNeighbors handles GET /api/skills/{id}/neighbors
func (s *Server) handleNeighbors(w http.ResponseWriter, r *http.Request) {
	q, ok := s.query(w)
	if !ok {
		return
	}

	params := r.URL.Query()
	dir, err := query.ParseDirection(params.Get("direction"))
	if err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "invalid direction parameter", err)
		return
	}
	var typ *graphtypes.EdgeType
	if typeStr := params.Get("type"); typeStr != "" {
		parsed, err := graphtypes.ParseEdgeType(typeStr)
		if err != nil {
			s.writeErrorResponse(w, http.StatusBadRequest, "invalid type parameter", err)
			return
		}
		typ = &parsed
	}

	id := mux.Vars(r)["id"]
	neighbors, err := q.Neighbors(id, dir, typ)
	if err != nil {
		s.writeServiceError(w, "failed to get neighbors", err)
		return
	}
	s.writeJSONResponse(w, map[string]any{
		"skillId":   id,
		"neighbors": neighbors,
		"count":     len(neighbors),
	})
}

// handleEdges handles GET /api/edges with an optional type filter
func (s *Server) handleEdges(w http.ResponseWriter, r *http.Request) {
	q, ok := s.query(w)
	if !ok {
		return
	}

	edges := q.Edges()
	if typeStr := r.URL.Query().Get("type"); typeStr != "" {
		typ, err := graphtypes.ParseEdgeType(typeStr)
		if err != nil {
			s.writeErrorResponse(w, http.StatusBadRequest, "invalid type parameter", err)
			return
		}
		edges = q.EdgesByType(typ)
	}

	s.writeJSONResponse(w, map[string]any{
		"edges": edges,
		"count": len(edges),
	})
}

// handlePath handles GET /api/path
func (s *Server) handlePath(w http.ResponseWriter, r *http.Request) {
	q, ok := s.query(w)
	if !ok {
		return
	}

	params := r.URL.Query()
	from := params.Get("from")
	to := params.Get("to")
	if from == "" || to == "" {
		s.writeErrorResponse(w, http.StatusBadRequest, "from and to parameters are required", nil)
		return
	}

	path, found := q.FindPath(from, to)
	s.writeJSONResponse(w, map[string]any{
		"from":  from,
		"to":    to,
		"path":  path,
		"found": found,
	})
}

// handleTopLeverage handles GET /api/leverage/top
func (s *Server) handleTopLeverage(w http.ResponseWriter, r *http.Request) {
	q, ok := s.query(w)
	if !ok {
		return
	}

	n := 10
	if nStr := r.URL.Query().Get("n"); nStr != "" {
		parsed, err := strconv.Atoi(nStr)
		if err != nil || parsed < 1 {
			s.writeErrorResponse(w, http.StatusBadRequest, "n must be a positive integer", err)
			return
		}
		n = parsed
	}

	s.writeJSONResponse(w, map[string]any{
		"skills": q.HighLeverageSkills(n),
	})
}

// handleGaps handles GET /api/gaps
func (s *Server) handleGaps(w http.ResponseWriter, r *http.Request) {
	q, ok := s.query(w)
	if !ok {
		return
	}
	s.writeJSONResponse(w, q.Gaps())
}

// handleIsolatedSkills handles GET /api/gaps/isolated
func (s *Server) handleIsolatedSkills(w http.ResponseWriter, r *http.Request) {
	q, ok := s.query(w)
	if !ok {
		return
	}
	isolated := q.IsolatedSkills()
	s.writeJSONResponse(w, map[string]any{
		"skills": isolated,
		"count":  len(isolated),
	})
}

// handleUnusedSkills handles GET /api/gaps/unused
func (s *Server) handleUnusedSkills(w http.ResponseWriter, r *http.Request) {
	q, ok := s.query(w)
	if !ok {
		return
	}

	days := 0
	if daysStr := r.URL.Query().Get("days"); daysStr != "" {
		parsed, err := strconv.Atoi(daysStr)
		if err != nil || parsed < 1 {
			s.writeErrorResponse(w, http.StatusBadRequest, "days must be a positive integer", err)
			return
		}
		days = parsed
	}

	unused := q.UnusedSkills(days)
	s.writeJSONResponse(w, map[string]any{
		"skills": unused,
		"count":  len(unused),
	})
}

// handleClusters handles GET /api/clusters
func (s *Server) handleClusters(w http.ResponseWriter, r *http.Request) {
	q, ok := s.query(w)
	if !ok {
		return
	}
	clusters := q.Clusters()
	s.writeJSONResponse(w, map[string]any{
		"clusters": clusters,
		"count":    len(clusters),
	})
}

// handleClusterByTag handles GET /api/clusters/{tag}
func (s *Server) handleClusterByTag(w http.ResponseWriter, r *http.Request) {
	q, ok := s.query(w)
	if !ok {
		return
	}

	tag := mux.Vars(r)["tag"]
	c, err := q.ClusterByTag(tag)
	if err != nil {
		s.writeServiceError(w, "failed to get cluster", err)
		return
	}
	s.writeJSONResponse(w, c)
}

// handleBuild handles POST /api/build
func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	snap, err := s.service.Build(r.Context())
	if err != nil {
		s.writeErrorResponse(w, http.StatusInternalServerError, "build failed", err)
		return
	}
	s.writeJSONResponse(w, query.New(snap).Stats())
}

// handleRefreshSkill handles POST /api/skills/{id}/refresh
func (s *Server) handleRefreshSkill(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	snap, err := s.service.RefreshNode(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, "refresh failed", err)
		return
	}

	detail, err := query.New(snap).Node(id)
	if err != nil {
		s.writeServiceError(w, "failed to read refreshed skill", err)
		return
	}
	s.writeJSONResponse(w, detail)
}

// handleRemoveSkill handles DELETE /api/skills/{id}
func (s *Server) handleRemoveSkill(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := s.service.RemoveNode(r.Context(), id); err != nil {
		s.writeServiceError(w, "remove failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleHealthz handles GET /healthz
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSONResponse(w, map[string]any{"status": "ok"})
}

// Utility methods

// writeJSONResponse writes a JSON response
func (s *Server) writeJSONResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.G(context.TODO()).WithError(err).Error("failed to encode JSON response")
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// writeServiceError maps domain errors onto HTTP statuses: absent skills and
// clusters answer 404, an unbuilt graph answers 409, everything else is a 500.
func (s *Server) writeServiceError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, graphstore.ErrNotFound):
		s.writeErrorResponse(w, http.StatusNotFound, message, err)
	case errors.Is(err, service.ErrNotBuilt):
		s.writeErrorResponse(w, http.StatusConflict, message, err)
	default:
		s.writeErrorResponse(w, http.StatusInternalServerError, message, err)
	}
}

// writeErrorResponse writes an error response
func (s *Server) writeErrorResponse(w http.ResponseWriter, statusCode int, message string, err error) {
	if err != nil {
		logger.G(context.TODO()).WithError(err).Error(message)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := map[string]any{
		"error":   message,
		"status":  statusCode,
		"success": false,
	}
	if err != nil {
		response["detail"] = err.Error()
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.G(context.TODO()).WithError(err).Error("failed to encode error response")
	}
}

// Handler exposes the configured router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until the context is cancelled
func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:    address,
		Handler: s.router,
	}

	presenter.Info(fmt.Sprintf("Starting graph API server on http://%s", address))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.G(ctx).WithError(err).Error("graph API server error")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// Stop stops the HTTP server
func (s *Server) Stop() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}
