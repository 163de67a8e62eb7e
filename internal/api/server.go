// Package api provides the HTTP surface of the record store: list,
// search and paginate records, create records, the derived stats
// endpoint, and health and metrics endpoints. These layers are
// stateless glue over the cache core; coherence lives below them.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	stderr "errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/recordstore/recordstore/internal/cache"
	"github.com/recordstore/recordstore/pkg/errors"
	"github.com/recordstore/recordstore/pkg/health"
	"github.com/recordstore/recordstore/pkg/types"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// ServerConfig configures the API server.
type ServerConfig struct {
	// Address to bind the server to (e.g., "localhost:8080")
	Address string `yaml:"address" json:"address"`

	// ReadTimeout is the maximum duration for reading the entire request
	ReadTimeout time.Duration `yaml:"read_timeout" json:"read_timeout"`

	// WriteTimeout is the maximum duration for writing the response
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`

	// IdleTimeout is the maximum duration to wait for the next request
	IdleTimeout time.Duration `yaml:"idle_timeout" json:"idle_timeout"`

	// EnableCORS enables Cross-Origin Resource Sharing
	EnableCORS bool `yaml:"enable_cors" json:"enable_cors"`
}

// DefaultServerConfig returns default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Address:      "localhost:8080",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// HTTPMetrics records served requests; nil disables recording.
type HTTPMetrics interface {
	RecordHTTPRequest(method, path string, status int, duration time.Duration)
}

// Server serves the record store HTTP API.
type Server struct {
	httpServer     *http.Server
	primary        *cache.Primary
	derived        *cache.Derived
	tracker        *health.Tracker
	metricsHandler http.Handler
	httpMetrics    HTTPMetrics
	logger         *slog.Logger
	config         ServerConfig
}

// NewServer creates the API server over the cache layer. metricsHandler
// may be nil to disable the /metrics endpoint; httpMetrics may be nil.
func NewServer(config ServerConfig, primary *cache.Primary, derived *cache.Derived,
	tracker *health.Tracker, metricsHandler http.Handler, httpMetrics HTTPMetrics,
	logger *slog.Logger) *Server {

	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		primary:        primary,
		derived:        derived,
		tracker:        tracker,
		metricsHandler: metricsHandler,
		httpMetrics:    httpMetrics,
		logger:         logger,
		config:         config,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/records", s.handleRecords)
	mux.HandleFunc("/records/stats", s.handleStats)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/health/live", s.handleLiveness)
	mux.HandleFunc("/health/ready", s.handleReadiness)
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}

	handler := s.loggingMiddleware(mux)
	if config.EnableCORS {
		handler = s.corsMiddleware(handler)
	}

	s.httpServer = &http.Server{
		Addr:         config.Address,
		Handler:      handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return s
}

// Handler returns the server's root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins serving in a background goroutine.
func (s *Server) Start() error {
	s.logger.Info("api server starting", "address", s.config.Address)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("api server error", "error", err)
		}
	}()
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("api server stopping")
	return s.httpServer.Shutdown(ctx)
}

// handleRecords dispatches /records by method.
func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleList(w, r)
	case http.MethodPost:
		s.handleCreate(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		s.writeError(w, errors.New(errors.ErrCodeInvalidRequest, "method not allowed").
			WithOperation(r.Method), http.StatusMethodNotAllowed)
	}
}

// listResponse is the paginated list payload.
type listResponse struct {
	Records types.Collection `json:"records"`
	Total   int              `json:"total"`
	Page    int              `json:"page"`
	PerPage int              `json:"per_page"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	collection, err := s.primary.Read(r.Context())
	if err != nil {
		if stderr.Is(err, errors.ErrStoreNotExist) {
			// No collection persisted yet reads as an empty one.
			collection = types.Collection{}
		} else {
			s.writeError(w, err, 0)
			return
		}
	}

	query := r.URL.Query()
	filtered := filterRecords(collection, query.Get("q"))

	page, perPage, err := parsePagination(query.Get("page"), query.Get("per_page"))
	if err != nil {
		s.writeError(w, err, 0)
		return
	}

	start := (page - 1) * perPage
	end := start + perPage
	if start > len(filtered) {
		start = len(filtered)
	}
	if end > len(filtered) {
		end = len(filtered)
	}

	s.writeJSON(w, http.StatusOK, listResponse{
		Records: filtered[start:end],
		Total:   len(filtered),
		Page:    page,
		PerPage: perPage,
	})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()

	var rec types.Record
	if err := dec.Decode(&rec); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidRequest, "request body must be a JSON object", err), 0)
		return
	}
	if rec == nil {
		s.writeError(w, errors.New(errors.ErrCodeInvalidRequest, "request body must be a JSON object"), 0)
		return
	}

	collection, token, err := s.primary.ReadWithToken(r.Context())
	if err != nil {
		if stderr.Is(err, errors.ErrStoreNotExist) {
			// First record creates the collection; there is no observed
			// token to guard, so fall back to a plain write.
			s.createFirst(w, r, rec)
			return
		}
		s.writeError(w, err, 0)
		return
	}

	if id, ok := rec.ID(); ok {
		if collection.HasID(id) {
			s.writeError(w, errors.Newf(errors.ErrCodeDuplicateID, "record id %d already exists", id), 0)
			return
		}
	} else {
		rec["id"] = json.Number(strconv.FormatInt(collection.MaxID()+1, 10))
	}

	updated := append(append(types.Collection{}, collection...), rec)
	if err := s.primary.WriteIf(r.Context(), updated, token); err != nil {
		s.writeError(w, err, 0)
		return
	}
	s.writeJSON(w, http.StatusCreated, rec)
}

// createFirst writes the very first record into a store that does not
// exist yet.
func (s *Server) createFirst(w http.ResponseWriter, r *http.Request, rec types.Record) {
	if _, ok := rec.ID(); !ok {
		rec["id"] = json.Number("1")
	}
	if err := s.primary.Write(r.Context(), types.Collection{rec}); err != nil {
		s.writeError(w, err, 0)
		return
	}
	s.writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		s.writeError(w, errors.New(errors.ErrCodeInvalidRequest, "method not allowed"),
			http.StatusMethodNotAllowed)
		return
	}

	agg, err := s.derived.Get(r.Context())
	if err != nil {
		s.writeError(w, err, 0)
		return
	}
	s.writeJSON(w, http.StatusOK, agg)
}

// healthResponse is the /health payload.
type healthResponse struct {
	Status     string                   `json:"status"`
	Components []health.ComponentStatus `json:"components,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	statuses := s.tracker.Check(r.Context())
	state := s.tracker.OverallState()

	code := http.StatusOK
	if state == health.StateUnavailable {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, healthResponse{
		Status:     state.String(),
		Components: statuses,
	})
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if s.tracker.OverallState() == health.StateUnavailable {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// filterRecords returns the records whose string fields contain the
// query, case-insensitively. An empty query matches everything.
func filterRecords(c types.Collection, q string) types.Collection {
	if q == "" {
		return c
	}
	q = strings.ToLower(q)

	filtered := make(types.Collection, 0, len(c))
	for _, rec := range c {
		for _, v := range rec {
			str, ok := v.(string)
			if ok && strings.Contains(strings.ToLower(str), q) {
				filtered = append(filtered, rec)
				break
			}
		}
	}
	return filtered
}

// parsePagination validates page and per_page parameters.
func parsePagination(pageStr, perPageStr string) (page, perPage int, err error) {
	page, perPage = 1, defaultPerPage

	if pageStr != "" {
		page, err = strconv.Atoi(pageStr)
		if err != nil || page < 1 {
			return 0, 0, errors.Newf(errors.ErrCodeInvalidRequest, "invalid page: %q", pageStr)
		}
	}
	if perPageStr != "" {
		perPage, err = strconv.Atoi(perPageStr)
		if err != nil || perPage < 1 {
			return 0, 0, errors.Newf(errors.ErrCodeInvalidRequest, "invalid per_page: %q", perPageStr)
		}
		if perPage > maxPerPage {
			perPage = maxPerPage
		}
	}
	return page, perPage, nil
}

// errorBody is the error payload shape.
type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// writeError maps an error onto its HTTP status and writes the error
// payload. statusOverride forces a status when non-zero.
func (s *Server) writeError(w http.ResponseWriter, err error, statusOverride int) {
	status := http.StatusInternalServerError
	code := "INTERNAL"
	message := "internal error"

	var rsErr *errors.RecordStoreError
	if stderr.As(err, &rsErr) {
		status = rsErr.HTTPStatus
		code = string(rsErr.Code)
		message = rsErr.Message
	}
	if statusOverride != 0 {
		status = statusOverride
	}

	if status >= 500 {
		s.logger.Error("request failed", "error", err)
	}

	var body errorBody
	body.Error.Code = code
	body.Error.Message = message
	s.writeJSON(w, status, body)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		s.logger.Error("encoding response", "error", err)
		http.Error(w, `{"error":{"code":"INTERNAL","message":"encoding response"}}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// statusRecorder captures the response status for middleware.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// loggingMiddleware logs each request and feeds the HTTP metrics.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		s.logger.Debug("request served",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", duration)
		if s.httpMetrics != nil {
			s.httpMetrics.RecordHTTPRequest(r.Method, r.URL.Path, rec.status, duration)
		}
	})
}

// corsMiddleware applies permissive CORS headers when enabled.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
