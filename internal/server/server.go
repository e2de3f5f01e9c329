package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/voyagen/streamvault/internal/config"
	"github.com/voyagen/streamvault/internal/epg"
	"github.com/voyagen/streamvault/internal/metrics"
	"github.com/voyagen/streamvault/internal/models"
	"github.com/voyagen/streamvault/internal/proxy"
	"github.com/voyagen/streamvault/internal/store"
	catsync "github.com/voyagen/streamvault/internal/sync"
	"github.com/voyagen/streamvault/internal/upstream"
)

// Server holds dependencies for the HTTP API.
type Server struct {
	store store.Store
	cfg   *config.Config
	orch  *catsync.Orchestrator
	guide *epg.Service
	proxy *proxy.Proxy
	log   *logrus.Logger
	mux   *http.ServeMux
}

// New creates a Server and registers routes.
func New(s store.Store, cfg *config.Config, orch *catsync.Orchestrator, guide *epg.Service, p *proxy.Proxy, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	srv := &Server{store: s, cfg: cfg, orch: orch, guide: guide, proxy: p, log: log, mux: http.NewServeMux()}
	srv.routes()
	return srv
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.Handle("GET /metrics", metrics.Handler())

	// Providers
	s.mux.HandleFunc("GET /api/providers", s.handleListProviders)
	s.mux.HandleFunc("POST /api/providers", s.handleAddProvider)
	s.mux.HandleFunc("GET /api/providers/{id}", s.handleGetProvider)
	s.mux.HandleFunc("DELETE /api/providers/{id}", s.handleDeleteProvider)
	s.mux.HandleFunc("POST /api/providers/{id}/sync", s.handleSyncProvider)
	s.mux.HandleFunc("POST /api/providers/{id}/epg/sync", s.handleSyncGuide)

	// EPG reads
	s.mux.HandleFunc("GET /api/epg/now-next", s.handleNowNext)
	s.mux.HandleFunc("GET /api/epg/current", s.handleCurrent)

	// Stream proxy
	s.mux.Handle("GET /proxy", s.proxy)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe starts the HTTP server on the configured port.
// It blocks until the server is shut down or ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := ":" + s.cfg.ServerPort
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      withCORS(s.withLogging(s)),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.log.WithError(err).Error("server shutdown")
		}
	}()

	s.log.WithField("addr", addr).Info("listening")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("ListenAndServe: %w", err)
	}
	return nil
}

// --- handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- provider handlers ---

func (s *Server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	providers, err := s.store.ListProviders(r.Context())
	if err != nil {
		s.writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if providers == nil {
		providers = []models.Provider{}
	}
	s.writeJSON(w, http.StatusOK, providers)
}

type addProviderRequest struct {
	Name                   string `json:"name"`
	BaseURL                string `json:"base_url"`
	Username               string `json:"username"`
	Password               string `json:"password"`
	EPGSyncIntervalSeconds int    `json:"epg_sync_interval_seconds"`
}

func (s *Server) handleAddProvider(w http.ResponseWriter, r *http.Request) {
	var req addProviderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
		return
	}
	if req.BaseURL == "" || req.Username == "" || req.Password == "" {
		s.writeErr(w, http.StatusBadRequest, fmt.Errorf("base_url, username and password are required"))
		return
	}
	if u, err := url.ParseRequestURI(req.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		s.writeErr(w, http.StatusBadRequest, fmt.Errorf("base_url must be a valid http or https URL"))
		return
	}
	if req.Name == "" {
		req.Name = req.Username
	}

	p := &models.Provider{
		Name:                   req.Name,
		BaseURL:                strings.TrimRight(req.BaseURL, "/"),
		Username:               req.Username,
		Password:               req.Password,
		SyncStatus:             models.SyncStatusIdle,
		EPGSyncIntervalSeconds: req.EPGSyncIntervalSeconds,
	}
	id, err := s.store.CreateProvider(r.Context(), p)
	if err != nil {
		s.writeErr(w, http.StatusInternalServerError, err)
		return
	}
	p.ID = id
	s.writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleGetProvider(w http.ResponseWriter, r *http.Request) {
	providerID, err := parseID(r, "id")
	if err != nil {
		s.writeErr(w, http.StatusBadRequest, err)
		return
	}

	p, err := s.store.GetProvider(r.Context(), providerID)
	if err != nil {
		if errors.Is(err, upstream.ErrNotFound) {
			s.writeErr(w, http.StatusNotFound, fmt.Errorf("provider %d not found", providerID))
			return
		}
		s.writeErr(w, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeleteProvider(w http.ResponseWriter, r *http.Request) {
	providerID, err := parseID(r, "id")
	if err != nil {
		s.writeErr(w, http.StatusBadRequest, err)
		return
	}

	if err := s.store.DeleteProvider(r.Context(), providerID); err != nil {
		if errors.Is(err, upstream.ErrNotFound) {
			s.writeErr(w, http.StatusNotFound, fmt.Errorf("provider %d not found", providerID))
			return
		}
		s.writeErr(w, http.StatusInternalServerError, err)
		return
	}

	writeNoContent(w)
}

// handleSyncProvider kicks off a full catalog sync in the background. A full
// catalog can take many minutes, far exceeding the HTTP write timeout, so the
// run gets a detached context and the response is 202; progress is observable
// through the provider's sync_status and the published events.
func (s *Server) handleSyncProvider(w http.ResponseWriter, r *http.Request) {
	providerID, err := parseID(r, "id")
	if err != nil {
		s.writeErr(w, http.StatusBadRequest, err)
		return
	}

	opts := catsync.Options{DetailMode: catsync.DetailSkip}
	switch mode := r.URL.Query().Get("detail"); mode {
	case "", "skip":
	case "immediate":
		opts.DetailMode = catsync.DetailImmediate
	case "enqueue":
		opts.DetailMode = catsync.DetailEnqueue
	default:
		s.writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid detail mode: %s (use skip, immediate or enqueue)", mode))
		return
	}
	if v := r.URL.Query().Get("detail_batch_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid detail_batch_size: %s", v))
			return
		}
		opts.DetailBatchSize = n
	}

	p, err := s.store.GetProvider(r.Context(), providerID)
	if err != nil {
		if errors.Is(err, upstream.ErrNotFound) {
			s.writeErr(w, http.StatusNotFound, fmt.Errorf("provider %d not found", providerID))
			return
		}
		s.writeErr(w, http.StatusInternalServerError, err)
		return
	}

	go func() {
		if _, err := s.orch.Run(context.Background(), providerID, opts); err != nil {
			if errors.Is(err, upstream.ErrSyncRunning) {
				s.log.WithField("provider_id", providerID).Warn("sync already running")
				return
			}
			s.log.WithError(err).WithField("provider_id", providerID).Error("sync failed")
		}
	}()

	s.writeJSON(w, http.StatusAccepted, map[string]any{
		"provider_id": providerID,
		"name":        p.Name,
		"detail":      string(opts.DetailMode),
		"started":     true,
	})
}

// handleSyncGuide refreshes the provider's EPG outside the regular schedule.
func (s *Server) handleSyncGuide(w http.ResponseWriter, r *http.Request) {
	providerID, err := parseID(r, "id")
	if err != nil {
		s.writeErr(w, http.StatusBadRequest, err)
		return
	}
	if _, err := s.store.GetProvider(r.Context(), providerID); err != nil {
		if errors.Is(err, upstream.ErrNotFound) {
			s.writeErr(w, http.StatusNotFound, fmt.Errorf("provider %d not found", providerID))
			return
		}
		s.writeErr(w, http.StatusInternalServerError, err)
		return
	}

	go func() {
		if _, err := s.guide.SyncProvider(context.Background(), providerID); err != nil {
			s.log.WithError(err).WithField("provider_id", providerID).Error("guide sync failed")
		}
	}()

	s.writeJSON(w, http.StatusAccepted, map[string]any{
		"provider_id": providerID,
		"started":     true,
	})
}

// --- EPG handlers ---

func (s *Server) handleNowNext(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	providerID, err := parseQueryID(q.Get("provider_id"))
	if err != nil {
		s.writeErr(w, http.StatusBadRequest, err)
		return
	}
	channelID := q.Get("channel_id")
	if channelID == "" {
		s.writeErr(w, http.StatusBadRequest, fmt.Errorf("channel_id is required"))
		return
	}

	nn, err := s.guide.NowNext(r.Context(), providerID, channelID)
	if err != nil {
		s.writeErr(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, nn)
}

func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	providerID, err := parseQueryID(q.Get("provider_id"))
	if err != nil {
		s.writeErr(w, http.StatusBadRequest, err)
		return
	}
	raw := q.Get("channels")
	if raw == "" {
		s.writeErr(w, http.StatusBadRequest, fmt.Errorf("channels is required"))
		return
	}
	channels := make([]string, 0, 8)
	for _, c := range strings.Split(raw, ",") {
		if c = strings.TrimSpace(c); c != "" {
			channels = append(channels, c)
		}
	}
	if len(channels) == 0 {
		s.writeErr(w, http.StatusBadRequest, fmt.Errorf("channels is required"))
		return
	}

	current, err := s.guide.Current(r.Context(), providerID, channels)
	if err != nil {
		s.writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if current == nil {
		current = map[string]models.EPGProgram{}
	}
	s.writeJSON(w, http.StatusOK, current)
}

// --- middleware ---

// withCORS adds CORS headers to every response and handles preflight OPTIONS requests.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// withLogging wraps a handler and logs each request with method, path, status, and duration.
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   sw.status,
			"duration": time.Since(start).String(),
		}).Info("request")
	})
}

// --- helpers ---

// APIError is the standard error envelope for all error responses.
type APIError struct {
	Status int    `json:"status"`
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// parseID extracts a path parameter by name and parses it as int64.
func parseID(r *http.Request, param string) (int64, error) {
	v := r.PathValue(param)
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %s", param, v)
	}
	return id, nil
}

func parseQueryID(v string) (int64, error) {
	if v == "" {
		return 0, fmt.Errorf("provider_id is required")
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid provider_id: %s", v)
	}
	return id, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Error("writeJSON")
	}
}

func writeNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeErr(w http.ResponseWriter, status int, err error) {
	if status >= 500 {
		s.log.WithError(err).WithField("status", status).Error("request failed")
	}
	s.writeJSON(w, status, APIError{
		Status: status,
		Error:  http.StatusText(status),
		Detail: err.Error(),
	})
}
