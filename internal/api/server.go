package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/radiorecorder/allday/internal/autolink"
	"github.com/radiorecorder/allday/internal/domain"
	"github.com/radiorecorder/allday/internal/metrics"
	"github.com/radiorecorder/allday/internal/page"
	"github.com/radiorecorder/allday/internal/schedule"
)

const maxRequestBody = 5 * 1024 * 1024

// Server handles HTTP requests for the schedule API
type Server struct {
	renderer *page.Renderer
	logger   *slog.Logger
	addr     string
	now      func() time.Time
}

// New creates a new API server
func New(renderer *page.Renderer, logger *slog.Logger, addr string) *Server {
	return &Server{
		renderer: renderer,
		logger:   logger,
		addr:     addr,
		now:      time.Now,
	}
}

// Handler returns the routed handler with middleware applied
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /autolink", s.autolink)
	mux.HandleFunc("POST /classify", s.classify)
	mux.HandleFunc("GET /render", s.render)

	// Health check
	mux.HandleFunc("GET /health", s.health)
	mux.Handle("GET /metrics", promhttp.Handler())

	return s.withLogging(withCORS(mux))
}

// Run starts the HTTP server and stops it when ctx is done
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", s.addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("shutting down server")
		return srv.Shutdown(shutdownCtx)
	}
}

// withCORS adds CORS headers for frontend development
func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		h.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) withLogging(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h.ServeHTTP(rec, r)

		metrics.RequestsTotal.WithLabelValues(route(r), strconv.Itoa(rec.status)).Inc()
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(started),
		)
	})
}

// route is the mux pattern that served r, set by ServeMux on the shared
// request once routing is done.
func route(r *http.Request) string {
	if r.Pattern == "" {
		return "unmatched"
	}
	return r.Pattern
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// AutolinkRequest is the request body for autolinking a fragment
type AutolinkRequest struct {
	HTML     string `json:"html"`
	Location string `json:"location,omitempty"`
}

func (s *Server) autolink(w http.ResponseWriter, r *http.Request) {
	var req AutolinkRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"html": autolink.Autolink(req.HTML, req.Location),
	})
}

// ClassifyRequest is the request body for classifying a day listing
type ClassifyRequest struct {
	Entries []domain.RawEntry `json:"entries"`
	Window  domain.Window     `json:"window"`
}

// ClassifyResponse is the response for classifying a day listing
type ClassifyResponse struct {
	Entries []domain.ClassifiedEntry `json:"entries"`
}

func (s *Server) classify(w http.ResponseWriter, r *http.Request) {
	var req ClassifyRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Default to the server clock
	if strings.TrimSpace(req.Window.Now) == "" {
		req.Window.Now = s.now().Format(time.RFC3339Nano)
	}

	entries, err := schedule.Classify(req.Entries, req.Window)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ClassifyResponse{Entries: entries})
}

func (s *Server) render(w http.ResponseWriter, r *http.Request) {
	pageURL := r.URL.Query().Get("url")
	if pageURL == "" {
		writeError(w, http.StatusBadRequest, "query parameter 'url' is required")
		return
	}

	out, err := s.renderer.RenderURL(r.Context(), pageURL)
	if errors.Is(err, schedule.ErrInvalidReferenceWindow) {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err != nil {
		s.logger.Warn("render failed", "url", pageURL, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, out)
}

func decode(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
