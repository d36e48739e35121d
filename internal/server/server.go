// Package server implements the HTTP façade over the download pipeline:
// request validation, job submission, status polling, artifact delivery,
// and the synchronous metadata probe.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"

	"golang.org/x/time/rate"

	"github.com/yasef05/video-downloader-backend/internal/config"
	"github.com/yasef05/video-downloader-backend/internal/download"
	"github.com/yasef05/video-downloader-backend/internal/model"
	"github.com/yasef05/video-downloader-backend/internal/platform"
	"github.com/yasef05/video-downloader-backend/internal/resolver"
	"github.com/yasef05/video-downloader-backend/internal/store"
)

const maxRequestBody = 1 << 20 // submissions are tiny JSON bodies

// Server routes API requests to the download service and resolver.
type Server struct {
	cfg       *config.Config
	downloads *download.Service
	resolver  resolver.Resolver
	logger    *slog.Logger
	limiter   *rate.Limiter
}

// New creates the HTTP server façade.
func New(cfg *config.Config, downloads *download.Service, res resolver.Resolver, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &Server{
		cfg:       cfg,
		downloads: downloads,
		resolver:  res,
		logger:    logger,
		limiter:   limiter,
	}
}

// Handler returns the fully assembled HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/download", s.handleSubmit)
	mux.HandleFunc("GET /api/status/{id}", s.handleStatus)
	mux.HandleFunc("GET /api/download/{id}", s.handleFetch)
	mux.HandleFunc("POST /api/info", s.handleInfo)
	mux.HandleFunc("GET /health", s.handleHealth)

	return s.withCORS(s.withRateLimit(s.withLogging(mux)))
}

type submitRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "URL is required")
		return
	}

	if err := validateSourceURL(req.URL); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := s.downloads.Submit(r.Context(), req.URL)
	if err != nil {
		s.logger.Error("submitting download", "url", req.URL, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to start download")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"download_id": job.ID,
		"message":     "Download started",
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	job, err := s.downloads.Job(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Download not found")
			return
		}
		s.logger.Error("loading job", "job_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load download status")
		return
	}

	// A failed job is still a 200: the failure lives in the payload.
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	job, err := s.downloads.Job(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Download not found")
			return
		}
		s.logger.Error("loading job", "job_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load download")
		return
	}

	if job.Status != model.StatusCompleted {
		writeError(w, http.StatusBadRequest, "Download not completed")
		return
	}

	path, err := platform.SafeArtifactPath(s.cfg.DownloadDir, job.Filename)
	if err != nil {
		s.logger.Error("resolving artifact path", "job_id", id, "filename", job.Filename, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to locate file")
		return
	}

	if _, err := os.Stat(path); err != nil {
		// The retention sweeper may have removed the artifact after the
		// job completed. Accepted race, reported as not found.
		writeError(w, http.StatusNotFound, "File not found")
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", job.Filename))
	http.ServeFile(w, r, path)
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "URL is required")
		return
	}

	info, err := s.resolver.Probe(r.Context(), req.URL)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"title":       info.Title,
		"duration":    info.DurationSeconds,
		"thumbnail":   info.Thumbnail,
		"uploader":    info.Uploader,
		"description": truncate(info.Description, 200),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// validateSourceURL accepts http and https URLs with a host.
func validateSourceURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("malformed URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("only HTTP(S) URLs are supported")
	}
	if u.Host == "" {
		return fmt.Errorf("URL has no host")
	}
	return nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// truncate limits s to n characters. Slicing by runes rather than bytes so
// a multibyte character is never split mid-sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// statusRecorder captures the response status for the request log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start).Round(time.Microsecond),
		)
	})
}

func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && r.URL.Path != "/health" && !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
