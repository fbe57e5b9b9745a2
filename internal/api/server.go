package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"articlepress/internal/artifact"
	"articlepress/internal/callback"
	"articlepress/internal/domain"
	"articlepress/internal/orchestrator"
	"articlepress/internal/web"
)

type jobOrchestrator interface {
	Submit(ctx context.Context, url string) (domain.Job, error)
	Status(ctx context.Context, jobID string) (domain.Job, error)
	Complete(ctx context.Context, report domain.CompletionReport)
	ActiveJobs(ctx context.Context) (int, error)
}

type artifactResolver interface {
	Resolve(ctx context.Context, jobID string) (artifact.Artifact, error)
}

type Options struct {
	RateLimiter           RateLimiter
	RateLimitClientHeader string
	CallbackSecret        string
	CORSOrigin            string
}

type Server struct {
	logger         *log.Logger
	orch           jobOrchestrator
	resolver       artifactResolver
	rateLimiter    RateLimiter
	rlClientHeader string
	callbackSecret string
	corsOrigin     string
	metrics        *metrics
	tracer         trace.Tracer
	router         chi.Router
}

func NewServer(logger *log.Logger, orch jobOrchestrator, resolver artifactResolver, opts Options) *Server {
	s := &Server{
		logger:         logger,
		orch:           orch,
		resolver:       resolver,
		rateLimiter:    opts.RateLimiter,
		rlClientHeader: opts.RateLimitClientHeader,
		callbackSecret: opts.CallbackSecret,
		corsOrigin:     opts.CORSOrigin,
		metrics:        newMetrics(),
		tracer:         otel.Tracer("articlepress/api"),
		router:         chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	s.router.Use(s.withCORS)
	s.router.Use(s.metrics.withHTTPMetrics)
	s.router.Use(s.withTracing)

	s.router.Handle("/", web.Handler())
	s.router.Get("/health", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", s.metrics.metricsHandler())

	s.router.With(s.withRateLimit).Post("/api/fetch", s.handleSubmit)
	s.router.Get("/api/status/{id}", s.handleStatus)
	s.router.Get("/api/download/{id}", s.handleDownload)
	s.router.Post("/api/update-pdf", s.handleCompletion)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req domain.SubmitRequest
	if err := decodeJSON(r, &req); err != nil {
		s.metrics.submissionsTotal.WithLabelValues("invalid").Inc()
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	job, err := s.orch.Submit(r.Context(), req.URL)
	switch {
	case errors.Is(err, orchestrator.ErrInvalidURL):
		s.metrics.submissionsTotal.WithLabelValues("invalid").Inc()
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "Invalid URL format. Please provide a valid HTTP/HTTPS URL.",
		})
		return
	case errors.Is(err, orchestrator.ErrUnreachableURL):
		s.metrics.submissionsTotal.WithLabelValues("unreachable").Inc()
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "URL is not accessible. Please check the URL and try again.",
		})
		return
	case err != nil:
		s.logger.Printf("submit failed url=%s err=%v", req.URL, err)
		s.metrics.submissionsTotal.WithLabelValues("error").Inc()
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to process request"})
		return
	}

	s.metrics.submissionsTotal.WithLabelValues("accepted").Inc()
	writeJSON(w, http.StatusOK, map[string]string{
		"id":      job.ID,
		"status":  job.Status,
		"message": "PDF generation initiated",
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	job, err := s.orch.Status(r.Context(), jobID)
	if errors.Is(err, orchestrator.ErrJobNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Request not found"})
		return
	}
	if err != nil {
		s.logger.Printf("status lookup failed job_id=%s err=%v", jobID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to load request"})
		return
	}

	resp := map[string]string{"status": job.Status}
	if job.ErrorMessage != "" {
		resp["errorMessage"] = job.ErrorMessage
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	art, err := s.resolver.Resolve(r.Context(), jobID)
	switch {
	case errors.Is(err, artifact.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Request not found"})
		return
	case errors.Is(err, artifact.ErrNotReady):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "PDF not ready yet"})
		return
	case errors.Is(err, artifact.ErrFileMissing):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "PDF file not found"})
		return
	case err != nil:
		s.logger.Printf("download failed job_id=%s err=%v", jobID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to download PDF"})
		return
	}
	defer art.Reader.Close()

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", art.Filename))
	if art.Size >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(art.Size, 10))
	}
	if _, err := io.Copy(w, art.Reader); err != nil {
		s.logger.Printf("artifact stream interrupted job_id=%s err=%v", jobID, err)
	}
	s.metrics.downloadsTotal.Inc()
}

// handleCompletion is the renderer's callback. Unknown ids are acknowledged
// as no-ops per the tolerant contract; only malformed payloads and bad
// signatures are rejected.
func (s *Server) handleCompletion(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}

	if !callback.Verify(s.callbackSecret, r.Header.Get(callback.HeaderTimestamp), r.Header.Get(callback.HeaderSignature), body) {
		s.logger.Printf("completion callback rejected: bad signature")
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
		return
	}

	var report domain.CompletionReport
	if err := json.Unmarshal(body, &report); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	report.Normalize()

	s.orch.Complete(r.Context(), report)

	statusLabel := report.Status
	if !domain.ValidStatus(statusLabel) {
		statusLabel = "invalid"
	}
	s.metrics.completionsTotal.WithLabelValues(statusLabel).Inc()
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	active, err := s.orch.ActiveJobs(r.Context())
	if err != nil {
		s.logger.Printf("health job count failed err=%v", err)
		active = -1
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "healthy",
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"activeJobs": active,
	})
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.corsOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func decodeJSON(r *http.Request, into any) error {
	const maxBodyBytes = 1 << 20
	limited := io.LimitReader(r.Body, maxBodyBytes)
	decoder := json.NewDecoder(limited)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(into); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return errors.New("invalid JSON body: multiple JSON values are not allowed")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
