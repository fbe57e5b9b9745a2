package renderer

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"articlepress/internal/artifact"
	"articlepress/internal/config"
	"articlepress/internal/domain"
	"articlepress/internal/queue"
)

type completionSender interface {
	Send(ctx context.Context, endpoint string, report domain.CompletionReport) error
}

// Server consumes render tasks from the queue, turns article pages into
// PDFs, and reports the outcome back to the control plane.
type Server struct {
	logger        *log.Logger
	server        *asynq.Server
	sem           chan struct{}
	fetcher       *Fetcher
	engine        *ChromeEngine
	storage       artifact.Storage
	callbacks     completionSender
	fetchTimeout  time.Duration
	renderTimeout time.Duration
	metrics       *metrics
	tracer        trace.Tracer
}

func NewServer(
	logger *log.Logger,
	queueCfg config.QueueConfig,
	rendererCfg config.RendererConfig,
	storage artifact.Storage,
	callbacks completionSender,
) (*Server, error) {
	if storage == nil {
		return nil, fmt.Errorf("artifact storage is required")
	}
	if callbacks == nil {
		return nil, fmt.Errorf("callback client is required")
	}

	s := &Server{
		logger: logger,
		server: asynq.NewServer(
			queueCfg.RedisClientOpt(),
			asynq.Config{
				Concurrency: rendererCfg.Concurrency,
				Queues: map[string]int{
					queueCfg.Name: 1,
				},
				LogLevel: asynq.InfoLevel,
				ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
					retried, _ := asynq.GetRetryCount(ctx)
					maxRetry, _ := asynq.GetMaxRetry(ctx)
					logger.Printf("task failed type=%s retry=%d/%d err=%v", task.Type(), retried, maxRetry, err)
				}),
			},
		),
		sem:           make(chan struct{}, max(1, rendererCfg.MaxActiveJobs)),
		fetcher:       NewFetcher(rendererCfg.FetchTimeout),
		engine:        NewChromeEngine(rendererCfg.ChromePath),
		storage:       storage,
		callbacks:     callbacks,
		fetchTimeout:  rendererCfg.FetchTimeout,
		renderTimeout: rendererCfg.RenderTimeout,
		metrics:       newMetrics(),
		tracer:        otel.Tracer("articlepress/renderer"),
	}
	return s, nil
}

func (s *Server) Run() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeRenderArticle, s.handleRenderArticle)
	return s.server.Run(mux)
}

func (s *Server) MetricsHandler() http.Handler {
	return s.metrics.Handler()
}

func (s *Server) handleRenderArticle(ctx context.Context, task *asynq.Task) error {
	startedAt := time.Now()
	outcome := domain.JobStatusFailed

	payload, err := queue.ParseRenderArticlePayload(task)
	if err != nil {
		return fmt.Errorf("parse payload: %v: %w", err, asynq.SkipRetry)
	}

	ctx, span := s.tracer.Start(ctx, "renderer.render_article", trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(
		attribute.String("job.id", payload.JobID),
		attribute.String("job.url", payload.URL),
	)
	defer span.End()
	defer func() {
		s.metrics.jobDuration.WithLabelValues(outcome).Observe(time.Since(startedAt).Seconds())
		s.metrics.jobsTotal.WithLabelValues(outcome).Inc()
	}()

	s.sem <- struct{}{}
	s.metrics.activeJobs.Inc()
	defer func() {
		<-s.sem
		s.metrics.activeJobs.Dec()
	}()

	s.logger.Printf("Rendering... job_id=%s url=%s", payload.JobID, payload.URL)

	s.report(ctx, payload, domain.CompletionReport{
		JobID:  payload.JobID,
		Status: domain.JobStatusProcessing,
	})

	fetchCtx, cancelFetch := context.WithTimeout(ctx, s.fetchTimeout)
	html, err := s.fetcher.Fetch(fetchCtx, payload.URL)
	cancelFetch()
	if err != nil {
		return s.fail(ctx, span, payload, fmt.Errorf("fetch article: %w", err))
	}

	extraction, err := ExtractArticle(html, payload.URL)
	if err != nil {
		return s.fail(ctx, span, payload, fmt.Errorf("extract article: %w", err))
	}

	renderCtx, cancelRender := context.WithTimeout(ctx, s.renderTimeout)
	pdf, err := s.engine.Render(renderCtx, extraction.HTML)
	cancelRender()
	if err != nil {
		return s.fail(ctx, span, payload, fmt.Errorf("render article: %w", err))
	}

	path, err := s.storage.Write(ctx, payload.JobID+".pdf", pdf)
	if err != nil {
		return s.fail(ctx, span, payload, fmt.Errorf("store artifact: %w", err))
	}

	s.logger.Printf("Rendered job_id=%s title=%q bytes=%d path=%s", payload.JobID, extraction.Title, len(pdf), path)
	s.metrics.pdfBytesTotal.Add(float64(len(pdf)))

	if err := s.report(ctx, payload, domain.CompletionReport{
		JobID:        payload.JobID,
		Status:       domain.JobStatusCompleted,
		ArtifactPath: path,
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion report failed")
		return err
	}

	outcome = domain.JobStatusCompleted
	span.SetStatus(codes.Ok, "rendered")
	return nil
}

// fail reports the failure upstream, then returns the error so the queue
// can retry. A later retry that succeeds simply reports completed again.
func (s *Server) fail(ctx context.Context, span trace.Span, payload queue.RenderArticlePayload, cause error) error {
	span.RecordError(cause)
	span.SetStatus(codes.Error, "render failed")

	s.report(ctx, payload, domain.CompletionReport{
		JobID:        payload.JobID,
		Status:       domain.JobStatusFailed,
		ErrorMessage: cause.Error(),
	})
	return cause
}

func (s *Server) report(ctx context.Context, payload queue.RenderArticlePayload, report domain.CompletionReport) error {
	if payload.CallbackURL == "" {
		return nil
	}
	if err := s.callbacks.Send(ctx, payload.CallbackURL, report); err != nil {
		s.logger.Printf("completion report delivery failed job_id=%s status=%s err=%v", payload.JobID, report.Status, err)
		return fmt.Errorf("send completion report: %w", err)
	}
	return nil
}
