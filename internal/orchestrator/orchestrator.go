package orchestrator

import (
	"context"
	"errors"
	"log"
	"time"

	"articlepress/internal/domain"
	"articlepress/internal/id"
	"articlepress/internal/store"
)

var (
	ErrInvalidURL     = errors.New("invalid URL format")
	ErrUnreachableURL = errors.New("URL is not accessible")
	ErrJobNotFound    = errors.New("job not found")
)

// RendererGateway hands a render request to the external renderer. Dispatch
// is fire-and-forget from the submitter's point of view: the orchestrator
// calls it off the request path and folds any error into a failed
// transition instead of surfacing it.
type RendererGateway interface {
	Dispatch(ctx context.Context, jobID, url string) error
}

// URLChecker is the validation surface Submit depends on; urlcheck.Checker
// is the production implementation.
type URLChecker interface {
	ValidFormat(candidate string) bool
	Reachable(ctx context.Context, candidate string) bool
}

type Config struct {
	// StrictTerminal rejects completion reports for jobs that already
	// reached completed or failed. Off by default: the renderer may
	// legitimately retry, and the baseline contract is last-write-wins.
	StrictTerminal bool

	// DispatchTimeout bounds the outbound dispatch call. The render itself
	// has no deadline; a hung renderer leaves the job in pending or
	// processing until its callback arrives.
	DispatchTimeout time.Duration
}

type Orchestrator struct {
	logger  *log.Logger
	jobs    store.JobStore
	gateway RendererGateway
	checker URLChecker
	cfg     Config
}

func New(logger *log.Logger, jobs store.JobStore, gateway RendererGateway, checker URLChecker, cfg Config) *Orchestrator {
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = 30 * time.Second
	}
	return &Orchestrator{
		logger:  logger,
		jobs:    jobs,
		gateway: gateway,
		checker: checker,
		cfg:     cfg,
	}
}

// Submit validates the URL, registers a pending job and dispatches it to
// the renderer without waiting for the dispatch to finish. A returned job
// means "accepted for processing", not "will succeed": dispatch failures
// surface only through later status polls.
func (o *Orchestrator) Submit(ctx context.Context, rawURL string) (domain.Job, error) {
	if !o.checker.ValidFormat(rawURL) {
		return domain.Job{}, ErrInvalidURL
	}
	if !o.checker.Reachable(ctx, rawURL) {
		return domain.Job{}, ErrUnreachableURL
	}

	now := time.Now().UTC()
	job := domain.Job{
		ID:        id.New(),
		URL:       rawURL,
		Status:    domain.JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := o.jobs.Create(ctx, job); err != nil {
		return domain.Job{}, err
	}

	// Detach from the request context so a client disconnect cannot cancel
	// the dispatch; trace context is preserved.
	dispatchCtx := context.WithoutCancel(ctx)
	go o.dispatch(dispatchCtx, job.ID, job.URL)

	return job, nil
}

func (o *Orchestrator) dispatch(ctx context.Context, jobID, url string) {
	dispatchCtx, cancel := context.WithTimeout(ctx, o.cfg.DispatchTimeout)
	err := o.gateway.Dispatch(dispatchCtx, jobID, url)
	cancel()
	if err == nil {
		return
	}

	o.logger.Printf("render dispatch failed job_id=%s err=%v", jobID, err)

	// The dispatch deadline is often the reason we are here, so the failed
	// transition gets its own deadline on the undeadlined parent.
	failCtx, cancelFail := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancelFail()
	o.Complete(failCtx, domain.CompletionReport{
		JobID:        jobID,
		Status:       domain.JobStatusFailed,
		ErrorMessage: "renderer dispatch failed: " + err.Error(),
	})
}

// Status returns the job for a poll. ErrJobNotFound for unknown ids.
func (o *Orchestrator) Status(ctx context.Context, jobID string) (domain.Job, error) {
	job, ok, err := o.jobs.Get(ctx, jobID)
	if err != nil {
		return domain.Job{}, err
	}
	if !ok {
		return domain.Job{}, ErrJobNotFound
	}
	return job, nil
}

// Complete applies a renderer report. Reports for unknown ids are
// acknowledged as no-ops but logged, so stray callbacks stay observable
// without breaking the tolerant contract. Repeat reports overwrite earlier
// ones unless strict-terminal mode is on.
func (o *Orchestrator) Complete(ctx context.Context, report domain.CompletionReport) {
	report.Normalize()
	if err := report.Validate(); err != nil {
		o.logger.Printf("discarding malformed completion report job_id=%s err=%v", report.JobID, err)
		return
	}

	if o.cfg.StrictTerminal {
		if current, ok, err := o.jobs.Get(ctx, report.JobID); err == nil && ok && current.Terminal() {
			o.logger.Printf("ignoring completion for terminal job job_id=%s current=%s reported=%s",
				report.JobID, current.Status, report.Status)
			return
		}
	}

	patch := store.JobPatch{Status: store.String(report.Status)}
	switch report.Status {
	case domain.JobStatusCompleted:
		patch.ArtifactPath = store.String(report.ArtifactPath)
		patch.ErrorMessage = store.String("")
	case domain.JobStatusFailed:
		patch.ErrorMessage = store.String(report.ErrorMessage)
	}

	_, ok, err := o.jobs.Update(ctx, report.JobID, patch)
	if err != nil {
		o.logger.Printf("completion update failed job_id=%s err=%v", report.JobID, err)
		return
	}
	if !ok {
		o.logger.Printf("completion for unknown job ignored job_id=%s status=%s", report.JobID, report.Status)
		return
	}
	o.logger.Printf("job transitioned job_id=%s status=%s", report.JobID, report.Status)
}

// ActiveJobs reports the store size for health diagnostics. The count only
// grows; retention is unbounded by design.
func (o *Orchestrator) ActiveJobs(ctx context.Context) (int, error) {
	return o.jobs.Size(ctx)
}
