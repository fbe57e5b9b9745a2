package orchestrator

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"articlepress/internal/domain"
	"articlepress/internal/store"
)

type stubChecker struct {
	valid     bool
	reachable bool
}

func (c stubChecker) ValidFormat(string) bool { return c.valid }

func (c stubChecker) Reachable(context.Context, string) bool { return c.reachable }

type recordingGateway struct {
	mu         sync.Mutex
	dispatched []string
	err        error
	release    chan struct{}
	called     chan struct{}
}

func newRecordingGateway(err error) *recordingGateway {
	return &recordingGateway{
		err:     err,
		release: make(chan struct{}),
		called:  make(chan struct{}, 16),
	}
}

func (g *recordingGateway) Dispatch(ctx context.Context, jobID, _ string) error {
	g.mu.Lock()
	g.dispatched = append(g.dispatched, jobID)
	g.mu.Unlock()
	g.called <- struct{}{}
	select {
	case <-g.release:
		return g.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// deadlineStore is a JobStore that refuses work on an expired context,
// the way a database-backed store does.
type deadlineStore struct {
	*store.MemoryJobStore
}

func (s deadlineStore) Update(ctx context.Context, id string, patch store.JobPatch) (domain.Job, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Job{}, false, err
	}
	return s.MemoryJobStore.Update(ctx, id, patch)
}

func newTestOrchestrator(gw RendererGateway, checker URLChecker, cfg Config) (*Orchestrator, *store.MemoryJobStore) {
	jobs := store.NewMemoryJobStore()
	logger := log.New(io.Discard, "", 0)
	return New(logger, jobs, gw, checker, cfg), jobs
}

func TestSubmitRejectsInvalidFormat(t *testing.T) {
	gw := newRecordingGateway(nil)
	o, jobs := newTestOrchestrator(gw, stubChecker{valid: false}, Config{})

	if _, err := o.Submit(context.Background(), "not-a-url"); !errors.Is(err, ErrInvalidURL) {
		t.Fatalf("expected ErrInvalidURL, got %v", err)
	}
	if size, _ := jobs.Size(context.Background()); size != 0 {
		t.Fatal("rejected submission must not create a job")
	}
}

func TestSubmitRejectsUnreachableURL(t *testing.T) {
	gw := newRecordingGateway(nil)
	o, jobs := newTestOrchestrator(gw, stubChecker{valid: true, reachable: false}, Config{})

	if _, err := o.Submit(context.Background(), "https://example.com"); !errors.Is(err, ErrUnreachableURL) {
		t.Fatalf("expected ErrUnreachableURL, got %v", err)
	}
	if size, _ := jobs.Size(context.Background()); size != 0 {
		t.Fatal("rejected submission must not create a job")
	}
}

func TestSubmitReturnsBeforeDispatchFinishes(t *testing.T) {
	gw := newRecordingGateway(nil)
	o, _ := newTestOrchestrator(gw, stubChecker{valid: true, reachable: true}, Config{})

	// The gateway blocks until released; Submit must still return.
	job, err := o.Submit(context.Background(), "https://example.com/article")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if job.ID == "" {
		t.Fatal("expected a job id")
	}
	if job.Status != domain.JobStatusPending {
		t.Fatalf("expected pending, got %s", job.Status)
	}

	select {
	case <-gw.called:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch was never attempted")
	}
	close(gw.release)
}

func TestDispatchFailureMarksJobFailed(t *testing.T) {
	gw := newRecordingGateway(errors.New("renderer unreachable"))
	close(gw.release)
	o, _ := newTestOrchestrator(gw, stubChecker{valid: true, reachable: true}, Config{})

	job, err := o.Submit(context.Background(), "https://example.com/article")
	if err != nil {
		t.Fatalf("submit must succeed even when dispatch will fail: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		got, err := o.Status(context.Background(), job.ID)
		if err != nil {
			t.Fatalf("status: %v", err)
		}
		if got.Status == domain.JobStatusFailed {
			if got.ErrorMessage == "" {
				t.Fatal("failed job must carry an error message")
			}
			return
		}
		select {
		case <-deadline:
			t.Fatalf("job never failed, status=%s", got.Status)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestDispatchTimeoutStillMarksJobFailed(t *testing.T) {
	// The gateway blocks past the dispatch timeout and the store rejects
	// expired contexts, so the failed transition must not reuse the
	// dispatch deadline.
	gw := newRecordingGateway(nil)
	jobs := deadlineStore{store.NewMemoryJobStore()}
	logger := log.New(io.Discard, "", 0)
	o := New(logger, jobs, gw, stubChecker{valid: true, reachable: true}, Config{
		DispatchTimeout: 50 * time.Millisecond,
	})

	job, err := o.Submit(context.Background(), "https://example.com/article")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	defer close(gw.release)

	deadline := time.After(2 * time.Second)
	for {
		got, err := o.Status(context.Background(), job.ID)
		if err != nil {
			t.Fatalf("status: %v", err)
		}
		if got.Status == domain.JobStatusFailed {
			if got.ErrorMessage == "" {
				t.Fatal("failed job must carry an error message")
			}
			return
		}
		select {
		case <-deadline:
			t.Fatalf("dispatch timeout was never recorded, status=%s", got.Status)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestStatusUnknownID(t *testing.T) {
	gw := newRecordingGateway(nil)
	o, _ := newTestOrchestrator(gw, stubChecker{valid: true, reachable: true}, Config{})

	if _, err := o.Status(context.Background(), "nonexistent"); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestCompleteTransitionsJob(t *testing.T) {
	gw := newRecordingGateway(nil)
	close(gw.release)
	o, _ := newTestOrchestrator(gw, stubChecker{valid: true, reachable: true}, Config{})
	ctx := context.Background()

	job, err := o.Submit(ctx, "https://example.com/article")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	got, err := o.Status(ctx, job.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if got.Status != domain.JobStatusPending && got.Status != domain.JobStatusFailed {
		t.Fatalf("unexpected pre-completion status %s", got.Status)
	}

	o.Complete(ctx, domain.CompletionReport{
		JobID:        job.ID,
		Status:       domain.JobStatusCompleted,
		ArtifactPath: "/tmp/x.pdf",
	})

	got, err = o.Status(ctx, job.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if got.Status != domain.JobStatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
	if got.ArtifactPath != "/tmp/x.pdf" {
		t.Fatalf("expected artifact path, got %q", got.ArtifactPath)
	}
}

func TestCompleteFailureCarriesMessage(t *testing.T) {
	gw := newRecordingGateway(nil)
	close(gw.release)
	o, _ := newTestOrchestrator(gw, stubChecker{valid: true, reachable: true}, Config{})
	ctx := context.Background()

	job, _ := o.Submit(ctx, "https://example.com/article")
	o.Complete(ctx, domain.CompletionReport{
		JobID:        job.ID,
		Status:       domain.JobStatusFailed,
		ErrorMessage: "boom",
	})

	got, err := o.Status(ctx, job.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if got.Status != domain.JobStatusFailed || got.ErrorMessage != "boom" {
		t.Fatalf("expected failed/boom, got %s/%q", got.Status, got.ErrorMessage)
	}
}

func TestCompleteNormalizesMixedCaseStatus(t *testing.T) {
	gw := newRecordingGateway(nil)
	close(gw.release)
	o, _ := newTestOrchestrator(gw, stubChecker{valid: true, reachable: true}, Config{})
	ctx := context.Background()

	job, _ := o.Submit(ctx, "https://example.com/article")
	o.Complete(ctx, domain.CompletionReport{
		JobID:        job.ID,
		Status:       "COMPLETED",
		ArtifactPath: " /tmp/x.pdf ",
	})

	got, err := o.Status(ctx, job.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if got.Status != domain.JobStatusCompleted {
		t.Fatalf("expected canonical completed status, got %q", got.Status)
	}
	if got.ArtifactPath != "/tmp/x.pdf" {
		t.Fatalf("expected trimmed artifact path, got %q", got.ArtifactPath)
	}
}

func TestCompleteUnknownIDIsNoOp(t *testing.T) {
	gw := newRecordingGateway(nil)
	o, jobs := newTestOrchestrator(gw, stubChecker{valid: true, reachable: true}, Config{})

	o.Complete(context.Background(), domain.CompletionReport{
		JobID:        "ghost",
		Status:       domain.JobStatusCompleted,
		ArtifactPath: "/tmp/ghost.pdf",
	})

	if size, _ := jobs.Size(context.Background()); size != 0 {
		t.Fatal("stray callback must not create a job")
	}
}

func TestStrictTerminalRejectsOverwrite(t *testing.T) {
	gw := newRecordingGateway(nil)
	close(gw.release)
	o, _ := newTestOrchestrator(gw, stubChecker{valid: true, reachable: true}, Config{StrictTerminal: true})
	ctx := context.Background()

	job, _ := o.Submit(ctx, "https://example.com/article")
	o.Complete(ctx, domain.CompletionReport{
		JobID:        job.ID,
		Status:       domain.JobStatusCompleted,
		ArtifactPath: "/tmp/first.pdf",
	})
	o.Complete(ctx, domain.CompletionReport{
		JobID:        job.ID,
		Status:       domain.JobStatusFailed,
		ErrorMessage: "late retry",
	})

	got, _ := o.Status(ctx, job.ID)
	if got.Status != domain.JobStatusCompleted {
		t.Fatalf("strict mode must keep the terminal state, got %s", got.Status)
	}
	if got.ArtifactPath != "/tmp/first.pdf" {
		t.Fatalf("strict mode must keep the artifact, got %q", got.ArtifactPath)
	}
}

func TestLastWriteWinsByDefault(t *testing.T) {
	gw := newRecordingGateway(nil)
	close(gw.release)
	o, _ := newTestOrchestrator(gw, stubChecker{valid: true, reachable: true}, Config{})
	ctx := context.Background()

	job, _ := o.Submit(ctx, "https://example.com/article")
	o.Complete(ctx, domain.CompletionReport{
		JobID:        job.ID,
		Status:       domain.JobStatusCompleted,
		ArtifactPath: "/tmp/first.pdf",
	})
	o.Complete(ctx, domain.CompletionReport{
		JobID:        job.ID,
		Status:       domain.JobStatusCompleted,
		ArtifactPath: "/tmp/second.pdf",
	})

	got, _ := o.Status(ctx, job.ID)
	if got.ArtifactPath != "/tmp/second.pdf" {
		t.Fatalf("expected last write to win, got %q", got.ArtifactPath)
	}
}

func TestConcurrentSubmitsProduceDistinctJobs(t *testing.T) {
	gw := newRecordingGateway(nil)
	close(gw.release)
	o, _ := newTestOrchestrator(gw, stubChecker{valid: true, reachable: true}, Config{})

	var wg sync.WaitGroup
	ids := make(chan string, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job, err := o.Submit(context.Background(), "https://example.com/article")
			if err != nil {
				t.Errorf("submit: %v", err)
				return
			}
			ids <- job.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for jobID := range ids {
		if seen[jobID] {
			t.Fatalf("duplicate job id %s", jobID)
		}
		seen[jobID] = true
		if _, err := o.Status(context.Background(), jobID); err != nil {
			t.Fatalf("status for %s: %v", jobID, err)
		}
	}
	if len(seen) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(seen))
	}
}
