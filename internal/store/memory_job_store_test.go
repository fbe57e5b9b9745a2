package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"articlepress/internal/domain"
)

func TestMemoryJobStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryJobStore()

	job := domain.Job{
		ID:        "job-1",
		URL:       "https://example.com/article",
		Status:    domain.JobStatusPending,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.Create(ctx, job); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Create(ctx, job); err == nil {
		t.Fatal("expected duplicate create to fail")
	}

	got, ok, err := s.Get(ctx, "job-1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.Status != domain.JobStatusPending {
		t.Fatalf("expected pending, got %s", got.Status)
	}

	updated, ok, err := s.Update(ctx, "job-1", JobPatch{
		Status:       String(domain.JobStatusCompleted),
		ArtifactPath: String("/tmp/job-1.pdf"),
	})
	if err != nil || !ok {
		t.Fatalf("update: ok=%v err=%v", ok, err)
	}
	if updated.Status != domain.JobStatusCompleted {
		t.Fatalf("expected completed, got %s", updated.Status)
	}
	if updated.ArtifactPath != "/tmp/job-1.pdf" {
		t.Fatalf("expected artifact path, got %q", updated.ArtifactPath)
	}
	if updated.URL != job.URL {
		t.Fatal("patch must not touch the url")
	}
	if !updated.UpdatedAt.After(job.UpdatedAt) && !updated.UpdatedAt.Equal(job.UpdatedAt) {
		t.Fatal("expected updated_at to be refreshed")
	}
}

func TestMemoryJobStoreUnknownID(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryJobStore()

	if _, ok, err := s.Get(ctx, "missing"); ok || err != nil {
		t.Fatalf("expected absent job, got ok=%v err=%v", ok, err)
	}

	_, ok, err := s.Update(ctx, "missing", JobPatch{Status: String(domain.JobStatusFailed)})
	if err != nil {
		t.Fatalf("unknown-id update must not error: %v", err)
	}
	if ok {
		t.Fatal("unknown-id update must report not-found")
	}

	size, err := s.Size(ctx)
	if err != nil {
		t.Fatalf("size: %v", err)
	}
	if size != 0 {
		t.Fatalf("no-op update must not create a job, size=%d", size)
	}
}

func TestMemoryJobStoreConcurrentCreate(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryJobStore()

	const n = 64
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_ = s.Create(ctx, domain.Job{
				ID:     fmt.Sprintf("job-%d", i),
				URL:    "https://example.com",
				Status: domain.JobStatusPending,
			})
		}(i)
	}
	wg.Wait()

	size, err := s.Size(ctx)
	if err != nil {
		t.Fatalf("size: %v", err)
	}
	if size != n {
		t.Fatalf("expected %d jobs, got %d", n, size)
	}
}
