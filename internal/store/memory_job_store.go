package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"articlepress/internal/domain"
)

// MemoryJobStore is the default backend: a mutex-guarded map that is empty
// on startup and never persisted. Jobs are retained for the process
// lifetime, so Size grows without bound under sustained traffic.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]domain.Job
}

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{
		jobs: make(map[string]domain.Job),
	}
}

func (s *MemoryJobStore) Create(_ context.Context, job domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	s.jobs[job.ID] = job
	return nil
}

func (s *MemoryJobStore) Get(_ context.Context, id string) (domain.Job, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	return job, ok, nil
}

func (s *MemoryJobStore) Update(_ context.Context, id string, patch JobPatch) (domain.Job, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return domain.Job{}, false, nil
	}

	if patch.Status != nil {
		job.Status = *patch.Status
	}
	if patch.ErrorMessage != nil {
		job.ErrorMessage = *patch.ErrorMessage
	}
	if patch.ArtifactPath != nil {
		job.ArtifactPath = *patch.ArtifactPath
	}
	job.UpdatedAt = time.Now().UTC()
	s.jobs[id] = job
	return job, true, nil
}

func (s *MemoryJobStore) Size(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs), nil
}
