package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"articlepress/internal/domain"
	"articlepress/internal/store"
)

// DownloadFilename is the fixed client-facing name; the internal storage
// path never leaks to the caller.
const DownloadFilename = "article.pdf"

var (
	ErrNotFound    = errors.New("job not found")
	ErrNotReady    = errors.New("artifact not ready")
	ErrFileMissing = errors.New("artifact file missing")
)

// Storage abstracts where rendered PDFs live. The renderer writes through
// it and the resolver reads through it, so the recorded artifact path is
// meaningful to both sides.
type Storage interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
	Exists(ctx context.Context, path string) (bool, error)
	Open(ctx context.Context, path string) (io.ReadCloser, int64, error)
}

// Artifact is an open handle on a rendered PDF. Size is -1 when the
// backend cannot cheaply report it.
type Artifact struct {
	Reader   io.ReadCloser
	Filename string
	Size     int64
}

type Resolver struct {
	logger  *log.Logger
	jobs    store.JobStore
	storage Storage
}

func NewResolver(logger *log.Logger, jobs store.JobStore, storage Storage) *Resolver {
	return &Resolver{
		logger:  logger,
		jobs:    jobs,
		storage: storage,
	}
}

// Resolve locates the artifact for a completed job. ErrFileMissing means
// the store says completed but the file is gone, which is a consistency
// fault between memory and disk and is logged accordingly.
func (r *Resolver) Resolve(ctx context.Context, jobID string) (Artifact, error) {
	job, ok, err := r.jobs.Get(ctx, jobID)
	if err != nil {
		return Artifact{}, fmt.Errorf("load job: %w", err)
	}
	if !ok {
		return Artifact{}, ErrNotFound
	}
	if job.Status != domain.JobStatusCompleted {
		return Artifact{}, ErrNotReady
	}

	exists, err := r.storage.Exists(ctx, job.ArtifactPath)
	if err != nil {
		return Artifact{}, fmt.Errorf("check artifact %s: %w", job.ArtifactPath, err)
	}
	if !exists {
		r.logger.Printf("ALERT artifact missing for completed job job_id=%s path=%s", jobID, job.ArtifactPath)
		return Artifact{}, ErrFileMissing
	}

	reader, size, err := r.storage.Open(ctx, job.ArtifactPath)
	if err != nil {
		return Artifact{}, fmt.Errorf("open artifact %s: %w", job.ArtifactPath, err)
	}

	return Artifact{
		Reader:   reader,
		Filename: DownloadFilename,
		Size:     size,
	}, nil
}
