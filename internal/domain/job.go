package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// Job tracks one URL-to-PDF conversion request through its lifecycle.
// ErrorMessage is set only on failed jobs, ArtifactPath only on completed
// ones. Jobs live for the process lifetime; there is no eviction.
type Job struct {
	ID           string
	URL          string
	Status       string
	ErrorMessage string
	ArtifactPath string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (j Job) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

func ValidStatus(status string) bool {
	switch status {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

type SubmitRequest struct {
	URL string `json:"url"`
}

// CompletionReport is what the renderer posts back when it picks a job up
// (status=processing) or finishes it (completed/failed).
type CompletionReport struct {
	JobID        string `json:"id"`
	Status       string `json:"status"`
	ArtifactPath string `json:"artifactPath,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// Normalize canonicalizes fields the renderer may have cased or padded
// freely. Callers must normalize before acting on Status so the stored
// value stays inside the documented enum.
func (r *CompletionReport) Normalize() {
	r.JobID = strings.TrimSpace(r.JobID)
	r.Status = strings.ToLower(strings.TrimSpace(r.Status))
	r.ArtifactPath = strings.TrimSpace(r.ArtifactPath)
	r.ErrorMessage = strings.TrimSpace(r.ErrorMessage)
}

func (r CompletionReport) Validate() error {
	if strings.TrimSpace(r.JobID) == "" {
		return errors.New("id is required")
	}
	status := strings.ToLower(strings.TrimSpace(r.Status))
	if status == "" {
		return errors.New("status is required")
	}
	if !ValidStatus(status) {
		return fmt.Errorf("unsupported status: %s", r.Status)
	}
	if status == JobStatusPending {
		return errors.New("a completion report cannot move a job back to pending")
	}
	if status == JobStatusCompleted && strings.TrimSpace(r.ArtifactPath) == "" {
		return errors.New("artifactPath is required for status=completed")
	}
	if status == JobStatusFailed && strings.TrimSpace(r.ErrorMessage) == "" {
		return errors.New("errorMessage is required for status=failed")
	}
	return nil
}
