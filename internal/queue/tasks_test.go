package queue

import (
	"testing"
	"time"
)

func TestRenderArticleTaskRoundTrip(t *testing.T) {
	payload := RenderArticlePayload{
		JobID:       "job-123",
		URL:         "https://example.com/article",
		CallbackURL: "http://localhost:5000/api/update-pdf",
		RequestedAt: time.Now().UTC(),
	}

	task, err := NewRenderArticleTask(payload)
	if err != nil {
		t.Fatalf("NewRenderArticleTask returned error: %v", err)
	}
	if task.Type() != TypeRenderArticle {
		t.Fatalf("expected task type %q, got %q", TypeRenderArticle, task.Type())
	}

	parsed, err := ParseRenderArticlePayload(task)
	if err != nil {
		t.Fatalf("ParseRenderArticlePayload returned error: %v", err)
	}
	if parsed.JobID != payload.JobID {
		t.Fatalf("expected job_id %q, got %q", payload.JobID, parsed.JobID)
	}
	if parsed.URL != payload.URL {
		t.Fatalf("expected url %q, got %q", payload.URL, parsed.URL)
	}
}
