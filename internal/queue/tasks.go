package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const TypeRenderArticle = "article:render"

// RenderArticlePayload carries everything the renderer needs: the job id it
// must echo back, the page to convert, and where to post the outcome.
type RenderArticlePayload struct {
	JobID       string    `json:"job_id"`
	URL         string    `json:"url"`
	CallbackURL string    `json:"callback_url"`
	RequestedAt time.Time `json:"requested_at"`
}

func NewRenderArticleTask(payload RenderArticlePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal render payload: %w", err)
	}
	return asynq.NewTask(TypeRenderArticle, body), nil
}

func ParseRenderArticlePayload(task *asynq.Task) (RenderArticlePayload, error) {
	var payload RenderArticlePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return RenderArticlePayload{}, fmt.Errorf("unmarshal render payload: %w", err)
	}
	return payload, nil
}
