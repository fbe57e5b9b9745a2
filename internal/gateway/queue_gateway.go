// Package gateway carries render requests to the external renderer. The
// queue-backed gateway is the default transport; the HTTP gateway talks to
// a renderer service directly for deployments without Redis.
package gateway

import (
	"context"
	"fmt"
	"time"

	"articlepress/internal/queue"
)

type QueueGateway struct {
	client      *queue.Client
	callbackURL string
}

func NewQueueGateway(client *queue.Client, callbackURL string) *QueueGateway {
	return &QueueGateway{
		client:      client,
		callbackURL: callbackURL,
	}
}

func (g *QueueGateway) Dispatch(ctx context.Context, jobID, url string) error {
	_, err := g.client.EnqueueRenderArticle(ctx, queue.RenderArticlePayload{
		JobID:       jobID,
		URL:         url,
		CallbackURL: g.callbackURL,
		RequestedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("enqueue render task: %w", err)
	}
	return nil
}
