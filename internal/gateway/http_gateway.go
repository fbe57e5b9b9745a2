package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// HTTPGateway posts render requests straight to a renderer service's
// /render endpoint. The renderer still reports its outcome through the
// completion callback, never through this request's response body.
type HTTPGateway struct {
	baseURL     string
	callbackURL string
	client      *http.Client
}

func NewHTTPGateway(baseURL, callbackURL string, timeout time.Duration) *HTTPGateway {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPGateway{
		baseURL:     strings.TrimRight(baseURL, "/"),
		callbackURL: callbackURL,
		client:      &http.Client{Timeout: timeout},
	}
}

func (g *HTTPGateway) Dispatch(ctx context.Context, jobID, url string) error {
	body, err := json.Marshal(map[string]string{
		"id":          jobID,
		"url":         url,
		"callbackUrl": g.callbackURL,
	})
	if err != nil {
		return fmt.Errorf("marshal render request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/render", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build render request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("call renderer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("renderer rejected dispatch: status=%d", resp.StatusCode)
	}
	return nil
}
