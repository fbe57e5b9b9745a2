package urlcheck

import (
	"context"
	"net/http"
	"regexp"
	"time"
)

const maxRedirects = 5

// urlPattern accepts absolute http/https URLs with a host of up to 256
// characters and a TLD label of at most 6 alphanumeric/paren characters.
// Newer gTLDs with 7+ character labels are rejected; the path segment is
// intentionally loose.
var urlPattern = regexp.MustCompile(`^https?://(www\.)?[-a-zA-Z0-9@:%._+~#=]{1,256}\.[a-zA-Z0-9()]{1,6}\b([-a-zA-Z0-9()@:%_+.~#?&/=]*)$`)

// Checker performs both validation steps for a submitted URL: the
// syntactic grammar check and a single HEAD reachability probe.
type Checker struct {
	client *http.Client
}

func NewChecker(probeTimeout time.Duration) *Checker {
	if probeTimeout <= 0 {
		probeTimeout = 10 * time.Second
	}
	return &Checker{
		client: &http.Client{
			Timeout: probeTimeout,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

func (c *Checker) ValidFormat(candidate string) bool {
	return urlPattern.MatchString(candidate)
}

// Reachable issues one HEAD request. Any response with a 2xx or 3xx status
// counts as reachable, including the final response of an overlong redirect
// chain. Timeouts, DNS failures and refused connections do not.
func (c *Checker) Reachable(ctx context.Context, candidate string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, candidate, nil)
	if err != nil {
		return false
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode < 400
}
