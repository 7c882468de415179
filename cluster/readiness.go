package cluster

import (
	"context"
	"net/http"
	"time"

	"github.com/Jainayushgit/store-provisioner/errors"
)

// ReadinessTimeoutError is returned by HTTPReadiness.WaitForHTTPOK when the
// probe never observes a non-5xx response before timeout. The engine treats
// this error as non-fatal during provisioning.
type ReadinessTimeoutError struct {
	URL     string
	Timeout int
}

func (e *ReadinessTimeoutError) Error() string {
	return "readiness timeout: " + e.URL
}

// HTTPReadiness polls a URL until it returns a non-5xx status or times out.
type HTTPReadiness struct {
	client *http.Client
}

// NewHTTPReadiness returns an HTTPReadiness prober with a short per-request timeout.
func NewHTTPReadiness() *HTTPReadiness {
	return &HTTPReadiness{client: &http.Client{Timeout: 10 * time.Second}}
}

// WaitForHTTPOK polls url every poll seconds until it responds with status <
// 500, or returns *ReadinessTimeoutError once timeout seconds elapse.
func (p *HTTPReadiness) WaitForHTTPOK(ctx context.Context, url string, timeout, poll int) error {
	deadline := time.Now().Add(time.Duration(timeout) * time.Second)
	ticker := time.NewTicker(time.Duration(poll) * time.Second)
	defer ticker.Stop()

	for {
		if p.probe(ctx, url) {
			return nil
		}
		if time.Now().After(deadline) {
			return &ReadinessTimeoutError{URL: url, Timeout: timeout}
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "readiness probe cancelled")
		case <-ticker.C:
		}
	}
}

func (p *HTTPReadiness) probe(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}
