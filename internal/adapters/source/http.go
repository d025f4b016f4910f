package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultFetchTimeout = 60 * time.Second

// HTTPOpener fetches files with GET requests.
type HTTPOpener struct {
	client *http.Client
}

// NewHTTPOpener creates an opener. A nil client gets one with timeout.
func NewHTTPOpener(client *http.Client, timeout time.Duration) *HTTPOpener {
	if client == nil {
		if timeout <= 0 {
			timeout = defaultFetchTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPOpener{client: client}
}

// Name returns "http".
func (o *HTTPOpener) Name() string { return "http" }

// Open issues a GET for location and returns the body on 200.
func (o *HTTPOpener) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	url := strings.TrimSpace(location)
	if url == "" {
		return nil, fmt.Errorf("%w: empty url", ErrFetch)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", ErrFetch, err)
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, url)
	case resp.StatusCode != http.StatusOK:
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: %s: http %d", ErrFetch, url, resp.StatusCode)
	}
	return resp.Body, nil
}
