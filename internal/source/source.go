// Package source defines the adapter contract between remote legal
// publication origins and the fetch stage, plus the adapters shipped with
// the pipeline. An adapter only has to yield raw bytes and descriptive
// metadata; everything downstream is origin-agnostic.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Item is one candidate document yielded by an adapter.
type Item struct {
	ID    string // stable source-specific identifier (link path, file name)
	URL   string
	Title string
	Ext   string // file extension hint: ".html", ".pdf", ".txt", ".md"
	Body  []byte
}

// Adapter yields candidate documents from one origin. Implementations must
// serialize their own requests against the remote host; limit bounds the
// number of items emitted (0 means no bound). A single item's failure is
// the adapter's to log and skip, not to return.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, limit int, emit func(Item) error) error
}

// httpClient wraps an http.Client with a per-origin rate limiter so
// requests against one host stay serialized and polite.
type httpClient struct {
	client  *http.Client
	limiter *rate.Limiter
}

func newHTTPClient(interval time.Duration) *httpClient {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	return &httpClient{
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Every(interval), 1),
	}
}

// get downloads url, returning an error for network failures and non-200
// responses alike. Callers treat these as transient and skip the item.
func (c *httpClient) get(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
