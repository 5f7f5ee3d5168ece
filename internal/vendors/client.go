// Package vendors holds rate-limited HTTP clients for the external price APIs
// the sync service pulls from.
package vendors

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/codyseavey/tcg-valuation/internal/metrics"
	"github.com/codyseavey/tcg-valuation/internal/models"
)

const (
	requestTimeout = 30 * time.Second
	maxRetries     = 3
	initialBackoff = 1 * time.Second
	maxBackoff     = 16 * time.Second
	userAgent      = "tcg-valuation/1.0"
)

// ErrNotFound is returned when the vendor has no record for the requested id.
var ErrNotFound = errors.New("vendor: not found")

// StatusError is a non-retryable, non-404 HTTP failure.
type StatusError struct {
	Vendor     models.Vendor
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API returned status %d: %s", e.Vendor, e.StatusCode, e.Body)
}

// Options configures a vendor client. Zero values pick the defaults.
type Options struct {
	BaseURL       string
	APIKey        string
	RatePerSecond float64
	HTTPClient    *http.Client
	// InitialBackoff overrides the retry backoff; tests set it to a few ms.
	InitialBackoff time.Duration
}

// client is the shared request loop: rate limiting, retry with exponential
// backoff on 429/5xx and network errors, JSON decoding.
type client struct {
	vendor     models.Vendor
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	backoff    time.Duration
	headers    map[string]string
}

func newClient(vendor models.Vendor, defaultBaseURL string, defaultRate float64, opts Options) *client {
	c := &client{
		vendor:     vendor,
		baseURL:    defaultBaseURL,
		httpClient: opts.HTTPClient,
		backoff:    initialBackoff,
		headers:    map[string]string{},
	}
	if opts.BaseURL != "" {
		c.baseURL = opts.BaseURL
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: requestTimeout}
	}
	if opts.InitialBackoff > 0 {
		c.backoff = opts.InitialBackoff
	}

	perSecond := opts.RatePerSecond
	if perSecond <= 0 {
		perSecond = defaultRate
	}
	c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	return c
}

func (c *client) getJSON(ctx context.Context, url string, out any) error {
	return c.do(ctx, http.MethodGet, url, nil, out)
}

func (c *client) postJSON(ctx context.Context, url string, body, out any) error {
	return c.do(ctx, http.MethodPost, url, body, out)
}

func (c *client) do(ctx context.Context, method, url string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	var lastErr error
	backoff := c.backoff

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter error: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		for k, v := range c.headers {
			req.Header.Set(k, v)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			metrics.VendorRequestsTotal.WithLabelValues(string(c.vendor), "error").Inc()
			lastErr = fmt.Errorf("HTTP request failed: %w", err)
			if attempt < maxRetries && ctx.Err() == nil {
				sleep(ctx, backoff)
				backoff = min(backoff*2, maxBackoff)
				continue
			}
			return lastErr
		}

		metrics.VendorRequestsTotal.WithLabelValues(string(c.vendor), strconv.Itoa(resp.StatusCode)).Inc()
		retry, err := c.handle(resp, out)
		if !retry {
			return err
		}

		lastErr = err
		if attempt < maxRetries {
			wait := backoff
			if after, perr := strconv.Atoi(resp.Header.Get("Retry-After")); perr == nil && after > 0 {
				wait = time.Duration(after) * time.Second
			}
			sleep(ctx, wait)
			backoff = min(backoff*2, maxBackoff)
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// handle consumes resp. retry reports whether the request may be repeated.
func (c *client) handle(resp *http.Response, out any) (retry bool, err error) {
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return false, fmt.Errorf("failed to decode %s response: %w", c.vendor, err)
		}
		return false, nil
	case resp.StatusCode == http.StatusNotFound:
		return false, ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return true, fmt.Errorf("%s rate limited (HTTP 429)", c.vendor)
	case resp.StatusCode >= 500:
		return true, fmt.Errorf("%s API returned status %d", c.vendor, resp.StatusCode)
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, &StatusError{Vendor: c.vendor, StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(msg))}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// chunk splits ids into batches of at most size.
func chunk(ids []string, size int) [][]string {
	if size <= 0 {
		size = len(ids)
	}
	var out [][]string
	for len(ids) > 0 {
		n := min(size, len(ids))
		out = append(out, ids[:n])
		ids = ids[n:]
	}
	return out
}
