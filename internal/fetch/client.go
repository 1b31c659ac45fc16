// Package fetch retrieves product pages with a hard abort deadline and
// classifies failures so the collector can log DNS, timeout, and HTTP
// errors distinctly.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"snaplist/internal/pricing"
)

// DefaultTimeout is the abort-after policy for page fetches.
const DefaultTimeout = 10 * time.Second

const maxBodyBytes = 2 << 20 // product pages past 2MB are not worth parsing

// Client fetches raw HTML.
type Client struct {
	hc      *http.Client
	timeout time.Duration
	log     zerolog.Logger
}

// NewClient creates a page fetcher. A non-positive timeout gets the
// default.
func NewClient(timeout time.Duration, logger zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		hc:      &http.Client{Timeout: timeout},
		timeout: timeout,
		log:     logger,
	}
}

// Fetch retrieves a page body. Errors come back as classified signal
// errors; callers treat them as "no data" for the source, never fatal.
func (c *Client) Fetch(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", pricing.NewSignalError("fetch", pricing.ReasonUnavailable, err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; snaplist/1.0)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", pricing.NewSignalError("fetch", classify(err), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", pricing.NewSignalError("fetch", pricing.ReasonRateLimited, fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return "", pricing.NewSignalError("fetch", pricing.ReasonHTTPError, fmt.Errorf("status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", pricing.NewSignalError("fetch", classify(err), err)
	}
	return string(body), nil
}

// classify maps transport errors onto the signal-reason taxonomy.
func classify(err error) pricing.SignalReason {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return pricing.ReasonDNSFailure
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return pricing.ReasonTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return pricing.ReasonTimeout
	}
	return pricing.ReasonUnavailable
}
