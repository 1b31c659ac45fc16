// Package search wraps the search API used to resolve product and
// brand-site URLs. Retries follow the upstream's throttling contract:
// up to 3 attempts on 429, honoring Retry-After when present, with a
// jittered backoff fallback and a hard per-attempt delay cap.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"snaplist/internal/pricing"
)

const (
	maxAttempts     = 3
	maxRetryDelay   = 10 * time.Second
	requestTimeout  = 10 * time.Second
	defaultPageSize = 5
)

// Client calls a JSON search API.
type Client struct {
	hc      *http.Client
	baseURL string
	apiKey  string
	log     zerolog.Logger
}

// NewClient creates a search client for the given API endpoint.
func NewClient(baseURL, apiKey string, logger zerolog.Logger) *Client {
	return &Client{
		hc:      &http.Client{Timeout: requestTimeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		log:     logger,
	}
}

type searchResponse struct {
	Results []struct {
		URL   string `json:"url"`
		Title string `json:"title"`
	} `json:"results"`
}

// Search returns the first result URL for a query, optionally scoped
// to a single site.
func (c *Client) Search(ctx context.Context, query, siteFilter string) (string, error) {
	q := query
	if siteFilter != "" {
		q = "site:" + siteFilter + " " + query
	}
	return c.firstResult(ctx, q)
}

// SearchBrandSite looks for a product page on the brand's own site.
func (c *Client) SearchBrandSite(ctx context.Context, brand, product, domainHint string) (string, error) {
	q := brand + " " + product + " official site price"
	if domainHint != "" {
		q = "site:" + domainHint + " " + product
	}
	return c.firstResult(ctx, q)
}

func (c *Client) firstResult(ctx context.Context, query string) (string, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(defaultPageSize))

	body, err := c.do(ctx, c.baseURL+"/search?"+params.Encode())
	if err != nil {
		return "", err
	}
	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", pricing.NewSignalError("search", pricing.ReasonNoData, err)
	}
	if len(parsed.Results) == 0 {
		return "", nil
	}
	return parsed.Results[0].URL, nil
}

// do runs one request with the retry budget. Network-level failures
// and 429s share the same budget; other statuses fail immediately.
func (c *Client) do(ctx context.Context, fullURL string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, pricing.NewSignalError("search", pricing.ReasonUnavailable, err)
		}
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.hc.Do(req)
		if err != nil {
			lastErr = err
			c.log.Warn().Err(err).Int("attempt", attempt).Msg("search request failed")
			if attempt < maxAttempts {
				sleepCtx(ctx, jitterBackoff())
			}
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("status 429")
			delay := retryDelay(resp.Header.Get("Retry-After"), time.Now())
			c.log.Warn().Dur("delay", delay).Int("attempt", attempt).Msg("search rate limited")
			if attempt < maxAttempts {
				sleepCtx(ctx, delay)
			}
			continue
		}
		if resp.StatusCode >= 400 {
			return nil, pricing.NewSignalError("search", pricing.ReasonHTTPError, fmt.Errorf("status %d", resp.StatusCode))
		}
		if readErr != nil {
			lastErr = readErr
			continue
		}
		return body, nil
	}
	return nil, pricing.NewSignalError("search", pricing.ReasonRateLimited, lastErr)
}

// retryDelay resolves the wait before the next attempt. Retry-After
// may be delta-seconds or an HTTP-date; anything unusable falls back
// to jittered backoff. The result is capped at maxRetryDelay.
func retryDelay(retryAfter string, now time.Time) time.Duration {
	delay := jitterBackoff()
	if retryAfter != "" {
		if secs, err := strconv.Atoi(strings.TrimSpace(retryAfter)); err == nil && secs >= 0 {
			delay = time.Duration(secs) * time.Second
		} else if t, err := http.ParseTime(retryAfter); err == nil {
			delay = t.Sub(now)
		}
	}
	if delay < 0 {
		delay = 0
	}
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	return delay
}

// jitterBackoff is the 1-2s fallback wait.
func jitterBackoff() time.Duration {
	return time.Second + time.Duration(rand.Intn(1000))*time.Millisecond
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
