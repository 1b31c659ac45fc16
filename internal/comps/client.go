// Package comps fetches sold-comparable statistics from the comps API.
// When the API returns raw sale prices without percentiles, the client
// computes them locally.
package comps

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"snaplist/internal/pricing"
)

const requestTimeout = 10 * time.Second

// Client calls the sold-comps statistics API.
type Client struct {
	hc      *http.Client
	baseURL string
	apiKey  string
	log     zerolog.Logger
}

// NewClient creates a comps client.
func NewClient(baseURL, apiKey string, logger zerolog.Logger) *Client {
	return &Client{
		hc:      &http.Client{Timeout: requestTimeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		log:     logger,
	}
}

type compsResponse struct {
	OK          bool     `json:"ok"`
	RateLimited bool     `json:"rate_limited"`
	P35         *float64 `json:"p35,omitempty"`
	Median      *float64 `json:"median,omitempty"`
	Samples     []string `json:"samples"` // sale prices in dollars
}

// FetchSoldStats queries recent sold comps for the product.
func (c *Client) FetchSoldStats(ctx context.Context, q pricing.CompsQuery) (pricing.SoldStats, error) {
	params := url.Values{}
	params.Set("title", q.Title)
	if q.Brand != "" {
		params.Set("brand", q.Brand)
	}
	if q.UPC != "" {
		params.Set("upc", q.UPC)
	}
	if q.Condition != "" {
		params.Set("condition", q.Condition)
	}
	if q.Quantity > 1 {
		params.Set("quantity", strconv.Itoa(q.Quantity))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/sold?"+params.Encode(), nil)
	if err != nil {
		return pricing.SoldStats{}, pricing.NewSignalError("comps", pricing.ReasonUnavailable, err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return pricing.SoldStats{}, pricing.NewSignalError("comps", pricing.ReasonTimeout, err)
	}
	defer resp.Body.Close()

	// Upstream throttling is a first-class outcome, not an error: the
	// collector skips the tier and says so.
	if resp.StatusCode == http.StatusTooManyRequests {
		return pricing.SoldStats{RateLimited: true}, nil
	}
	if resp.StatusCode >= 400 {
		return pricing.SoldStats{}, pricing.NewSignalError("comps", pricing.ReasonHTTPError, fmt.Errorf("status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return pricing.SoldStats{}, pricing.NewSignalError("comps", pricing.ReasonUnavailable, err)
	}
	var parsed compsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return pricing.SoldStats{}, pricing.NewSignalError("comps", pricing.ReasonNoData, err)
	}
	if parsed.RateLimited {
		return pricing.SoldStats{RateLimited: true}, nil
	}

	stats := pricing.SoldStats{OK: parsed.OK, SampleCount: len(parsed.Samples)}
	samples := parseSamples(parsed.Samples)

	if parsed.P35 != nil {
		stats.P35Cents = dollarsToCents(*parsed.P35)
	} else if len(samples) > 0 {
		stats.P35Cents = Percentile(samples, 35)
	}
	if parsed.Median != nil {
		stats.MedianCents = dollarsToCents(*parsed.Median)
	} else if len(samples) > 0 {
		stats.MedianCents = Percentile(samples, 50)
	}
	if stats.P35Cents > 0 {
		stats.OK = true
	}
	return stats, nil
}

func parseSamples(raw []string) []int64 {
	out := make([]int64, 0, len(raw))
	for _, s := range raw {
		d, err := decimal.NewFromString(strings.TrimPrefix(strings.TrimSpace(s), "$"))
		if err != nil {
			continue
		}
		cents := d.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
		if cents > 0 {
			out = append(out, cents)
		}
	}
	return out
}

// Percentile computes the nearest-rank percentile over sale prices in
// cents. The input need not be sorted.
func Percentile(cents []int64, pct int) int64 {
	if len(cents) == 0 {
		return 0
	}
	sorted := append([]int64(nil), cents...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	rank := int(math.Ceil(float64(pct) / 100 * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}

func dollarsToCents(v float64) int64 {
	return int64(math.Round(v * 100))
}
