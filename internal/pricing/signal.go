// Package pricing implements the pricing decision engine: signal
// collection across external price sources, structural validation of
// raw observations, arbitration between competing signals, and the
// deterministic item/shipping allocation that produces the final
// listing price.
package pricing

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Source identifies where a price observation came from.
type Source string

const (
	SourceSoldComps   Source = "sold_comps"
	SourceMarketplace Source = "marketplace"
	SourceBrandMSRP   Source = "brand_msrp"
	SourceWebSearch   Source = "web_search"
	SourceEstimate    Source = "estimate"
)

// PriceSignal is a single competing price observation. Signals are
// immutable once constructed; the collector builds them, the validator
// and arbiter consume them, and only the chosen one outlives the
// decision (persisted through the cache gateway).
type PriceSignal struct {
	Source        Source  `json:"source"`
	PriceCents    int64   `json:"price_cents"`
	Currency      string  `json:"currency"`
	SourceURL     string  `json:"source_url,omitempty"`
	ShippingCents *int64  `json:"shipping_cents,omitempty"`
	MatchesBrand  bool    `json:"matches_brand"`
	PackCount     int     `json:"pack_count"`
	Confidence    float64 `json:"confidence"`
	Notes         string  `json:"notes,omitempty"`
}

// packSize returns the detected pack size, never below 1.
func (s PriceSignal) packSize() int {
	if s.PackCount < 1 {
		return 1
	}
	return s.PackCount
}

// Query describes the product being priced. Everything beyond Title is
// optional; hints improve tier resolution but their absence only
// narrows the signal set.
type Query struct {
	Title         string `json:"title"`
	Brand         string `json:"brand,omitempty"`
	UPC           string `json:"upc,omitempty"`
	BrandSiteHint string `json:"brand_site_hint,omitempty"` // vision-provided brand URL
	KeyText       string `json:"key_text,omitempty"`
	Condition     string `json:"condition,omitempty"`
	Quantity      int    `json:"quantity,omitempty"` // photographed lot size
	PackHint      int    `json:"pack_hint,omitempty"`
}

// LotQuantity returns the photographed quantity, never below 1.
func (q Query) LotQuantity() int {
	if q.Quantity < 1 {
		return 1
	}
	return q.Quantity
}

// PackQuantity returns the per-unit pack hint, never below 1.
func (q Query) PackQuantity() int {
	if q.PackHint < 1 {
		return 1
	}
	return q.PackHint
}

// SoldStats are recent-sale statistics for comparable items.
type SoldStats struct {
	OK          bool  `json:"ok"`
	RateLimited bool  `json:"rate_limited"`
	P35Cents    int64 `json:"p35_cents,omitempty"`
	MedianCents int64 `json:"median_cents,omitempty"`
	SampleCount int   `json:"sample_count"`
}

// PriceDecision is the outcome of one pricing lookup.
type PriceDecision struct {
	OK                           bool              `json:"ok"`
	DecisionID                   uuid.UUID         `json:"decision_id"`
	Chosen                       *PriceSignal      `json:"chosen,omitempty"`
	Candidates                   []PriceSignal     `json:"candidates"`
	RecommendedListingPriceCents int64             `json:"recommended_listing_price_cents,omitempty"`
	Allocation                   *AllocationResult `json:"allocation,omitempty"`
	Reason                       string            `json:"reason"`
	NeedsManualReview            bool              `json:"needs_manual_review,omitempty"`
	Confidence                   float64           `json:"confidence"`
	FromCache                    bool              `json:"from_cache,omitempty"`
}

// CacheEntry is the persisted form of a resolved decision. Only the
// MSRP-equivalent signal is stored, never the computed listing price,
// so a later settings change re-derives a fresh price without a
// network lookup.
type CacheEntry struct {
	MsrpCents  int64         `json:"msrp_cents"`
	Chosen     PriceSignal   `json:"chosen"`
	Candidates []PriceSignal `json:"candidates"`
	CachedAt   time.Time     `json:"cached_at"`
}

// CacheFloorCents is the sanity floor applied on both cache read and
// write. Entries below it are treated as corrupted.
const CacheFloorCents int64 = 500

// MinUsablePriceCents is the decision floor: results below it are
// downgraded to manual review instead of being returned as usable.
const MinUsablePriceCents int64 = 500

// Fallback estimates keyed on title keywords, used when every tier
// came back empty. Matched in order; first hit wins.
var estimateTable = []struct {
	keywords []string
	cents    int64
}{
	{[]string{"serum", "cream"}, 2499},
	{[]string{"supplement", "vitamin", "capsule"}, 2999},
	{[]string{"protein", "pre-workout", "collagen"}, 3999},
	{[]string{"fish oil"}, 2499},
}

const defaultEstimateCents int64 = 2999

// estimateFor synthesizes a last-resort price from the keyword table.
func estimateFor(title string) int64 {
	t := strings.ToLower(title)
	for _, row := range estimateTable {
		for _, kw := range row.keywords {
			if strings.Contains(t, kw) {
				return row.cents
			}
		}
	}
	return defaultEstimateCents
}
