package pricing

import (
	"context"
	"time"
)

// Collaborator contracts. The engine owns none of the network, HTML,
// or model mechanics behind these; each call site catches failures
// and degrades to "no signal from this source".

// CompsQuery narrows a sold-comps lookup.
type CompsQuery struct {
	Title     string
	Brand     string
	UPC       string
	Condition string
	Quantity  int
}

// SoldStatsFetcher returns recent-sale statistics for similar items.
type SoldStatsFetcher interface {
	FetchSoldStats(ctx context.Context, q CompsQuery) (SoldStats, error)
}

// PageFetcher retrieves raw HTML for a product URL.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// ShippingEvidence is what a product page says about shipping cost.
type ShippingEvidence string

const (
	ShippingFree    ShippingEvidence = "free"
	ShippingPaid    ShippingEvidence = "paid"
	ShippingUnknown ShippingEvidence = "unknown"
)

// PageExtract is the priced content pulled from a product page.
type PageExtract struct {
	ItemPriceCents   int64
	ShippingCents    *int64
	ShippingEvidence ShippingEvidence
	PageTitle        string
}

// PriceExtractor pulls price text out of fetched HTML.
type PriceExtractor interface {
	ExtractPrice(html, hintTitle string) (int64, bool)
	ExtractPriceWithShipping(html, hintTitle string) (PageExtract, bool)
}

// Searcher resolves product and brand-site URLs.
type Searcher interface {
	Search(ctx context.Context, query, siteFilter string) (string, error)
	SearchBrandSite(ctx context.Context, brand, product, domainHint string) (string, error)
}

// WebPrice is a best-effort price found by the web-search fallback.
type WebPrice struct {
	PriceCents int64
	Confidence string // "high", "medium", "low"
	SourceURL  string
}

// WebPriceSearcher is the lowest-trust fallback: ask an external
// collaborator to search the web and name a single price.
type WebPriceSearcher interface {
	FindPrice(ctx context.Context, title, brand string) (WebPrice, error)
}

// Arbitrator is a single chat-completion call. Prompt construction
// and response parsing belong to the Arbiter, not this collaborator.
type Arbitrator interface {
	Arbitrate(ctx context.Context, prompt string) (string, error)
}

// CacheStore is the key/value store behind the cache gateway. The
// 30-day expiry is enforced by the store, not by this package.
type CacheStore interface {
	Get(ctx context.Context, key string) (*CacheEntry, error)
	Set(ctx context.Context, key string, entry *CacheEntry) error
}

// BrandURLs is a registry record for a brand signature.
type BrandURLs struct {
	ProductURL string
	RequiresJS bool
}

// BrandRegistry maps brands to trusted marketplace ASINs and curated
// brand-site URLs.
type BrandRegistry interface {
	GetASIN(ctx context.Context, brand, title string) (string, error)
	GetURLs(ctx context.Context, signature string) (BrandURLs, error)
	SetURLs(ctx context.Context, signature string, patch BrandURLs) error
}

// Limiter paces outbound search calls.
type Limiter interface {
	Wait(ctx context.Context)
}

// DecisionRecord is the archived form of one decision, appended for
// offline threshold calibration.
type DecisionRecord struct {
	DecisionID       string
	QueryTitle       string
	QueryBrand       string
	Candidates       []PriceSignal
	ChosenSource     Source
	RecommendedCents int64
	OK               bool
	Reason           string
	CreatedAt        time.Time
}

// Archive is an append-only store of decision records.
type Archive interface {
	Append(ctx context.Context, rec DecisionRecord) error
}
