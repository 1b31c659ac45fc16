package pricing

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"snaplist/internal/metrics"
	"snaplist/pkg/confidence"
)

// Collector gathers competing price observations across a fixed tier
// order: sold comps, marketplace, web-search fallback, brand MSRP.
// Tiers run sequentially to bound external call volume per request;
// each contributes at most one candidate.
type Collector struct {
	comps     SoldStatsFetcher
	pages     PageFetcher
	extractor PriceExtractor
	searcher  Searcher
	webPricer WebPriceSearcher
	registry  BrandRegistry
	limiter   Limiter
	log       zerolog.Logger
}

// CollectorDeps wires the collector's external collaborators. Any nil
// collaborator silently disables the tiers that need it.
type CollectorDeps struct {
	Comps     SoldStatsFetcher
	Pages     PageFetcher
	Extractor PriceExtractor
	Searcher  Searcher
	WebPricer WebPriceSearcher
	Registry  BrandRegistry
	Limiter   Limiter
	Logger    zerolog.Logger
}

// NewCollector creates a signal collector.
func NewCollector(deps CollectorDeps) *Collector {
	return &Collector{
		comps:     deps.Comps,
		pages:     deps.Pages,
		extractor: deps.Extractor,
		searcher:  deps.Searcher,
		webPricer: deps.WebPricer,
		registry:  deps.Registry,
		limiter:   deps.Limiter,
		log:       deps.Logger,
	}
}

// Collect runs every tier and returns the ordered candidate list plus
// sold-comps statistics when available. An empty result is synthesized
// into a single keyword estimate so arbitration always has input.
func (c *Collector) Collect(ctx context.Context, q Query) ([]PriceSignal, *SoldStats) {
	var candidates []PriceSignal

	stats := c.collectSoldComps(ctx, q)
	if stats != nil && stats.P35Cents > 0 {
		candidates = append(candidates, PriceSignal{
			Source:     SourceSoldComps,
			PriceCents: stats.P35Cents,
			Currency:   "USD",
			PackCount:  1,
			Confidence: confidence.High,
			Notes:      fmt.Sprintf("35th percentile of %d sold", stats.SampleCount),
		})
		metrics.SignalsCollected.WithLabelValues(string(SourceSoldComps)).Inc()
	}

	market := c.collectMarketplace(ctx, q)
	if market != nil {
		candidates = append(candidates, *market)
		metrics.SignalsCollected.WithLabelValues(string(SourceMarketplace)).Inc()
	}

	// Web search is a last resort for the retail tier only: it runs
	// when the marketplace tier produced nothing, regardless of comps.
	if market == nil {
		if web := c.collectWebSearch(ctx, q); web != nil {
			candidates = append(candidates, *web)
			metrics.SignalsCollected.WithLabelValues(string(SourceWebSearch)).Inc()
		}
	}

	if brand := c.collectBrandMSRP(ctx, q); brand != nil {
		if suspicious, reason := c.brandBundleCheck(*brand, candidates); suspicious {
			c.log.Info().Str("reason", reason).Int64("brand_cents", brand.PriceCents).
				Msg("dropping brand MSRP candidate")
			metrics.TierFailures.WithLabelValues("brand_msrp", reason).Inc()
		} else {
			candidates = append(candidates, *brand)
			metrics.SignalsCollected.WithLabelValues(string(SourceBrandMSRP)).Inc()
		}
	}

	if len(candidates) == 0 {
		candidates = append(candidates, PriceSignal{
			Source:     SourceEstimate,
			PriceCents: estimateFor(q.Title),
			Currency:   "USD",
			PackCount:  1,
			Confidence: confidence.Min,
			Notes:      "keyword estimate, no external signals",
		})
		metrics.SignalsCollected.WithLabelValues(string(SourceEstimate)).Inc()
	}

	return candidates, stats
}

// brandBundleCheck compares a brand MSRP against the cheapest
// brand-matched marketplace candidate.
func (c *Collector) brandBundleCheck(brand PriceSignal, candidates []PriceSignal) (bool, string) {
	var cheapest int64
	for _, cand := range candidates {
		if cand.Source != SourceMarketplace || !cand.MatchesBrand {
			continue
		}
		if cheapest == 0 || cand.PriceCents < cheapest {
			cheapest = cand.PriceCents
		}
	}
	if cheapest == 0 {
		return false, "no_comparable_market_price"
	}
	return BundlePriceSuspicious(brand.PriceCents, cheapest)
}

// --- tier 1: sold comps ---

func (c *Collector) collectSoldComps(ctx context.Context, q Query) *SoldStats {
	if c.comps == nil {
		return nil
	}
	stats, err := c.comps.FetchSoldStats(ctx, CompsQuery{
		Title:     q.Title,
		Brand:     q.Brand,
		UPC:       q.UPC,
		Condition: q.Condition,
		Quantity:  q.LotQuantity(),
	})
	if err != nil {
		c.skipTier("sold_comps", err)
		return nil
	}
	if stats.RateLimited {
		// Distinct from "no data": the source had comps we could not read.
		c.log.Warn().Str("tier", "sold_comps").Msg("comps fetcher rate limited, tier skipped")
		metrics.TierFailures.WithLabelValues("sold_comps", string(ReasonRateLimited)).Inc()
		return nil
	}
	if !stats.OK {
		return nil
	}
	return &stats
}

// --- tier 2: marketplace ---

// marketplaceState makes the single size-focused retry an explicit
// invariant instead of an inline retry block.
type marketplaceState int

const (
	stateInitial marketplaceState = iota
	stateRetriedWithSizeQuery
	stateExhausted
)

func (c *Collector) collectMarketplace(ctx context.Context, q Query) *PriceSignal {
	if c.pages == nil || c.extractor == nil {
		return nil
	}

	searchQuery := strings.TrimSpace(q.Brand + " " + q.Title)
	state := stateInitial
	for state != stateExhausted {
		sig, rejectReason := c.marketplaceAttempt(ctx, q, searchQuery, state)
		if sig != nil {
			return sig
		}
		if rejectReason == "size_ratio_out_of_bounds" && state == stateInitial {
			state = stateRetriedWithSizeQuery
			searchQuery = sizeFirstQuery(q)
			c.log.Debug().Str("query", searchQuery).Msg("marketplace size mismatch, retrying with size-first query")
			continue
		}
		if rejectReason != "" {
			metrics.TierFailures.WithLabelValues("marketplace", rejectReason).Inc()
		}
		state = stateExhausted
	}
	return nil
}

func (c *Collector) marketplaceAttempt(ctx context.Context, q Query, searchQuery string, state marketplaceState) (*PriceSignal, string) {
	pageURL, trusted := c.resolveMarketplaceURL(ctx, q, searchQuery, state)
	if pageURL == "" {
		return nil, ""
	}

	html, err := c.pages.Fetch(ctx, pageURL)
	if err != nil {
		c.skipTier("marketplace", err)
		return nil, ""
	}
	extract, ok := c.extractor.ExtractPriceWithShipping(html, q.Title)
	if !ok || extract.ItemPriceCents <= 0 {
		return nil, "no_price_on_page"
	}

	sig := &PriceSignal{
		Source:     SourceMarketplace,
		PriceCents: extract.ItemPriceCents,
		Currency:   "USD",
		SourceURL:  pageURL,
		PackCount:  1,
		Confidence: confidence.Medium,
	}
	switch extract.ShippingEvidence {
	case ShippingFree:
		zero := int64(0)
		sig.ShippingCents = &zero
	case ShippingPaid:
		sig.ShippingCents = extract.ShippingCents
	}

	if trusted {
		// Registry-resolved ASINs are curated; page checks are skipped.
		sig.MatchesBrand = true
		sig.Notes = "registry asin"
		return sig, ""
	}

	if det := DetectBundlePage(extract.PageTitle, q.PackQuantity(), q.LotQuantity()); det.IsBundle {
		return nil, det.Reason
	} else {
		sig.PackCount = det.PackCount
	}
	if mismatch, reason := SizeMismatch(extract.PageTitle, q.Title); mismatch {
		return nil, reason
	}
	if q.Brand != "" {
		match, _ := BrandMatches(q.Brand, extract.PageTitle)
		sig.MatchesBrand = match
		if !match {
			return nil, "brand_mismatch"
		}
	}
	sig.Notes = "search result"
	return sig, ""
}

func (c *Collector) resolveMarketplaceURL(ctx context.Context, q Query, searchQuery string, state marketplaceState) (string, bool) {
	// Trusted ASIN resolution only applies to the initial attempt; the
	// size retry exists precisely because the first page was wrong.
	if state == stateInitial && c.registry != nil && q.Brand != "" {
		asin, err := c.registry.GetASIN(ctx, q.Brand, q.Title)
		if err != nil {
			c.log.Debug().Err(err).Msg("brand registry lookup failed")
		} else if asin != "" {
			return "https://www.amazon.com/dp/" + asin, true
		}
	}
	if c.searcher == nil {
		return "", false
	}
	c.wait(ctx)
	pageURL, err := c.searcher.Search(ctx, searchQuery, "amazon.com")
	if err != nil {
		c.skipTier("marketplace", err)
		return "", false
	}
	return pageURL, false
}

// sizeFirstQuery reformulates the search with the product size leading.
func sizeFirstQuery(q Query) string {
	size := reSize.FindString(q.Title)
	parts := []string{}
	if size != "" {
		parts = append(parts, size)
	}
	if q.Brand != "" {
		parts = append(parts, q.Brand)
	}
	parts = append(parts, q.Title)
	return strings.Join(parts, " ")
}

// --- tier 3: web-search fallback ---

func (c *Collector) collectWebSearch(ctx context.Context, q Query) *PriceSignal {
	if c.webPricer == nil {
		return nil
	}
	c.wait(ctx)
	web, err := c.webPricer.FindPrice(ctx, q.Title, q.Brand)
	if err != nil {
		c.skipTier("web_search", err)
		return nil
	}
	if web.PriceCents <= 0 {
		return nil
	}
	return &PriceSignal{
		Source:     SourceWebSearch,
		PriceCents: web.PriceCents,
		Currency:   "USD",
		SourceURL:  web.SourceURL,
		PackCount:  1,
		Confidence: confidence.FromLabel(web.Confidence),
		Notes:      "web search, confidence " + web.Confidence,
	}
}

// --- tier 4: brand MSRP ---

func (c *Collector) collectBrandMSRP(ctx context.Context, q Query) *PriceSignal {
	if q.Brand == "" || c.pages == nil || c.extractor == nil {
		return nil
	}

	var bestCents int64
	var bestURL, bestVia string
	consider := func(cents int64, pageURL, via string) {
		if cents <= 0 {
			return
		}
		if bestCents == 0 || cents < bestCents {
			bestCents, bestURL, bestVia = cents, pageURL, via
		}
	}

	primary := q.BrandSiteHint
	domainUnreachable := false
	if primary != "" {
		if isBareHomepage(primary) {
			// Homepages tend to show bundle or subscription pricing.
			c.log.Debug().Str("url", primary).Msg("skipping bare homepage brand URL")
			primary = ""
		} else {
			cents, err := c.priceAt(ctx, primary, q.Title)
			if err != nil && ReasonOf(err) == ReasonDNSFailure {
				// Domain unreachable: probing path variations of a dead
				// host is pointless.
				domainUnreachable = true
				c.skipTier("brand_msrp", err)
			}
			consider(cents, primary, "vision_url")
		}
	}

	// Even after a hit, variations are still probed: keep the lowest
	// observed price in case the primary page showed a bundle.
	if primary != "" && !domainUnreachable {
		for _, variant := range urlVariations(primary, q.Title) {
			cents, _ := c.priceAt(ctx, variant, q.Title)
			consider(cents, variant, "url_variation")
		}
	}

	if bestCents == 0 && c.registry != nil {
		rec, err := c.registry.GetURLs(ctx, normalizeName(q.Brand))
		if err == nil && rec.ProductURL != "" && !rec.RequiresJS {
			cents, _ := c.priceAt(ctx, rec.ProductURL, q.Title)
			consider(cents, rec.ProductURL, "curated_map")
		}
	}

	if bestCents == 0 && c.searcher != nil {
		c.wait(ctx)
		found, err := c.searcher.SearchBrandSite(ctx, q.Brand, q.Title, domainOf(q.BrandSiteHint))
		if err != nil {
			c.skipTier("brand_msrp", err)
		} else if found != "" {
			cents, _ := c.priceAt(ctx, found, q.Title)
			consider(cents, found, "brand_search")
			if cents > 0 && c.registry != nil {
				if err := c.registry.SetURLs(ctx, normalizeName(q.Brand), BrandURLs{ProductURL: found}); err != nil {
					c.log.Debug().Err(err).Msg("brand registry update failed")
				}
			}
		}
	}

	if bestCents == 0 {
		return nil
	}
	return &PriceSignal{
		Source:       SourceBrandMSRP,
		PriceCents:   bestCents,
		Currency:     "USD",
		SourceURL:    bestURL,
		MatchesBrand: true,
		PackCount:    1,
		Confidence:   confidence.Medium,
		Notes:        "brand site via " + bestVia,
	}
}

// priceAt fetches a page and extracts its price.
func (c *Collector) priceAt(ctx context.Context, pageURL, hintTitle string) (int64, error) {
	html, err := c.pages.Fetch(ctx, pageURL)
	if err != nil {
		return 0, err
	}
	cents, ok := c.extractor.ExtractPrice(html, hintTitle)
	if !ok {
		return 0, nil
	}
	return cents, nil
}

// isBareHomepage reports whether a URL has no meaningful path.
func isBareHomepage(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	path := strings.TrimRight(u.Path, "/")
	return path == ""
}

// urlVariations builds a small deterministic set of product-page path
// guesses on the same host as the primary URL.
func urlVariations(primary, title string) []string {
	u, err := url.Parse(primary)
	if err != nil || u.Host == "" {
		return nil
	}
	base := u.Scheme + "://" + u.Host
	slug := titleSlug(title)
	if slug == "" {
		return nil
	}
	return []string{
		base + "/products/" + slug,
		base + "/product/" + slug,
		base + "/shop/" + slug,
	}
}

// titleSlug builds a hyphenated slug from the first few title words.
func titleSlug(title string) string {
	words := strings.Fields(strings.ToLower(title))
	if len(words) > 6 {
		words = words[:6]
	}
	for i, w := range words {
		words[i] = nonAlnum.ReplaceAllString(w, "")
	}
	out := []string{}
	for _, w := range words {
		if w != "" {
			out = append(out, w)
		}
	}
	return strings.Join(out, "-")
}

func domainOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}

// wait paces outbound search calls through the injected limiter.
func (c *Collector) wait(ctx context.Context) {
	if c.limiter != nil {
		c.limiter.Wait(ctx)
	}
}

// skipTier logs a degraded tier with its classified reason.
func (c *Collector) skipTier(tier string, err error) {
	reason := ReasonOf(err)
	c.log.Warn().Str("tier", tier).Str("reason", string(reason)).Err(err).Msg("tier contributed no signal")
	metrics.TierFailures.WithLabelValues(tier, string(reason)).Inc()
}
