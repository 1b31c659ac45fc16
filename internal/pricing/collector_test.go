package pricing

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- stub collaborators ---

type stubComps struct {
	stats SoldStats
	err   error
	calls int
}

func (s *stubComps) FetchSoldStats(_ context.Context, _ CompsQuery) (SoldStats, error) {
	s.calls++
	return s.stats, s.err
}

type stubPages struct {
	pages   map[string]string
	errs    map[string]error
	fetched []string
}

func (s *stubPages) Fetch(_ context.Context, url string) (string, error) {
	s.fetched = append(s.fetched, url)
	if err, ok := s.errs[url]; ok {
		return "", err
	}
	html, ok := s.pages[url]
	if !ok {
		return "", NewSignalError("fetch", ReasonHTTPError, errors.New("status 404"))
	}
	return html, nil
}

// stubExtractor treats the "html" string as "<title>|<cents>".
type stubExtractor struct {
	shipping map[string]PageExtract
}

func (s *stubExtractor) ExtractPrice(html, _ string) (int64, bool) {
	ex, ok := s.parse(html)
	if !ok {
		return 0, false
	}
	return ex.ItemPriceCents, true
}

func (s *stubExtractor) ExtractPriceWithShipping(html, _ string) (PageExtract, bool) {
	return s.parse(html)
}

func (s *stubExtractor) parse(html string) (PageExtract, bool) {
	if ex, ok := s.shipping[html]; ok {
		return ex, true
	}
	parts := strings.Split(html, "|")
	if len(parts) != 2 {
		return PageExtract{}, false
	}
	var cents int64
	for _, ch := range parts[1] {
		cents = cents*10 + int64(ch-'0')
	}
	return PageExtract{ItemPriceCents: cents, PageTitle: parts[0], ShippingEvidence: ShippingUnknown}, true
}

type stubSearcher struct {
	results      []string // consumed in order by Search
	brandResult  string
	queries      []string
	brandQueries int
	err          error
}

func (s *stubSearcher) Search(_ context.Context, query, _ string) (string, error) {
	s.queries = append(s.queries, query)
	if s.err != nil {
		return "", s.err
	}
	if len(s.results) == 0 {
		return "", NewSignalError("search", ReasonNoData, nil)
	}
	url := s.results[0]
	s.results = s.results[1:]
	return url, nil
}

func (s *stubSearcher) SearchBrandSite(_ context.Context, _, _, _ string) (string, error) {
	s.brandQueries++
	if s.err != nil {
		return "", s.err
	}
	return s.brandResult, nil
}

type stubWebPricer struct {
	price WebPrice
	err   error
	calls int
}

func (s *stubWebPricer) FindPrice(_ context.Context, _, _ string) (WebPrice, error) {
	s.calls++
	return s.price, s.err
}

type stubRegistry struct {
	asin     string
	urls     map[string]BrandURLs
	setCalls map[string]BrandURLs
}

func (s *stubRegistry) GetASIN(_ context.Context, _, _ string) (string, error) {
	return s.asin, nil
}

func (s *stubRegistry) GetURLs(_ context.Context, signature string) (BrandURLs, error) {
	return s.urls[signature], nil
}

func (s *stubRegistry) SetURLs(_ context.Context, signature string, patch BrandURLs) error {
	if s.setCalls == nil {
		s.setCalls = map[string]BrandURLs{}
	}
	s.setCalls[signature] = patch
	return nil
}

type stubLimiter struct{ waits int }

func (s *stubLimiter) Wait(_ context.Context) { s.waits++ }

func newTestCollector(deps CollectorDeps) *Collector {
	deps.Logger = zerolog.Nop()
	return NewCollector(deps)
}

// --- tests ---

func TestCollectTierOrder(t *testing.T) {
	comps := &stubComps{stats: SoldStats{OK: true, P35Cents: 2150, MedianCents: 2400, SampleCount: 18}}
	searcher := &stubSearcher{results: []string{"https://www.amazon.com/listing"}}
	pages := &stubPages{pages: map[string]string{
		"https://www.amazon.com/listing":          "CeraVe Moisturizing Cream 16 oz|2399",
		"https://cerave.com/cream":                "CeraVe Moisturizing Cream 16 oz|2599",
		"https://cerave.com/products/cerave-moisturizing-cream-16-oz": "CeraVe Moisturizing Cream 16 oz|2499",
	}}
	web := &stubWebPricer{price: WebPrice{PriceCents: 2299, Confidence: "medium"}}

	c := newTestCollector(CollectorDeps{
		Comps:     comps,
		Pages:     pages,
		Extractor: &stubExtractor{},
		Searcher:  searcher,
		WebPricer: web,
		Limiter:   &stubLimiter{},
	})

	q := Query{Title: "CeraVe Moisturizing Cream 16 oz", Brand: "CeraVe", BrandSiteHint: "https://cerave.com/cream"}
	candidates, stats := c.Collect(context.Background(), q)

	require.NotNil(t, stats)
	assert.Equal(t, int64(2150), stats.P35Cents)

	var sources []Source
	for _, cand := range candidates {
		sources = append(sources, cand.Source)
	}
	assert.Equal(t, []Source{SourceSoldComps, SourceMarketplace, SourceBrandMSRP}, sources)

	// Web search never runs once the marketplace tier produced a signal.
	assert.Equal(t, 0, web.calls)

	// Brand tier keeps the cheapest observation across the primary URL
	// and its path variations.
	brand := candidates[2]
	assert.Equal(t, int64(2499), brand.PriceCents)
	assert.True(t, brand.MatchesBrand)
}

func TestCollectRateLimitedCompsSkipsTier(t *testing.T) {
	comps := &stubComps{stats: SoldStats{RateLimited: true}}
	c := newTestCollector(CollectorDeps{Comps: comps})

	candidates, stats := c.Collect(context.Background(), Query{Title: "Vitamin C Serum"})

	assert.Nil(t, stats)
	require.Len(t, candidates, 1)
	assert.Equal(t, SourceEstimate, candidates[0].Source)
	assert.Equal(t, int64(2499), candidates[0].PriceCents)
}

func TestCollectEstimateFallback(t *testing.T) {
	c := newTestCollector(CollectorDeps{})

	cases := []struct {
		title string
		cents int64
	}{
		{"Vitamin C Serum 1 fl oz", 2499},
		{"Magnesium Supplement 120 Capsules", 2999},
		{"Whey Protein Chocolate", 3999},
		{"Omega-3 Fish Oil Softgels", 2499},
		{"Mystery Item", 2999},
	}
	for _, tc := range cases {
		candidates, _ := c.Collect(context.Background(), Query{Title: tc.title})
		require.Len(t, candidates, 1, tc.title)
		assert.Equal(t, SourceEstimate, candidates[0].Source)
		assert.Equal(t, tc.cents, candidates[0].PriceCents, tc.title)
	}
}

func TestCollectMarketplaceSizeRetry(t *testing.T) {
	searcher := &stubSearcher{results: []string{
		"https://www.amazon.com/small",
		"https://www.amazon.com/right",
	}}
	pages := &stubPages{pages: map[string]string{
		"https://www.amazon.com/small": "CeraVe Cream 3 oz|999",
		"https://www.amazon.com/right": "CeraVe Cream 16 oz|1999",
	}}
	limiter := &stubLimiter{}

	c := newTestCollector(CollectorDeps{
		Pages:     pages,
		Extractor: &stubExtractor{},
		Searcher:  searcher,
		Limiter:   limiter,
	})

	candidates, _ := c.Collect(context.Background(), Query{Title: "CeraVe Cream 16 oz", Brand: "CeraVe"})

	require.Len(t, candidates, 1)
	assert.Equal(t, SourceMarketplace, candidates[0].Source)
	assert.Equal(t, int64(1999), candidates[0].PriceCents)

	require.Len(t, searcher.queries, 2)
	assert.True(t, strings.HasPrefix(searcher.queries[1], "16 oz"), "retry query leads with the size: %q", searcher.queries[1])
	// Two marketplace searches plus the brand-site search, each paced.
	assert.Equal(t, 3, limiter.waits)
}

func TestCollectMarketplaceSingleRetryOnly(t *testing.T) {
	searcher := &stubSearcher{results: []string{
		"https://www.amazon.com/small",
		"https://www.amazon.com/also-small",
	}}
	pages := &stubPages{pages: map[string]string{
		"https://www.amazon.com/small":      "CeraVe Cream 3 oz|999",
		"https://www.amazon.com/also-small": "CeraVe Cream 3 oz|1099",
	}}

	c := newTestCollector(CollectorDeps{
		Pages:     pages,
		Extractor: &stubExtractor{},
		Searcher:  searcher,
		Limiter:   &stubLimiter{},
	})

	candidates, _ := c.Collect(context.Background(), Query{Title: "CeraVe Cream 16 oz", Brand: "CeraVe"})

	// Both pages were wrong sizes: exactly two search attempts, then the
	// tier gives up and the estimate fills in.
	assert.Len(t, searcher.queries, 2)
	require.Len(t, candidates, 1)
	assert.Equal(t, SourceEstimate, candidates[0].Source)
}

func TestCollectTrustedASINSkipsPageValidation(t *testing.T) {
	registry := &stubRegistry{asin: "B00ABCDE12"}
	pages := &stubPages{pages: map[string]string{
		// A title that would fail both the bundle and size checks if it
		// came from an untrusted search result.
		"https://www.amazon.com/dp/B00ABCDE12": "Toothpaste Pack of 6, 1 oz travel size|1899",
	}}
	searcher := &stubSearcher{}

	c := newTestCollector(CollectorDeps{
		Pages:     pages,
		Extractor: &stubExtractor{},
		Searcher:  searcher,
		Registry:  registry,
		Limiter:   &stubLimiter{},
	})

	candidates, _ := c.Collect(context.Background(), Query{Title: "Toothpaste 5 oz", Brand: "Colgate"})

	require.Len(t, candidates, 1)
	assert.Equal(t, SourceMarketplace, candidates[0].Source)
	assert.Equal(t, int64(1899), candidates[0].PriceCents)
	assert.True(t, candidates[0].MatchesBrand)
	assert.Empty(t, searcher.queries)
}

func TestCollectWebSearchOnlyWhenMarketplaceEmpty(t *testing.T) {
	searcher := &stubSearcher{err: NewSignalError("search", ReasonHTTPError, errors.New("status 500"))}
	web := &stubWebPricer{price: WebPrice{PriceCents: 1599, Confidence: "low", SourceURL: "https://example.com/p"}}

	c := newTestCollector(CollectorDeps{
		Pages:     &stubPages{},
		Extractor: &stubExtractor{},
		Searcher:  searcher,
		WebPricer: web,
		Limiter:   &stubLimiter{},
	})

	candidates, _ := c.Collect(context.Background(), Query{Title: "Obscure Gadget"})

	assert.Equal(t, 1, web.calls)
	require.Len(t, candidates, 1)
	assert.Equal(t, SourceWebSearch, candidates[0].Source)
	assert.Equal(t, int64(1599), candidates[0].PriceCents)
}

func TestCollectBrandBundleDropped(t *testing.T) {
	searcher := &stubSearcher{results: []string{"https://www.amazon.com/listing"}}
	pages := &stubPages{pages: map[string]string{
		"https://www.amazon.com/listing": "Acme Serum 1 fl oz|3995",
		"https://acme.com/serum":         "Acme Serum 1 fl oz|7495",
	}}

	c := newTestCollector(CollectorDeps{
		Pages:     pages,
		Extractor: &stubExtractor{},
		Searcher:  searcher,
		Limiter:   &stubLimiter{},
	})

	q := Query{Title: "Acme Serum 1 fl oz", Brand: "Acme", BrandSiteHint: "https://acme.com/serum"}
	candidates, _ := c.Collect(context.Background(), q)

	var sources []Source
	for _, cand := range candidates {
		sources = append(sources, cand.Source)
	}
	// The 74.95 brand price against a 39.95 brand-matched marketplace
	// price is presumed to be a bundle and never reaches arbitration.
	assert.Equal(t, []Source{SourceMarketplace}, sources)
}

func TestCollectBrandDNSFailureShortCircuits(t *testing.T) {
	pages := &stubPages{
		errs: map[string]error{
			"https://gonebrand.com/serum": NewSignalError("fetch", ReasonDNSFailure, errors.New("no such host")),
		},
	}

	c := newTestCollector(CollectorDeps{
		Pages:     pages,
		Extractor: &stubExtractor{},
	})

	q := Query{Title: "Gone Brand Serum 1 fl oz", Brand: "Gone Brand", BrandSiteHint: "https://gonebrand.com/serum"}
	candidates, _ := c.Collect(context.Background(), q)

	// One fetch only: path variations of an unreachable host are not probed.
	assert.Equal(t, []string{"https://gonebrand.com/serum"}, pages.fetched)
	require.Len(t, candidates, 1)
	assert.Equal(t, SourceEstimate, candidates[0].Source)
}

func TestCollectBrandBareHomepageSkipped(t *testing.T) {
	pages := &stubPages{pages: map[string]string{
		"https://acme.com/": "Acme Store|9999",
	}}

	c := newTestCollector(CollectorDeps{
		Pages:     pages,
		Extractor: &stubExtractor{},
	})

	q := Query{Title: "Acme Serum", Brand: "Acme", BrandSiteHint: "https://acme.com/"}
	candidates, _ := c.Collect(context.Background(), q)

	assert.Empty(t, pages.fetched)
	require.Len(t, candidates, 1)
	assert.Equal(t, SourceEstimate, candidates[0].Source)
}

func TestCollectBrandSearchUpdatesRegistry(t *testing.T) {
	registry := &stubRegistry{}
	searcher := &stubSearcher{brandResult: "https://acme.com/products/serum"}
	pages := &stubPages{pages: map[string]string{
		"https://acme.com/products/serum": "Acme Serum 1 fl oz|2899",
	}}

	c := newTestCollector(CollectorDeps{
		Pages:     pages,
		Extractor: &stubExtractor{},
		Searcher:  searcher,
		Registry:  registry,
		Limiter:   &stubLimiter{},
	})

	q := Query{Title: "Acme Serum 1 fl oz", Brand: "Acme"}
	candidates, _ := c.Collect(context.Background(), q)

	require.Len(t, candidates, 1)
	assert.Equal(t, SourceBrandMSRP, candidates[0].Source)
	assert.Equal(t, int64(2899), candidates[0].PriceCents)
	assert.Equal(t, 1, searcher.brandQueries)
	assert.Equal(t, BrandURLs{ProductURL: "https://acme.com/products/serum"}, registry.setCalls["acme"])
}
