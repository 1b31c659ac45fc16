// Package extract pulls price text out of fetched product pages. It is
// a thin boundary adapter: structured metadata first, visible price
// text as a fallback, with a sanity window to reject junk matches.
package extract

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"snaplist/internal/pricing"
)

// Sanity window for extracted prices.
var (
	minSaneCents int64 = 99
	maxSaneCents int64 = 1_000_000
)

var (
	reTitle         = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	reMetaPrice     = regexp.MustCompile(`(?i)itemprop="price"[^>]*content="([\d.,]+)"`)
	reJSONPrice     = regexp.MustCompile(`(?i)"price"\s*:\s*"?(\d{1,5}(?:\.\d{1,2})?)"?`)
	reDollarPrice   = regexp.MustCompile(`\$\s*(\d{1,3}(?:,\d{3})*(?:\.\d{2})?)`)
	reFreeShipping  = regexp.MustCompile(`(?i)free\s+(?:shipping|delivery)`)
	rePaidShipping  = regexp.MustCompile(`(?i)\+?\s*\$(\d{1,3}(?:\.\d{2})?)\s*(?:shipping|delivery)`)
	reTagStripper   = regexp.MustCompile(`<[^>]+>`)
	reWhitespaceRun = regexp.MustCompile(`\s+`)
)

// Extractor implements pricing.PriceExtractor on raw HTML.
type Extractor struct{}

// New creates an extractor.
func New() Extractor { return Extractor{} }

// ExtractPrice returns the most plausible item price on the page.
func (Extractor) ExtractPrice(html, hintTitle string) (int64, bool) {
	for _, re := range []*regexp.Regexp{reMetaPrice, reJSONPrice, reDollarPrice} {
		for _, m := range re.FindAllStringSubmatch(html, 5) {
			if cents, ok := toCents(m[1]); ok {
				return cents, true
			}
		}
	}
	return 0, false
}

// ExtractPriceWithShipping returns the item price plus whatever the
// page says about shipping, and the page title for validation.
func (x Extractor) ExtractPriceWithShipping(html, hintTitle string) (pricing.PageExtract, bool) {
	out := pricing.PageExtract{ShippingEvidence: pricing.ShippingUnknown}

	cents, ok := x.ExtractPrice(html, hintTitle)
	if !ok {
		return out, false
	}
	out.ItemPriceCents = cents
	out.PageTitle = pageTitle(html)

	switch {
	case reFreeShipping.MatchString(html):
		out.ShippingEvidence = pricing.ShippingFree
		zero := int64(0)
		out.ShippingCents = &zero
	default:
		if m := rePaidShipping.FindStringSubmatch(html); m != nil {
			if ship, ok := toCents(m[1]); ok {
				out.ShippingEvidence = pricing.ShippingPaid
				out.ShippingCents = &ship
			}
		}
	}
	return out, true
}

func pageTitle(html string) string {
	m := reTitle.FindStringSubmatch(html)
	if m == nil {
		return ""
	}
	title := reTagStripper.ReplaceAllString(m[1], " ")
	return strings.TrimSpace(reWhitespaceRun.ReplaceAllString(title, " "))
}

// toCents parses a price string into integer cents, rejecting values
// outside the sanity window.
func toCents(s string) (int64, bool) {
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return 0, false
	}
	cents := d.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	if cents < minSaneCents || cents > maxSaneCents {
		return 0, false
	}
	return cents, true
}
