package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"snaplist/pkg/confidence"
)

// Arbiter selects one candidate and a base price, delegating to an
// external language-model call when one is configured and falling back
// to a fixed deterministic precedence whenever that call fails or
// returns unusable output. Either way it finishes by running the
// allocator, so every decision leaves with a policy-correct price.
type Arbiter struct {
	llm Arbitrator
	log zerolog.Logger
}

// NewArbiter creates an arbiter. A nil Arbitrator is valid and forces
// the deterministic path.
func NewArbiter(llm Arbitrator, logger zerolog.Logger) *Arbiter {
	return &Arbiter{llm: llm, log: logger}
}

// parsedArbiterResponse is the closed union validated once at the
// model boundary; downstream code never touches raw model output.
type parsedArbiterResponse struct {
	valid          bool
	chosenSource   Source
	sourceKnown    bool
	basePriceCents int64
	reasoning      string
}

// Decide arbitrates between candidates and produces the final decision.
func (a *Arbiter) Decide(ctx context.Context, q Query, candidates []PriceSignal, stats *SoldStats, settings PricingSettings) PriceDecision {
	if len(candidates) == 0 {
		return PriceDecision{OK: false, Reason: "no-price-signals", Candidates: []PriceSignal{}}
	}

	if a.llm == nil {
		return a.decideDeterministic(q, candidates, settings, "no arbiter configured")
	}

	raw, err := a.llm.Arbitrate(ctx, buildArbiterPrompt(q, candidates, stats))
	if err != nil {
		a.log.Warn().Err(err).Msg("arbiter call failed, using deterministic precedence")
		return a.decideDeterministic(q, candidates, settings, "arbiter call failed")
	}

	parsed := parseArbiterResponse(raw, candidates)
	if !parsed.valid {
		a.log.Warn().Str("raw", truncate(raw, 200)).Msg("unusable arbiter output, using deterministic precedence")
		return a.decideDeterministic(q, candidates, settings, "unusable arbiter output")
	}

	chosen := candidates[0]
	if parsed.sourceKnown {
		for _, cand := range candidates {
			if cand.Source == parsed.chosenSource {
				chosen = cand
				break
			}
		}
	}

	reason := parsed.reasoning
	if reason == "" {
		reason = "arbiter choice"
	}
	return a.finalize(q, chosen, candidates, parsed.basePriceCents, settings, reason)
}

// decideDeterministic applies the fixed precedence order: sold comps
// (already a market-clearing price, no further discount), then
// marketplace, then brand MSRP, then whatever is left.
func (a *Arbiter) decideDeterministic(q Query, candidates []PriceSignal, settings PricingSettings, why string) PriceDecision {
	chosen := candidates[0]
	for _, want := range []Source{SourceSoldComps, SourceMarketplace, SourceBrandMSRP} {
		found := false
		for _, cand := range candidates {
			if cand.Source == want {
				chosen = cand
				found = true
				break
			}
		}
		if found {
			break
		}
	}
	return a.finalize(q, chosen, candidates, chosen.PriceCents, settings, "deterministic precedence: "+why)
}

// finalize normalizes the base price for pack size and lot quantity,
// applies the competitive discount where the source calls for one, and
// runs the allocator.
func (a *Arbiter) finalize(q Query, chosen PriceSignal, candidates []PriceSignal, baseCents int64, settings PricingSettings, reason string) PriceDecision {
	resolved := settings.planFor(&chosen)
	lotCents := lotPriceCents(baseCents, chosen.packSize(), q.LotQuantity())

	shippingEstimate := resolved.TemplateShippingEstimateCents
	if chosen.ShippingCents != nil {
		shippingEstimate = *chosen.ShippingCents
	}

	target := lotCents
	if chosen.Source != SourceSoldComps && resolved.DiscountPercent > 0 {
		if resolved.ShippingStrategy == StrategyDiscountItemOnly && resolved.EbayShippingMode == ModeBuyerPaysShipping {
			// Discount the item portion only; the shipping charge rides
			// through undiscounted.
			item := lotCents - resolved.BuyerShippingChargeCents
			if item < 0 {
				item = 0
			}
			target = applyDiscount(item, resolved.DiscountPercent) + resolved.BuyerShippingChargeCents
		} else {
			target = applyDiscount(lotCents, resolved.DiscountPercent)
		}
	}

	alloc := Allocate(target, shippingEstimate, resolved)

	brandFactor := 1.0
	if !chosen.MatchesBrand && chosen.Source != SourceSoldComps {
		brandFactor = 0.85
	}
	decision := PriceDecision{
		OK:                           true,
		Chosen:                       &chosen,
		Candidates:                   candidates,
		RecommendedListingPriceCents: alloc.ItemPriceCents,
		Allocation:                   &alloc,
		Reason:                       reason,
		Confidence:                   confidence.Aggregate([]float64{chosen.Confidence, brandFactor}),
	}

	if decision.RecommendedListingPriceCents < MinUsablePriceCents {
		decision.OK = false
		decision.NeedsManualReview = true
		decision.Reason = "below-minimum-price"
	}
	return decision
}

// lotPriceCents converts a possibly multi-pack base price into the
// price for the photographed lot: per-unit price times quantity.
func lotPriceCents(baseCents int64, packSize, quantity int) int64 {
	perUnit := float64(baseCents) / float64(packSize)
	return int64(math.Round(perUnit * float64(quantity)))
}

func applyDiscount(cents int64, percent int) int64 {
	if percent <= 0 {
		return cents
	}
	if percent >= 100 {
		return 0
	}
	return int64(math.Round(float64(cents) * float64(100-percent) / 100))
}

// buildArbiterPrompt enumerates the candidates and the fixed rule set
// for the external arbiter.
func buildArbiterPrompt(q Query, candidates []PriceSignal, stats *SoldStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Choose the best listing base price for this product.\n\nProduct: %s\n", q.Title)
	if q.Brand != "" {
		fmt.Fprintf(&b, "Brand: %s\n", q.Brand)
	}
	fmt.Fprintf(&b, "Photographed quantity: %d\n\nCandidates:\n", q.LotQuantity())
	for i, cand := range candidates {
		fmt.Fprintf(&b, "%d. source=%s price=$%.2f", i+1, cand.Source, float64(cand.PriceCents)/100)
		if cand.ShippingCents != nil {
			fmt.Fprintf(&b, " shipping=$%.2f", float64(*cand.ShippingCents)/100)
		}
		if cand.PackCount > 1 {
			fmt.Fprintf(&b, " packOf=%d", cand.PackCount)
		}
		if cand.Notes != "" {
			fmt.Fprintf(&b, " (%s)", cand.Notes)
		}
		b.WriteString("\n")
	}
	if stats != nil && stats.SampleCount > 0 {
		fmt.Fprintf(&b, "\nSold statistics: p35=$%.2f median=$%.2f over %d samples\n",
			float64(stats.P35Cents)/100, float64(stats.MedianCents)/100, stats.SampleCount)
	}
	b.WriteString(`
Rules:
- Prefer marketplace price over brand MSRP over sold comps.
- Never pick a price that looks like a multi-unit bundle.
- basePrice is in dollars for a single pack as listed by the source.

Respond with strict JSON only, no prose:
{"chosenSource":"sold_comps|marketplace|brand_msrp|web_search|estimate","basePrice":0.00,"reasoning":"..."}`)
	return b.String()
}

// arbiterChoice is the wire shape of the model's answer.
type arbiterChoice struct {
	ChosenSource string  `json:"chosenSource"`
	BasePrice    float64 `json:"basePrice"`
	Reasoning    string  `json:"reasoning"`
}

// parseArbiterResponse validates raw model output into the closed
// union. Output is unusable when it is empty, not JSON, or carries a
// non-positive price; an unknown chosenSource keeps the price but
// marks the source unresolved so the caller falls back to the first
// candidate.
func parseArbiterResponse(raw string, candidates []PriceSignal) parsedArbiterResponse {
	text := strings.TrimSpace(stripCodeFences(raw))
	if text == "" {
		return parsedArbiterResponse{}
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return parsedArbiterResponse{}
	}

	var choice arbiterChoice
	if err := json.Unmarshal([]byte(text[start:end+1]), &choice); err != nil {
		return parsedArbiterResponse{}
	}
	if choice.BasePrice <= 0 {
		return parsedArbiterResponse{}
	}

	parsed := parsedArbiterResponse{
		valid:          true,
		basePriceCents: int64(math.Round(choice.BasePrice * 100)),
		reasoning:      choice.Reasoning,
	}
	declared := Source(strings.ToLower(strings.TrimSpace(choice.ChosenSource)))
	for _, cand := range candidates {
		if cand.Source == declared {
			parsed.chosenSource = declared
			parsed.sourceKnown = true
			break
		}
	}
	return parsed
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
