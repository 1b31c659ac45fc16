package pricing

// ShippingStrategy selects how the buyer-facing shipping charge is
// derived from the winning signal's shipping evidence.
type ShippingStrategy string

const (
	StrategyFreeIfAmazonFree     ShippingStrategy = "free_if_amazon_free"
	StrategyMatchAmazon          ShippingStrategy = "match_amazon"
	StrategySellerPaysUpTo       ShippingStrategy = "seller_pays_up_to"
	StrategyDiscountItemOnly     ShippingStrategy = "discount_item_only"
	StrategyAlgoCompetitiveTotal ShippingStrategy = "algo_competitive_total"
)

// ShippingMode is the listing-level shipping mode on the marketplace.
type ShippingMode string

const (
	ModeFreeShipping      ShippingMode = "free_shipping"
	ModeBuyerPaysShipping ShippingMode = "buyer_pays_shipping"
)

// PricingSettings is the caller-supplied pricing policy. It is a value
// object: constructed once per request, never mutated, and never read
// from ambient configuration by the engine itself.
type PricingSettings struct {
	DiscountPercent                 int              `json:"discount_percent"`
	ShippingStrategy                ShippingStrategy `json:"shipping_strategy"`
	TemplateShippingEstimateCents   int64            `json:"template_shipping_estimate_cents"`
	ShippingSubsidyCapCents         *int64           `json:"shipping_subsidy_cap_cents,omitempty"`
	EbayShippingMode                ShippingMode     `json:"ebay_shipping_mode"`
	BuyerShippingChargeCents        int64            `json:"buyer_shipping_charge_cents"`
	MinItemPriceCents               int64            `json:"min_item_price_cents"`
	AllowAutoFreeShippingOnLowPrice bool             `json:"allow_auto_free_shipping_on_low_price"`
}

// DefaultSettings returns the stock pricing policy.
func DefaultSettings() PricingSettings {
	return PricingSettings{
		DiscountPercent:                 10,
		ShippingStrategy:                StrategyAlgoCompetitiveTotal,
		TemplateShippingEstimateCents:   600,
		EbayShippingMode:                ModeBuyerPaysShipping,
		BuyerShippingChargeCents:        499,
		MinItemPriceCents:               499,
		AllowAutoFreeShippingOnLowPrice: true,
	}
}

// planFor applies the shipping strategy to the chosen signal's
// shipping evidence, returning an adjusted copy. The allocator itself
// only ever sees the resolved mode and charge.
func (s PricingSettings) planFor(chosen *PriceSignal) PricingSettings {
	switch s.ShippingStrategy {
	case StrategyFreeIfAmazonFree:
		if chosen != nil && chosen.ShippingCents != nil && *chosen.ShippingCents == 0 {
			s.EbayShippingMode = ModeFreeShipping
		}
	case StrategyMatchAmazon:
		if chosen != nil && chosen.ShippingCents != nil {
			if *chosen.ShippingCents == 0 {
				s.EbayShippingMode = ModeFreeShipping
			} else {
				s.EbayShippingMode = ModeBuyerPaysShipping
				s.BuyerShippingChargeCents = *chosen.ShippingCents
			}
		}
	case StrategySellerPaysUpTo:
		if s.ShippingSubsidyCapCents != nil {
			if s.TemplateShippingEstimateCents <= *s.ShippingSubsidyCapCents {
				s.EbayShippingMode = ModeFreeShipping
			} else {
				s.EbayShippingMode = ModeBuyerPaysShipping
				s.BuyerShippingChargeCents = s.TemplateShippingEstimateCents - *s.ShippingSubsidyCapCents
			}
		}
	case StrategyDiscountItemOnly, StrategyAlgoCompetitiveTotal:
		// Configured mode and charge stand as given.
	}
	return s
}
