// Package api defines the request/response contracts for the pricing
// HTTP surface and the CLI's JSON output.
package api

import (
	"snaplist/internal/pricing"
)

// PriceRequest asks for a listing price for one detected product.
type PriceRequest struct {
	Title        string           `json:"title"`
	Brand        string           `json:"brand,omitempty"`
	UPC          string           `json:"upc,omitempty"`
	BrandSiteURL string           `json:"brand_site_url,omitempty"`
	KeyText      string           `json:"key_text,omitempty"`
	Condition    string           `json:"condition,omitempty"`
	Quantity     int              `json:"quantity,omitempty"`
	PackHint     int              `json:"pack_hint,omitempty"`
	Settings     *SettingsPayload `json:"settings,omitempty"`
}

// SettingsPayload mirrors pricing.PricingSettings on the wire. Absent
// fields fall back to the engine defaults.
type SettingsPayload struct {
	DiscountPercent                 *int   `json:"discount_percent,omitempty"`
	ShippingStrategy                string `json:"shipping_strategy,omitempty"`
	TemplateShippingEstimateCents   *int64 `json:"template_shipping_estimate_cents,omitempty"`
	ShippingSubsidyCapCents         *int64 `json:"shipping_subsidy_cap_cents,omitempty"`
	EbayShippingMode                string `json:"ebay_shipping_mode,omitempty"`
	BuyerShippingChargeCents        *int64 `json:"buyer_shipping_charge_cents,omitempty"`
	MinItemPriceCents               *int64 `json:"min_item_price_cents,omitempty"`
	AllowAutoFreeShippingOnLowPrice *bool  `json:"allow_auto_free_shipping_on_low_price,omitempty"`
}

// ToQuery converts the request into an engine query.
func (r PriceRequest) ToQuery() pricing.Query {
	return pricing.Query{
		Title:         r.Title,
		Brand:         r.Brand,
		UPC:           r.UPC,
		BrandSiteHint: r.BrandSiteURL,
		KeyText:       r.KeyText,
		Condition:     r.Condition,
		Quantity:      r.Quantity,
		PackHint:      r.PackHint,
	}
}

// ToSettings overlays the payload onto the default policy.
func (r PriceRequest) ToSettings() pricing.PricingSettings {
	s := pricing.DefaultSettings()
	p := r.Settings
	if p == nil {
		return s
	}
	if p.DiscountPercent != nil {
		s.DiscountPercent = *p.DiscountPercent
	}
	if p.ShippingStrategy != "" {
		s.ShippingStrategy = pricing.ShippingStrategy(p.ShippingStrategy)
	}
	if p.TemplateShippingEstimateCents != nil {
		s.TemplateShippingEstimateCents = *p.TemplateShippingEstimateCents
	}
	if p.ShippingSubsidyCapCents != nil {
		s.ShippingSubsidyCapCents = p.ShippingSubsidyCapCents
	}
	if p.EbayShippingMode != "" {
		s.EbayShippingMode = pricing.ShippingMode(p.EbayShippingMode)
	}
	if p.BuyerShippingChargeCents != nil {
		s.BuyerShippingChargeCents = *p.BuyerShippingChargeCents
	}
	if p.MinItemPriceCents != nil {
		s.MinItemPriceCents = *p.MinItemPriceCents
	}
	if p.AllowAutoFreeShippingOnLowPrice != nil {
		s.AllowAutoFreeShippingOnLowPrice = *p.AllowAutoFreeShippingOnLowPrice
	}
	return s
}

// PriceResponse is the wire form of a decision.
type PriceResponse struct {
	OK                           bool                  `json:"ok"`
	DecisionID                   string                `json:"decision_id"`
	RecommendedListingPriceCents int64                 `json:"recommended_listing_price_cents,omitempty"`
	ItemPriceCents               int64                 `json:"item_price_cents,omitempty"`
	ShippingChargeCents          int64                 `json:"shipping_charge_cents,omitempty"`
	TargetDeliveredTotalCents    int64                 `json:"target_delivered_total_cents,omitempty"`
	EffectiveShippingMode        string                `json:"effective_shipping_mode,omitempty"`
	Warnings                     []string              `json:"warnings,omitempty"`
	Chosen                       *pricing.PriceSignal  `json:"chosen,omitempty"`
	Candidates                   []pricing.PriceSignal `json:"candidates"`
	Reason                       string                `json:"reason"`
	NeedsManualReview            bool                  `json:"needs_manual_review,omitempty"`
	Confidence                   float64               `json:"confidence"`
	FromCache                    bool                  `json:"from_cache,omitempty"`
}

// FromDecision converts a decision into its wire form.
func FromDecision(d pricing.PriceDecision) PriceResponse {
	resp := PriceResponse{
		OK:                           d.OK,
		DecisionID:                   d.DecisionID.String(),
		RecommendedListingPriceCents: d.RecommendedListingPriceCents,
		Chosen:                       d.Chosen,
		Candidates:                   d.Candidates,
		Reason:                       d.Reason,
		NeedsManualReview:            d.NeedsManualReview,
		Confidence:                   d.Confidence,
		FromCache:                    d.FromCache,
	}
	if d.Allocation != nil {
		resp.ItemPriceCents = d.Allocation.ItemPriceCents
		resp.ShippingChargeCents = d.Allocation.ShippingChargeCents
		resp.TargetDeliveredTotalCents = d.Allocation.TargetDeliveredTotalCents
		resp.EffectiveShippingMode = string(d.Allocation.EffectiveShippingMode)
		for _, w := range d.Allocation.Warnings {
			resp.Warnings = append(resp.Warnings, string(w))
		}
	}
	return resp
}
