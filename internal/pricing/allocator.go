package pricing

// AllocationWarning flags a policy adjustment made during allocation.
type AllocationWarning string

const (
	WarnAutoSwitchedToFreeShipping AllocationWarning = "auto_switched_to_free_shipping"
	WarnMinItemFloorHit            AllocationWarning = "min_item_floor_hit"
	WarnCannotCompete              AllocationWarning = "cannot_compete"
)

// AllocationEvidence records the inputs that produced an allocation,
// for logging and the decision audit trail.
type AllocationEvidence struct {
	RequestedMode             ShippingMode `json:"requested_mode"`
	RequestedTargetCents      int64        `json:"requested_target_cents"`
	ShippingCostEstimateCents int64        `json:"shipping_cost_estimate_cents"`
	BuyerShippingChargeCents  int64        `json:"buyer_shipping_charge_cents"`
	MinItemPriceCents         int64        `json:"min_item_price_cents"`
}

// AllocationResult is the item/shipping split for a delivered total.
// ItemPriceCents + ShippingChargeCents == TargetDeliveredTotalCents
// holds on every output, including the clamped ones where the target
// is recomputed upward from the floored item price.
type AllocationResult struct {
	ItemPriceCents            int64               `json:"item_price_cents"`
	ShippingChargeCents       int64               `json:"shipping_charge_cents"`
	TargetDeliveredTotalCents int64               `json:"target_delivered_total_cents"`
	EffectiveShippingMode     ShippingMode        `json:"effective_shipping_mode"`
	Warnings                  []AllocationWarning `json:"warnings"`
	Evidence                  AllocationEvidence  `json:"evidence"`
}

func (r AllocationResult) hasWarning(w AllocationWarning) bool {
	for _, got := range r.Warnings {
		if got == w {
			return true
		}
	}
	return false
}

// Allocate splits a target delivered total into an item price and a
// buyer-facing shipping charge under the requested shipping policy.
//
// shippingCostEstimateCents is what the seller expects to pay a
// carrier. It is carried through for evidence only and never enters
// the arithmetic: the target is already a delivered total, and adding
// shipping to it a second time is exactly the double-shipping bug this
// function exists to prevent.
func Allocate(targetDeliveredTotalCents, shippingCostEstimateCents int64, s PricingSettings) AllocationResult {
	res := AllocationResult{
		EffectiveShippingMode: s.EbayShippingMode,
		Warnings:              []AllocationWarning{},
		Evidence: AllocationEvidence{
			RequestedMode:             s.EbayShippingMode,
			RequestedTargetCents:      targetDeliveredTotalCents,
			ShippingCostEstimateCents: shippingCostEstimateCents,
			BuyerShippingChargeCents:  s.BuyerShippingChargeCents,
			MinItemPriceCents:         s.MinItemPriceCents,
		},
	}

	target := targetDeliveredTotalCents
	if target < 0 {
		target = 0
	}

	switch s.EbayShippingMode {
	case ModeFreeShipping:
		item := target
		if item < s.MinItemPriceCents {
			item = s.MinItemPriceCents
			res.Warnings = append(res.Warnings, WarnMinItemFloorHit)
		}
		res.ItemPriceCents = item
		res.ShippingChargeCents = 0

	default: // ModeBuyerPaysShipping
		res.EffectiveShippingMode = ModeBuyerPaysShipping
		item := target - s.BuyerShippingChargeCents
		if item < 0 {
			item = 0
		}
		switch {
		case item >= s.MinItemPriceCents:
			res.ItemPriceCents = item
			res.ShippingChargeCents = s.BuyerShippingChargeCents

		case s.AllowAutoFreeShippingOnLowPrice:
			// Switch to free shipping against the original target: the
			// buyer pays the same delivered total, nothing extra.
			res.EffectiveShippingMode = ModeFreeShipping
			res.Warnings = append(res.Warnings, WarnAutoSwitchedToFreeShipping)
			item = target
			if item < s.MinItemPriceCents {
				item = s.MinItemPriceCents
				res.Warnings = append(res.Warnings, WarnMinItemFloorHit)
			}
			res.ItemPriceCents = item
			res.ShippingChargeCents = 0

		default:
			// The floor clamp wins over the delivered-price goal: the
			// listing ends up above the competitive target.
			res.ItemPriceCents = s.MinItemPriceCents
			res.ShippingChargeCents = s.BuyerShippingChargeCents
			res.Warnings = append(res.Warnings, WarnMinItemFloorHit, WarnCannotCompete)
		}
	}

	res.TargetDeliveredTotalCents = res.ItemPriceCents + res.ShippingChargeCents
	return res
}
