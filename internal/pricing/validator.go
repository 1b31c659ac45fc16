package pricing

import (
	"regexp"
	"strconv"
	"strings"
)

// Structural validation of raw price observations. Every predicate is
// pure and returns a machine-readable reason alongside the verdict.

// Bundle-ratio and size-ratio thresholds are hand-tuned constants
// inherited from production behavior, not derived values. They are
// kept as named constants pending calibration against archived
// decision data.
const (
	// bundleRatioNum/bundleRatioDen encode the 1.8x brand-vs-market
	// ratio above which a brand price is presumed to be a bundle.
	bundleRatioNum = 9
	bundleRatioDen = 5

	// minComparableMarketCents is the floor below which a marketplace
	// price is too unreliable to serve as a bundle-check baseline.
	minComparableMarketCents int64 = 800

	sizeRatioUpper = 1.5
	sizeRatioLower = 0.67
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// normalizeName lowercases and strips punctuation and whitespace.
func normalizeName(s string) string {
	return nonAlnum.ReplaceAllString(strings.ToLower(s), "")
}

// BrandMatches reports whether two brand names refer to the same
// brand after normalization. Accepts containment in either direction,
// a long shared prefix, and a trailing-s (possessive) fold.
func BrandMatches(brand, candidate string) (bool, string) {
	a := normalizeName(brand)
	b := normalizeName(candidate)
	if a == "" || b == "" {
		return false, "empty_name"
	}
	if a == b {
		return true, "exact"
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return true, "containment"
	}
	shorter := len(a)
	if len(b) < shorter {
		shorter = len(b)
	}
	need := (shorter*4 + 4) / 5 // ceil(80%)
	if need < 6 {
		need = 6
	}
	if sharedPrefixLen(a, b) >= need {
		return true, "shared_prefix"
	}
	if strings.TrimSuffix(a, "s") == strings.TrimSuffix(b, "s") {
		return true, "possessive_fold"
	}
	return false, "mismatch"
}

func sharedPrefixLen(a, b string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}

// BundlePriceSuspicious reports whether a brand-site price is so far
// above a brand-matched marketplace price that it is presumed to be a
// multi-unit bundle. The check is skipped when the market baseline is
// too cheap to trust. The 1.8x bound is strict: exactly 1.8 passes.
func BundlePriceSuspicious(brandCents, marketCents int64) (bool, string) {
	if marketCents < minComparableMarketCents {
		return false, "market_baseline_too_low"
	}
	if brandCents*bundleRatioDen > marketCents*bundleRatioNum {
		return true, "bundle_ratio_exceeded"
	}
	return false, "ratio_ok"
}

var (
	reBundleWord = regexp.MustCompile(`(?i)\bbundle\b`)
	rePackOf     = regexp.MustCompile(`(?i)\b(?:pack|case)\s+of\s+(\d{1,3})\b`)
	reNPack      = regexp.MustCompile(`(?i)\b(\d{1,3})\s*[- ]?pack\b`)
	reNCount     = regexp.MustCompile(`(?i)\b(\d{1,3})\s*[- ]?(?:count|ct|pk)\b`)
)

// PackDetection is the outcome of the bundle-page check.
type PackDetection struct {
	IsBundle  bool
	PackCount int
	Reason    string
}

// DetectBundlePage inspects a marketplace page title for multi-pack
// wording and rejects it when the detected pack size exceeds twice the
// effective selling quantity (pack hint x photographed quantity).
func DetectBundlePage(pageTitle string, packHint, photoQuantity int) PackDetection {
	if packHint < 1 {
		packHint = 1
	}
	if photoQuantity < 1 {
		photoQuantity = 1
	}

	packCount := 1
	for _, re := range []*regexp.Regexp{rePackOf, reNPack, reNCount} {
		if m := re.FindStringSubmatch(pageTitle); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > packCount {
				packCount = n
			}
		}
	}
	// A bare "bundle" with no count still means more than one unit.
	if packCount == 1 && reBundleWord.MatchString(pageTitle) {
		packCount = 2
	}

	effective := packHint * photoQuantity
	if packCount > 2*effective {
		return PackDetection{IsBundle: true, PackCount: packCount, Reason: "pack_size_exceeds_lot"}
	}
	return PackDetection{PackCount: packCount, Reason: "pack_ok"}
}

type unitFamily int

const (
	familyNone unitFamily = iota
	familyLiquid
	familyWeight
)

// Longer unit tokens first so "fl oz" does not parse as "oz" and
// "lbs" does not parse as a liter suffix.
var reSize = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*(fl\.?\s*oz|floz|ml|oz|lbs|lb|kg|g|l)\b`)

// parseSize extracts the first (value, unit) pair from a title,
// normalized to fluid ounces for liquids and grams for weights.
func parseSize(title string) (unitFamily, float64, bool) {
	m := reSize.FindStringSubmatch(title)
	if m == nil {
		return familyNone, 0, false
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil || value <= 0 {
		return familyNone, 0, false
	}
	unit := strings.ToLower(nonAlnum.ReplaceAllString(m[2], ""))
	switch unit {
	case "floz", "oz":
		return familyLiquid, value, true
	case "ml":
		return familyLiquid, value / 29.5735, true
	case "l":
		return familyLiquid, value * 33.814, true
	case "g":
		return familyWeight, value, true
	case "kg":
		return familyWeight, value * 1000, true
	case "lb", "lbs":
		return familyWeight, value * 453.592, true
	}
	return familyNone, 0, false
}

// SizeMismatch reports whether the candidate page describes a
// physically different size than the product title. Sizes are only
// compared within the same unit family, and the 1.5x / 0.67x bounds
// are strict: a ratio landing exactly on either bound passes.
func SizeMismatch(candidateTitle, productTitle string) (bool, string) {
	candFamily, candSize, ok := parseSize(candidateTitle)
	if !ok {
		return false, "no_candidate_size"
	}
	prodFamily, prodSize, ok := parseSize(productTitle)
	if !ok {
		return false, "no_product_size"
	}
	if candFamily != prodFamily {
		return false, "unit_family_differs"
	}
	ratio := candSize / prodSize
	if ratio > sizeRatioUpper || ratio < sizeRatioLower {
		return true, "size_ratio_out_of_bounds"
	}
	return false, "size_ok"
}
