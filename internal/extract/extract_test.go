package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snaplist/internal/pricing"
)

func TestExtractPrice(t *testing.T) {
	x := New()

	cases := []struct {
		name string
		html string
		want int64
		ok   bool
	}{
		{
			"itemprop meta wins",
			`<meta itemprop="price" content="24.99"><span>$99.99</span>`,
			2499, true,
		},
		{
			"json-ld price",
			`<script type="application/ld+json">{"@type":"Product","price":"18.50"}</script>`,
			1850, true,
		},
		{
			"unquoted json price",
			`{"offers":{"price":32}}`,
			3200, true,
		},
		{
			"visible dollar price",
			`<div class="price">Now only $1,299.95!</div>`,
			129995, true,
		},
		{
			"junk below sanity window skipped",
			`{"price":"0.01"} and then $24.99 for real`,
			2499, true,
		},
		{
			"no price at all",
			`<p>Call us for pricing</p>`,
			0, false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := x.ExtractPrice(tc.html, "")
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestExtractPriceWithShipping(t *testing.T) {
	x := New()

	t.Run("free shipping", func(t *testing.T) {
		html := `<title>CeraVe Cream 16 oz</title><meta itemprop="price" content="23.99"><p>FREE Shipping on orders</p>`
		out, ok := x.ExtractPriceWithShipping(html, "CeraVe Cream 16 oz")

		require.True(t, ok)
		assert.Equal(t, int64(2399), out.ItemPriceCents)
		assert.Equal(t, "CeraVe Cream 16 oz", out.PageTitle)
		assert.Equal(t, pricing.ShippingFree, out.ShippingEvidence)
		require.NotNil(t, out.ShippingCents)
		assert.Equal(t, int64(0), *out.ShippingCents)
	})

	t.Run("paid shipping", func(t *testing.T) {
		html := `<title>Widget</title><meta itemprop="price" content="23.99"><p>+ $5.99 shipping</p>`
		out, ok := x.ExtractPriceWithShipping(html, "Widget")

		require.True(t, ok)
		assert.Equal(t, pricing.ShippingPaid, out.ShippingEvidence)
		require.NotNil(t, out.ShippingCents)
		assert.Equal(t, int64(599), *out.ShippingCents)
	})

	t.Run("no shipping evidence", func(t *testing.T) {
		html := `<title>Widget</title><meta itemprop="price" content="23.99">`
		out, ok := x.ExtractPriceWithShipping(html, "Widget")

		require.True(t, ok)
		assert.Equal(t, pricing.ShippingUnknown, out.ShippingEvidence)
		assert.Nil(t, out.ShippingCents)
	})

	t.Run("no price means no extract", func(t *testing.T) {
		_, ok := x.ExtractPriceWithShipping(`<title>Widget</title>`, "Widget")
		assert.False(t, ok)
	})
}

func TestPageTitle(t *testing.T) {
	assert.Equal(t, "CeraVe Cream 16 oz", pageTitle("<title>\n  CeraVe   Cream <b>16 oz</b>\n</title>"))
	assert.Equal(t, "", pageTitle("<p>no title</p>"))
}

func TestToCents(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"24.99", 2499, true},
		{"1,299.95", 129995, true},
		{"32", 3200, true},
		{"0.50", 0, false},    // under the sanity floor
		{"99999", 0, false},   // above the sanity ceiling
		{"abc", 0, false},
	}
	for _, tc := range cases {
		got, ok := toCents(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}
