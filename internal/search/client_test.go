package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snaplist/internal/pricing"
)

func TestRetryDelay(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	t.Run("delta seconds", func(t *testing.T) {
		assert.Equal(t, 3*time.Second, retryDelay("3", now))
		assert.Equal(t, time.Duration(0), retryDelay("0", now))
	})

	t.Run("http date", func(t *testing.T) {
		at := now.Add(4 * time.Second).Format(http.TimeFormat)
		assert.Equal(t, 4*time.Second, retryDelay(at, now))
	})

	t.Run("http date in the past", func(t *testing.T) {
		at := now.Add(-30 * time.Second).Format(http.TimeFormat)
		assert.Equal(t, time.Duration(0), retryDelay(at, now))
	})

	t.Run("capped at ten seconds", func(t *testing.T) {
		assert.Equal(t, maxRetryDelay, retryDelay("120", now))
		at := now.Add(5 * time.Minute).Format(http.TimeFormat)
		assert.Equal(t, maxRetryDelay, retryDelay(at, now))
	})

	t.Run("garbage falls back to jitter", func(t *testing.T) {
		for i := 0; i < 20; i++ {
			d := retryDelay("soon", now)
			assert.GreaterOrEqual(t, d, time.Second)
			assert.LessOrEqual(t, d, 2*time.Second)
		}
	})

	t.Run("empty falls back to jitter", func(t *testing.T) {
		d := retryDelay("", now)
		assert.GreaterOrEqual(t, d, time.Second)
		assert.LessOrEqual(t, d, 2*time.Second)
	})
}

func TestSearchFirstResult(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Write([]byte(`{"results":[{"url":"https://www.amazon.com/dp/B0001","title":"first"},{"url":"https://other","title":"second"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", zerolog.Nop())
	got, err := c.Search(context.Background(), "cerave cream", "amazon.com")

	require.NoError(t, err)
	assert.Equal(t, "https://www.amazon.com/dp/B0001", got)
	assert.Equal(t, "site:amazon.com cerave cream", gotQuery)
}

func TestSearchEmptyResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", zerolog.Nop())
	got, err := c.Search(context.Background(), "nothing", "")

	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestSearchRetriesOn429(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		if attempts < 3 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"results":[{"url":"https://ok"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", zerolog.Nop())
	got, err := c.Search(context.Background(), "q", "")

	require.NoError(t, err)
	assert.Equal(t, "https://ok", got)
	assert.Equal(t, 3, attempts)
}

func TestSearchExhausts429Budget(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", zerolog.Nop())
	_, err := c.Search(context.Background(), "q", "")

	require.Error(t, err)
	assert.Equal(t, pricing.ReasonRateLimited, pricing.ReasonOf(err))
	assert.Equal(t, maxAttempts, attempts)
}

func TestSearchHardErrorNoRetry(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", zerolog.Nop())
	_, err := c.Search(context.Background(), "q", "")

	require.Error(t, err)
	assert.Equal(t, pricing.ReasonHTTPError, pricing.ReasonOf(err))
	assert.Equal(t, 1, attempts)
}

func TestSearchBrandSiteQueryShape(t *testing.T) {
	var queries []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.Query().Get("q"))
		w.Write([]byte(`{"results":[{"url":"https://acme.com/products/serum"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", zerolog.Nop())

	_, err := c.SearchBrandSite(context.Background(), "Acme", "Serum", "")
	require.NoError(t, err)
	_, err = c.SearchBrandSite(context.Background(), "Acme", "Serum", "acme.com")
	require.NoError(t, err)

	require.Len(t, queries, 2)
	assert.Equal(t, "Acme Serum official site price", queries[0])
	assert.Equal(t, "site:acme.com Serum", queries[1])
}
