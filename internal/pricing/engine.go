package pricing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"snaplist/internal/metrics"
)

// Engine runs one pricing request end to end: cache fast path, signal
// collection, arbitration, allocation, and persistence of the resolved
// MSRP-equivalent signal for reuse.
type Engine struct {
	collector *Collector
	arbiter   *Arbiter
	cache     CacheStore
	archive   Archive
	log       zerolog.Logger
}

// EngineDeps wires the engine. Cache and archive are optional.
type EngineDeps struct {
	Collector *Collector
	Arbiter   *Arbiter
	Cache     CacheStore
	Archive   Archive
	Logger    zerolog.Logger
}

// NewEngine creates a pricing engine.
func NewEngine(deps EngineDeps) *Engine {
	return &Engine{
		collector: deps.Collector,
		arbiter:   deps.Arbiter,
		cache:     deps.Cache,
		archive:   deps.Archive,
		log:       deps.Logger,
	}
}

// CacheKey derives the cache key for a product. Brand is optional.
func CacheKey(brand, title string) string {
	h := sha256.New()
	h.Write([]byte(normalizeName(brand)))
	h.Write([]byte{0})
	h.Write([]byte(normalizeName(title)))
	return hex.EncodeToString(h.Sum(nil))
}

// Price produces a decision for the query under the given settings.
// The only error it returns is context cancellation; every external
// failure degrades inside the pipeline instead of propagating.
func (e *Engine) Price(ctx context.Context, q Query, settings PricingSettings) (PriceDecision, error) {
	if err := ctx.Err(); err != nil {
		return PriceDecision{}, err
	}

	key := CacheKey(q.Brand, q.Title)
	if cached := e.cacheLookup(ctx, key); cached != nil {
		// The cached MSRP signal is re-priced under the caller's current
		// settings; the final listing price is never cached.
		decision := e.arbiter.finalize(q, cached.Chosen, cached.Candidates, cached.Chosen.PriceCents, settings, "cached msrp signal")
		decision.DecisionID = uuid.New()
		decision.FromCache = true
		metrics.Decisions.WithLabelValues(outcomeLabel(decision)).Inc()
		return decision, nil
	}

	candidates, stats := e.collector.Collect(ctx, q)
	decision := e.arbiter.Decide(ctx, q, candidates, stats, settings)
	decision.DecisionID = uuid.New()

	if decision.OK && decision.Chosen != nil && decision.Chosen.PriceCents >= CacheFloorCents {
		e.cacheStore(ctx, key, decision)
	}
	e.archiveDecision(ctx, q, decision)

	metrics.Decisions.WithLabelValues(outcomeLabel(decision)).Inc()
	return decision, nil
}

func (e *Engine) cacheLookup(ctx context.Context, key string) *CacheEntry {
	if e.cache == nil {
		return nil
	}
	entry, err := e.cache.Get(ctx, key)
	if err != nil {
		e.log.Warn().Err(err).Msg("cache lookup failed")
		metrics.CacheLookups.WithLabelValues("error").Inc()
		return nil
	}
	if entry == nil {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil
	}
	if entry.MsrpCents < CacheFloorCents {
		// A previously corrupted write; treat as a miss and recompute.
		e.log.Warn().Int64("msrp_cents", entry.MsrpCents).Msg("ignoring corrupted cache entry")
		metrics.CacheLookups.WithLabelValues("corrupt").Inc()
		return nil
	}
	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return entry
}

func (e *Engine) cacheStore(ctx context.Context, key string, decision PriceDecision) {
	if e.cache == nil {
		return
	}
	entry := &CacheEntry{
		MsrpCents:  decision.Chosen.PriceCents,
		Chosen:     *decision.Chosen,
		Candidates: decision.Candidates,
		CachedAt:   time.Now().UTC(),
	}
	if err := e.cache.Set(ctx, key, entry); err != nil {
		// Persistence is best effort; the decision still stands.
		e.log.Warn().Err(err).Msg("cache write failed")
	}
}

func (e *Engine) archiveDecision(ctx context.Context, q Query, decision PriceDecision) {
	if e.archive == nil {
		return
	}
	rec := DecisionRecord{
		DecisionID:       decision.DecisionID.String(),
		QueryTitle:       q.Title,
		QueryBrand:       q.Brand,
		Candidates:       decision.Candidates,
		RecommendedCents: decision.RecommendedListingPriceCents,
		OK:               decision.OK,
		Reason:           decision.Reason,
		CreatedAt:        time.Now().UTC(),
	}
	if decision.Chosen != nil {
		rec.ChosenSource = decision.Chosen.Source
	}
	if err := e.archive.Append(ctx, rec); err != nil {
		e.log.Warn().Err(err).Msg("decision archive append failed")
	}
}

func outcomeLabel(d PriceDecision) string {
	switch {
	case d.OK:
		return "ok"
	case d.NeedsManualReview:
		return "manual_review"
	default:
		return "failed"
	}
}
