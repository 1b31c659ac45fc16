// Package app assembles the pricing engine from configuration. Both
// binaries share this wiring; any collaborator left unconfigured
// becomes a nil dependency and its tier degrades to "no signal".
package app

import (
	"context"
	"io"

	"github.com/rs/zerolog"

	"snaplist/internal/archive"
	"snaplist/internal/cache"
	"snaplist/internal/comps"
	"snaplist/internal/config"
	"snaplist/internal/extract"
	"snaplist/internal/fetch"
	"snaplist/internal/llm"
	"snaplist/internal/pricing"
	"snaplist/internal/ratelimit"
	"snaplist/internal/registry"
	"snaplist/internal/search"
)

// Engine bundles the constructed engine with the resources it owns.
type Engine struct {
	Pricer  *pricing.Engine
	closers []io.Closer
}

// Close releases owned connections.
func (e *Engine) Close() {
	for _, c := range e.closers {
		_ = c.Close()
	}
}

// Build wires the pricing engine from configuration.
func Build(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*Engine, error) {
	out := &Engine{}

	deps := pricing.CollectorDeps{
		Pages:     fetch.NewClient(cfg.App.FetchTimeout, logger),
		Extractor: extract.New(),
		Limiter:   ratelimit.New(cfg.Search.PaceInterval),
		Logger:    logger,
	}

	if cfg.Comps.BaseURL != "" {
		deps.Comps = comps.NewClient(cfg.Comps.BaseURL, cfg.Comps.APIKey, logger)
	} else {
		logger.Info().Msg("comps API not configured, sold-comps tier disabled")
	}

	if cfg.Search.BaseURL != "" {
		deps.Searcher = search.NewClient(cfg.Search.BaseURL, cfg.Search.APIKey, logger)
	} else {
		logger.Info().Msg("search API not configured, URL resolution disabled")
	}

	var arbitrator pricing.Arbitrator
	if cfg.LLM.APIKey != "" {
		client := llm.NewClient(llm.Config{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
		}, logger)
		arbitrator = client
		deps.WebPricer = client
	} else {
		logger.Info().Msg("LLM not configured, using deterministic arbitration")
	}

	if cfg.Postgres.DSN != "" {
		reg, err := registry.Open(cfg.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		if err := reg.Migrate(ctx); err != nil {
			return nil, err
		}
		deps.Registry = reg
		out.closers = append(out.closers, reg)
	}

	engineDeps := pricing.EngineDeps{
		Collector: pricing.NewCollector(deps),
		Arbiter:   pricing.NewArbiter(arbitrator, logger),
		Logger:    logger,
	}

	if cfg.Redis.Addr != "" {
		store := cache.NewRedisStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err := store.Ping(ctx); err != nil {
			logger.Warn().Err(err).Msg("redis unreachable, cache disabled")
			_ = store.Close()
		} else {
			engineDeps.Cache = store
			out.closers = append(out.closers, store)
		}
	}

	if cfg.ClickHouse.Host != "" {
		store, err := archive.NewStore(ctx, &archive.Config{
			Host:     cfg.ClickHouse.Host,
			Port:     cfg.ClickHouse.Port,
			Database: cfg.ClickHouse.Database,
			Username: cfg.ClickHouse.Username,
			Password: cfg.ClickHouse.Password,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("clickhouse unreachable, decision archive disabled")
		} else {
			engineDeps.Archive = store
			out.closers = append(out.closers, store)
		}
	}

	out.Pricer = pricing.NewEngine(engineDeps)
	return out, nil
}
