// Package main provides the pricing API server.
package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"

	"snaplist/api"
	"snaplist/internal/app"
	"snaplist/internal/config"
	"snaplist/pkg/platform"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	log := platform.NewLogger(cfg.App.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("configuration failed")
	}

	engine, err := app.Build(context.Background(), cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("engine wiring failed")
	}
	defer engine.Close()

	serverCfg := api.DefaultConfig()
	serverCfg.Port = cfg.App.Port

	if err := api.NewServer(engine.Pricer, serverCfg, log).Run(); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}
