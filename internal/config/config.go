// Package config exposes strongly typed configuration for the
// binaries, loaded from an optional YAML file with environment
// overrides. An unset collaborator section simply disables that
// source; the engine degrades instead of failing to start.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"snaplist/pkg/platform"
)

// App captures process-wide runtime settings.
type App struct {
	Port         int           `yaml:"port"`
	LogLevel     string        `yaml:"log_level"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

// Search configures the URL-resolution search API.
type Search struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	// PaceInterval spaces outbound search calls within the process.
	PaceInterval time.Duration `yaml:"pace_interval"`
}

// Comps configures the sold-comps statistics API.
type Comps struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// LLM configures the chat-completion endpoint used for arbitration
// and the web-search price fallback.
type LLM struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

// Redis configures the MSRP cache store.
type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Postgres configures the brand registry.
type Postgres struct {
	DSN string `yaml:"dsn"`
}

// ClickHouse configures the decision archive.
type ClickHouse struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Config is the full configuration tree.
type Config struct {
	App        App        `yaml:"app"`
	Search     Search     `yaml:"search"`
	Comps      Comps      `yaml:"comps"`
	LLM        LLM        `yaml:"llm"`
	Redis      Redis      `yaml:"redis"`
	Postgres   Postgres   `yaml:"postgres"`
	ClickHouse ClickHouse `yaml:"clickhouse"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		App: App{
			Port:         8080,
			LogLevel:     "info",
			FetchTimeout: 10 * time.Second,
		},
		Search: Search{
			PaceInterval: 500 * time.Millisecond,
		},
		ClickHouse: ClickHouse{
			Host:     "localhost",
			Port:     9000,
			Database: "snaplist",
			Username: "default",
		},
	}
}

// Load reads a YAML file (when path is non-empty) over the defaults,
// then applies environment overrides on top.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config read: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("config parse: %w", err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.App.Port = platform.GetEnvInt("PORT", c.App.Port)
	c.App.LogLevel = platform.GetEnv("LOG_LEVEL", c.App.LogLevel)
	c.App.FetchTimeout = platform.GetEnvDuration("FETCH_TIMEOUT", c.App.FetchTimeout)

	c.Search.BaseURL = platform.GetEnv("SEARCH_API_URL", c.Search.BaseURL)
	c.Search.APIKey = platform.GetEnv("SEARCH_API_KEY", c.Search.APIKey)
	c.Search.PaceInterval = platform.GetEnvDuration("SEARCH_PACE_INTERVAL", c.Search.PaceInterval)

	c.Comps.BaseURL = platform.GetEnv("COMPS_API_URL", c.Comps.BaseURL)
	c.Comps.APIKey = platform.GetEnv("COMPS_API_KEY", c.Comps.APIKey)

	c.LLM.BaseURL = platform.GetEnv("LLM_BASE_URL", c.LLM.BaseURL)
	c.LLM.APIKey = platform.GetEnv("LLM_API_KEY", c.LLM.APIKey)
	c.LLM.Model = platform.GetEnv("LLM_MODEL", c.LLM.Model)

	c.Redis.Addr = platform.GetEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = platform.GetEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = platform.GetEnvInt("REDIS_DB", c.Redis.DB)

	c.Postgres.DSN = platform.GetEnv("DATABASE_URL", c.Postgres.DSN)

	c.ClickHouse.Host = platform.GetEnv("CLICKHOUSE_HOST", c.ClickHouse.Host)
	c.ClickHouse.Port = platform.GetEnvInt("CLICKHOUSE_PORT", c.ClickHouse.Port)
	c.ClickHouse.Database = platform.GetEnv("CLICKHOUSE_DATABASE", c.ClickHouse.Database)
	c.ClickHouse.Username = platform.GetEnv("CLICKHOUSE_USER", c.ClickHouse.Username)
	c.ClickHouse.Password = platform.GetEnv("CLICKHOUSE_PASSWORD", c.ClickHouse.Password)
}
