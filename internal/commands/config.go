package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/farmsense/server/internal/agent/model"
	"github.com/farmsense/server/internal/core"
	logx "github.com/farmsense/server/pkg/logger"
	pkgpostgres "github.com/farmsense/server/pkg/postgres"
	pkgqdrant "github.com/farmsense/server/pkg/qdrant"
	pkgredis "github.com/farmsense/server/pkg/redis"
)

const (
	BusMemory = "memory"
	BusRedis  = "redis"
)

// AppConfig defines every configurable parameter, sourced from environment
// variables (loaded from .env for local runs).
type AppConfig struct {
	Environment core.Environment `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string           `envconfig:"LOG_LEVEL"`

	// Infrastructure
	Redis    pkgredis.Config
	Postgres pkgpostgres.Config
	Qdrant   pkgqdrant.Config
	Bus      string `envconfig:"BUS_BACKEND" default:"memory"`

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Pipeline
	Decompose model.DecomposeModelConfig
	Response  model.ResponseModelConfig
	Embedding model.EmbeddingConfig
	Retrieval model.RetrievalConfig

	// Collection
	Farm        model.FarmConfig
	Coordinator model.CoordinatorConfig
	Bureau      model.BureauConfig

	Server model.ServerConfig
}

// LoadConfig reads envFile when present, then the environment.
func LoadConfig(envFile string) (*AppConfig, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process environment config: %w", err)
	}
	if cfg.Bus != BusMemory && cfg.Bus != BusRedis {
		return nil, fmt.Errorf("invalid BUS_BACKEND %q: want %q or %q", cfg.Bus, BusMemory, BusRedis)
	}
	return &cfg, nil
}

// requireAPIKey is checked only by the commands that call Gemini.
func (c *AppConfig) requireAPIKey() error {
	if c.APIKey == "" {
		return errors.New("GEMINI_API_KEY is required")
	}
	return nil
}

func (c *AppConfig) initLogger(service string) {
	logx.Init(logx.LoggerOpts{Environment: c.Environment, Level: c.LogLevel, Service: service})
}
