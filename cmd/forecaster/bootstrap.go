package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"price-forecast/internal/forecast"
	"price-forecast/internal/history"
	"price-forecast/internal/logger"
	"price-forecast/internal/service"
	"price-forecast/internal/store"
	"price-forecast/internal/trace"
)

// initializeSystem loads .env and sets up logging and tracing
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}
	return nil
}

func loadConfig(ctx context.Context, path string) (*store.Config, error) {
	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	return cfg, nil
}

// initializeService wires the configured provider and the forecast engine
func initializeService(ctx context.Context, cfg *store.Config) (*service.Service, error) {
	fetcher, err := history.New(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Provider == store.ProviderFinancialDatasets && cfg.APIKey() == "" {
		logger.Warn(ctx, "Price provider API key is not set", "env", cfg.FinancialDatasets.APIKeyEnv)
	}

	logger.Info(ctx, "Forecast service ready",
		"provider", fetcher.Name(),
		"lookback_days", cfg.Fetch.LookbackDays,
		"max_days", cfg.Forecast.MaxDays,
	)
	return service.New(cfg, fetcher, forecast.NewFromConfig(cfg)), nil
}
