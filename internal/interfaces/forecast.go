package interfaces

import (
	"context"

	"price-forecast/internal/types"
)

// ForecastEngine fits a model to a history and projects future days
type ForecastEngine interface {
	// Forecast returns exactly days points, one per calendar day after the
	// last history date.
	Forecast(ctx context.Context, history *types.HistorySeries, days int) ([]types.ForecastPoint, error)
}

// Forecaster is the service boundary consumed by hosts (CLI, API layers)
type Forecaster interface {
	Forecast(ctx context.Context, ticker string, days int) types.ForecastResult
	ForecastMany(ctx context.Context, tickers []string, days int) []types.ForecastResult
}
