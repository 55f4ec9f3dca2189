package forecast

import (
	"price-forecast/internal/forecast/forecastobs"
	"price-forecast/internal/interfaces"
	"price-forecast/internal/store"
)

// NewFromConfig builds the engine from the forecast section of cfg, wrapped
// with observability.
func NewFromConfig(cfg *store.Config) interfaces.ForecastEngine {
	return forecastobs.Wrap(New(ParamsFromConfig(cfg)))
}
