package forecastobs

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"price-forecast/internal/interfaces"
	"price-forecast/internal/logger"
	"price-forecast/internal/trace"
	"price-forecast/internal/types"
)

type observableEngine struct {
	engine interfaces.ForecastEngine
}

var _ interfaces.ForecastEngine = (*observableEngine)(nil)

func Wrap(eng interfaces.ForecastEngine) interfaces.ForecastEngine {
	return &observableEngine{
		engine: eng,
	}
}

func (oe *observableEngine) Forecast(ctx context.Context, history *types.HistorySeries, days int) ([]types.ForecastPoint, error) {
	ctx, span := trace.StartSpan(ctx, "forecast.Forecast")
	defer span.End()

	var ticker string
	var n int
	if history != nil {
		ticker, n = history.Ticker, len(history.Points)
	}
	trace.SetAttributes(ctx,
		attribute.String("ticker", ticker),
		attribute.Int("history_points", n),
		attribute.Int("days", days),
	)

	start := time.Now()
	logger.DebugSkip(ctx, 1, "Fitting forecast model",
		"ticker", ticker,
		"history_points", n,
		"days", days,
	)

	points, err := oe.engine.Forecast(ctx, history, days)
	if err != nil {
		trace.RecordError(ctx, err)
		logger.ErrorWithErrSkip(ctx, 1, "Forecast model failed", err,
			"ticker", ticker,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	logger.InfoSkip(ctx, 1, "Forecast model fitted",
		"ticker", ticker,
		"history_points", n,
		"horizon", len(points),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return points, nil
}
