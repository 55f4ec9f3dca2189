package historyobs

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"price-forecast/internal/interfaces"
	"price-forecast/internal/logger"
	"price-forecast/internal/trace"
	"price-forecast/internal/types"
)

// observableFetcher wraps a HistoryFetcher with logging and tracing
type observableFetcher struct {
	fetcher interfaces.HistoryFetcher
}

// Compile-time interface check
var _ interfaces.HistoryFetcher = (*observableFetcher)(nil)

// Wrap wraps a fetcher with observability middleware
func Wrap(fetcher interfaces.HistoryFetcher) interfaces.HistoryFetcher {
	return &observableFetcher{
		fetcher: fetcher,
	}
}

func (of *observableFetcher) Name() string { return of.fetcher.Name() }

// FetchHistory fetches the price history with observability
func (of *observableFetcher) FetchHistory(ctx context.Context, ticker string, start, end time.Time) (*types.HistorySeries, error) {
	ctx, span := trace.StartSpan(ctx, "history.FetchHistory")
	defer span.End()

	trace.SetAttributes(ctx,
		attribute.String("provider", of.fetcher.Name()),
		attribute.String("ticker", ticker),
		attribute.String("start_date", types.FormatDate(start)),
		attribute.String("end_date", types.FormatDate(end)),
	)

	begin := time.Now()
	logger.DebugSkip(ctx, 1, "Fetching price history",
		"provider", of.fetcher.Name(),
		"ticker", ticker,
		"start_date", types.FormatDate(start),
		"end_date", types.FormatDate(end),
	)

	series, err := of.fetcher.FetchHistory(ctx, ticker, start, end)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch price history", err,
			"provider", of.fetcher.Name(),
			"ticker", ticker,
			"duration_ms", time.Since(begin).Milliseconds(),
		)
		return nil, err
	}

	logger.InfoSkip(ctx, 1, "Price history fetched",
		"provider", of.fetcher.Name(),
		"ticker", ticker,
		"points", len(series.Points),
		"first", types.FormatDate(series.Points[0].Date),
		"last", types.FormatDate(series.Last().Date),
		"duration_ms", time.Since(begin).Milliseconds(),
	)
	return series, nil
}
