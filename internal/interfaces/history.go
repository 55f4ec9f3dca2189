package interfaces

import (
	"context"
	"time"

	"price-forecast/internal/types"
)

// HistoryFetcher retrieves daily closing prices from an external provider
type HistoryFetcher interface {
	// FetchHistory returns the daily closes for ticker within [start, end],
	// ordered by ascending date. Implementations make no retries.
	FetchHistory(ctx context.Context, ticker string, start, end time.Time) (*types.HistorySeries, error)

	// Name identifies the provider in logs and error messages
	Name() string
}
