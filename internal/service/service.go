package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"price-forecast/internal/forecast"
	"price-forecast/internal/interfaces"
	"price-forecast/internal/logger"
	"price-forecast/internal/store"
	"price-forecast/internal/types"
)

var tickerPattern = regexp.MustCompile(`^[A-Za-z0-9.\-^]{1,12}$`)

// Service runs the fetch, forecast and format pipeline for one ticker at a
// time. It keeps no per-request state, so concurrent calls are independent.
type Service struct {
	fetcher interfaces.HistoryFetcher
	engine  interfaces.ForecastEngine
	cfg     *store.Config
	now     func() time.Time
}

var _ interfaces.Forecaster = (*Service)(nil)

type Option func(*Service)

// WithClock replaces time.Now as the source of "today".
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(cfg *store.Config, fetcher interfaces.HistoryFetcher, engine interfaces.ForecastEngine, opts ...Option) *Service {
	s := &Service{
		fetcher: fetcher,
		engine:  engine,
		cfg:     cfg,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Forecast never returns an error; failures are reported in the result.
func (s *Service) Forecast(ctx context.Context, ticker string, days int) types.ForecastResult {
	symbol := strings.ToUpper(strings.TrimSpace(ticker))

	requestID := uuid.NewString()
	ctx = logger.WithRequestID(ctx, requestID)
	op := logger.StartOperation(ctx, "service.Forecast",
		"ticker", symbol,
		"days", days,
		"request_id", requestID,
	)
	ctx = op.GetContext()

	points, err := s.run(ctx, symbol, days)
	res := forecast.BuildResult(symbol, points, err, *s.cfg.Output.RoundPlaces)

	// The result event must land on the span before it ends.
	logger.Forecast(ctx, res.Ticker, days, len(res.Forecast), res.Error, "provider", s.fetcher.Name())
	if err != nil {
		op.EndWithError(err, "stage_error", res.Error)
	} else {
		op.End("points", len(res.Forecast))
	}
	return res
}

// ForecastMany forecasts each ticker concurrently. Results are in input order.
func (s *Service) ForecastMany(ctx context.Context, tickers []string, days int) []types.ForecastResult {
	results := make([]types.ForecastResult, len(tickers))

	var wg sync.WaitGroup
	for i, ticker := range tickers {
		wg.Add(1)
		go func(i int, ticker string) {
			defer wg.Done()
			results[i] = s.Forecast(ctx, ticker, days)
		}(i, ticker)
	}
	wg.Wait()

	return results
}

// History fetches the price series for ticker over [start, end]. Zero times
// fall back to the configured lookback window ending today.
func (s *Service) History(ctx context.Context, ticker string, start, end time.Time) (*types.HistorySeries, error) {
	symbol := strings.ToUpper(strings.TrimSpace(ticker))
	if err := validateTicker(symbol); err != nil {
		return nil, err
	}

	if end.IsZero() {
		_, end = s.window()
	}
	if start.IsZero() {
		start = end.AddDate(0, 0, -s.cfg.Fetch.LookbackDays)
	}
	if start.After(end) {
		return nil, &types.ValidationError{Field: "start_date", Reason: "must not be after end_date"}
	}

	return s.fetch(ctx, symbol, start, end)
}

func (s *Service) run(ctx context.Context, symbol string, days int) ([]types.ForecastPoint, error) {
	if err := validateTicker(symbol); err != nil {
		return nil, err
	}
	if days < 1 || days > s.cfg.Forecast.MaxDays {
		return nil, &types.ValidationError{
			Field:  "days",
			Reason: fmt.Sprintf("must be between 1 and %d, got %d", s.cfg.Forecast.MaxDays, days),
		}
	}

	start, end := s.window()
	history, err := s.fetch(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}

	return s.engine.Forecast(ctx, history, days)
}

func (s *Service) fetch(ctx context.Context, symbol string, start, end time.Time) (*types.HistorySeries, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout())
	defer cancel()
	return s.fetcher.FetchHistory(ctx, symbol, start, end)
}

// window is the default history range: lookback days ending today.
func (s *Service) window() (start, end time.Time) {
	end = types.CalendarDate(s.now())
	return end.AddDate(0, 0, -s.cfg.Fetch.LookbackDays), end
}

func validateTicker(symbol string) error {
	if symbol == "" {
		return &types.ValidationError{Field: "ticker", Reason: "must not be empty"}
	}
	if !tickerPattern.MatchString(symbol) {
		return &types.ValidationError{
			Field:  "ticker",
			Reason: fmt.Sprintf("%q must be 1-12 characters of letters, digits, '.', '-' or '^'", symbol),
		}
	}
	return nil
}
