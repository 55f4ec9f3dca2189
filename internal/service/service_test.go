package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"price-forecast/internal/forecast"
	"price-forecast/internal/history/financialdatasets"
	"price-forecast/internal/store"
	"price-forecast/internal/trace"
	"price-forecast/internal/types"
)

func day(s string) time.Time {
	t, _ := time.Parse(types.DateLayout, s)
	return t
}

func fixedClock(s string) Option {
	now := day(s).Add(15 * time.Hour)
	return WithClock(func() time.Time { return now })
}

type fakeFetcher struct {
	calls  atomic.Int32
	series func(ticker string, start, end time.Time) (*types.HistorySeries, error)

	mu               sync.Mutex
	gotStart, gotEnd time.Time
	gotDeadline      bool
}

func (f *fakeFetcher) Name() string { return "fake" }

func (f *fakeFetcher) FetchHistory(ctx context.Context, ticker string, start, end time.Time) (*types.HistorySeries, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.gotStart, f.gotEnd = start, end
	_, f.gotDeadline = ctx.Deadline()
	f.mu.Unlock()
	return f.series(ticker, start, end)
}

func linear(ticker string, start time.Time, n int, from, to float64) *types.HistorySeries {
	points := make([]types.PricePoint, n)
	for i := range points {
		points[i] = types.PricePoint{
			Date:  start.AddDate(0, 0, i),
			Close: from + (to-from)*float64(i)/float64(n-1),
		}
	}
	return &types.HistorySeries{Ticker: ticker, Start: start, End: points[n-1].Date, Points: points}
}

func newService(t *testing.T, f *fakeFetcher) *Service {
	t.Helper()
	cfg := store.Default()
	return New(cfg, f, forecast.New(forecast.ParamsFromConfig(cfg)), fixedClock("2024-03-30"))
}

func TestForecast_Success(t *testing.T) {
	f := &fakeFetcher{series: func(ticker string, start, end time.Time) (*types.HistorySeries, error) {
		return linear(ticker, day("2024-01-01"), 90, 150, 180), nil
	}}
	svc := newService(t, f)

	res := svc.Forecast(context.Background(), " aapl ", 7)
	require.True(t, res.OK(), res.Error)
	assert.Equal(t, "AAPL", res.Ticker)
	require.Len(t, res.Forecast, 7)
	assert.Equal(t, "2024-03-31", res.Forecast[0].DS)
	assert.Equal(t, "2024-04-06", res.Forecast[6].DS)
	assert.Greater(t, res.Forecast[0].YHat, 180.0)
	for i, row := range res.Forecast {
		assert.LessOrEqual(t, row.YHatLower, row.YHat)
		assert.LessOrEqual(t, row.YHat, row.YHatUpper)
		if i > 0 {
			assert.Greater(t, row.YHat, res.Forecast[i-1].YHat)
		}
	}

	assert.Equal(t, day("2024-03-30"), f.gotEnd)
	assert.Equal(t, day("2023-10-02"), f.gotStart)
	assert.True(t, f.gotDeadline)
}

func TestForecast_Validation(t *testing.T) {
	f := &fakeFetcher{series: func(string, time.Time, time.Time) (*types.HistorySeries, error) {
		t.Fatal("fetcher must not be called")
		return nil, nil
	}}
	svc := newService(t, f)
	ctx := context.Background()

	cases := map[string]struct {
		ticker string
		days   int
		want   string
	}{
		"zero days":     {"AAPL", 0, "invalid request: days: must be between 1 and 365, got 0"},
		"too many days": {"AAPL", 366, "invalid request: days: must be between 1 and 365, got 366"},
		"empty ticker":  {"   ", 7, "invalid request: ticker: must not be empty"},
		"bad ticker":    {"AA PL", 7, "invalid request: ticker:"},
		"long ticker":   {"ABCDEFGHIJKLM", 7, "invalid request: ticker:"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			res := svc.Forecast(ctx, tc.ticker, tc.days)
			assert.False(t, res.OK())
			assert.Empty(t, res.Forecast)
			assert.True(t, strings.HasPrefix(res.Error, tc.want), res.Error)
		})
	}
	assert.Zero(t, f.calls.Load())
}

func TestForecast_AcceptsIndexAndClassTickers(t *testing.T) {
	f := &fakeFetcher{series: func(ticker string, start, end time.Time) (*types.HistorySeries, error) {
		return linear(ticker, day("2024-01-01"), 30, 10, 12), nil
	}}
	svc := newService(t, f)

	for _, ticker := range []string{"^GSPC", "BRK.B", "RDS-A", "INFY"} {
		res := svc.Forecast(context.Background(), ticker, 1)
		assert.True(t, res.OK(), "%s: %s", ticker, res.Error)
	}
}

func TestForecast_FittingFailure(t *testing.T) {
	f := &fakeFetcher{series: func(ticker string, start, end time.Time) (*types.HistorySeries, error) {
		return linear(ticker, day("2024-03-29"), 2, 10, 11), nil
	}}
	svc := newService(t, f)

	res := svc.Forecast(context.Background(), "XYZ", 5)
	assert.Empty(t, res.Forecast)
	assert.True(t, strings.HasPrefix(res.Error, "forecast model failed: insufficient history"), res.Error)
}

func TestForecastMany_PreservesOrder(t *testing.T) {
	f := &fakeFetcher{series: func(ticker string, start, end time.Time) (*types.HistorySeries, error) {
		if ticker == "NONE" {
			return nil, &types.NoDataError{Ticker: ticker, Start: start, End: end}
		}
		return linear(ticker, day("2024-01-01"), 60, 100, 120), nil
	}}
	svc := newService(t, f)

	tickers := []string{"MSFT", "NONE", "aapl", "", "TSLA"}
	results := svc.ForecastMany(context.Background(), tickers, 3)
	require.Len(t, results, len(tickers))

	assert.Equal(t, "MSFT", results[0].Ticker)
	assert.True(t, results[0].OK())
	assert.Equal(t, "NONE", results[1].Ticker)
	assert.Equal(t, "no data returned from price provider for NONE between 2023-10-02 and 2024-03-30", results[1].Error)
	assert.Equal(t, "AAPL", results[2].Ticker)
	assert.True(t, results[2].OK())
	assert.Equal(t, "invalid request: ticker: must not be empty", results[3].Error)
	assert.Equal(t, "TSLA", results[4].Ticker)
	assert.Len(t, results[4].Forecast, 3)
}

func TestHistory_Window(t *testing.T) {
	f := &fakeFetcher{series: func(ticker string, start, end time.Time) (*types.HistorySeries, error) {
		return linear(ticker, start, 3, 1, 2), nil
	}}
	svc := newService(t, f)

	_, err := svc.History(context.Background(), "aapl", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, day("2023-10-02"), f.gotStart)
	assert.Equal(t, day("2024-03-30"), f.gotEnd)

	_, err = svc.History(context.Background(), "aapl", day("2024-01-01"), day("2024-02-01"))
	require.NoError(t, err)
	assert.Equal(t, day("2024-01-01"), f.gotStart)

	_, err = svc.History(context.Background(), "aapl", day("2024-03-01"), day("2024-02-01"))
	var ve *types.ValidationError
	assert.ErrorAs(t, err, &ve)
}

// End to end through the HTTP provider.

func newHTTPService(t *testing.T, handler http.HandlerFunc) *Service {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := store.Default()
	fetcher := financialdatasets.New(financialdatasets.Params{
		BaseURL: server.URL,
		APIKey:  "k",
		Limit:   cfg.FinancialDatasets.Limit,
		Timeout: cfg.FetchTimeout(),
	})
	return New(cfg, fetcher, forecast.NewFromConfig(cfg), fixedClock("2024-03-30"))
}

func TestForecast_ProviderPrices(t *testing.T) {
	svc := newHTTPService(t, func(w http.ResponseWriter, r *http.Request) {
		type row struct {
			Time  string  `json:"time"`
			Close float64 `json:"close"`
		}
		var rows []row
		start := day("2024-01-01")
		for i := 0; i < 90; i++ {
			rows = append(rows, row{
				Time:  start.AddDate(0, 0, i).Format(time.RFC3339),
				Close: 150 + 30*float64(i)/89,
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"prices": rows})
	})

	res := svc.Forecast(context.Background(), "AAPL", 7)
	require.True(t, res.OK(), res.Error)
	require.Len(t, res.Forecast, 7)
	assert.Equal(t, "2024-03-31", res.Forecast[0].DS)
	assert.Greater(t, res.Forecast[0].YHat, 180.0)
}

func TestForecast_ProviderStatusError(t *testing.T) {
	svc := newHTTPService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, "upstream exploded")
	})

	res := svc.Forecast(context.Background(), "AAPL", 7)
	assert.Equal(t, "AAPL", res.Ticker)
	assert.Empty(t, res.Forecast)
	assert.Contains(t, res.Error, "500")
	assert.Contains(t, res.Error, "upstream exploded")
}

func TestForecast_ProviderEmptyPrices(t *testing.T) {
	svc := newHTTPService(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"prices":[]}`)
	})

	res := svc.Forecast(context.Background(), "ZZZZ", 7)
	assert.Empty(t, res.Forecast)
	assert.Contains(t, res.Error, "no data")
	assert.Contains(t, res.Error, "ZZZZ")
}

func TestForecast_RecordsOutcomeOnSpan(t *testing.T) {
	t.Cleanup(func() { trace.SetProvider(nil) })

	f := &fakeFetcher{series: func(ticker string, start, end time.Time) (*types.HistorySeries, error) {
		return linear(ticker, day("2024-01-01"), 90, 150, 180), nil
	}}
	svc := newService(t, f)

	cases := map[string]string{"ok": "AAPL", "invalid": "bad ticker!"}
	for name, ticker := range cases {
		t.Run(name, func(t *testing.T) {
			recorder := tracetest.NewSpanRecorder()
			trace.SetProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))

			svc.Forecast(context.Background(), ticker, 3)

			var events []string
			for _, span := range recorder.Ended() {
				if span.Name() != "service.Forecast" {
					continue
				}
				for _, ev := range span.Events() {
					events = append(events, ev.Name)
				}
			}
			assert.Contains(t, events, "forecast_result")
		})
	}
}
