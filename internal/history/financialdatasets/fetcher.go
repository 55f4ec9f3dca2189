package financialdatasets

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"price-forecast/internal/api"
	"price-forecast/internal/interfaces"
	"price-forecast/internal/types"
)

const (
	providerName = "financialdatasets"
	pricesPath   = "/prices"
	apiKeyHeader = "X-API-KEY"

	// DefaultLimit is the provider's maximum row count per request
	DefaultLimit = 5000
)

// Fetcher reads daily closes from the Financial Datasets prices endpoint
type Fetcher struct {
	client *api.Client
	limit  int
}

var _ interfaces.HistoryFetcher = (*Fetcher)(nil)

// Params configures a Fetcher
type Params struct {
	BaseURL string
	APIKey  string
	Limit   int
	Timeout time.Duration
}

// New creates a fetcher. Extra client options (e.g. a test transport) are
// applied after the params.
func New(p Params, opts ...api.ClientOption) *Fetcher {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	base := []api.ClientOption{
		api.WithBaseURL(strings.TrimRight(p.BaseURL, "/")),
		api.WithHeader(apiKeyHeader, p.APIKey),
		api.WithLogging(true),
	}
	if p.Timeout > 0 {
		base = append(base, api.WithTimeout(p.Timeout))
	}
	return &Fetcher{
		client: api.NewClient(append(base, opts...)...),
		limit:  p.Limit,
	}
}

func (f *Fetcher) Name() string { return providerName }

type priceRow struct {
	Time  string   `json:"time"`
	Close *float64 `json:"close"`
}

type pricesResponse struct {
	Prices []priceRow `json:"prices"`
}

// FetchHistory issues a single prices request for [start, end]
func (f *Fetcher) FetchHistory(ctx context.Context, ticker string, start, end time.Time) (*types.HistorySeries, error) {
	start, end = types.CalendarDate(start), types.CalendarDate(end)
	if strings.TrimSpace(ticker) == "" {
		return nil, &types.ValidationError{Field: "ticker", Reason: "must not be empty"}
	}
	if start.After(end) {
		return nil, &types.ValidationError{Field: "start_date", Reason: "must not be after end_date"}
	}

	query := url.Values{}
	query.Set("ticker", ticker)
	query.Set("interval", "day")
	query.Set("interval_multiplier", "1")
	query.Set("start_date", types.FormatDate(start))
	query.Set("end_date", types.FormatDate(end))
	query.Set("limit", strconv.Itoa(f.limit))

	resp, err := f.client.GET(ctx, pricesPath, query)
	if err != nil {
		var se *api.StatusError
		if errors.As(err, &se) {
			return nil, &types.UpstreamError{Provider: providerName, StatusCode: se.StatusCode, Body: string(se.Body), Err: err}
		}
		return nil, &types.UpstreamError{Provider: providerName, Err: err}
	}

	var body pricesResponse
	if err := resp.ParseJSON(&body); err != nil {
		return nil, &types.UpstreamError{Provider: providerName, StatusCode: resp.StatusCode, Body: resp.String(), Err: err}
	}

	points, err := toPoints(body.Prices)
	if err != nil {
		return nil, &types.UpstreamError{Provider: providerName, StatusCode: resp.StatusCode, Body: resp.String(), Err: err}
	}
	if len(points) == 0 {
		return nil, &types.NoDataError{Ticker: ticker, Start: start, End: end}
	}

	return &types.HistorySeries{
		Ticker: ticker,
		Start:  start,
		End:    end,
		Points: points,
	}, nil
}

func toPoints(rows []priceRow) ([]types.PricePoint, error) {
	points := make([]types.PricePoint, 0, len(rows))
	for _, row := range rows {
		if row.Close == nil || math.IsNaN(*row.Close) || math.IsInf(*row.Close, 0) {
			continue
		}
		d, err := ParseDate(row.Time)
		if err != nil {
			return nil, err
		}
		points = append(points, types.PricePoint{Date: d, Close: *row.Close})
	}
	return types.NormalizePoints(points), nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05 MST",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05",
	types.DateLayout,
}

// ParseDate converts a provider timestamp into a calendar date, keeping the
// wall-clock date and discarding zone and time-of-day.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return types.CalendarDate(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised price timestamp %q", s)
}
