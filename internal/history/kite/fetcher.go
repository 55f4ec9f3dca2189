package kite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	"price-forecast/internal/interfaces"
	"price-forecast/internal/types"
)

const (
	providerName = "kite"
	dayInterval  = "day"
)

// Params configures the Kite Connect history fetcher
type Params struct {
	APIKey      string
	AccessToken string
	Exchange    string
}

// client is the subset of the Kite Connect SDK the fetcher needs
type client interface {
	GetInstrumentsByExchange(exchange string) (kiteconnect.Instruments, error)
	GetHistoricalData(instrumentToken int, interval string, fromDate time.Time, toDate time.Time, continuous bool, OI bool) ([]kiteconnect.HistoricalData, error)
}

// Fetcher reads daily candles through Zerodha Kite Connect
type Fetcher struct {
	kc       client
	exchange string
}

var _ interfaces.HistoryFetcher = (*Fetcher)(nil)

// New creates a fetcher backed by the Kite Connect REST API
func New(p Params) *Fetcher {
	kc := kiteconnect.New(p.APIKey)
	kc.SetAccessToken(p.AccessToken)
	return newWithClient(kc, p.Exchange)
}

func newWithClient(kc client, exchange string) *Fetcher {
	if exchange == "" {
		exchange = "NSE"
	}
	return &Fetcher{kc: kc, exchange: strings.ToUpper(exchange)}
}

func (f *Fetcher) Name() string { return providerName }

// FetchHistory resolves ticker on the configured exchange and loads its day
// candles for [start, end]. The SDK call does not take a context, so ctx is
// only checked between the two requests.
func (f *Fetcher) FetchHistory(ctx context.Context, ticker string, start, end time.Time) (*types.HistorySeries, error) {
	start, end = types.CalendarDate(start), types.CalendarDate(end)
	symbol := strings.ToUpper(strings.TrimSpace(ticker))
	if symbol == "" {
		return nil, &types.ValidationError{Field: "ticker", Reason: "must not be empty"}
	}
	if start.After(end) {
		return nil, &types.ValidationError{Field: "start_date", Reason: "must not be after end_date"}
	}

	token, err := f.instrumentToken(symbol)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, &types.UpstreamError{Provider: providerName, Err: err}
	}

	candles, err := f.kc.GetHistoricalData(token, dayInterval, start, end.Add(24*time.Hour-time.Second), false, false)
	if err != nil {
		return nil, upstream(err)
	}

	points := make([]types.PricePoint, 0, len(candles))
	for _, c := range candles {
		points = append(points, types.PricePoint{Date: c.Date.Time, Close: c.Close})
	}
	points = types.NormalizePoints(points)
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

func (f *Fetcher) instrumentToken(symbol string) (int, error) {
	instruments, err := f.kc.GetInstrumentsByExchange(f.exchange)
	if err != nil {
		return 0, upstream(err)
	}
	for _, inst := range instruments {
		if strings.EqualFold(inst.Tradingsymbol, symbol) {
			return inst.InstrumentToken, nil
		}
	}
	return 0, &types.ValidationError{
		Field:  "ticker",
		Reason: fmt.Sprintf("%s is not listed on %s", symbol, f.exchange),
	}
}

func upstream(err error) error {
	var kerr kiteconnect.Error
	if errors.As(err, &kerr) {
		return &types.UpstreamError{Provider: providerName, StatusCode: kerr.Code, Body: kerr.Message, Err: err}
	}
	return &types.UpstreamError{Provider: providerName, Err: err}
}
