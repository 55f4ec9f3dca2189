package forecast

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"price-forecast/internal/types"
)

// BuildResult turns the outcome of a forecast request into its transport
// shape. It never fails: errors, including non-finite model output, become the
// Error field with an empty forecast.
func BuildResult(ticker string, points []types.ForecastPoint, err error, roundPlaces int) types.ForecastResult {
	symbol := strings.ToUpper(ticker)
	if err == nil {
		err = checkFinite(points)
	}
	if err != nil {
		return types.ForecastResult{
			Ticker:   symbol,
			Forecast: []types.ForecastRow{},
			Error:    ErrorMessage(err),
		}
	}

	rows := make([]types.ForecastRow, 0, len(points))
	for _, p := range points {
		rows = append(rows, types.ForecastRow{
			DS:        types.FormatDate(p.Date),
			YHat:      round(p.Estimate, roundPlaces),
			YHatLower: round(p.Lower, roundPlaces),
			YHatUpper: round(p.Upper, roundPlaces),
		})
	}
	return types.ForecastResult{Ticker: symbol, Forecast: rows}
}

// ErrorMessage renders err for the error field of a ForecastResult.
func ErrorMessage(err error) string {
	var (
		up  *types.UpstreamError
		nd  *types.NoDataError
		fit *types.ForecastFittingError
		ve  *types.ValidationError
	)
	switch {
	case errors.As(err, &ve):
		return fmt.Sprintf("invalid request: %s: %s", ve.Field, ve.Reason)
	case errors.As(err, &up):
		if up.StatusCode == 0 {
			return fmt.Sprintf("price provider error: %v", up.Err)
		}
		return fmt.Sprintf("price provider error: status %d: %s", up.StatusCode, up.Body)
	case errors.As(err, &nd):
		return fmt.Sprintf("no data returned from price provider for %s between %s and %s",
			strings.ToUpper(nd.Ticker), types.FormatDate(nd.Start), types.FormatDate(nd.End))
	case errors.As(err, &fit):
		return fmt.Sprintf("forecast model failed: %v", fit.Err)
	default:
		return fmt.Sprintf("forecast failed: %v", err)
	}
}

func checkFinite(points []types.ForecastPoint) error {
	for _, p := range points {
		for _, v := range []float64{p.Estimate, p.Lower, p.Upper} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return &types.ForecastFittingError{
					Err: fmt.Errorf("non-finite value on %s", types.FormatDate(p.Date)),
				}
			}
		}
	}
	return nil
}

// round is half away from zero.
func round(v float64, places int) float64 {
	return decimal.NewFromFloat(v).Round(int32(places)).InexactFloat64()
}
