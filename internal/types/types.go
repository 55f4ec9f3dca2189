package types

import "time"

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// PricePoint is a single daily close.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// HistorySeries holds the daily closes for one ticker over [Start, End],
// ordered by ascending, unique dates.
type HistorySeries struct {
	Ticker string       `json:"ticker"`
	Start  time.Time    `json:"start_date"`
	End    time.Time    `json:"end_date"`
	Points []PricePoint `json:"points"`
}

// Last returns the most recent point. The series must be non-empty.
func (h *HistorySeries) Last() PricePoint {
	return h.Points[len(h.Points)-1]
}

// ForecastPoint is one projected day.
type ForecastPoint struct {
	Date     time.Time
	Estimate float64
	Lower    float64
	Upper    float64
}

// ForecastRow is the transport shape of a ForecastPoint.
type ForecastRow struct {
	DS        string  `json:"ds"`
	YHat      float64 `json:"yhat"`
	YHatLower float64 `json:"yhat_lower"`
	YHatUpper float64 `json:"yhat_upper"`
}

// ForecastResult is the terminal output of a forecast request. Either Forecast
// is non-empty and Error is empty, or Forecast is empty and Error is set.
type ForecastResult struct {
	Ticker   string        `json:"ticker"`
	Forecast []ForecastRow `json:"forecast"`
	Error    string        `json:"error,omitempty"`
}

// OK reports whether the result carries a forecast.
func (r ForecastResult) OK() bool {
	return r.Error == ""
}

// CalendarDate drops the time-of-day and zone of t, keeping its wall-clock date.
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatDate renders a calendar date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
