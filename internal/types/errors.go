package types

import (
	"fmt"
	"time"
)

// UpstreamError is returned when the price provider cannot be reached or
// answers with a non-success status. StatusCode is 0 for transport failures.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Body       string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.StatusCode, e.Body)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// NoDataError is returned when the provider answers successfully with zero rows.
type NoDataError struct {
	Ticker string
	Start  time.Time
	End    time.Time
}

func (e *NoDataError) Error() string {
	return fmt.Sprintf("no data returned for %s between %s and %s",
		e.Ticker, FormatDate(e.Start), FormatDate(e.End))
}

// ForecastFittingError wraps any failure to fit or predict.
type ForecastFittingError struct {
	Err error
}

func (e *ForecastFittingError) Error() string {
	return fmt.Sprintf("forecast fitting failed: %v", e.Err)
}

func (e *ForecastFittingError) Unwrap() error { return e.Err }

// ValidationError reports a malformed request input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
