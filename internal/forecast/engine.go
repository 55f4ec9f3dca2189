package forecast

import (
	"context"
	"errors"
	"fmt"

	"price-forecast/internal/interfaces"
	"price-forecast/internal/store"
	"price-forecast/internal/types"
)

// Params controls the additive model. Zero values are not meaningful; start
// from DefaultParams or ParamsFromConfig.
type Params struct {
	MinHistoryPoints      int
	IntervalWidth         float64
	WeeklySeasonality     bool
	YearlySeasonality     bool
	WeeklyFourierOrder    int
	YearlyFourierOrder    int
	NChangepoints         int
	ChangepointRange      float64
	ChangepointPriorScale float64
	SeasonalityPriorScale float64
}

func (p Params) check() error {
	switch {
	case p.MinHistoryPoints < 2:
		return fmt.Errorf("min history points must be at least 2, got %d", p.MinHistoryPoints)
	case p.IntervalWidth <= 0 || p.IntervalWidth >= 1:
		return fmt.Errorf("interval width must be in (0, 1), got %g", p.IntervalWidth)
	case p.WeeklySeasonality && p.WeeklyFourierOrder < 1:
		return fmt.Errorf("weekly fourier order must be at least 1, got %d", p.WeeklyFourierOrder)
	case p.YearlySeasonality && p.YearlyFourierOrder < 1:
		return fmt.Errorf("yearly fourier order must be at least 1, got %d", p.YearlyFourierOrder)
	case p.NChangepoints < 0:
		return fmt.Errorf("changepoint count cannot be negative, got %d", p.NChangepoints)
	case p.ChangepointRange <= 0 || p.ChangepointRange > 1:
		return fmt.Errorf("changepoint range must be in (0, 1], got %g", p.ChangepointRange)
	case p.ChangepointPriorScale <= 0 || p.SeasonalityPriorScale <= 0:
		return errors.New("prior scales must be positive")
	}
	return nil
}

// DefaultParams mirrors the defaults of store.Default().
func DefaultParams() Params {
	return ParamsFromConfig(store.Default())
}

func ParamsFromConfig(cfg *store.Config) Params {
	f := cfg.Forecast
	return Params{
		MinHistoryPoints:      f.MinHistoryPoints,
		IntervalWidth:         f.IntervalWidth,
		WeeklySeasonality:     *f.WeeklySeasonality,
		YearlySeasonality:     *f.YearlySeasonality,
		WeeklyFourierOrder:    f.WeeklyFourierOrder,
		YearlyFourierOrder:    f.YearlyFourierOrder,
		NChangepoints:         *f.NChangepoints,
		ChangepointRange:      f.ChangepointRange,
		ChangepointPriorScale: f.ChangepointPriorScale,
		SeasonalityPriorScale: f.SeasonalityPriorScale,
	}
}

// Engine fits a fresh model per call; it holds only immutable parameters and
// is safe for concurrent use.
type Engine struct {
	params Params
}

var _ interfaces.ForecastEngine = (*Engine)(nil)

func New(p Params) *Engine {
	return &Engine{params: p}
}

// Forecast fits history and projects days calendar days past its last date.
// Every fitting or prediction failure is returned as *types.ForecastFittingError.
func (e *Engine) Forecast(ctx context.Context, history *types.HistorySeries, days int) ([]types.ForecastPoint, error) {
	if days < 1 {
		return nil, &types.ValidationError{Field: "days", Reason: "must be at least 1"}
	}
	if history == nil || len(history.Points) == 0 {
		return nil, &types.ForecastFittingError{Err: errors.New("empty history")}
	}
	// Fitting is not interruptible, so cancellation is honoured only up front.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m := newModel(e.params)
	if err := m.fit(history.Points); err != nil {
		return nil, &types.ForecastFittingError{Err: err}
	}
	points, err := m.predict(history.Last().Date, days)
	if err != nil {
		return nil, &types.ForecastFittingError{Err: err}
	}
	return points, nil
}
