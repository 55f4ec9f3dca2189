package forecast

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"price-forecast/internal/types"
)

const (
	weeklyPeriod = 7.0
	yearlyPeriod = 365.25

	// ridgeFloor keeps the normal equations positive definite when columns
	// are collinear (e.g. weekly terms on weekday-only data).
	ridgeFloor = 1e-9
	// sigmaFloor bounds the noise estimate used to scale priors, in units of
	// the scaled series.
	sigmaFloor = 1e-3

	secondsPerDay = 86400.0
)

// model is an additive trend + seasonality regression fitted on one series.
// A model is built and used by a single call; it is not safe to share.
type model struct {
	p Params

	start    time.Time
	spanDays float64
	yScale   float64

	changepoints []float64
	weekly       bool
	yearly       bool

	beta  *mat.VecDense
	sigma float64
	z     float64

	// trendCov is (X_tᵀX_t + pen_t)⁻¹ over the trend columns only, with the
	// seasonal coefficients held fixed. Phases absent from history (weekends
	// in trading-day data) must not widen the bands.
	trendCov *mat.SymDense
	// cpRate and cpScale describe future trend changes: cpRate changes per
	// unit of scaled time, each Laplace distributed with scale cpScale.
	cpRate  float64
	cpScale float64
}

func newModel(p Params) *model {
	return &model{p: p}
}

// fit estimates the model coefficients from history.
func (m *model) fit(points []types.PricePoint) error {
	if err := m.p.check(); err != nil {
		return err
	}
	n := len(points)
	if n < m.p.MinHistoryPoints {
		return fmt.Errorf("insufficient history: got %d points, need at least %d", n, m.p.MinHistoryPoints)
	}

	m.start = points[0].Date
	m.spanDays = daysBetween(m.start, points[n-1].Date)
	if m.spanDays <= 0 {
		return errors.New("history spans a single day")
	}

	for _, pt := range points {
		if math.IsNaN(pt.Close) || math.IsInf(pt.Close, 0) {
			return fmt.Errorf("non-finite close on %s", types.FormatDate(pt.Date))
		}
		m.yScale = math.Max(m.yScale, math.Abs(pt.Close))
	}
	if m.yScale == 0 {
		return errors.New("series is identically zero")
	}

	m.weekly = m.p.WeeklySeasonality && m.spanDays >= 2*weeklyPeriod
	m.yearly = m.p.YearlySeasonality && m.spanDays >= 2*yearlyPeriod

	y := mat.NewVecDense(n, nil)
	for i, pt := range points {
		y.SetVec(i, pt.Close/m.yScale)
	}

	// First pass without changepoints gives the noise level used to scale
	// the priors of the second pass.
	x0 := m.design(points, false)
	beta0, _, err := solve(x0, y, m.penalties(x0, sigmaFloor*sigmaFloor, false))
	if err != nil {
		return err
	}
	sigma0 := residualSigma(x0, beta0, y, m.baseColumns())

	m.changepoints = m.placeChangepoints(points)
	x := m.design(points, true)
	noise := math.Max(sigma0, sigmaFloor)
	beta, a, err := solve(x, y, m.penalties(x, noise*noise, true))
	if err != nil {
		return err
	}

	k := m.trendColumns()
	trendCov, err := invertLeading(a, k)
	if err != nil {
		return err
	}

	m.beta = beta
	m.trendCov = trendCov
	m.sigma = residualSigma(x, beta, y, m.baseColumns())
	m.z = distuv.UnitNormal.Quantile(0.5 + m.p.IntervalWidth/2)

	if cps := len(m.changepoints); cps > 0 {
		var sum float64
		for j := 2; j < k; j++ {
			sum += math.Abs(beta.AtVec(j))
		}
		m.cpRate = float64(cps)
		m.cpScale = sum / float64(cps)
	}
	return nil
}

// predict projects one point per calendar day after last.
func (m *model) predict(last time.Time, days int) ([]types.ForecastPoint, error) {
	if m.beta == nil {
		return nil, errors.New("model is not fitted")
	}

	out := make([]types.ForecastPoint, 0, days)
	row := make([]float64, m.beta.Len())
	k := m.trendColumns()
	for h := 1; h <= days; h++ {
		d := last.AddDate(0, 0, h)
		m.features(d, true, row)
		x := mat.NewVecDense(len(row), row)
		xt := mat.NewVecDense(k, row[:k])

		yhat := mat.Dot(x, m.beta)
		spread := mat.Inner(xt, m.trendCov, xt)
		if spread < 0 || math.IsNaN(spread) {
			spread = 0
		}
		sd := math.Sqrt(m.sigma*m.sigma*(1+spread) + m.driftVariance(m.scaledTime(d)))
		if math.IsNaN(yhat) || math.IsInf(yhat, 0) || math.IsNaN(sd) || math.IsInf(sd, 0) {
			return nil, fmt.Errorf("prediction for %s is not finite", types.FormatDate(d))
		}

		out = append(out, types.ForecastPoint{
			Date:     d,
			Estimate: yhat * m.yScale,
			Lower:    (yhat - m.z*sd) * m.yScale,
			Upper:    (yhat + m.z*sd) * m.yScale,
		})
	}
	return out, nil
}

// placeChangepoints spreads trend changepoints over the first
// ChangepointRange share of the history rows.
func (m *model) placeChangepoints(points []types.PricePoint) []float64 {
	histSize := int(math.Floor(float64(len(points)) * m.p.ChangepointRange))
	count := m.p.NChangepoints
	if count > histSize-1 {
		count = histSize - 1
	}
	if count <= 0 {
		return nil
	}

	cps := make([]float64, 0, count)
	for i := 1; i <= count; i++ {
		idx := int(math.Round(float64(i) * float64(histSize-1) / float64(count)))
		cps = append(cps, m.scaledTime(points[idx].Date))
	}
	return cps
}

// driftVariance is the variance added by trend changes after the end of
// history: Poisson arrivals at cpRate, Laplace(0, cpScale) slope changes,
// integrated over (1, t].
func (m *model) driftVariance(t float64) float64 {
	if t <= 1 || m.cpRate == 0 {
		return 0
	}
	h := t - 1
	return 2 * m.cpRate * m.cpScale * m.cpScale * h * h * h / 3
}

func (m *model) scaledTime(d time.Time) float64 {
	return daysBetween(m.start, d) / m.spanDays
}

func (m *model) seasonalColumns() int {
	cols := 0
	if m.weekly {
		cols += 2 * m.p.WeeklyFourierOrder
	}
	if m.yearly {
		cols += 2 * m.p.YearlyFourierOrder
	}
	return cols
}

// trendColumns counts intercept, slope and changepoint columns.
func (m *model) trendColumns() int {
	return 2 + len(m.changepoints)
}

// baseColumns counts trend and seasonal columns, excluding changepoints.
func (m *model) baseColumns() int {
	return 2 + m.seasonalColumns()
}

func (m *model) columns(withChangepoints bool) int {
	cols := m.baseColumns()
	if withChangepoints {
		cols += len(m.changepoints)
	}
	return cols
}

// features writes the regressors for d into row, in the order
// intercept, slope, changepoint deltas, weekly terms, yearly terms.
func (m *model) features(d time.Time, withChangepoints bool, row []float64) {
	t := m.scaledTime(d)
	row[0] = 1
	row[1] = t
	col := 2

	if withChangepoints {
		for _, cp := range m.changepoints {
			row[col] = math.Max(t-cp, 0)
			col++
		}
	}

	// Seasonal phase uses absolute days so it does not depend on the window.
	abs := float64(d.Unix()) / secondsPerDay
	if m.weekly {
		col = fourier(abs, weeklyPeriod, m.p.WeeklyFourierOrder, row, col)
	}
	if m.yearly {
		fourier(abs, yearlyPeriod, m.p.YearlyFourierOrder, row, col)
	}
}

func fourier(t, period float64, order int, row []float64, col int) int {
	for k := 1; k <= order; k++ {
		arg := 2 * math.Pi * float64(k) * t / period
		row[col] = math.Sin(arg)
		row[col+1] = math.Cos(arg)
		col += 2
	}
	return col
}

func (m *model) design(points []types.PricePoint, withChangepoints bool) *mat.Dense {
	cols := m.columns(withChangepoints)
	x := mat.NewDense(len(points), cols, nil)
	row := make([]float64, cols)
	for i, pt := range points {
		m.features(pt.Date, withChangepoints, row)
		x.SetRow(i, row)
	}
	return x
}

// penalties returns the diagonal ridge weights: noise²/scale² for
// changepoint and seasonal coefficients, a small floor for the base trend.
func (m *model) penalties(x *mat.Dense, noiseVar float64, withChangepoints bool) []float64 {
	_, cols := x.Dims()
	pen := make([]float64, cols)
	pen[0], pen[1] = ridgeFloor, ridgeFloor
	col := 2
	if withChangepoints {
		cpPen := noiseVar / (m.p.ChangepointPriorScale * m.p.ChangepointPriorScale)
		for range m.changepoints {
			pen[col] = cpPen + ridgeFloor
			col++
		}
	}
	seasonPen := noiseVar / (m.p.SeasonalityPriorScale * m.p.SeasonalityPriorScale)
	for ; col < cols; col++ {
		pen[col] = seasonPen + ridgeFloor
	}
	return pen
}

// solve minimises |y - Xb|² + Σ pen_j b_j² and returns b together with the
// penalised normal matrix XᵀX + diag(pen).
func solve(x *mat.Dense, y *mat.VecDense, pen []float64) (*mat.VecDense, *mat.SymDense, error) {
	_, cols := x.Dims()

	var a mat.SymDense
	a.SymOuterK(1, x.T())
	for j := 0; j < cols; j++ {
		a.SetSym(j, j, a.At(j, j)+pen[j])
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(&a); !ok {
		return nil, nil, errors.New("normal equations are not positive definite")
	}

	var xty mat.VecDense
	xty.MulVec(x.T(), y)

	var beta mat.VecDense
	if err := chol.SolveVecTo(&beta, &xty); err != nil {
		return nil, nil, fmt.Errorf("solve coefficients: %w", err)
	}

	return &beta, &a, nil
}

// invertLeading inverts the leading k×k block of a.
func invertLeading(a *mat.SymDense, k int) (*mat.SymDense, error) {
	block := mat.NewSymDense(k, nil)
	block.CopySym(a.SliceSym(0, k))

	var chol mat.Cholesky
	if ok := chol.Factorize(block); !ok {
		return nil, errors.New("trend block is not positive definite")
	}
	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		return nil, fmt.Errorf("invert trend block: %w", err)
	}
	return &inv, nil
}

// residualSigma is the residual standard deviation with dof = n - params,
// floored at one degree of freedom.
func residualSigma(x *mat.Dense, beta, y *mat.VecDense, params int) float64 {
	var fitted mat.VecDense
	fitted.MulVec(x, beta)

	n := y.Len()
	var rss float64
	for i := 0; i < n; i++ {
		r := y.AtVec(i) - fitted.AtVec(i)
		rss += r * r
	}
	dof := n - params
	if dof < 1 {
		dof = 1
	}
	return math.Sqrt(rss / float64(dof))
}

func daysBetween(a, b time.Time) float64 {
	return b.Sub(a).Hours() / 24
}
