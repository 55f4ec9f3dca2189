package store

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ProviderFinancialDatasets = "FINANCIAL_DATASETS"
	ProviderKite              = "KITE"
)

type Config struct {
	Provider          string `yaml:"provider"`
	FinancialDatasets struct {
		BaseURL   string `yaml:"base_url"`
		APIKeyEnv string `yaml:"api_key_env"`
		Limit     int    `yaml:"limit"`
	} `yaml:"financial_datasets"`
	Kite struct {
		APIKeyEnv      string `yaml:"api_key_env"`
		AccessTokenEnv string `yaml:"access_token_env"`
		Exchange       string `yaml:"exchange"`
	} `yaml:"kite"`
	Fetch struct {
		TimeoutSeconds int `yaml:"timeout_seconds"`
		LookbackDays   int `yaml:"lookback_days"`
	} `yaml:"fetch"`
	Forecast struct {
		DefaultDays           int     `yaml:"default_days"`
		MaxDays               int     `yaml:"max_days"`
		MinHistoryPoints      int     `yaml:"min_history_points"`
		IntervalWidth         float64 `yaml:"interval_width"`
		WeeklySeasonality     *bool   `yaml:"weekly_seasonality"`
		YearlySeasonality     *bool   `yaml:"yearly_seasonality"`
		WeeklyFourierOrder    int     `yaml:"weekly_fourier_order"`
		YearlyFourierOrder    int     `yaml:"yearly_fourier_order"`
		NChangepoints         *int    `yaml:"n_changepoints"`
		ChangepointRange      float64 `yaml:"changepoint_range"`
		ChangepointPriorScale float64 `yaml:"changepoint_prior_scale"`
		SeasonalityPriorScale float64 `yaml:"seasonality_prior_scale"`
	} `yaml:"forecast"`
	Output struct {
		RoundPlaces *int `yaml:"round_places"`
	} `yaml:"output"`
}

// Default returns a config with every default applied, as if loaded from an
// empty file.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// FetchTimeout is the per-request bound on the provider call
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// APIKey resolves the financial datasets key from the configured env var
func (c *Config) APIKey() string {
	return os.Getenv(c.FinancialDatasets.APIKeyEnv)
}

func (c *Config) applyDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderFinancialDatasets
	}
	if c.FinancialDatasets.BaseURL == "" {
		c.FinancialDatasets.BaseURL = "https://api.financialdatasets.ai"
	}
	if c.FinancialDatasets.APIKeyEnv == "" {
		c.FinancialDatasets.APIKeyEnv = "FINANCIAL_DATASETS_API_KEY"
	}
	if c.FinancialDatasets.Limit == 0 {
		c.FinancialDatasets.Limit = 5000
	}
	if c.Kite.APIKeyEnv == "" {
		c.Kite.APIKeyEnv = "KITE_API_KEY"
	}
	if c.Kite.AccessTokenEnv == "" {
		c.Kite.AccessTokenEnv = "KITE_ACCESS_TOKEN"
	}
	if c.Kite.Exchange == "" {
		c.Kite.Exchange = "NSE"
	}
	if c.Fetch.TimeoutSeconds == 0 {
		c.Fetch.TimeoutSeconds = 30
	}
	if c.Fetch.LookbackDays == 0 {
		c.Fetch.LookbackDays = 180
	}

	f := &c.Forecast
	if f.DefaultDays == 0 {
		f.DefaultDays = 7
	}
	if f.MaxDays == 0 {
		f.MaxDays = 365
	}
	if f.MinHistoryPoints == 0 {
		f.MinHistoryPoints = 3
	}
	if f.IntervalWidth == 0 {
		f.IntervalWidth = 0.8
	}
	if f.WeeklySeasonality == nil {
		f.WeeklySeasonality = boolPtr(true)
	}
	if f.YearlySeasonality == nil {
		f.YearlySeasonality = boolPtr(true)
	}
	if f.WeeklyFourierOrder == 0 {
		f.WeeklyFourierOrder = 3
	}
	if f.YearlyFourierOrder == 0 {
		f.YearlyFourierOrder = 10
	}
	if f.NChangepoints == nil {
		f.NChangepoints = intPtr(25)
	}
	if f.ChangepointRange == 0 {
		f.ChangepointRange = 0.8
	}
	if f.ChangepointPriorScale == 0 {
		f.ChangepointPriorScale = 0.05
	}
	if f.SeasonalityPriorScale == 0 {
		f.SeasonalityPriorScale = 10
	}
	if c.Output.RoundPlaces == nil {
		c.Output.RoundPlaces = intPtr(4)
	}
}

// applyEnv lets deployments override the file without editing it
func (c *Config) applyEnv() error {
	if v := os.Getenv("FORECAST_PROVIDER"); v != "" {
		c.Provider = v
	}
	if v := os.Getenv("FINANCIAL_DATASETS_BASE_URL"); v != "" {
		c.FinancialDatasets.BaseURL = v
	}
	if v := os.Getenv("KITE_EXCHANGE"); v != "" {
		c.Kite.Exchange = v
	}
	ints := []struct {
		env string
		dst *int
	}{
		{"FORECAST_FETCH_TIMEOUT_SECONDS", &c.Fetch.TimeoutSeconds},
		{"FORECAST_LOOKBACK_DAYS", &c.Fetch.LookbackDays},
		{"FORECAST_DEFAULT_DAYS", &c.Forecast.DefaultDays},
		{"FORECAST_MAX_DAYS", &c.Forecast.MaxDays},
		{"FORECAST_MIN_HISTORY_POINTS", &c.Forecast.MinHistoryPoints},
	}
	for _, e := range ints {
		v := os.Getenv(e.env)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", e.env, err)
		}
		*e.dst = n
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Provider != ProviderFinancialDatasets && c.Provider != ProviderKite {
		return fmt.Errorf("invalid provider '%s': must be '%s' or '%s'", c.Provider, ProviderFinancialDatasets, ProviderKite)
	}
	if c.FinancialDatasets.Limit <= 0 {
		return fmt.Errorf("financial_datasets.limit must be positive, got %d", c.FinancialDatasets.Limit)
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be positive, got %d", c.Fetch.TimeoutSeconds)
	}
	if c.Fetch.LookbackDays <= 0 {
		return fmt.Errorf("fetch.lookback_days must be positive, got %d", c.Fetch.LookbackDays)
	}
	f := c.Forecast
	if f.MaxDays < 1 {
		return fmt.Errorf("forecast.max_days must be at least 1, got %d", f.MaxDays)
	}
	if f.DefaultDays < 1 || f.DefaultDays > f.MaxDays {
		return fmt.Errorf("forecast.default_days must be between 1 and %d, got %d", f.MaxDays, f.DefaultDays)
	}
	if f.MinHistoryPoints < 2 {
		return fmt.Errorf("forecast.min_history_points must be at least 2, got %d", f.MinHistoryPoints)
	}
	if f.IntervalWidth <= 0 || f.IntervalWidth >= 1 {
		return fmt.Errorf("forecast.interval_width must be in (0, 1), got %.2f", f.IntervalWidth)
	}
	if f.WeeklyFourierOrder < 1 || f.YearlyFourierOrder < 1 {
		return fmt.Errorf("forecast fourier orders must be at least 1, got weekly=%d yearly=%d", f.WeeklyFourierOrder, f.YearlyFourierOrder)
	}
	if *f.NChangepoints < 0 {
		return fmt.Errorf("forecast.n_changepoints cannot be negative, got %d", *f.NChangepoints)
	}
	if f.ChangepointRange <= 0 || f.ChangepointRange > 1 {
		return fmt.Errorf("forecast.changepoint_range must be in (0, 1], got %.2f", f.ChangepointRange)
	}
	if f.ChangepointPriorScale <= 0 || f.SeasonalityPriorScale <= 0 {
		return fmt.Errorf("forecast prior scales must be positive")
	}
	if *c.Output.RoundPlaces < 0 {
		return fmt.Errorf("output.round_places cannot be negative, got %d", *c.Output.RoundPlaces)
	}
	return nil
}

// LoadConfig reads path (a missing file means all defaults), then applies
// environment overrides and validates.
func LoadConfig(path string) (*Config, error) {
	var c Config

	b, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(b) > 0 {
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := c.applyEnv(); err != nil {
		return nil, fmt.Errorf("config env override: %w", err)
	}
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &c, nil
}

func boolPtr(b bool) *bool { return &b }

func intPtr(n int) *int { return &n }
