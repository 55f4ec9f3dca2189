package history

import (
	"fmt"
	"os"

	"price-forecast/internal/history/financialdatasets"
	"price-forecast/internal/history/historyobs"
	"price-forecast/internal/history/kite"
	"price-forecast/internal/interfaces"
	"price-forecast/internal/store"
)

// New builds the configured price provider, wrapped with observability
func New(cfg *store.Config) (interfaces.HistoryFetcher, error) {
	var f interfaces.HistoryFetcher

	switch cfg.Provider {
	case store.ProviderFinancialDatasets:
		f = financialdatasets.New(financialdatasets.Params{
			BaseURL: cfg.FinancialDatasets.BaseURL,
			APIKey:  cfg.APIKey(),
			Limit:   cfg.FinancialDatasets.Limit,
			Timeout: cfg.FetchTimeout(),
		})
	case store.ProviderKite:
		f = kite.New(kite.Params{
			APIKey:      os.Getenv(cfg.Kite.APIKeyEnv),
			AccessToken: os.Getenv(cfg.Kite.AccessTokenEnv),
			Exchange:    cfg.Kite.Exchange,
		})
	default:
		return nil, fmt.Errorf("unknown price provider %q", cfg.Provider)
	}

	return historyobs.Wrap(f), nil
}
