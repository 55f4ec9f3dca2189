package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"price-forecast/internal/types"
)

func pricesServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("ticker") == "GONE" {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, "ticker not found")
			return
		}
		var rows []string
		start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		for i := 0; i < 90; i++ {
			rows = append(rows, fmt.Sprintf(`{"time":%q,"close":%g}`,
				start.AddDate(0, 0, i).Format(types.DateLayout), 150+30*float64(i)/89))
		}
		fmt.Fprintf(w, `{"prices":[%s]}`, strings.Join(rows, ","))
	}))
	t.Cleanup(server.Close)
	return server
}

func configFor(t *testing.T, baseURL string) string {
	t.Helper()
	t.Setenv("FORECAST_PROVIDER", "")
	t.Setenv("FINANCIAL_DATASETS_BASE_URL", "")
	t.Setenv("FORECAST_DEFAULT_DAYS", "")
	t.Setenv("FORECAST_MAX_DAYS", "")

	path := filepath.Join(t.TempDir(), "config.yaml")
	body := fmt.Sprintf("financial_datasets:\n  base_url: %s\nforecast:\n  default_days: 5\n", baseURL)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestPredictCommand(t *testing.T) {
	cfg := configFor(t, pricesServer(t).URL)

	out, err := run(t, "predict", "--config", cfg, "--days", "3", "aapl", "msft")
	require.NoError(t, err)

	dec := json.NewDecoder(strings.NewReader(out))
	var results []types.ForecastResult
	for dec.More() {
		var r types.ForecastResult
		require.NoError(t, dec.Decode(&r))
		results = append(results, r)
	}
	require.Len(t, results, 2)
	assert.Equal(t, "AAPL", results[0].Ticker)
	assert.Equal(t, "MSFT", results[1].Ticker)
	require.Len(t, results[0].Forecast, 3)
	assert.Equal(t, "2024-03-31", results[0].Forecast[0].DS)
}

func TestPredictCommand_DefaultDaysFromConfig(t *testing.T) {
	cfg := configFor(t, pricesServer(t).URL)

	out, err := run(t, "predict", "--config", cfg, "AAPL")
	require.NoError(t, err)

	var r types.ForecastResult
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	assert.Len(t, r.Forecast, 5)
}

func TestPredictCommand_ReportsFailures(t *testing.T) {
	cfg := configFor(t, pricesServer(t).URL)

	out, err := run(t, "predict", "--config", cfg, "GONE")
	require.Error(t, err)

	var r types.ForecastResult
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	assert.Empty(t, r.Forecast)
	assert.Equal(t, "price provider error: status 404: ticker not found", r.Error)
}

func TestHistoryCommand(t *testing.T) {
	cfg := configFor(t, pricesServer(t).URL)

	out, err := run(t, "history", "--config", cfg, "--start", "2024-01-01", "--end", "2024-03-30", "aapl")
	require.NoError(t, err)

	var got historyJSON
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "AAPL", got.Ticker)
	assert.Equal(t, "2024-01-01", got.Start)
	assert.Equal(t, "2024-03-30", got.End)
	require.Len(t, got.Points, 90)
	assert.Equal(t, historyRow{Date: "2024-01-01", Close: 150}, got.Points[0])
}

func TestHistoryCommand_BadDate(t *testing.T) {
	_, err := run(t, "history", "--start", "01/02/2024", "AAPL")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad --start")
}
