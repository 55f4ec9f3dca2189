package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"price-forecast/internal/forecast"
	"price-forecast/internal/service"
	"price-forecast/internal/trace"
	"price-forecast/internal/types"
)

type rootOptions struct {
	configPath string
}

func main() {
	if err := initializeSystem(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	_ = trace.Shutdown(shutdownCtx)
	cancel()

	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "forecaster",
		Short:        "Forecast daily closing prices from recent history",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "config.yaml", "path to the YAML config (optional)")

	cmd.AddCommand(
		newPredictCmd(opts),
		newHistoryCmd(opts),
	)
	return cmd
}

func buildService(cmd *cobra.Command, opts *rootOptions) (*service.Service, int, error) {
	ctx := cmd.Context()
	cfg, err := loadConfig(ctx, opts.configPath)
	if err != nil {
		return nil, 0, err
	}
	svc, err := initializeService(ctx, cfg)
	if err != nil {
		return nil, 0, err
	}
	return svc, cfg.Forecast.DefaultDays, nil
}

func newPredictCmd(opts *rootOptions) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "predict TICKER...",
		Short: "Print a JSON forecast for each ticker",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, defaultDays, err := buildService(cmd, opts)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("days") {
				days = defaultDays
			}

			results := svc.ForecastMany(cmd.Context(), args, days)
			if err := writeResults(cmd.OutOrStdout(), results); err != nil {
				return err
			}
			for _, r := range results {
				if !r.OK() {
					return fmt.Errorf("%s: %s", r.Ticker, r.Error)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "number of calendar days to forecast (default from config)")
	return cmd
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var startStr, endStr string

	cmd := &cobra.Command{
		Use:   "history TICKER",
		Short: "Print the daily closes the forecaster would fit on",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var start, end time.Time
			var err error
			if startStr != "" {
				if start, err = time.Parse(types.DateLayout, startStr); err != nil {
					return fmt.Errorf("bad --start: %w", err)
				}
			}
			if endStr != "" {
				if end, err = time.Parse(types.DateLayout, endStr); err != nil {
					return fmt.Errorf("bad --end: %w", err)
				}
			}

			svc, _, err := buildService(cmd, opts)
			if err != nil {
				return err
			}
			series, err := svc.History(cmd.Context(), args[0], start, end)
			if err != nil {
				return errors.New(forecast.ErrorMessage(err))
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(historyOutput(series))
		},
	}
	cmd.Flags().StringVar(&startStr, "start", "", "first date, YYYY-MM-DD (default: lookback before --end)")
	cmd.Flags().StringVar(&endStr, "end", "", "last date, YYYY-MM-DD (default: today)")
	return cmd
}

func writeResults(w io.Writer, results []types.ForecastResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	for _, r := range results {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

type historyRow struct {
	Date  string  `json:"date"`
	Close float64 `json:"close"`
}

type historyJSON struct {
	Ticker string       `json:"ticker"`
	Start  string       `json:"start_date"`
	End    string       `json:"end_date"`
	Points []historyRow `json:"points"`
}

func historyOutput(s *types.HistorySeries) historyJSON {
	out := historyJSON{
		Ticker: s.Ticker,
		Start:  types.FormatDate(s.Start),
		End:    types.FormatDate(s.End),
		Points: make([]historyRow, 0, len(s.Points)),
	}
	for _, p := range s.Points {
		out.Points = append(out.Points, historyRow{Date: types.FormatDate(p.Date), Close: p.Close})
	}
	return out
}
