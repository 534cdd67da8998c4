package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/the-ledger-must-balance/internal/common"
	"github.com/Veraticus/the-ledger-must-balance/internal/importer"
	"github.com/Veraticus/the-ledger-must-balance/internal/ledger"
	"github.com/Veraticus/the-ledger-must-balance/internal/model"
	"github.com/Veraticus/the-ledger-must-balance/internal/price"
	"github.com/spf13/cobra"
)

func priceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "price TICKER...",
		Short: "Print beancount price directives from Alpha Vantage",
		Long: `Fetch the latest price, or the close on --date, for each ticker and print
it as a beancount price directive. Responses are cached in SQLite.

Examples:
  balance price VTI VXUS
  balance price --forex EUR GBP
  balance price --date 2024-03-01 VTI`,
		Args: cobra.MinimumNArgs(1),
		RunE: runPriceCmd,
	}

	cmd.Flags().Bool("forex", false, "treat tickers as currencies")
	cmd.Flags().String("date", "", "historical date (YYYY-MM-DD) instead of the latest price")
	cmd.Flags().Bool("purge", false, "remove expired cache entries first")

	return cmd
}

func runPriceCmd(cmd *cobra.Command, args []string) error {
	forex, _ := cmd.Flags().GetBool("forex")
	rawDate, _ := cmd.Flags().GetString("date")
	purge, _ := cmd.Flags().GetBool("purge")

	var date time.Time
	if rawDate != "" {
		d, err := importer.ParseDate(rawDate)
		if err != nil {
			return common.NewUserError("Invalid --date "+rawDate, err)
		}
		date = d
	}

	ctx := cmd.Context()
	client, cache, settings, err := openPriceClient(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := cache.Close(); err != nil {
			slog.Warn("Failed to close price cache", "error", err)
		}
	}()

	if purge {
		n, err := cache.Purge(ctx)
		if err != nil {
			return err
		}
		slog.Info("Purged expired price cache entries", "count", n)
	}

	var src price.Source = price.NewSecurity(client, settings.Currency)
	if forex {
		src = price.NewForex(client, settings.Currency)
	}
	return runPrice(ctx, cmd.OutOrStdout(), src, args, date)
}

// runPrice prints one directive per ticker. A zero date asks for the
// latest price. Failed tickers are logged and reported together.
func runPrice(ctx context.Context, w io.Writer, src price.Source, tickers []string, date time.Time) error {
	printer := ledger.NewPrinter(w)
	var failed []string

	for _, ticker := range tickers {
		ticker = strings.ToUpper(strings.TrimSpace(ticker))

		var p price.Price
		var err error
		if date.IsZero() {
			p, err = src.LatestPrice(ctx, ticker)
		} else {
			p, err = src.HistoricalPrice(ctx, ticker, date)
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			common.LogError(err, "Failed to fetch price", common.Fields{"ticker": ticker})
			failed = append(failed, ticker)
			continue
		}

		directive := ledger.PriceDirective{
			Date:      p.Time,
			Commodity: ticker,
			Amount:    model.NewAmount(p.Number, p.Currency),
		}
		if err := printer.Prices([]ledger.PriceDirective{directive}); err != nil {
			return err
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("no price for %s", strings.Join(failed, ", "))
	}
	return nil
}
