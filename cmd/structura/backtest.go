package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/newthinker/structura/internal/analysis"
	"github.com/newthinker/structura/internal/backtest"
	"github.com/newthinker/structura/internal/collector"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest [strategy]",
	Short: "Run backtest on a strategy",
	Long:  "Run a strategy against historical data and show performance statistics",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runBacktest,
}

func init() {
	addMarketFlags(backtestCmd)
	rootCmd.AddCommand(backtestCmd)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	name := cfg.Strategy.Name
	if len(args) == 1 {
		name = args[0]
	}

	store, err := newStore(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	loader := collector.NewLoader(newProvider(cfg, log), store, log)
	bt := backtest.New(loader, newEngine(log), log)
	req := backtestTemplate(cfg)
	req.Strategy = name
	result, err := bt.Run(ctx, req)
	if err != nil {
		return err
	}

	fmt.Println("=== STRUCTURA Backtest ===")
	fmt.Printf("Strategy: %s\n", result.Strategy)
	fmt.Printf("Symbol:   %s %s\n", result.Symbol, result.Interval)
	fmt.Printf("Period:   %s to %s (%d bars)\n", formatTime(result.StartTime), formatTime(result.EndTime), result.Bars)
	fmt.Println()

	printSetups(os.Stdout, result.Strategy, &analysis.Result{Setups: result.Setups, Report: result.Report})
	return nil
}

func printReport(out io.Writer, r backtest.Report) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Trades:\t%d (%d closed, %d open)\n", r.TotalTrades, r.ClosedTrades, r.OpenTrades)
	fmt.Fprintf(w, "Wins / Losses / BE:\t%d / %d / %d\n", r.Wins, r.Losses, r.BreakEvens)
	fmt.Fprintf(w, "Win rate:\t%.2f%%\n", r.WinRate)
	fmt.Fprintf(w, "Profit factor:\t%.2f\n", r.ProfitFactor)
	fmt.Fprintf(w, "Realized PnL:\t%.2f\n", r.RealizedPnL)
	fmt.Fprintf(w, "Unrealized PnL:\t%.2f\n", r.UnrealizedPnL)
	fmt.Fprintf(w, "Fees:\t%.2f\n", r.Fees)
	fmt.Fprintf(w, "Equity:\t%.2f -> %.2f (current %.2f)\n", r.InitialBalance, r.FinalEquity, r.CurrentEquity)
	fmt.Fprintf(w, "Max drawdown:\t%.2f%%\n", r.MaxDrawdown)
	fmt.Fprintf(w, "Sharpe / Sortino:\t%.2f / %.2f\n", r.Sharpe, r.Sortino)
	fmt.Fprintf(w, "Avg / max duration:\t%.1fh / %.1fh\n", r.AvgDuration/3600, float64(r.MaxDuration)/3600)
	w.Flush()
}
