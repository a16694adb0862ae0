package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/newthinker/structura/internal/backtest"
	"github.com/newthinker/structura/internal/collector"
	"github.com/newthinker/structura/internal/strategy"
)

var (
	optimizeGrid bool
	optimizeTop  int
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Compare liquidity-trap modes or search take-profit/break-even settings",
	RunE:  runOptimize,
}

func init() {
	addMarketFlags(optimizeCmd)
	optimizeCmd.Flags().BoolVar(&optimizeGrid, "grid", false, "search the take-profit and break-even grid instead of sweeping modes")
	optimizeCmd.Flags().IntVar(&optimizeTop, "top", 10, "grid rows to print")
	rootCmd.AddCommand(optimizeCmd)
}

func runOptimize(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	store, err := newStore(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	loader := collector.NewLoader(newProvider(cfg, log), store, log)
	bars, err := loader.LoadHistory(ctx, cfg.Market.Symbol, cfg.Market.Interval, cfg.Market.HistoryTarget)
	if err != nil {
		return err
	}

	actx := &strategy.AnalysisContext{
		Symbol:            cfg.Market.Symbol,
		Interval:          cfg.Market.Interval,
		Bars:              bars,
		ZoneParams:        cfg.ZoneParams(),
		LineParams:        cfg.LineParams(),
		UseVolumeAnalysis: cfg.Strategy.UseVolumeAnalysis,
	}

	fmt.Println("=== STRUCTURA Optimizer ===")
	fmt.Printf("Symbol:   %s %s (%d bars)\n", cfg.Market.Symbol, cfg.Market.Interval, len(bars))
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	if optimizeGrid {
		results, err := backtest.Grid(ctx, actx, nil, nil)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "TP (R)\tBE (R)\tTRADES\tWINS\tLOSSES\tBE\tWIN RATE\tPF\tTOTAL R")
		for i, r := range results {
			if optimizeTop > 0 && i >= optimizeTop {
				break
			}
			be := "off"
			if r.BreakEvenR > 0 {
				be = fmt.Sprintf("%g", r.BreakEvenR)
			}
			fmt.Fprintf(w, "%g\t%s\t%d\t%d\t%d\t%d\t%.1f%%\t%.2f\t%.2f\n",
				r.TakeProfitR, be, r.Total, r.Wins, r.Losses, r.BreakEvens, r.WinRate, r.ProfitFactor, r.TotalPnLR)
		}
		return nil
	}

	results, err := backtest.SweepModes(ctx, actx)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "STRATEGY\tSETTINGS\tTRADES\tWINS\tLOSSES\tBE\tWIN RATE\tPF\tTOTAL R")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%.1f%%\t%.2f\t%.2f\n",
			r.Strategy, r.Label, r.Total, r.Wins, r.Losses, r.BreakEvens, r.WinRate, r.ProfitFactor, r.TotalPnLR)
	}
	return nil
}
