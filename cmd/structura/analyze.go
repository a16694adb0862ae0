package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/structura/internal/analysis"
	"github.com/newthinker/structura/internal/app"
	"github.com/newthinker/structura/internal/collector"
	"github.com/newthinker/structura/internal/replay"
	"github.com/newthinker/structura/internal/zone"
)

var (
	analyzeJSON     bool
	analyzeStrategy string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run one analysis pass over recent history",
	Long:  "Load history, detect zones, trendlines, regime and channel, and run the configured strategy once",
	RunE:  runAnalyze,
}

func init() {
	addMarketFlags(analyzeCmd)
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "print the result and replay records as JSON")
	analyzeCmd.Flags().StringVar(&analyzeStrategy, "strategy", "", "strategy to run (overrides strategy.name)")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()
	if analyzeStrategy != "" {
		cfg.Strategy.Name = analyzeStrategy
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
	bars, err := loader.LoadHistory(ctx, cfg.Market.Symbol, cfg.Market.Interval, cfg.Market.HistoryTarget)
	if err != nil {
		return err
	}
	log.Debug("history loaded", zap.Int("bars", len(bars)))

	res, err := analysis.NewAnalyzer(newEngine(log)).Recompute(ctx, bars, app.AnalysisConfig(cfg))
	if err != nil {
		return err
	}

	if analyzeJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			*analysis.Result
			Replay []replay.Record `json:"replay"`
		}{res, replay.Build(res.Setups)})
	}
	printAnalysis(os.Stdout, res)
	return nil
}

func printAnalysis(out io.Writer, res *analysis.Result) {
	fmt.Fprintln(out, "=== STRUCTURA Analysis ===")
	fmt.Fprintf(out, "Symbol:   %s %s\n", res.Symbol, res.Interval)
	fmt.Fprintf(out, "Bars:     %d (%s to %s)\n", res.Bars, formatTime(res.Start), formatTime(res.End))
	fmt.Fprintf(out, "Regime:   %s (H=%.3f)\n", res.Hurst.Regime, res.Hurst.Exponent)
	if ch := res.Channel; ch != nil {
		fmt.Fprintf(out, "Channel:  mid %.4f -> %.4f, band ±%.4f\n", ch.Mid1, ch.Mid2, ch.Upper2-ch.Mid2)
	}
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ZONE\tACTIVE\tMITIGATED")
	counts := analysis.CountZones(res.Zones)
	for _, label := range []zone.Label{zone.LabelFVG, zone.LabelOB} {
		fmt.Fprintf(w, "%s\t%d\t%d\n", label, counts[label][zone.StatusActive], counts[label][zone.StatusMitigated])
	}
	w.Flush()
	fmt.Fprintln(out)

	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LINE\tSTATUS\tFROM\tTO\tTOUCHES\tSCORE")
	for _, l := range res.ActiveLines() {
		fmt.Fprintf(w, "%s\t%s\t%.4f\t%.4f\t%d\t%.2f\n", l.Type, l.Status, l.P1, l.P2, l.Touches, l.Score)
	}
	w.Flush()

	if res.Strategy != "" {
		fmt.Fprintln(out)
		printSetups(out, res.Strategy, res)
	}
}

func printSetups(out io.Writer, strategy string, res *analysis.Result) {
	fmt.Fprintf(out, "Strategy: %s (%d setups)\n", strategy, len(res.Setups))
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSIDE\tSTATUS\tENTRY\tSTOP\tTARGET\tR\tSIGNAL")
	for _, s := range res.Setups {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.4f\t%.4f\t%.4f\t%.2f\t%s\n",
			s.ID, s.Side, s.Status, s.Entry, s.StopLoss, s.TakeProfit, s.PnLR, formatTime(s.SignalTime))
	}
	w.Flush()
	fmt.Fprintln(out)
	printReport(out, res.Report)
}

func formatTime(unix int64) string {
	if unix == 0 {
		return "-"
	}
	return time.Unix(unix, 0).UTC().Format("2006-01-02 15:04")
}
