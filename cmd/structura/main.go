package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/structura/internal/collector/binance"
	"github.com/newthinker/structura/internal/config"
	"github.com/newthinker/structura/internal/logger"
	"github.com/newthinker/structura/internal/storage/archive"
	"github.com/newthinker/structura/internal/strategy"
	"github.com/newthinker/structura/internal/strategy/liquidity"
	"github.com/newthinker/structura/internal/strategy/smc"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "structura",
	Short: "STRUCTURA - market structure analysis and backtesting",
	Long: `STRUCTURA detects fair value gaps, order blocks and trendlines on
OHLCV bars, simulates the trades they imply and reports their performance.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug mode")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// market overrides shared by the commands that load history.
var (
	flagSymbol   string
	flagInterval string
	flagBars     int
)

func addMarketFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagSymbol, "symbol", "", "symbol to load (overrides market.symbol)")
	cmd.Flags().StringVar(&flagInterval, "interval", "", "bar interval (overrides market.interval)")
	cmd.Flags().IntVar(&flagBars, "bars", 0, "bars of history (overrides market.history_target)")
}

// setup loads and validates the configuration and builds the logger.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if flagSymbol != "" {
		cfg.Market.Symbol = strings.ToUpper(flagSymbol)
	}
	if flagInterval != "" {
		cfg.Market.Interval = flagInterval
	}
	if flagBars > 0 {
		cfg.Market.HistoryTarget = flagBars
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("config validation failed: %w", err)
	}

	opts := logger.Options{Development: debug, Level: cfg.Log.Level, Encoding: cfg.Log.Encoding}
	if debug {
		opts.Level = "debug"
	}
	log, err := logger.Build(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("building logger: %w", err)
	}
	if cfgFile == "" {
		log.Debug("no config file specified, using defaults and environment")
	}
	return cfg, log, nil
}

func newProvider(cfg *config.Config, log *zap.Logger) *binance.Binance {
	return binance.New(binance.Config{
		RestURL:   cfg.Market.RestURL,
		StreamURL: cfg.Market.StreamURL,
		Limit:     cfg.Market.LimitPerRequest,
	}, log)
}

// newStore opens the bar archive, or returns nil when caching is off.
func newStore(cfg *config.Config) (*archive.Store, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}
	switch cfg.Cache.Type {
	case "s3":
		s, err := archive.NewS3(archive.S3Config(cfg.Cache.S3))
		if err != nil {
			return nil, fmt.Errorf("opening s3 archive: %w", err)
		}
		return archive.NewStore(s), nil
	default:
		fs, err := archive.NewLocalFS(cfg.Cache.Path)
		if err != nil {
			return nil, fmt.Errorf("opening archive at %s: %w", cfg.Cache.Path, err)
		}
		return archive.NewStore(fs), nil
	}
}

// registerStrategies passes every built-in strategy to register.
func registerStrategies(register func(strategy.Strategy)) {
	register(smc.New())
	for _, t := range liquidity.All() {
		register(t)
	}
}

func newEngine(log *zap.Logger) *strategy.Engine {
	e := strategy.NewEngine(log)
	registerStrategies(e.Register)
	return e
}
