package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/newthinker/structura/internal/api"
	"github.com/newthinker/structura/internal/app"
	"github.com/newthinker/structura/internal/backtest"
	"github.com/newthinker/structura/internal/config"
	"github.com/newthinker/structura/internal/metrics"
	"github.com/newthinker/structura/internal/notifier/telegram"
	"github.com/newthinker/structura/internal/notifier/webhook"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the live stream and re-run analysis on every new bar",
	RunE:  runWatch,
}

func init() {
	addMarketFlags(watchCmd)
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	store, err := newStore(cfg)
	if err != nil {
		return err
	}

	a := app.New(cfg, newProvider(cfg, log), log)
	a.SetStore(store)
	registerStrategies(a.RegisterStrategy)
	if err := registerNotifiers(a, cfg); err != nil {
		return err
	}

	var reg *metrics.Registry
	if cfg.Metrics.Enabled {
		reg = metrics.NewRegistry()
		a.SetMetrics(reg)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := a.Start(gctx)
		if app.IsShutdown(err) {
			return nil
		}
		return err
	})

	if cfg.Server.Enabled {
		srv, err := api.NewServer(api.Config{
			Addr:        cfg.Server.Addr,
			APIKey:      cfg.Server.APIKey,
			MetricsPath: cfg.Metrics.Path,
			Version:     version,
		}, api.Dependencies{
			App:        a,
			Strategies: a.Strategies(),
			Backtest:   backtestTemplate(cfg),
			Metrics:    reg,
		}, log)
		if err != nil {
			return err
		}
		g.Go(srv.Start)
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	} else if reg != nil {
		log.Warn("metrics enabled but server.enabled is false; metrics are not served")
	}

	if err := g.Wait(); err != nil {
		log.Error("watch stopped", zap.Error(err))
		return err
	}
	log.Info("watch stopped")
	return nil
}

func registerNotifiers(a *app.App, cfg *config.Config) error {
	if wh := cfg.Notifiers.Webhook; wh.Enabled {
		if err := a.RegisterNotifier(webhook.New(wh.URL, wh.Headers)); err != nil {
			return err
		}
	}
	if tg := cfg.Notifiers.Telegram; tg.Enabled {
		if err := a.RegisterNotifier(telegram.New(tg.BotToken, tg.ChatID)); err != nil {
			return err
		}
	}
	return nil
}

// backtestTemplate fills every backtest job field except the strategy.
func backtestTemplate(cfg *config.Config) backtest.Request {
	return backtest.Request{
		Symbol:            cfg.Market.Symbol,
		Interval:          cfg.Market.Interval,
		Target:            cfg.Market.HistoryTarget,
		Zones:             cfg.ZoneParams(),
		Lines:             cfg.LineParams(),
		UseVolumeAnalysis: cfg.Strategy.UseVolumeAnalysis,
		PnL:               cfg.PnLConfig(),
	}
}
