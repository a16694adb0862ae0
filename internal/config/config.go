package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/newthinker/structura/internal/backtest"
	"github.com/newthinker/structura/internal/core"
	"github.com/newthinker/structura/internal/indicator"
	"github.com/newthinker/structura/internal/trendline"
	"github.com/newthinker/structura/internal/zone"
)

type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	Market     MarketConfig     `mapstructure:"market"`
	Zones      ZonesConfig      `mapstructure:"zones"`
	Trendlines TrendlinesConfig `mapstructure:"trendlines"`
	Regression RegressionConfig `mapstructure:"regression"`
	Strategy   StrategyConfig   `mapstructure:"strategy"`
	PnL        PnLConfig        `mapstructure:"pnl"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Server     ServerConfig     `mapstructure:"server"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Notifiers  NotifiersConfig  `mapstructure:"notifiers"`
}

type LogConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"` // "json" or "console"
}

// MarketConfig selects the instrument and the exchange endpoints.
type MarketConfig struct {
	Symbol          string `mapstructure:"symbol"`
	Interval        string `mapstructure:"interval"`
	HistoryTarget   int    `mapstructure:"history_target"`
	LimitPerRequest int    `mapstructure:"limit_per_request"`
	RestURL         string `mapstructure:"rest_url"`
	StreamURL       string `mapstructure:"stream_url"`
}

type ZonesConfig struct {
	Sensitivity   float64 `mapstructure:"sensitivity"`
	HistoryWindow int     `mapstructure:"history_window"`
	RiskReward    float64 `mapstructure:"risk_reward"`
}

type TrendlinesConfig struct {
	FractalStrength int     `mapstructure:"fractal_strength"`
	AngleFilter     bool    `mapstructure:"angle_filter"`
	AngleMax        float64 `mapstructure:"angle_max"`
	Tolerance       float64 `mapstructure:"tolerance"`
	StrictMode      bool    `mapstructure:"strict_mode"`
	ShowHistory     bool    `mapstructure:"show_history"`
}

type RegressionConfig struct {
	Period  int     `mapstructure:"period"`
	StdMult float64 `mapstructure:"std_mult"`
}

type StrategyConfig struct {
	Name              string `mapstructure:"name"`
	UseVolumeAnalysis bool   `mapstructure:"use_volume_analysis"`
}

type PnLConfig struct {
	InitialBalance float64 `mapstructure:"initial_balance"`
	IncludeFees    bool    `mapstructure:"include_fees"`
	FeeMaker       float64 `mapstructure:"fee_maker"`
	FeeTaker       float64 `mapstructure:"fee_taker"`
}

// CacheConfig configures the bar-batch archive.
type CacheConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Type    string   `mapstructure:"type"` // "localfs" or "s3"
	Path    string   `mapstructure:"path"` // For localfs
	S3      S3Config `mapstructure:"s3"`   // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// ServerConfig configures the HTTP status API started by watch.
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	APIKey  string `mapstructure:"api_key"` // empty disables auth
}

// MetricsConfig holds metrics configuration. The endpoint is mounted on
// the status server.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type NotifiersConfig struct {
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

type WebhookConfig struct {
	Enabled bool              `mapstructure:"enabled"`
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
}

type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

// Load reads configuration from file. An empty path loads the defaults
// with environment overrides only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Defaults())

	// Support environment variable overrides
	v.SetEnvPrefix("STRUCTURA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.encoding", d.Log.Encoding)

	v.SetDefault("market.symbol", d.Market.Symbol)
	v.SetDefault("market.interval", d.Market.Interval)
	v.SetDefault("market.history_target", d.Market.HistoryTarget)
	v.SetDefault("market.limit_per_request", d.Market.LimitPerRequest)
	v.SetDefault("market.rest_url", d.Market.RestURL)
	v.SetDefault("market.stream_url", d.Market.StreamURL)

	v.SetDefault("zones.sensitivity", d.Zones.Sensitivity)
	v.SetDefault("zones.history_window", d.Zones.HistoryWindow)
	v.SetDefault("zones.risk_reward", d.Zones.RiskReward)

	v.SetDefault("trendlines.fractal_strength", d.Trendlines.FractalStrength)
	v.SetDefault("trendlines.angle_filter", d.Trendlines.AngleFilter)
	v.SetDefault("trendlines.angle_max", d.Trendlines.AngleMax)
	v.SetDefault("trendlines.tolerance", d.Trendlines.Tolerance)
	v.SetDefault("trendlines.strict_mode", d.Trendlines.StrictMode)
	v.SetDefault("trendlines.show_history", d.Trendlines.ShowHistory)

	v.SetDefault("regression.period", d.Regression.Period)
	v.SetDefault("regression.std_mult", d.Regression.StdMult)

	v.SetDefault("strategy.name", d.Strategy.Name)
	v.SetDefault("strategy.use_volume_analysis", d.Strategy.UseVolumeAnalysis)

	v.SetDefault("pnl.initial_balance", d.PnL.InitialBalance)
	v.SetDefault("pnl.include_fees", d.PnL.IncludeFees)
	v.SetDefault("pnl.fee_maker", d.PnL.FeeMaker)
	v.SetDefault("pnl.fee_taker", d.PnL.FeeTaker)

	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.type", d.Cache.Type)
	v.SetDefault("cache.path", d.Cache.Path)

	v.SetDefault("server.enabled", d.Server.Enabled)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.api_key", d.Server.APIKey)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.path", d.Metrics.Path)

	v.SetDefault("notifiers.webhook.enabled", d.Notifiers.Webhook.Enabled)
	v.SetDefault("notifiers.telegram.enabled", d.Notifiers.Telegram.Enabled)
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	zp := zone.DefaultParams()
	lp := trendline.DefaultParams()
	pnl := backtest.DefaultPnLConfig()

	return &Config{
		Log: LogConfig{
			Level:    "info",
			Encoding: "json",
		},
		Market: MarketConfig{
			Symbol:          "BTCUSDT",
			Interval:        "15m",
			HistoryTarget:   30000,
			LimitPerRequest: 1000,
			RestURL:         "https://api.binance.com",
			StreamURL:       "wss://stream.binance.com:9443/ws",
		},
		Zones: ZonesConfig{
			Sensitivity:   zp.Sensitivity,
			HistoryWindow: zp.HistoryWindow,
			RiskReward:    zp.RiskReward,
		},
		Trendlines: TrendlinesConfig{
			FractalStrength: lp.FractalStrength,
			AngleFilter:     lp.AngleFilter,
			AngleMax:        lp.AngleMax,
			Tolerance:       lp.Tolerance,
			StrictMode:      lp.StrictMode,
			ShowHistory:     lp.ShowHistory,
		},
		Regression: RegressionConfig{
			Period:  200,
			StdMult: 2.0,
		},
		Strategy: StrategyConfig{
			Name: "smc",
		},
		PnL: PnLConfig{
			InitialBalance: pnl.InitialBalance,
			IncludeFees:    pnl.IncludeFees,
			FeeMaker:       pnl.FeeMaker,
			FeeTaker:       pnl.FeeTaker,
		},
		Cache: CacheConfig{
			Type: "localfs",
			Path: "./data/archive",
		},
		Server: ServerConfig{
			Enabled: false,
			Addr:    ":9090",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Path:    "/metrics",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Market.Symbol == "" {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("market.symbol is required"))
	}
	if _, ok := core.IntervalSeconds(c.Market.Interval); !ok {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("market.interval %q is not a valid interval", c.Market.Interval))
	}
	if c.Market.HistoryTarget < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("market.history_target must be positive, got %d", c.Market.HistoryTarget))
	}
	if c.Market.LimitPerRequest < 1 || c.Market.LimitPerRequest > 1000 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("market.limit_per_request must be between 1 and 1000, got %d", c.Market.LimitPerRequest))
	}

	if c.Zones.Sensitivity < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("zones.sensitivity cannot be negative, got %f", c.Zones.Sensitivity))
	}
	if c.Zones.RiskReward <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("zones.risk_reward must be positive, got %f", c.Zones.RiskReward))
	}

	if c.Trendlines.FractalStrength < 2 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("trendlines.fractal_strength must be at least 2, got %d", c.Trendlines.FractalStrength))
	}
	if c.Trendlines.Tolerance <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("trendlines.tolerance must be positive, got %f", c.Trendlines.Tolerance))
	}

	if c.Regression.Period < 2 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("regression.period must be at least 2, got %d", c.Regression.Period))
	}

	if c.PnL.InitialBalance <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("pnl.initial_balance must be positive, got %f", c.PnL.InitialBalance))
	}
	if c.PnL.FeeMaker < 0 || c.PnL.FeeTaker < 0 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("pnl fees cannot be negative"))
	}

	if c.Cache.Enabled {
		switch c.Cache.Type {
		case "localfs":
			if c.Cache.Path == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("cache.path required when cache type is localfs"))
			}
		case "s3":
			if c.Cache.S3.Bucket == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("cache.s3.bucket required when cache type is s3"))
			}
		default:
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("cache.type must be localfs or s3, got %q", c.Cache.Type))
		}
	}

	if c.Server.Enabled && c.Server.Addr == "" {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("server.addr required when server is enabled"))
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("metrics.path must start with /, got %q", c.Metrics.Path))
	}

	if c.Notifiers.Webhook.Enabled && c.Notifiers.Webhook.URL == "" {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("notifiers.webhook.url required when webhook is enabled"))
	}
	if c.Notifiers.Telegram.Enabled && (c.Notifiers.Telegram.BotToken == "" || c.Notifiers.Telegram.ChatID == "") {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("notifiers.telegram bot_token and chat_id required when telegram is enabled"))
	}

	return nil
}

// ZoneParams converts the zones section.
func (c *Config) ZoneParams() zone.Params {
	return zone.Params{
		Sensitivity:   c.Zones.Sensitivity,
		HistoryWindow: c.Zones.HistoryWindow,
		RiskReward:    c.Zones.RiskReward,
	}
}

// LineParams converts the trendlines section.
func (c *Config) LineParams() trendline.Params {
	return trendline.Params{
		FractalStrength: c.Trendlines.FractalStrength,
		AngleFilter:     c.Trendlines.AngleFilter,
		AngleMax:        c.Trendlines.AngleMax,
		Tolerance:       c.Trendlines.Tolerance,
		StrictMode:      c.Trendlines.StrictMode,
		ShowHistory:     c.Trendlines.ShowHistory,
	}
}

// PnLConfig converts the pnl section.
func (c *Config) PnLConfig() backtest.PnLConfig {
	return backtest.PnLConfig{
		InitialBalance: c.PnL.InitialBalance,
		IncludeFees:    c.PnL.IncludeFees,
		FeeMaker:       c.PnL.FeeMaker,
		FeeTaker:       c.PnL.FeeTaker,
	}
}

// ChannelParams converts the regression section for the configured interval.
func (c *Config) ChannelParams() indicator.ChannelParams {
	p := indicator.ChannelParams{Period: c.Regression.Period, StdMult: c.Regression.StdMult}
	if secs, ok := core.IntervalSeconds(c.Market.Interval); ok {
		p.IntervalSeconds = secs
	}
	return p
}
