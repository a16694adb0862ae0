// Package binance implements the historical and live bar sources on the
// Binance spot API.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/structura/internal/collector"
	"github.com/newthinker/structura/internal/core"
)

const (
	baseURL   = "https://api.binance.com"
	streamURL = "wss://stream.binance.com:9443/ws"

	// MaxLimit is the largest kline page the REST API serves.
	MaxLimit = 1000
)

// Config holds endpoint overrides. Zero values use the public endpoints.
type Config struct {
	RestURL   string
	StreamURL string
	Limit     int
}

// Binance implements collector.Provider for the Binance exchange
type Binance struct {
	client    *http.Client
	baseURL   string
	streamURL string
	limit     int
	logger    *zap.Logger
}

// New creates a new Binance provider
func New(cfg Config, logger ...*zap.Logger) *Binance {
	l := zap.NewNop()
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	}
	b := &Binance{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL:   baseURL,
		streamURL: streamURL,
		limit:     MaxLimit,
		logger:    l,
	}
	if cfg.RestURL != "" {
		b.baseURL = strings.TrimRight(cfg.RestURL, "/")
	}
	if cfg.StreamURL != "" {
		b.streamURL = strings.TrimRight(cfg.StreamURL, "/")
	}
	if cfg.Limit > 0 && cfg.Limit <= MaxLimit {
		b.limit = cfg.Limit
	}
	return b
}

func (b *Binance) Name() string {
	return "binance"
}

// Historical returns the kline pager for a symbol.
func (b *Binance) Historical(symbol, interval string) collector.HistoricalSource {
	return &Klines{b: b, symbol: strings.ToUpper(symbol), interval: interval}
}

// Live returns the kline stream for a symbol.
func (b *Binance) Live(symbol, interval string) collector.LiveSource {
	return newStream(fmt.Sprintf("%s/%s@kline_%s", b.streamURL, strings.ToLower(symbol), interval), b.logger)
}

// Klines pages /api/v3/klines backwards.
type Klines struct {
	b        *Binance
	symbol   string
	interval string
}

// FetchHistoricalBatch fetches up to limit bars opening before before.
func (k *Klines) FetchHistoricalBatch(ctx context.Context, before int64) ([]core.Bar, error) {
	q := url.Values{}
	q.Set("symbol", k.symbol)
	q.Set("interval", k.interval)
	q.Set("limit", strconv.Itoa(k.b.limit))
	if before > 0 {
		q.Set("endTime", strconv.FormatInt(before*1000-1, 10))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.b.baseURL+"/api/v3/klines?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := k.b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching klines: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Code int    `json:"code"`
			Msg  string `json:"msg"`
		}
		json.NewDecoder(resp.Body).Decode(&apiErr)
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, apiErr.Msg)
	}

	var rows [][]any
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	bars := make([]core.Bar, 0, len(rows))
	for _, row := range rows {
		bar, err := parseKline(row)
		if err != nil {
			return nil, err
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// parseKline decodes one REST kline row. Column 9 is the taker buy base
// volume.
func parseKline(row []any) (core.Bar, error) {
	if len(row) < 10 {
		return core.Bar{}, fmt.Errorf("kline row has %d columns", len(row))
	}
	openTime, ok := row[0].(float64)
	if !ok {
		return core.Bar{}, fmt.Errorf("kline open time %v", row[0])
	}

	var vals [5]float64
	for i, col := range []int{1, 2, 3, 4, 5} {
		v, err := parseNumber(row[col])
		if err != nil {
			return core.Bar{}, fmt.Errorf("kline column %d: %w", col, err)
		}
		vals[i] = v
	}
	buy, err := parseNumber(row[9])
	if err != nil {
		return core.Bar{}, fmt.Errorf("kline column 9: %w", err)
	}

	return core.NewBar(int64(openTime)/1000, vals[0], vals[1], vals[2], vals[3], vals[4], buy), nil
}

func parseNumber(v any) (float64, error) {
	switch x := v.(type) {
	case string:
		return strconv.ParseFloat(x, 64)
	case float64:
		return x, nil
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}
