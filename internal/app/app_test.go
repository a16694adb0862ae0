package app

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/newthinker/structura/internal/collector"
	"github.com/newthinker/structura/internal/config"
	"github.com/newthinker/structura/internal/core"
	"github.com/newthinker/structura/internal/metrics"
	"github.com/newthinker/structura/internal/notifier"
	"github.com/newthinker/structura/internal/strategy/smc"
)

func bars(n int) []core.Bar {
	out := make([]core.Bar, n)
	for i := range out {
		p := 100 + float64(i%7)
		out[i] = core.NewBar(int64(60*(i+1)), p, p+2, p-2, p+1, 10, 6)
	}
	return out
}

type fakeHistory struct {
	bars  []core.Bar
	limit int
}

func (f *fakeHistory) FetchHistoricalBatch(_ context.Context, before int64) ([]core.Bar, error) {
	var older []core.Bar
	for _, b := range f.bars {
		if before == 0 || b.Time < before {
			older = append(older, b)
		}
	}
	if len(older) > f.limit {
		older = older[len(older)-f.limit:]
	}
	return older, nil
}

type fakeSub struct {
	id   uuid.UUID
	done chan struct{}
	once sync.Once
	err  error
}

func (s *fakeSub) ID() uuid.UUID         { return s.id }
func (s *fakeSub) Done() <-chan struct{} { return s.done }
func (s *fakeSub) Err() error            { return s.err }
func (s *fakeSub) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

type fakeLive struct {
	subscribed chan func(core.Bar)
	sub        *fakeSub
}

func (f *fakeLive) SubscribeLive(_ context.Context, onBar func(core.Bar)) (collector.Subscription, error) {
	f.subscribed <- onBar
	return f.sub, nil
}

type fakeProvider struct {
	history *fakeHistory
	live    *fakeLive
}

func (p *fakeProvider) Name() string { return "fake" }
func (p *fakeProvider) Historical(symbol, interval string) collector.HistoricalSource {
	return p.history
}
func (p *fakeProvider) Live(symbol, interval string) collector.LiveSource { return p.live }

func newFakeProvider(n int) *fakeProvider {
	return &fakeProvider{
		history: &fakeHistory{bars: bars(n), limit: 50},
		live: &fakeLive{
			subscribed: make(chan func(core.Bar), 1),
			sub:        &fakeSub{id: uuid.New(), done: make(chan struct{})},
		},
	}
}

type countingNotifier struct {
	mu      sync.Mutex
	batches int
}

func (n *countingNotifier) Name() string                   { return "counting" }
func (n *countingNotifier) Init(cfg notifier.Config) error { return nil }
func (n *countingNotifier) Send(e notifier.Event) error    { return n.SendBatch([]notifier.Event{e}) }
func (n *countingNotifier) SendBatch(events []notifier.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.batches++
	return nil
}

func (n *countingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.batches
}

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Market.HistoryTarget = 100
	return cfg
}

// waitFor polls cond until it holds or the timeout passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before timeout")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestApp_New(t *testing.T) {
	app := New(testConfig(), newFakeProvider(10), nil)
	if app == nil {
		t.Fatal("expected app")
	}

	stats := app.GetStats()
	if stats["running"].(bool) {
		t.Error("expected not running")
	}
	if stats["passes"] != 0 {
		t.Errorf("expected 0 passes, got %v", stats["passes"])
	}
	if app.Last() != nil {
		t.Error("expected no analysis before the first pass")
	}
}

func TestAnalysisConfig(t *testing.T) {
	cfg := testConfig()
	ac := AnalysisConfig(cfg)
	if ac.Symbol != "BTCUSDT" || ac.Interval != "15m" || ac.Strategy != "smc" {
		t.Errorf("unexpected market %s %s %s", ac.Symbol, ac.Interval, ac.Strategy)
	}
	if ac.Channel.IntervalSeconds != 900 {
		t.Errorf("expected 900s interval, got %d", ac.Channel.IntervalSeconds)
	}
	if !reflect.DeepEqual(ac.PnL, cfg.PnLConfig()) {
		t.Errorf("PnL = %+v, want %+v", ac.PnL, cfg.PnLConfig())
	}
}

func TestApp_StartFollowsStream(t *testing.T) {
	p := newFakeProvider(120)
	reg := metrics.NewRegistry()
	rec := &countingNotifier{}

	app := New(testConfig(), p, nil)
	app.RegisterStrategy(smc.New())
	if err := app.RegisterNotifier(rec); err != nil {
		t.Fatalf("RegisterNotifier: %v", err)
	}
	app.SetMetrics(reg)

	errCh := make(chan error, 1)
	go func() { errCh <- app.Start(context.Background()) }()

	var onBar func(core.Bar)
	select {
	case onBar = <-p.live.subscribed:
	case <-time.After(5 * time.Second):
		t.Fatal("stream never subscribed")
	}

	if app.Last() == nil {
		t.Fatal("expected an analysis after backfill")
	}
	if n := app.Series().Len(); n != 100 {
		t.Errorf("backfill stops at the history target: got %d bars", n)
	}
	if n := rec.count(); n != 1 {
		t.Errorf("expected 1 notification batch, got %d", n)
	}

	last, _ := app.Series().Last()
	onBar(core.NewBar(last.Time, 101, 104, 99, 103, 12, 7))    // replace
	onBar(core.NewBar(last.Time-60, 101, 104, 99, 103, 12, 7)) // stale
	onBar(core.NewBar(last.Time+60, 103, 105, 100, 104, 9, 4)) // append

	waitFor(t, 5*time.Second, func() bool { return app.GetStats()["passes"] == 2 })

	stats := app.GetStats()
	if !stats["running"].(bool) {
		t.Error("expected running")
	}
	for k, want := range map[string]int{"bars": 101, "appended": 1, "replaced": 1, "discarded": 1} {
		if stats[k] != want {
			t.Errorf("%s: expected %d, got %v", k, want, stats[k])
		}
	}
	if n := rec.count(); n != 2 {
		t.Errorf("expected 2 notification batches, got %d", n)
	}

	if err := app.Start(context.Background()); err == nil {
		t.Error("second start must fail")
	}

	app.Stop()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) || !IsShutdown(err) {
			t.Errorf("expected a shutdown error, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
	if app.GetStats()["running"].(bool) {
		t.Error("expected stopped")
	}
}

func TestApp_StreamFailure(t *testing.T) {
	p := newFakeProvider(60)
	p.live.sub.err = core.WrapError(core.ErrStreamClosed, errors.New("reset by peer"))

	cfg := testConfig()
	cfg.Strategy.Name = ""
	app := New(cfg, p, nil)

	errCh := make(chan error, 1)
	go func() { errCh <- app.Start(context.Background()) }()

	<-p.live.subscribed
	p.live.sub.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, core.ErrStreamClosed) {
			t.Errorf("expected ErrStreamClosed, got %v", err)
		}
		if IsShutdown(err) {
			t.Error("a dropped stream is not a shutdown")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("app did not return after stream failure")
	}
}

func TestApp_NoData(t *testing.T) {
	app := New(testConfig(), newFakeProvider(0), nil)
	if err := app.Start(context.Background()); !errors.Is(err, core.ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
}

func TestApp_UnknownStrategy(t *testing.T) {
	cfg := testConfig()
	cfg.Strategy.Name = "missing"
	app := New(cfg, newFakeProvider(60), nil)

	if err := app.Start(context.Background()); !errors.Is(err, core.ErrUnknownStrategy) {
		t.Errorf("expected ErrUnknownStrategy, got %v", err)
	}
}
