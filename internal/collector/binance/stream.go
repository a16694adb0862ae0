package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/newthinker/structura/internal/collector"
	"github.com/newthinker/structura/internal/core"
)

const (
	readTimeout = 90 * time.Second
	minBackoff  = time.Second
	maxBackoff  = 30 * time.Second
)

// klineEvent is the kline stream payload. Every key the stream sends that
// differs from a decoded key only by case is declared so that encoding/json
// never folds it onto the wrong field.
type klineEvent struct {
	Event string `json:"e"`
	K     struct {
		OpenTime  int64  `json:"t"`
		CloseTime int64  `json:"T"`
		Open      string `json:"o"`
		High      string `json:"h"`
		Low       string `json:"l"`
		LastTrade int64  `json:"L"`
		Close     string `json:"c"`
		Volume    string `json:"v"`
		BuyVolume string `json:"V"`
		QuoteVol  string `json:"q"`
		QuoteBuy  string `json:"Q"`
		Closed    bool   `json:"x"`
	} `json:"k"`
}

func parseEvent(raw []byte) (core.Bar, bool, error) {
	var ev klineEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return core.Bar{}, false, err
	}
	if ev.Event != "kline" || ev.K.OpenTime == 0 {
		return core.Bar{}, false, nil
	}

	var vals [6]float64
	for i, s := range []string{ev.K.Open, ev.K.High, ev.K.Low, ev.K.Close, ev.K.Volume, ev.K.BuyVolume} {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return core.Bar{}, false, fmt.Errorf("kline field %d: %w", i, err)
		}
		vals[i] = v
	}
	return core.NewBar(ev.K.OpenTime/1000, vals[0], vals[1], vals[2], vals[3], vals[4], vals[5]), true, nil
}

// stream is a reconnecting kline websocket.
type stream struct {
	url        string
	dialer     *websocket.Dialer
	logger     *zap.Logger
	minBackoff time.Duration
	maxBackoff time.Duration
}

func newStream(url string, logger *zap.Logger) *stream {
	return &stream{
		url:        url,
		dialer:     &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger:     logger,
		minBackoff: minBackoff,
		maxBackoff: maxBackoff,
	}
}

// SubscribeLive connects and delivers bars to onBar from a single goroutine
// until the subscription is closed or ctx ends. Dropped connections are
// redialled with exponential backoff; only the first dial can fail.
func (s *stream) SubscribeLive(ctx context.Context, onBar func(core.Bar)) (collector.Subscription, error) {
	conn, err := s.dial(ctx)
	if err != nil {
		return nil, core.WrapError(core.ErrSourceFailed, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := &subscription{id: uuid.New(), cancel: cancel, done: make(chan struct{})}
	s.logger.Info("stream connected", zap.String("url", s.url), zap.String("subscription", sub.id.String()))

	go s.run(ctx, conn, onBar, sub)
	return sub, nil
}

func (s *stream) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, resp, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial failed, status=%d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

func (s *stream) run(ctx context.Context, conn *websocket.Conn, onBar func(core.Bar), sub *subscription) {
	defer close(sub.done)

	for {
		err := s.read(ctx, conn, onBar)
		conn.Close()
		if ctx.Err() != nil {
			sub.finish(ctx.Err())
			return
		}
		s.logger.Warn("stream disconnected; reconnecting", zap.String("url", s.url), zap.Error(err))

		conn = s.redial(ctx)
		if conn == nil {
			sub.finish(ctx.Err())
			return
		}
		s.logger.Info("stream reconnected", zap.String("url", s.url))
	}
}

func (s *stream) redial(ctx context.Context) *websocket.Conn {
	backoff := s.minBackoff
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}

		conn, err := s.dial(ctx)
		if err == nil {
			return conn
		}
		s.logger.Debug("redial failed", zap.Duration("backoff", backoff), zap.Error(err))
		backoff = min(backoff*2, s.maxBackoff)
	}
}

func (s *stream) read(ctx context.Context, conn *websocket.Conn, onBar func(core.Bar)) error {
	stop := context.AfterFunc(ctx, func() {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client shutdown"),
			time.Now().Add(time.Second))
		conn.Close()
	})
	defer stop()

	for {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		bar, ok, err := parseEvent(raw)
		if err != nil {
			s.logger.Debug("skipping malformed stream message", zap.Error(err))
			continue
		}
		if ok {
			onBar(bar)
		}
	}
}

type subscription struct {
	id     uuid.UUID
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	closed bool
	err    error
}

func (s *subscription) ID() uuid.UUID { return s.id }

func (s *subscription) Done() <-chan struct{} { return s.done }

func (s *subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops the stream and waits for the reader to exit.
func (s *subscription) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	<-s.done
	return nil
}

func (s *subscription) finish(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed && cause != nil {
		s.err = core.WrapError(core.ErrStreamClosed, cause)
	}
}
