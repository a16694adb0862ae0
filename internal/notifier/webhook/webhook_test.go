package webhook

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/newthinker/structura/internal/notifier"
)

func TestWebhook_ImplementsNotifier(t *testing.T) {
	var _ notifier.Notifier = (*Webhook)(nil)
}

func TestWebhook_Name(t *testing.T) {
	w := New("http://example.com/hook", nil)
	if w.Name() != "webhook" {
		t.Errorf("expected 'webhook', got %s", w.Name())
	}
}

func TestWebhook_Init_RequiresURL(t *testing.T) {
	w := &Webhook{}
	if err := w.Init(notifier.Config{Params: map[string]any{}}); err == nil {
		t.Error("expected error for missing URL")
	}
}

func TestWebhook_Init_WithURL(t *testing.T) {
	w := &Webhook{}
	err := w.Init(notifier.Config{
		Params: map[string]any{
			"url":     "http://example.com/hook",
			"headers": map[string]any{"X-Token": "abc"},
		},
	})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if w.url != "http://example.com/hook" {
		t.Errorf("expected url, got %s", w.url)
	}
	if w.headers["X-Token"] != "abc" {
		t.Errorf("expected header from map[string]any, got %v", w.headers)
	}
}

func TestWebhook_Send(t *testing.T) {
	var receivedPayload map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&receivedPayload)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	w := New(server.URL, nil)

	event := notifier.Event{
		Kind:        notifier.EventTrade,
		Symbol:      "BTCUSDT",
		Interval:    "15m",
		Message:     "smc-59 LONG WIN",
		Fields:      map[string]any{"pnl_r": 2.0},
		GeneratedAt: time.Unix(1700000000, 0),
	}

	if err := w.Send(event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if receivedPayload["symbol"] != "BTCUSDT" {
		t.Errorf("expected symbol BTCUSDT, got %v", receivedPayload["symbol"])
	}
	if receivedPayload["type"] != "trade" {
		t.Errorf("expected type trade, got %v", receivedPayload["type"])
	}
	if receivedPayload["generated_at"] != "2023-11-14T22:13:20Z" {
		t.Errorf("unexpected generated_at %v", receivedPayload["generated_at"])
	}
	fields, ok := receivedPayload["fields"].(map[string]any)
	if !ok || fields["pnl_r"] != 2.0 {
		t.Errorf("expected fields.pnl_r = 2, got %v", receivedPayload["fields"])
	}
}

func TestWebhook_SendBatch(t *testing.T) {
	var receivedPayload map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&receivedPayload)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	w := New(server.URL, nil)
	events := []notifier.Event{
		{Kind: notifier.EventAnalysis, Symbol: "BTCUSDT"},
		{Kind: notifier.EventTrade, Symbol: "BTCUSDT"},
	}

	if err := w.SendBatch(events); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receivedPayload["type"] != "batch" {
		t.Errorf("expected type batch, got %v", receivedPayload["type"])
	}
	if receivedPayload["count"] != float64(2) {
		t.Errorf("expected count 2, got %v", receivedPayload["count"])
	}
}

func TestWebhook_SendBatch_Empty(t *testing.T) {
	w := New("http://127.0.0.1:1/unreachable", nil)
	if err := w.SendBatch(nil); err != nil {
		t.Errorf("expected nil for empty batch, got %v", err)
	}
}

func TestWebhook_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	w := New(server.URL, nil)
	if err := w.Send(notifier.Event{Kind: notifier.EventTrade}); err == nil {
		t.Error("expected error for server error")
	}
}

func TestWebhook_CustomHeaders(t *testing.T) {
	var receivedHeaders http.Header

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedHeaders = r.Header
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	w := New(server.URL, map[string]string{"Authorization": "Bearer token123"})
	if err := w.Send(notifier.Event{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receivedHeaders.Get("Authorization") != "Bearer token123" {
		t.Errorf("expected Authorization header, got %s", receivedHeaders.Get("Authorization"))
	}
	if receivedHeaders.Get("Content-Type") != "application/json" {
		t.Errorf("expected json content type, got %s", receivedHeaders.Get("Content-Type"))
	}
}
