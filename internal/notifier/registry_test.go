package notifier

import (
	"errors"
	"strings"
	"testing"
)

type mockNotifier struct {
	name       string
	sendCalled int
	batchCalls int
	shouldFail bool
}

func (m *mockNotifier) Name() string          { return m.name }
func (m *mockNotifier) Init(cfg Config) error { return nil }

func (m *mockNotifier) Send(event Event) error {
	m.sendCalled++
	if m.shouldFail {
		return errors.New("mock error")
	}
	return nil
}

func (m *mockNotifier) SendBatch(events []Event) error {
	m.batchCalls++
	if m.shouldFail {
		return errors.New("mock error")
	}
	return nil
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(&mockNotifier{name: "test"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Duplicate registration should fail
	if err := r.Register(&mockNotifier{name: "test"}); err == nil {
		t.Error("expected error for duplicate registration")
	}
	if r.Len() != 1 {
		t.Errorf("expected 1 notifier, got %d", r.Len())
	}
}

func TestRegistry_Get(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockNotifier{name: "test"})

	n, err := r.Get("test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Name() != "test" {
		t.Errorf("expected 'test', got '%s'", n.Name())
	}

	if _, err := r.Get("nonexistent"); err == nil {
		t.Error("expected error for non-existent notifier")
	}
}

func TestRegistry_GetAll(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockNotifier{name: "b"})
	r.Register(&mockNotifier{name: "a"})

	all := r.GetAll()
	if len(all) != 2 {
		t.Fatalf("expected 2 notifiers, got %d", len(all))
	}
	if all[0].Name() != "a" || all[1].Name() != "b" {
		t.Errorf("expected sorted names, got %s, %s", all[0].Name(), all[1].Name())
	}
}

func TestRegistry_NotifyAll(t *testing.T) {
	r := NewRegistry()

	mock1 := &mockNotifier{name: "n1"}
	mock2 := &mockNotifier{name: "n2"}
	r.Register(mock1)
	r.Register(mock2)

	errs := r.NotifyAll(Event{Kind: EventTrade, Symbol: "BTCUSDT"})
	if len(errs) != 0 {
		t.Errorf("expected no errors, got %v", errs)
	}
	if mock1.sendCalled != 1 {
		t.Errorf("expected mock1.sendCalled = 1, got %d", mock1.sendCalled)
	}
	if mock2.sendCalled != 1 {
		t.Errorf("expected mock2.sendCalled = 1, got %d", mock2.sendCalled)
	}
}

func TestRegistry_NotifyAll_WithFailure(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockNotifier{name: "n1"})
	r.Register(&mockNotifier{name: "n2", shouldFail: true})

	errs := r.NotifyAll(Event{Kind: EventTrade})
	if len(errs) != 1 {
		t.Errorf("expected 1 error, got %d", len(errs))
	}
	if _, ok := errs["n2"]; !ok {
		t.Error("expected error from n2")
	}
}

func TestRegistry_NotifyAllBatch(t *testing.T) {
	r := NewRegistry()
	mock := &mockNotifier{name: "batch"}
	r.Register(mock)

	events := []Event{{Kind: EventAnalysis}, {Kind: EventTrade}}
	if errs := r.NotifyAllBatch(events); len(errs) != 0 {
		t.Errorf("expected no errors, got %v", errs)
	}
	if mock.batchCalls != 1 {
		t.Errorf("expected batchCalls = 1, got %d", mock.batchCalls)
	}
}

func TestRegistry_AsNotifier(t *testing.T) {
	var n Notifier = NewRegistry()
	if n.Name() != "registry" {
		t.Errorf("expected 'registry', got '%s'", n.Name())
	}
	if err := n.Send(Event{}); err != nil {
		t.Errorf("empty registry should not fail: %v", err)
	}

	r := n.(*Registry)
	r.Register(&mockNotifier{name: "ok"})
	r.Register(&mockNotifier{name: "bad", shouldFail: true})

	err := r.Send(Event{Kind: EventTrade})
	if err == nil {
		t.Fatal("expected joined error")
	}
	if !strings.Contains(err.Error(), "bad: mock error") {
		t.Errorf("unexpected error text: %v", err)
	}
	if err := r.SendBatch([]Event{{}}); err == nil {
		t.Error("expected batch error")
	}
}
