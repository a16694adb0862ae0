package notifier

import "time"

// Config holds notifier configuration
type Config struct {
	Type   string         `mapstructure:"type"`
	Params map[string]any `mapstructure:"params"`
}

// Event kinds published by the analysis runner.
const (
	EventAnalysis = "analysis"
	EventTrade    = "trade"
)

// Event is one notification. Fields carries kind-specific values and must
// be JSON-encodable.
type Event struct {
	Kind        string         `json:"kind"`
	Symbol      string         `json:"symbol"`
	Interval    string         `json:"interval"`
	Message     string         `json:"message"`
	Fields      map[string]any `json:"fields,omitempty"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// Notifier defines the interface for event notification
type Notifier interface {
	// Name returns the unique identifier for this notifier
	Name() string

	// Init initializes the notifier with configuration
	Init(cfg Config) error

	// Send sends a single event
	Send(event Event) error

	// SendBatch sends multiple events
	SendBatch(events []Event) error
}
