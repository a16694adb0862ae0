package notifier

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Registry manages notifier instances. It is itself a Notifier that fans
// out to every registered notifier.
type Registry struct {
	mu        sync.RWMutex
	notifiers map[string]Notifier
}

// NewRegistry creates a new notifier registry
func NewRegistry() *Registry {
	return &Registry{
		notifiers: make(map[string]Notifier),
	}
}

// Register adds a notifier to the registry
func (r *Registry) Register(n Notifier) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := n.Name()
	if _, exists := r.notifiers[name]; exists {
		return fmt.Errorf("notifier %s already registered", name)
	}

	r.notifiers[name] = n
	return nil
}

// Get retrieves a notifier by name
func (r *Registry) Get(name string) (Notifier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, exists := r.notifiers[name]
	if !exists {
		return nil, fmt.Errorf("notifier %s not found", name)
	}
	return n, nil
}

// GetAll returns all registered notifiers
func (r *Registry) GetAll() []Notifier {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Notifier, 0, len(r.notifiers))
	for _, n := range r.notifiers {
		result = append(result, n)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name() < result[j].Name() })
	return result
}

// Len returns the number of registered notifiers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.notifiers)
}

// NotifyAll sends an event to all registered notifiers
func (r *Registry) NotifyAll(event Event) map[string]error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	errs := make(map[string]error)
	for name, n := range r.notifiers {
		if err := n.Send(event); err != nil {
			errs[name] = err
		}
	}
	return errs
}

// NotifyAllBatch sends multiple events to all registered notifiers
func (r *Registry) NotifyAllBatch(events []Event) map[string]error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	errs := make(map[string]error)
	for name, n := range r.notifiers {
		if err := n.SendBatch(events); err != nil {
			errs[name] = err
		}
	}
	return errs
}

func (r *Registry) Name() string { return "registry" }

// Init is a no-op; registered notifiers are initialised individually.
func (r *Registry) Init(cfg Config) error { return nil }

// Send fans out to every notifier and joins their failures.
func (r *Registry) Send(event Event) error {
	return joinErrors(r.NotifyAll(event))
}

// SendBatch fans out a batch to every notifier and joins their failures.
func (r *Registry) SendBatch(events []Event) error {
	return joinErrors(r.NotifyAllBatch(events))
}

func joinErrors(m map[string]error) error {
	if len(m) == 0 {
		return nil
	}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	errs := make([]error, 0, len(m))
	for _, name := range names {
		errs = append(errs, fmt.Errorf("%s: %w", name, m[name]))
	}
	return errors.Join(errs...)
}
