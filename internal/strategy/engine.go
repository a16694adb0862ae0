package strategy

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/newthinker/structura/internal/core"
	"go.uber.org/zap"
)

// Engine manages and runs strategies
type Engine struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
	logger     *zap.Logger
}

// NewEngine creates a new strategy engine
func NewEngine(logger ...*zap.Logger) *Engine {
	var l *zap.Logger
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	} else {
		l = zap.NewNop()
	}
	return &Engine{
		strategies: make(map[string]Strategy),
		logger:     l,
	}
}

// Register adds a strategy to the engine
func (e *Engine) Register(s Strategy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.strategies[s.Name()] = s
}

// Get retrieves a strategy by name
func (e *Engine) Get(name string) (Strategy, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.strategies[name]
	return s, ok
}

// GetAll returns all registered strategies ordered by name
func (e *Engine) GetAll() []Strategy {
	e.mu.RLock()
	defer e.mu.RUnlock()

	result := make([]Strategy, 0, len(e.strategies))
	for _, s := range e.strategies {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name() < result[j].Name() })
	return result
}

// Names returns the registered strategy names in order.
func (e *Engine) Names() []string {
	all := e.GetAll()
	names := make([]string, len(all))
	for i, s := range all {
		names[i] = s.Name()
	}
	return names
}

// Run executes a single strategy by name.
func (e *Engine) Run(ctx context.Context, name string, actx *AnalysisContext) ([]Setup, error) {
	s, ok := e.Get(name)
	if !ok {
		return nil, core.WrapError(core.ErrUnknownStrategy, fmt.Errorf("%q", name))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	setups, err := s.Run(actx)
	if err != nil {
		return nil, fmt.Errorf("strategy %s: %w", name, err)
	}
	e.logger.Debug("strategy finished",
		zap.String("strategy", name),
		zap.Int("bars", len(actx.Bars)),
		zap.Int("setups", len(setups)),
	)
	return setups, nil
}

// RunWithStrategies runs the named strategies over one shared structure
// pass. Unknown names and failing strategies are logged and skipped.
func (e *Engine) RunWithStrategies(ctx context.Context, actx *AnalysisContext, names []string) (map[string][]Setup, error) {
	actx.Prepare()

	out := make(map[string][]Setup, len(names))
	for _, name := range names {
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		default:
		}

		setups, err := e.Run(ctx, name, actx)
		if err != nil {
			e.logger.Warn("strategy run failed",
				zap.String("strategy", name),
				zap.Error(err),
			)
			continue
		}
		out[name] = setups
	}
	return out, nil
}
