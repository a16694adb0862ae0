package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/structura/internal/api/job"
	"github.com/newthinker/structura/internal/api/response"
	"github.com/newthinker/structura/internal/backtest"
	"github.com/newthinker/structura/internal/core"
	"github.com/newthinker/structura/internal/strategy"
)

const backtestTimeout = 5 * time.Minute

// BarSource supplies the bars a backtest job runs over.
type BarSource interface {
	Bars() []core.Bar
}

// BacktestRequest is the request body for starting a backtest.
type BacktestRequest struct {
	Strategy string `json:"strategy"`
	// Bars limits the run to the most recent bars of the live window.
	Bars int `json:"bars,omitempty"`
}

// BacktestHandler handles backtest API requests.
type BacktestHandler struct {
	jobStore   *job.Store
	backtester *backtest.Backtester
	strategies *strategy.Engine
	source     BarSource
	template   backtest.Request
	logger     *zap.Logger
}

// NewBacktestHandler creates a new backtest handler. template supplies
// every request field except the strategy.
func NewBacktestHandler(
	jobStore *job.Store,
	strategies *strategy.Engine,
	source BarSource,
	template backtest.Request,
	logger *zap.Logger,
) *BacktestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BacktestHandler{
		jobStore:   jobStore,
		backtester: backtest.New(nil, strategies, logger),
		strategies: strategies,
		source:     source,
		template:   template,
		logger:     logger,
	}
}

// Create starts a new backtest job over a snapshot of the live window.
func (h *BacktestHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrConfigInvalid, err))
		return
	}

	if req.Strategy == "" {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrConfigMissing, fmt.Errorf("strategy is required")))
		return
	}
	if _, ok := h.strategies.Get(req.Strategy); !ok {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrUnknownStrategy, fmt.Errorf("%q", req.Strategy)))
		return
	}

	bars := h.source.Bars()
	if len(bars) == 0 {
		response.Error(w, http.StatusConflict, core.WrapError(core.ErrNoData, nil))
		return
	}
	if req.Bars > 0 && req.Bars < len(bars) {
		bars = bars[len(bars)-req.Bars:]
	}

	j := h.jobStore.Create("backtest")
	go h.runBacktest(j.ID, req.Strategy, bars)

	response.JSON(w, http.StatusAccepted, map[string]any{
		"job_id": j.ID,
		"status": j.Status,
		"bars":   len(bars),
	})
}

// runBacktest executes the backtest and updates job status.
func (h *BacktestHandler) runBacktest(jobID, name string, bars []core.Bar) {
	h.jobStore.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusRunning
	})

	ctx, cancel := context.WithTimeout(context.Background(), backtestTimeout)
	defer cancel()

	req := h.template
	req.Strategy = name
	result, err := h.backtester.RunBars(ctx, req, bars)
	if err != nil {
		h.logger.Warn("backtest job failed", zap.String("job", jobID), zap.Error(err))
		var coreErr *core.Error
		if !errors.As(err, &coreErr) {
			coreErr = core.WrapError(core.ErrStrategyFailed, err)
		}
		h.jobStore.Update(jobID, func(j *job.Job) {
			j.Status = job.StatusFailed
			j.Error = coreErr
		})
		return
	}

	h.jobStore.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusComplete
		j.Result = result
	})
}

// GetStatus returns the status of a backtest job.
func (h *BacktestHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	j, err := h.jobStore.Get(r.PathValue("id"))
	if err != nil {
		response.Error(w, http.StatusNotFound, err)
		return
	}

	resp := map[string]any{
		"job_id": j.ID,
		"status": j.Status,
	}
	if j.Status == job.StatusComplete {
		resp["result"] = j.Result
	}
	if j.Status == job.StatusFailed && j.Error != nil {
		resp["error"] = map[string]string{
			"code":    j.Error.Code,
			"message": j.Error.Message,
		}
	}

	response.JSON(w, http.StatusOK, resp)
}

// List returns every tracked job without results.
func (h *BacktestHandler) List(w http.ResponseWriter, r *http.Request) {
	jobs := h.jobStore.List()
	out := make([]map[string]any, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, map[string]any{
			"job_id":     j.ID,
			"status":     j.Status,
			"created_at": j.CreatedAt,
		})
	}
	response.JSON(w, http.StatusOK, out)
}
