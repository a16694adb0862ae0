package api

import (
	"net/http"

	"github.com/newthinker/structura/internal/analysis"
	"github.com/newthinker/structura/internal/api/response"
	"github.com/newthinker/structura/internal/core"
	"github.com/newthinker/structura/internal/replay"
)

// AnalysisApp defines the interface needed from app.App.
type AnalysisApp interface {
	Last() *analysis.Result
	GetStats() map[string]any
}

// AnalysisHandler serves the latest analysis pass.
type AnalysisHandler struct {
	app AnalysisApp
}

// NewAnalysisHandler creates a new analysis handler.
func NewAnalysisHandler(app AnalysisApp) *AnalysisHandler {
	return &AnalysisHandler{app: app}
}

func (h *AnalysisHandler) last(w http.ResponseWriter) (*analysis.Result, bool) {
	res := h.app.Last()
	if res == nil {
		response.Error(w, http.StatusNotFound, core.WrapError(core.ErrNoData, nil))
		return nil, false
	}
	return res, true
}

// Latest returns the most recent result. With ?view=summary only counts
// and the report are returned.
func (h *AnalysisHandler) Latest(w http.ResponseWriter, r *http.Request) {
	res, ok := h.last(w)
	if !ok {
		return
	}
	if r.URL.Query().Get("view") != "summary" {
		response.JSON(w, http.StatusOK, res)
		return
	}

	counts := analysis.CountZones(res.Zones)
	zones := make(map[string]map[string]int, len(counts))
	for label, byStatus := range counts {
		zones[string(label)] = make(map[string]int, len(byStatus))
		for status, n := range byStatus {
			zones[string(label)][string(status)] = n
		}
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"symbol":       res.Symbol,
		"interval":     res.Interval,
		"bars":         res.Bars,
		"start":        res.Start,
		"end":          res.End,
		"zones":        zones,
		"active_lines": len(res.ActiveLines()),
		"hurst":        res.Hurst,
		"strategy":     res.Strategy,
		"setups":       len(res.Setups),
		"report":       res.Report,
	})
}

// Replay returns a replay record for every filled trade of the latest pass.
func (h *AnalysisHandler) Replay(w http.ResponseWriter, r *http.Request) {
	res, ok := h.last(w)
	if !ok {
		return
	}
	response.JSON(w, http.StatusOK, replay.Build(res.Setups))
}

// ReplayTrade returns the replay record of one trade.
func (h *AnalysisHandler) ReplayTrade(w http.ResponseWriter, r *http.Request) {
	res, ok := h.last(w)
	if !ok {
		return
	}
	id := r.PathValue("id")
	rec, found := replay.Find(replay.Build(res.Setups), id)
	if !found {
		response.Error(w, http.StatusNotFound, core.WrapError(core.ErrNotFound, nil))
		return
	}
	response.JSON(w, http.StatusOK, rec)
}

// Stats returns the app counters.
func (h *AnalysisHandler) Stats(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, h.app.GetStats())
}
