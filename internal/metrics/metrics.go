package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestsDuration *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Analysis metrics
	analysisPasses   prometheus.Counter
	analysisDuration prometheus.Histogram
	zonesActive      *prometheus.GaugeVec
	linesActive      *prometheus.GaugeVec
	hurstExponent    *prometheus.GaugeVec
	seriesBars       *prometheus.GaugeVec
	tradesTotal      *prometheus.CounterVec

	// Ingestion metrics
	streamUpdates    *prometheus.CounterVec
	backfillBatches  *prometheus.CounterVec
	notificationsOut *prometheus.CounterVec
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestsDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
		),
	}

	reg.MustRegister(r.httpRequestsTotal)
	reg.MustRegister(r.httpRequestsDuration)
	reg.MustRegister(r.httpRequestsInFlight)

	r.analysisPasses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "structura_analysis_passes_total",
			Help: "Total number of full recompute passes",
		},
	)
	r.analysisDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "structura_analysis_duration_seconds",
			Help:    "Recompute pass duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)
	r.zonesActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "structura_zones",
			Help: "Zones found by the last pass",
		},
		[]string{"symbol", "label", "status"},
	)
	r.linesActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "structura_trendlines",
			Help: "Trendlines found by the last pass",
		},
		[]string{"symbol", "status"},
	)
	r.hurstExponent = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "structura_hurst_exponent",
			Help: "Hurst exponent from the last pass",
		},
		[]string{"symbol"},
	)
	r.seriesBars = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "structura_series_bars",
			Help: "Bars held in the live series",
		},
		[]string{"symbol", "interval"},
	)
	r.tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "structura_trades_total",
			Help: "Trade ideas evaluated, by strategy and status",
		},
		[]string{"strategy", "status"},
	)
	r.streamUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "structura_stream_updates_total",
			Help: "Live bar updates applied to the series",
		},
		[]string{"kind"},
	)
	r.backfillBatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "structura_backfill_batches_total",
			Help: "Historical batches fetched during backfill",
		},
		[]string{"source", "status"},
	)
	r.notificationsOut = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "structura_notifications_total",
			Help: "Events delivered to notifiers",
		},
		[]string{"notifier", "status"},
	)

	reg.MustRegister(r.analysisPasses)
	reg.MustRegister(r.analysisDuration)
	reg.MustRegister(r.zonesActive)
	reg.MustRegister(r.linesActive)
	reg.MustRegister(r.hurstExponent)
	reg.MustRegister(r.seriesBars)
	reg.MustRegister(r.tradesTotal)
	reg.MustRegister(r.streamUpdates)
	reg.MustRegister(r.backfillBatches)
	reg.MustRegister(r.notificationsOut)

	return r
}

// RecordRequest records metrics for an HTTP request.
func (r *Registry) RecordRequest(method, path string, status int, duration float64) {
	statusStr := statusToString(status)
	r.httpRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	r.httpRequestsDuration.WithLabelValues(method, path).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	r.httpRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	r.httpRequestsInFlight.Dec()
}

// RecordAnalysis records a completed recompute pass.
func (r *Registry) RecordAnalysis(duration float64) {
	r.analysisPasses.Inc()
	r.analysisDuration.Observe(duration)
}

// SetZones sets the zone count for a symbol, label and status.
func (r *Registry) SetZones(symbol, label, status string, count int) {
	r.zonesActive.WithLabelValues(symbol, label, status).Set(float64(count))
}

// SetLines sets the trendline count for a symbol and status.
func (r *Registry) SetLines(symbol, status string, count int) {
	r.linesActive.WithLabelValues(symbol, status).Set(float64(count))
}

// SetHurst records the latest Hurst exponent.
func (r *Registry) SetHurst(symbol string, h float64) {
	r.hurstExponent.WithLabelValues(symbol).Set(h)
}

// SetSeriesBars records the live series length.
func (r *Registry) SetSeriesBars(symbol, interval string, n int) {
	r.seriesBars.WithLabelValues(symbol, interval).Set(float64(n))
}

// RecordTrade counts a trade idea by strategy and lifecycle status.
func (r *Registry) RecordTrade(strategy, status string) {
	r.tradesTotal.WithLabelValues(strategy, status).Inc()
}

// RecordStreamUpdate counts a live update; kind is the series update kind.
func (r *Registry) RecordStreamUpdate(kind string) {
	r.streamUpdates.WithLabelValues(kind).Inc()
}

// RecordBackfillBatch counts a historical batch fetch.
func (r *Registry) RecordBackfillBatch(source, status string) {
	r.backfillBatches.WithLabelValues(source, status).Inc()
}

// RecordNotification counts an event delivery attempt.
func (r *Registry) RecordNotification(notifier, status string) {
	r.notificationsOut.WithLabelValues(notifier, status).Inc()
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
