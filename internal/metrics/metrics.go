// Package metrics provides Prometheus instrumentation for the trader.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// DecisionsTotal counts composed decisions by signal and strategy.
	DecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fusion_decisions_total",
		Help: "Decisions composed, by signal and strategy",
	}, []string{"signal", "strategy"})

	// DegradedDecisions counts decisions that fell back to a reduced path.
	DegradedDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fusion_degraded_decisions_total",
		Help: "Decisions taken on a degraded path",
	}, []string{"degradation"})

	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fusion_trades_total",
		Help: "Ledger trades committed, by side and tag",
	}, []string{"side", "tag"})

	RiskRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fusion_risk_rejections_total",
		Help: "BUYs rejected by the risk gate, by reason",
	}, []string{"reason"})

	StepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fusion_step_duration_seconds",
		Help:    "Duration of one instrument cycle",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	})

	// Cash is the ledger balance after the last committed trade.
	Cash = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fusion_cash",
		Help: "Ledger cash balance",
	})

	OpenPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fusion_open_positions",
		Help: "Number of open positions",
	})

	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fusion_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	PublishFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fusion_publish_failures_total",
		Help: "Trade events a publisher failed to deliver",
	}, []string{"publisher"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fusion_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fusion_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and latency, labelled by route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		path := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				path = p
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
