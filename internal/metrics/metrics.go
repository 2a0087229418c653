// Package metrics declares the Prometheus collectors for the simulation.
package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DaysTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "econsim_days_total",
		Help: "Days completed by the engine.",
	})

	DayFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "econsim_day_failures_total",
		Help: "Days aborted and rolled back, by reason.",
	}, []string{"reason"})

	OracleDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "econsim_oracle_decisions_total",
		Help: "Agent turns by decision source (oracle or fallback).",
	}, []string{"source"})

	ActionClamps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "econsim_action_clamps_total",
		Help: "Requested quantities reduced to what was feasible, by step.",
	}, []string{"step"})

	TurnLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "econsim_turn_duration_seconds",
		Help:    "Time from oracle request to applied action for one agent turn.",
		Buckets: []float64{.005, .05, .25, 1, 2.5, 5, 10, 30, 60},
	})

	BuybackLvMON = promauto.NewCounter(prometheus.CounterOpts{
		Name: "econsim_buyback_lvmon_total",
		Help: "LvMON spent by system buybacks.",
	})

	BurnedMeme = promauto.NewCounter(prometheus.CounterOpts{
		Name: "econsim_burned_meme_total",
		Help: "MEME burned by system buybacks.",
	})

	MarketPrice = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "econsim_market_price",
		Help: "MEME spot price in LvMON at the end of the last day.",
	})

	Reservoir = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "econsim_reservoir_lvmon",
		Help: "LvMON held in the buyback reservoir.",
	})

	TotalStaked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "econsim_total_staked_meme",
		Help: "MEME staked across all agents.",
	})

	HistoryWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "econsim_history_write_failures_total",
		Help: "Day records a history sink failed to persist.",
	})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "econsim_http_requests_total",
		Help: "HTTP requests by route pattern, method and status.",
	}, []string{"route", "method", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "econsim_http_request_duration_seconds",
		Help:    "HTTP request latency by route pattern.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	WSClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "econsim_ws_clients",
		Help: "Connected live-feed WebSocket clients.",
	})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and latency, labelled by chi route
// pattern so path parameters don't explode cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(wrapped.status)).Inc()
		HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// statusWriter captures the response status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets the WebSocket upgrader take over the connection.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("metrics: response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
