// Package metrics exposes the Prometheus collectors for the beer exchange.
// All collectors live in a dedicated registry so tests never trip over
// duplicate registration in the default one.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every collector exported by the service.
var Registry = prometheus.NewRegistry()

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "beer_exchange",
		Subsystem: "http",
		Name:      "in_flight_requests",
		Help:      "Number of HTTP requests currently being served.",
	})

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "beer_exchange",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed, by method, path and status.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "beer_exchange",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	recalculations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "beer_exchange",
			Subsystem: "pricing",
			Name:      "recalculations_total",
			Help:      "Price recalculations, by result.",
		},
		[]string{"result"},
	)

	recalcDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "beer_exchange",
		Subsystem: "pricing",
		Name:      "recalculation_duration_seconds",
		Help:      "Duration of one price recalculation including persistence.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	convergenceShortfalls = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "beer_exchange",
		Subsystem: "pricing",
		Name:      "convergence_shortfalls_total",
		Help:      "Recalculations whose final sum drifted from the target beyond half a tick.",
	})

	purchases = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "beer_exchange",
		Subsystem: "sales",
		Name:      "purchases_total",
		Help:      "Recorded purchase transactions.",
	})

	purchasedUnits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "beer_exchange",
		Subsystem: "sales",
		Name:      "purchased_units_total",
		Help:      "Total units of beer sold across all events.",
	})
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		recalculations,
		recalcDuration,
		convergenceShortfalls,
		purchases,
		purchasedUnits,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordRecalculation records one price recalculation attempt.
func RecordRecalculation(duration time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	if duration <= 0 {
		duration = time.Millisecond
	}
	recalculations.WithLabelValues(result).Inc()
	recalcDuration.Observe(duration.Seconds())
}

// RecordConvergenceShortfall records a recalculation that could not bring the
// price sum back to the target.
func RecordConvergenceShortfall() {
	convergenceShortfalls.Inc()
}

// RecordPurchase records one completed purchase of qty units.
func RecordPurchase(qty int) {
	purchases.Inc()
	purchasedUnits.Add(float64(qty))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// canonicalPath collapses record ids out of request paths so the label set
// stays bounded. Ids always follow a known route keyword, so each route
// family keeps its own label.
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	for i := 1; i < len(parts); i++ {
		switch parts[i-1] {
		case "events", "event", "live":
			parts[i] = ":event"
		case "item", "beer":
			parts[i] = ":item"
		case "tabs":
			// /tabs/open and /tabs/event/... carry no id here.
			if parts[i] != "open" && parts[i] != "event" {
				parts[i] = ":tab"
			}
		}
	}
	return "/" + strings.Join(parts, "/")
}
