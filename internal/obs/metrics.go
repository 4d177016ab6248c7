package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP metrics shared by every exposed surface.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Domain metrics for the trust core.
var (
	TokensIssued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalyst_tokens_issued_total",
			Help: "Signed tokens by principal type.",
		},
		[]string{"principal"},
	)

	TokenValidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalyst_token_validations_total",
			Help: "Token validation outcomes by reason.",
		},
		[]string{"reason"},
	)

	ShareMutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalyst_channel_share_mutations_total",
			Help: "Channel share grants and revocations.",
		},
		[]string{"op"},
	)

	RelationshipWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalyst_relationship_writes_total",
			Help: "Relationship touch/delete calls against the permission backend.",
		},
		[]string{"op", "outcome"},
	)

	KeyRotations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalyst_key_rotations_total",
			Help: "Signing key rotations by namespace.",
		},
		[]string{"namespace"},
	)
)

// Init registers all metrics with the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		TokensIssued, TokenValidations, ShareMutations,
		RelationshipWrites, KeyRotations,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument wraps an HTTP handler with RPS/latency/in-flight measurement.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// statusWriter captures the response code for labeling.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
