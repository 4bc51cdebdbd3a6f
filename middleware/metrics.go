package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/SghaierFiras/armada-analytics-hub-sub001/route"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts served requests by matched route and status.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "armada",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"route", "status"},
	)

	// RequestDuration measures handler latency by matched route.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "armada",
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

// Metrics records request counts and latency labelled by the route the
// table matched, so unknown paths collapse into a single series.
func Metrics() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			r = route.Capture(r)
			rec := &statusRecorder{ResponseWriter: w}

			next.ServeHTTP(rec, r)

			pattern := route.Pattern(r)
			RequestsTotal.WithLabelValues(pattern, strconv.Itoa(rec.Status())).Inc()
			RequestDuration.WithLabelValues(pattern).Observe(time.Since(start).Seconds())
		})
	}
}
