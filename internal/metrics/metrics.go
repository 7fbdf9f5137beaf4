package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"assessment-service/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus records service and HTTP metrics on its own registry.
type Prometheus struct {
	registry       *prometheus.Registry
	submissions    *prometheus.CounterVec
	failures       *prometheus.CounterVec
	submitDuration prometheus.Histogram
	activeAttempts prometheus.Gauge
	requests       *prometheus.CounterVec
}

func New() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assessment_submissions_total",
			Help: "Stored submissions by reason and status",
		}, []string{"reason", "status"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assessment_submission_failures_total",
			Help: "Failed submission attempts by reason",
		}, []string{"reason"}),
		submitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "assessment_submit_duration_seconds",
			Help:    "Time spent writing a submission",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		}),
		activeAttempts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "assessment_active_attempts",
			Help: "Attempts with a running countdown",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
	}
	p.registry.MustRegister(p.submissions, p.failures, p.submitDuration, p.activeAttempts, p.requests)
	return p
}

func (p *Prometheus) SubmissionRecorded(reason domain.SubmitReason, status domain.SubmissionStatus, took time.Duration) {
	p.submissions.WithLabelValues(string(reason), string(status)).Inc()
	p.submitDuration.Observe(took.Seconds())
}

func (p *Prometheus) SubmissionFailed(reason domain.SubmitReason) {
	p.failures.WithLabelValues(string(reason)).Inc()
}

func (p *Prometheus) AttemptOpened() { p.activeAttempts.Inc() }

func (p *Prometheus) AttemptClosed() { p.activeAttempts.Dec() }

// Handler serves the registry in the Prometheus text format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Middleware counts requests by method, path and status.
func (p *Prometheus) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		p.requests.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rec.status)).Inc()
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack is required by the websocket upgrader.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
