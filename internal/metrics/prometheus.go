package metrics

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"campuspush/internal/types"
)

// Prometheus records metrics into its own registry, exposed by Handler.
type Prometheus struct {
	registry *prometheus.Registry

	httpDuration    *prometheus.HistogramVec
	httpRequests    *prometheus.CounterVec
	dispatchTotal   *prometheus.CounterVec
	dispatchLatency *prometheus.HistogramVec
	logWrites       *prometheus.CounterVec
	logEntries      prometheus.Counter
}

var _ Recorder = (*Prometheus)(nil)

// NewPrometheus creates the collectors under the given namespace. The
// namespace is lower-cased to follow Prometheus naming.
func NewPrometheus(namespace string) *Prometheus {
	ns := strings.ToLower(namespace)
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Prometheus{
		registry: reg,
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path", "method", "status"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"path", "method", "status"}),
		dispatchTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "push_dispatch_total",
			Help:      "Gateway calls by audience mode and result.",
		}, []string{"mode", "result"}),
		dispatchLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "push_dispatch_duration_seconds",
			Help:      "Duration of single gateway calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"}),
		logWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "notification_log_writes_total",
			Help:      "Notification log batch writes by result.",
		}, []string{"result"}),
		logEntries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "notification_log_entries_total",
			Help:      "Notification log entries submitted for writing.",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

func (p *Prometheus) RecordRequest(method, endpoint, status string, duration time.Duration) {
	p.httpDuration.WithLabelValues(endpoint, method, status).Observe(duration.Seconds())
	p.httpRequests.WithLabelValues(endpoint, method, status).Inc()
}

func (p *Prometheus) RecordDispatch(_ context.Context, mode types.AudienceMode, success bool) {
	p.dispatchTotal.WithLabelValues(string(mode), resultLabel(success)).Inc()
}

func (p *Prometheus) RecordDispatchLatency(_ context.Context, mode types.AudienceMode, d time.Duration) {
	p.dispatchLatency.WithLabelValues(string(mode)).Observe(d.Seconds())
}

func (p *Prometheus) RecordLogWrite(_ context.Context, entries int, err error) {
	p.logWrites.WithLabelValues(resultLabel(err == nil)).Inc()
	p.logEntries.Add(float64(entries))
}
