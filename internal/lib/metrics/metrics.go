package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ResultOK       = "ok"
	ResultError    = "error"
	ResultRejected = "rejected"
)

type Metrics struct {
	registry          *prometheus.Registry
	profileOperations *prometheus.CounterVec
	avatarUploads     *prometheus.CounterVec
	remoteDuration    *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		profileOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kidsedu",
			Name:      "profile_operations_total",
			Help:      "Profile store operations by operation and result.",
		}, []string{"operation", "result"}),
		avatarUploads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kidsedu",
			Name:      "avatar_uploads_total",
			Help:      "Avatar uploads by result.",
		}, []string{"result"}),
		remoteDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "kidsedu",
			Name:      "remote_call_duration_seconds",
			Help:      "Latency of calls to the persistence and storage APIs.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

func (m *Metrics) ProfileOperation(operation, result string) {
	m.profileOperations.WithLabelValues(operation, result).Inc()
}

func (m *Metrics) AvatarUpload(result string) {
	m.avatarUploads.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveRemote(operation string, seconds float64) {
	m.remoteDuration.WithLabelValues(operation).Observe(seconds)
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
