package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jupiter",
			Subsystem: "api",
			Name:      "calls_total",
			Help:      "Use case calls by name and status.",
		}, []string{"use_case", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "jupiter",
			Subsystem: "api",
			Name:      "call_duration_seconds",
			Help:      "Use case latency by name.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"use_case"}),
	}
	for _, c := range []prometheus.Collector{m.calls, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *metrics) observe(useCase string, start time.Time, status int) {
	m.calls.WithLabelValues(useCase, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(useCase).Observe(time.Since(start).Seconds())
}

func (m *metrics) handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
