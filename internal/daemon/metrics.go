package daemon

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	sessions    prometheus.Gauge
	entries     prometheus.Gauge
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
	saveErrors  prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spark",
			Subsystem: "daemon",
			Name:      "requests_total",
		}, []string{"method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "spark",
			Subsystem: "daemon",
			Name:      "request_duration_seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		}, []string{"method"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "spark",
			Subsystem: "daemon",
			Name:      "sessions",
		}),
		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "spark",
			Subsystem: "library",
			Name:      "entries",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spark",
			Subsystem: "binding_cache",
			Name:      "hits_total",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spark",
			Subsystem: "binding_cache",
			Name:      "misses_total",
		}),
		saveErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spark",
			Subsystem: "library",
			Name:      "save_errors_total",
		}),
	}
	reg.MustRegister(m.requests, m.duration, m.sessions, m.entries, m.cacheHits, m.cacheMisses, m.saveErrors)
	return m
}
