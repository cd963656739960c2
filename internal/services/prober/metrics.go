package prober

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mProbes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamcheck_probes_total", Help: "Stream probes completed",
	})
	mResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamcheck_probe_results_total", Help: "Probe outcomes by status and code",
	}, []string{"status", "code"})
	mRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamcheck_probe_retries_total", Help: "Probe attempts beyond the first",
	})
	mLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "streamcheck_probe_latency_seconds",
		Help:    "Time to classify one stream, retries included",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20, 30},
	})
	mInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "streamcheck_probes_in_flight", Help: "Probes currently running",
	})
)
