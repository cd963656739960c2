package checker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checker_runs_total", Help: "Check runs by outcome.",
	}, []string{"result"})
	mSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checker_runs_skipped_total", Help: "Scheduled runs skipped because one was still running.",
	})
	mRunDur = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "checker_run_duration_seconds", Help: "Duration of a full check run.",
		Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200, 1800},
	})
	mChannels = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "checker_channels", Help: "Channels by status in the last run.",
	}, []string{"status"})
	mChanges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checker_status_changes_total", Help: "Channels that flipped status.",
	})
)
