package shadowextract

import (
	"github.com/prometheus/client_golang/prometheus"
)

// run outcomes, meant for node_exporter's textfile collector since hostkit is not a
// long-running process that could be scraped
type Metrics struct {
	registry *prometheus.Registry

	runs          *prometheus.CounterVec
	targets       *prometheus.CounterVec
	warnings      prometheus.Counter
	lastRunTime   prometheus.Gauge
	lastRunFailed prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hostkit_extract_runs_total",
			Help: "Extraction runs by outcome",
		}, []string{"outcome"}),
		targets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hostkit_extract_targets_total",
			Help: "Extraction targets by outcome",
		}, []string{"outcome"}),
		warnings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hostkit_extract_compensation_failures_total",
			Help: "Snapshot deletions or service restores that failed",
		}),
		lastRunTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hostkit_extract_last_run_timestamp_seconds",
			Help: "When the last extraction run finished",
		}),
		lastRunFailed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hostkit_extract_last_run_failed",
			Help: "1 if the last extraction run failed fatally",
		}),
	}

	m.registry.MustRegister(m.runs, m.targets, m.warnings, m.lastRunTime, m.lastRunFailed)

	return m
}

func (m *Metrics) Observe(res *RunResult) {
	outcome := "failed"
	switch {
	case res.Succeeded():
		outcome = "success"
	case res.Partial():
		outcome = "partial"
	}

	m.runs.With(prometheus.Labels{"outcome": outcome}).Inc()

	for _, target := range res.Results {
		m.targets.With(prometheus.Labels{"outcome": target.Outcome.String()}).Inc()
	}

	m.warnings.Add(float64(len(res.Warnings)))

	m.lastRunTime.Set(float64(res.Finished.Unix()))

	if res.State == StateFailed {
		m.lastRunFailed.Set(1)
	} else {
		m.lastRunFailed.Set(0)
	}
}

func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// atomically (re)writes the file in Prometheus text format
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
