// Package jobs collects Prometheus metrics for the batch accrual jobs.
package jobs

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/meridianbank/meridianbank/internal/accrual"
)

// Metrics holds the job-level collectors on a dedicated registry.
type Metrics struct {
	registry    *prometheus.Registry
	handler     http.Handler
	runsTotal   *prometheus.CounterVec
	accounts    *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
}

// NewMetrics initialises the registry and base collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_job_runs_total",
		Help: "Completed job runs by job name and outcome.",
	}, []string{"job", "outcome"})
	accounts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_job_accounts_total",
		Help: "Accounts processed by accrual jobs, by per-account result.",
	}, []string{"job", "result"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "meridian_job_duration_seconds",
		Help:    "Job run duration per job name.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	registry.MustRegister(runs, accounts, duration)
	return &Metrics{
		registry:    registry,
		handler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		runsTotal:   runs,
		accounts:    accounts,
		runDuration: duration,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registerer exposes the registry for custom collector registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// Track starts a run tracker for one job execution. A nil Metrics yields a
// no-op tracker.
func (m *Metrics) Track(job string) *RunTracker {
	return &RunTracker{metrics: m, job: job, start: time.Now()}
}

// RunTracker records the outcome of a single job run.
type RunTracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// End finalises the run, recording duration, outcome and per-account counts.
func (t *RunTracker) End(report accrual.RunReport, err error) {
	if t == nil || t.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	t.metrics.runsTotal.WithLabelValues(t.job, outcome).Inc()
	t.metrics.runDuration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	t.metrics.accounts.WithLabelValues(t.job, "succeeded").Add(float64(report.Succeeded))
	t.metrics.accounts.WithLabelValues(t.job, "failed").Add(float64(report.Failed))
}
