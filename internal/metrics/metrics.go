/*
Package metrics exposes the daemon's Prometheus instrumentation, wired the
way the teacher corpus's pkg/metrics wires cluster metrics: package-level
collectors registered in init(), plus a Timer helper for histogram
observations. Unlike the teacher's poll-driven cluster gauges, these
collectors are fed by direct Record* calls from the transaction, the
transaction list, the engine and the daemon's txlist.Changed subscriber,
so they need no background scrape loop of their own.
*/
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	JobsStartedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pkbrokerd_jobs_started_total",
			Help: "Total number of jobs started, by role",
		},
		[]string{"role"},
	)

	JobsFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pkbrokerd_jobs_finished_total",
			Help: "Total number of jobs finished, by exit tag",
		},
		[]string{"exit"},
	)

	JobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pkbrokerd_job_duration_seconds",
			Help:    "Time from role assignment to Finished, by role",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"role"},
	)

	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pkbrokerd_queue_depth",
			Help: "Current size of the transaction list (get_size)",
		},
	)

	RunningJobs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pkbrokerd_running_jobs",
			Help: "Number of transactions currently running (0 or 1)",
		},
	)

	HelperSpawnFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pkbrokerd_helper_spawn_failures_total",
			Help: "Total number of helper subprocess launch failures",
		},
	)

	CancelsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pkbrokerd_cancels_total",
			Help: "Total number of cancel attempts, by outcome",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(JobsStartedTotal)
	prometheus.MustRegister(JobsFinishedTotal)
	prometheus.MustRegister(JobDuration)
	prometheus.MustRegister(QueueDepth)
	prometheus.MustRegister(RunningJobs)
	prometheus.MustRegister(HelperSpawnFailuresTotal)
	prometheus.MustRegister(CancelsTotal)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
