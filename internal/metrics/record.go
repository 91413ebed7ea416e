package metrics

import (
	"github.com/saxa/pkbrokerd/internal/jobtypes"
)

// RecordJobStarted should be called once a transaction's role is selected.
func RecordJobStarted(role jobtypes.Role) {
	JobsStartedTotal.WithLabelValues(string(role)).Inc()
}

// RecordJobFinished should be called from a Finished subscriber, with the
// Timer started at RecordJobStarted time.
func RecordJobFinished(role jobtypes.Role, exit jobtypes.Exit, timer *Timer) {
	JobsFinishedTotal.WithLabelValues(string(exit)).Inc()
	timer.ObserveDurationVec(JobDuration, string(role))
}

// RecordQueueDepth should be called from a txlist.Changed subscriber.
func RecordQueueDepth(n int) {
	QueueDepth.Set(float64(n))
}

// RecordRunning reports whether a transaction is currently running.
func RecordRunning(running bool) {
	if running {
		RunningJobs.Set(1)
		return
	}
	RunningJobs.Set(0)
}

// RecordHelperSpawnFailure should be called when SpawnHelper's Launch call
// fails.
func RecordHelperSpawnFailure() {
	HelperSpawnFailuresTotal.Inc()
}

// RecordCancel should be called after every Cancel attempt.
func RecordCancel(accepted bool) {
	outcome := "refused"
	if accepted {
		outcome = "accepted"
	}
	CancelsTotal.WithLabelValues(outcome).Inc()
}
