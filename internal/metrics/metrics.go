package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StoreMutations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dabbathon_store_mutations_total",
			Help: "Total number of committed store mutations",
		},
	)

	SnapshotPersistFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dabbathon_snapshot_persist_failures_total",
			Help: "Local snapshot writes that failed and were skipped",
		},
	)

	RemoteWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dabbathon_remote_writes_total",
			Help: "Remote document writes by collection and result",
		},
		[]string{"collection", "result"}, // "ok", "retry", "desynced"
	)

	FoldedChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dabbathon_folded_changes_total",
			Help: "Remote change events folded into local state",
		},
		[]string{"collection", "kind"},
	)

	AutoPingsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dabbathon_auto_pings_sent_total",
			Help: "Reminder notifications emitted by the scheduler",
		},
		[]string{"lead_minutes"},
	)

	SchedulerTicksSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dabbathon_scheduler_ticks_skipped_total",
			Help: "Scheduler ticks dropped because the previous sweep was still running",
		},
	)

	ScoreImports = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dabbathon_score_imports_total",
			Help: "Score import runs by outcome",
		},
		[]string{"outcome"},
	)
)
