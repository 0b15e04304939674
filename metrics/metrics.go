package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MigrationsAppliedTotal tracks migrations applied by Up.
var MigrationsAppliedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "schemamigrate_migrations_applied_total",
		Help: "Total migrations applied",
	},
	[]string{"target"},
)

// MigrationsRevertedTotal tracks migrations reverted by Down.
var MigrationsRevertedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "schemamigrate_migrations_reverted_total",
		Help: "Total migrations reverted",
	},
	[]string{"target"},
)

// MigrationFailuresTotal tracks failed migration steps by direction and error kind.
var MigrationFailuresTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "schemamigrate_migration_failures_total",
		Help: "Total failed migration steps",
	},
	[]string{"target", "direction", "kind"},
)

// InconsistentStateTotal tracks runs that left the schema ahead of the ledger.
var InconsistentStateTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "schemamigrate_inconsistent_state_total",
		Help: "Total runs that require manual reconciliation",
	},
	[]string{"target"},
)

// LockFailuresTotal tracks run lock acquisition failures.
var LockFailuresTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "schemamigrate_lock_failures_total",
		Help: "Total run lock acquisition failures",
	},
	[]string{"target"},
)

// LastApplied tracks the highest applied migration identifier.
var LastApplied = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "schemamigrate_last_applied_migration",
		Help: "Highest applied migration identifier",
	},
	[]string{"target"},
)

// PendingMigrations tracks migrations planned but not yet applied.
var PendingMigrations = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "schemamigrate_pending_migrations",
		Help: "Migrations pending at the start of the last run",
	},
	[]string{"target"},
)

// MigrationDuration tracks the time one migration step takes, ledger write included.
var MigrationDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "schemamigrate_migration_duration_seconds",
		Help:    "Time spent executing a single migration step",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"target", "direction"},
)

// RunDuration tracks the time a whole Up or Down call takes.
var RunDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "schemamigrate_run_duration_seconds",
		Help:    "Time spent in an Up or Down run",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"target", "direction"},
)

// LockWaitDuration tracks time spent acquiring the run lock.
var LockWaitDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "schemamigrate_lock_wait_seconds",
		Help:    "Time spent acquiring the run lock",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"target"},
)

// HeartbeatLatency tracks lease heartbeat round-trip latency.
var HeartbeatLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "schemamigrate_lease_heartbeat_latency_seconds",
		Help:    "Lease heartbeat round-trip latency",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"target"},
)
