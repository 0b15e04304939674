package metrics

// Collector wraps metrics and provides helper methods with pre-filled labels.
// The target label names the schema store being migrated, usually the lock key.
type Collector struct {
	target string
}

// NewCollector creates a new Collector for the given target.
func NewCollector(target string) *Collector {
	return &Collector{target: target}
}

// IncApplied increments the applied migrations counter.
func (c *Collector) IncApplied() {
	MigrationsAppliedTotal.WithLabelValues(c.target).Inc()
}

// IncReverted increments the reverted migrations counter.
func (c *Collector) IncReverted() {
	MigrationsRevertedTotal.WithLabelValues(c.target).Inc()
}

// IncFailures increments the failed steps counter.
// kind is a short error class such as "validation", "store" or "ledger".
func (c *Collector) IncFailures(direction, kind string) {
	MigrationFailuresTotal.WithLabelValues(c.target, direction, kind).Inc()
}

// IncInconsistentState increments the inconsistent state counter.
func (c *Collector) IncInconsistentState() {
	InconsistentStateTotal.WithLabelValues(c.target).Inc()
}

// IncLockFailures increments the lock failures counter.
func (c *Collector) IncLockFailures() {
	LockFailuresTotal.WithLabelValues(c.target).Inc()
}

// SetLastApplied sets the last applied identifier gauge.
func (c *Collector) SetLastApplied(id int64) {
	LastApplied.WithLabelValues(c.target).Set(float64(id))
}

// SetPending sets the pending migrations gauge.
func (c *Collector) SetPending(count int) {
	PendingMigrations.WithLabelValues(c.target).Set(float64(count))
}

// ObserveMigrationDuration records a single step duration.
func (c *Collector) ObserveMigrationDuration(direction string, seconds float64) {
	MigrationDuration.WithLabelValues(c.target, direction).Observe(seconds)
}

// ObserveRunDuration records a whole run duration.
func (c *Collector) ObserveRunDuration(direction string, seconds float64) {
	RunDuration.WithLabelValues(c.target, direction).Observe(seconds)
}

// ObserveLockWait records time spent acquiring the run lock.
func (c *Collector) ObserveLockWait(seconds float64) {
	LockWaitDuration.WithLabelValues(c.target).Observe(seconds)
}

// ObserveHeartbeatLatency records a heartbeat latency observation.
func (c *Collector) ObserveHeartbeatLatency(seconds float64) {
	HeartbeatLatency.WithLabelValues(c.target).Observe(seconds)
}
