// Package migrate is the entry point for embedding the schema migrator in an
// application. It wires a schema store, ledger and run lock for a database
// and returns a ready engine.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	bbolt "go.etcd.io/bbolt"

	rootpkg "github.com/getpup/schemamigrate"
	"github.com/getpup/schemamigrate/engine"
	"github.com/getpup/schemamigrate/ledger"
	boltledger "github.com/getpup/schemamigrate/ledger/bolt"
	"github.com/getpup/schemamigrate/ledger/sqlledger"
	"github.com/getpup/schemamigrate/lifecycle"
	"github.com/getpup/schemamigrate/lock"
	"github.com/getpup/schemamigrate/metrics"
	"github.com/getpup/schemamigrate/pkg/ddl"
	"github.com/getpup/schemamigrate/registry"
	"github.com/getpup/schemamigrate/store"
	boltstore "github.com/getpup/schemamigrate/store/bolt"
	"github.com/getpup/schemamigrate/store/sqlstore"
)

// Re-export core types from root package
type (
	// Identifier orders migrations.
	Identifier = rootpkg.Identifier

	// Definition is a reversible schema migration.
	Definition = rootpkg.Definition

	// SchemaTx is the handle a migration function edits the schema through.
	SchemaTx = rootpkg.SchemaTx

	// Collection is a named set of fields plus access rules.
	Collection = rootpkg.Collection

	// Field is a typed attribute of a collection.
	Field = rootpkg.Field

	// Result summarises an Up or Down run.
	Result = rootpkg.Result

	// MigrationStatus describes one migration as reported by Status.
	MigrationStatus = rootpkg.MigrationStatus
)

// Option configures a migrator.
type Option func(*config)

// config holds the internal configuration for creating a migrator.
type config struct {
	db                *sql.DB
	dialect           ddl.Dialect
	boltDB            *bbolt.DB
	tableConfig       ddl.Config
	store             store.SchemaStore
	ledger            ledger.Ledger
	locker            lock.Locker
	definitions       engine.Source
	lockKey           string
	lockTimeout       time.Duration
	heartbeatInterval time.Duration
	staleTimeout      time.Duration
	logger            rootpkg.Logger
	metricsEnabled    *bool
}

// New creates a migration engine with the given options.
//
// One backend is required:
//   - WithDatabase: a PostgreSQL, MySQL or SQLite database holding the
//     collections, ledger and lease tables
//   - WithBolt: a bbolt file holding collections and ledger
//   - WithStore and WithLedger: custom implementations
//
// Optional configuration (with defaults):
//   - WithRegistry: migration definitions (default: registry.Default())
//   - WithLocker: run lock (default: advisory lock on PostgreSQL, GET_LOCK on
//     MySQL, a heartbeated lease on SQLite, a process-local mutex otherwise)
//   - WithLockKey: run lock name (default: engine.DefaultLockKey)
//   - WithLockTimeout: how long to wait for the run lock (default: 0, fail fast)
//   - WithHeartbeatInterval, WithStaleTimeout: lease timings (default: 5s, 30s)
//   - WithTableConfig: table names (default: ddl.DefaultConfig())
//   - WithLogger: logger for observability (default: nil)
//   - WithMetricsEnabled: enable Prometheus metrics (default: true)
//
// Example:
//
//	m, err := migrate.New(
//	    migrate.WithDatabase(db, ddl.Postgres),
//	    migrate.WithRegistry(registry.Default()),
//	)
//
// Returns an error if no backend is configured.
func New(opts ...Option) (*engine.Engine, error) {
	// Apply defaults
	cfg := &config{
		heartbeatInterval: 5 * time.Second,
		staleTimeout:      30 * time.Second,
		tableConfig:       ddl.DefaultConfig(),
	}

	// Apply options
	for _, opt := range opts {
		opt(cfg)
	}

	if err := cfg.tableConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid table configuration: %w", err)
	}

	if cfg.db != nil {
		if cfg.store == nil {
			cfg.store = sqlstore.NewWithConfig(cfg.db, cfg.dialect, cfg.tableConfig)
		}
		if cfg.ledger == nil {
			cfg.ledger = sqlledger.NewWithConfig(cfg.db, cfg.dialect, cfg.tableConfig)
		}
	}
	if cfg.boltDB != nil {
		if cfg.store == nil {
			s, err := boltstore.New(cfg.boltDB)
			if err != nil {
				return nil, err
			}
			cfg.store = s
		}
		if cfg.ledger == nil {
			l, err := boltledger.New(cfg.boltDB)
			if err != nil {
				return nil, err
			}
			cfg.ledger = l
		}
	}

	// Validate required fields
	if cfg.store == nil {
		return nil, fmt.Errorf("schema store is required: use WithDatabase, WithBolt or WithStore option")
	}
	if cfg.ledger == nil {
		return nil, fmt.Errorf("ledger is required: use WithDatabase, WithBolt or WithLedger option")
	}

	if cfg.definitions == nil {
		cfg.definitions = registry.Default()
	}
	if cfg.locker == nil {
		cfg.locker = cfg.defaultLocker()
	}

	return engine.New(engine.Config{
		Store:          cfg.store,
		Ledger:         cfg.ledger,
		Definitions:    cfg.definitions,
		Locker:         cfg.locker,
		LockKey:        cfg.lockKey,
		Logger:         cfg.logger,
		MetricsEnabled: cfg.metricsEnabled,
	}), nil
}

func (c *config) defaultLocker() lock.Locker {
	if c.db == nil {
		return lock.NewMutexLocker()
	}

	switch c.dialect {
	case ddl.Postgres:
		return lock.NewPostgresLocker(c.db)
	case ddl.MySQL:
		return lock.NewMySQLLocker(c.db, c.lockTimeout)
	default:
		metricsEnabled := c.metricsEnabled == nil || *c.metricsEnabled
		var collector *metrics.Collector
		if metricsEnabled {
			key := c.lockKey
			if key == "" {
				key = engine.DefaultLockKey
			}
			collector = metrics.NewCollector(key)
		}
		return lifecycle.New(lifecycle.Config{
			Store:             lock.NewSQLLeaseStoreWithConfig(c.db, c.dialect, c.tableConfig),
			HeartbeatInterval: c.heartbeatInterval,
			StaleTimeout:      c.staleTimeout,
			AcquireTimeout:    c.lockTimeout,
			Logger:            c.logger,
			Collector:         collector,
		})
	}
}

// EnsureSchema creates the ledger, journal, lease and collections tables if
// they don't exist.
func EnsureSchema(ctx context.Context, db *sql.DB, dialect ddl.Dialect, tableConfig ddl.Config) error {
	stmts, err := ddl.Statements(dialect, &tableConfig)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create migration tables: %w", err)
		}
	}
	return nil
}

// WithDatabase stores collections, ledger and leases in db using dialect.
func WithDatabase(db *sql.DB, dialect ddl.Dialect) Option {
	return func(c *config) {
		c.db = db
		c.dialect = dialect
	}
}

// WithBolt stores collections and ledger in a bbolt database.
func WithBolt(db *bbolt.DB) Option {
	return func(c *config) {
		c.boltDB = db
	}
}

// WithStore sets a custom schema store.
func WithStore(s store.SchemaStore) Option {
	return func(c *config) {
		c.store = s
	}
}

// WithLedger sets a custom ledger.
func WithLedger(l ledger.Ledger) Option {
	return func(c *config) {
		c.ledger = l
	}
}

// WithLocker sets a custom run lock.
func WithLocker(l lock.Locker) Option {
	return func(c *config) {
		c.locker = l
	}
}

// WithRegistry sets the source of migration definitions.
func WithRegistry(defs engine.Source) Option {
	return func(c *config) {
		c.definitions = defs
	}
}

// WithLockKey sets the run lock name.
func WithLockKey(key string) Option {
	return func(c *config) {
		c.lockKey = key
	}
}

// WithLockTimeout sets how long to wait for a held run lock.
func WithLockTimeout(timeout time.Duration) Option {
	return func(c *config) {
		c.lockTimeout = timeout
	}
}

// WithHeartbeatInterval sets the lease heartbeat interval.
func WithHeartbeatInterval(interval time.Duration) Option {
	return func(c *config) {
		c.heartbeatInterval = interval
	}
}

// WithStaleTimeout sets how long a lease may go without a heartbeat.
func WithStaleTimeout(timeout time.Duration) Option {
	return func(c *config) {
		c.staleTimeout = timeout
	}
}

// WithTableConfig sets custom table names.
func WithTableConfig(tableConfig ddl.Config) Option {
	return func(c *config) {
		c.tableConfig = tableConfig
	}
}

// WithLogger sets the logger.
func WithLogger(logger rootpkg.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithMetricsEnabled enables or disables Prometheus metrics.
func WithMetricsEnabled(enabled bool) Option {
	return func(c *config) {
		c.metricsEnabled = &enabled
	}
}
