package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	bbolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/getpup/schemamigrate/engine"
	"github.com/getpup/schemamigrate/internal/cli"
	"github.com/getpup/schemamigrate/logging"
	"github.com/getpup/schemamigrate/metrics"
	"github.com/getpup/schemamigrate/pkg/ddl"
	"github.com/getpup/schemamigrate/pkg/migrate"
	"github.com/getpup/schemamigrate/registry"
)

// options are shared by every subcommand.
type options struct {
	databaseURL   string
	dialect       string
	boltPath      string
	migrationsDir string
	ensureSchema  bool
	schemaName    string
	lockKey       string
	lockTimeout   time.Duration
	metricsAddr   string
	logLevel      zapcore.Level
	logFormat     string
}

// app builds the engine for a subcommand and closes what it opened.
type app struct {
	opts   options
	stdout io.Writer
	stderr io.Writer

	closers []func() error
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	a := &app{stdout: stdout, stderr: stderr}
	defer a.close()

	cmd, err := a.newRootCommand(viper.New())
	if err != nil {
		return err
	}
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cmd.ExecuteContext(ctx)
}

func (a *app) newRootCommand(v *viper.Viper) (*cobra.Command, error) {
	o := &a.opts
	opts := []cli.Opt{
		{DestP: &o.databaseURL, Flag: "database-url", Desc: "database connection string (postgres://..., MySQL DSN, or SQLite path)"},
		{DestP: &o.dialect, Flag: "dialect", Desc: "database dialect: postgres, mysql or sqlite (default: inferred from --database-url)"},
		{DestP: &o.boltPath, Flag: "bolt-path", Desc: "bbolt file holding collections and ledger, instead of a SQL database"},
		{DestP: &o.migrationsDir, Flag: "migrations-dir", Default: "migrations", Desc: "directory of declarative migration files"},
		{DestP: &o.ensureSchema, Flag: "ensure-schema", Default: true, Desc: "create the ledger, journal, lease and collections tables if missing"},
		{DestP: &o.schemaName, Flag: "schema-name", Default: "schemamigrate", Desc: "schema (PostgreSQL), database (MySQL) or table prefix (SQLite) for migration tables"},
		{DestP: &o.lockKey, Flag: "lock-key", Default: engine.DefaultLockKey, Desc: "name of the run lock"},
		{DestP: &o.lockTimeout, Flag: "lock-timeout", Default: time.Duration(0), Desc: "how long to wait for a held run lock"},
		{DestP: &o.metricsAddr, Flag: "metrics-addr", Desc: "serve Prometheus metrics on this address, e.g. :9090"},
		{DestP: &o.logLevel, Flag: "log-level", Default: zapcore.InfoLevel, Desc: "log level: debug, info, warn, error"},
		{DestP: &o.logFormat, Flag: "log-format", Default: "console", Desc: "log format: console or json"},
	}
	for i := range opts {
		opts[i].Persistent = true
	}

	cmd, err := cli.NewCommand(v, &cli.Program{
		Name:  "migrate",
		Short: "Apply, revert and inspect schema migrations",
		Opts:  opts,
	})
	if err != nil {
		return nil, err
	}

	cmd.AddCommand(
		a.newUpCommand(),
		a.newDownCommand(),
		a.newStatusCommand(),
		a.newVerifyCommand(),
		a.newResolveCommand(),
		newVersionCommand(),
	)
	return cmd, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
	a.closers = nil
}

// openEngine opens the configured backend and returns a ready engine.
func (a *app) openEngine(ctx context.Context) (*engine.Engine, error) {
	zl, err := logging.New(a.opts.logLevel, a.opts.logFormat)
	if err != nil {
		return nil, err
	}
	zl = zl.With(zap.String("run", uuid.NewString()))
	logger := logging.NewZap(zl)
	a.closers = append(a.closers, func() error { _ = logger.Sync(); return nil })

	if a.opts.metricsAddr != "" {
		srv := metrics.NewServer(a.opts.metricsAddr)
		srv.Start()
		a.closers = append(a.closers, func() error {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	defs := registry.New()
	if a.opts.migrationsDir != "" {
		if err := defs.RegisterDir(os.DirFS(a.opts.migrationsDir), "."); err != nil {
			return nil, err
		}
	}

	tableConfig := ddl.DefaultConfig()
	tableConfig.SchemaName = a.opts.schemaName

	opts := []migrate.Option{
		migrate.WithRegistry(defs),
		migrate.WithLogger(logger),
		migrate.WithLockKey(a.opts.lockKey),
		migrate.WithLockTimeout(a.opts.lockTimeout),
		migrate.WithTableConfig(tableConfig),
		migrate.WithMetricsEnabled(a.opts.metricsAddr != ""),
	}

	switch {
	case a.opts.boltPath != "":
		db, err := bbolt.Open(a.opts.boltPath, 0o600, &bbolt.Options{Timeout: a.boltTimeout()})
		if err != nil {
			return nil, fmt.Errorf("failed to open bolt database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		opts = append(opts, migrate.WithBolt(db))

	case a.opts.databaseURL != "":
		dialect, dsn, err := resolveDatabase(a.opts.dialect, a.opts.databaseURL)
		if err != nil {
			return nil, err
		}
		db, err := sql.Open(dialect.DriverName(), dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		if dialect == ddl.SQLite {
			db.SetMaxOpenConns(1)
		}
		if err := db.PingContext(ctx); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if a.opts.ensureSchema {
			if err := migrate.EnsureSchema(ctx, db, dialect, tableConfig); err != nil {
				return nil, err
			}
		}
		opts = append(opts, migrate.WithDatabase(db, dialect))

	default:
		return nil, fmt.Errorf("no backend configured: set --database-url or --bolt-path")
	}

	return migrate.New(opts...)
}

func (a *app) boltTimeout() time.Duration {
	// bbolt waits forever on a held file lock when the timeout is zero
	if a.opts.lockTimeout > 0 {
		return a.opts.lockTimeout
	}
	return time.Second
}

// resolveDatabase picks the dialect, inferring it from the URL when not set,
// and returns the DSN the driver expects.
func resolveDatabase(dialectName, url string) (ddl.Dialect, string, error) {
	var dialect ddl.Dialect
	if dialectName != "" {
		d, err := ddl.ParseDialect(dialectName)
		if err != nil {
			return "", "", err
		}
		dialect = d
	} else {
		switch {
		case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
			dialect = ddl.Postgres
		case strings.HasPrefix(url, "sqlite://"), strings.HasPrefix(url, "file:"),
			strings.HasSuffix(url, ".db"), strings.HasSuffix(url, ".sqlite"):
			dialect = ddl.SQLite
		case strings.HasPrefix(url, "mysql://"):
			dialect = ddl.MySQL
		default:
			return "", "", fmt.Errorf("cannot infer dialect from database url; set --dialect")
		}
	}

	switch dialect {
	case ddl.MySQL:
		cfg, err := mysql.ParseDSN(strings.TrimPrefix(url, "mysql://"))
		if err != nil {
			return "", "", fmt.Errorf("invalid mysql dsn: %w", err)
		}
		cfg.ParseTime = true
		return dialect, cfg.FormatDSN(), nil
	case ddl.SQLite:
		return dialect, strings.TrimPrefix(url, "sqlite://"), nil
	default:
		return dialect, url, nil
	}
}
