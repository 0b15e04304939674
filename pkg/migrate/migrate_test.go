package migrate

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bbolt "go.etcd.io/bbolt"

	"github.com/getpup/schemamigrate"
	ledgermemory "github.com/getpup/schemamigrate/ledger/memory"
	"github.com/getpup/schemamigrate/lock"
	"github.com/getpup/schemamigrate/pkg/ddl"
	"github.com/getpup/schemamigrate/registry"
	"github.com/getpup/schemamigrate/store/memory"
	"github.com/getpup/schemamigrate/store/sqlstore"
)

func checklists() *Collection {
	return &Collection{
		ID:   "pbc_1312009135",
		Name: "checklists",
		Fields: schemamigrate.Fields{
			{ID: "text3208210256", Name: "id", Type: schemamigrate.FieldTypeText, System: true, PrimaryKey: true},
			{ID: "json1347970455", Name: "tasks", Type: schemamigrate.FieldTypeJSON},
		},
	}
}

func testRegistry() *registry.Registry {
	return registry.New(
		Definition{
			ID:   1740367227,
			Name: "remove_tasks",
			Up: func(ctx context.Context, tx SchemaTx) error {
				c, err := tx.FindCollectionByNameOrID(ctx, "checklists")
				if err != nil {
					return err
				}
				if err := c.Fields.RemoveByID("json1347970455"); err != nil {
					return err
				}
				return tx.Save(ctx, c)
			},
			Down: func(ctx context.Context, tx SchemaTx) error {
				c, err := tx.FindCollectionByNameOrID(ctx, "checklists")
				if err != nil {
					return err
				}
				if err := c.Fields.AddAt(1, &Field{ID: "json1347970455", Name: "tasks", Type: schemamigrate.FieldTypeJSON}); err != nil {
					return err
				}
				return tx.Save(ctx, c)
			},
		},
	)
}

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNew_MissingBackend(t *testing.T) {
	m, err := New(WithRegistry(registry.New()))

	assert.Error(t, err)
	assert.Nil(t, m)
	assert.Contains(t, err.Error(), "schema store is required")
}

func TestNew_MissingLedger(t *testing.T) {
	m, err := New(WithStore(memory.New()))

	assert.Error(t, err)
	assert.Nil(t, m)
	assert.Contains(t, err.Error(), "ledger is required")
}

func TestNew_InvalidTableConfig(t *testing.T) {
	tableConfig := ddl.DefaultConfig()
	tableConfig.LedgerTable = "ledger; DROP TABLE users"

	m, err := New(
		WithStore(memory.New()),
		WithLedger(ledgermemory.New()),
		WithTableConfig(tableConfig),
	)

	assert.Error(t, err)
	assert.Nil(t, m)
	assert.Contains(t, err.Error(), "invalid table configuration")
}

func TestNew_CustomComponents(t *testing.T) {
	s := memory.New()
	require.NoError(t, s.SaveCollection(context.Background(), checklists()))
	locker := lock.NewMockLocker()

	m, err := New(
		WithStore(s),
		WithLedger(ledgermemory.New()),
		WithLocker(locker),
		WithLockKey("app-schema"),
		WithRegistry(testRegistry()),
		WithMetricsEnabled(false),
	)
	require.NoError(t, err)

	res, err := m.Up(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []Identifier{1740367227}, res.Executed)
	assert.Equal(t, []string{"app-schema"}, locker.AcquireCalls)

	c, err := s.GetCollection(context.Background(), "checklists")
	require.NoError(t, err)
	assert.Nil(t, c.Fields.GetByID("json1347970455"))
}

func TestNew_SQLiteDatabase(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	require.NoError(t, EnsureSchema(ctx, db, ddl.SQLite, ddl.DefaultConfig()))

	m, err := New(
		WithDatabase(db, ddl.SQLite),
		WithRegistry(testRegistry()),
		WithHeartbeatInterval(time.Hour),
		WithStaleTimeout(2*time.Hour),
		WithMetricsEnabled(false),
	)
	require.NoError(t, err)

	_, err = m.Up(ctx, 0)
	assert.ErrorIs(t, err, schemamigrate.ErrUnknownCollection)

	require.NoError(t, sqlstore.New(db, ddl.SQLite).SaveCollection(ctx, checklists()))

	res, err := m.Up(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, Identifier(1740367227), res.LastApplied)

	statuses, err := m.Status(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, Identifier(1740367227), statuses[0].ID)
	assert.Equal(t, schemamigrate.StateApplied, statuses[0].State)
}

func TestNew_Bolt(t *testing.T) {
	ctx := context.Background()
	db, err := bbolt.Open(filepath.Join(t.TempDir(), "schema.db"), 0o600, &bbolt.Options{Timeout: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	m, err := New(
		WithBolt(db),
		WithRegistry(registry.New(
			Definition{
				ID:   1,
				Up:   func(ctx context.Context, tx SchemaTx) error { return tx.Save(ctx, checklists()) },
				Down: func(ctx context.Context, tx SchemaTx) error { return tx.Delete(ctx, "pbc_1312009135") },
			},
		)),
		WithMetricsEnabled(false),
	)
	require.NoError(t, err)

	_, err = m.Up(ctx, 0)
	require.NoError(t, err)

	res, err := m.Down(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []Identifier{1}, res.Executed)
	assert.Equal(t, Identifier(0), res.LastApplied)
}

func TestEnsureSchema_Idempotent(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)

	require.NoError(t, EnsureSchema(ctx, db, ddl.SQLite, ddl.DefaultConfig()))
	require.NoError(t, EnsureSchema(ctx, db, ddl.SQLite, ddl.DefaultConfig()))
}

func TestEnsureSchema_UnsupportedDialect(t *testing.T) {
	err := EnsureSchema(context.Background(), openSQLite(t), ddl.Dialect("oracle"), ddl.DefaultConfig())
	assert.Error(t, err)
}
