package sqlstore

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getpup/schemamigrate"
	"github.com/getpup/schemamigrate/pkg/ddl"
	"github.com/getpup/schemamigrate/store"
)

func newSQLiteStore(t *testing.T) *Store {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	config := ddl.DefaultConfig()
	stmts, err := ddl.Statements(ddl.SQLite, &config)
	require.NoError(t, err)
	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}

	return New(db, ddl.SQLite)
}

func checklists() *schemamigrate.Collection {
	return &schemamigrate.Collection{
		ID:   "pbc_1312009135",
		Name: "checklists",
		Type: "base",
		Fields: schemamigrate.Fields{
			{ID: "text3208210256", Name: "id", Type: schemamigrate.FieldTypeText, System: true, PrimaryKey: true},
			{ID: "json1347970455", Name: "tasks", Type: schemamigrate.FieldTypeJSON, Required: true, MaxSize: 2000000},
		},
		Rules: schemamigrate.Rules{
			ListRule:   schemamigrate.Rule(""),
			CreateRule: schemamigrate.Rule(`@request.auth.role ~ "Admin"`),
		},
	}
}

func TestTableNames(t *testing.T) {
	t.Run("default table names are used", func(t *testing.T) {
		assert.Equal(t, "schemamigrate.collections", New(nil, ddl.Postgres).table)
		assert.Equal(t, "schemamigrate_collections", New(nil, ddl.SQLite).table)
	})

	t.Run("custom table names are used", func(t *testing.T) {
		config := ddl.DefaultConfig()
		config.SchemaName = "app"
		config.CollectionsTable = "schemas"

		assert.Equal(t, "app.schemas", NewWithConfig(nil, ddl.MySQL, config).table)
	})
}

func TestSaveAndGet_RoundTrip(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	want := checklists()
	require.NoError(t, s.SaveCollection(ctx, want))

	byID, err := s.GetCollection(ctx, want.ID)
	require.NoError(t, err)
	assert.Equal(t, want, byID)

	byName, err := s.GetCollection(ctx, "checklists")
	require.NoError(t, err)
	assert.Equal(t, want, byName)

	assert.Nil(t, byID.ViewRule, "null rule must survive storage")
	require.NotNil(t, byID.ListRule)
	assert.Equal(t, "", *byID.ListRule)
}

func TestGetCollection_NotFound(t *testing.T) {
	s := newSQLiteStore(t)

	_, err := s.GetCollection(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSaveCollection_Replaces(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	c := checklists()
	require.NoError(t, s.SaveCollection(ctx, c))

	require.NoError(t, c.Fields.RemoveByID("json1347970455"))
	c.Name = "lists"
	require.NoError(t, s.SaveCollection(ctx, c))

	got, err := s.GetCollection(ctx, "lists")
	require.NoError(t, err)
	assert.Equal(t, []string{"text3208210256"}, got.Fields.IDs())

	_, err = s.GetCollection(ctx, "checklists")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSaveCollection_NameConflict(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveCollection(ctx, checklists()))

	err := s.SaveCollection(ctx, &schemamigrate.Collection{ID: "pbc_other", Name: "checklists"})
	assert.ErrorIs(t, err, store.ErrNameConflict)
}

func TestListCollections(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	empty, err := s.ListCollections(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	require.NoError(t, s.SaveCollection(ctx, &schemamigrate.Collection{ID: "pbc_b", Name: "b"}))
	require.NoError(t, s.SaveCollection(ctx, &schemamigrate.Collection{ID: "pbc_a", Name: "a"}))

	list, err := s.ListCollections(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "pbc_a", list[0].ID)
	assert.Equal(t, "pbc_b", list[1].ID)
}

func TestDeleteCollection(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveCollection(ctx, checklists()))
	require.NoError(t, s.DeleteCollection(ctx, "pbc_1312009135"))

	err := s.DeleteCollection(ctx, "pbc_1312009135")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestInterface(t *testing.T) {
	var _ store.SchemaStore = (*Store)(nil)
}
