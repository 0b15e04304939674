package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/getpup/schemamigrate"
	"github.com/getpup/schemamigrate/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vehicles() *schemamigrate.Collection {
	return &schemamigrate.Collection{
		ID:   "pbc_3131297699",
		Name: "vehicles",
		Fields: schemamigrate.Fields{
			{ID: "text3208210256", Name: "id", Type: schemamigrate.FieldTypeText, System: true, PrimaryKey: true},
			{ID: "number3069659470", Name: "miles", Type: schemamigrate.FieldTypeNumber},
		},
		Rules: schemamigrate.Rules{ListRule: schemamigrate.Rule("")},
	}
}

func TestGetCollection_ByIDAndName(t *testing.T) {
	s := New(vehicles())
	ctx := context.Background()

	byID, err := s.GetCollection(ctx, "pbc_3131297699")
	require.NoError(t, err)
	assert.Equal(t, "vehicles", byID.Name)

	byName, err := s.GetCollection(ctx, "vehicles")
	require.NoError(t, err)
	assert.Equal(t, "pbc_3131297699", byName.ID)

	_, err = s.GetCollection(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, err, schemamigrate.ErrCollectionNotFound)
}

func TestGetCollection_ReturnsCopy(t *testing.T) {
	s := New(vehicles())
	ctx := context.Background()

	c, err := s.GetCollection(ctx, "vehicles")
	require.NoError(t, err)
	c.Fields[1].Name = "mileage"
	*c.ListRule = "@request.auth.id != ''"

	again, err := s.GetCollection(ctx, "vehicles")
	require.NoError(t, err)
	assert.Equal(t, "miles", again.Fields[1].Name)
	assert.Equal(t, "", *again.ListRule)
}

func TestSaveCollection_InsertAndReplace(t *testing.T) {
	s := New()
	ctx := context.Background()

	c := vehicles()
	require.NoError(t, s.SaveCollection(ctx, c))

	c.Name = "cars"
	require.NoError(t, s.SaveCollection(ctx, c))

	_, err := s.GetCollection(ctx, "vehicles")
	assert.ErrorIs(t, err, store.ErrNotFound, "old name must no longer resolve")

	got, err := s.GetCollection(ctx, "cars")
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
}

func TestSaveCollection_NameConflict(t *testing.T) {
	s := New(vehicles())
	ctx := context.Background()

	other := &schemamigrate.Collection{ID: "pbc_1", Name: "vehicles"}
	err := s.SaveCollection(ctx, other)

	assert.ErrorIs(t, err, store.ErrNameConflict)
}

func TestSaveCollection_StoresCopy(t *testing.T) {
	s := New()
	ctx := context.Background()

	c := vehicles()
	require.NoError(t, s.SaveCollection(ctx, c))
	c.Fields[1].Name = "changed"

	got, err := s.GetCollection(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "miles", got.Fields[1].Name)
}

func TestListCollections_SortedByID(t *testing.T) {
	s := New(
		&schemamigrate.Collection{ID: "pbc_3", Name: "c"},
		&schemamigrate.Collection{ID: "pbc_1", Name: "a"},
		&schemamigrate.Collection{ID: "pbc_2", Name: "b"},
	)

	list, err := s.ListCollections(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "pbc_1", list[0].ID)
	assert.Equal(t, "pbc_2", list[1].ID)
	assert.Equal(t, "pbc_3", list[2].ID)
}

func TestListCollections_Empty(t *testing.T) {
	list, err := New().ListCollections(context.Background())

	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestDeleteCollection(t *testing.T) {
	s := New(vehicles())
	ctx := context.Background()

	require.NoError(t, s.DeleteCollection(ctx, "pbc_3131297699"))

	_, err := s.GetCollection(ctx, "vehicles")
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = s.DeleteCollection(ctx, "pbc_3131297699")
	assert.ErrorIs(t, err, store.ErrNotFound)

	// the name is free again
	require.NoError(t, s.SaveCollection(ctx, &schemamigrate.Collection{ID: "pbc_9", Name: "vehicles"}))
}

func TestSnapshot(t *testing.T) {
	src := New(vehicles())
	ctx := context.Background()

	snap, err := Snapshot(ctx, src)
	require.NoError(t, err)

	require.NoError(t, snap.DeleteCollection(ctx, "pbc_3131297699"))

	_, err = src.GetCollection(ctx, "vehicles")
	assert.NoError(t, err, "snapshot must not share state with its source")
}

func TestConcurrentAccess(t *testing.T) {
	s := New(vehicles())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = s.GetCollection(ctx, "vehicles")
		}()
		go func() {
			defer wg.Done()
			_ = s.SaveCollection(ctx, vehicles())
		}()
	}
	wg.Wait()

	list, err := s.ListCollections(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
