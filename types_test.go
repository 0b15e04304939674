package schemamigrate

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationState_Constants(t *testing.T) {
	t.Run("StateApplied equals applied", func(t *testing.T) {
		assert.Equal(t, MigrationState("applied"), StateApplied)
	})

	t.Run("StateUnapplied equals unapplied", func(t *testing.T) {
		assert.Equal(t, MigrationState("unapplied"), StateUnapplied)
	})
}

func TestIdentifier_StringAndParse(t *testing.T) {
	id := Identifier(1740367227)
	assert.Equal(t, "1740367227", id.String())

	parsed, err := ParseIdentifier("1740367227")
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParseIdentifier("not-a-number")
	assert.Error(t, err)
}

func TestFieldType_Valid(t *testing.T) {
	tests := []struct {
		typ   FieldType
		valid bool
	}{
		{FieldTypeText, true},
		{FieldTypeRelation, true},
		{FieldTypeJSON, true},
		{FieldType("geo"), false},
		{FieldType(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.typ.Valid())
		})
	}
}

func TestCollection_JSONKeepsNullAndEmptyRulesApart(t *testing.T) {
	c := Collection{
		ID:   "pbc_1312009135",
		Name: "checklists",
		Rules: Rules{
			ListRule:   Rule(""),
			CreateRule: Rule(`@request.auth.role ~ "Admin"`),
		},
	}

	data, err := json.Marshal(c)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "", raw["listRule"])
	assert.Nil(t, raw["viewRule"])
	assert.Contains(t, raw, "viewRule")
	assert.Equal(t, `@request.auth.role ~ "Admin"`, raw["createRule"])

	var decoded Collection
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.NotNil(t, decoded.ListRule)
	assert.Equal(t, "", *decoded.ListRule)
	assert.Nil(t, decoded.ViewRule)
}

func TestDefinition_Validate(t *testing.T) {
	noop := func(ctx context.Context, tx SchemaTx) error { return nil }

	t.Run("valid definition", func(t *testing.T) {
		assert.NoError(t, Definition{ID: 1, Up: noop, Down: noop}.Validate())
	})

	t.Run("non-positive identifier", func(t *testing.T) {
		err := Definition{ID: 0, Up: noop, Down: noop}.Validate()
		assert.ErrorIs(t, err, ErrInvalidDefinition)
	})

	t.Run("missing down", func(t *testing.T) {
		err := Definition{ID: 5, Up: noop}.Validate()
		var defErr *DefinitionError
		require.ErrorAs(t, err, &defErr)
		assert.Equal(t, Identifier(5), defErr.ID)
	})
}

func TestDefinition_Func(t *testing.T) {
	var called Direction
	def := Definition{
		ID:   1,
		Up:   func(ctx context.Context, tx SchemaTx) error { called = DirectionUp; return nil },
		Down: func(ctx context.Context, tx SchemaTx) error { called = DirectionDown; return nil },
	}

	require.NoError(t, def.Func(DirectionDown)(context.Background(), nil))
	assert.Equal(t, DirectionDown, called)

	require.NoError(t, def.Func(DirectionUp)(context.Background(), nil))
	assert.Equal(t, DirectionUp, called)
}
