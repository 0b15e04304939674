package engine

import (
	"context"

	"github.com/getpup/schemamigrate"
)

func boolPtr(b bool) *bool { return &b }

func checklistsCollection() *schemamigrate.Collection {
	return &schemamigrate.Collection{
		ID:   "pbc_1312009135",
		Name: "checklists",
		Type: "base",
		Fields: schemamigrate.Fields{
			{ID: "text3208210256", Name: "id", Type: schemamigrate.FieldTypeText, System: true, PrimaryKey: true, Required: true},
			{ID: "text724990059", Name: "title", Type: schemamigrate.FieldTypeText, Required: true},
			{ID: "relation3146128159", Name: "branch", Type: schemamigrate.FieldTypeRelation, CollectionID: "pbc_2536409462", MaxSelect: 1},
			{ID: "select2363381545", Name: "area", Type: schemamigrate.FieldTypeSelect, MaxSelect: 1, Values: []string{"Kitchen", "Front of House"}},
			{ID: "json1347970455", Name: "tasks", Type: schemamigrate.FieldTypeJSON, Required: true},
		},
		Rules: schemamigrate.Rules{
			ListRule: schemamigrate.Rule("@request.auth.id != ''"),
			ViewRule: schemamigrate.Rule("@request.auth.id != ''"),
		},
	}
}

func branchesCollection() *schemamigrate.Collection {
	return &schemamigrate.Collection{
		ID:   "pbc_2536409462",
		Name: "branches",
		Type: "base",
		Fields: schemamigrate.Fields{
			{ID: "text3208210256", Name: "id", Type: schemamigrate.FieldTypeText, System: true, PrimaryKey: true, Required: true},
			{ID: "text1579384326", Name: "name", Type: schemamigrate.FieldTypeText, Required: true},
		},
	}
}

func milesCollection() *schemamigrate.Collection {
	return &schemamigrate.Collection{
		ID:   "pbc_3131297699",
		Name: "miles",
		Type: "base",
		Fields: schemamigrate.Fields{
			{ID: "text3208210256", Name: "id", Type: schemamigrate.FieldTypeText, System: true, PrimaryKey: true, Required: true},
			{ID: "date2862495610", Name: "date", Type: schemamigrate.FieldTypeDate},
		},
	}
}

func tasksField() *schemamigrate.Field {
	return &schemamigrate.Field{ID: "json1347970455", Name: "tasks", Type: schemamigrate.FieldTypeJSON, Required: true}
}

// editCollection returns a migration function that loads one collection,
// applies edit and saves it.
func editCollection(idOrName string, edit func(c *schemamigrate.Collection) error) schemamigrate.MigrationFunc {
	return func(ctx context.Context, tx schemamigrate.SchemaTx) error {
		c, err := tx.FindCollectionByNameOrID(ctx, idOrName)
		if err != nil {
			return err
		}
		if err := edit(c); err != nil {
			return err
		}
		return tx.Save(ctx, c)
	}
}

// removeTasks mirrors 1740367227_updated_checklists: drop the tasks field and
// restore it at its original position on revert.
func removeTasks() schemamigrate.Definition {
	return schemamigrate.Definition{
		ID:   1740367227,
		Name: "updated_checklists",
		Up: editCollection("pbc_1312009135", func(c *schemamigrate.Collection) error {
			return c.Fields.RemoveByID("json1347970455")
		}),
		Down: editCollection("pbc_1312009135", func(c *schemamigrate.Collection) error {
			return c.Fields.AddAt(4, tasksField())
		}),
	}
}

// addMilesFields mirrors 1741061901_updated_miles.
func addMilesFields() schemamigrate.Definition {
	return schemamigrate.Definition{
		ID:   1741061901,
		Name: "updated_miles",
		Up: editCollection("pbc_3131297699", func(c *schemamigrate.Collection) error {
			if err := c.Fields.AddAt(8, &schemamigrate.Field{ID: "number1910862152", Name: "miles", Type: schemamigrate.FieldTypeNumber}); err != nil {
				return err
			}
			return c.Fields.AddAt(9, &schemamigrate.Field{
				ID: "select1001949196", Name: "reason", Type: schemamigrate.FieldTypeSelect, MaxSelect: 1,
				Values: []string{"Work Assignment", "Client Visit", "Other"},
			})
		}),
		Down: editCollection("pbc_3131297699", func(c *schemamigrate.Collection) error {
			if err := c.Fields.RemoveByID("number1910862152"); err != nil {
				return err
			}
			return c.Fields.RemoveByID("select1001949196")
		}),
	}
}

// renameMiles mirrors 1741062095_updated_miles.
func renameMiles() schemamigrate.Definition {
	rename := func(name string) schemamigrate.MigrationFunc {
		return editCollection("pbc_3131297699", func(c *schemamigrate.Collection) error {
			c.Name = name
			return nil
		})
	}
	return schemamigrate.Definition{ID: 1741062095, Name: "updated_miles", Up: rename("mileage"), Down: rename("miles")}
}

// setRule returns a definition that sets the create rule of checklists.
func setRule(id schemamigrate.Identifier, rule string) schemamigrate.Definition {
	return schemamigrate.Definition{
		ID:   id,
		Name: "updated_checklists",
		Up: editCollection("checklists", func(c *schemamigrate.Collection) error {
			c.CreateRule = schemamigrate.Rule(rule)
			return nil
		}),
		Down: editCollection("checklists", func(c *schemamigrate.Collection) error {
			c.CreateRule = nil
			return nil
		}),
	}
}

func noop(ctx context.Context, tx schemamigrate.SchemaTx) error { return nil }
