package migrate_test

import (
	"context"
	"fmt"
	"log"

	"github.com/getpup/schemamigrate"
	ledgermemory "github.com/getpup/schemamigrate/ledger/memory"
	"github.com/getpup/schemamigrate/pkg/migrate"
	"github.com/getpup/schemamigrate/registry"
	"github.com/getpup/schemamigrate/store/memory"
)

// Example_basic demonstrates applying and reverting a migration
func Example_basic() {
	ctx := context.Background()

	addArea := migrate.Definition{
		ID:   1741061901,
		Name: "updated_branches",
		Up: func(ctx context.Context, tx migrate.SchemaTx) error {
			c, err := tx.FindCollectionByNameOrID(ctx, "branches")
			if err != nil {
				return err
			}
			area := &migrate.Field{ID: "select1001949196", Name: "area", Type: schemamigrate.FieldTypeSelect, Values: []string{"North", "South"}}
			if err := c.Fields.AddAt(len(c.Fields), area); err != nil {
				return err
			}
			return tx.Save(ctx, c)
		},
		Down: func(ctx context.Context, tx migrate.SchemaTx) error {
			c, err := tx.FindCollectionByNameOrID(ctx, "branches")
			if err != nil {
				return err
			}
			if err := c.Fields.RemoveByID("select1001949196"); err != nil {
				return err
			}
			return tx.Save(ctx, c)
		},
	}

	schema := memory.New(&migrate.Collection{
		ID:   "pbc_2536409462",
		Name: "branches",
		Fields: schemamigrate.Fields{
			{ID: "text3208210256", Name: "id", Type: schemamigrate.FieldTypeText, System: true, PrimaryKey: true},
		},
	})

	m, err := migrate.New(
		migrate.WithStore(schema),
		migrate.WithLedger(ledgermemory.New()),
		migrate.WithRegistry(registry.New(addArea)),
		migrate.WithMetricsEnabled(false),
	)
	if err != nil {
		log.Fatalf("Failed to create migrator: %v", err)
	}

	up, err := m.Up(ctx, 0)
	if err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	fmt.Println("applied:", up.Executed)

	down, err := m.Down(ctx, 0)
	if err != nil {
		log.Fatalf("Rollback failed: %v", err)
	}
	fmt.Println("reverted:", down.Executed, "last applied:", down.LastApplied)

	// Output:
	// applied: [1741061901]
	// reverted: [1741061901] last applied: 0
}
