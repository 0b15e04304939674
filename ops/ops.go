// Package ops implements declarative schema operations. A list of operations
// compiles to a schemamigrate.MigrationFunc, so migrations can be authored as
// YAML or JSON documents instead of Go code.
package ops

import (
	"context"
	"errors"
	"fmt"

	"github.com/getpup/schemamigrate"
)

// ErrInvalidOperation indicates an operation is missing required arguments or
// names an unknown kind.
var ErrInvalidOperation = errors.New("invalid operation")

// Kind names an operation.
type Kind string

const (
	KindRemoveField      Kind = "removeField"
	KindAddField         Kind = "addField"
	KindUpdateField      Kind = "updateField"
	KindUpdateCollection Kind = "updateCollection"
	KindCreateCollection Kind = "createCollection"
	KindDeleteCollection Kind = "deleteCollection"
)

// Operation is one declarative schema edit. Which arguments apply depends on Op.
type Operation struct {
	Op Kind `json:"op" yaml:"op"`

	// Collection is the id or name of the collection the operation edits.
	// Not used by createCollection.
	Collection string `json:"collection,omitempty" yaml:"collection,omitempty"`

	// ID is the field id removed by removeField.
	ID string `json:"id,omitempty" yaml:"id,omitempty"`

	// Position is where addField inserts. Nil appends.
	Position *int `json:"position,omitempty" yaml:"position,omitempty"`

	// Field is the field added by addField or replaced by updateField.
	Field *schemamigrate.Field `json:"field,omitempty" yaml:"field,omitempty"`

	// Name renames the collection in updateCollection.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Rules patches access rules in updateCollection. A key mapped to null
	// restricts the rule to superusers; absent keys are left unchanged.
	Rules map[string]*string `json:"rules,omitempty" yaml:"rules,omitempty"`

	// Schema is the collection created by createCollection.
	Schema *schemamigrate.Collection `json:"schema,omitempty" yaml:"schema,omitempty"`
}

// Document is a declarative migration: the operations to apply and the
// operations that revert them.
type Document struct {
	Up   []Operation `json:"up" yaml:"up"`
	Down []Operation `json:"down" yaml:"down"`
}

// Validate checks every operation in both directions.
func (d Document) Validate() error {
	if len(d.Up) == 0 {
		return fmt.Errorf("%w: up has no operations", ErrInvalidOperation)
	}
	for i, op := range d.Up {
		if err := op.Validate(); err != nil {
			return fmt.Errorf("up[%d]: %w", i, err)
		}
	}
	for i, op := range d.Down {
		if err := op.Validate(); err != nil {
			return fmt.Errorf("down[%d]: %w", i, err)
		}
	}
	return nil
}

var ruleKeys = map[string]func(r *schemamigrate.Rules) **string{
	"listRule":   func(r *schemamigrate.Rules) **string { return &r.ListRule },
	"viewRule":   func(r *schemamigrate.Rules) **string { return &r.ViewRule },
	"createRule": func(r *schemamigrate.Rules) **string { return &r.CreateRule },
	"updateRule": func(r *schemamigrate.Rules) **string { return &r.UpdateRule },
	"deleteRule": func(r *schemamigrate.Rules) **string { return &r.DeleteRule },
}

// Validate checks that op carries the arguments its kind needs.
func (op Operation) Validate() error {
	invalid := func(msg string) error {
		return fmt.Errorf("%w: %s: %s", ErrInvalidOperation, op.Op, msg)
	}

	if op.Op != KindCreateCollection && op.Collection == "" {
		return invalid("collection is required")
	}

	switch op.Op {
	case KindRemoveField:
		if op.ID == "" {
			return invalid("id is required")
		}
	case KindAddField, KindUpdateField:
		if op.Field == nil {
			return invalid("field is required")
		}
	case KindUpdateCollection:
		if op.Name == "" && len(op.Rules) == 0 {
			return invalid("name or rules is required")
		}
		for key := range op.Rules {
			if _, ok := ruleKeys[key]; !ok {
				return invalid(fmt.Sprintf("unknown rule %q", key))
			}
		}
	case KindCreateCollection:
		if op.Schema == nil {
			return invalid("schema is required")
		}
	case KindDeleteCollection:
	default:
		return fmt.Errorf("%w: unknown op %q", ErrInvalidOperation, op.Op)
	}
	return nil
}

// Compile returns a migration function that applies list in order.
//
// Edits to one collection are applied to a single loaded copy, which is saved
// once after the last operation. Collections are saved in the order they were
// first touched.
func Compile(list []Operation) schemamigrate.MigrationFunc {
	return func(ctx context.Context, tx schemamigrate.SchemaTx) error {
		a := &applier{tx: tx, created: make(map[string]bool)}
		for i, op := range list {
			if err := a.apply(ctx, op); err != nil {
				return fmt.Errorf("%s #%d: %w", op.Op, i, err)
			}
		}
		return a.flush(ctx)
	}
}

type applier struct {
	tx schemamigrate.SchemaTx

	// loaded holds the working copies in first-touch order.
	loaded  []*schemamigrate.Collection
	created map[string]bool
}

func (a *applier) load(ctx context.Context, idOrName string) (*schemamigrate.Collection, error) {
	for _, c := range a.loaded {
		if c.ID == idOrName {
			return c, nil
		}
	}
	for _, c := range a.loaded {
		if c.Name == idOrName {
			return c, nil
		}
	}

	c, err := a.tx.FindCollectionByNameOrID(ctx, idOrName)
	if err != nil {
		return nil, err
	}
	// an old name still resolves to the copy renamed earlier in the list
	for _, l := range a.loaded {
		if l.ID == c.ID {
			return l, nil
		}
	}
	a.loaded = append(a.loaded, c)
	return c, nil
}

func (a *applier) apply(ctx context.Context, op Operation) error {
	if op.Op == KindCreateCollection {
		return a.create(ctx, op.Schema)
	}

	c, err := a.load(ctx, op.Collection)
	if err != nil {
		return err
	}

	switch op.Op {
	case KindRemoveField:
		return schemamigrate.WithCollection(c.Fields.RemoveByID(op.ID), c.Name)
	case KindAddField:
		pos := len(c.Fields)
		if op.Position != nil {
			pos = *op.Position
		}
		return schemamigrate.WithCollection(c.Fields.AddAt(pos, op.Field.Clone()), c.Name)
	case KindUpdateField:
		return schemamigrate.WithCollection(c.Fields.Update(op.Field.Clone()), c.Name)
	case KindUpdateCollection:
		if op.Name != "" {
			c.Name = op.Name
		}
		for key, value := range op.Rules {
			field, ok := ruleKeys[key]
			if !ok {
				return fmt.Errorf("%w: unknown rule %q", ErrInvalidOperation, key)
			}
			var v *string
			if value != nil {
				v = schemamigrate.Rule(*value)
			}
			*field(&c.Rules) = v
		}
		return nil
	case KindDeleteCollection:
		return a.delete(ctx, c)
	}
	return fmt.Errorf("%w: unknown op %q", ErrInvalidOperation, op.Op)
}

func (a *applier) create(ctx context.Context, schema *schemamigrate.Collection) error {
	if schema == nil {
		return fmt.Errorf("%w: createCollection: schema is required", ErrInvalidOperation)
	}

	_, err := a.load(ctx, schema.ID)
	if err == nil {
		return schemamigrate.NewValidationError(schemamigrate.ErrDuplicateCollection, schema.ID, "", "collection already exists")
	}
	if !errors.Is(err, schemamigrate.ErrUnknownCollection) {
		return err
	}

	c := schema.Clone()
	a.loaded = append(a.loaded, c)
	a.created[c.ID] = true
	return nil
}

func (a *applier) delete(ctx context.Context, c *schemamigrate.Collection) error {
	for i, l := range a.loaded {
		if l == c {
			a.loaded = append(a.loaded[:i], a.loaded[i+1:]...)
			break
		}
	}

	if a.created[c.ID] {
		delete(a.created, c.ID)
		return nil
	}
	return a.tx.Delete(ctx, c.ID)
}

func (a *applier) flush(ctx context.Context) error {
	for _, c := range a.loaded {
		if err := a.tx.Save(ctx, c); err != nil {
			return err
		}
	}
	return nil
}
