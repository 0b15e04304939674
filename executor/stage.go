package executor

import (
	"context"
	"errors"
	"sort"

	"github.com/getpup/schemamigrate"
	"github.com/getpup/schemamigrate/store"
)

// stage is the SchemaTx handed to a migration function. Reads fall through to
// the store; writes are held in memory until commit.
type stage struct {
	store store.SchemaStore

	// staged maps collection id to its pending value; nil marks a deletion.
	staged map[string]*schemamigrate.Collection

	// order is the first-touch order, which is also the persist order.
	order []string
}

func newStage(s store.SchemaStore) *stage {
	return &stage{
		store:  s,
		staged: make(map[string]*schemamigrate.Collection),
	}
}

func (s *stage) FindCollectionByNameOrID(ctx context.Context, idOrName string) (*schemamigrate.Collection, error) {
	c, err := s.find(ctx, idOrName)
	if err != nil {
		return nil, err
	}
	return c.Clone(), nil
}

func (s *stage) find(ctx context.Context, idOrName string) (*schemamigrate.Collection, error) {
	if c, ok := s.staged[idOrName]; ok {
		if c == nil {
			return nil, unknownCollection(idOrName)
		}
		return c, nil
	}
	for _, id := range s.order {
		if c := s.staged[id]; c != nil && c.Name == idOrName {
			return c, nil
		}
	}

	c, err := s.store.GetCollection(ctx, idOrName)
	if errors.Is(err, store.ErrNotFound) {
		return nil, unknownCollection(idOrName)
	}
	if err != nil {
		return nil, &schemamigrate.StoreError{Op: "get", Collection: idOrName, Err: err}
	}

	// The stored copy is stale once the collection was staged under another name or deleted.
	if _, ok := s.staged[c.ID]; ok {
		return nil, unknownCollection(idOrName)
	}

	return c, nil
}

func (s *stage) ListCollections(ctx context.Context) ([]*schemamigrate.Collection, error) {
	view, err := s.view(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*schemamigrate.Collection, len(view))
	for i, c := range view {
		out[i] = c.Clone()
	}
	return out, nil
}

// view returns the store contents with staged changes applied, sorted by id.
func (s *stage) view(ctx context.Context) ([]*schemamigrate.Collection, error) {
	stored, err := s.store.ListCollections(ctx)
	if err != nil {
		return nil, &schemamigrate.StoreError{Op: "list", Err: err}
	}

	view := make([]*schemamigrate.Collection, 0, len(stored)+len(s.staged))
	for _, c := range stored {
		if _, ok := s.staged[c.ID]; !ok {
			view = append(view, c)
		}
	}
	for _, id := range s.order {
		if c := s.staged[id]; c != nil {
			view = append(view, c)
		}
	}

	sort.Slice(view, func(i, j int) bool { return view[i].ID < view[j].ID })
	return view, nil
}

func (s *stage) Save(ctx context.Context, c *schemamigrate.Collection) error {
	if c == nil {
		return schemamigrate.NewValidationError(schemamigrate.ErrInvalidField, "", "", "nil collection")
	}
	if err := c.Validate(); err != nil {
		return err
	}

	s.touch(c.ID)
	s.staged[c.ID] = c.Clone()
	return nil
}

func (s *stage) Delete(ctx context.Context, idOrName string) error {
	c, err := s.find(ctx, idOrName)
	if err != nil {
		return err
	}

	s.touch(c.ID)
	s.staged[c.ID] = nil
	return nil
}

func (s *stage) touch(id string) {
	if _, ok := s.staged[id]; !ok {
		s.order = append(s.order, id)
	}
}

// validate checks invariants that span collections against the final view:
// names are unique and every relation field targets an existing collection.
func (s *stage) validate(ctx context.Context) error {
	if len(s.order) == 0 {
		return nil
	}

	view, err := s.view(ctx)
	if err != nil {
		return err
	}

	touched := make(map[string]bool, len(s.order))
	deleted := make(map[string]bool)
	for _, id := range s.order {
		if s.staged[id] == nil {
			deleted[id] = true
		} else {
			touched[id] = true
		}
	}

	ids := make(map[string]struct{}, len(view))
	names := make(map[string]string, len(view))
	for _, c := range view {
		ids[c.ID] = struct{}{}
		if other, ok := names[c.Name]; ok && (touched[c.ID] || touched[other]) {
			return schemamigrate.NewValidationError(schemamigrate.ErrDuplicateCollection, c.Name, "",
				"used by "+other+" and "+c.ID)
		}
		names[c.Name] = c.ID
	}

	// Untouched collections are only checked for relations into deleted ones.
	for _, c := range view {
		for _, f := range c.Fields {
			if f.Type != schemamigrate.FieldTypeRelation {
				continue
			}
			if !touched[c.ID] && !deleted[f.CollectionID] {
				continue
			}
			if _, ok := ids[f.CollectionID]; !ok {
				return schemamigrate.NewValidationError(schemamigrate.ErrUnknownCollection, c.Name, f.ID,
					"relation target "+f.CollectionID+" does not exist")
			}
		}
	}

	return nil
}

// commit persists staged collections in first-touch order and returns the
// ids written. The returned error is a *schemamigrate.StoreError whose Partial
// flag is set when at least one write succeeded before the failure.
func (s *stage) commit(ctx context.Context) (Outcome, error) {
	var out Outcome
	for _, id := range s.order {
		c := s.staged[id]

		var err error
		op := "save"
		if c == nil {
			op = "delete"
			err = s.store.DeleteCollection(ctx, id)
			if errors.Is(err, store.ErrNotFound) {
				// created and deleted within the same migration
				continue
			}
		} else {
			err = s.store.SaveCollection(ctx, c)
		}

		if err != nil {
			return out, &schemamigrate.StoreError{
				Op:         op,
				Collection: id,
				Partial:    out.Writes() > 0,
				Err:        err,
			}
		}

		if c == nil {
			out.Deleted = append(out.Deleted, id)
		} else {
			out.Saved = append(out.Saved, id)
		}
	}

	return out, nil
}

func unknownCollection(idOrName string) error {
	return schemamigrate.NewValidationError(schemamigrate.ErrUnknownCollection, idOrName, "", "")
}

var _ schemamigrate.SchemaTx = (*stage)(nil)
