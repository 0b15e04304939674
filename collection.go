package schemamigrate

import (
	"fmt"
	"slices"
)

// Fields is the ordered field list of a collection.
type Fields []*Field

// IndexOf returns the position of the field with the given id, or -1.
func (fs Fields) IndexOf(id string) int {
	for i, f := range fs {
		if f.ID == id {
			return i
		}
	}
	return -1
}

// GetByID returns the field with the given id, or nil.
func (fs Fields) GetByID(id string) *Field {
	if i := fs.IndexOf(id); i >= 0 {
		return fs[i]
	}
	return nil
}

// GetByName returns the field with the given name, or nil.
func (fs Fields) GetByName(name string) *Field {
	for _, f := range fs {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// IDs returns the field ids in order.
func (fs Fields) IDs() []string {
	ids := make([]string, len(fs))
	for i, f := range fs {
		ids[i] = f.ID
	}
	return ids
}

// AddAt inserts f at pos. Positions past the end append, negative positions
// insert at the front. Adding an id that is already present is ErrDuplicateField;
// use Update to change an existing field.
func (fs *Fields) AddAt(pos int, f *Field) error {
	if f == nil {
		return NewValidationError(ErrInvalidField, "", "", "nil field")
	}
	if fs.IndexOf(f.ID) >= 0 {
		return NewValidationError(ErrDuplicateField, "", f.ID, "field id already exists")
	}

	pos = max(0, min(pos, len(*fs)))
	*fs = slices.Insert(*fs, pos, f)
	return nil
}

// Add appends f. See AddAt.
func (fs *Fields) Add(f *Field) error {
	return fs.AddAt(len(*fs), f)
}

// RemoveByID removes the field with the given id.
func (fs *Fields) RemoveByID(id string) error {
	i := fs.IndexOf(id)
	if i < 0 {
		return NewValidationError(ErrUnknownField, "", id, "cannot remove")
	}
	*fs = slices.Delete(*fs, i, i+1)
	return nil
}

// Update replaces the field carrying f.ID in place, keeping its position.
func (fs Fields) Update(f *Field) error {
	if f == nil {
		return NewValidationError(ErrInvalidField, "", "", "nil field")
	}
	i := fs.IndexOf(f.ID)
	if i < 0 {
		return NewValidationError(ErrUnknownField, "", f.ID, "cannot update")
	}
	fs[i] = f
	return nil
}

// Clone returns a deep copy of the field.
func (f *Field) Clone() *Field {
	if f == nil {
		return nil
	}
	c := *f
	c.Values = slices.Clone(f.Values)
	c.MimeTypes = slices.Clone(f.MimeTypes)
	c.Min = clonePtr(f.Min)
	c.Max = clonePtr(f.Max)
	return &c
}

// Validate checks the structural constraints of a single field.
func (f *Field) Validate() error {
	switch {
	case f.ID == "":
		return NewValidationError(ErrInvalidField, "", "", "field id is empty")
	case f.Name == "":
		return NewValidationError(ErrInvalidField, "", f.ID, "field name is empty")
	case !f.Type.Valid():
		return NewValidationError(ErrInvalidField, "", f.ID, fmt.Sprintf("unknown type %q", f.Type))
	}

	if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
		return NewValidationError(ErrInvalidField, "", f.ID, "min is greater than max")
	}

	switch f.Type {
	case FieldTypeSelect:
		if len(f.Values) == 0 {
			return NewValidationError(ErrInvalidField, "", f.ID, "select field has no values")
		}
	case FieldTypeRelation:
		if f.CollectionID == "" {
			return NewValidationError(ErrInvalidField, "", f.ID, "relation field has no target collection")
		}
	}

	if f.MaxSelect > 0 && f.MinSelect > f.MaxSelect {
		return NewValidationError(ErrInvalidField, "", f.ID, "minSelect is greater than maxSelect")
	}
	return nil
}

// Clone returns a deep copy of the collection, so staged edits never alias
// state owned by a schema store.
func (c *Collection) Clone() *Collection {
	if c == nil {
		return nil
	}
	cp := *c
	if c.Fields != nil {
		cp.Fields = make(Fields, len(c.Fields))
		for i, f := range c.Fields {
			cp.Fields[i] = f.Clone()
		}
	}
	cp.Indexes = slices.Clone(c.Indexes)
	cp.ListRule = clonePtr(c.ListRule)
	cp.ViewRule = clonePtr(c.ViewRule)
	cp.CreateRule = clonePtr(c.CreateRule)
	cp.UpdateRule = clonePtr(c.UpdateRule)
	cp.DeleteRule = clonePtr(c.DeleteRule)
	return &cp
}

// Validate checks collection-local invariants: non-empty id and name, unique
// field ids and names, and each field's own constraints. Cross-collection
// invariants (relation targets, unique collection names) are checked by the
// engine against the store.
func (c *Collection) Validate() error {
	if c.ID == "" {
		return NewValidationError(ErrInvalidField, c.Name, "", "collection id is empty")
	}
	if c.Name == "" {
		return NewValidationError(ErrInvalidField, c.ID, "", "collection name is empty")
	}

	ids := make(map[string]struct{}, len(c.Fields))
	names := make(map[string]struct{}, len(c.Fields))
	for _, f := range c.Fields {
		if f == nil {
			return NewValidationError(ErrInvalidField, c.Name, "", "nil field")
		}
		if err := f.Validate(); err != nil {
			return WithCollection(err, c.Name)
		}
		if _, ok := ids[f.ID]; ok {
			return NewValidationError(ErrDuplicateField, c.Name, f.ID, "field id used twice")
		}
		if _, ok := names[f.Name]; ok {
			return NewValidationError(ErrDuplicateField, c.Name, f.ID, fmt.Sprintf("field name %q used twice", f.Name))
		}
		ids[f.ID] = struct{}{}
		names[f.Name] = struct{}{}
	}
	return nil
}

// RelationTargets returns the distinct collection ids referenced by relation fields, in field order.
func (c *Collection) RelationTargets() []string {
	var targets []string
	for _, f := range c.Fields {
		if f.Type == FieldTypeRelation && f.CollectionID != "" && !slices.Contains(targets, f.CollectionID) {
			targets = append(targets, f.CollectionID)
		}
	}
	return targets
}

// WithCollection fills in the collection of a ValidationError that was raised
// without one. Other errors are returned unchanged.
func WithCollection(err error, collection string) error {
	if ve, ok := err.(*ValidationError); ok && ve.Collection == "" {
		cp := *ve
		cp.Collection = collection
		return &cp
	}
	return err
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
