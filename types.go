package schemamigrate

import (
	"strconv"
	"time"
)

// Identifier orders migrations. It is typically the unix timestamp at which a
// migration was authored and must be unique within a registry.
type Identifier int64

// String returns the decimal form of the identifier.
func (id Identifier) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseIdentifier parses the decimal form of an identifier.
func ParseIdentifier(s string) (Identifier, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return Identifier(v), nil
}

// FieldType is the tag of a field's type variant.
type FieldType string

const (
	FieldTypeText     FieldType = "text"
	FieldTypeNumber   FieldType = "number"
	FieldTypeBool     FieldType = "bool"
	FieldTypeDate     FieldType = "date"
	FieldTypeSelect   FieldType = "select"
	FieldTypeRelation FieldType = "relation"
	FieldTypeFile     FieldType = "file"
	FieldTypeJSON     FieldType = "json"
	FieldTypeEmail    FieldType = "email"
	FieldTypeURL      FieldType = "url"
	FieldTypeEditor   FieldType = "editor"
	FieldTypeAutodate FieldType = "autodate"
	FieldTypePassword FieldType = "password"
)

// Valid reports whether t is one of the known field types.
func (t FieldType) Valid() bool {
	switch t {
	case FieldTypeText, FieldTypeNumber, FieldTypeBool, FieldTypeDate,
		FieldTypeSelect, FieldTypeRelation, FieldTypeFile, FieldTypeJSON,
		FieldTypeEmail, FieldTypeURL, FieldTypeEditor, FieldTypeAutodate,
		FieldTypePassword:
		return true
	}
	return false
}

// Field is a typed attribute of a collection.
// Migrations address fields by ID, which survives renames; Name is what humans edit.
type Field struct {
	// ID is the stable, opaque identifier of the field (e.g. "json1347970455").
	ID string `json:"id" yaml:"id"`

	// Name is the mutable field name, unique within its collection.
	Name string `json:"name" yaml:"name"`

	// Type selects which of the constraint fields below are meaningful.
	Type FieldType `json:"type" yaml:"type"`

	Required    bool `json:"required" yaml:"required"`
	Hidden      bool `json:"hidden" yaml:"hidden"`
	Presentable bool `json:"presentable" yaml:"presentable"`
	System      bool `json:"system" yaml:"system"`

	// Values lists the allowed options of a select field.
	Values []string `json:"values,omitempty" yaml:"values,omitempty"`

	// MaxSelect and MinSelect bound multi-valued select, relation and file fields.
	MaxSelect int `json:"maxSelect,omitempty" yaml:"maxSelect,omitempty"`
	MinSelect int `json:"minSelect,omitempty" yaml:"minSelect,omitempty"`

	// CollectionID is the target collection of a relation field.
	CollectionID  string `json:"collectionId,omitempty" yaml:"collectionId,omitempty"`
	CascadeDelete bool   `json:"cascadeDelete,omitempty" yaml:"cascadeDelete,omitempty"`

	// Min and Max are numeric bounds for number fields and length bounds for text fields.
	Min     *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max     *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	OnlyInt bool     `json:"onlyInt,omitempty" yaml:"onlyInt,omitempty"`

	Pattern             string `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	AutogeneratePattern string `json:"autogeneratePattern,omitempty" yaml:"autogeneratePattern,omitempty"`
	PrimaryKey          bool   `json:"primaryKey,omitempty" yaml:"primaryKey,omitempty"`

	// MinDate and MaxDate bound date fields; they are stored as authored.
	MinDate string `json:"minDate,omitempty" yaml:"minDate,omitempty"`
	MaxDate string `json:"maxDate,omitempty" yaml:"maxDate,omitempty"`

	// MaxSize bounds file and json payloads in bytes.
	MaxSize   int64    `json:"maxSize,omitempty" yaml:"maxSize,omitempty"`
	MimeTypes []string `json:"mimeTypes,omitempty" yaml:"mimeTypes,omitempty"`
	Protected bool     `json:"protected,omitempty" yaml:"protected,omitempty"`
}

// Rules holds the collection-level access rules.
// A nil rule is restricted to superusers, an empty rule is public and any
// other value is a predicate evaluated by the external rule engine.
type Rules struct {
	ListRule   *string `json:"listRule" yaml:"listRule"`
	ViewRule   *string `json:"viewRule" yaml:"viewRule"`
	CreateRule *string `json:"createRule" yaml:"createRule"`
	UpdateRule *string `json:"updateRule" yaml:"updateRule"`
	DeleteRule *string `json:"deleteRule" yaml:"deleteRule"`
}

// Rule returns a pointer to s, for building Rules literals.
func Rule(s string) *string {
	return &s
}

// Collection is a named grouping of typed fields plus access rules.
type Collection struct {
	// ID is the stable identifier of the collection (e.g. "pbc_1312009135").
	ID string `json:"id" yaml:"id"`

	// Name is the mutable collection name, unique across the store.
	Name string `json:"name" yaml:"name"`

	// Type is the opaque collection kind (base, auth, view).
	Type string `json:"type,omitempty" yaml:"type,omitempty"`

	System bool `json:"system,omitempty" yaml:"system,omitempty"`

	// Fields is ordered; order affects presentation and is preserved by apply/revert.
	Fields Fields `json:"fields" yaml:"fields"`

	Rules `yaml:",inline"`

	// Indexes are opaque index definitions owned by the storage engine.
	Indexes []string `json:"indexes,omitempty" yaml:"indexes,omitempty"`
}

// MigrationState is the state of a single migration identifier.
type MigrationState string

const (
	// StateUnapplied indicates the migration is not recorded in the ledger.
	StateUnapplied MigrationState = "unapplied"

	// StateApplied indicates the migration is recorded in the ledger.
	StateApplied MigrationState = "applied"
)

// Direction is the direction a migration is executed in.
type Direction string

const (
	// DirectionUp applies a migration.
	DirectionUp Direction = "up"

	// DirectionDown reverts a migration.
	DirectionDown Direction = "down"
)

// LedgerEntry records that a migration has been applied.
type LedgerEntry struct {
	// ID is the identifier of the applied migration.
	ID Identifier `json:"id"`

	// Name is the human readable migration name at the time it was applied.
	Name string `json:"name"`

	// AppliedAt is when the ledger write completed.
	AppliedAt time.Time `json:"appliedAt"`
}

// MigrationStatus describes one identifier as reported by status.
type MigrationStatus struct {
	// ID is the migration identifier.
	ID Identifier

	// Name is the definition name, or the ledger name for orphaned entries.
	Name string

	// State is applied or unapplied.
	State MigrationState

	// AppliedAt is set for applied migrations.
	AppliedAt *time.Time

	// OutOfOrder marks an unapplied definition older than the last applied
	// identifier. Up never applies such a definition.
	OutOfOrder bool

	// Orphaned marks a ledger entry without a matching definition.
	Orphaned bool
}
