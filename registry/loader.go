package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/getpup/schemamigrate"
	"github.com/getpup/schemamigrate/ops"
)

// fileNamePattern matches "<id>_<name>.<ext>", e.g. "1740367227_updated_checklists.yaml".
var fileNamePattern = regexp.MustCompile(`^(\d+)_([A-Za-z0-9_\-]+)\.(yaml|yml|json)$`)

// LoadDir loads every declarative migration file directly under dir.
// Files that don't match the naming pattern are ignored.
func LoadDir(fsys fs.FS, dir string) ([]schemamigrate.Definition, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var defs []schemamigrate.Definition
	for _, e := range entries {
		if e.IsDir() || !fileNamePattern.MatchString(e.Name()) {
			continue
		}
		def, err := LoadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// LoadFile loads one declarative migration file. The identifier and name come
// from the file name.
func LoadFile(fsys fs.FS, name string) (schemamigrate.Definition, error) {
	m := fileNamePattern.FindStringSubmatch(path.Base(name))
	if m == nil {
		return schemamigrate.Definition{}, fmt.Errorf("%w: file name %q is not <id>_<name>.yaml|yml|json",
			schemamigrate.ErrInvalidDefinition, name)
	}

	id, err := schemamigrate.ParseIdentifier(m[1])
	if err != nil {
		return schemamigrate.Definition{}, fmt.Errorf("%w: %s: %v", schemamigrate.ErrInvalidDefinition, name, err)
	}

	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return schemamigrate.Definition{}, fmt.Errorf("failed to read migration %s: %w", name, err)
	}

	return Parse(id, m[2], m[3], data)
}

// Parse builds a definition from a YAML or JSON document. format is the file
// extension without the dot. Unknown keys are rejected.
func Parse(id schemamigrate.Identifier, name, format string, data []byte) (schemamigrate.Definition, error) {
	var doc ops.Document

	switch strings.ToLower(format) {
	case "yaml", "yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			return schemamigrate.Definition{}, invalid(id, err)
		}
	case "json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return schemamigrate.Definition{}, invalid(id, err)
		}
	default:
		return schemamigrate.Definition{}, invalid(id, fmt.Errorf("unsupported format %q", format))
	}

	if err := doc.Validate(); err != nil {
		return schemamigrate.Definition{}, invalid(id, err)
	}

	return schemamigrate.Definition{
		ID:   id,
		Name: name,
		Up:   ops.Compile(doc.Up),
		Down: ops.Compile(doc.Down),
	}, nil
}

func invalid(id schemamigrate.Identifier, err error) error {
	return &schemamigrate.DefinitionError{
		ID:  id,
		Err: fmt.Errorf("%w: %v", schemamigrate.ErrInvalidDefinition, err),
	}
}

// RegisterDir loads dir and registers its definitions.
func (r *Registry) RegisterDir(fsys fs.FS, dir string) error {
	defs, err := LoadDir(fsys, dir)
	if err != nil {
		return err
	}
	r.Register(defs...)
	return nil
}
