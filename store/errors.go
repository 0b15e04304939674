package store

import (
	"errors"

	"github.com/getpup/schemamigrate"
)

var (
	// ErrNotFound indicates the collection does not exist.
	ErrNotFound = schemamigrate.ErrCollectionNotFound

	// ErrNameConflict indicates another collection already uses the name.
	ErrNameConflict = errors.New("collection name already in use")
)
