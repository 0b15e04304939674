// Package bolt stores the migration ledger and its intent journal in a bbolt
// database, one JSON document per identifier.
package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/getpup/schemamigrate"
	"github.com/getpup/schemamigrate/ledger"
)

var (
	migrationsBucket = []byte("migrationsv1")
	intentsBucket    = []byte("migrationintentsv1")
)

// Ledger is a bbolt implementation of ledger.Ledger and ledger.Journal.
// Keys are big-endian identifiers, so cursor order is identifier order.
type Ledger struct {
	db  *bbolt.DB
	now func() time.Time
}

// New creates the ledger buckets in db if they are missing.
func New(db *bbolt.DB) (*Ledger, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(migrationsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(intentsBucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ledger buckets: %w", err)
	}

	return &Ledger{db: db, now: time.Now}, nil
}

func (l *Ledger) AppliedIdentifiers(ctx context.Context) (map[schemamigrate.Identifier]struct{}, error) {
	applied := make(map[schemamigrate.Identifier]struct{})
	err := l.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(migrationsBucket).ForEach(func(k, _ []byte) error {
			applied[decodeKey(k)] = struct{}{}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return applied, nil
}

func (l *Ledger) Entries(ctx context.Context) ([]schemamigrate.LedgerEntry, error) {
	entries := []schemamigrate.LedgerEntry{}
	err := l.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(migrationsBucket).ForEach(func(_, v []byte) error {
			var e schemamigrate.LedgerEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("failed to decode ledger entry: %w", err)
			}
			entries = append(entries, e)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (l *Ledger) RecordApplied(ctx context.Context, entry schemamigrate.LedgerEntry) error {
	if entry.AppliedAt.IsZero() {
		entry.AppliedAt = l.now()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	return l.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(migrationsBucket)
		key := encodeKey(entry.ID)
		if b.Get(key) != nil {
			return ledger.ErrAlreadyRecorded
		}
		return b.Put(key, data)
	})
}

func (l *Ledger) RecordReverted(ctx context.Context, id schemamigrate.Identifier) error {
	return l.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(migrationsBucket)
		key := encodeKey(id)
		if b.Get(key) == nil {
			return ledger.ErrNotRecorded
		}
		return b.Delete(key)
	})
}

func (l *Ledger) BeginIntent(ctx context.Context, intent ledger.Intent) error {
	if intent.StartedAt.IsZero() {
		intent.StartedAt = l.now()
	}
	data, err := json.Marshal(intent)
	if err != nil {
		return err
	}

	return l.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(intentsBucket).Put(encodeKey(intent.ID), data)
	})
}

func (l *Ledger) EndIntent(ctx context.Context, id schemamigrate.Identifier) error {
	return l.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(intentsBucket).Delete(encodeKey(id))
	})
}

func (l *Ledger) Intents(ctx context.Context) ([]ledger.Intent, error) {
	var intents []ledger.Intent
	err := l.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(intentsBucket).ForEach(func(_, v []byte) error {
			var in ledger.Intent
			if err := json.Unmarshal(v, &in); err != nil {
				return fmt.Errorf("failed to decode intent: %w", err)
			}
			intents = append(intents, in)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return intents, nil
}

// Identifiers are positive, so the unsigned big-endian form sorts correctly.
func encodeKey(id schemamigrate.Identifier) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(id))
	return key
}

func decodeKey(key []byte) schemamigrate.Identifier {
	return schemamigrate.Identifier(binary.BigEndian.Uint64(key))
}

var (
	_ ledger.Ledger  = (*Ledger)(nil)
	_ ledger.Journal = (*Ledger)(nil)
)
