// Package memory implements an in-process BackingStore. Records are kept in
// a btree ordered by entry key, so Scan visits them deterministically.
package memory

import (
	"fmt"

	"github.com/google/btree"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

// degree of the btree; small trees dominate in practice.
const degree = 8

// Store is a BackingStore that keeps records in memory only. It is the
// default backing store for a table store built without a Config.
type Store struct {
	tree   *btree.BTreeG[types.Record]
	closed bool
}

var _ types.BackingStore = (*Store)(nil)

func lessRecord(a, b types.Record) bool {
	return a.Entry.Less(b.Entry)
}

// New returns an empty memory store.
func New() *Store {
	return &Store{tree: btree.NewG(degree, lessRecord)}
}

// Load returns the record for entry, or ErrNotFound.
func (s *Store) Load(entry types.EntryKey) (types.Record, error) {
	if s.closed {
		return types.Record{}, types.ErrStoreClosed
	}
	rec, ok := s.tree.Get(types.Record{Entry: entry})
	if !ok {
		return types.Record{}, fmt.Errorf("entry %s: %w", entry, types.ErrNotFound)
	}
	return rec, nil
}

// Contains reports whether a record exists for entry.
func (s *Store) Contains(entry types.EntryKey) (bool, error) {
	if s.closed {
		return false, types.ErrStoreClosed
	}
	return s.tree.Has(types.Record{Entry: entry}), nil
}

// Save writes rec, replacing any prior record for the same entry. The value
// bytes are copied so later changes by the caller do not leak in.
func (s *Store) Save(rec types.Record) error {
	if s.closed {
		return types.ErrStoreClosed
	}
	rec.Value = append([]byte(nil), rec.Value...)
	s.tree.ReplaceOrInsert(rec)
	return nil
}

// Scan calls fn for each record in entry key order.
func (s *Store) Scan(fn func(types.Record) error) error {
	if s.closed {
		return types.ErrStoreClosed
	}
	var err error
	s.tree.Ascend(func(rec types.Record) bool {
		err = fn(rec)
		return err == nil
	})
	return err
}

// Len returns the number of records.
func (s *Store) Len() int {
	return s.tree.Len()
}

// Close marks the store closed and drops its records. Idempotent.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.tree.Clear(false)
	return nil
}
