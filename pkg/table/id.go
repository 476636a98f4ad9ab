package table

import (
	"fmt"

	"github.com/mesh-intelligence/pantry/pkg/codec"
	"github.com/mesh-intelligence/pantry/pkg/types"
)

// ID identifies a table whose keys are K and whose values are V. Declare one
// ID per logical table, typically as a package-level variable. Two IDs with
// the same number must not disagree on K or V within one store.
type ID[K, V any] struct {
	num uint64
}

// NewID returns the ID for table number num.
func NewID[K, V any](num uint64) ID[K, V] {
	return ID[K, V]{num: num}
}

// Num returns the numeric table id.
func (id ID[K, V]) Num() uint64 {
	return id.num
}

// Entry returns the entry key that key encodes to in this table.
func (id ID[K, V]) Entry(key K) (types.EntryKey, error) {
	enc, err := codec.EncodeKey(key)
	if err != nil {
		return types.EntryKey{}, fmt.Errorf("table %d: encode key: %w: %v", id.num, types.ErrEncode, err)
	}
	return types.EntryKey{Table: id.num, Key: enc}, nil
}

// Put stores value under key, replacing any prior value. The value is written
// to the backing store first; the live cache is updated only if that
// succeeds.
//
// The cache keeps value as given, a shallow copy. If V holds slices, maps or
// pointers, the caller must not modify what they reference after Put: such
// edits reach the cached value (but never the backing record) without going
// through BorrowMut.
func (id ID[K, V]) Put(s *Store, key K, value V) error {
	entry, err := id.Entry(key)
	if err != nil {
		return err
	}
	return put(s, entry, value)
}

// Contains reports whether key has an entry in the live cache or the
// backing store. It changes neither.
func (id ID[K, V]) Contains(s *Store, key K) (bool, error) {
	entry, err := id.Entry(key)
	if err != nil {
		return false, err
	}
	return s.contains(entry)
}

// Borrow returns a copy of the value stored under key, hydrating it from the
// backing store if it is not cached. It returns an error wrapping
// ErrNotFound when the entry was never put.
func (id ID[K, V]) Borrow(s *Store, key K) (V, error) {
	p, err := id.BorrowMut(s, key)
	if err != nil {
		var zero V
		return zero, err
	}
	return *p, nil
}

// BorrowMut returns a pointer to the cached value stored under key, hydrating
// it first if needed. The pointer stays valid until the entry is put again or
// the cache is cleared. Writes through it are not persisted.
func (id ID[K, V]) BorrowMut(s *Store, key K) (*V, error) {
	entry, err := id.Entry(key)
	if err != nil {
		return nil, err
	}
	return borrow[V](s, entry)
}
