package types

import (
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// EntryKey addresses one entry: the numeric table id and the canonical
// encoding of the key within that table. Entries in different tables never
// collide even when their encoded keys are equal.
type EntryKey struct {
	Table uint64
	Key   string
}

// String renders the entry key for logs and error messages.
func (e EntryKey) String() string {
	return fmt.Sprintf("%d/%s", e.Table, e.Key)
}

// Less orders entry keys by table, then by encoded key.
func (e EntryKey) Less(other EntryKey) bool {
	if e.Table != other.Table {
		return e.Table < other.Table
	}
	return e.Key < other.Key
}

// Record is the serialized snapshot of an entry held by a BackingStore.
type Record struct {
	Entry     EntryKey
	Value     []byte
	Checksum  uint64
	Revision  string // UUID v7, assigned on every write
	Codec     string
	UpdatedAt time.Time
}

// NewRecord builds a record for value, computing its checksum and assigning a
// fresh revision id.
func NewRecord(entry EntryKey, codec string, value []byte) Record {
	return Record{
		Entry:     entry,
		Value:     value,
		Checksum:  xxhash.Sum64(value),
		Revision:  newRevision(),
		Codec:     codec,
		UpdatedAt: time.Now().UTC(),
	}
}

// Verify reports ErrCorrupt if the value bytes no longer match the checksum.
func (r Record) Verify() error {
	if xxhash.Sum64(r.Value) != r.Checksum {
		return fmt.Errorf("entry %s revision %s: %w", r.Entry, r.Revision, ErrCorrupt)
	}
	return nil
}

// newRevision generates a UUID v7 revision id.
func newRevision() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to UUID v4 if v7 generation fails
		return uuid.New().String()
	}
	return id.String()
}

// BackingStore holds the serialized snapshot of every entry that was put.
// Implementations are synchronous and are not required to be safe for
// concurrent use.
type BackingStore interface {
	// Load returns the record for entry, or ErrNotFound.
	Load(entry EntryKey) (Record, error)

	// Contains reports whether a record exists for entry.
	Contains(entry EntryKey) (bool, error)

	// Save writes rec, replacing any prior record for the same entry.
	Save(rec Record) error

	// Scan calls fn for every record in entry key order. Scanning stops at
	// the first error returned by fn.
	Scan(fn func(Record) error) error

	// Close releases backend resources. Close is idempotent; other methods
	// return ErrStoreClosed afterwards.
	Close() error
}
