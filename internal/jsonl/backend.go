// Package jsonl implements a durable BackingStore kept as a single JSONL file.
// The file is loaded into an in-memory index on Attach and rewritten
// atomically according to the configured sync strategy.
package jsonl

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/pantry/internal/memory"
	"github.com/mesh-intelligence/pantry/pkg/types"
)

// FileName is the JSONL file created inside the data directory.
const FileName = "entries.jsonl"

// recordJSON is the on-disk form of one record. Value is base64 encoded by
// encoding/json, which keeps the file independent of the value codec.
type recordJSON struct {
	TableID   uint64 `json:"table_id"`
	Key       string `json:"key"`
	Value     []byte `json:"value"`
	Checksum  string `json:"checksum"`
	Revision  string `json:"revision"`
	Codec     string `json:"codec"`
	UpdatedAt string `json:"updated_at"`
}

// Backend implements types.BackingStore on a JSONL file.
type Backend struct {
	attached bool
	config   types.Config
	path     string
	index    *memory.Store
	log      zerolog.Logger

	syncStrategy string // immediate, on_close, batch
	batchSize    int
	pending      int // saves not yet written to the file
}

var _ types.Attachable = (*Backend)(nil)

// NewBackend creates a new JSONL backend instance.
// The backend is not attached; call Attach with a Config to initialize.
func NewBackend(log zerolog.Logger) *Backend {
	return &Backend{log: log}
}

// Open creates a backend and attaches it to config.
func Open(config types.Config, log zerolog.Logger) (*Backend, error) {
	b := NewBackend(log)
	if err := b.Attach(config); err != nil {
		return nil, err
	}
	return b, nil
}

// Attach creates DataDir and the JSONL file if needed, then loads every
// record from the file. Malformed lines are skipped; when an entry appears
// more than once the last line wins.
func (b *Backend) Attach(config types.Config) error {
	if b.attached {
		return types.ErrAlreadyAttached
	}

	if err := config.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(config.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	path := filepath.Join(config.DataDir, FileName)
	if err := ensureFile(path); err != nil {
		return err
	}

	index := memory.New()
	skipped, err := loadRecords(path, index)
	if err != nil {
		return fmt.Errorf("load JSONL: %w", err)
	}

	b.config = config
	b.path = path
	b.index = index
	b.syncStrategy = config.GetSyncStrategy()
	b.batchSize = config.GetBatchSize()
	b.pending = 0
	b.attached = true

	b.log.Info().
		Str("path", path).
		Int("records", index.Len()).
		Int("skipped", skipped).
		Str("sync", b.syncStrategy).
		Msg("jsonl backing store attached")
	return nil
}

// Detach writes any pending records and releases the index. Detach is
// idempotent.
func (b *Backend) Detach() error {
	if !b.attached {
		return nil
	}

	if err := b.flush(); err != nil {
		return fmt.Errorf("flush pending writes: %w", err)
	}

	b.attached = false
	if err := b.index.Close(); err != nil {
		return err
	}
	b.index = nil
	b.log.Info().Str("path", b.path).Msg("jsonl backing store detached")
	return nil
}

// Close implements types.BackingStore by detaching.
func (b *Backend) Close() error {
	return b.Detach()
}

// Load returns the record for entry, or ErrNotFound.
func (b *Backend) Load(entry types.EntryKey) (types.Record, error) {
	if !b.attached {
		return types.Record{}, types.ErrStoreClosed
	}
	return b.index.Load(entry)
}

// Contains reports whether a record exists for entry.
func (b *Backend) Contains(entry types.EntryKey) (bool, error) {
	if !b.attached {
		return false, types.ErrStoreClosed
	}
	return b.index.Contains(entry)
}

// Save stores rec in the index and persists according to the sync strategy.
func (b *Backend) Save(rec types.Record) error {
	if !b.attached {
		return types.ErrStoreClosed
	}
	if err := b.index.Save(rec); err != nil {
		return err
	}
	b.pending++

	switch b.syncStrategy {
	case types.SyncOnClose:
		return nil
	case types.SyncBatch:
		if b.pending < b.batchSize {
			return nil
		}
	}
	return b.flush()
}

// Scan calls fn for every record in entry key order.
func (b *Backend) Scan(fn func(types.Record) error) error {
	if !b.attached {
		return types.ErrStoreClosed
	}
	return b.index.Scan(fn)
}

// Pending returns the number of saves not yet written to the file.
func (b *Backend) Pending() int {
	return b.pending
}

// Flush writes pending records to the file regardless of the sync strategy.
func (b *Backend) Flush() error {
	if !b.attached {
		return types.ErrStoreClosed
	}
	return b.flush()
}

// flush rewrites the whole file from the index when saves are pending.
func (b *Backend) flush() error {
	if b.pending == 0 {
		return nil
	}

	err := replaceFile(b.path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		return b.index.Scan(func(rec types.Record) error {
			if err := enc.Encode(toJSON(rec)); err != nil {
				return fmt.Errorf("encode %s: %w", rec.Entry, err)
			}
			return nil
		})
	})
	if err != nil {
		return err
	}
	b.log.Debug().Str("path", b.path).Int("records", b.index.Len()).Int("pending", b.pending).Msg("jsonl flushed")
	b.pending = 0
	return nil
}

func toJSON(rec types.Record) recordJSON {
	return recordJSON{
		TableID:   rec.Entry.Table,
		Key:       rec.Entry.Key,
		Value:     rec.Value,
		Checksum:  strconv.FormatUint(rec.Checksum, 16),
		Revision:  rec.Revision,
		Codec:     rec.Codec,
		UpdatedAt: rec.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// loadRecords reads path into index and returns the number of lines that
// were valid JSON but not valid records.
func loadRecords(path string, index *memory.Store) (int, error) {
	skipped := 0
	err := eachLine(path, func(line []byte) error {
		rec, ok := parseRecord(line)
		if !ok {
			skipped++
			return nil
		}
		return index.Save(rec)
	})
	return skipped, err
}

// parseRecord decodes one line. Unknown fields are ignored.
func parseRecord(line []byte) (types.Record, bool) {
	var rj recordJSON
	if err := json.Unmarshal(line, &rj); err != nil {
		return types.Record{}, false
	}
	if rj.Key == "" {
		return types.Record{}, false
	}
	sum, err := strconv.ParseUint(rj.Checksum, 16, 64)
	if err != nil {
		return types.Record{}, false
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, rj.UpdatedAt)
	if err != nil {
		return types.Record{}, false
	}
	return types.Record{
		Entry:     types.EntryKey{Table: rj.TableID, Key: rj.Key},
		Value:     rj.Value,
		Checksum:  sum,
		Revision:  rj.Revision,
		Codec:     rj.Codec,
		UpdatedAt: updatedAt,
	}, true
}
