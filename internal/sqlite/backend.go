// Package sqlite implements a durable BackingStore on SQLite. Records survive
// process restarts, so a fresh table store over the same data directory sees
// every entry as backed-only until it is first borrowed.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

// DBFileName is the database file created inside the data directory.
const DBFileName = "pantry.db"

// Backend implements types.BackingStore using SQLite.
type Backend struct {
	attached bool
	config   types.Config
	db       *sql.DB
	log      zerolog.Logger
}

var _ types.Attachable = (*Backend)(nil)

// NewBackend creates a new SQLite backend instance.
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

// Attach opens (or creates) the database in config.DataDir and applies the
// schema. Existing records are kept.
// Returns ErrAlreadyAttached if already attached.
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

	dbPath := filepath.Join(config.DataDir, DBFileName)
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", dbPath, err)
	}
	// One connection keeps the store single-writer.
	db.SetMaxOpenConns(1)

	for _, stmt := range schemaDDL {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return fmt.Errorf("apply schema: %w", err)
		}
	}

	b.db = db
	b.config = config
	b.attached = true

	b.log.Info().Str("path", dbPath).Msg("sqlite backing store attached")
	return nil
}

// Detach closes the database. Detach is idempotent; after it all operations
// return ErrStoreClosed.
func (b *Backend) Detach() error {
	if !b.attached {
		return nil
	}
	b.attached = false

	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return fmt.Errorf("close database: %w", err)
		}
		b.db = nil
	}
	b.log.Info().Str("data_dir", b.config.DataDir).Msg("sqlite backing store detached")
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

	row := b.db.QueryRow(selectEntry, int64(entry.Table), entry.Key)
	rec := types.Record{Entry: entry}
	var checksum, updatedAt string
	err := row.Scan(&rec.Value, &checksum, &rec.Revision, &rec.Codec, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Record{}, fmt.Errorf("entry %s: %w", entry, types.ErrNotFound)
	}
	if err != nil {
		return types.Record{}, fmt.Errorf("load entry %s: %w", entry, err)
	}
	if err := decodeMeta(&rec, checksum, updatedAt); err != nil {
		return types.Record{}, err
	}
	return rec, nil
}

// Contains reports whether a record exists for entry.
func (b *Backend) Contains(entry types.EntryKey) (bool, error) {
	if !b.attached {
		return false, types.ErrStoreClosed
	}

	var one int
	err := b.db.QueryRow(existsEntry, int64(entry.Table), entry.Key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("probe entry %s: %w", entry, err)
	}
	return true, nil
}

// Save upserts rec.
func (b *Backend) Save(rec types.Record) error {
	if !b.attached {
		return types.ErrStoreClosed
	}

	value := rec.Value
	if value == nil {
		value = []byte{}
	}
	_, err := b.db.Exec(upsertEntry,
		int64(rec.Entry.Table),
		rec.Entry.Key,
		value,
		strconv.FormatUint(rec.Checksum, 16),
		rec.Revision,
		rec.Codec,
		rec.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save entry %s: %w", rec.Entry, err)
	}
	return nil
}

// Scan calls fn for every record in entry key order.
func (b *Backend) Scan(fn func(types.Record) error) error {
	if !b.attached {
		return types.ErrStoreClosed
	}

	rows, err := b.db.Query(scanEntries)
	if err != nil {
		return fmt.Errorf("scan entries: %w", err)
	}
	defer rows.Close()

	var records []types.Record
	for rows.Next() {
		var (
			rec                 types.Record
			tableID             int64
			checksum, updatedAt string
		)
		if err := rows.Scan(&tableID, &rec.Entry.Key, &rec.Value, &checksum, &rec.Revision, &rec.Codec, &updatedAt); err != nil {
			return fmt.Errorf("scanning entry: %w", err)
		}
		rec.Entry.Table = uint64(tableID)
		if err := decodeMeta(&rec, checksum, updatedAt); err != nil {
			return err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("scan entries: %w", err)
	}

	slices.SortFunc(records, func(a, b types.Record) int {
		switch {
		case a.Entry.Less(b.Entry):
			return -1
		case b.Entry.Less(a.Entry):
			return 1
		}
		return 0
	})
	for _, rec := range records {
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

// decodeMeta parses the text columns of a row into rec.
func decodeMeta(rec *types.Record, checksum, updatedAt string) error {
	sum, err := strconv.ParseUint(checksum, 16, 64)
	if err != nil {
		return fmt.Errorf("parsing checksum of %s: %w", rec.Entry, err)
	}
	rec.Checksum = sum
	rec.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return fmt.Errorf("parsing updated_at of %s: %w", rec.Entry, err)
	}
	return nil
}
