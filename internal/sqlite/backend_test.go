package sqlite

import (
	"database/sql"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

func testConfig(dir string) types.Config {
	return types.Config{
		Backend: types.BackendSQLite,
		DataDir: dir,
	}
}

func TestBackend_Attach(t *testing.T) {
	tmpDir := t.TempDir()

	b := NewBackend(zerolog.Nop())
	require.NoError(t, b.Attach(testConfig(tmpDir)))
	defer b.Detach()

	_, err := os.Stat(filepath.Join(tmpDir, DBFileName))
	assert.NoError(t, err, "pantry.db not created")

	assert.ErrorIs(t, b.Attach(testConfig(tmpDir)), types.ErrAlreadyAttached)
}

func TestBackend_AttachCreatesDataDir(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "nested", "data")

	b, err := Open(testConfig(dataDir), zerolog.Nop())
	require.NoError(t, err)
	defer b.Close()

	info, err := os.Stat(dataDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestBackend_AttachRejectsInvalidConfig(t *testing.T) {
	b := NewBackend(zerolog.Nop())
	err := b.Attach(types.Config{Backend: types.BackendSQLite})
	assert.ErrorIs(t, err, types.ErrDataDirRequired)
}

func TestBackend_Detach(t *testing.T) {
	b, err := Open(testConfig(t.TempDir()), zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, b.Detach())
	require.NoError(t, b.Detach(), "second Detach should not error")

	entry := types.EntryKey{Table: 1, Key: "null"}
	_, err = b.Load(entry)
	assert.ErrorIs(t, err, types.ErrStoreClosed)
	_, err = b.Contains(entry)
	assert.ErrorIs(t, err, types.ErrStoreClosed)
	assert.ErrorIs(t, b.Save(types.NewRecord(entry, types.CodecJSON, []byte("1"))), types.ErrStoreClosed)
	assert.ErrorIs(t, b.Scan(func(types.Record) error { return nil }), types.ErrStoreClosed)
}

func TestBackend_SaveLoad(t *testing.T) {
	b, err := Open(testConfig(t.TempDir()), zerolog.Nop())
	require.NoError(t, err)
	defer b.Close()

	entry := types.EntryKey{Table: 3, Key: `{"id":"abc"}`}

	ok, err := b.Contains(entry)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = b.Load(entry)
	assert.ErrorIs(t, err, types.ErrNotFound)

	rec := types.NewRecord(entry, types.CodecJSON, []byte(`{"count":3}`))
	require.NoError(t, b.Save(rec))

	ok, err = b.Contains(entry)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := b.Load(entry)
	require.NoError(t, err)
	assert.Equal(t, rec.Entry, got.Entry)
	assert.Equal(t, rec.Value, got.Value)
	assert.Equal(t, rec.Checksum, got.Checksum)
	assert.Equal(t, rec.Revision, got.Revision)
	assert.Equal(t, rec.Codec, got.Codec)
	assert.True(t, rec.UpdatedAt.Equal(got.UpdatedAt))
	require.NoError(t, got.Verify())
}

func TestBackend_SaveOverwrites(t *testing.T) {
	b, err := Open(testConfig(t.TempDir()), zerolog.Nop())
	require.NoError(t, err)
	defer b.Close()

	entry := types.EntryKey{Table: 1, Key: "null"}
	require.NoError(t, b.Save(types.NewRecord(entry, types.CodecJSON, []byte("1"))))
	second := types.NewRecord(entry, types.CodecJSON, []byte("2"))
	require.NoError(t, b.Save(second))

	got, err := b.Load(entry)
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), got.Value)
	assert.Equal(t, second.Revision, got.Revision)

	var count int
	require.NoError(t, b.db.QueryRow("SELECT COUNT(*) FROM entries").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestBackend_LargeTableID(t *testing.T) {
	b, err := Open(testConfig(t.TempDir()), zerolog.Nop())
	require.NoError(t, err)
	defer b.Close()

	entry := types.EntryKey{Table: math.MaxUint64, Key: "null"}
	require.NoError(t, b.Save(types.NewRecord(entry, types.CodecJSON, []byte("1"))))

	got, err := b.Load(entry)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), got.Entry.Table)

	var tables []uint64
	require.NoError(t, b.Save(types.NewRecord(types.EntryKey{Table: 1, Key: "null"}, types.CodecJSON, []byte("1"))))
	require.NoError(t, b.Scan(func(rec types.Record) error {
		tables = append(tables, rec.Entry.Table)
		return nil
	}))
	assert.Equal(t, []uint64{1, math.MaxUint64}, tables)
}

func TestBackend_PersistsAcrossReattach(t *testing.T) {
	tmpDir := t.TempDir()
	entry := types.EntryKey{Table: 0, Key: "{}"}

	first, err := Open(testConfig(tmpDir), zerolog.Nop())
	require.NoError(t, err)
	rec := types.NewRecord(entry, types.CodecJSON, []byte("3"))
	require.NoError(t, first.Save(rec))
	require.NoError(t, first.Detach())

	second, err := Open(testConfig(tmpDir), zerolog.Nop())
	require.NoError(t, err)
	defer second.Close()

	got, err := second.Load(entry)
	require.NoError(t, err)
	assert.Equal(t, []byte("3"), got.Value)
	assert.Equal(t, rec.Revision, got.Revision)
}

func TestBackend_LoadDetectsBadChecksumColumn(t *testing.T) {
	b, err := Open(testConfig(t.TempDir()), zerolog.Nop())
	require.NoError(t, err)
	defer b.Close()

	entry := types.EntryKey{Table: 1, Key: "null"}
	require.NoError(t, b.Save(types.NewRecord(entry, types.CodecJSON, []byte("1"))))

	_, err = b.db.Exec("UPDATE entries SET value = ? WHERE table_id = 1", []byte("7"))
	require.NoError(t, err)

	got, err := b.Load(entry)
	require.NoError(t, err)
	assert.ErrorIs(t, got.Verify(), types.ErrCorrupt)

	_, err = b.db.Exec("UPDATE entries SET checksum = 'not-hex' WHERE table_id = 1")
	require.NoError(t, err)
	_, err = b.Load(entry)
	assert.Error(t, err)
}

func TestBackend_SchemaIsIdempotent(t *testing.T) {
	tmpDir := t.TempDir()
	b, err := Open(testConfig(tmpDir), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, b.Close())

	db, err := sql.Open("sqlite", filepath.Join(tmpDir, DBFileName))
	require.NoError(t, err)
	defer db.Close()
	for _, stmt := range schemaDDL {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
}
