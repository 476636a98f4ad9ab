package jsonl

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

func testConfig(dir, strategy string, batch int) types.Config {
	return types.Config{
		Backend:      types.BackendJSONL,
		DataDir:      dir,
		SyncStrategy: strategy,
		BatchSize:    batch,
	}
}

// countLines returns the number of non-empty lines in the JSONL file.
func countLines(t *testing.T, dir string) int {
	t.Helper()
	n := 0
	require.NoError(t, eachLine(filepath.Join(dir, FileName), func([]byte) error {
		n++
		return nil
	}))
	return n
}

func record(table uint64, key, value string) types.Record {
	return types.NewRecord(types.EntryKey{Table: table, Key: key}, types.CodecJSON, []byte(value))
}

func TestBackend_AttachCreatesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")

	b, err := Open(testConfig(dir, "", 0), zerolog.Nop())
	require.NoError(t, err)
	defer b.Close()

	_, err = os.Stat(filepath.Join(dir, FileName))
	assert.NoError(t, err)

	assert.ErrorIs(t, b.Attach(testConfig(dir, "", 0)), types.ErrAlreadyAttached)
}

func TestBackend_ImmediateSync(t *testing.T) {
	dir := t.TempDir()
	b, err := Open(testConfig(dir, types.SyncImmediate, 0), zerolog.Nop())
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.Save(record(1, `"a"`, "1")))
	assert.Equal(t, 0, b.Pending())
	assert.Equal(t, 1, countLines(t, dir))

	require.NoError(t, b.Save(record(1, `"a"`, "2")))
	assert.Equal(t, 1, countLines(t, dir), "overwrite keeps one line per entry")
}

func TestBackend_OnCloseSync(t *testing.T) {
	dir := t.TempDir()
	b, err := Open(testConfig(dir, types.SyncOnClose, 0), zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, b.Save(record(1, `"a"`, "1")))
	require.NoError(t, b.Save(record(1, `"b"`, "2")))
	assert.Equal(t, 2, b.Pending())
	assert.Equal(t, 0, countLines(t, dir))

	ok, err := b.Contains(types.EntryKey{Table: 1, Key: `"b"`})
	require.NoError(t, err)
	assert.True(t, ok, "pending records are visible before flush")

	require.NoError(t, b.Detach())
	assert.Equal(t, 2, countLines(t, dir))
}

func TestBackend_BatchSync(t *testing.T) {
	dir := t.TempDir()
	b, err := Open(testConfig(dir, types.SyncBatch, 3), zerolog.Nop())
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.Save(record(1, `"a"`, "1")))
	require.NoError(t, b.Save(record(1, `"b"`, "1")))
	assert.Equal(t, 0, countLines(t, dir))

	require.NoError(t, b.Save(record(1, `"c"`, "1")))
	assert.Equal(t, 0, b.Pending())
	assert.Equal(t, 3, countLines(t, dir))

	require.NoError(t, b.Save(record(1, `"d"`, "1")))
	assert.Equal(t, 1, b.Pending())
	require.NoError(t, b.Flush())
	assert.Equal(t, 4, countLines(t, dir))
}

func TestBackend_PersistsAcrossReattach(t *testing.T) {
	dir := t.TempDir()
	first, err := Open(testConfig(dir, "", 0), zerolog.Nop())
	require.NoError(t, err)
	rec := record(0, "{}", "3")
	require.NoError(t, first.Save(rec))
	require.NoError(t, first.Close())

	second, err := Open(testConfig(dir, "", 0), zerolog.Nop())
	require.NoError(t, err)
	defer second.Close()

	got, err := second.Load(types.EntryKey{Table: 0, Key: "{}"})
	require.NoError(t, err)
	assert.Equal(t, []byte("3"), got.Value)
	assert.Equal(t, rec.Revision, got.Revision)
	assert.Equal(t, rec.Checksum, got.Checksum)
	assert.True(t, rec.UpdatedAt.Equal(got.UpdatedAt))
	require.NoError(t, got.Verify())
}

func TestBackend_LoadSkipsBadLines(t *testing.T) {
	dir := t.TempDir()
	content := strings.Join([]string{
		`{"table_id":1,"key":"\"a\"","value":"MQ==","checksum":"not-hex","revision":"r1","codec":"json","updated_at":"2025-01-15T10:30:00Z"}`,
		`{not json`,
		`{"table_id":1,"key":"","value":"MQ==","checksum":"1","revision":"r2","codec":"json","updated_at":"2025-01-15T10:30:00Z"}`,
		`{"table_id":1,"key":"\"b\"","value":"MQ==","checksum":"1","revision":"r3","codec":"json","updated_at":"yesterday"}`,
		`{"table_id":2,"key":"\"c\"","value":"MQ==","checksum":"ff","revision":"r4","codec":"json","updated_at":"2025-01-15T10:30:00Z","future_field":true}`,
	}, "\n") + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644))

	b, err := Open(testConfig(dir, "", 0), zerolog.Nop())
	require.NoError(t, err)
	defer b.Close()

	var got []types.EntryKey
	require.NoError(t, b.Scan(func(rec types.Record) error {
		got = append(got, rec.Entry)
		return nil
	}))
	assert.Equal(t, []types.EntryKey{{Table: 2, Key: `"c"`}}, got)

	rec, err := b.Load(types.EntryKey{Table: 2, Key: `"c"`})
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), rec.Value)
	assert.ErrorIs(t, rec.Verify(), types.ErrCorrupt, "checksum ff does not match the value")
}

func TestBackend_LastLineWins(t *testing.T) {
	dir := t.TempDir()
	content := `{"table_id":1,"key":"null","value":"MQ==","checksum":"0","revision":"r1","codec":"json","updated_at":"2025-01-15T10:30:00Z"}
{"table_id":1,"key":"null","value":"Mg==","checksum":"0","revision":"r2","codec":"json","updated_at":"2025-01-15T10:31:00Z"}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644))

	b, err := Open(testConfig(dir, "", 0), zerolog.Nop())
	require.NoError(t, err)
	defer b.Close()

	rec, err := b.Load(types.EntryKey{Table: 1, Key: "null"})
	require.NoError(t, err)
	assert.Equal(t, "r2", rec.Revision)
	assert.Equal(t, []byte("2"), rec.Value)
}

func TestBackend_Detach(t *testing.T) {
	b, err := Open(testConfig(t.TempDir(), "", 0), zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, b.Detach())
	require.NoError(t, b.Detach())

	entry := types.EntryKey{Table: 1, Key: "null"}
	_, err = b.Load(entry)
	assert.ErrorIs(t, err, types.ErrStoreClosed)
	_, err = b.Contains(entry)
	assert.ErrorIs(t, err, types.ErrStoreClosed)
	assert.ErrorIs(t, b.Save(record(1, "null", "1")), types.ErrStoreClosed)
	assert.ErrorIs(t, b.Scan(func(types.Record) error { return nil }), types.ErrStoreClosed)
	assert.ErrorIs(t, b.Flush(), types.ErrStoreClosed)
}

func TestBackend_LargeRecordReopens(t *testing.T) {
	dir := t.TempDir()
	first, err := Open(testConfig(dir, "", 0), zerolog.Nop())
	require.NoError(t, err)

	big := record(1, `"big"`, `"`+strings.Repeat("a", 13<<20)+`"`)
	require.NoError(t, first.Save(big))
	require.NoError(t, first.Save(record(1, `"small"`, "1")))
	require.NoError(t, first.Close())

	second, err := Open(testConfig(dir, "", 0), zerolog.Nop())
	require.NoError(t, err)
	defer second.Close()

	got, err := second.Load(types.EntryKey{Table: 1, Key: `"big"`})
	require.NoError(t, err)
	assert.Equal(t, len(big.Value), len(got.Value))
	require.NoError(t, got.Verify())

	small, err := second.Load(types.EntryKey{Table: 1, Key: `"small"`})
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), small.Value)
}

func TestBackend_FailedDetachCanRetry(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	b, err := Open(testConfig(dir, types.SyncOnClose, 0), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, b.Save(record(1, `"a"`, "1")))

	require.NoError(t, os.RemoveAll(dir))
	assert.Error(t, b.Detach())
	assert.Equal(t, 1, b.Pending())

	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, b.Detach())
	assert.Equal(t, 1, countLines(t, dir))
}
