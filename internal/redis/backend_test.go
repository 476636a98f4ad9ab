package redis

import (
	"bytes"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

// envTestAddr names a redis server the tests may write to.
const envTestAddr = "PANTRY_TEST_REDIS_ADDR"

func openTestBackend(t *testing.T) *Backend {
	t.Helper()
	return openWithPrefix(t, fmt.Sprintf("pantry-test-%d", time.Now().UnixNano()), zerolog.Nop())
}

func openWithPrefix(t *testing.T, prefix string, log zerolog.Logger) *Backend {
	t.Helper()
	addr := os.Getenv(envTestAddr)
	if addr == "" {
		t.Skipf("%s not set", envTestAddr)
	}
	b, err := Open(types.Config{
		Backend:     types.BackendRedis,
		RedisAddr:   addr,
		RedisPrefix: prefix,
	}, log)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}

func TestParseFields(t *testing.T) {
	rec := types.NewRecord(types.EntryKey{Table: 9, Key: `"a:b"`}, types.CodecJSON, []byte(`{"x":1}`))
	fields := map[string]string{
		fieldTable:     "9",
		fieldKey:       `"a:b"`,
		fieldValue:     `{"x":1}`,
		fieldChecksum:  fmt.Sprintf("%x", rec.Checksum),
		fieldRevision:  rec.Revision,
		fieldCodec:     types.CodecJSON,
		fieldUpdatedAt: rec.UpdatedAt.Format(time.RFC3339Nano),
	}

	got, err := parseFields(fields)
	require.NoError(t, err)
	assert.Equal(t, rec.Entry, got.Entry)
	assert.Equal(t, rec.Value, got.Value)
	assert.Equal(t, rec.Revision, got.Revision)
	require.NoError(t, got.Verify())
}

func TestParseFields_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
	}{
		{"bad table", map[string]string{fieldTable: "x"}},
		{"bad checksum", map[string]string{fieldTable: "1", fieldChecksum: "zz"}},
		{"bad timestamp", map[string]string{fieldTable: "1", fieldChecksum: "1", fieldUpdatedAt: "now"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseFields(tt.fields)
			assert.Error(t, err)
		})
	}
}

func TestHashKey(t *testing.T) {
	b := &Backend{prefix: "pantry"}
	assert.Equal(t, `pantry:3:"k"`, b.hashKey(types.EntryKey{Table: 3, Key: `"k"`}))
}

func TestBackend_Detached(t *testing.T) {
	b := NewBackend(zerolog.Nop())
	entry := types.EntryKey{Table: 1, Key: "null"}

	_, err := b.Load(entry)
	assert.ErrorIs(t, err, types.ErrStoreClosed)
	_, err = b.Contains(entry)
	assert.ErrorIs(t, err, types.ErrStoreClosed)
	assert.ErrorIs(t, b.Save(types.NewRecord(entry, types.CodecJSON, nil)), types.ErrStoreClosed)
	assert.ErrorIs(t, b.Scan(func(types.Record) error { return nil }), types.ErrStoreClosed)
	assert.NoError(t, b.Close())
}

func TestBackend_SaveLoadScan(t *testing.T) {
	b := openTestBackend(t)

	a := types.NewRecord(types.EntryKey{Table: 2, Key: `"a"`}, types.CodecJSON, []byte("1"))
	c := types.NewRecord(types.EntryKey{Table: 1, Key: `"c:d"`}, types.CodecJSON, []byte("2"))
	require.NoError(t, b.Save(a))
	require.NoError(t, b.Save(c))

	ok, err := b.Contains(a.Entry)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := b.Load(a.Entry)
	require.NoError(t, err)
	assert.Equal(t, a.Value, got.Value)
	require.NoError(t, got.Verify())

	_, err = b.Load(types.EntryKey{Table: 5, Key: "null"})
	assert.ErrorIs(t, err, types.ErrNotFound)

	var entries []types.EntryKey
	require.NoError(t, b.Scan(func(rec types.Record) error {
		entries = append(entries, rec.Entry)
		return nil
	}))
	assert.Equal(t, []types.EntryKey{c.Entry, a.Entry}, entries)
}

func TestScanPattern(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{"pantry", "pantry:*"},
		{"a:x", "a:x:*"},
		{"p*", `p\*:*`},
		{"q?[1]", `q\?\[1\]:*`},
		{`back\slash`, `back\\slash:*`},
	}
	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			assert.Equal(t, tt.want, scanPattern(tt.prefix))
		})
	}
}

func TestBackend_ScanIgnoresLongerPrefix(t *testing.T) {
	base := fmt.Sprintf("pantry-test-%d", time.Now().UnixNano())
	outer := openWithPrefix(t, base, zerolog.Nop())
	inner := openWithPrefix(t, base+":x", zerolog.Nop())

	mine := types.NewRecord(types.EntryKey{Table: 1, Key: `"mine"`}, types.CodecJSON, []byte("1"))
	theirs := types.NewRecord(types.EntryKey{Table: 1, Key: `"theirs"`}, types.CodecJSON, []byte("2"))
	require.NoError(t, outer.Save(mine))
	require.NoError(t, inner.Save(theirs))

	var entries []types.EntryKey
	require.NoError(t, outer.Scan(func(rec types.Record) error {
		entries = append(entries, rec.Entry)
		return nil
	}))
	assert.Equal(t, []types.EntryKey{mine.Entry}, entries)
}

func TestBackend_LogsLifecycle(t *testing.T) {
	var buf bytes.Buffer
	b := openWithPrefix(t, fmt.Sprintf("pantry-test-%d", time.Now().UnixNano()), zerolog.New(&buf))

	require.NoError(t, b.Detach())
	assert.Contains(t, buf.String(), "redis backing store attached")
	assert.Contains(t, buf.String(), "redis backing store detached")
}
