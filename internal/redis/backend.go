// Package redis implements a BackingStore on Redis. Each entry is one hash at
// <prefix>:<table>:<key>, so several table stores can share one server under
// different prefixes.
package redis

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	goredis "github.com/go-redis/redis/v9"
	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

// Hash fields of one entry.
const (
	fieldTable     = "table_id"
	fieldKey       = "entry_key"
	fieldValue     = "value"
	fieldChecksum  = "checksum"
	fieldRevision  = "revision"
	fieldCodec     = "codec"
	fieldUpdatedAt = "updated_at"
)

// opTimeout bounds every round trip; the store API itself carries no context.
const opTimeout = 5 * time.Second

// Backend implements types.BackingStore using a Redis client.
type Backend struct {
	attached bool
	prefix   string
	client   *goredis.Client
	log      zerolog.Logger
}

var _ types.Attachable = (*Backend)(nil)

// NewBackend creates a new Redis backend instance.
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

// Attach connects to config.RedisAddr and verifies the server answers.
func (b *Backend) Attach(config types.Config) error {
	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}

	client := goredis.NewClient(&goredis.Options{Addr: config.GetRedisAddr()})
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("ping redis at %s: %w", config.GetRedisAddr(), err)
	}

	b.client = client
	b.prefix = config.GetRedisPrefix()
	b.attached = true
	b.log.Info().Str("addr", config.GetRedisAddr()).Str("prefix", b.prefix).Msg("redis backing store attached")
	return nil
}

// Detach closes the client. Idempotent.
func (b *Backend) Detach() error {
	if !b.attached {
		return nil
	}
	b.attached = false
	err := b.client.Close()
	b.client = nil
	if err != nil {
		return fmt.Errorf("close redis client: %w", err)
	}
	b.log.Info().Str("prefix", b.prefix).Msg("redis backing store detached")
	return nil
}

// Close implements types.BackingStore by detaching.
func (b *Backend) Close() error {
	return b.Detach()
}

// hashKey returns the redis key holding entry.
func (b *Backend) hashKey(entry types.EntryKey) string {
	return fmt.Sprintf("%s:%d:%s", b.prefix, entry.Table, entry.Key)
}

// Load returns the record for entry, or ErrNotFound.
func (b *Backend) Load(entry types.EntryKey) (types.Record, error) {
	if !b.attached {
		return types.Record{}, types.ErrStoreClosed
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	fields, err := b.client.HGetAll(ctx, b.hashKey(entry)).Result()
	if err != nil {
		return types.Record{}, fmt.Errorf("load entry %s: %w", entry, err)
	}
	if len(fields) == 0 {
		return types.Record{}, fmt.Errorf("entry %s: %w", entry, types.ErrNotFound)
	}
	return parseFields(fields)
}

// Contains reports whether a record exists for entry.
func (b *Backend) Contains(entry types.EntryKey) (bool, error) {
	if !b.attached {
		return false, types.ErrStoreClosed
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	n, err := b.client.Exists(ctx, b.hashKey(entry)).Result()
	if err != nil {
		return false, fmt.Errorf("probe entry %s: %w", entry, err)
	}
	return n > 0, nil
}

// Save writes rec as one hash, replacing every field of a prior record.
func (b *Backend) Save(rec types.Record) error {
	if !b.attached {
		return types.ErrStoreClosed
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	err := b.client.HSet(ctx, b.hashKey(rec.Entry), map[string]interface{}{
		fieldTable:     strconv.FormatUint(rec.Entry.Table, 10),
		fieldKey:       rec.Entry.Key,
		fieldValue:     string(rec.Value),
		fieldChecksum:  strconv.FormatUint(rec.Checksum, 16),
		fieldRevision:  rec.Revision,
		fieldCodec:     rec.Codec,
		fieldUpdatedAt: rec.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}).Err()
	if err != nil {
		return fmt.Errorf("save entry %s: %w", rec.Entry, err)
	}
	return nil
}

// Scan calls fn for every record under the prefix in entry key order.
func (b *Backend) Scan(fn func(types.Record) error) error {
	if !b.attached {
		return types.ErrStoreClosed
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var records []types.Record
	iter := b.client.Scan(ctx, 0, scanPattern(b.prefix), 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		fields, err := b.client.HGetAll(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("scan %s: %w", key, err)
		}
		if len(fields) == 0 {
			continue
		}
		rec, err := parseFields(fields)
		if err != nil {
			return err
		}
		// A longer prefix such as "<prefix>:x" also matches the pattern.
		if b.hashKey(rec.Entry) != key {
			continue
		}
		records = append(records, rec)
	}
	if err := iter.Err(); err != nil {
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

// scanPattern returns the SCAN match pattern for every key under prefix,
// with glob metacharacters in prefix escaped.
func scanPattern(prefix string) string {
	var sb strings.Builder
	for _, r := range prefix {
		switch r {
		case '*', '?', '[', ']', '\\':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	sb.WriteString(":*")
	return sb.String()
}

// parseFields converts a hash into a record.
func parseFields(fields map[string]string) (types.Record, error) {
	table, err := strconv.ParseUint(fields[fieldTable], 10, 64)
	if err != nil {
		return types.Record{}, fmt.Errorf("parsing table id: %w", err)
	}
	entry := types.EntryKey{Table: table, Key: fields[fieldKey]}

	sum, err := strconv.ParseUint(fields[fieldChecksum], 16, 64)
	if err != nil {
		return types.Record{}, fmt.Errorf("parsing checksum of %s: %w", entry, err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, fields[fieldUpdatedAt])
	if err != nil {
		return types.Record{}, fmt.Errorf("parsing updated_at of %s: %w", entry, err)
	}
	return types.Record{
		Entry:     entry,
		Value:     []byte(fields[fieldValue]),
		Checksum:  sum,
		Revision:  fields[fieldRevision],
		Codec:     fields[fieldCodec],
		UpdatedAt: updatedAt,
	}, nil
}
