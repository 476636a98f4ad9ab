package table

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/pantry/internal/memory"
	"github.com/mesh-intelligence/pantry/pkg/backend"
	"github.com/mesh-intelligence/pantry/pkg/codec"
	"github.com/mesh-intelligence/pantry/pkg/erased"
	"github.com/mesh-intelligence/pantry/pkg/types"
)

// Store is the table store: a live cache of erased values in front of a
// write-through backing store of serialized records.
type Store struct {
	entries map[types.EntryKey]*erased.Value
	backing types.BackingStore
	codec   codec.Codec
	log     zerolog.Logger
	closed  bool
}

// Option configures a Store built by New.
type Option func(*Store)

// WithBacking sets the backing store. The Store takes ownership and closes it
// on Close.
func WithBacking(b types.BackingStore) Option {
	return func(s *Store) { s.backing = b }
}

// WithCodec sets the value codec.
func WithCodec(c codec.Codec) Option {
	return func(s *Store) { s.codec = c }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Store) { s.log = log }
}

// New returns an empty store. Without options it uses an in-memory backing
// store, the JSON codec and a no-op logger.
func New(opts ...Option) *Store {
	s := &Store{
		entries: make(map[types.EntryKey]*erased.Value),
		codec:   codec.JSON{},
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.backing == nil {
		s.backing = memory.New()
	}
	return s
}

// Open builds a store from cfg: it opens the configured backend and codec.
func Open(cfg types.Config, log zerolog.Logger) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c, err := codec.ByName(cfg.GetCodec())
	if err != nil {
		return nil, err
	}
	bs, err := backend.Open(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", cfg.Backend, err)
	}
	return New(WithBacking(bs), WithCodec(c), WithLogger(log)), nil
}

// Backing returns the backing store.
func (s *Store) Backing() types.BackingStore {
	return s.backing
}

// Codec returns the value codec.
func (s *Store) Codec() codec.Codec {
	return s.codec
}

// Len returns the number of entries in the live cache.
func (s *Store) Len() int {
	return len(s.entries)
}

// Cached reports whether entry is in the live cache.
func (s *Store) Cached(entry types.EntryKey) bool {
	_, ok := s.entries[entry]
	return ok
}

// ClearCache drops every cached value. The backing store is kept, so the next
// borrow of each entry hydrates it again.
func (s *Store) ClearCache() {
	clear(s.entries)
}

// Close closes the backing store and drops the cache. If the backing store
// fails to close, the store stays open so Close can be retried. Once it has
// succeeded, Close is a no-op.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	if err := s.backing.Close(); err != nil {
		return fmt.Errorf("close backing store: %w", err)
	}
	s.closed = true
	clear(s.entries)
	return nil
}

func put[V any](s *Store, entry types.EntryKey, value V) error {
	if s.closed {
		return types.ErrStoreClosed
	}

	data, err := s.codec.Marshal(value)
	if err != nil {
		return fmt.Errorf("entry %s: %w: %v", entry, types.ErrEncode, err)
	}
	if err := s.backing.Save(types.NewRecord(entry, s.codec.Name(), data)); err != nil {
		return fmt.Errorf("entry %s: save: %w", entry, err)
	}
	s.entries[entry] = erased.New(value)
	return nil
}

func (s *Store) contains(entry types.EntryKey) (bool, error) {
	if s.closed {
		return false, types.ErrStoreClosed
	}
	if _, ok := s.entries[entry]; ok {
		return true, nil
	}
	ok, err := s.backing.Contains(entry)
	if err != nil {
		return false, fmt.Errorf("entry %s: %w", entry, err)
	}
	return ok, nil
}

func borrow[V any](s *Store, entry types.EntryKey) (*V, error) {
	if s.closed {
		return nil, types.ErrStoreClosed
	}

	v, err := ensureCached[V](s, entry)
	if err != nil {
		return nil, err
	}
	p, ok := erased.Mut[V](v)
	if !ok {
		var want V
		return nil, fmt.Errorf("entry %s: %w: cached %s, requested %T", entry, types.ErrTypeMismatch, v.Type(), want)
	}
	return p, nil
}

// ensureCached returns the cached box for entry, hydrating it from the
// backing store when it is not cached yet.
func ensureCached[V any](s *Store, entry types.EntryKey) (*erased.Value, error) {
	if v, ok := s.entries[entry]; ok {
		return v, nil
	}

	rec, err := s.backing.Load(entry)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, fmt.Errorf("entry %s: %w", entry, types.ErrNotFound)
		}
		return nil, fmt.Errorf("entry %s: load: %w", entry, err)
	}
	if err := rec.Verify(); err != nil {
		return nil, err
	}

	dec, err := s.decoderFor(rec)
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w: %v", entry, types.ErrDecode, err)
	}
	var value V
	if err := dec.Unmarshal(rec.Value, &value); err != nil {
		return nil, fmt.Errorf("entry %s: %w: %v", entry, types.ErrDecode, err)
	}

	v := erased.New(value)
	s.entries[entry] = v
	s.log.Debug().
		Uint64("table", entry.Table).
		Str("key", entry.Key).
		Str("revision", rec.Revision).
		Str("codec", rec.Codec).
		Msg("hydrated entry")
	return v, nil
}

// decoderFor picks the codec a record was written with, falling back to the
// store codec for records that do not name one.
func (s *Store) decoderFor(rec types.Record) (codec.Codec, error) {
	if rec.Codec == "" || rec.Codec == s.codec.Name() {
		return s.codec, nil
	}
	return codec.ByName(rec.Codec)
}
