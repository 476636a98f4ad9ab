// Package backend opens the BackingStore selected by a Config, keeping the
// concrete implementations internal.
//
// Example:
//
//	bs, err := backend.Open(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: ".pantry-db",
//	}, zerolog.Nop())
//	defer bs.Close()
package backend

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/pantry/internal/jsonl"
	"github.com/mesh-intelligence/pantry/internal/memory"
	"github.com/mesh-intelligence/pantry/internal/redis"
	"github.com/mesh-intelligence/pantry/internal/sqlite"
	"github.com/mesh-intelligence/pantry/pkg/types"
)

// Open validates cfg and returns an attached backing store.
func Open(cfg types.Config, log zerolog.Logger) (types.BackingStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Backend == types.BackendMemory {
		return memory.New(), nil
	}

	b, err := New(cfg.Backend, log)
	if err != nil {
		return nil, err
	}
	if err := b.Attach(cfg); err != nil {
		return nil, err
	}
	return b, nil
}

// New returns an unattached durable backend by name. The memory backend
// has no attach step and is not available here.
func New(name string, log zerolog.Logger) (types.Attachable, error) {
	log = log.With().Str("backend", name).Logger()
	switch name {
	case types.BackendSQLite:
		return sqlite.NewBackend(log), nil
	case types.BackendJSONL:
		return jsonl.NewBackend(log), nil
	case types.BackendRedis:
		return redis.NewBackend(log), nil
	default:
		return nil, fmt.Errorf("%w: %q is not an attachable backend", types.ErrBackendUnknown, name)
	}
}
