package types

import "errors"

// Config holds backend selection and parameters for opening a table store.
type Config struct {
	Backend      string `json:"backend" yaml:"backend" mapstructure:"backend"`
	DataDir      string `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`
	Codec        string `json:"codec" yaml:"codec" mapstructure:"codec"`
	SyncStrategy string `json:"sync_strategy" yaml:"sync_strategy" mapstructure:"sync_strategy"`
	BatchSize    int    `json:"batch_size" yaml:"batch_size" mapstructure:"batch_size"`
	RedisAddr    string `json:"redis_addr" yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPrefix  string `json:"redis_prefix" yaml:"redis_prefix" mapstructure:"redis_prefix"`
	LogLevel     string `json:"log_level" yaml:"log_level" mapstructure:"log_level"`
}

// Supported backend names.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendJSONL  = "jsonl"
	BackendRedis  = "redis"
)

// Supported codec names.
const (
	CodecJSON     = "json"
	CodecJSONIter = "jsoniter"
)

// Sync strategies for the jsonl backend.
const (
	SyncImmediate = "immediate"
	SyncOnClose   = "on_close"
	SyncBatch     = "batch"
)

// Defaults applied by the accessor methods when a field is empty.
const (
	DefaultBatchSize   = 16
	DefaultRedisAddr   = "localhost:6379"
	DefaultRedisPrefix = "pantry"
)

// Config validation errors.
var (
	ErrBackendEmpty        = errors.New("backend must not be empty")
	ErrBackendUnknown      = errors.New("unknown backend")
	ErrCodecUnknown        = errors.New("unknown codec")
	ErrSyncStrategyUnknown = errors.New("unknown sync strategy")
	ErrBatchSizeInvalid    = errors.New("batch size must be positive")
	ErrDataDirRequired     = errors.New("data directory is required for this backend")
)

// knownBackends lists the backends that Validate accepts, and whether each
// one needs a data directory.
var knownBackends = map[string]bool{
	BackendMemory: false,
	BackendSQLite: true,
	BackendJSONL:  true,
	BackendRedis:  false,
}

var knownCodecs = map[string]bool{
	CodecJSON:     true,
	CodecJSONIter: true,
}

var knownSyncStrategies = map[string]bool{
	SyncImmediate: true,
	SyncOnClose:   true,
	SyncBatch:     true,
}

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	needsDir, ok := knownBackends[c.Backend]
	if !ok {
		return ErrBackendUnknown
	}
	if needsDir && c.DataDir == "" {
		return ErrDataDirRequired
	}
	if c.Codec != "" && !knownCodecs[c.Codec] {
		return ErrCodecUnknown
	}
	if c.SyncStrategy != "" && !knownSyncStrategies[c.SyncStrategy] {
		return ErrSyncStrategyUnknown
	}
	if c.BatchSize < 0 {
		return ErrBatchSizeInvalid
	}
	return nil
}

// GetCodec returns the configured codec name, defaulting to json.
func (c Config) GetCodec() string {
	if c.Codec == "" {
		return CodecJSON
	}
	return c.Codec
}

// GetSyncStrategy returns the configured sync strategy, defaulting to immediate.
func (c Config) GetSyncStrategy() string {
	if c.SyncStrategy == "" {
		return SyncImmediate
	}
	return c.SyncStrategy
}

// GetBatchSize returns the configured batch size, defaulting to DefaultBatchSize.
func (c Config) GetBatchSize() int {
	if c.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return c.BatchSize
}

// GetRedisAddr returns the configured redis address.
func (c Config) GetRedisAddr() string {
	if c.RedisAddr == "" {
		return DefaultRedisAddr
	}
	return c.RedisAddr
}

// GetRedisPrefix returns the configured redis key prefix.
func (c Config) GetRedisPrefix() string {
	if c.RedisPrefix == "" {
		return DefaultRedisPrefix
	}
	return c.RedisPrefix
}
