package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/pantry/internal/logging"
	"github.com/mesh-intelligence/pantry/internal/paths"
	"github.com/mesh-intelligence/pantry/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	envPrefix      = "PANTRY"

	cfgKeyBackend      = "backend"
	cfgKeyDataDir      = "data_dir"
	cfgKeyCodec        = "codec"
	cfgKeySyncStrategy = "sync_strategy"
	cfgKeyBatchSize    = "batch_size"
	cfgKeyRedisAddr    = "redis_addr"
	cfgKeyRedisPrefix  = "redis_prefix"
	cfgKeyLogLevel     = "log_level"

	defaultBackend = types.BackendSQLite
)

// envKeys are the config keys that PANTRY_<KEY> environment variables
// override. data_dir is resolved by package paths instead, which ranks
// config.yaml above the environment.
var envKeys = []string{
	cfgKeyBackend,
	cfgKeyCodec,
	cfgKeySyncStrategy,
	cfgKeyBatchSize,
	cfgKeyRedisAddr,
	cfgKeyRedisPrefix,
	cfgKeyLogLevel,
}

// configFile holds the structure written to config.yaml by init.
type configFile struct {
	Backend      string `yaml:"backend"`
	DataDir      string `yaml:"data_dir,omitempty"`
	Codec        string `yaml:"codec"`
	SyncStrategy string `yaml:"sync_strategy"`
	LogLevel     string `yaml:"log_level"`
}

// loadConfig reads config.yaml from the resolved config directory using
// Viper, layers environment variables and flags on top, and stores the
// result in a.cfg. A missing config.yaml is not an error.
func (a *app) loadConfig(cmd *cobra.Command) error {
	configDir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}
	a.configDir = configDir

	v := viper.New()
	v.SetDefault(cfgKeyBackend, defaultBackend)
	v.SetDefault(cfgKeyCodec, types.CodecJSON)
	v.SetDefault(cfgKeySyncStrategy, types.SyncImmediate)
	v.SetDefault(cfgKeyLogLevel, logging.DefaultLevel)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	v.SetEnvPrefix(envPrefix)
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	pf := cmd.Root().PersistentFlags()
	if err := v.BindPFlag(cfgKeyBackend, pf.Lookup("backend")); err != nil {
		return fmt.Errorf("bind flag: %w", err)
	}
	if err := v.BindPFlag(cfgKeyLogLevel, pf.Lookup("log-level")); err != nil {
		return fmt.Errorf("bind flag: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}

	cfg.DataDir, err = paths.ResolveDataDir(a.flags.dataDir, v.GetString(cfgKeyDataDir))
	if err != nil {
		return fmt.Errorf("resolve data dir: %w", err)
	}
	a.cfg = cfg
	return nil
}

// writeConfigIfMissing creates config.yaml with the current settings if the
// file does not exist. It reports whether a file was written.
func writeConfigIfMissing(path string, cfg types.Config) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat config file: %w", err)
	}

	data, err := yaml.Marshal(&configFile{
		Backend:      cfg.Backend,
		DataDir:      cfg.DataDir,
		Codec:        cfg.GetCodec(),
		SyncStrategy: cfg.GetSyncStrategy(),
		LogLevel:     cfg.LogLevel,
	})
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, err
	}
	return true, nil
}

// newLogger builds the CLI logger on w.
func newLogger(w io.Writer, level string) (zerolog.Logger, error) {
	return logging.New(w, level)
}
