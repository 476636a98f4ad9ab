package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/pantry/internal/paths"
	"github.com/mesh-intelligence/pantry/pkg/backend"
	"github.com/mesh-intelligence/pantry/pkg/types"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize pantry storage",
		Long:  "Create the configuration and data directories, write a default config.yaml if none exists, then open and close the backing store.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runInit(cmd)
		},
	}
}

func (a *app) runInit(cmd *cobra.Command) error {
	if err := a.cfg.Validate(); err != nil {
		return userError(err)
	}
	if err := os.MkdirAll(a.configDir, 0o755); err != nil {
		return sysError(fmt.Errorf("create config directory: %w", err))
	}

	path := paths.ConfigFile(a.configDir)
	wrote, err := writeConfigIfMissing(path, a.cfg)
	if err != nil {
		return sysError(fmt.Errorf("write config: %w", err))
	}

	if a.cfg.Backend != types.BackendMemory {
		// Attach then Detach creates the data directory and schema, or
		// checks that the server answers.
		b, err := backend.New(a.cfg.Backend, a.log)
		if err != nil {
			return userError(err)
		}
		if err := b.Attach(a.cfg); err != nil {
			return sysError(fmt.Errorf("initialize storage: %w", err))
		}
		if err := b.Detach(); err != nil {
			return sysError(fmt.Errorf("finalize storage: %w", err))
		}
	}

	a.log.Info().
		Str("config", path).
		Bool("config_written", wrote).
		Str("backend", a.cfg.Backend).
		Str("data_dir", a.cfg.DataDir).
		Msg("initialized")
	fmt.Fprintf(cmd.OutOrStdout(), "Pantry initialized (%s backend, data dir %s)\n", a.cfg.Backend, a.cfg.DataDir)
	return nil
}
