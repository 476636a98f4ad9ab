package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	backend   string
	logLevel  string
}

// app carries the state shared by the subcommands of one invocation.
type app struct {
	flags     rootFlags
	configDir string
	cfg       types.Config
	log       zerolog.Logger
}

// newRootCmd creates the top-level "pantry" command with global flags and
// all subcommands registered.
func newRootCmd() *cobra.Command {
	a := &app{log: zerolog.Nop()}

	root := &cobra.Command{
		Use:   "pantry",
		Short: "A typed table store",
		Long: `Pantry stores values of many types in numbered tables, addressed by
table id and key. Entries are written through to a backing store
(sqlite, jsonl, redis or memory) and read back lazily.`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	pf.StringVar(&a.flags.dataDir, "data-dir", "", "data directory (default: platform data dir)")
	pf.StringVar(&a.flags.backend, "backend", "", "backing store: memory, sqlite, jsonl, redis")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(a),
		newPutCmd(a),
		newGetCmd(a),
		newContainsCmd(a),
		newDumpCmd(a),
		newCounterCmd(a),
	)
	return root
}

// setup resolves configuration and the logger before any subcommand runs.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "version" {
		return nil
	}
	if err := a.loadConfig(cmd); err != nil {
		return sysError(err)
	}
	log, err := newLogger(cmd.ErrOrStderr(), a.cfg.LogLevel)
	if err != nil {
		return userError(err)
	}
	a.log = log
	return nil
}
