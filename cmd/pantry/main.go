// Package main provides the pantry CLI, a command-line client of the typed
// table store. Generic commands address any table with JSON keys and
// values; the counter command runs the typed API end to end.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if err == nil {
		return exitSuccess
	}

	fmt.Fprintln(stderr, "pantry:", err)
	var ce *cliError
	if errors.As(err, &ce) {
		return ce.code
	}
	// Argument and flag errors come back from cobra unwrapped.
	return exitUserError
}
