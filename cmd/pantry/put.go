package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/pantry/pkg/table"
)

func newPutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "put <table> <key-json> <value-json>",
		Short: "Store a JSON value under a key",
		Long:  "Store a JSON value in a table under a JSON key, replacing any prior value.",
		Example: `  pantry put 1 '"alice"' '{"age":30}'
  pantry put 0 '{}' 3`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTable(args[0])
			if err != nil {
				return err
			}
			key, err := parseKey(args[1])
			if err != nil {
				return err
			}
			value, err := parseValue(args[2])
			if err != nil {
				return err
			}

			return a.withStore(func(s *table.Store) error {
				if err := id.Put(s, key, value); err != nil {
					return storeError(err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(value))
				return nil
			})
		},
	}
}
