package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/pantry/pkg/table"
)

func newContainsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "contains <table> <key-json>",
		Short: "Report whether a key has an entry",
		Long:  "Print true if the key has an entry in the table and false otherwise.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTable(args[0])
			if err != nil {
				return err
			}
			key, err := parseKey(args[1])
			if err != nil {
				return err
			}

			return a.withStore(func(s *table.Store) error {
				ok, err := id.Contains(s, key)
				if err != nil {
					return storeError(err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), ok)
				return nil
			})
		},
	}
}
