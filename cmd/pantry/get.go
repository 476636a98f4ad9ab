package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/pantry/pkg/table"
)

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <table> <key-json>",
		Short: "Print the value stored under a key",
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
				value, err := id.Borrow(s, key)
				if err != nil {
					return storeError(err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(value))
				return nil
			})
		},
	}
}
