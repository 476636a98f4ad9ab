package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/pantry/pkg/table"
)

// counterTable holds a single counter under the unit key.
var counterTable = table.NewID[struct{}, uint64](0)

func newCounterCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "counter",
		Short: "Run the counter demo",
		Long:  "Put 3 in the counter table, decrement it in place through a mutable borrow, and print the result.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s *table.Store) error {
				n, err := runCounter(s)
				if err != nil {
					return storeError(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "counter = %d\n", n)
				return nil
			})
		},
	}
}

func runCounter(s *table.Store) (uint64, error) {
	if err := counterTable.Put(s, struct{}{}, 3); err != nil {
		return 0, err
	}
	p, err := counterTable.BorrowMut(s, struct{}{})
	if err != nil {
		return 0, err
	}
	*p--
	return counterTable.Borrow(s, struct{}{})
}
