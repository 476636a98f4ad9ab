package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/pantry/pkg/table"
	"github.com/mesh-intelligence/pantry/pkg/types"
)

// dumpLine is one line of dump output.
type dumpLine struct {
	Table     uint64          `json:"table"`
	Key       json.RawMessage `json:"key"`
	Value     json.RawMessage `json:"value,omitempty"`
	Raw       []byte          `json:"raw,omitempty"`
	Checksum  string          `json:"checksum"`
	Revision  string          `json:"revision"`
	Codec     string          `json:"codec"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func newDumpCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Print every backing record as JSON lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s *table.Store) error {
				enc := json.NewEncoder(cmd.OutOrStdout())
				err := s.Backing().Scan(func(rec types.Record) error {
					return enc.Encode(newDumpLine(rec))
				})
				if err != nil {
					return sysError(fmt.Errorf("scan backing store: %w", err))
				}
				return nil
			})
		},
	}
}

// newDumpLine renders rec. Values that are not JSON are emitted base64
// encoded under raw.
func newDumpLine(rec types.Record) dumpLine {
	line := dumpLine{
		Table:     rec.Entry.Table,
		Key:       json.RawMessage(rec.Entry.Key),
		Checksum:  fmt.Sprintf("%016x", rec.Checksum),
		Revision:  rec.Revision,
		Codec:     rec.Codec,
		UpdatedAt: rec.UpdatedAt,
	}
	if json.Valid(rec.Value) {
		line.Value = json.RawMessage(rec.Value)
	} else {
		line.Raw = rec.Value
	}
	return line
}
