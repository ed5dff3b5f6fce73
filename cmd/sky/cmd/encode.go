package cmd

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ssargent/skydb/pkg/codec"
)

func newEncodeCmd(a *app) *cobra.Command {
	var flags eventFlags

	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Serialize an event and print it as hex",
		Long: `Serialize a single event with the configured codec layout and print the
bytes as hex.

Examples:
  sky encode --timestamp 1325376000000 --action 20
  sky encode --timestamp 1325376000000 --data 1=foo --data page=home --layout fixed`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := flags.build(cmd, a.schema)
			if err != nil {
				return err
			}
			defer e.Free()

			c := codec.NewEventCodecWithLayout(a.config.Layout())
			buf, err := c.Encode(e)
			if err != nil {
				return fmt.Errorf("failed to encode event: %w", err)
			}
			a.metrics.RecordEncoded(c.Layout(), 1, len(buf))

			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(buf))
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}
