package cmd

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ssargent/skydb/pkg/codec"
	"github.com/ssargent/skydb/pkg/store"
)

func newDecodeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "decode <hex>",
		Short: "Decode one or more serialized events",
		Long: `Decode hex encoded bytes holding back-to-back serialized events and print
each event with the number of bytes it consumed. Decoding stops at the first
malformed record.

Example:
  sky decode 0180a0c3b4c9260014`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			buf, err := hex.DecodeString(strings.TrimSpace(strings.TrimPrefix(args[0], "0x")))
			if err != nil {
				return fmt.Errorf("invalid hex input: %w", err)
			}

			c := codec.NewEventCodecWithLayout(a.config.Layout())
			out := cmd.OutOrStdout()
			for i, off := 0, 0; off < len(buf); i++ {
				e, n, err := c.Decode(buf[off:])
				if err != nil {
					a.metrics.RecordDecodeError(c.Layout(), err)
					return &store.ScanError{Index: i, Offset: off, Err: err}
				}
				fmt.Fprintf(out, "%d\t@%d\t%d bytes\t%s\n", i, off, n, e)
				e.Free()
				off += n
			}
			return nil
		},
	}
}
