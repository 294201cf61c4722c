package mmio

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/thinkparq/fpgakit/ctl/internal/util"
	backend "github.com/thinkparq/fpgakit/ctl/pkg/ctl/mmio"
)

func newWriteCmd() *cobra.Command {
	cfg := backend.Access_Config{}
	var flags *accessFlags

	cmd := &cobra.Command{
		Use:   "write <offset> <value>",
		Short: "Write an MMIO register of an accelerator",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			offset, err := parseNumber("offset", args[0])
			if err != nil {
				return err
			}
			value, err := parseNumber("value", args[1])
			if err != nil {
				return err
			}
			cfg.Offset = offset
			flags.apply(&cfg)

			resource, err := backend.Write(cmd.Context(), cfg, value)
			if err != nil {
				return err
			}
			fmt.Printf("Wrote %s to offset %s of region %d on %s.\n",
				util.FormatHex(value, int(cfg.Width)), util.FormatHex(offset, 32), cfg.Region, resource.Address)
			return nil
		},
	}

	flags = addAccessFlags(cmd.Flags(), &cfg)

	return cmd
}
