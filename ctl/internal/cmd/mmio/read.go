package mmio

import (
	"github.com/spf13/cobra"
	"github.com/thinkparq/fpgakit/ctl/internal/cmdfmt"
	"github.com/thinkparq/fpgakit/ctl/internal/util"
	backend "github.com/thinkparq/fpgakit/ctl/pkg/ctl/mmio"
)

func newReadCmd() *cobra.Command {
	cfg := backend.Access_Config{}
	var flags *accessFlags

	cmd := &cobra.Command{
		Use:   "read <offset>",
		Short: "Read MMIO registers of an accelerator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			offset, err := parseNumber("offset", args[0])
			if err != nil {
				return err
			}
			cfg.Offset = offset
			flags.apply(&cfg)
			return runReadCmd(cmd, cfg)
		},
	}

	flags = addAccessFlags(cmd.Flags(), &cfg)
	cmd.Flags().IntVar(&cfg.Count, "count", 1, "Number of consecutive registers to read.")

	return cmd
}

func runReadCmd(cmd *cobra.Command, cfg backend.Access_Config) error {
	resource, values, err := backend.Read(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	tbl := cmdfmt.NewPrintomatic(
		[]string{"address", "region", "offset", "value"},
		[]string{"offset", "value"},
	)
	defer tbl.PrintRemaining()
	for _, v := range values {
		tbl.AddItem(resource.Address, cfg.Region, util.FormatHex(v.Offset, 32), util.FormatHex(v.Value, int(cfg.Width)))
	}
	return nil
}
