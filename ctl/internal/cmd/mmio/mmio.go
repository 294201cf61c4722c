package mmio

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/thinkparq/fpgakit/ctl/internal/util"
	"github.com/thinkparq/fpgakit/ctl/pkg/ctl/device"
	backend "github.com/thinkparq/fpgakit/ctl/pkg/ctl/mmio"
)

// Creates new "mmio" command
func NewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mmio",
		Short: "Access the MMIO registers of an accelerator",
		Long: `Contains commands that map an MMIO region of an accelerator and read or write its registers.
The selection has to match exactly one accelerator, on systems with more than one card use --address.`,
	}

	cmd.AddCommand(newReadCmd())
	cmd.AddCommand(newWriteCmd())

	return cmd
}

// accessFlags are shared by read and write. The width is only known after the flags are parsed.
type accessFlags struct {
	width interface{ Value() fmt.Stringer }
}

func addAccessFlags(flags *pflag.FlagSet, cfg *backend.Access_Config) *accessFlags {
	cfg.Selector = device.NewSelector()
	util.AddSelectorFlags(flags, &cfg.Selector, false)

	width := util.ValidatedStringFlag([]fmt.Stringer{backend.Width32, backend.Width64}, backend.Width64)
	flags.Var(width, "width", "Access width in bits (32 or 64). The offset must be aligned to it.")
	flags.Uint32Var(&cfg.Region, "region", 0, "Index of the MMIO region to map.")
	flags.BoolVar(&cfg.Shared, "shared", false, "Open the accelerator in shared mode so it can be accessed while another process has it open.")
	return &accessFlags{width: width}
}

func (f *accessFlags) apply(cfg *backend.Access_Config) {
	cfg.Width = f.width.Value().(backend.Width)
}

// parseNumber accepts decimal, hex (0x) and octal (0o) values.
func parseNumber(name string, s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, util.NewCtlError(fmt.Errorf("invalid %s %q: %w", name, s, err), util.InvalidArgument)
	}
	return v, nil
}
