package device

import (
	"github.com/spf13/cobra"
)

// Creates new "device" command
func NewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "device",
		Short: "Discover FPGA devices and accelerators",
		Long:  "Contains commands that enumerate the FPGA management engines (FMEs) and accelerator ports found in sysfs.",
	}

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newInfoCmd())

	return cmd
}
