package errorreg

import (
	"github.com/spf13/cobra"
)

// Creates new "errors" command
func NewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "errors",
		Short: "Inspect and clear FPGA error registers",
		Long: `Contains commands that read and clear the error registers FMEs and ports expose in sysfs.
Registers named "revision" and registers used to clear other registers are not listed.`,
	}

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newClearCmd())

	return cmd
}
