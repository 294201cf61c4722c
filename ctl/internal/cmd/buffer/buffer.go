package buffer

import (
	"github.com/spf13/cobra"
)

// Creates new "buffer" command
func NewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "buffer",
		Short: "Work with DMA buffers",
		Long:  "Contains commands that prepare (allocate and pin) host memory for DMA by an accelerator.",
	}

	cmd.AddCommand(newTestCmd())

	return cmd
}
