package errorreg

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/thinkparq/fpgakit/ctl/internal/cmdfmt"
	"github.com/thinkparq/fpgakit/ctl/internal/util"
	"github.com/thinkparq/fpgakit/ctl/pkg/ctl/device"
	backend "github.com/thinkparq/fpgakit/ctl/pkg/ctl/errorreg"
)

func newClearCmd() *cobra.Command {
	cfg := backend.ClearErrors_Config{Selector: device.NewSelector()}

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear the error registers of FPGA devices and accelerators",
		Long: `Clear the error registers of the selected resources. Registers are cleared by writing their
current value back to them. Without --name every clearable register is cleared.

Clearing usually requires root privileges.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClearCmd(cmd, cfg)
		},
	}

	util.AddSelectorFlags(cmd.Flags(), &cfg.Selector, true)
	cmd.Flags().StringSliceVar(&cfg.Names, "name", nil, "Only clear registers with these names.")

	return cmd
}

func runClearCmd(cmd *cobra.Command, cfg backend.ClearErrors_Config) error {
	results, err := backend.ClearErrors(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return util.NewCtlError(fmt.Errorf("no resources match the selection"), util.ResourceNotFound)
	}

	tbl := cmdfmt.NewPrintomatic(
		[]string{"type", "address", "sysfs-path", "cleared", "result"},
		[]string{"type", "address", "cleared", "result"},
	)
	failed := 0
	for _, r := range results {
		result := "ok"
		if r.Err != nil {
			failed++
			result = r.Err.Error()
		}
		tbl.AddItem(r.Resource.ObjType, r.Resource.Address, r.Resource.SysfsPath, strings.Join(r.Cleared, ","), result)
	}
	tbl.PrintRemaining()

	switch {
	case failed == 0:
		return nil
	case failed == len(results):
		// Return the first error so the exit code reflects its cause.
		for _, r := range results {
			if r.Err != nil {
				return fmt.Errorf("unable to clear errors on any of the %d selected resources: %w", len(results), r.Err)
			}
		}
	}
	return util.NewCtlError(fmt.Errorf("unable to clear errors on %d of %d resources", failed, len(results)), util.PartialSuccess)
}
