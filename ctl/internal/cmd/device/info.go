package device

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/thinkparq/fpgakit/ctl/internal/cmdfmt"
	"github.com/thinkparq/fpgakit/ctl/internal/util"
	backend "github.com/thinkparq/fpgakit/ctl/pkg/ctl/device"
)

func newInfoCmd() *cobra.Command {
	cfg := backend.GetResources_Config{Selector: backend.NewSelector()}

	cmd := &cobra.Command{
		Use:   "info [<pci-address>]",
		Short: "Print all properties of FPGA devices and accelerators",
		Long: `Print every property of the selected resources, one resource after the other.
Optionally the PCI address of a card can be given instead of --address.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				if cmd.Flags().Changed("address") {
					return util.NewCtlError(fmt.Errorf("the PCI address cannot be given both as an argument and with --address"), util.InvalidArgument)
				}
				cfg.Selector.Address = args[0]
			}
			return runInfoCmd(cmd, cfg)
		},
	}

	util.AddSelectorFlags(cmd.Flags(), &cfg.Selector, true)

	return cmd
}

func runInfoCmd(cmd *cobra.Command, cfg backend.GetResources_Config) error {
	resources, err := backend.GetResources(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	if len(resources) == 0 {
		return util.NewCtlError(fmt.Errorf("no resources match the selection"), util.ResourceNotFound)
	}

	for i, r := range resources {
		if i != 0 {
			fmt.Println()
		}
		header := fmt.Sprintf("%s %s", strings.ToUpper(r.ObjType), r.Address)
		fmt.Printf("%s\n%s\n", header, strings.Repeat("=", len(header)))
		printResource(r)
	}
	return nil
}

func printResource(r *backend.Resource) {
	tbl := cmdfmt.NewPrintomatic([]string{"property", "value"}, []string{"property", "value"}, cmdfmt.WithFixedColumns())
	defer tbl.PrintRemaining()

	row := resourceRow(r)
	for i, name := range allColumns {
		if v := fmt.Sprint(row[i]); v != "" {
			tbl.AddItem(name, v)
		}
	}
	if r.ParentSysfsPath != "" {
		tbl.AddItem("parent-sysfs-path", r.ParentSysfsPath)
	}
}
