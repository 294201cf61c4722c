package device

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/thinkparq/fpgakit/ctl/internal/cmdfmt"
	"github.com/thinkparq/fpgakit/ctl/internal/util"
	"github.com/thinkparq/fpgakit/ctl/pkg/config"
	backend "github.com/thinkparq/fpgakit/ctl/pkg/ctl/device"
)

var (
	allColumns = []string{"type", "address", "socket", "vendor", "device", "guid", "errors", "state", "slots",
		"bitstream-id", "bbs-version", "mmio", "interrupts", "parent", "object-id", "sysfs-path", "dev-path"}
	defaultColumns = []string{"type", "address", "socket", "guid", "errors", "state"}
)

func newListCmd() *cobra.Command {
	cfg := backend.GetResources_Config{Selector: backend.NewSelector()}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List FPGA devices and accelerators",
		Long: `List the FPGA management engines (type "device") and accelerator ports (type "accelerator")
matching the given selection. Without any selection flags every resource is listed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListCmd(cmd, cfg)
		},
	}

	util.AddSelectorFlags(cmd.Flags(), &cfg.Selector, true)
	cmd.Flags().IntVar(&cfg.Limit, "limit", 0, "Only list the first N matching resources (0 lists all).")

	return cmd
}

func runListCmd(cmd *cobra.Command, cfg backend.GetResources_Config) error {
	resources, err := backend.GetResources(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	tbl := cmdfmt.NewPrintomatic(allColumns, defaultColumns)
	defer tbl.PrintRemaining()
	for _, r := range resources {
		tbl.AddItem(resourceRow(r)...)
	}
	return nil
}

// resourceRow returns the values for allColumns. Fields that do not apply to the type of the
// resource are left empty.
func resourceRow(r *backend.Resource) []any {
	raw := viper.GetBool(config.RawKey)
	var state, slots, bitstream, bbs, numMMIO, irqs string
	if r.ObjType == "device" {
		slots = fmt.Sprint(r.NumSlots)
		bitstream = util.FormatHex(r.BitstreamID, 64)
		bbs = r.BBSVersion
	} else {
		state = r.State
		numMMIO = fmt.Sprint(r.NumMMIO)
		irqs = fmt.Sprint(r.NumInterrupts)
	}
	objectID := util.FormatHex(r.ObjectID, 64)
	if raw {
		objectID = fmt.Sprint(r.ObjectID)
	}
	return []any{
		r.ObjType,
		r.Address,
		r.SocketID,
		util.FormatHex(uint64(r.VendorID), 16),
		util.FormatHex(uint64(r.DeviceID), 16),
		r.GUID,
		r.NumErrors,
		state,
		slots,
		bitstream,
		bbs,
		numMMIO,
		irqs,
		r.Parent,
		objectID,
		r.SysfsPath,
		r.DevPath,
	}
}
