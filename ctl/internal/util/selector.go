package util

import (
	"github.com/spf13/pflag"
	"github.com/thinkparq/fpgakit/common/fpga"
	"github.com/thinkparq/fpgakit/ctl/pkg/ctl/device"
)

// AddSelectorFlags adds the flags used to select resources to flags. The selector should start out
// as device.NewSelector() so unset flags act as wildcards. Numeric flags accept hex with a 0x
// prefix.
func AddSelectorFlags(flags *pflag.FlagSet, sel *device.Selector, withExpr bool) {
	flags.Var(fpga.NewObjTypePFlag(&sel.ObjType, fpga.Device, fpga.Accelerator), "type",
		"Only select resources of this type (device/fme or accelerator/afu/port).")
	flags.StringVar(&sel.Address, "address", "",
		"Only select resources at this PCI address (ssss:bb:dd.f). Cannot be combined with --segment, --bus, --device or --function.")
	flags.IntVar(&sel.Segment, "segment", device.Unset, "Only select resources on this PCI segment.")
	flags.IntVar(&sel.Bus, "bus", device.Unset, "Only select resources on this PCI bus.")
	flags.IntVar(&sel.Device, "device", device.Unset, "Only select resources with this PCI device number.")
	flags.IntVar(&sel.Function, "function", device.Unset, "Only select resources with this PCI function number.")
	flags.IntVar(&sel.SocketID, "socket-id", device.Unset, "Only select resources attached to this socket.")
	flags.IntVar(&sel.VendorID, "vendor-id", device.Unset, "Only select resources with this PCI vendor ID.")
	flags.IntVar(&sel.DeviceID, "device-id", device.Unset, "Only select resources with this PCI device ID.")
	flags.StringVar(&sel.GUID, "guid", "", "Only select resources with this interface (FME) or AFU ID.")
	flags.IntVar(&sel.NumErrors, "num-errors", device.Unset, "Only select resources with exactly this many error registers.")
	for _, f := range []string{"segment", "bus", "device", "function", "socket-id", "vendor-id", "device-id", "num-errors"} {
		flags.Lookup(f).DefValue = ""
	}
	if withExpr {
		flags.StringVar(&sel.Expr, "filter-expr", "",
			`Only select resources the expression evaluates to true for. Available fields are the columns of "device list --columns=all" in CamelCase (for example ObjType, GUID, NumErrors, SysfsPath). Besides the usual operators glob(s, pattern), regex(s, pattern) and hex(n) can be used, for example: 'ObjType == "accelerator" && glob(GUID, "d8424dc4*")'.`)
	}
}
