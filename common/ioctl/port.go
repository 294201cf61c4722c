package ioctl

// port.go is the Go equivalent of the port ioctl definitions in the intel-fpga driver header
// (intel-fpga.h) and the upstream linux/fpga-dfl.h. We do not export the argument structures, but
// rather expose a simplified idiomatic Go API for external callers.

import (
	"unsafe"
)

// Magic numbers of the two driver generations. They are used as the type ('t') field when
// constructing ioctl command numbers.
const (
	intelFPGAMagic = uintptr(0xB5)
	dflFPGAMagic   = uintptr(0xB6)
)

// Port command numbers are relative to portBase and the same for both drivers.
const (
	portBase = 0x40

	ioctlNumPortReset         = portBase + 0
	ioctlNumPortGetInfo       = portBase + 1
	ioctlNumPortGetRegionInfo = portBase + 2
	ioctlNumPortDMAMap        = portBase + 3
	ioctlNumPortDMAUnmap      = portBase + 4
	// Only implemented by the DFL driver.
	ioctlNumPortGetIRQNum = portBase + 7
)

// Driver selects the command table and argument layout used for a device.
type Driver int

const (
	IntelFPGA Driver = iota
	DFL
)

// commands holds the complete ioctl command numbers of one driver. Apart from getIRQNum the FPGA
// commands do not encode the argument size.
type commands struct {
	reset         uintptr
	getInfo       uintptr
	getRegionInfo uintptr
	dmaMap        uintptr
	dmaUnmap      uintptr
	getIRQNum     uintptr
}

var commandTables = map[Driver]commands{
	IntelFPGA: {
		reset:         _io(intelFPGAMagic, ioctlNumPortReset),
		getInfo:       _io(intelFPGAMagic, ioctlNumPortGetInfo),
		getRegionInfo: _io(intelFPGAMagic, ioctlNumPortGetRegionInfo),
		dmaMap:        _io(intelFPGAMagic, ioctlNumPortDMAMap),
		dmaUnmap:      _io(intelFPGAMagic, ioctlNumPortDMAUnmap),
	},
	DFL: {
		reset:         _io(dflFPGAMagic, ioctlNumPortReset),
		getInfo:       _io(dflFPGAMagic, ioctlNumPortGetInfo),
		getRegionInfo: _io(dflFPGAMagic, ioctlNumPortGetRegionInfo),
		dmaMap:        _io(dflFPGAMagic, ioctlNumPortDMAMap),
		dmaUnmap:      _io(dflFPGAMagic, ioctlNumPortDMAUnmap),
		getIRQNum:     _ior(dflFPGAMagic, ioctlNumPortGetIRQNum, uintptr(unsafe.Sizeof(uint32(0)))),
	},
}

// Region permission flags reported by the get region info ioctl.
const (
	RegionRead  uint32 = 1 << 0
	RegionWrite uint32 = 1 << 1
	RegionMmap  uint32 = 1 << 2
)

// Capability bits of the intel-fpga port. The DFL driver does not report capabilities.
const (
	PortCapErrIRQ  uint32 = 1 << 0
	PortCapUAFUIRQ uint32 = 1 << 1
)

// Argument structures used for each ioctl system call. Note that the arrangement, types, and sizes
// of the fields in these structures does matter. They must match the memory layout of their C
// counterparts. DO NOT MODIFY these structures including rearranging the order of the fields
// unless you understand what you are doing.

type intelPortInfoArg struct {
	Argsz       uint32
	Flags       uint32
	Capability  uint32
	NumRegions  uint32
	NumUmsgs    uint32
	NumUAFUIRQs uint32
}

type dflPortInfoArg struct {
	Argsz      uint32
	Flags      uint32
	NumRegions uint32
	NumUmsgs   uint32
}

type regionInfoArg struct {
	Argsz   uint32
	Flags   uint32
	Index   uint32
	Padding uint32
	Size    uint64
	Offset  uint64
}

type dmaMapArg struct {
	Argsz    uint32
	Flags    uint32
	UserAddr uint64
	Length   uint64
	IOVA     uint64
}

type dmaUnmapArg struct {
	Argsz uint32
	Flags uint32
	IOVA  uint64
}
