package ioctl

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// PortInfo is what the driver reports about a port.
type PortInfo struct {
	Capability  uint32
	NumRegions  uint32
	NumUmsgs    uint32
	NumUAFUIRQs uint32
}

// RegionInfo describes an MMIO region of a port.
type RegionInfo struct {
	Index  uint32
	Flags  uint32
	Size   uint64
	Offset uint64
}

func ioctl(fd uintptr, cmd uintptr, arg unsafe.Pointer) error {
	// According to unsafe.go, the conversion of the unsafe.Pointer to a uintptr must not be moved
	// from the Syscall to ensure the referenced object is retained and not moved before the call
	// completes.
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, cmd, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

// PortGetInfo queries the capabilities of the port open at fd. For the DFL driver the number of
// user interrupts is queried separately and left zero if the driver does not support it.
func PortGetInfo(fd uintptr, d Driver) (PortInfo, error) {
	cmds := commandTables[d]
	if d == DFL {
		arg := dflPortInfoArg{}
		arg.Argsz = uint32(unsafe.Sizeof(arg))
		if err := ioctl(fd, cmds.getInfo, unsafe.Pointer(&arg)); err != nil {
			return PortInfo{}, fmt.Errorf("error getting port info: %w", err)
		}
		info := PortInfo{NumRegions: arg.NumRegions, NumUmsgs: arg.NumUmsgs}
		var irqs uint32
		if err := ioctl(fd, cmds.getIRQNum, unsafe.Pointer(&irqs)); err == nil {
			info.NumUAFUIRQs = irqs
		}
		return info, nil
	}

	arg := intelPortInfoArg{}
	arg.Argsz = uint32(unsafe.Sizeof(arg))
	if err := ioctl(fd, cmds.getInfo, unsafe.Pointer(&arg)); err != nil {
		return PortInfo{}, fmt.Errorf("error getting port info: %w", err)
	}
	return PortInfo{
		Capability:  arg.Capability,
		NumRegions:  arg.NumRegions,
		NumUmsgs:    arg.NumUmsgs,
		NumUAFUIRQs: arg.NumUAFUIRQs,
	}, nil
}

// PortGetRegionInfo returns the size, offset and permissions of the MMIO region with the given
// index.
func PortGetRegionInfo(fd uintptr, d Driver, index uint32) (RegionInfo, error) {
	arg := regionInfoArg{Index: index}
	arg.Argsz = uint32(unsafe.Sizeof(arg))
	if err := ioctl(fd, commandTables[d].getRegionInfo, unsafe.Pointer(&arg)); err != nil {
		return RegionInfo{}, fmt.Errorf("error getting info for region %d: %w", index, err)
	}
	return RegionInfo{Index: index, Flags: arg.Flags, Size: arg.Size, Offset: arg.Offset}, nil
}

// PortDMAMap pins length bytes at the user address addr and returns the IO virtual address the
// device uses to access them.
func PortDMAMap(fd uintptr, d Driver, addr uintptr, length uint64) (uint64, error) {
	arg := dmaMapArg{UserAddr: uint64(addr), Length: length}
	arg.Argsz = uint32(unsafe.Sizeof(arg))
	if err := ioctl(fd, commandTables[d].dmaMap, unsafe.Pointer(&arg)); err != nil {
		return 0, fmt.Errorf("error mapping %d bytes for DMA: %w", length, err)
	}
	return arg.IOVA, nil
}

// PortDMAUnmap unpins the buffer previously mapped at iova.
func PortDMAUnmap(fd uintptr, d Driver, iova uint64) error {
	arg := dmaUnmapArg{IOVA: iova}
	arg.Argsz = uint32(unsafe.Sizeof(arg))
	if err := ioctl(fd, commandTables[d].dmaUnmap, unsafe.Pointer(&arg)); err != nil {
		return fmt.Errorf("error unmapping DMA buffer at iova 0x%x: %w", iova, err)
	}
	return nil
}

// PortReset resets the accelerator behind the port.
func PortReset(fd uintptr, d Driver) error {
	if err := ioctl(fd, commandTables[d].reset, nil); err != nil {
		return fmt.Errorf("error resetting port: %w", err)
	}
	return nil
}
