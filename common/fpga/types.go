package fpga

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ObjType distinguishes the two kinds of resources exposed by the driver.
type ObjType int

const (
	InvalidObjType ObjType = iota - 1
	Device
	Accelerator
)

func (t ObjType) String() string {
	switch t {
	case Device:
		return "device"
	case Accelerator:
		return "accelerator"
	default:
		return "invalid"
	}
}

// ObjTypeFromString parses the user facing names (and the FME/AFU aliases) of an ObjType.
func ObjTypeFromString(s string) ObjType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "device", "fme":
		return Device
	case "accelerator", "afu", "port":
		return Accelerator
	default:
		return InvalidObjType
	}
}

type AcceleratorState int

const (
	Assigned AcceleratorState = iota
	Unassigned
)

func (s AcceleratorState) String() string {
	switch s {
	case Assigned:
		return "assigned"
	case Unassigned:
		return "unassigned"
	default:
		return fmt.Sprintf("unknown (%d)", int(s))
	}
}

// Version is the bitstream/board-support-block version triple.
type Version struct {
	Major uint8
	Minor uint8
	Patch uint16
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// PCIAddress identifies a PCIe function.
type PCIAddress struct {
	Segment  uint16
	Bus      uint8
	Device   uint8
	Function uint8
}

func (a PCIAddress) String() string {
	return fmt.Sprintf("%04x:%02x:%02x.%x", a.Segment, a.Bus, a.Device, a.Function)
}

// ParsePCIAddress parses addresses in the "ssss:bb:dd.f" format used by sysfs. All components are
// hexadecimal.
func ParsePCIAddress(s string) (PCIAddress, error) {
	var seg, bus, dev, fn uint32
	n, err := fmt.Sscanf(s, "%x:%x:%x.%x", &seg, &bus, &dev, &fn)
	if err != nil || n != 4 {
		return PCIAddress{}, fmt.Errorf("%w: unable to parse PCI address %q", InvalidParam, s)
	}
	if seg > 0xffff || bus > 0xff || dev > 0x1f || fn > 0x7 {
		return PCIAddress{}, fmt.Errorf("%w: PCI address %q out of range", InvalidParam, s)
	}
	return PCIAddress{Segment: uint16(seg), Bus: uint8(bus), Device: uint8(dev), Function: uint8(fn)}, nil
}

// GUID identifies an FME interface or an AFU image.
type GUID = uuid.UUID

// ParseGUID accepts the 32 hex digit form used by sysfs as well as the canonical dashed form.
func ParseGUID(s string) (GUID, error) {
	s = strings.TrimSpace(s)
	g, err := uuid.Parse(strings.ReplaceAll(s, "-", ""))
	if err != nil {
		return GUID{}, fmt.Errorf("%w: invalid guid %q: %w", InvalidParam, s, err)
	}
	return g, nil
}
