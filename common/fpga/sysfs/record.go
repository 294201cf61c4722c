package sysfs

import (
	"github.com/thinkparq/fpgakit/common/fpga"
)

// DeviceRecord is the raw description of one FME or port produced by a scan. Records are only
// valid for the scan pass that produced them.
type DeviceRecord struct {
	ObjType     fpga.ObjType
	GUID        fpga.GUID
	Address     fpga.PCIAddress
	VendorID    uint16
	DeviceID    uint16
	SocketID    uint8
	NumSlots    uint32
	BitstreamID uint64
	BBSVersion  fpga.Version
	State       fpga.AcceleratorState
	NumMMIO     uint32
	NumIRQs     uint32
	ObjectID    uint64
	SysfsPath   string
	DevPath     string
	// Parent is the FME managing a port. It is nil for FMEs and for ports whose FME was not
	// discovered. It does not own the FME.
	Parent *DeviceRecord
}

// ErrorsPath is the directory holding the error registers of the resource.
func (r *DeviceRecord) ErrorsPath() string {
	return r.SysfsPath + "/errors"
}

// ObjectIDFromDevNum packs a character device number into an object id.
func ObjectIDFromDevNum(major uint32, minor uint32) uint64 {
	return uint64(major&0xfff)<<20 | uint64(minor&0xfffff)
}
