package driver

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/thinkparq/fpgakit/common/fpga"
	"github.com/thinkparq/fpgakit/common/fpga/sysfs"
	"github.com/thinkparq/fpgakit/common/ioctl"
	"golang.org/x/sys/unix"
)

// mmap flag selecting 1GiB huge pages (log2(1GiB) << MAP_HUGE_SHIFT).
const mapHuge1GB = 30 << 26

// Linux opens real device nodes and talks to the driver of the given generation.
type Linux struct {
	Driver ioctl.Driver
}

var _ Opener = Linux{}
var _ sysfs.DeviceProber = Linux{}

// DriverFor returns the ioctl driver generation matching a sysfs profile.
func DriverFor(kind sysfs.ProfileKind) ioctl.Driver {
	if kind == sysfs.DFL {
		return ioctl.DFL
	}
	return ioctl.IntelFPGA
}

func (l Linux) Open(devPath string, exclusive bool) (Device, error) {
	flags := unix.O_RDWR | unix.O_CLOEXEC
	if exclusive {
		// The FPGA drivers interpret O_EXCL on their character devices as a request for exclusive
		// access.
		flags |= unix.O_EXCL
	}
	fd, err := unix.Open(devPath, flags, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %w", openResult(err), devPath, err)
	}
	return &linuxDevice{fd: fd, driver: l.Driver}, nil
}

// ProbePort tries to open a port exclusively. If that works the port is unassigned and its
// capabilities are queried before closing it again.
func (l Linux) ProbePort(devPath string) sysfs.PortStatus {
	dev, err := l.Open(devPath, true)
	if err != nil {
		return sysfs.PortStatus{}
	}
	defer dev.Close()
	status := sysfs.PortStatus{Available: true}
	if info, err := dev.PortInfo(); err == nil {
		status.HasInfo = true
		status.NumMMIO = info.NumRegions
		status.NumIRQs = info.NumUAFUIRQs
	}
	return status
}

type linuxDevice struct {
	fd     int
	driver ioctl.Driver
}

func (d *linuxDevice) PortInfo() (ioctl.PortInfo, error) {
	return ioctl.PortGetInfo(uintptr(d.fd), d.driver)
}

func (d *linuxDevice) RegionInfo(index uint32) (ioctl.RegionInfo, error) {
	return ioctl.PortGetRegionInfo(uintptr(d.fd), d.driver, index)
}

func (d *linuxDevice) MapRegion(offset uint64, size uint64) ([]byte, error) {
	b, err := unix.Mmap(d.fd, int64(offset), int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("%w: mapping %d bytes at offset 0x%x: %w", fpga.NoAccess, size, offset, err)
	}
	return b, nil
}

func (d *linuxDevice) UnmapRegion(mapping []byte) error {
	if err := unix.Munmap(mapping); err != nil {
		return fmt.Errorf("%w: %w", fpga.InvalidParam, err)
	}
	return nil
}

func (d *linuxDevice) DMAMap(buf []byte) (uint64, error) {
	if len(buf) == 0 {
		return 0, fmt.Errorf("%w: empty buffer", fpga.InvalidParam)
	}
	return ioctl.PortDMAMap(uintptr(d.fd), d.driver, uintptr(unsafe.Pointer(&buf[0])), uint64(len(buf)))
}

func (d *linuxDevice) DMAUnmap(iova uint64) error {
	return ioctl.PortDMAUnmap(uintptr(d.fd), d.driver, iova)
}

func (d *linuxDevice) Reset() error {
	return ioctl.PortReset(uintptr(d.fd), d.driver)
}

func (d *linuxDevice) Close() error {
	if d.fd < 0 {
		return fmt.Errorf("%w: device already closed", fpga.InvalidParam)
	}
	err := unix.Close(d.fd)
	d.fd = -1
	return err
}

// HostMemory allocates anonymous memory with mmap. Huge page classes require huge pages to be
// reserved by the administrator, otherwise allocation fails with NoMemory.
type HostMemory struct{}

var _ Memory = HostMemory{}

func (HostMemory) PageSize() uint64 {
	return uint64(unix.Getpagesize())
}

func (m HostMemory) Allocate(length uint64, class PageClass) ([]byte, error) {
	flags := unix.MAP_PRIVATE | unix.MAP_ANONYMOUS
	switch class {
	case Page2M:
		flags |= unix.MAP_HUGETLB
	case Page1G:
		flags |= unix.MAP_HUGETLB | mapHuge1GB
	}
	// Huge page mappings can only be unmapped in whole pages, so the mapping always covers
	// complete pages of the class.
	mapLen := RoundUp(length, class.Size(m.PageSize()))
	b, err := unix.Mmap(-1, 0, int(mapLen), unix.PROT_READ|unix.PROT_WRITE, flags)
	if err != nil {
		if errors.Is(err, unix.ENOMEM) {
			return nil, fmt.Errorf("%w: allocating %d bytes of %s pages: %w", fpga.NoMemory, mapLen, class, err)
		}
		return nil, fmt.Errorf("%w: allocating %d bytes of %s pages: %w", fpga.Exception, mapLen, class, err)
	}
	return b[:length], nil
}

func (m HostMemory) Release(buf []byte, class PageClass) error {
	if uint64(cap(buf))%class.Size(m.PageSize()) != 0 {
		return fmt.Errorf("%w: buffer of %d bytes was not allocated with %s pages", fpga.InvalidParam, cap(buf), class)
	}
	if err := unix.Munmap(buf[:cap(buf)]); err != nil {
		return fmt.Errorf("%w: %w", fpga.InvalidParam, err)
	}
	return nil
}
