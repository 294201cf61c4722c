// Package driver is the boundary between the SDK and the kernel. It opens device nodes, issues the
// port ioctls, maps MMIO regions and allocates the host memory that is pinned for DMA. Everything
// behind the interfaces in this package can be replaced with the in-memory implementations from
// mock.go for tests.
package driver

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/thinkparq/fpgakit/common/fpga"
	"github.com/thinkparq/fpgakit/common/ioctl"
)

// Opener opens device nodes.
type Opener interface {
	Open(devPath string, exclusive bool) (Device, error)
}

// Device is an open FME or port device node.
type Device interface {
	PortInfo() (ioctl.PortInfo, error)
	RegionInfo(index uint32) (ioctl.RegionInfo, error)
	// MapRegion maps size bytes of the device starting at offset into the address space of the
	// process.
	MapRegion(offset uint64, size uint64) ([]byte, error)
	UnmapRegion(mapping []byte) error
	// DMAMap pins buf and returns the IO virtual address of its first byte.
	DMAMap(buf []byte) (uint64, error)
	DMAUnmap(iova uint64) error
	Reset() error
	Close() error
}

// Memory allocates the host buffers that are pinned for DMA.
type Memory interface {
	// PageSize returns the native page size.
	PageSize() uint64
	// Allocate returns length bytes backed by pages of the requested class.
	Allocate(length uint64, class PageClass) ([]byte, error)
	// Release frees a buffer returned by Allocate. The class must be the one used to allocate it.
	Release(buf []byte, class PageClass) error
}

// PageClass is the size of the pages backing a buffer.
type PageClass int

const (
	PageNative PageClass = iota
	Page2M
	Page1G
)

const (
	size4K = 4 << 10
	size2M = 2 << 20
	size1G = 1 << 30
)

func (c PageClass) String() string {
	switch c {
	case PageNative:
		return "native"
	case Page2M:
		return "2MiB"
	case Page1G:
		return "1GiB"
	default:
		return fmt.Sprintf("unknown (%d)", int(c))
	}
}

// Size returns the size in bytes of one page of the class. nativePageSize is used for PageNative.
func (c PageClass) Size(nativePageSize uint64) uint64 {
	switch c {
	case Page2M:
		return size2M
	case Page1G:
		return size1G
	default:
		return nativePageSize
	}
}

// ClassFor selects the largest page class that fits a request to maximize physical contiguity.
func ClassFor(length uint64) PageClass {
	switch {
	case length > size2M:
		return Page1G
	case length > size4K:
		return Page2M
	default:
		return PageNative
	}
}

// RoundUp rounds n up to the next multiple of align. align must be a power of two.
func RoundUp(n uint64, align uint64) uint64 {
	return (n + align - 1) &^ (align - 1)
}

// openResult maps the errno of a failed open to a Result.
func openResult(err error) fpga.Result {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.EACCES, syscall.EPERM:
			return fpga.NoAccess
		case syscall.EBUSY:
			return fpga.Busy
		}
	}
	return fpga.NoDriver
}
