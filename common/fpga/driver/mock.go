package driver

import (
	"fmt"
	"sync"
	"syscall"
	"unsafe"

	"github.com/thinkparq/fpgakit/common/fpga"
	"github.com/thinkparq/fpgakit/common/fpga/sysfs"
	"github.com/thinkparq/fpgakit/common/ioctl"
)

// MockIOVABase is the IO virtual address of the first buffer mapped through a MockOpener.
const MockIOVABase uint64 = 0x1_0000_0000

// MockOpener is an in-memory Opener. By default every device has one readable, writable and
// mappable 256KiB region at index 0 and the driver never refuses an open.
type MockOpener struct {
	mu sync.Mutex
	// Regions returned by RegionInfo, keyed by index.
	Regions map[uint32]ioctl.RegionInfo
	Info    ioctl.PortInfo
	// OpenErrs makes Open fail for a device path with the given errno.
	OpenErrs map[string]syscall.Errno
	// DMAMapErr makes every DMAMap call fail.
	DMAMapErr error

	nextIOVA uint64
	pinned   map[uint64]int
	opens    map[string]int
}

var _ Opener = &MockOpener{}
var _ sysfs.DeviceProber = &MockOpener{}

func NewMockOpener() *MockOpener {
	return &MockOpener{
		Regions: map[uint32]ioctl.RegionInfo{
			0: {Index: 0, Flags: ioctl.RegionRead | ioctl.RegionWrite | ioctl.RegionMmap, Size: 256 << 10},
		},
		Info:     ioctl.PortInfo{NumRegions: 1, NumUAFUIRQs: 0},
		OpenErrs: map[string]syscall.Errno{},
		nextIOVA: MockIOVABase,
		pinned:   map[uint64]int{},
		opens:    map[string]int{},
	}
}

func (m *MockOpener) Open(devPath string, exclusive bool) (Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if errno, ok := m.OpenErrs[devPath]; ok {
		return nil, fmt.Errorf("%w: opening %s: %w", openResult(errno), devPath, errno)
	}
	m.opens[devPath]++
	return &mockDevice{opener: m, path: devPath}, nil
}

func (m *MockOpener) ProbePort(devPath string) sysfs.PortStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.OpenErrs[devPath]; ok {
		return sysfs.PortStatus{}
	}
	return sysfs.PortStatus{Available: true, HasInfo: true, NumMMIO: m.Info.NumRegions, NumIRQs: m.Info.NumUAFUIRQs}
}

// OpenCount returns how many devices are currently open for devPath.
func (m *MockOpener) OpenCount(devPath string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens[devPath]
}

// Pinned returns the number of buffers currently mapped for DMA.
func (m *MockOpener) Pinned() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pinned)
}

type mockDevice struct {
	opener *MockOpener
	path   string
	closed bool
}

func (d *mockDevice) PortInfo() (ioctl.PortInfo, error) {
	d.opener.mu.Lock()
	defer d.opener.mu.Unlock()
	return d.opener.Info, nil
}

func (d *mockDevice) RegionInfo(index uint32) (ioctl.RegionInfo, error) {
	d.opener.mu.Lock()
	defer d.opener.mu.Unlock()
	r, ok := d.opener.Regions[index]
	if !ok {
		return ioctl.RegionInfo{}, fmt.Errorf("error getting info for region %d: %w", index, syscall.EINVAL)
	}
	return r, nil
}

func (d *mockDevice) MapRegion(offset uint64, size uint64) ([]byte, error) {
	return make([]byte, size), nil
}

func (d *mockDevice) UnmapRegion(mapping []byte) error {
	return nil
}

func (d *mockDevice) DMAMap(buf []byte) (uint64, error) {
	d.opener.mu.Lock()
	defer d.opener.mu.Unlock()
	if d.opener.DMAMapErr != nil {
		return 0, d.opener.DMAMapErr
	}
	if len(buf) == 0 {
		return 0, fmt.Errorf("%w: empty buffer", fpga.InvalidParam)
	}
	iova := d.opener.nextIOVA
	d.opener.nextIOVA += RoundUp(uint64(len(buf)), size2M)
	d.opener.pinned[iova] = len(buf)
	return iova, nil
}

func (d *mockDevice) DMAUnmap(iova uint64) error {
	d.opener.mu.Lock()
	defer d.opener.mu.Unlock()
	if _, ok := d.opener.pinned[iova]; !ok {
		return fmt.Errorf("error unmapping DMA buffer at iova 0x%x: %w", iova, syscall.EINVAL)
	}
	delete(d.opener.pinned, iova)
	return nil
}

func (d *mockDevice) Reset() error {
	return nil
}

func (d *mockDevice) Close() error {
	d.opener.mu.Lock()
	defer d.opener.mu.Unlock()
	if d.closed {
		return fmt.Errorf("%w: device already closed", fpga.InvalidParam)
	}
	d.closed = true
	d.opener.opens[d.path]--
	return nil
}

// MockMemory allocates ordinary Go memory and remembers the class of every allocation so tests
// can verify buffers are released with the class they were allocated with. Huge page classes do
// not allocate whole huge pages.
type MockMemory struct {
	mu sync.Mutex
	// AllocErr makes every Allocate call fail.
	AllocErr error
	live     map[*byte]PageClass
}

var _ Memory = &MockMemory{}

func NewMockMemory() *MockMemory {
	return &MockMemory{live: map[*byte]PageClass{}}
}

func (m *MockMemory) PageSize() uint64 {
	return size4K
}

func (m *MockMemory) Allocate(length uint64, class PageClass) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AllocErr != nil {
		return nil, m.AllocErr
	}
	if length == 0 {
		return nil, fmt.Errorf("%w: zero length allocation", fpga.InvalidParam)
	}
	b := make([]byte, length)
	m.live[unsafe.SliceData(b)] = class
	return b, nil
}

func (m *MockMemory) Release(buf []byte, class PageClass) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := unsafe.SliceData(buf)
	allocated, ok := m.live[p]
	if !ok {
		return fmt.Errorf("%w: buffer was not allocated", fpga.InvalidParam)
	}
	if allocated != class {
		return fmt.Errorf("%w: buffer allocated with %s pages released as %s", fpga.InvalidParam, allocated, class)
	}
	delete(m.live, p)
	return nil
}

// Live returns the number of buffers that were allocated and not yet released.
func (m *MockMemory) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}
