package driver

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thinkparq/fpgakit/common/fpga"
	"github.com/thinkparq/fpgakit/common/fpga/sysfs"
	"github.com/thinkparq/fpgakit/common/ioctl"
)

func TestClassFor(t *testing.T) {
	tests := []struct {
		length uint64
		want   PageClass
	}{
		{length: 1, want: PageNative},
		{length: 4096, want: PageNative},
		{length: 4097, want: Page2M},
		{length: 2 << 20, want: Page2M},
		{length: 2<<20 + 1, want: Page1G},
		{length: 3 << 30, want: Page1G},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassFor(tt.length), "length %d", tt.length)
	}
}

func TestRoundUp(t *testing.T) {
	assert.Equal(t, uint64(4096), RoundUp(1, 4096))
	assert.Equal(t, uint64(4096), RoundUp(4096, 4096))
	assert.Equal(t, uint64(8192), RoundUp(4097, 4096))
	assert.Equal(t, uint64(0), RoundUp(0, 4096))
}

func TestOpenResult(t *testing.T) {
	assert.Equal(t, fpga.NoAccess, openResult(syscall.EACCES))
	assert.Equal(t, fpga.Busy, openResult(syscall.EBUSY))
	assert.Equal(t, fpga.NoDriver, openResult(syscall.ENOENT))
	assert.Equal(t, fpga.NoDriver, openResult(os.ErrClosed))
}

func TestLinuxOpenMissingDevice(t *testing.T) {
	_, err := Linux{Driver: ioctl.DFL}.Open(filepath.Join(t.TempDir(), "dfl-port.0"), true)
	assert.ErrorIs(t, err, fpga.NoDriver)
	assert.ErrorIs(t, err, syscall.ENOENT)
}

func TestLinuxProbePort(t *testing.T) {
	dir := t.TempDir()
	dev := filepath.Join(dir, "dfl-port.0")
	require.NoError(t, os.WriteFile(dev, nil, 0644))

	// A regular file can be opened but does not answer the port info ioctl.
	status := Linux{Driver: ioctl.DFL}.ProbePort(dev)
	assert.True(t, status.Available)
	assert.False(t, status.HasInfo)

	status = Linux{Driver: ioctl.DFL}.ProbePort(filepath.Join(dir, "missing"))
	assert.False(t, status.Available)
}

func TestDriverFor(t *testing.T) {
	assert.Equal(t, ioctl.DFL, DriverFor(sysfs.DFL))
	assert.Equal(t, ioctl.IntelFPGA, DriverFor(sysfs.Classic))
}

func TestHostMemoryNativePages(t *testing.T) {
	m := HostMemory{}
	page := m.PageSize()
	buf, err := m.Allocate(page, PageNative)
	require.NoError(t, err)
	require.Len(t, buf, int(page))
	buf[0], buf[page-1] = 1, 2

	// Releasing with a larger class than the one used for allocation is rejected.
	assert.ErrorIs(t, m.Release(buf, Page2M), fpga.InvalidParam)
	require.NoError(t, m.Release(buf, PageNative))
}

func TestMockMemoryTracksClass(t *testing.T) {
	m := NewMockMemory()
	buf, err := m.Allocate(8192, Page2M)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Live())
	assert.ErrorIs(t, m.Release(buf, PageNative), fpga.InvalidParam)
	require.NoError(t, m.Release(buf, Page2M))
	assert.Equal(t, 0, m.Live())
}

func TestMockOpener(t *testing.T) {
	m := NewMockOpener()
	m.OpenErrs["/dev/busy"] = syscall.EBUSY

	_, err := m.Open("/dev/busy", true)
	assert.ErrorIs(t, err, fpga.Busy)

	dev, err := m.Open("/dev/dfl-port.0", true)
	require.NoError(t, err)
	assert.Equal(t, 1, m.OpenCount("/dev/dfl-port.0"))

	iova, err := dev.DMAMap(make([]byte, 4096))
	require.NoError(t, err)
	assert.Equal(t, MockIOVABase, iova)
	assert.Equal(t, 1, m.Pinned())
	require.NoError(t, dev.DMAUnmap(iova))
	assert.ErrorIs(t, dev.DMAUnmap(iova), syscall.EINVAL)

	require.NoError(t, dev.Close())
	assert.ErrorIs(t, dev.Close(), fpga.InvalidParam)
	assert.Equal(t, 0, m.OpenCount("/dev/dfl-port.0"))
}
