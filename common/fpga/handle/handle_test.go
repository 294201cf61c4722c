package handle

import (
	"errors"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thinkparq/fpgakit/common/filesystem"
	"github.com/thinkparq/fpgakit/common/fpga"
	"github.com/thinkparq/fpgakit/common/fpga/driver"
	"github.com/thinkparq/fpgakit/common/fpga/sysfs"
	"github.com/thinkparq/fpgakit/common/fpga/sysfs/sysfstest"
	"github.com/thinkparq/fpgakit/common/fpga/token"
	"github.com/thinkparq/fpgakit/common/ioctl"
)

type env struct {
	registry *token.Registry
	opener   *driver.MockOpener
	memory   *driver.MockMemory
	manager  *Manager
	port     *token.Token
}

func setup(t *testing.T, kind sysfs.ProfileKind) *env {
	t.Helper()
	tree := sysfstest.Build(t, kind, sysfstest.Device{
		PCI:      "0000:5e:00.0",
		Vendor:   0x8086,
		DeviceID: 0xbcc0,
		FME:      &sysfstest.FME{InterfaceID: "bfac4d851ee856fe8c95865ce1bbaa2d", PortsNum: 1},
		Ports:    []sysfstest.Port{{AFUID: "d8424dc4a4a3c413f89e433683f9040b"}},
	})
	fsys := filesystem.OSFS{}
	opener := driver.NewMockOpener()
	records, err := sysfs.NewScanner(fsys, tree.Profile(), opener, nil).Scan(true)
	require.NoError(t, err)
	require.Len(t, records, 2)

	registry := token.NewRegistry(fsys, tree.Profile(), nil)
	t.Cleanup(registry.Close)
	port, err := registry.Add(records[1])
	require.NoError(t, err)

	memory := driver.NewMockMemory()
	return &env{
		registry: registry,
		opener:   opener,
		memory:   memory,
		manager:  NewManager(registry, opener, memory, nil),
		port:     port,
	}
}

func TestOpenClose(t *testing.T) {
	e := setup(t, sysfs.DFL)

	h, err := e.manager.Open(e.port, OpenShared)
	require.NoError(t, err)
	assert.Equal(t, 1, e.opener.OpenCount(e.port.DevPath()))
	tok, err := h.Token()
	require.NoError(t, err)
	assert.NotSame(t, e.port, tok)
	assert.Equal(t, e.port.SysfsPath(), tok.SysfsPath())

	require.NoError(t, h.Close())
	assert.Equal(t, 0, e.opener.OpenCount(e.port.DevPath()))
	assert.False(t, tok.Valid())
	assert.ErrorIs(t, h.Close(), fpga.InvalidParam)
	_, err = h.ReadMMIO32(0, 0)
	assert.ErrorIs(t, err, fpga.InvalidParam)
	_, err = h.PrepareBuffer(4096, 0, nil)
	assert.ErrorIs(t, err, fpga.InvalidParam)

	var nilHandle *Handle
	assert.ErrorIs(t, nilHandle.Close(), fpga.InvalidParam)
}

func TestOpenInvalidArguments(t *testing.T) {
	e := setup(t, sysfs.DFL)

	_, err := e.manager.Open(e.port, OpenShared|0x10)
	assert.ErrorIs(t, err, fpga.InvalidParam)
	_, err = e.manager.Open(nil, 0)
	assert.ErrorIs(t, err, fpga.InvalidParam)

	clone, err := e.registry.Clone(e.port)
	require.NoError(t, err)
	require.NoError(t, e.registry.Destroy(clone))
	_, err = e.manager.Open(clone, 0)
	assert.ErrorIs(t, err, fpga.InvalidParam)
}

func TestOpenErrnoMapping(t *testing.T) {
	tests := []struct {
		errno syscall.Errno
		want  fpga.Result
	}{
		{errno: syscall.EACCES, want: fpga.NoAccess},
		{errno: syscall.EBUSY, want: fpga.Busy},
		{errno: syscall.ENOENT, want: fpga.NoDriver},
		{errno: syscall.EIO, want: fpga.NoDriver},
	}
	for _, tt := range tests {
		t.Run(tt.errno.Error(), func(t *testing.T) {
			e := setup(t, sysfs.Classic)
			e.opener.OpenErrs[e.port.DevPath()] = tt.errno
			_, err := e.manager.Open(e.port, 0)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.want, fpga.ResultOf(err))
		})
	}
}

func TestDoubleExclusiveOpen(t *testing.T) {
	tests := []struct {
		kind sysfs.ProfileKind
		want error
	}{
		{kind: sysfs.DFL, want: fpga.Busy},
		{kind: sysfs.Classic, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			e := setup(t, tt.kind)
			first, err := e.manager.Open(e.port, 0)
			require.NoError(t, err)
			defer first.Close()

			second, err := e.manager.Open(e.port, 0)
			if tt.want == nil {
				require.NoError(t, err)
				require.NoError(t, second.Close())
				return
			}
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, second)

			// A shared open is also refused while the exclusive one is held.
			_, err = e.manager.Open(e.port, OpenShared)
			assert.ErrorIs(t, err, fpga.Busy)

			require.NoError(t, first.Close())
			again, err := e.manager.Open(e.port, 0)
			require.NoError(t, err)
			require.NoError(t, again.Close())
		})
	}
}

func TestSharedOpens(t *testing.T) {
	e := setup(t, sysfs.DFL)
	a, err := e.manager.Open(e.port, OpenShared)
	require.NoError(t, err)
	b, err := e.manager.Open(e.port, OpenShared)
	require.NoError(t, err)

	_, err = e.manager.Open(e.port, 0)
	assert.ErrorIs(t, err, fpga.Busy)

	require.NoError(t, a.Close())
	require.NoError(t, b.Close())
	c, err := e.manager.Open(e.port, 0)
	require.NoError(t, err)
	require.NoError(t, c.Close())
}

func TestMMIO(t *testing.T) {
	e := setup(t, sysfs.DFL)
	e.opener.Regions[1] = ioctl.RegionInfo{Index: 1, Flags: ioctl.RegionRead | ioctl.RegionMmap, Size: 4096}
	h, err := e.manager.Open(e.port, 0)
	require.NoError(t, err)

	// Accessors map the region lazily.
	require.NoError(t, h.WriteMMIO64(0, 0x18, 0xdeadbeefcafe))
	v64, err := h.ReadMMIO64(0, 0x18)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xdeadbeefcafe), v64)

	require.NoError(t, h.WriteMMIO32(0, 0x20, 0x1234))
	v32, err := h.ReadMMIO32(0, 0x20)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x1234), v32)

	mapping, err := h.MapMMIO(0)
	require.NoError(t, err)
	assert.Len(t, mapping, 256<<10)
	again, err := h.MapMMIO(0)
	require.NoError(t, err)
	assert.Same(t, &mapping[0], &again[0])

	_, err = h.ReadMMIO32(0, 0x21)
	assert.ErrorIs(t, err, fpga.InvalidParam)
	_, err = h.ReadMMIO64(0, 0x1c)
	assert.ErrorIs(t, err, fpga.InvalidParam)
	_, err = h.ReadMMIO64(0, 256<<10)
	assert.ErrorIs(t, err, fpga.InvalidParam)
	assert.ErrorIs(t, h.WriteMMIO32(0, 256<<10-2, 0), fpga.InvalidParam)
	// Offsets close to the top of the address space must not wrap around the bounds check.
	assert.NotPanics(t, func() {
		_, err = h.ReadMMIO64(0, ^uint64(0)-7)
		assert.ErrorIs(t, err, fpga.InvalidParam)
		_, err = h.ReadMMIO32(0, ^uint64(0)-3)
		assert.ErrorIs(t, err, fpga.InvalidParam)
		assert.ErrorIs(t, h.WriteMMIO64(0, ^uint64(0)-7, 1), fpga.InvalidParam)
	})

	_, err = h.MapMMIO(1)
	assert.ErrorIs(t, err, fpga.NoAccess)
	_, err = h.MapMMIO(7)
	assert.ErrorIs(t, err, fpga.InvalidParam)

	require.NoError(t, h.UnmapMMIO(0))
	assert.ErrorIs(t, h.UnmapMMIO(0), fpga.InvalidParam)
	require.NoError(t, h.Close())
}

func TestCloseReleasesEverything(t *testing.T) {
	e := setup(t, sysfs.DFL)
	h, err := e.manager.Open(e.port, 0)
	require.NoError(t, err)

	_, err = h.MapMMIO(0)
	require.NoError(t, err)
	for _, length := range []uint64{64, 4096, 8192} {
		_, err := h.PrepareBuffer(length, 0, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, e.opener.Pinned())
	assert.Equal(t, 3, e.memory.Live())

	require.NoError(t, h.Close())
	assert.Equal(t, 0, e.opener.Pinned())
	assert.Equal(t, 0, e.memory.Live())
	assert.Equal(t, 0, h.mmio.len())
	assert.Equal(t, 0, h.workspaces.len())
}

func TestOpenFailureReleasesTracking(t *testing.T) {
	e := setup(t, sysfs.DFL)
	e.opener.OpenErrs[e.port.DevPath()] = syscall.EBUSY
	_, err := e.manager.Open(e.port, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, syscall.EBUSY))

	// The failed open must not leave the device marked as open.
	delete(e.opener.OpenErrs, e.port.DevPath())
	h, err := e.manager.Open(e.port, 0)
	require.NoError(t, err)
	require.NoError(t, h.Close())
}
