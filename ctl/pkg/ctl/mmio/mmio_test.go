package mmio

import (
	"context"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thinkparq/fpgakit/common/fpga"
	"github.com/thinkparq/fpgakit/common/fpga/sysfs"
	"github.com/thinkparq/fpgakit/ctl/pkg/ctl/ctltest"
	"github.com/thinkparq/fpgakit/ctl/pkg/ctl/device"
)

func firstPort() device.Selector {
	sel := device.NewSelector()
	sel.Address = "0000:5e:00.0"
	return sel
}

func TestRead(t *testing.T) {
	env := ctltest.Setup(t, sysfs.DFL)

	resource, values, err := Read(context.Background(), Access_Config{Selector: firstPort(), Offset: 0x10, Width: Width64, Count: 4})
	require.NoError(t, err)
	assert.Equal(t, "accelerator", resource.ObjType)
	require.Len(t, values, 4)
	assert.Equal(t, uint64(0x10), values[0].Offset)
	assert.Equal(t, uint64(0x28), values[3].Offset)
	// The device is closed again.
	assert.Equal(t, 0, env.Opener.OpenCount(resource.DevPath))

	_, values, err = Read(context.Background(), Access_Config{Selector: firstPort(), Offset: 0x4, Width: Width32, Count: 2})
	require.NoError(t, err)
	assert.Equal(t, uint64(0x8), values[1].Offset)
}

func TestReadInvalid(t *testing.T) {
	ctltest.Setup(t, sysfs.DFL)
	ctx := context.Background()

	_, _, err := Read(ctx, Access_Config{Selector: firstPort(), Offset: 0x4, Width: Width64, Count: 1})
	assert.ErrorIs(t, err, fpga.InvalidParam, "misaligned offset")

	_, _, err = Read(ctx, Access_Config{Selector: firstPort(), Width: 16, Count: 1})
	assert.ErrorIs(t, err, fpga.InvalidParam, "unsupported width")

	_, _, err = Read(ctx, Access_Config{Selector: firstPort(), Width: Width32, Count: 0})
	assert.ErrorIs(t, err, fpga.InvalidParam)

	_, _, err = Read(ctx, Access_Config{Selector: firstPort(), Offset: 256 << 10, Width: Width32, Count: 1})
	assert.ErrorIs(t, err, fpga.InvalidParam, "offset beyond the region")

	_, _, err = Read(ctx, Access_Config{Selector: firstPort(), Offset: ^uint64(0) - 7, Width: Width64, Count: 1})
	assert.ErrorIs(t, err, fpga.InvalidParam, "offset at the top of the address space")

	_, _, err = Read(ctx, Access_Config{Selector: firstPort(), Region: 3, Width: Width32, Count: 1})
	assert.ErrorIs(t, err, fpga.InvalidParam, "unknown region")

	_, _, err = Read(ctx, Access_Config{Selector: device.NewSelector(), Width: Width32, Count: 1})
	assert.ErrorIs(t, err, fpga.InvalidParam, "two accelerators match")

	sel := firstPort()
	sel.ObjType = fpga.Device
	_, _, err = Read(ctx, Access_Config{Selector: sel, Width: Width32, Count: 1})
	assert.ErrorIs(t, err, fpga.InvalidParam)

	sel = device.NewSelector()
	sel.GUID = ctltest.FMEGUID
	_, _, err = Read(ctx, Access_Config{Selector: sel, Width: Width32, Count: 1})
	assert.ErrorIs(t, err, fpga.NotFound)
}

func TestReadBusy(t *testing.T) {
	env := ctltest.Setup(t, sysfs.DFL)
	env.Opener.OpenErrs[env.Tree.DevDir+"/dfl-port.0"] = syscall.EBUSY

	_, _, err := Read(context.Background(), Access_Config{Selector: firstPort(), Width: Width32, Count: 1})
	assert.ErrorIs(t, err, fpga.Busy)
}

func TestWrite(t *testing.T) {
	ctltest.Setup(t, sysfs.Classic)
	ctx := context.Background()

	_, err := Write(ctx, Access_Config{Selector: firstPort(), Offset: 0x8, Width: Width64}, 0xdeadbeefcafe)
	require.NoError(t, err)

	_, err = Write(ctx, Access_Config{Selector: firstPort(), Offset: 0x8, Width: Width32}, 0x1_0000_0000)
	assert.ErrorIs(t, err, fpga.InvalidParam)

	_, err = Write(ctx, Access_Config{Selector: firstPort(), Offset: 0x8, Width: Width32, Shared: true}, 0x1)
	assert.NoError(t, err)
}
