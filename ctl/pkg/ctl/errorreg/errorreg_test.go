package errorreg

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thinkparq/fpgakit/common/fpga"
	"github.com/thinkparq/fpgakit/common/fpga/sysfs"
	"github.com/thinkparq/fpgakit/ctl/pkg/ctl/ctltest"
	"github.com/thinkparq/fpgakit/ctl/pkg/ctl/device"
)

func TestGetErrors(t *testing.T) {
	ctltest.Setup(t, sysfs.DFL)

	regs, err := GetErrors(context.Background(), GetErrors_Config{Selector: device.NewSelector()})
	require.NoError(t, err)
	require.Len(t, regs, 3)

	assert.Equal(t, "device", regs[0].Resource.ObjType)
	assert.Equal(t, "errors", regs[0].Name)
	assert.Equal(t, uint64(0x4), regs[0].Value)
	assert.True(t, regs[0].CanClear)

	assert.Equal(t, "first_error", regs[1].Name)
	assert.Equal(t, uint64(0x40), regs[1].Value)
	assert.False(t, regs[1].CanClear)

	assert.Equal(t, "accelerator", regs[2].Resource.ObjType)
	assert.Equal(t, uint64(0), regs[2].Value)

	regs, err = GetErrors(context.Background(), GetErrors_Config{Selector: device.NewSelector(), NonZeroOnly: true})
	require.NoError(t, err)
	assert.Len(t, regs, 2)

	regs, err = GetErrors(context.Background(), GetErrors_Config{Selector: device.NewSelector(), Names: []string{"first_error"}})
	require.NoError(t, err)
	require.Len(t, regs, 1)
	assert.Equal(t, 1, regs[0].Index)
}

func TestGetErrorsSingleWorker(t *testing.T) {
	ctltest.Setup(t, sysfs.Classic)
	ctltest.SetNumWorkers(1)

	regs, err := GetErrors(context.Background(), GetErrors_Config{Selector: device.NewSelector()})
	require.NoError(t, err)
	assert.Len(t, regs, 3)
}

func TestGetErrorsVanishedRegister(t *testing.T) {
	env := ctltest.Setup(t, sysfs.DFL)
	// Discover the registers first, then remove one behind the registry's back.
	_, err := GetErrors(context.Background(), GetErrors_Config{Selector: device.NewSelector()})
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(env.Tree.Resources["dfl-fme.0"], "errors", "first_error")))

	_, err = GetErrors(context.Background(), GetErrors_Config{Selector: device.NewSelector()})
	assert.ErrorIs(t, err, fpga.Exception)
}

func TestClearErrors(t *testing.T) {
	env := ctltest.Setup(t, sysfs.DFL)

	sel := device.NewSelector()
	sel.ObjType = fpga.Device
	results, err := ClearErrors(context.Background(), ClearErrors_Config{Selector: sel})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, []string{"errors"}, results[0].Cleared)
	assert.NoError(t, results[1].Err)
	assert.Empty(t, results[1].Cleared)

	// The current value is written to the clear attribute.
	clear, err := os.ReadFile(filepath.Join(env.Tree.Resources["dfl-fme.0"], "errors", "clear"))
	require.NoError(t, err)
	assert.Equal(t, "0x4", string(clear))

	results, err = ClearErrors(context.Background(), ClearErrors_Config{Selector: sel, Names: []string{"first_error"}})
	require.NoError(t, err)
	assert.ErrorIs(t, results[0].Err, fpga.NotSupported)
	assert.ErrorIs(t, results[1].Err, fpga.NotFound)
}
