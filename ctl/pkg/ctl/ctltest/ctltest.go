// Package ctltest sets up the global CTL configuration on top of a fake sysfs tree and an
// in-memory driver for backend and frontend tests.
package ctltest

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"github.com/thinkparq/fpgakit/common/fpga/driver"
	"github.com/thinkparq/fpgakit/common/fpga/runtime"
	"github.com/thinkparq/fpgakit/common/fpga/sysfs"
	"github.com/thinkparq/fpgakit/common/fpga/sysfs/sysfstest"
	"github.com/thinkparq/fpgakit/ctl/pkg/config"
)

const (
	FMEGUID  = "bfac4d851ee856fe8c95865ce1bbaa2d"
	AFUGUID  = "d8424dc4a4a3c413f89e433683f9040b"
	AFUGUID2 = "f7df405cbd7acf7222f144b0b93acd18"
)

// Env is the fake system a test runs against.
type Env struct {
	Tree   *sysfstest.Tree
	Opener *driver.MockOpener
	Memory *driver.MockMemory
}

// Devices returns two cards. The first has an FME with two non-zero error registers
// and a port, the second has an FME with no errors and a port with a different AFU.
func Devices() []sysfstest.Device {
	return []sysfstest.Device{
		{
			Instance: 0,
			PCI:      "0000:5e:00.0",
			Vendor:   0x8086,
			DeviceID: 0xbcc0,
			FME: &sysfstest.FME{
				Instance:    0,
				InterfaceID: FMEGUID,
				SocketID:    0,
				PortsNum:    1,
				BitstreamID: 0x0123000200000000,
				Errors: map[string]string{
					"errors":      "0x4\n",
					"first_error": "0x40\n",
					"clear":       "0x0\n",
					"revision":    "0x1\n",
				},
			},
			Ports: []sysfstest.Port{{
				Instance: 0,
				AFUID:    AFUGUID,
				Errors: map[string]string{
					"errors": "0x0\n",
					"clear":  "0x0\n",
				},
			}},
		},
		{
			Instance: 1,
			PCI:      "0000:be:00.0",
			Vendor:   0x8086,
			DeviceID: 0x0b30,
			FME: &sysfstest.FME{
				Instance:    1,
				InterfaceID: FMEGUID,
				SocketID:    1,
				PortsNum:    1,
			},
			Ports: []sysfstest.Port{{Instance: 1, AFUID: AFUGUID2}},
		},
	}
}

// Setup builds the tree, installs a runtime using the mock driver as the global runtime and resets
// all global state when the test finishes.
func Setup(t *testing.T, kind sysfs.ProfileKind, devices ...sysfstest.Device) *Env {
	t.Helper()
	if len(devices) == 0 {
		devices = Devices()
	}
	env := &Env{
		Tree:   sysfstest.Build(t, kind, devices...),
		Opener: driver.NewMockOpener(),
		Memory: driver.NewMockMemory(),
	}

	viper.Reset()
	viper.Set(config.SysfsRootKey, env.Tree.SysfsRoot)
	viper.Set(config.DevDirKey, env.Tree.DevDir)
	viper.Set(config.ProfileKey, kind.String())
	viper.Set(config.NumWorkersKey, 4)

	cfg, err := config.RuntimeConfig()
	require.NoError(t, err)
	cfg.Opener = env.Opener
	cfg.Memory = env.Memory
	rt, err := runtime.New(cfg, nil)
	require.NoError(t, err)
	config.SetRuntime(rt)

	t.Cleanup(func() {
		config.Cleanup()
		viper.Reset()
	})
	return env
}

// SetNumWorkers changes the number of workers used by backends that work in parallel.
func SetNumWorkers(n int) {
	viper.Set(config.NumWorkersKey, n)
}
