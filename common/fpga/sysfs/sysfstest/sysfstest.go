// Package sysfstest builds fake FPGA sysfs trees on the local file system for tests.
package sysfstest

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/thinkparq/fpgakit/common/fpga/sysfs"
)

type FME struct {
	Instance    int
	InterfaceID string
	SocketID    int
	PortsNum    int
	BitstreamID uint64
	// DevNum is written to the "dev" attribute in major:minor format if set.
	DevNum string
	// Errors maps file names (optionally with subdirectories) below the errors directory to their
	// contents.
	Errors map[string]string
}

type Port struct {
	Instance int
	// AFUID is written to afu_id. If empty the attribute is not created.
	AFUID  string
	DevNum string
	Errors map[string]string
}

type Device struct {
	Instance int
	PCI      string
	Vendor   uint16
	DeviceID uint16
	FME      *FME
	Ports    []Port
}

// Tree is a fake sysfs tree. SysfsRoot and DevDir can be passed to the profile constructors.
type Tree struct {
	Kind      sysfs.ProfileKind
	SysfsRoot string
	DevDir    string
	// Resources maps FME and port names (such as "dfl-port.0") to their sysfs path below the
	// class directory.
	Resources map[string]string
}

func (tree *Tree) Profile() *sysfs.Profile {
	return sysfs.NewProfile(tree.Kind, tree.SysfsRoot, tree.DevDir)
}

func names(kind sysfs.ProfileKind) (class, dev, fme, port string) {
	if kind == sysfs.DFL {
		return "fpga_region", "region%d", "dfl-fme.%d", "dfl-port.%d"
	}
	return "fpga", "intel-fpga-dev.%d", "intel-fpga-fme.%d", "intel-fpga-port.%d"
}

// Build creates the tree in a temporary directory. Device nodes are created as regular files so
// they can be opened.
func Build(t testing.TB, kind sysfs.ProfileKind, devices ...Device) *Tree {
	t.Helper()
	root := t.TempDir()
	tree := &Tree{
		Kind:      kind,
		SysfsRoot: filepath.Join(root, "sys"),
		DevDir:    filepath.Join(root, "dev"),
		Resources: map[string]string{},
	}
	class, _, _, _ := names(kind)
	require.NoError(t, os.MkdirAll(filepath.Join(tree.SysfsRoot, "class", class), 0755))
	require.NoError(t, os.MkdirAll(tree.DevDir, 0755))
	tree.Add(t, devices...)
	return tree
}

// Add creates more devices in an existing tree.
func (tree *Tree) Add(t testing.TB, devices ...Device) {
	t.Helper()
	kind := tree.Kind
	class, devFmt, fmeFmt, portFmt := names(kind)
	classPath := filepath.Join(tree.SysfsRoot, "class", class)

	for _, d := range devices {
		devName := fmt.Sprintf(devFmt, d.Instance)
		realPath := filepath.Join(tree.SysfsRoot, "devices", "pci0000:00", d.PCI, class, devName)
		writeFile(t, filepath.Join(realPath, "device", "vendor"), fmt.Sprintf("0x%04x\n", d.Vendor))
		writeFile(t, filepath.Join(realPath, "device", "device"), fmt.Sprintf("0x%04x\n", d.DeviceID))
		require.NoError(t, os.Symlink(realPath, filepath.Join(classPath, devName)))

		if d.FME != nil {
			name := fmt.Sprintf(fmeFmt, d.FME.Instance)
			p := filepath.Join(realPath, name)
			if kind == sysfs.DFL {
				writeFile(t, filepath.Join(p, fmt.Sprintf("dfl-fme-region.%d", d.FME.Instance), "fpga_region",
					fmt.Sprintf("region%d", d.FME.Instance+10), "compat_id"), d.FME.InterfaceID+"\n")
			} else {
				writeFile(t, filepath.Join(p, "pr", "interface_id"), d.FME.InterfaceID+"\n")
			}
			writeFile(t, filepath.Join(p, "socket_id"), fmt.Sprintf("%d\n", d.FME.SocketID))
			writeFile(t, filepath.Join(p, "ports_num"), fmt.Sprintf("%d\n", d.FME.PortsNum))
			writeFile(t, filepath.Join(p, "bitstream_id"), fmt.Sprintf("0x%016x\n", d.FME.BitstreamID))
			if d.FME.DevNum != "" {
				writeFile(t, filepath.Join(p, "dev"), d.FME.DevNum+"\n")
			}
			writeErrors(t, p, d.FME.Errors)
			writeFile(t, filepath.Join(tree.DevDir, name), "")
			tree.Resources[name] = filepath.Join(classPath, devName, name)
		}

		for _, port := range d.Ports {
			name := fmt.Sprintf(portFmt, port.Instance)
			p := filepath.Join(realPath, name)
			require.NoError(t, os.MkdirAll(p, 0755))
			if port.AFUID != "" {
				writeFile(t, filepath.Join(p, "afu_id"), port.AFUID+"\n")
			}
			if port.DevNum != "" {
				writeFile(t, filepath.Join(p, "dev"), port.DevNum+"\n")
			}
			writeErrors(t, p, port.Errors)
			writeFile(t, filepath.Join(tree.DevDir, name), "")
			tree.Resources[name] = filepath.Join(classPath, devName, name)
		}
	}
}

func writeErrors(t testing.TB, resource string, errs map[string]string) {
	for name, contents := range errs {
		writeFile(t, filepath.Join(resource, "errors", name), contents)
	}
}

func writeFile(t testing.TB, name string, contents string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(name), 0755))
	require.NoError(t, os.WriteFile(name, []byte(contents), 0644))
}
