package sysfs_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thinkparq/fpgakit/common/filesystem"
	"github.com/thinkparq/fpgakit/common/fpga"
	"github.com/thinkparq/fpgakit/common/fpga/sysfs"
	"github.com/thinkparq/fpgakit/common/fpga/sysfs/sysfstest"
)

const (
	fmeGUID = "bfac4d851ee856fe8c95865ce1bbaa2d"
	afuGUID = "d8424dc4a4a3c413f89e433683f9040b"
)

type fakeProber struct {
	busy map[string]bool
}

func (p fakeProber) ProbePort(devPath string) sysfs.PortStatus {
	if p.busy[filepath.Base(devPath)] {
		return sysfs.PortStatus{}
	}
	return sysfs.PortStatus{Available: true, HasInfo: true, NumMMIO: 3, NumIRQs: 1}
}

func oneDevice(afuID string) sysfstest.Device {
	return sysfstest.Device{
		Instance: 0,
		PCI:      "0000:5e:00.0",
		Vendor:   0x8086,
		DeviceID: 0x0b30,
		FME: &sysfstest.FME{
			InterfaceID: fmeGUID,
			SocketID:    1,
			PortsNum:    1,
			BitstreamID: 0x6400002fc614bc9,
			DevNum:      "236:0",
		},
		Ports: []sysfstest.Port{{AFUID: afuID, DevNum: "237:1"}},
	}
}

func TestScanProfiles(t *testing.T) {
	tests := []struct {
		kind      sysfs.ProfileKind
		wantMajor uint8
		wantMinor uint8
		wantPatch uint16
	}{
		{kind: sysfs.Classic, wantMajor: 0x6, wantMinor: 0x4, wantPatch: 0x0},
		{kind: sysfs.DFL, wantMajor: 0x0, wantMinor: 0x6, wantPatch: 0x4},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			tree := sysfstest.Build(t, tt.kind, oneDevice(afuGUID))
			s := sysfs.NewScanner(filesystem.OSFS{}, tree.Profile(), fakeProber{}, nil)

			records, err := s.Scan(true)
			require.NoError(t, err)
			require.Len(t, records, 2)

			fme, afu := records[0], records[1]
			assert.Equal(t, fpga.Device, fme.ObjType)
			assert.Equal(t, fpga.PCIAddress{Bus: 0x5e}, fme.Address)
			assert.Equal(t, uint16(0x8086), fme.VendorID)
			assert.Equal(t, uint16(0x0b30), fme.DeviceID)
			assert.Equal(t, "bfac4d85-1ee8-56fe-8c95-865ce1bbaa2d", fme.GUID.String())
			assert.Equal(t, uint8(1), fme.SocketID)
			assert.Equal(t, uint32(1), fme.NumSlots)
			assert.Equal(t, uint64(0x6400002fc614bc9), fme.BitstreamID)
			assert.Equal(t, fpga.Version{Major: tt.wantMajor, Minor: tt.wantMinor, Patch: tt.wantPatch}, fme.BBSVersion)
			assert.Equal(t, sysfs.ObjectIDFromDevNum(236, 0), fme.ObjectID)
			assert.Nil(t, fme.Parent)

			assert.Equal(t, fpga.Accelerator, afu.ObjType)
			assert.Equal(t, "d8424dc4-a4a3-c413-f89e-433683f9040b", afu.GUID.String())
			assert.Equal(t, fpga.Unassigned, afu.State)
			assert.Equal(t, uint32(3), afu.NumMMIO)
			assert.Equal(t, uint32(1), afu.NumIRQs)
			assert.Equal(t, uint8(1), afu.SocketID)
			assert.Same(t, fme, afu.Parent)
			assert.Equal(t, filepath.Join(tree.DevDir, filepath.Base(afu.SysfsPath)), afu.DevPath)
		})
	}
}

func TestScanSkipsAcceleratorsWhenExcluded(t *testing.T) {
	tree := sysfstest.Build(t, sysfs.DFL, oneDevice(afuGUID))
	s := sysfs.NewScanner(filesystem.OSFS{}, tree.Profile(), fakeProber{}, nil)

	records, err := s.Scan(false)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, fpga.Device, records[0].ObjType)
}

func TestScanDropsUnreadableAFU(t *testing.T) {
	tree := sysfstest.Build(t, sysfs.DFL, oneDevice(""))
	s := sysfs.NewScanner(filesystem.OSFS{}, tree.Profile(), fakeProber{}, nil)

	records, err := s.Scan(true)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, fpga.Device, records[0].ObjType)
}

func TestScanAssignedPortAndDefaults(t *testing.T) {
	tree := sysfstest.Build(t, sysfs.Classic, oneDevice(afuGUID))
	s := sysfs.NewScanner(filesystem.OSFS{}, tree.Profile(), fakeProber{busy: map[string]bool{"intel-fpga-port.0": true}}, nil)

	records, err := s.Scan(true)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, fpga.Assigned, records[1].State)
	assert.Equal(t, uint32(sysfs.DefaultNumMMIO), records[1].NumMMIO)
	assert.Equal(t, uint32(sysfs.DefaultNumIRQs), records[1].NumIRQs)
}

func TestScanSkipsBrokenDevice(t *testing.T) {
	good := oneDevice(afuGUID)
	broken := oneDevice(afuGUID)
	broken.Instance = 1
	broken.PCI = "0000:af:00.0"
	tree := sysfstest.Build(t, sysfs.DFL, good, broken)

	// Without a vendor id the whole device is dropped, the other one is still found.
	require.NoError(t, os.Remove(filepath.Join(tree.SysfsRoot, "class", "fpga_region", "region1", "device", "vendor")))

	s := sysfs.NewScanner(filesystem.OSFS{}, tree.Profile(), fakeProber{}, nil)
	records, err := s.Scan(true)
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, r := range records {
		assert.Equal(t, uint8(0x5e), r.Address.Bus)
	}
}

func TestScanMissingClassPath(t *testing.T) {
	s := sysfs.NewScanner(filesystem.OSFS{}, sysfs.NewDFLProfile(t.TempDir(), "/dev"), nil, nil)
	_, err := s.Scan(true)
	assert.ErrorIs(t, err, fpga.NoDriver)
}

func TestDetectProfile(t *testing.T) {
	dfl := sysfstest.Build(t, sysfs.DFL)
	p, err := sysfs.DetectProfile(filesystem.OSFS{}, dfl.SysfsRoot, dfl.DevDir)
	require.NoError(t, err)
	assert.Equal(t, sysfs.DFL, p.Kind)

	classic := sysfstest.Build(t, sysfs.Classic)
	p, err = sysfs.DetectProfile(filesystem.OSFS{}, classic.SysfsRoot, classic.DevDir)
	require.NoError(t, err)
	assert.Equal(t, sysfs.Classic, p.Kind)

	_, err = sysfs.DetectProfile(filesystem.OSFS{}, t.TempDir(), "/dev")
	assert.ErrorIs(t, err, fpga.NoDriver)
}

func TestParentFMEPath(t *testing.T) {
	tree := sysfstest.Build(t, sysfs.DFL, oneDevice(afuGUID))
	p := tree.Profile()

	got, err := p.ParentFMEPath(filesystem.OSFS{}, tree.Resources["dfl-port.0"])
	require.NoError(t, err)
	want, err := filepath.EvalSymlinks(tree.Resources["dfl-fme.0"])
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
