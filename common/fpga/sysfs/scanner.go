package sysfs

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/thinkparq/fpgakit/common/filesystem"
	"github.com/thinkparq/fpgakit/common/fpga"
	"go.uber.org/zap"
)

// Defaults used when the driver cannot be asked for the port capabilities.
const (
	DefaultNumMMIO = 2
	DefaultNumIRQs = 0
)

// PortStatus is what a DeviceProber learned about a port's device node.
type PortStatus struct {
	// Available is true if the device node could be opened, meaning no other process owns it.
	Available bool
	// HasInfo is set if NumMMIO and NumIRQs were reported by the driver.
	HasInfo bool
	NumMMIO uint32
	NumIRQs uint32
}

// DeviceProber inspects device nodes during a scan.
type DeviceProber interface {
	ProbePort(devPath string) PortStatus
}

// Scanner walks the sysfs class directory of the selected profile and decodes every FME and port
// it finds into a DeviceRecord. Scanning does not take any locks.
type Scanner struct {
	fsys    filesystem.Provider
	profile *Profile
	prober  DeviceProber
	log     *zap.Logger
}

func NewScanner(fsys filesystem.Provider, profile *Profile, prober DeviceProber, log *zap.Logger) *Scanner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scanner{
		fsys:    fsys,
		profile: profile,
		prober:  prober,
		log:     log.With(zap.String("component", path.Base(reflect.TypeOf(Scanner{}).PkgPath()))),
	}
}

func (s *Scanner) Profile() *Profile {
	return s.profile
}

func (s *Scanner) FS() filesystem.Provider {
	return s.fsys
}

// Scan returns the FME and port records of all devices. Ports are skipped entirely when
// includeAccelerators is false. Devices or resources that cannot be decoded are logged and
// skipped. An error is only returned if the class directory itself cannot be read.
func (s *Scanner) Scan(includeAccelerators bool) ([]*DeviceRecord, error) {
	entries, err := s.fsys.ReadDir(s.profile.ClassPath)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", fpga.NoDriver, s.profile.ClassPath, err)
	}

	records := []*DeviceRecord{}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		devRecords, err := s.scanDevice(filepath.Join(s.profile.ClassPath, e.Name()), includeAccelerators)
		if err != nil {
			s.log.Debug("skipping device", zap.String("device", e.Name()), zap.Error(err))
			continue
		}
		records = append(records, devRecords...)
	}
	return records, nil
}

// scanDevice decodes one entry of the class directory. The PCI address and ids are inherited by
// every FME and port below it.
func (s *Scanner) scanDevice(devicePath string, includeAccelerators bool) ([]*DeviceRecord, error) {
	fi, err := s.fsys.Stat(devicePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", fpga.NoDriver, err)
	}
	if !fi.IsDir() {
		return nil, nil
	}

	link, err := s.fsys.Readlink(devicePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", fpga.NoDriver, err)
	}
	// The link ends in <pci address>/<class>/<device>.
	pciDir := filepath.Dir(filepath.Dir(filepath.Clean(link)))
	if pciDir == "." || pciDir == "/" {
		return nil, fmt.Errorf("%w: invalid link %s", fpga.NoDriver, link)
	}
	addr, err := fpga.ParsePCIAddress(filepath.Base(pciDir))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", fpga.NoDriver, err)
	}
	vendor, err := filesystem.ReadHex(s.fsys, filepath.Join(devicePath, "device", "vendor"), 16)
	if err != nil {
		return nil, fmt.Errorf("%w: reading vendor id: %w", fpga.NotFound, err)
	}
	device, err := filesystem.ReadHex(s.fsys, filepath.Join(devicePath, "device", "device"), 16)
	if err != nil {
		return nil, fmt.Errorf("%w: reading device id: %w", fpga.NotFound, err)
	}

	children, err := s.fsys.ReadDir(devicePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", fpga.NoDriver, err)
	}

	base := DeviceRecord{
		Address:  addr,
		VendorID: uint16(vendor),
		DeviceID: uint16(device),
	}

	// FMEs are decoded first so their socket id can be handed down to the ports.
	var fme *DeviceRecord
	records := []*DeviceRecord{}
	for _, c := range children {
		if !s.profile.IsFME(c.Name()) {
			continue
		}
		rec, err := s.scanFME(filepath.Join(devicePath, c.Name()), c.Name(), base)
		if err != nil {
			s.log.Debug("skipping FME", zap.String("path", filepath.Join(devicePath, c.Name())), zap.Error(err))
			continue
		}
		if rec == nil {
			continue
		}
		if fme == nil {
			fme = rec
		}
		records = append(records, rec)
	}

	if !includeAccelerators {
		return records, nil
	}

	for _, c := range children {
		if !s.profile.IsPort(c.Name()) {
			continue
		}
		rec, err := s.scanPort(filepath.Join(devicePath, c.Name()), c.Name(), base, fme)
		if err != nil {
			s.log.Debug("skipping port", zap.String("path", filepath.Join(devicePath, c.Name())), zap.Error(err))
			continue
		}
		if rec == nil {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// resourceRecord checks sysfsPath is a directory and prepares a record inheriting from base.
// Returns nil without an error for entries that are not directories.
func (s *Scanner) resourceRecord(sysfsPath string, name string, base DeviceRecord) (*DeviceRecord, error) {
	fi, err := s.fsys.Stat(sysfsPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", fpga.NotFound, err)
	}
	if !fi.IsDir() {
		return nil, nil
	}
	rec := base
	rec.SysfsPath = sysfsPath
	rec.DevPath = filepath.Join(s.profile.DevDir, name)
	if major, minor, err := filesystem.ReadUintPair(s.fsys, filepath.Join(sysfsPath, "dev")); err == nil {
		rec.ObjectID = ObjectIDFromDevNum(major, minor)
	}
	return &rec, nil
}

func (s *Scanner) scanFME(sysfsPath string, name string, base DeviceRecord) (*DeviceRecord, error) {
	rec, err := s.resourceRecord(sysfsPath, name, base)
	if err != nil || rec == nil {
		return nil, err
	}
	rec.ObjType = fpga.Device

	if rec.GUID, err = s.readInterfaceID(sysfsPath); err != nil {
		return nil, err
	}
	socketID, err := filesystem.ReadUint(s.fsys, filepath.Join(sysfsPath, "socket_id"), 8)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", fpga.Exception, err)
	}
	rec.SocketID = uint8(socketID)
	numSlots, err := filesystem.ReadUint(s.fsys, filepath.Join(sysfsPath, "ports_num"), 32)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", fpga.Exception, err)
	}
	rec.NumSlots = uint32(numSlots)
	if rec.BitstreamID, err = filesystem.ReadUint(s.fsys, filepath.Join(sysfsPath, "bitstream_id"), 64); err != nil {
		return nil, fmt.Errorf("%w: %w", fpga.Exception, err)
	}
	rec.BBSVersion = s.profile.DecodeBBSVersion(rec.BitstreamID)
	return rec, nil
}

// readInterfaceID returns the GUID of the first interface id location of the profile that exists.
func (s *Scanner) readInterfaceID(fmePath string) (fpga.GUID, error) {
	var errs []error
	for _, rel := range s.profile.InterfaceIDPaths {
		candidates := []string{filepath.Join(fmePath, rel)}
		if strings.ContainsAny(rel, "*?[{") {
			matches, err := s.fsys.Glob(filepath.Join(fmePath, rel))
			if err != nil {
				errs = append(errs, err)
				continue
			}
			candidates = matches
		}
		for _, c := range candidates {
			raw, err := filesystem.ReadString(s.fsys, c)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			return fpga.ParseGUID(raw)
		}
	}
	return fpga.GUID{}, fmt.Errorf("%w: no readable interface id below %s: %w", fpga.Exception, fmePath, errors.Join(errs...))
}

func (s *Scanner) scanPort(sysfsPath string, name string, base DeviceRecord, fme *DeviceRecord) (*DeviceRecord, error) {
	rec, err := s.resourceRecord(sysfsPath, name, base)
	if err != nil || rec == nil {
		return nil, err
	}
	rec.ObjType = fpga.Accelerator
	rec.Parent = fme
	if fme != nil {
		rec.SocketID = fme.SocketID
	}

	rec.State = fpga.Assigned
	rec.NumMMIO = DefaultNumMMIO
	rec.NumIRQs = DefaultNumIRQs
	if s.prober != nil {
		status := s.prober.ProbePort(rec.DevPath)
		if status.Available {
			rec.State = fpga.Unassigned
		}
		if status.HasInfo {
			rec.NumMMIO = status.NumMMIO
			rec.NumIRQs = status.NumIRQs
		}
	}

	raw, err := filesystem.ReadString(s.fsys, filepath.Join(sysfsPath, "afu_id"))
	if err != nil {
		s.log.Debug("could not read afu_id, ignoring", zap.String("path", sysfsPath), zap.Error(err))
		return nil, nil
	}
	if rec.GUID, err = fpga.ParseGUID(raw); err != nil {
		s.log.Debug("could not parse afu_id, ignoring", zap.String("path", sysfsPath), zap.Error(err))
		return nil, nil
	}
	return rec, nil
}
