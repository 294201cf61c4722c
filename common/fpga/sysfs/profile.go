package sysfs

import (
	"fmt"
	"path/filepath"
	"regexp"

	"github.com/thinkparq/fpgakit/common/filesystem"
	"github.com/thinkparq/fpgakit/common/fpga"
)

// ProfileKind identifies which generation of the kernel driver exposes the devices.
type ProfileKind int

const (
	// Classic is the out-of-tree intel-fpga driver that registers devices under /sys/class/fpga.
	Classic ProfileKind = iota
	// DFL is the upstream Device Feature List driver that registers devices under
	// /sys/class/fpga_region.
	DFL
)

func (k ProfileKind) String() string {
	switch k {
	case Classic:
		return "classic"
	case DFL:
		return "dfl"
	default:
		return "unknown"
	}
}

// ProfileKindFromString parses a user provided profile name. Returns false for "auto" or any other
// unknown value.
func ProfileKindFromString(s string) (ProfileKind, bool) {
	switch s {
	case "classic":
		return Classic, true
	case "dfl":
		return DFL, true
	default:
		return 0, false
	}
}

// Profile captures everything that differs between the driver generations. It is selected once
// and threaded through scanning, decoding and handle management.
type Profile struct {
	Kind ProfileKind
	// ClassPath is the directory containing one symlink per physical device.
	ClassPath string
	// DevDir is where the character devices for FMEs and ports are created.
	DevDir string
	// FMEPattern and PortPattern match the names of the FME and port directories below each
	// device. The first submatch is the instance number.
	FMEPattern  *regexp.Regexp
	PortPattern *regexp.Regexp
	// FMEGlob finds the FME directory next to a port directory.
	FMEGlob string
	// InterfaceIDPaths are tried in order to find the FME interface GUID. Paths are relative to
	// the FME directory and may contain glob patterns.
	InterfaceIDPaths []string
	// Bit offsets of the 4-bit major, minor and patch fields of the BBS version inside the
	// bitstream id.
	BBSMajorShift uint
	BBSMinorShift uint
	BBSPatchShift uint
	// EnforceExclusiveOpen is set when a second exclusive open of an already open device node
	// has to be rejected with Busy by the SDK itself instead of deferring to the driver.
	EnforceExclusiveOpen bool
	// InstancePattern extracts the device and subdevice instance from a sysfs path.
	InstancePattern *regexp.Regexp
}

// NewClassicProfile returns the profile for the intel-fpga driver rooted at sysfsRoot (usually
// "/sys").
func NewClassicProfile(sysfsRoot string, devDir string) *Profile {
	return &Profile{
		Kind:                 Classic,
		ClassPath:            filepath.Join(sysfsRoot, "class", "fpga"),
		DevDir:               devDir,
		FMEPattern:           regexp.MustCompile(`^intel-fpga-fme\.([0-9]+)$`),
		PortPattern:          regexp.MustCompile(`^intel-fpga-port\.([0-9]+)$`),
		FMEGlob:              "intel-fpga-fme.*",
		InterfaceIDPaths:     []string{"pr/interface_id"},
		BBSMajorShift:        56,
		BBSMinorShift:        52,
		BBSPatchShift:        48,
		EnforceExclusiveOpen: false,
		InstancePattern:      regexp.MustCompile(`\.([0-9]+)/[^/]*\.([0-9]+)/?$`),
	}
}

// NewDFLProfile returns the profile for the upstream DFL driver rooted at sysfsRoot (usually
// "/sys").
func NewDFLProfile(sysfsRoot string, devDir string) *Profile {
	return &Profile{
		Kind:        DFL,
		ClassPath:   filepath.Join(sysfsRoot, "class", "fpga_region"),
		DevDir:      devDir,
		FMEPattern:  regexp.MustCompile(`^dfl-fme\.([0-9]+)$`),
		PortPattern: regexp.MustCompile(`^dfl-port\.([0-9]+)$`),
		FMEGlob:     "dfl-fme.*",
		InterfaceIDPaths: []string{
			"dfl-fme-region.*/fpga_region/region*/compat_id",
			"pr/interface_id",
		},
		BBSMajorShift:        60,
		BBSMinorShift:        56,
		BBSPatchShift:        52,
		EnforceExclusiveOpen: true,
		InstancePattern:      regexp.MustCompile(`/fpga_region/region([0-9]+)/[^/]*\.([0-9]+)/?$`),
	}
}

// NewProfile returns the profile of the requested kind.
func NewProfile(kind ProfileKind, sysfsRoot string, devDir string) *Profile {
	if kind == DFL {
		return NewDFLProfile(sysfsRoot, devDir)
	}
	return NewClassicProfile(sysfsRoot, devDir)
}

// DetectProfile determines which driver is loaded by checking for the class directories. DFL is
// preferred if both are present.
func DetectProfile(fsys filesystem.Provider, sysfsRoot string, devDir string) (*Profile, error) {
	for _, p := range []*Profile{NewDFLProfile(sysfsRoot, devDir), NewClassicProfile(sysfsRoot, devDir)} {
		if fi, err := fsys.Stat(p.ClassPath); err == nil && fi.IsDir() {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: no FPGA class directory found below %s", fpga.NoDriver, sysfsRoot)
}

func (p *Profile) IsFME(name string) bool {
	return p.FMEPattern.MatchString(name)
}

func (p *Profile) IsPort(name string) bool {
	return p.PortPattern.MatchString(name)
}

// DecodeBBSVersion extracts the version triple from a bitstream id.
func (p *Profile) DecodeBBSVersion(bitstreamID uint64) fpga.Version {
	return fpga.Version{
		Major: uint8((bitstreamID >> p.BBSMajorShift) & 0xf),
		Minor: uint8((bitstreamID >> p.BBSMinorShift) & 0xf),
		Patch: uint16((bitstreamID >> p.BBSPatchShift) & 0xf),
	}
}

// ParseInstances returns the device and subdevice instance numbers encoded in a FME or port sysfs
// path.
func (p *Profile) ParseInstances(sysfsPath string) (device uint32, subdevice uint32, err error) {
	m := p.InstancePattern.FindStringSubmatch(sysfsPath)
	if m == nil {
		return 0, 0, fmt.Errorf("%w: unable to determine instance numbers from %s", fpga.InvalidParam, sysfsPath)
	}
	var d, s uint32
	if _, err := fmt.Sscanf(m[1], "%d", &d); err != nil {
		return 0, 0, fmt.Errorf("%w: %w", fpga.InvalidParam, err)
	}
	if _, err := fmt.Sscanf(m[2], "%d", &s); err != nil {
		return 0, 0, fmt.Errorf("%w: %w", fpga.InvalidParam, err)
	}
	return d, s, nil
}

// ParentFMEPath returns the canonical sysfs path of the FME that manages the port at portPath.
func (p *Profile) ParentFMEPath(fsys filesystem.Provider, portPath string) (string, error) {
	matches, err := fsys.Glob(filepath.Join(filepath.Dir(portPath), p.FMEGlob))
	if err != nil {
		return "", fmt.Errorf("%w: %w", fpga.InvalidParam, err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: no FME next to %s", fpga.NotFound, portPath)
	}
	canonical, err := fsys.EvalSymlinks(matches[0])
	if err != nil {
		return "", fmt.Errorf("%w: %w", fpga.NotFound, err)
	}
	return canonical, nil
}
