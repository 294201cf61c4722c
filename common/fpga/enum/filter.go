// Package enum selects discovered resources by their properties and turns matching records into
// tokens.
package enum

import (
	"github.com/thinkparq/fpgakit/common/filesystem"
	"github.com/thinkparq/fpgakit/common/fpga"
	"github.com/thinkparq/fpgakit/common/fpga/sysfs"
)

// Matcher evaluates filters against scan records. The file system and profile are needed to
// resolve parent filters and to count error registers.
type Matcher struct {
	fsys    filesystem.Provider
	profile *sysfs.Profile
}

func NewMatcher(fsys filesystem.Provider, profile *sysfs.Profile) *Matcher {
	return &Matcher{fsys: fsys, profile: profile}
}

// IncludeAccelerators reports whether any of the filters can possibly match a port. It is true
// for an empty filter list, if a filter does not restrict the object type, or if a filter asks
// for accelerators.
func IncludeAccelerators(filters []*fpga.Properties) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		objType, err := f.ObjType()
		if err != nil || objType == fpga.Accelerator {
			return true
		}
	}
	return false
}

// MatchesAny is true if rec matches at least one filter. An empty filter list matches everything.
func (m *Matcher) MatchesAny(rec *sysfs.DeviceRecord, filters []*fpga.Properties) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		if m.Matches(rec, f) {
			return true
		}
	}
	return false
}

// Matches is true if every field set in filter equals the corresponding field of rec. Unset
// fields match anything.
//
// The number of error registers is counted on every call. The FME and port specific fields are
// only compared when the filter selects that object type.
func (m *Matcher) Matches(rec *sysfs.DeviceRecord, filter *fpga.Properties) bool {
	if filter == nil {
		return true
	}
	// Work on a snapshot so the owner of the filter can keep modifying it.
	f := filter.Clone()

	if parent, err := f.Parent(); err == nil {
		if rec.ObjType != fpga.Accelerator {
			return false
		}
		if !m.parentMatches(rec, parent) {
			return false
		}
	}

	objType, objTypeErr := f.ObjType()
	if objTypeErr == nil && objType != rec.ObjType {
		return false
	}

	if !match(f.Segment, rec.Address.Segment) ||
		!match(f.Bus, rec.Address.Bus) ||
		!match(f.Device, rec.Address.Device) ||
		!match(f.Function, rec.Address.Function) ||
		!match(f.SocketID, rec.SocketID) ||
		!match(f.GUID, rec.GUID) ||
		!match(f.ObjectID, rec.ObjectID) ||
		!match(f.VendorID, rec.VendorID) ||
		!match(f.DeviceID, rec.DeviceID) {
		return false
	}

	if numErrors, err := f.NumErrors(); err == nil {
		if uint32(sysfs.CountErrors(m.fsys, rec.ErrorsPath())) != numErrors {
			return false
		}
	}

	if objTypeErr != nil {
		return true
	}

	switch objType {
	case fpga.Device:
		return match(f.NumSlots, rec.NumSlots) &&
			match(f.BBSID, rec.BitstreamID) &&
			match(f.BBSVersion, rec.BBSVersion)
	case fpga.Accelerator:
		return match(f.AcceleratorState, rec.State) &&
			match(f.NumMMIO, rec.NumMMIO) &&
			match(f.NumInterrupts, rec.NumIRQs)
	}
	return true
}

// parentMatches compares the canonical path of the parent token with the path of the FME that
// manages the port described by rec.
func (m *Matcher) parentMatches(rec *sysfs.DeviceRecord, parent fpga.ParentRef) bool {
	if parent == nil || !parent.Valid() {
		return false
	}
	want, err := m.fsys.EvalSymlinks(parent.SysfsPath())
	if err != nil {
		return false
	}
	got, err := m.profile.ParentFMEPath(m.fsys, rec.SysfsPath)
	if err != nil {
		return false
	}
	return want == got
}

// match is true if the field is unset or equal to v.
func match[T comparable](get func() (T, error), v T) bool {
	want, err := get()
	if err != nil {
		return true
	}
	return want == v
}
