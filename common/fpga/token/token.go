// Package token implements the registry of discovered resources. Every FME and port found by a
// scan is registered exactly once per (sysfs path, device path) and handed out to callers as
// clones. Tokens carry a magic value that is checked whenever they cross an API boundary, so a
// destroyed or foreign token is always reported as InvalidParam.
package token

import (
	"fmt"
	"sync/atomic"

	"github.com/thinkparq/fpgakit/common/fpga"
	"github.com/thinkparq/fpgakit/common/fpga/sysfs"
)

const (
	tokenMagic   uint64 = 0x46504741544b4e31
	invalidMagic uint64 = 0xdeadbeefdeadbeef
)

// Token identifies one discovered FME or port.
type Token struct {
	magic atomic.Uint64

	sysfsPath      string
	devPath        string
	deviceInstance uint32
	subdevInstance uint32
	record         sysfs.DeviceRecord
	// errors is shared with every clone and owned by the registry entry.
	errors *sysfs.ErrorList
	// owned is set for the registry entries. They are only released when the registry is closed.
	owned    bool
	registry *Registry
}

var _ fpga.ParentRef = &Token{}

// Validate returns InvalidParam if t is nil, was destroyed or is not a token at all.
func (t *Token) Validate() error {
	if t == nil || t.magic.Load() != tokenMagic {
		return fmt.Errorf("%w: invalid token", fpga.InvalidParam)
	}
	return nil
}

// Valid reports whether Validate would succeed.
func (t *Token) Valid() bool {
	return t.Validate() == nil
}

func (t *Token) SysfsPath() string {
	return t.sysfsPath
}

func (t *Token) DevPath() string {
	return t.devPath
}

func (t *Token) DeviceInstance() uint32 {
	return t.deviceInstance
}

func (t *Token) SubdevInstance() uint32 {
	return t.subdevInstance
}

func (t *Token) ObjType() fpga.ObjType {
	return t.record.ObjType
}

// Record returns the snapshot of the scan record the token was registered from. The Parent field
// is always nil, use Registry.GetParent instead.
func (t *Token) Record() sysfs.DeviceRecord {
	return t.record
}

// Errors returns the error register inventory shared by the token and its clones.
func (t *Token) Errors() *sysfs.ErrorList {
	return t.errors
}

func (t *Token) String() string {
	return fmt.Sprintf("%s@%s", t.record.ObjType, t.sysfsPath)
}
