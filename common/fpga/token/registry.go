package token

import (
	"fmt"
	"path"
	"reflect"
	"slices"
	"sync"

	"github.com/thinkparq/fpgakit/common/filesystem"
	"github.com/thinkparq/fpgakit/common/fpga"
	"github.com/thinkparq/fpgakit/common/fpga/sysfs"
	"go.uber.org/zap"
)

// Registry deduplicates tokens. All mutation of the token list happens under a single mutex, the
// sysfs scan that produces the records is not locked.
type Registry struct {
	mu      sync.Mutex
	fsys    filesystem.Provider
	profile *sysfs.Profile
	log     *zap.Logger
	// Newest entries first.
	tokens []*Token
	closed bool
}

func NewRegistry(fsys filesystem.Provider, profile *sysfs.Profile, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		fsys:    fsys,
		profile: profile,
		log:     log.With(zap.String("component", path.Base(reflect.TypeOf(Registry{}).PkgPath()))),
	}
}

func (r *Registry) Profile() *sysfs.Profile {
	return r.profile
}

// Len returns the number of registered resources.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tokens)
}

// Add returns the registry entry for rec, registering it first if this is the first time the
// (sysfs path, device path) pair is seen. Registering builds the error register inventory.
func (r *Registry) Add(rec *sysfs.DeviceRecord) (*Token, error) {
	if rec == nil {
		return nil, fmt.Errorf("%w: nil record", fpga.InvalidParam)
	}
	devInst, subdevInst, err := r.profile.ParseInstances(rec.SysfsPath)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, fmt.Errorf("%w: registry is closed", fpga.InvalidParam)
	}

	for _, t := range r.tokens {
		if t.sysfsPath == rec.SysfsPath && t.devPath == rec.DevPath {
			return t, nil
		}
	}

	t := &Token{
		sysfsPath:      rec.SysfsPath,
		devPath:        rec.DevPath,
		deviceInstance: devInst,
		subdevInstance: subdevInst,
		record:         *rec,
		errors:         &sysfs.ErrorList{},
		owned:          true,
		registry:       r,
	}
	t.record.Parent = nil
	n := sysfs.BuildErrorList(r.fsys, rec.ErrorsPath(), t.errors)
	t.magic.Store(tokenMagic)
	r.tokens = slices.Insert(r.tokens, 0, t)
	r.log.Debug("registered token", zap.String("sysfs", t.sysfsPath), zap.String("dev", t.devPath), zap.Int("errors", n))
	return t, nil
}

// Clone returns an independent token for the same resource. Paths and instance numbers are
// copied, the error register inventory is shared.
func (r *Registry) Clone(src *Token) (*Token, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	t := &Token{
		sysfsPath:      src.sysfsPath,
		devPath:        src.devPath,
		deviceInstance: src.deviceInstance,
		subdevInstance: src.subdevInstance,
		record:         src.record,
		errors:         src.errors,
		registry:       src.registry,
	}
	t.magic.Store(tokenMagic)
	return t, nil
}

// Destroy invalidates a cloned token. Registry entries cannot be destroyed individually, they
// are released by Close.
func (r *Registry) Destroy(t *Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := t.Validate(); err != nil {
		return err
	}
	if t.owned {
		return fmt.Errorf("%w: token is owned by the registry", fpga.InvalidParam)
	}
	// Only the magic changes. The error list is shared with the registry entry and read without
	// the registry lock, so it stays in place.
	t.magic.Store(invalidMagic)
	return nil
}

// GetParent returns the registry entry of the FME managing the port t. It returns nil without an
// error for FMEs and for ports whose FME is not registered.
func (r *Registry) GetParent(t *Token) (*Token, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if t.record.ObjType != fpga.Accelerator {
		return nil, nil
	}
	want, err := r.profile.ParentFMEPath(r.fsys, t.sysfsPath)
	if err != nil {
		r.log.Debug("unable to determine parent FME", zap.String("sysfs", t.sysfsPath), zap.Error(err))
		return nil, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, candidate := range r.tokens {
		canonical, err := r.fsys.EvalSymlinks(candidate.sysfsPath)
		if err != nil {
			continue
		}
		if canonical == want {
			return candidate, nil
		}
	}
	return nil, nil
}

// Close invalidates every registry entry. Clones handed out earlier remain readable until they are
// destroyed but can no longer be resolved to a parent.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		t.magic.Store(invalidMagic)
	}
	r.tokens = nil
	r.closed = true
}

// Properties returns a snapshot of the attributes of the resource t refers to.
func (r *Registry) Properties(t *Token) (*fpga.Properties, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	rec := t.record
	p := fpga.NewProperties()
	p.SetObjType(rec.ObjType)
	p.SetSegment(rec.Address.Segment)
	p.SetBus(rec.Address.Bus)
	p.SetDevice(rec.Address.Device)
	p.SetFunction(rec.Address.Function)
	p.SetSocketID(rec.SocketID)
	p.SetVendorID(rec.VendorID)
	p.SetDeviceID(rec.DeviceID)
	p.SetGUID(rec.GUID)
	p.SetObjectID(rec.ObjectID)
	p.SetNumErrors(uint32(t.errors.Len()))

	switch rec.ObjType {
	case fpga.Device:
		p.SetNumSlots(rec.NumSlots)
		p.SetBBSID(rec.BitstreamID)
		p.SetBBSVersion(rec.BBSVersion)
	case fpga.Accelerator:
		p.SetAcceleratorState(rec.State)
		p.SetNumMMIO(rec.NumMMIO)
		p.SetNumInterrupts(rec.NumIRQs)
		parent, err := r.GetParent(t)
		if err != nil {
			return nil, err
		}
		if parent != nil {
			p.SetParent(parent)
		}
	}
	return p, nil
}
