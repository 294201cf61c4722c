package fpga

import (
	"sync"
)

// ParentRef is implemented by tokens so they can be stored as the parent of a Properties filter
// without this package depending on the token registry.
type ParentRef interface {
	SysfsPath() string
	Valid() bool
}

type propField uint32

const (
	fieldParent propField = 1 << iota
	fieldObjType
	fieldSegment
	fieldBus
	fieldDevice
	fieldFunction
	fieldSocketID
	fieldVendorID
	fieldDeviceID
	fieldGUID
	fieldNumErrors
	fieldObjectID
	fieldNumSlots
	fieldBBSID
	fieldBBSVersion
	fieldAcceleratorState
	fieldNumMMIO
	fieldNumInterrupts
)

// Properties is a sparse set of resource attributes. It is used both to describe a resource and as
// a filter during enumeration, where any field that was never set acts as a wildcard. Getters
// return NotFound for unset fields.
//
// Properties is safe for concurrent use.
type Properties struct {
	mu sync.RWMutex
	v  propValues
}

type propValues struct {
	valid propField

	parent           ParentRef
	objType          ObjType
	segment          uint16
	bus              uint8
	device           uint8
	function         uint8
	socketID         uint8
	vendorID         uint16
	deviceID         uint16
	guid             GUID
	numErrors        uint32
	objectID         uint64
	numSlots         uint32
	bbsID            uint64
	bbsVersion       Version
	acceleratorState AcceleratorState
	numMMIO          uint32
	numInterrupts    uint32
}

func NewProperties() *Properties {
	return &Properties{}
}

func setField[T any](p *Properties, f propField, dst *T, v T) {
	p.mu.Lock()
	defer p.mu.Unlock()
	*dst = v
	p.v.valid |= f
}

func getField[T any](p *Properties, f propField, src *T) (T, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.v.valid&f == 0 {
		var zero T
		return zero, NotFound
	}
	return *src, nil
}

// Clear resets every field back to a wildcard.
func (p *Properties) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.v = propValues{}
}

// Clone returns an independent copy of p.
func (p *Properties) Clone() *Properties {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return &Properties{v: p.v}
}

// IsSet reports whether any field is set. An empty Properties matches every resource.
func (p *Properties) IsSet() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.v.valid != 0
}

// HasObjType is a shortcut used by enumeration to decide whether accelerators need to be scanned.
func (p *Properties) HasObjType() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.v.valid&fieldObjType != 0
}

// Parent is only meaningful for accelerators.
func (p *Properties) SetParent(v ParentRef) { setField(p, fieldParent, &p.v.parent, v) }
func (p *Properties) Parent() (ParentRef, error) {
	return getField(p, fieldParent, &p.v.parent)
}

func (p *Properties) SetObjType(v ObjType) { setField(p, fieldObjType, &p.v.objType, v) }
func (p *Properties) ObjType() (ObjType, error) {
	return getField(p, fieldObjType, &p.v.objType)
}

func (p *Properties) SetSegment(v uint16) { setField(p, fieldSegment, &p.v.segment, v) }
func (p *Properties) Segment() (uint16, error) {
	return getField(p, fieldSegment, &p.v.segment)
}

func (p *Properties) SetBus(v uint8) { setField(p, fieldBus, &p.v.bus, v) }
func (p *Properties) Bus() (uint8, error) {
	return getField(p, fieldBus, &p.v.bus)
}

func (p *Properties) SetDevice(v uint8) { setField(p, fieldDevice, &p.v.device, v) }
func (p *Properties) Device() (uint8, error) {
	return getField(p, fieldDevice, &p.v.device)
}

func (p *Properties) SetFunction(v uint8) { setField(p, fieldFunction, &p.v.function, v) }
func (p *Properties) Function() (uint8, error) {
	return getField(p, fieldFunction, &p.v.function)
}

func (p *Properties) SetSocketID(v uint8) { setField(p, fieldSocketID, &p.v.socketID, v) }
func (p *Properties) SocketID() (uint8, error) {
	return getField(p, fieldSocketID, &p.v.socketID)
}

func (p *Properties) SetVendorID(v uint16) { setField(p, fieldVendorID, &p.v.vendorID, v) }
func (p *Properties) VendorID() (uint16, error) {
	return getField(p, fieldVendorID, &p.v.vendorID)
}

func (p *Properties) SetDeviceID(v uint16) { setField(p, fieldDeviceID, &p.v.deviceID, v) }
func (p *Properties) DeviceID() (uint16, error) {
	return getField(p, fieldDeviceID, &p.v.deviceID)
}

func (p *Properties) SetGUID(v GUID) { setField(p, fieldGUID, &p.v.guid, v) }
func (p *Properties) GUID() (GUID, error) {
	return getField(p, fieldGUID, &p.v.guid)
}

func (p *Properties) SetNumErrors(v uint32) { setField(p, fieldNumErrors, &p.v.numErrors, v) }
func (p *Properties) NumErrors() (uint32, error) {
	return getField(p, fieldNumErrors, &p.v.numErrors)
}

func (p *Properties) SetObjectID(v uint64) { setField(p, fieldObjectID, &p.v.objectID, v) }
func (p *Properties) ObjectID() (uint64, error) {
	return getField(p, fieldObjectID, &p.v.objectID)
}

// The following fields are only compared against devices (FMEs).

func (p *Properties) SetNumSlots(v uint32) { setField(p, fieldNumSlots, &p.v.numSlots, v) }
func (p *Properties) NumSlots() (uint32, error) {
	return getField(p, fieldNumSlots, &p.v.numSlots)
}

func (p *Properties) SetBBSID(v uint64) { setField(p, fieldBBSID, &p.v.bbsID, v) }
func (p *Properties) BBSID() (uint64, error) {
	return getField(p, fieldBBSID, &p.v.bbsID)
}

func (p *Properties) SetBBSVersion(v Version) { setField(p, fieldBBSVersion, &p.v.bbsVersion, v) }
func (p *Properties) BBSVersion() (Version, error) {
	return getField(p, fieldBBSVersion, &p.v.bbsVersion)
}

// The following fields are only compared against accelerators (AFUs).

func (p *Properties) SetAcceleratorState(v AcceleratorState) {
	setField(p, fieldAcceleratorState, &p.v.acceleratorState, v)
}
func (p *Properties) AcceleratorState() (AcceleratorState, error) {
	return getField(p, fieldAcceleratorState, &p.v.acceleratorState)
}

func (p *Properties) SetNumMMIO(v uint32) { setField(p, fieldNumMMIO, &p.v.numMMIO, v) }
func (p *Properties) NumMMIO() (uint32, error) {
	return getField(p, fieldNumMMIO, &p.v.numMMIO)
}

func (p *Properties) SetNumInterrupts(v uint32) {
	setField(p, fieldNumInterrupts, &p.v.numInterrupts, v)
}
func (p *Properties) NumInterrupts() (uint32, error) {
	return getField(p, fieldNumInterrupts, &p.v.numInterrupts)
}
