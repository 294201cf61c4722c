package handle

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/thinkparq/fpgakit/common/fpga"
	"github.com/thinkparq/fpgakit/common/ioctl"
	"go.uber.org/zap"
)

// Regions must allow all of these to be mapped for MMIO.
const mmioPermissions = ioctl.RegionRead | ioctl.RegionWrite | ioctl.RegionMmap

type mmioRegion struct {
	index   uint32
	info    ioctl.RegionInfo
	mapping []byte
}

// MapMMIO maps the MMIO region with the given index and returns the mapping. Mapping a region
// that is already mapped returns the existing mapping. The mapping is valid until the region is
// unmapped or the handle is closed.
func (h *Handle) MapMMIO(index uint32) ([]byte, error) {
	if err := h.lock(); err != nil {
		return nil, err
	}
	defer h.mu.Unlock()
	r, err := h.findOrMapLocked(index)
	if err != nil {
		return nil, err
	}
	return r.mapping, nil
}

// UnmapMMIO unmaps a region mapped with MapMMIO or by one of the MMIO accessors.
func (h *Handle) UnmapMMIO(index uint32) error {
	if err := h.lock(); err != nil {
		return err
	}
	defer h.mu.Unlock()
	return h.unmapMMIOLocked(index)
}

func (h *Handle) findOrMapLocked(index uint32) (*mmioRegion, error) {
	if r, ok := h.mmio.lookup(uint64(index)); ok {
		return r, nil
	}

	info, err := h.dev.RegionInfo(index)
	if err != nil {
		return nil, fmt.Errorf("%w: querying MMIO region %d: %w", fpga.InvalidParam, index, err)
	}
	if info.Flags&mmioPermissions != mmioPermissions {
		return nil, fmt.Errorf("%w: MMIO region %d has permissions 0x%x", fpga.NoAccess, index, info.Flags)
	}
	mapping, err := h.dev.MapRegion(info.Offset, info.Size)
	if err != nil {
		return nil, fmt.Errorf("%w: mapping MMIO region %d: %w", fpga.InvalidParam, index, err)
	}

	r := &mmioRegion{index: index, info: info, mapping: mapping}
	h.mmio.insert(uint64(index), r)
	h.log.Debug("mapped MMIO region", zap.Uint32("index", index), zap.Uint64("size", info.Size))
	return r, nil
}

func (h *Handle) unmapMMIOLocked(index uint32) error {
	r, ok := h.mmio.lookup(uint64(index))
	if !ok {
		return fmt.Errorf("%w: MMIO region %d is not mapped", fpga.InvalidParam, index)
	}
	if err := h.dev.UnmapRegion(r.mapping); err != nil {
		return fmt.Errorf("%w: unmapping MMIO region %d: %w", fpga.InvalidParam, index, err)
	}
	h.mmio.remove(uint64(index))
	return nil
}

// mmioAddr maps the region if needed and returns a pointer to the size byte wide register at
// offset.
func (h *Handle) mmioAddr(index uint32, offset uint64, size uint64) (unsafe.Pointer, error) {
	if offset%size != 0 {
		return nil, fmt.Errorf("%w: misaligned MMIO access at offset 0x%x", fpga.InvalidParam, offset)
	}
	r, err := h.findOrMapLocked(index)
	if err != nil {
		return nil, err
	}
	if regionSize := uint64(len(r.mapping)); offset > regionSize || size > regionSize-offset {
		return nil, fmt.Errorf("%w: MMIO offset 0x%x out of bounds (region size 0x%x)", fpga.InvalidParam, offset, len(r.mapping))
	}
	return unsafe.Pointer(&r.mapping[offset]), nil
}

func (h *Handle) ReadMMIO32(index uint32, offset uint64) (uint32, error) {
	if err := h.lock(); err != nil {
		return 0, err
	}
	defer h.mu.Unlock()
	p, err := h.mmioAddr(index, offset, 4)
	if err != nil {
		return 0, err
	}
	return atomic.LoadUint32((*uint32)(p)), nil
}

func (h *Handle) WriteMMIO32(index uint32, offset uint64, value uint32) error {
	if err := h.lock(); err != nil {
		return err
	}
	defer h.mu.Unlock()
	p, err := h.mmioAddr(index, offset, 4)
	if err != nil {
		return err
	}
	atomic.StoreUint32((*uint32)(p), value)
	return nil
}

func (h *Handle) ReadMMIO64(index uint32, offset uint64) (uint64, error) {
	if err := h.lock(); err != nil {
		return 0, err
	}
	defer h.mu.Unlock()
	p, err := h.mmioAddr(index, offset, 8)
	if err != nil {
		return 0, err
	}
	return atomic.LoadUint64((*uint64)(p)), nil
}

func (h *Handle) WriteMMIO64(index uint32, offset uint64, value uint64) error {
	if err := h.lock(); err != nil {
		return err
	}
	defer h.mu.Unlock()
	p, err := h.mmioAddr(index, offset, 8)
	if err != nil {
		return err
	}
	atomic.StoreUint64((*uint64)(p), value)
	return nil
}
