package handle

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/thinkparq/fpgakit/common/fpga"
	"github.com/thinkparq/fpgakit/common/fpga/driver"
	"github.com/thinkparq/fpgakit/common/fpga/token"
	"github.com/thinkparq/fpgakit/common/types"
	"go.uber.org/zap"
)

const (
	handleMagic  uint64 = 0x46504741484e444c
	invalidMagic uint64 = 0xdeadbeefdeadbeef
)

// Handle is an open session on a resource. All methods are safe for concurrent use. Methods that
// need to call each other do so through the *Locked variants, which expect mu to be held.
type Handle struct {
	magic atomic.Uint64

	mu      sync.Mutex
	manager *Manager
	// token is a clone owned by the handle and destroyed on Close.
	token      *token.Token
	dev        driver.Device
	flags      OpenFlags
	mmio       *table[*mmioRegion]
	workspaces *table[*workspace]
	nextWSID   atomic.Uint64
	log        *zap.Logger
}

func (h *Handle) validate() error {
	if h == nil || h.magic.Load() != handleMagic {
		return fmt.Errorf("%w: invalid handle", fpga.InvalidParam)
	}
	return nil
}

// lock validates the handle and acquires its mutex. The magic is checked again once the mutex is
// held because a concurrent Close may have won the race.
func (h *Handle) lock() error {
	if err := h.validate(); err != nil {
		return err
	}
	h.mu.Lock()
	if err := h.validate(); err != nil {
		h.mu.Unlock()
		return err
	}
	return nil
}

// Token returns the token the handle was opened from.
func (h *Handle) Token() (*token.Token, error) {
	if err := h.validate(); err != nil {
		return nil, err
	}
	return h.token, nil
}

func (h *Handle) Flags() OpenFlags {
	return h.flags
}

// Reset resets the accelerator behind the port.
func (h *Handle) Reset() error {
	if err := h.lock(); err != nil {
		return err
	}
	defer h.mu.Unlock()
	if err := h.dev.Reset(); err != nil {
		return fmt.Errorf("%w: resetting port: %w", fpga.Exception, err)
	}
	return nil
}

// PortInfo queries the driver for the capabilities of the port.
func (h *Handle) PortInfo() (PortInfo, error) {
	if err := h.lock(); err != nil {
		return PortInfo{}, err
	}
	defer h.mu.Unlock()
	info, err := h.dev.PortInfo()
	if err != nil {
		return PortInfo{}, fmt.Errorf("%w: querying port info: %w", fpga.NotSupported, err)
	}
	return PortInfo{NumMMIO: info.NumRegions, NumInterrupts: info.NumUAFUIRQs, Capability: info.Capability}, nil
}

// PortInfo is what the driver reports about an open port.
type PortInfo struct {
	Capability    uint32
	NumMMIO       uint32
	NumInterrupts uint32
}

// Close releases every mapped MMIO region and every prepared buffer, then closes the device node.
// The handle is invalid afterwards even if releasing some of the resources failed. Closing a
// handle twice returns InvalidParam.
func (h *Handle) Close() error {
	if err := h.lock(); err != nil {
		return err
	}
	defer h.mu.Unlock()
	if h.dev == nil {
		return fmt.Errorf("%w: handle has no open device", fpga.InvalidParam)
	}

	var multiErr types.MultiError
	for _, index := range h.mmio.keys() {
		multiErr.Add(h.unmapMMIOLocked(uint32(index)))
	}
	for _, wsid := range h.workspaces.keys() {
		multiErr.Add(h.releaseBufferLocked(wsid))
	}

	h.magic.Store(invalidMagic)
	if err := h.dev.Close(); err != nil {
		multiErr.Add(fmt.Errorf("closing device: %w", err))
	}
	h.dev = nil
	h.manager.release(h.token.DevPath())
	if err := h.manager.registry.Destroy(h.token); err != nil {
		h.log.Debug("unable to destroy handle token", zap.Error(err))
	}
	h.log.Debug("closed handle")

	return multiErr.ErrOrNil()
}
