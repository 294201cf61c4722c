// Package mmio reads and writes the MMIO registers of an accelerator.
package mmio

import (
	"context"
	"errors"
	"fmt"

	"github.com/thinkparq/fpgakit/common/fpga"
	"github.com/thinkparq/fpgakit/common/fpga/handle"
	"github.com/thinkparq/fpgakit/common/fpga/runtime"
	"github.com/thinkparq/fpgakit/common/fpga/token"
	"github.com/thinkparq/fpgakit/ctl/pkg/config"
	"github.com/thinkparq/fpgakit/ctl/pkg/ctl/device"
	"go.uber.org/zap"
)

// Width is the size of a single MMIO access.
type Width int

const (
	Width32 Width = 32
	Width64 Width = 64
)

func (w Width) String() string {
	switch w {
	case Width32:
		return "32"
	case Width64:
		return "64"
	default:
		return "invalid"
	}
}

// Bytes returns the number of bytes accessed at once.
func (w Width) Bytes() uint64 {
	return uint64(w) / 8
}

type Access_Config struct {
	Selector device.Selector
	Region   uint32
	Offset   uint64
	Width    Width
	// Count is the number of consecutive registers to read. Ignored for writes.
	Count int
	// Open the accelerator in shared mode so it can be inspected while another process owns it.
	Shared bool
}

// Value is the content of one register.
type Value struct {
	Offset uint64
	Value  uint64
}

func (cfg Access_Config) validate() error {
	if cfg.Width != Width32 && cfg.Width != Width64 {
		return fmt.Errorf("%w: unsupported access width %d (must be 32 or 64)", fpga.InvalidParam, cfg.Width)
	}
	if cfg.Offset%cfg.Width.Bytes() != 0 {
		return fmt.Errorf("%w: offset 0x%x is not aligned to the access width", fpga.InvalidParam, cfg.Offset)
	}
	return nil
}

// Read opens the selected accelerator, maps the region and reads Count registers starting at the
// offset. The selector must match exactly one accelerator.
func Read(ctx context.Context, cfg Access_Config) (*device.Resource, []Value, error) {
	if cfg.Count < 1 {
		return nil, nil, fmt.Errorf("%w: at least one register has to be read", fpga.InvalidParam)
	}
	if err := cfg.validate(); err != nil {
		return nil, nil, err
	}

	var values []Value
	resource, err := withRegion(ctx, cfg, func(h *handle.Handle) error {
		values = make([]Value, 0, cfg.Count)
		for i := uint64(0); i < uint64(cfg.Count); i++ {
			offset := cfg.Offset + i*cfg.Width.Bytes()
			var v uint64
			var err error
			if cfg.Width == Width32 {
				var v32 uint32
				v32, err = h.ReadMMIO32(cfg.Region, offset)
				v = uint64(v32)
			} else {
				v, err = h.ReadMMIO64(cfg.Region, offset)
			}
			if err != nil {
				return fmt.Errorf("reading offset 0x%x: %w", offset, err)
			}
			values = append(values, Value{Offset: offset, Value: v})
		}
		return nil
	})
	return resource, values, err
}

// Write opens the selected accelerator and writes value to the register at the offset.
func Write(ctx context.Context, cfg Access_Config, value uint64) (*device.Resource, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Width == Width32 && value > 0xffffffff {
		return nil, fmt.Errorf("%w: value 0x%x does not fit into 32 bits", fpga.InvalidParam, value)
	}
	return withRegion(ctx, cfg, func(h *handle.Handle) error {
		if cfg.Width == Width32 {
			return h.WriteMMIO32(cfg.Region, cfg.Offset, uint32(value))
		}
		return h.WriteMMIO64(cfg.Region, cfg.Offset, value)
	})
}

// withRegion resolves the accelerator, opens it, maps the region and calls fn. The handle is
// always closed before returning.
func withRegion(ctx context.Context, cfg Access_Config, fn func(h *handle.Handle) error) (_ *device.Resource, err error) {
	rt, err := config.Runtime()
	if err != nil {
		return nil, err
	}
	log, _ := config.GetLogger()

	t, resource, err := SelectAccelerator(ctx, rt, cfg.Selector)
	if err != nil {
		return nil, err
	}
	defer rt.Destroy(t)

	flags := handle.OpenFlags(0)
	if cfg.Shared {
		flags = handle.OpenShared
	}
	h, err := rt.Open(t, flags)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", resource.DevPath, err)
	}
	defer func() {
		err = errors.Join(err, h.Close())
	}()

	if _, err := h.MapMMIO(cfg.Region); err != nil {
		return nil, fmt.Errorf("mapping region %d of %s: %w", cfg.Region, resource.DevPath, err)
	}
	log.Debug("mapped MMIO region", zap.String("devPath", resource.DevPath), zap.Uint32("region", cfg.Region))
	return resource, fn(h)
}

// SelectAccelerator resolves a selector that has to match exactly one accelerator. The returned
// token belongs to the caller.
func SelectAccelerator(ctx context.Context, rt *runtime.Runtime, sel device.Selector) (*token.Token, *device.Resource, error) {
	if sel.ObjType == fpga.Device {
		return nil, nil, fmt.Errorf("%w: only accelerators can be opened", fpga.InvalidParam)
	}
	sel.ObjType = fpga.Accelerator
	tokens, resources, err := device.Resolve(ctx, sel)
	if err != nil {
		return nil, nil, err
	}
	switch len(tokens) {
	case 0:
		return nil, nil, fmt.Errorf("%w: no accelerator matches the selection", fpga.NotFound)
	case 1:
		return tokens[0], resources[0], nil
	default:
		device.Release(rt, tokens)
		return nil, nil, fmt.Errorf("%w: %d accelerators match the selection, narrow it down (for example with --address)", fpga.InvalidParam, len(tokens))
	}
}
