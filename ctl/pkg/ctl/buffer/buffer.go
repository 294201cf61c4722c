// Package buffer exercises DMA buffer preparation on an accelerator.
package buffer

import (
	"context"
	"errors"
	"fmt"

	"github.com/thinkparq/fpgakit/common/fpga"
	"github.com/thinkparq/fpgakit/common/fpga/driver"
	"github.com/thinkparq/fpgakit/common/fpga/handle"
	"github.com/thinkparq/fpgakit/ctl/pkg/config"
	"github.com/thinkparq/fpgakit/ctl/pkg/ctl/device"
	"github.com/thinkparq/fpgakit/ctl/pkg/ctl/mmio"
	"go.uber.org/zap"
)

type Test_Config struct {
	Selector device.Selector
	// Sizes of the buffers prepared in every iteration.
	Sizes      []uint64
	Iterations int
	// Split each buffer into views of these sizes after preparing it.
	Split  []uint64
	Shared bool
	// Quiet suppresses error logging for buffers that cannot be prepared.
	Quiet bool
}

// Result describes one prepared buffer.
type Result struct {
	Iteration int
	WSID      uint64
	Requested uint64
	Length    uint64
	Pages     driver.PageClass
	IOVA      uint64
	Views     []ViewInfo
}

// ViewInfo describes a view of a buffer. The memory itself is gone once the test returns.
type ViewInfo struct {
	Offset uint64
	Length uint64
	IOVA   uint64
}

// Test prepares, optionally splits and releases buffers of every requested size on the selected
// accelerator. After the last iteration no buffer may be left on the handle.
func Test(ctx context.Context, cfg Test_Config) (*device.Resource, []Result, error) {
	if len(cfg.Sizes) == 0 {
		return nil, nil, fmt.Errorf("%w: at least one buffer size is required", fpga.InvalidParam)
	}
	if cfg.Iterations < 1 {
		return nil, nil, fmt.Errorf("%w: at least one iteration is required", fpga.InvalidParam)
	}

	rt, err := config.Runtime()
	if err != nil {
		return nil, nil, err
	}
	log, _ := config.GetLogger()

	t, resource, err := mmio.SelectAccelerator(ctx, rt, cfg.Selector)
	if err != nil {
		return nil, nil, err
	}
	defer rt.Destroy(t)

	flags := handle.OpenFlags(0)
	if cfg.Shared {
		flags = handle.OpenShared
	}
	h, err := rt.Open(t, flags)
	if err != nil {
		return resource, nil, fmt.Errorf("opening %s: %w", resource.DevPath, err)
	}

	bufFlags := handle.BufferFlags(0)
	if cfg.Quiet {
		bufFlags |= handle.BufQuiet
	}

	results := make([]Result, 0, cfg.Iterations*len(cfg.Sizes))
	runErr := func() error {
		for i := 0; i < cfg.Iterations; i++ {
			for _, size := range cfg.Sizes {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				r, err := prepareAndRelease(h, i, size, bufFlags, cfg.Split)
				if err != nil {
					return err
				}
				results = append(results, r)
			}
		}
		if n := h.NumBuffers(); n != 0 {
			return fmt.Errorf("%w: %d buffers are still tracked after releasing all of them", fpga.Exception, n)
		}
		return nil
	}()
	log.Debug("finished buffer test", zap.String("devPath", resource.DevPath), zap.Int("buffers", len(results)), zap.Error(runErr))

	return resource, results, errors.Join(runErr, h.Close())
}

func prepareAndRelease(h *handle.Handle, iteration int, size uint64, flags handle.BufferFlags, split []uint64) (Result, error) {
	buf, err := h.PrepareBuffer(size, flags, nil)
	if err != nil {
		return Result{}, fmt.Errorf("preparing a %d byte buffer: %w", size, err)
	}
	r := Result{
		Iteration: iteration,
		WSID:      buf.WSID,
		Requested: size,
		Length:    uint64(len(buf.Data)),
		Pages:     driver.ClassFor(size),
		IOVA:      buf.IOVA,
	}

	err = func() error {
		iova, err := h.GetIOAddress(buf.WSID)
		if err != nil {
			return err
		}
		if iova != buf.IOVA {
			return fmt.Errorf("%w: IO address of buffer %d changed from 0x%x to 0x%x", fpga.Exception, buf.WSID, buf.IOVA, iova)
		}
		if len(split) > 0 {
			views, err := buf.Split(split...)
			if err != nil {
				return err
			}
			for _, v := range views {
				r.Views = append(r.Views, ViewInfo{Offset: v.IOVA - buf.IOVA, Length: uint64(len(v.Data)), IOVA: v.IOVA})
			}
		}
		return nil
	}()
	return r, errors.Join(err, h.ReleaseBuffer(buf.WSID))
}
