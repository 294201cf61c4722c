package handle

import (
	"fmt"
	"unsafe"

	"github.com/thinkparq/fpgakit/common/fpga"
	"github.com/thinkparq/fpgakit/common/fpga/driver"
	"go.uber.org/zap"
)

// BufferFlags modify how PrepareBuffer obtains and pins memory.
type BufferFlags uint32

const (
	// BufPreallocated pins memory supplied by the caller instead of allocating it.
	BufPreallocated BufferFlags = 1 << iota
	// BufQuiet logs failures at debug level. Used when probing for support.
	BufQuiet
	// BufReadOnly marks a buffer the accelerator only reads from.
	BufReadOnly

	allBufferFlags = BufPreallocated | BufQuiet | BufReadOnly
)

// View is a window into pinned memory together with the IO virtual address of its first byte.
type View struct {
	Data []byte
	IOVA uint64
}

// Buffer is host memory pinned for DMA. It stays valid until it is released or the handle it was
// prepared on is closed.
type Buffer struct {
	View
	WSID uint64
}

// Split carves the buffer into consecutive views of the given sizes. The views do not own any
// memory and must not be used after the buffer is released.
func (b Buffer) Split(sizes ...uint64) ([]View, error) {
	var total uint64
	for _, s := range sizes {
		total += s
		if total < s || total > uint64(len(b.Data)) {
			return nil, fmt.Errorf("%w: views exceed the buffer size of %d bytes", fpga.InvalidParam, len(b.Data))
		}
	}
	views := make([]View, 0, len(sizes))
	var offset uint64
	for _, s := range sizes {
		views = append(views, View{
			Data: b.Data[offset : offset+s : offset+s],
			IOVA: b.IOVA + offset,
		})
		offset += s
	}
	return views, nil
}

// workspace tracks one prepared buffer. The page class is the one used to allocate the memory and
// is reused verbatim on release.
type workspace struct {
	wsid    uint64
	mapping []byte
	iova    uint64
	length  uint64
	class   driver.PageClass
	flags   BufferFlags
}

func (w *workspace) preallocated() bool {
	return w.flags&BufPreallocated != 0
}

// PrepareBuffer pins length bytes for DMA. Unless BufPreallocated is set the memory is allocated
// with the largest page class that fits the request. With BufPreallocated the first length bytes
// of prealloc are pinned and length must be a multiple of the page size.
//
// PrepareBuffer(0, BufPreallocated, nil) only reports whether preallocated buffers are supported.
func (h *Handle) PrepareBuffer(length uint64, flags BufferFlags, prealloc []byte) (Buffer, error) {
	if err := h.lock(); err != nil {
		return Buffer{}, err
	}
	defer h.mu.Unlock()

	if flags&^allBufferFlags != 0 {
		return Buffer{}, fmt.Errorf("%w: unsupported buffer flags 0x%x", fpga.InvalidParam, uint32(flags&^allBufferFlags))
	}
	if flags&BufPreallocated != 0 && length == 0 && prealloc == nil {
		return Buffer{}, nil
	}
	if length == 0 {
		return Buffer{}, fmt.Errorf("%w: zero length buffer", fpga.InvalidParam)
	}

	ws := &workspace{length: length, flags: flags}
	pageSize := h.manager.memory.PageSize()
	if ws.preallocated() {
		if length%pageSize != 0 {
			return Buffer{}, fmt.Errorf("%w: preallocated length %d is not a multiple of the page size %d", fpga.InvalidParam, length, pageSize)
		}
		if uint64(len(prealloc)) < length {
			return Buffer{}, fmt.Errorf("%w: preallocated buffer holds %d bytes, %d requested", fpga.InvalidParam, len(prealloc), length)
		}
		ws.mapping = prealloc[:length:length]
		ws.class = driver.PageNative
	} else {
		ws.class = driver.ClassFor(length)
		rounded := driver.RoundUp(length, ws.class.Size(pageSize))
		mapping, err := h.manager.memory.Allocate(rounded, ws.class)
		if err != nil {
			h.logFailure(flags, "unable to allocate buffer", zap.Uint64("length", rounded), zap.Stringer("pages", ws.class), zap.Error(err))
			return Buffer{}, err
		}
		ws.mapping = mapping[:rounded:rounded]
	}

	iova, err := h.dev.DMAMap(ws.mapping)
	if err != nil {
		h.logFailure(flags, "unable to pin buffer", zap.Uint64("length", uint64(len(ws.mapping))), zap.Error(err))
		if !ws.preallocated() {
			if relErr := h.manager.memory.Release(ws.mapping, ws.class); relErr != nil {
				h.log.Warn("unable to free buffer after pinning failed", zap.Error(relErr))
			}
		}
		return Buffer{}, fmt.Errorf("%w: pinning buffer: %w", fpga.InvalidParam, err)
	}
	ws.iova = iova
	ws.wsid = h.nextWSID.Add(1)
	h.workspaces.insert(ws.wsid, ws)
	h.log.Debug("prepared buffer", zap.Uint64("wsid", ws.wsid), zap.Uint64("length", length),
		zap.Stringer("pages", ws.class), zap.Uint64("iova", iova))

	return Buffer{
		View: View{Data: ws.mapping[:length:length], IOVA: iova},
		WSID: ws.wsid,
	}, nil
}

func (h *Handle) logFailure(flags BufferFlags, msg string, fields ...zap.Field) {
	if flags&BufQuiet != 0 {
		h.log.Debug(msg, fields...)
		return
	}
	h.log.Error(msg, fields...)
}

// ReleaseBuffer unpins the buffer and frees it if it was allocated by PrepareBuffer.
func (h *Handle) ReleaseBuffer(wsid uint64) error {
	if err := h.lock(); err != nil {
		return err
	}
	defer h.mu.Unlock()
	return h.releaseBufferLocked(wsid)
}

func (h *Handle) releaseBufferLocked(wsid uint64) error {
	ws, ok := h.workspaces.lookup(wsid)
	if !ok {
		return fmt.Errorf("%w: unknown workspace id %d", fpga.InvalidParam, wsid)
	}
	if err := h.dev.DMAUnmap(ws.iova); err != nil {
		return fmt.Errorf("%w: unpinning workspace %d: %w", fpga.InvalidParam, wsid, err)
	}
	h.workspaces.remove(wsid)
	if !ws.preallocated() {
		if err := h.manager.memory.Release(ws.mapping, ws.class); err != nil {
			return fmt.Errorf("%w: freeing workspace %d: %w", fpga.Exception, wsid, err)
		}
	}
	return nil
}

// GetIOAddress returns the IO virtual address of a prepared buffer.
func (h *Handle) GetIOAddress(wsid uint64) (uint64, error) {
	if err := h.lock(); err != nil {
		return 0, err
	}
	defer h.mu.Unlock()
	ws, ok := h.workspaces.lookup(wsid)
	if !ok {
		return 0, fmt.Errorf("%w: unknown workspace id %d", fpga.NotFound, wsid)
	}
	return ws.iova, nil
}

// NumBuffers returns the number of prepared buffers that were not released yet.
func (h *Handle) NumBuffers() int {
	if err := h.lock(); err != nil {
		return 0
	}
	defer h.mu.Unlock()
	return h.workspaces.len()
}

// BufferAddress returns the user space address of the first byte of a buffer.
func BufferAddress(b Buffer) uintptr {
	if len(b.Data) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(unsafe.SliceData(b.Data)))
}
