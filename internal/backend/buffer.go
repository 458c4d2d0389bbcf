package backend

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/born-ml/devrt/internal/place"
)

// Buffer is a raw allocation owned by the caller until it is released.
// It records the backend that allocated it so that release goes back to the
// right allocator, and it can be released exactly once.
//
// Host-visible buffers expose their memory through Bytes. Device buffers
// carry a device address (Ptr) and/or a backend-private handle (Handle).
type Buffer struct {
	owner  Backend
	device int
	size   int

	host   bool
	data   []byte
	ptr    uintptr
	handle any

	released atomic.Bool
}

// NewHostBuffer wraps host memory allocated by owner. The visible size is
// len(data).
func NewHostBuffer(owner Backend, device int, data []byte) *Buffer {
	return &Buffer{owner: owner, device: device, size: len(data), host: true, data: data}
}

// NewDeviceBuffer wraps device memory of size bytes allocated by owner.
func NewDeviceBuffer(owner Backend, device, size int, ptr uintptr, handle any) *Buffer {
	return &Buffer{owner: owner, device: device, size: size, ptr: ptr, handle: handle}
}

// Target returns the target of the allocating backend.
func (b *Buffer) Target() place.Target { return b.owner.Target() }

// Owner returns the allocating backend.
func (b *Buffer) Owner() Backend { return b.owner }

// Device returns the device index the buffer lives on.
func (b *Buffer) Device() int { return b.device }

// Size returns the usable size in bytes.
func (b *Buffer) Size() int { return b.size }

// Bytes returns the host-visible memory, or nil for device memory.
func (b *Buffer) Bytes() []byte { return b.data }

// HostVisible reports whether Bytes is usable.
func (b *Buffer) HostVisible() bool { return b.host }

// Ptr returns the device address, or the address of the host memory for
// host-visible buffers. It is 0 for empty buffers.
func (b *Buffer) Ptr() uintptr {
	if b.host {
		if len(b.data) == 0 {
			return 0
		}
		return uintptr(unsafe.Pointer(&b.data[0]))
	}
	return b.ptr
}

// Handle returns the backend-private handle, if any.
func (b *Buffer) Handle() any { return b.handle }

// Released reports whether the buffer has been freed.
func (b *Buffer) Released() bool { return b.released.Load() }

// Release frees the buffer through its owning backend.
func (b *Buffer) Release() { b.owner.Free(b) }

// MarkReleased flips the buffer to released and drops its memory references.
// Backends call it from Free before returning memory to their allocator.
// A second call panics.
func (b *Buffer) MarkReleased() {
	if !b.released.CompareAndSwap(false, true) {
		panic(fmt.Sprintf("backend: %s buffer of %d bytes released twice", b.Target(), b.size))
	}
}

// Detach clears the buffer's memory references after release so a stale
// handle cannot reach recycled memory.
func (b *Buffer) Detach() {
	b.data = nil
	b.ptr = 0
	b.handle = nil
}

// CheckOwner panics unless buf is a live buffer allocated by owner.
func CheckOwner(owner Backend, buf *Buffer) {
	if buf == nil {
		panic(fmt.Sprintf("backend: %s: nil buffer", owner.Target()))
	}
	if buf.owner != owner {
		panic(fmt.Sprintf("backend: %s cannot free a buffer allocated by %s", owner.Target(), buf.Target()))
	}
}

// CheckCopy panics unless dst and src are live buffers that can hold size
// bytes. Copies are all-or-nothing, so bounds are checked before any byte
// moves.
func CheckCopy(dst, src *Buffer, size int) {
	switch {
	case dst == nil || src == nil:
		panic("backend: copy with nil buffer")
	case dst.Released() || src.Released():
		panic("backend: copy with released buffer")
	case size < 0:
		panic(fmt.Sprintf("backend: negative copy size %d", size))
	case size > dst.size:
		panic(fmt.Sprintf("backend: copy of %d bytes overflows %d-byte destination", size, dst.size))
	case size > src.size:
		panic(fmt.Sprintf("backend: copy of %d bytes overruns %d-byte source", size, src.size))
	}
}
