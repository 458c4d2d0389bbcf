//go:build linux

package cuda

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/devrt/internal/backend"
	"github.com/born-ml/devrt/internal/place"
)

// Backend serves TargetCUDA on one device through its primary context.
type Backend struct {
	drv        *driver
	device     int32
	ctx        uintptr
	count      int
	maxStreams int

	closeOnce sync.Once
}

// New loads the driver and binds the primary context of cfg.Device. It
// returns an error wrapping backend.ErrUnavailable when the driver or the
// device is absent.
func New(cfg Config) (*Backend, error) {
	if cfg.Device < 0 {
		return nil, errors.Errorf("cuda: invalid device ordinal %d", cfg.Device)
	}
	drv, err := loadDriver(cfg.Library)
	if err != nil {
		return nil, errors.Wrapf(backend.ErrUnavailable, "cuda: %v", err)
	}
	if r := drv.cuInit(0); r != cudaSuccess {
		return nil, errors.Wrapf(backend.ErrUnavailable, "cuda: cuInit: %v", r)
	}

	var count int32
	if r := drv.cuDeviceGetCount(&count); r != cudaSuccess {
		return nil, errors.Wrapf(backend.ErrUnavailable, "cuda: cuDeviceGetCount: %v", r)
	}
	if count == 0 {
		return nil, errors.Wrap(backend.ErrUnavailable, "cuda: no devices")
	}
	if cfg.Device >= int(count) {
		return nil, errors.Wrapf(backend.ErrUnavailable, "cuda: device %d requested, %d present", cfg.Device, count)
	}

	var dev int32
	if r := drv.cuDeviceGet(&dev, int32(cfg.Device)); r != cudaSuccess {
		return nil, errors.Wrapf(backend.ErrUnavailable, "cuda: cuDeviceGet(%d): %v", cfg.Device, r)
	}
	var ctx uintptr
	if r := drv.cuDevicePrimaryCtxRetain(&ctx, dev); r != cudaSuccess {
		return nil, errors.Wrapf(backend.ErrUnavailable, "cuda: retain primary context: %v", r)
	}

	klog.V(1).Infof("cuda: bound device %d of %d", cfg.Device, count)
	return &Backend{
		drv:        drv,
		device:     dev,
		ctx:        ctx,
		count:      int(count),
		maxStreams: cfg.MaxStreams,
	}, nil
}

// Target returns TargetCUDA.
func (b *Backend) Target() place.Target { return place.TargetCUDA }

// Name returns the backend name.
func (b *Backend) Name() string { return "CUDA" }

// DeviceCount returns the number of CUDA devices on the machine.
func (b *Backend) DeviceCount() int { return b.count }

// MaxStreamCount returns the configured stream limit.
func (b *Backend) MaxStreamCount() int { return b.maxStreams }

// enter pins the goroutine to its OS thread and makes the backend's context
// current there. The returned func undoes the pin.
func (b *Backend) enter() func() {
	runtime.LockOSThread()
	b.check("cuCtxSetCurrent", b.drv.cuCtxSetCurrent(b.ctx))
	return runtime.UnlockOSThread
}

func (b *Backend) check(op string, r CUresult) {
	if r != cudaSuccess {
		klog.Fatalf("cuda: %s failed on device %d: %v", op, b.device, r)
	}
}

// CreateStream creates a stream on the bound device.
func (b *Backend) CreateStream() backend.Stream {
	defer b.enter()()
	var s uintptr
	b.check("cuStreamCreate", b.drv.cuStreamCreate(&s, 0))
	return backend.Stream(s)
}

// DestroyStream destroys s. The implicit stream cannot be destroyed.
func (b *Backend) DestroyStream(s backend.Stream) {
	if s == 0 {
		return
	}
	defer b.enter()()
	b.check("cuStreamDestroy", b.drv.cuStreamDestroy(uintptr(s)))
}

// StreamSync blocks until the work enqueued on s has completed.
func (b *Backend) StreamSync(s backend.Stream) {
	defer b.enter()()
	b.check("cuStreamSynchronize", b.drv.cuStreamSynchronize(uintptr(s)))
}

// CreateEvent creates a synchronization-only event.
func (b *Backend) CreateEvent() backend.Event {
	defer b.enter()()
	var e uintptr
	b.check("cuEventCreate", b.drv.cuEventCreate(&e, cuEventDisableTiming))
	return backend.Event(e)
}

// DestroyEvent destroys e.
func (b *Backend) DestroyEvent(e backend.Event) {
	if e == 0 {
		return
	}
	defer b.enter()()
	b.check("cuEventDestroy", b.drv.cuEventDestroy(uintptr(e)))
}

// RecordEvent records e at the tail of s.
func (b *Backend) RecordEvent(e backend.Event, s backend.Stream) {
	if e == 0 {
		return
	}
	defer b.enter()()
	b.check("cuEventRecord", b.drv.cuEventRecord(uintptr(e), uintptr(s)))
}

// SyncEvent blocks until the work preceding e has completed.
func (b *Backend) SyncEvent(e backend.Event) {
	if e == 0 {
		return
	}
	defer b.enter()()
	b.check("cuEventSynchronize", b.drv.cuEventSynchronize(uintptr(e)))
}

// Allocate reserves size bytes of device memory. A zero-byte request yields
// a buffer with a nil device address.
func (b *Backend) Allocate(size int) *backend.Buffer {
	if size < 0 {
		panic(fmt.Sprintf("cuda: negative allocation size %d", size))
	}
	var ptr uintptr
	if size > 0 {
		defer b.enter()()
		if r := b.drv.cuMemAlloc(&ptr, uint64(size)); r != cudaSuccess {
			klog.Fatalf("cuda: cuMemAlloc of %d bytes failed on device %d: %v", size, b.device, r)
		}
	}
	klog.V(5).Infof("cuda: allocated %d bytes at %#x", size, ptr)
	return backend.NewDeviceBuffer(b, int(b.device), size, ptr, nil)
}

// Free releases device memory returned by Allocate.
func (b *Backend) Free(buf *backend.Buffer) {
	backend.CheckOwner(b, buf)
	buf.MarkReleased()
	ptr := buf.Ptr()
	buf.Detach()
	if ptr == 0 {
		return
	}
	defer b.enter()()
	b.check("cuMemFree", b.drv.cuMemFree(ptr))
}

// CopySync copies size bytes and waits for completion.
func (b *Backend) CopySync(dst, src *backend.Buffer, size int, dir backend.Direction) {
	if !b.checkDirection(dst, src, size, dir) {
		return
	}
	defer b.enter()()
	switch dir {
	case backend.HostToDevice:
		b.check("cuMemcpyHtoD", b.drv.cuMemcpyHtoD(dst.Ptr(), unsafe.Pointer(&src.Bytes()[0]), uint64(size)))
	case backend.DeviceToHost:
		b.check("cuMemcpyDtoH", b.drv.cuMemcpyDtoH(unsafe.Pointer(&dst.Bytes()[0]), src.Ptr(), uint64(size)))
	case backend.DeviceToDevice:
		b.check("cuMemcpyDtoD", b.drv.cuMemcpyDtoD(dst.Ptr(), src.Ptr(), uint64(size)))
	}
}

// CopyAsync enqueues the copy on s. Host memory involved must stay live and
// unmodified until s is synchronized.
func (b *Backend) CopyAsync(dst, src *backend.Buffer, size int, dir backend.Direction, s backend.Stream) {
	if !b.checkDirection(dst, src, size, dir) {
		return
	}
	defer b.enter()()
	stream := uintptr(s)
	switch dir {
	case backend.HostToDevice:
		b.check("cuMemcpyHtoDAsync", b.drv.cuMemcpyHtoDAsync(dst.Ptr(), unsafe.Pointer(&src.Bytes()[0]), uint64(size), stream))
	case backend.DeviceToHost:
		b.check("cuMemcpyDtoHAsync", b.drv.cuMemcpyDtoHAsync(unsafe.Pointer(&dst.Bytes()[0]), src.Ptr(), uint64(size), stream))
	case backend.DeviceToDevice:
		b.check("cuMemcpyDtoDAsync", b.drv.cuMemcpyDtoDAsync(dst.Ptr(), src.Ptr(), uint64(size), stream))
	}
}

// checkDirection validates a copy and performs the cases that need no
// driver call: empty copies and host-to-host. It reports whether a driver
// copy is still required.
func (b *Backend) checkDirection(dst, src *backend.Buffer, size int, dir backend.Direction) bool {
	backend.CheckCopy(dst, src, size)

	var dstHost, srcHost bool
	switch dir {
	case backend.HostToHost:
		dstHost, srcHost = true, true
	case backend.HostToDevice:
		dstHost, srcHost = false, true
	case backend.DeviceToHost:
		dstHost, srcHost = true, false
	case backend.DeviceToDevice:
	default:
		panic(fmt.Sprintf("cuda: unknown copy direction %s", dir))
	}
	b.checkSide("destination", dst, dstHost, dir)
	b.checkSide("source", src, srcHost, dir)

	if size == 0 {
		return false
	}
	if dir == backend.HostToHost {
		copy(dst.Bytes()[:size], src.Bytes()[:size])
		return false
	}
	return true
}

func (b *Backend) checkSide(role string, buf *backend.Buffer, host bool, dir backend.Direction) {
	if host {
		if !buf.HostVisible() {
			panic(fmt.Sprintf("cuda: %s copy needs host-visible %s, got %s memory", dir, role, buf.Target()))
		}
		return
	}
	if buf.Owner() != backend.Backend(b) {
		panic(fmt.Sprintf("cuda: %s copy needs a %s allocated by this backend, got %s memory", dir, role, buf.Target()))
	}
}

// Close releases the primary context. Buffers, streams and events must be
// destroyed first.
func (b *Backend) Close() error {
	var err error
	b.closeOnce.Do(func() {
		if r := b.drv.cuDevicePrimaryCtxRelease(b.device); r != cudaSuccess {
			err = errors.Errorf("cuda: release primary context: %v", r)
		}
	})
	return err
}

var _ backend.AsyncCopier = (*Backend)(nil)
