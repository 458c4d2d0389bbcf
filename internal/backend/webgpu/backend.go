//go:build windows

package webgpu

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/devrt/internal/backend"
	"github.com/born-ml/devrt/internal/place"
)

const storageUsage = wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst

// deviceMemory is the handle stored in buffers allocated by this backend.
type deviceMemory struct {
	buffer *wgpu.Buffer
	size   uint64 // real size of buffer, >= padded(Buffer.Size())
}

// stream is a list of command buffers waiting for submission, plus the
// staging buffers they read from.
type stream struct {
	pending []*wgpu.CommandBuffer
	staging []*wgpu.Buffer
}

// event records a submission point. staging holds the upload buffers of
// the commands it covers until a wait proves them consumed.
type event struct {
	recorded bool
	staging  []*wgpu.Buffer
}

// Backend serves TargetWebGPU on the default high-performance adapter.
type Backend struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	// Device info
	adapterInfo *wgpu.AdapterInfoGo

	cfg  Config
	pool *bufferPool

	// Memory tracking
	memoryStats struct {
		totalAllocatedBytes uint64
		peakMemoryBytes     uint64
		activeBuffers       int64
		mu                  sync.RWMutex
	}

	// Streams and events. Stream 0 is the implicit stream.
	mu         sync.Mutex
	streams    map[backend.Stream]*stream
	nextStream backend.Stream
	events     map[backend.Event]*event
	nextEvent  backend.Event

	// fence is a tiny buffer read back to wait for queue completion.
	fence *wgpu.Buffer
}

// New creates a WebGPU backend.
// Returns an error wrapping backend.ErrUnavailable if WebGPU is not available.
func New(cfg Config) (b *Backend, err error) {
	// Recover from panic if wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			b = nil
			err = errors.Wrapf(backend.ErrUnavailable, "webgpu: native library not available: %v", r)
		}
	}()

	instance, instanceErr := wgpu.CreateInstance(nil)
	if instanceErr != nil {
		return nil, errors.Wrapf(backend.ErrUnavailable, "webgpu: failed to create instance: %v", instanceErr)
	}
	adapter, adapterErr := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if adapterErr != nil {
		instance.Release()
		return nil, errors.Wrapf(backend.ErrUnavailable, "webgpu: failed to request adapter: %v", adapterErr)
	}
	adapterInfo, infoErr := adapter.GetInfo()
	if infoErr != nil {
		adapter.Release()
		instance.Release()
		return nil, errors.Wrapf(backend.ErrUnavailable, "webgpu: failed to query adapter: %v", infoErr)
	}

	device, deviceErr := adapter.RequestDevice(nil)
	if deviceErr != nil {
		adapter.Release()
		instance.Release()
		return nil, errors.Wrapf(backend.ErrUnavailable, "webgpu: failed to request device: %v", deviceErr)
	}
	queue := device.GetQueue()
	if queue == nil {
		device.Release()
		adapter.Release()
		instance.Release()
		return nil, errors.Wrap(backend.ErrUnavailable, "webgpu: failed to get queue")
	}

	b = &Backend{
		instance:    instance,
		adapter:     adapter,
		device:      device,
		queue:       queue,
		adapterInfo: adapterInfo,
		cfg:         cfg,
		pool:        newBufferPool(device, cfg.MaxPooled),
		streams:     map[backend.Stream]*stream{0: {}},
		events:      map[backend.Event]*event{},
		fence: device.CreateBuffer(&wgpu.BufferDescriptor{
			Usage: wgpu.BufferUsageCopySrc,
			Size:  copyAlignment,
		}),
	}
	klog.V(1).Infof("webgpu: using %s", b.Name())
	return b, nil
}

// IsAvailable checks if WebGPU is available on this system.
func IsAvailable() (available bool) {
	// Recover from panic if wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			available = false
		}
	}()

	instance, err := wgpu.CreateInstance(nil)
	if err != nil {
		return false
	}
	defer instance.Release()

	adapter, err := instance.RequestAdapter(nil)
	if err != nil {
		return false
	}
	adapter.Release()
	return true
}

// Target returns TargetWebGPU.
func (b *Backend) Target() place.Target { return place.TargetWebGPU }

// Name returns the backend name.
func (b *Backend) Name() string {
	if b.adapterInfo != nil {
		return fmt.Sprintf("WebGPU (%s %s)", b.adapterInfo.Device, b.adapterInfo.Vendor)
	}
	return "WebGPU"
}

// DeviceCount returns 1: the backend drives one adapter.
func (b *Backend) DeviceCount() int { return 1 }

// MaxStreamCount returns the configured stream limit.
func (b *Backend) MaxStreamCount() int { return b.cfg.MaxStreams }

// CreateStream returns a new, empty command list.
func (b *Backend) CreateStream() backend.Stream {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextStream++
	b.streams[b.nextStream] = &stream{}
	return b.nextStream
}

// DestroyStream drops s. Commands still pending on s are submitted first.
func (b *Backend) DestroyStream(s backend.Stream) {
	if s == 0 {
		return
	}
	if staging := b.drain(s, true); len(staging) > 0 {
		b.wait()
		releaseAll(staging)
	}
}

// StreamSync submits the commands pending on s and waits for the queue.
func (b *Backend) StreamSync(s backend.Stream) {
	staging := b.drain(s, false)
	b.wait()
	releaseAll(staging)
}

// drain submits the commands pending on s and hands back its staging
// buffers, optionally forgetting the stream.
func (b *Backend) drain(s backend.Stream, remove bool) []*wgpu.Buffer {
	b.mu.Lock()
	defer b.mu.Unlock()

	st := b.lookupLocked(s)
	b.submitLocked(st)
	staging := st.staging
	st.staging = nil
	if remove {
		delete(b.streams, s)
	}
	return staging
}

// CreateEvent returns a new event.
func (b *Backend) CreateEvent() backend.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextEvent++
	b.events[b.nextEvent] = &event{}
	return b.nextEvent
}

// DestroyEvent drops e, releasing the staging buffers it still holds once
// the queue has consumed them.
func (b *Backend) DestroyEvent(e backend.Event) {
	b.mu.Lock()
	var staging []*wgpu.Buffer
	if ev, ok := b.events[e]; ok {
		staging = ev.staging
		delete(b.events, e)
	}
	b.mu.Unlock()
	if len(staging) > 0 {
		b.wait()
		releaseAll(staging)
	}
}

// RecordEvent submits the commands pending on s, so that e covers them.
// The staging buffers of those commands move from s to e.
func (b *Backend) RecordEvent(e backend.Event, s backend.Stream) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ev, ok := b.events[e]
	if !ok {
		if e != 0 {
			panic(fmt.Sprintf("webgpu: unknown event %d", e))
		}
		ev = &event{}
		b.events[0] = ev
	}
	st := b.lookupLocked(s)
	b.submitLocked(st)
	ev.recorded = true
	ev.staging = append(ev.staging, st.staging...)
	st.staging = nil
}

// SyncEvent waits until the work submitted before e was recorded completes
// and releases the staging buffers that work read from.
func (b *Backend) SyncEvent(e backend.Event) {
	b.mu.Lock()
	var (
		recorded bool
		staging  []*wgpu.Buffer
	)
	if ev, ok := b.events[e]; ok {
		recorded = ev.recorded
		staging, ev.staging = ev.staging, nil
	}
	b.mu.Unlock()
	if recorded {
		b.wait()
	}
	releaseAll(staging)
}

func (b *Backend) lookupLocked(s backend.Stream) *stream {
	st, ok := b.streams[s]
	if !ok {
		panic(fmt.Sprintf("webgpu: unknown stream %d", s))
	}
	return st
}

// submitLocked submits all pending command buffers of st (must hold mu).
func (b *Backend) submitLocked(st *stream) {
	if len(st.pending) == 0 {
		return
	}
	b.queue.Submit(st.pending...)
	st.pending = st.pending[:0]
}

// enqueue adds a command buffer to s, submitting the batch when it is full.
func (b *Backend) enqueue(s backend.Stream, cmd *wgpu.CommandBuffer, staging *wgpu.Buffer) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st := b.lookupLocked(s)
	st.pending = append(st.pending, cmd)
	if staging != nil {
		st.staging = append(st.staging, staging)
	}
	if b.cfg.MaxBatchSize > 0 && len(st.pending) >= b.cfg.MaxBatchSize {
		b.submitLocked(st)
	}
}

// wait blocks until every submission made so far has completed. The queue
// executes in order, so mapping a copy submitted now suffices.
func (b *Backend) wait() {
	if _, err := b.readBuffer(b.fence, 0, copyAlignment); err != nil {
		klog.Fatalf("webgpu: queue wait failed: %v", err)
	}
}

func releaseAll(buffers []*wgpu.Buffer) {
	for _, buf := range buffers {
		buf.Release()
	}
}

// Allocate returns a device buffer of size bytes. The underlying buffer is
// padded to a multiple of 4 bytes.
func (b *Backend) Allocate(size int) *backend.Buffer {
	if size < 0 {
		panic(fmt.Sprintf("webgpu: negative allocation size %d", size))
	}
	buf, capacity := b.pool.acquire(padded(size), storageUsage)
	if buf == nil {
		klog.Fatalf("webgpu: failed to allocate %d bytes", size)
	}
	b.trackBufferAllocation(capacity)
	klog.V(5).Infof("webgpu: allocated %d bytes (buffer %d)", size, capacity)
	return backend.NewDeviceBuffer(b, 0, size, 0, &deviceMemory{buffer: buf, size: capacity})
}

// Free returns buf to the pool.
func (b *Backend) Free(buf *backend.Buffer) {
	backend.CheckOwner(b, buf)
	buf.MarkReleased()
	mem := memoryOf(buf)
	buf.Detach()

	b.trackBufferRelease(mem.size)
	b.pool.release(mem.buffer, mem.size, storageUsage)
}

func memoryOf(buf *backend.Buffer) *deviceMemory {
	mem, ok := buf.Handle().(*deviceMemory)
	if !ok {
		panic(fmt.Sprintf("webgpu: %s buffer has no GPU memory", buf.Target()))
	}
	return mem
}

// CopySync copies size bytes and returns once the device has finished.
// Commands pending on stream 0 are submitted first, so the copy observes
// them. Only the bytes [0, size) of the destination are written.
func (b *Backend) CopySync(dst, src *backend.Buffer, size int, dir backend.Direction) {
	if !b.checkDirection(dst, src, size, dir) {
		return
	}
	staging := b.drain(0, false)
	defer releaseAll(staging)

	aligned, tail := split(size)
	switch dir {
	case backend.HostToDevice:
		data := src.Bytes()[:size]
		dstBuf := memoryOf(dst).buffer
		if aligned > 0 {
			upload := b.uploadStaging(data[:aligned])
			defer upload.Release()
			b.queue.Submit(b.copyCommand(upload, 0, dstBuf, 0, aligned))
		}
		if tail > 0 {
			b.writeTail(dstBuf, aligned, data[aligned:])
		}
		b.wait()
	case backend.DeviceToHost:
		data, err := b.readBuffer(memoryOf(src).buffer, 0, padded(size))
		if err != nil {
			klog.Fatalf("webgpu: DtoH copy of %d bytes failed: %v", size, err)
		}
		copy(dst.Bytes()[:size], data)
	case backend.DeviceToDevice:
		srcBuf, dstBuf := memoryOf(src).buffer, memoryOf(dst).buffer
		if aligned > 0 {
			b.queue.Submit(b.copyCommand(srcBuf, 0, dstBuf, 0, aligned))
		}
		if tail > 0 {
			word, err := b.readBuffer(srcBuf, aligned, copyAlignment)
			if err != nil {
				klog.Fatalf("webgpu: DtoD copy of %d bytes failed: %v", size, err)
			}
			b.writeTail(dstBuf, aligned, word[:tail])
		}
		b.wait()
	}
}

// CopyAsync enqueues the copy on s. Host data is captured into a staging
// buffer at enqueue time. Device-to-host copies need a mapped readback, and
// a size that is not a multiple of 4 needs a read-modify-write of the last
// word; both are performed synchronously after the commands pending on s.
func (b *Backend) CopyAsync(dst, src *backend.Buffer, size int, dir backend.Direction, s backend.Stream) {
	if !b.checkDirection(dst, src, size, dir) {
		return
	}
	if _, tail := split(size); dir == backend.DeviceToHost || tail > 0 {
		b.StreamSync(s)
		b.CopySync(dst, src, size, dir)
		return
	}
	switch dir {
	case backend.HostToDevice:
		staging := b.uploadStaging(src.Bytes()[:size])
		b.enqueue(s, b.copyCommand(staging, 0, memoryOf(dst).buffer, 0, uint64(size)), staging)
	case backend.DeviceToDevice:
		b.enqueue(s, b.copyCommand(memoryOf(src).buffer, 0, memoryOf(dst).buffer, 0, uint64(size)), nil)
	}
}

// checkDirection validates a copy and performs the cases that need no GPU
// work: empty copies and host-to-host. It reports whether GPU work remains.
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
		panic(fmt.Sprintf("webgpu: unknown copy direction %s", dir))
	}
	b.checkSide("destination", dst, dstHost, dir)
	b.checkSide("source", src, srcHost, dir)

	if size == 0 {
		return false
	}
	switch {
	case dir == backend.HostToHost:
		copy(dst.Bytes()[:size], src.Bytes()[:size])
		return false
	case dir == backend.DeviceToDevice && dst == src:
		// WebGPU rejects copies within one buffer; this one changes nothing.
		return false
	}
	return true
}

func (b *Backend) checkSide(role string, buf *backend.Buffer, host bool, dir backend.Direction) {
	if host {
		if !buf.HostVisible() {
			panic(fmt.Sprintf("webgpu: %s copy needs host-visible %s, got %s memory", dir, role, buf.Target()))
		}
		return
	}
	if buf.Owner() != backend.Backend(b) {
		panic(fmt.Sprintf("webgpu: %s copy needs a %s allocated by this backend, got %s memory", dir, role, buf.Target()))
	}
}

// uploadStaging creates a copy-source buffer holding data, zero-padded to the
// copy alignment.
func (b *Backend) uploadStaging(data []byte) *wgpu.Buffer {
	size := padded(len(data))
	buffer := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            wgpu.BufferUsageCopySrc,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})

	mappedPtr := buffer.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	mappedSlice := unsafe.Slice((*byte)(mappedPtr), size)
	n := copy(mappedSlice, data)
	clear(mappedSlice[n:])
	buffer.Unmap()
	return buffer
}

// split divides size into its 4-byte aligned prefix and the length of the
// partial word that follows it.
func split(size int) (aligned uint64, tail int) {
	aligned = uint64(size) &^ (copyAlignment - 1)
	return aligned, size - int(aligned)
}

// copyCommand encodes a copy of size bytes. Offsets and size must be
// multiples of the copy alignment.
func (b *Backend) copyCommand(src *wgpu.Buffer, srcOffset uint64, dst *wgpu.Buffer, dstOffset, size uint64) *wgpu.CommandBuffer {
	encoder := b.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(src, srcOffset, dst, dstOffset, size)
	return encoder.Finish(nil)
}

// writeTail stores tail at offset off of dst, which is word aligned. The
// bytes of that word past len(tail) keep their current value.
func (b *Backend) writeTail(dst *wgpu.Buffer, off uint64, tail []byte) {
	word, err := b.readBuffer(dst, off, copyAlignment)
	if err != nil {
		klog.Fatalf("webgpu: read of partial word at %d failed: %v", off, err)
	}
	copy(word, tail)
	b.queue.WriteBuffer(dst, off, word)
}

// readBuffer reads size bytes at offset from a GPU buffer to CPU memory.
// Uses a staging buffer since storage buffers can't be mapped directly.
func (b *Backend) readBuffer(srcBuffer *wgpu.Buffer, offset, size uint64) ([]byte, error) {
	stagingBuffer := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		Size:  size,
	})
	defer stagingBuffer.Release()

	b.queue.Submit(b.copyCommand(srcBuffer, offset, stagingBuffer, 0, size))

	if err := stagingBuffer.MapAsync(b.device, wgpu.MapModeRead, 0, size); err != nil {
		return nil, errors.Wrap(err, "failed to map staging buffer")
	}

	mappedPtr := stagingBuffer.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	mappedSlice := unsafe.Slice((*byte)(mappedPtr), size)
	result := make([]byte, size)
	copy(result, mappedSlice)
	stagingBuffer.Unmap()

	return result, nil
}

// Close submits outstanding work, waits for it and releases all WebGPU
// resources.
func (b *Backend) Close() error {
	b.mu.Lock()
	var staging []*wgpu.Buffer
	for _, st := range b.streams {
		b.submitLocked(st)
		staging = append(staging, st.staging...)
		st.staging = nil
	}
	for _, ev := range b.events {
		staging = append(staging, ev.staging...)
		ev.staging = nil
	}
	b.mu.Unlock()
	if b.queue == nil {
		return nil
	}
	b.wait()
	releaseAll(staging)

	b.pool.clear()
	b.fence.Release()
	b.queue.Release()
	b.device.Release()
	b.adapter.Release()
	b.instance.Release()
	b.queue = nil
	return nil
}

// AdapterInfo returns information about the GPU adapter.
func (b *Backend) AdapterInfo() *wgpu.AdapterInfoGo {
	return b.adapterInfo
}

// MemoryStats represents GPU memory usage statistics.
type MemoryStats struct {
	// Bytes currently held by live buffers
	TotalAllocatedBytes uint64
	// Peak memory usage in bytes
	PeakMemoryBytes uint64
	// Number of currently active buffers
	ActiveBuffers int64
	// Buffer pool statistics
	PoolCreated   uint64
	PoolReturned  uint64
	PoolHits      uint64
	PoolMisses    uint64
	PooledBuffers int
}

// MemoryStats returns current GPU memory usage statistics.
func (b *Backend) MemoryStats() MemoryStats {
	b.memoryStats.mu.RLock()
	totalAllocated := b.memoryStats.totalAllocatedBytes
	peakMemory := b.memoryStats.peakMemoryBytes
	activeBuffers := b.memoryStats.activeBuffers
	b.memoryStats.mu.RUnlock()

	created, returned, hits, misses, pooled := b.pool.stats()
	return MemoryStats{
		TotalAllocatedBytes: totalAllocated,
		PeakMemoryBytes:     peakMemory,
		ActiveBuffers:       activeBuffers,
		PoolCreated:         created,
		PoolReturned:        returned,
		PoolHits:            hits,
		PoolMisses:          misses,
		PooledBuffers:       pooled,
	}
}

func (b *Backend) trackBufferAllocation(size uint64) {
	b.memoryStats.mu.Lock()
	defer b.memoryStats.mu.Unlock()

	b.memoryStats.totalAllocatedBytes += size
	b.memoryStats.activeBuffers++
	if b.memoryStats.totalAllocatedBytes > b.memoryStats.peakMemoryBytes {
		b.memoryStats.peakMemoryBytes = b.memoryStats.totalAllocatedBytes
	}
}

func (b *Backend) trackBufferRelease(size uint64) {
	b.memoryStats.mu.Lock()
	defer b.memoryStats.mu.Unlock()

	if b.memoryStats.totalAllocatedBytes >= size {
		b.memoryStats.totalAllocatedBytes -= size
	}
	b.memoryStats.activeBuffers--
}

var _ backend.AsyncCopier = (*Backend)(nil)
