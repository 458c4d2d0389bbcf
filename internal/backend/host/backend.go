// Package host implements the backend for ordinary process memory.
package host

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/devrt/internal/backend"
	"github.com/born-ml/devrt/internal/parallel"
	"github.com/born-ml/devrt/internal/place"
)

// Config tunes the host allocator and copy path.
type Config struct {
	Alignment         int // Byte alignment of every allocation; a power of two.
	MaxPooled         int // Freed blocks kept per size class; 0 disables pooling.
	ParallelThreshold int // Copies of at least this many bytes are split across workers.
	Workers           int // Copy workers; 0 uses the CPU count.
}

// DefaultConfig returns the configuration used by New when none is given.
func DefaultConfig() Config {
	return Config{
		Alignment:         64,
		MaxPooled:         100,
		ParallelThreshold: 1 << 20,
		Workers:           0,
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.Alignment <= 0 || c.Alignment&(c.Alignment-1) != 0 {
		return errors.Errorf("host: alignment %d is not a positive power of two", c.Alignment)
	}
	if c.MaxPooled < 0 {
		return errors.Errorf("host: max pooled %d must be >= 0", c.MaxPooled)
	}
	if c.ParallelThreshold < 0 {
		return errors.Errorf("host: parallel threshold %d must be >= 0", c.ParallelThreshold)
	}
	if c.Workers < 0 {
		return errors.Errorf("host: workers %d must be >= 0", c.Workers)
	}
	return nil
}

// HostBackend serves TargetHost. It exposes one device and only the implicit
// stream, so stream and event operations are no-ops and asynchronous copies
// run synchronously.
type HostBackend struct {
	backend.Defaults

	cfg      Config
	parallel parallel.Config
	pool     *pool

	// Memory tracking
	memoryStats struct {
		totalAllocatedBytes uint64
		peakMemoryBytes     uint64
		activeBuffers       int64
		mu                  sync.RWMutex
	}
}

// New creates a host backend.
func New(cfg Config) (*HostBackend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pc := parallel.DefaultConfig().WithWorkers(cfg.Workers)
	if cfg.ParallelThreshold > 0 {
		pc.MinChunkSize = max(cfg.ParallelThreshold/max(pc.NumWorkers, 1), 1)
	}
	return &HostBackend{
		cfg:      cfg,
		parallel: pc,
		pool:     newPool(cfg.Alignment, cfg.MaxPooled),
	}, nil
}

// Target returns TargetHost.
func (h *HostBackend) Target() place.Target { return place.TargetHost }

// Name returns the backend name.
func (h *HostBackend) Name() string { return "Host" }

// DeviceCount returns 1. Process memory is addressed as device 0, so the
// host reports one device instead of the 0 of a backend with no devices.
// Callers iterating 0..DeviceCount()-1 therefore visit the host too.
func (h *HostBackend) DeviceCount() int { return 1 }

// Allocate returns a zeroed, aligned buffer of size bytes.
func (h *HostBackend) Allocate(size int) *backend.Buffer {
	if size < 0 {
		panic(fmt.Sprintf("host: negative allocation size %d", size))
	}
	block := h.pool.acquire(size)
	h.trackAllocation(uint64(cap(block)))
	klog.V(5).Infof("host: allocated %d bytes (capacity %d)", size, cap(block))
	return backend.NewHostBuffer(h, 0, block)
}

// Free returns buf's memory to the pool. It panics if buf was not allocated
// by h or was already freed.
func (h *HostBackend) Free(buf *backend.Buffer) {
	backend.CheckOwner(h, buf)
	buf.MarkReleased()
	block := buf.Bytes()
	buf.Detach()

	h.trackRelease(uint64(cap(block)))
	if !h.pool.release(block) {
		klog.V(5).Infof("host: pool full, dropped %d-byte block", cap(block))
	}
}

// CopySync copies size bytes between host-visible buffers. Every direction
// is an ordinary memory copy on the host; callers need not special-case it.
func (h *HostBackend) CopySync(dst, src *backend.Buffer, size int, dir backend.Direction) {
	backend.CheckCopy(dst, src, size)
	if !dst.HostVisible() || !src.HostVisible() {
		panic(fmt.Sprintf("host: %s copy between %s and %s buffers needs host-visible memory", dir, dst.Target(), src.Target()))
	}
	d, s := dst.Bytes()[:size], src.Bytes()[:size]

	if h.cfg.ParallelThreshold == 0 || size < h.cfg.ParallelThreshold {
		copy(d, s)
		return
	}
	parallel.ForRange(size, func(lo, hi int) {
		copy(d[lo:hi], s[lo:hi])
	}, h.parallel)
}

// Close drops pooled memory. The backend remains usable.
func (h *HostBackend) Close() error {
	h.pool.clearAll()
	return nil
}

// MemoryStats represents host allocation statistics.
type MemoryStats struct {
	// Bytes currently allocated (by capacity)
	TotalAllocatedBytes uint64
	// Peak of TotalAllocatedBytes
	PeakMemoryBytes uint64
	// Number of live buffers
	ActiveBuffers int64
	// Pool statistics
	PoolHits      uint64
	PoolMisses    uint64
	PooledBuffers int
}

// MemoryStats returns current allocation statistics.
func (h *HostBackend) MemoryStats() MemoryStats {
	h.memoryStats.mu.RLock()
	total := h.memoryStats.totalAllocatedBytes
	peak := h.memoryStats.peakMemoryBytes
	active := h.memoryStats.activeBuffers
	h.memoryStats.mu.RUnlock()

	hits, misses, pooled := h.pool.stats()
	return MemoryStats{
		TotalAllocatedBytes: total,
		PeakMemoryBytes:     peak,
		ActiveBuffers:       active,
		PoolHits:            hits,
		PoolMisses:          misses,
		PooledBuffers:       pooled,
	}
}

func (h *HostBackend) trackAllocation(size uint64) {
	h.memoryStats.mu.Lock()
	defer h.memoryStats.mu.Unlock()

	h.memoryStats.totalAllocatedBytes += size
	h.memoryStats.activeBuffers++
	if h.memoryStats.totalAllocatedBytes > h.memoryStats.peakMemoryBytes {
		h.memoryStats.peakMemoryBytes = h.memoryStats.totalAllocatedBytes
	}
}

func (h *HostBackend) trackRelease(size uint64) {
	h.memoryStats.mu.Lock()
	defer h.memoryStats.mu.Unlock()

	if h.memoryStats.totalAllocatedBytes >= size {
		h.memoryStats.totalAllocatedBytes -= size
	}
	h.memoryStats.activeBuffers--
}
