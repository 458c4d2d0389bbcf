//go:build windows

package webgpu

import (
	"sync"

	"github.com/go-webgpu/webgpu/wgpu"
)

// sizeClass represents different buffer size categories for pooling.
type sizeClass int

const (
	// smallClass for buffers < 4KB.
	smallClass sizeClass = iota
	// mediumClass for buffers 4KB-1MB.
	mediumClass
	// largeClass for buffers > 1MB.
	largeClass
	numClasses
)

const (
	smallThreshold  = 4 * 1024    // 4KB
	mediumThreshold = 1024 * 1024 // 1MB
)

// pooledBuffer wraps a GPU buffer with metadata.
type pooledBuffer struct {
	buffer *wgpu.Buffer
	size   uint64
	usage  wgpu.BufferUsage
}

// bufferPool manages GPU buffer reuse. Buffers are categorized by size and
// matched on usage flags.
type bufferPool struct {
	device    *wgpu.Device
	maxPooled int

	mu      sync.Mutex
	classes [numClasses][]pooledBuffer

	// Statistics
	created  uint64
	returned uint64
	hits     uint64
	misses   uint64
}

func newBufferPool(device *wgpu.Device, maxPooled int) *bufferPool {
	return &bufferPool{device: device, maxPooled: maxPooled}
}

func classify(size uint64) sizeClass {
	switch {
	case size < smallThreshold:
		return smallClass
	case size < mediumThreshold:
		return mediumClass
	default:
		return largeClass
	}
}

// acquire returns a buffer of at least size bytes with the given usage and
// its real size. Freshly created buffers are zero-filled by the device.
func (p *bufferPool) acquire(size uint64, usage wgpu.BufferUsage) (*wgpu.Buffer, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c := classify(size)
	for i, pb := range p.classes[c] {
		if pb.size >= size && pb.usage&usage == usage {
			p.classes[c] = append(p.classes[c][:i], p.classes[c][i+1:]...)
			p.hits++
			return pb.buffer, pb.size
		}
	}

	p.misses++
	p.created++
	buffer := p.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: usage,
		Size:  size,
	})
	return buffer, size
}

// release keeps the buffer for reuse, or destroys it when its class is full.
func (p *bufferPool) release(buffer *wgpu.Buffer, size uint64, usage wgpu.BufferUsage) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.returned++
	c := classify(size)
	if len(p.classes[c]) >= p.maxPooled {
		buffer.Release()
		return
	}
	p.classes[c] = append(p.classes[c], pooledBuffer{buffer: buffer, size: size, usage: usage})
}

// clear releases all pooled buffers.
func (p *bufferPool) clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for c := range p.classes {
		for _, pb := range p.classes[c] {
			pb.buffer.Release()
		}
		p.classes[c] = nil
	}
}

func (p *bufferPool) stats() (created, returned, hits, misses uint64, pooled int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for c := range p.classes {
		pooled += len(p.classes[c])
	}
	return p.created, p.returned, p.hits, p.misses, pooled
}
