package host

import (
	"sync"
	"unsafe"
)

// sizeClass groups pooled blocks by capacity.
type sizeClass int

const (
	smallClass  sizeClass = iota // blocks < 4KB
	mediumClass                  // blocks 4KB-1MB
	largeClass                   // blocks > 1MB
	numClasses
)

const (
	smallThreshold  = 4 * 1024    // 4KB
	mediumThreshold = 1024 * 1024 // 1MB
)

// pool recycles aligned host memory blocks. Blocks are categorized by
// capacity so a request scans only blocks of a similar size.
type pool struct {
	alignment int
	maxPooled int // per class; 0 disables pooling

	mu      sync.Mutex
	classes [numClasses][][]byte

	// Statistics
	hits   uint64
	misses uint64
}

func newPool(alignment, maxPooled int) *pool {
	return &pool{alignment: alignment, maxPooled: maxPooled}
}

func classify(capacity int) sizeClass {
	if capacity < smallThreshold {
		return smallClass
	}
	if capacity < mediumThreshold {
		return mediumClass
	}
	return largeClass
}

// roundUp rounds n up to the pool alignment.
func (p *pool) roundUp(n int) int {
	return (n + p.alignment - 1) &^ (p.alignment - 1)
}

// acquire returns a zeroed block of len size whose first byte is aligned and
// whose capacity is at least size rounded up to the alignment.
func (p *pool) acquire(size int) []byte {
	capacity := p.roundUp(max(size, 1))

	p.mu.Lock()
	class := classify(capacity)
	blocks := p.classes[class]
	for i, block := range blocks {
		if cap(block) >= capacity {
			p.classes[class] = append(blocks[:i], blocks[i+1:]...)
			p.hits++
			p.mu.Unlock()

			block = block[:size]
			clear(block)
			return block
		}
	}
	p.misses++
	p.mu.Unlock()

	return p.alignedBlock(capacity)[:size]
}

// alignedBlock allocates capacity bytes starting on an alignment boundary.
func (p *pool) alignedBlock(capacity int) []byte {
	raw := make([]byte, capacity+p.alignment-1)
	//nolint:gosec // address inspection only, the slice keeps raw alive
	addr := uintptr(unsafe.Pointer(&raw[0]))
	off := int((uintptr(p.alignment) - addr%uintptr(p.alignment)) % uintptr(p.alignment))
	return raw[off : off+capacity : off+capacity]
}

// release returns a block for reuse. It reports false when the block was
// dropped because its class is full.
func (p *pool) release(block []byte) bool {
	block = block[:cap(block)]

	p.mu.Lock()
	defer p.mu.Unlock()

	class := classify(cap(block))
	if len(p.classes[class]) >= p.maxPooled {
		return false
	}
	p.classes[class] = append(p.classes[class], block)
	return true
}

// clearAll drops every pooled block.
func (p *pool) clearAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.classes {
		p.classes[i] = nil
	}
}

// stats returns hit/miss counters and the number of pooled blocks.
func (p *pool) stats() (hits, misses uint64, pooled int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, blocks := range p.classes {
		pooled += len(blocks)
	}
	return p.hits, p.misses, pooled
}
