//go:build windows

package webgpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	assert.Equal(t, smallClass, classify(100))
	assert.Equal(t, mediumClass, classify(4096))
	assert.Equal(t, mediumClass, classify(1024*1024-1))
	assert.Equal(t, largeClass, classify(1024*1024))
}

func TestBackend_MemoryStats(t *testing.T) {
	b := newTestBackend(t)

	buf := b.Allocate(1000)
	stats := b.MemoryStats()
	assert.Equal(t, uint64(1000), stats.TotalAllocatedBytes)
	assert.Equal(t, int64(1), stats.ActiveBuffers)
	assert.Equal(t, uint64(1), stats.PoolMisses)

	buf.Release()
	again := b.Allocate(998)
	defer again.Release()

	stats = b.MemoryStats()
	assert.Equal(t, uint64(1), stats.PoolHits)
	assert.Equal(t, uint64(1000), stats.PeakMemoryBytes)
	assert.Equal(t, 0, stats.PooledBuffers)
}
