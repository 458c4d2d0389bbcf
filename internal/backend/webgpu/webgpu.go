// Package webgpu implements the WebGPU backend.
// Uses go-webgpu (github.com/go-webgpu/webgpu) for zero-CGO WebGPU bindings.
//
// The backend drives a single adapter and queue. Streams are pending command
// lists that are submitted together, and completion is observed by mapping a
// staging buffer, which the queue orders after all earlier submissions.
package webgpu

// Config tunes the WebGPU backend.
type Config struct {
	// MaxStreams is reported by MaxStreamCount.
	MaxStreams int
	// MaxBatchSize is the number of commands a stream accumulates before it
	// is submitted automatically (0 = no limit).
	MaxBatchSize int
	// MaxPooled is the number of freed buffers kept per size class.
	MaxPooled int
}

// DefaultConfig returns the configuration used at platform startup.
func DefaultConfig() Config {
	return Config{MaxStreams: 16, MaxBatchSize: 64, MaxPooled: 100}
}

// copyAlignment is the granularity of buffer sizes and copy lengths.
const copyAlignment = 4

func padded(size int) uint64 {
	n := uint64(size+copyAlignment-1) &^ (copyAlignment - 1)
	return max(n, copyAlignment)
}
