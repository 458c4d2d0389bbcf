// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package webgpu provides the WebGPU backend.
//
// The backend is built on windows; elsewhere New reports
// backend.ErrUnavailable.
//
// Example:
//
//	import (
//	    "github.com/born-ml/devrt/backend"
//	    "github.com/born-ml/devrt/backend/webgpu"
//	)
//
//	func main() {
//	    gpu, err := webgpu.New(webgpu.DefaultConfig())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer gpu.Close()
//
//	    buf := gpu.Allocate(1 << 20)
//	    defer buf.Release()
//	}
package webgpu

import (
	"github.com/born-ml/devrt/backend"
	internalwebgpu "github.com/born-ml/devrt/internal/backend/webgpu"
)

// Backend represents the WebGPU backend.
type Backend = internalwebgpu.Backend

// Config tunes stream batching and buffer pooling.
type Config = internalwebgpu.Config

// Compile-time check that Backend implements backend.Backend.
var _ backend.Backend = (*Backend)(nil)

// DefaultConfig returns the configuration used at platform startup.
func DefaultConfig() Config { return internalwebgpu.DefaultConfig() }

// New creates a WebGPU backend. Call Close when done to free GPU resources.
//
// Returns an error if WebGPU initialization fails (e.g., no compatible GPU).
func New(cfg Config) (*Backend, error) {
	return internalwebgpu.New(cfg)
}

// IsAvailable checks if WebGPU is available on the current system.
//
// It's useful for graceful fallback to the host backend when no GPU is
// available.
func IsAvailable() bool {
	return internalwebgpu.IsAvailable()
}
