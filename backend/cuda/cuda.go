// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cuda provides the CUDA backend.
//
// The CUDA driver is loaded at runtime, so programs build without cgo or the
// CUDA toolkit. New fails with backend.ErrUnavailable when no driver or
// device is present.
package cuda

import (
	"github.com/born-ml/devrt/backend"
	internalcuda "github.com/born-ml/devrt/internal/backend/cuda"
)

// Backend is the CUDA backend bound to one device.
type Backend = internalcuda.Backend

// Config selects the driver library and device.
type Config = internalcuda.Config

// Compile-time check that Backend implements backend.Backend.
var _ backend.Backend = (*Backend)(nil)

// DefaultConfig binds device 0.
func DefaultConfig() Config { return internalcuda.DefaultConfig() }

// New binds the device selected by cfg. Call Close when done.
func New(cfg Config) (*Backend, error) { return internalcuda.New(cfg) }
