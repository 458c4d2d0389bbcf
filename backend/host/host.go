// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package host provides the backend for ordinary process memory.
package host

import (
	"github.com/born-ml/devrt/backend"
	internalhost "github.com/born-ml/devrt/internal/backend/host"
)

// Backend is the host backend.
type Backend = internalhost.HostBackend

// Config tunes allocation alignment, pooling and parallel copies.
type Config = internalhost.Config

// MemoryStats reports host allocation statistics.
type MemoryStats = internalhost.MemoryStats

// Compile-time check that Backend implements backend.Backend.
var _ backend.Backend = (*Backend)(nil)

// DefaultConfig returns 64-byte alignment, pooling and a 1 MiB parallel
// copy threshold.
func DefaultConfig() Config { return internalhost.DefaultConfig() }

// New creates a host backend.
//
// Example:
//
//	h, err := host.New(host.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	buf := h.Allocate(4096)
//	defer buf.Release()
func New(cfg Config) (*Backend, error) { return internalhost.New(cfg) }
