// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package backend

import (
	"context"

	internalbackend "github.com/born-ml/devrt/internal/backend"
	"github.com/born-ml/devrt/internal/config"
	"github.com/born-ml/devrt/internal/platform"
)

// Backend is the capability set of one target kind.
type Backend = internalbackend.Backend

// AsyncCopier is implemented by backends that queue copies on streams.
type AsyncCopier = internalbackend.AsyncCopier

// Buffer is an allocation owned by the caller until released.
type Buffer = internalbackend.Buffer

// Registry maps each target to its backend.
type Registry = internalbackend.Registry

// Direction is the direction of a memory copy.
type Direction = internalbackend.Direction

// Stream is an ordered queue of device work; 0 is the implicit stream.
type Stream = internalbackend.Stream

// Event is a synchronization marker recorded on a stream.
type Event = internalbackend.Event

// Config drives Open.
type Config = config.Config

// Copy directions.
const (
	HostToHost     = internalbackend.HostToHost
	HostToDevice   = internalbackend.HostToDevice
	DeviceToHost   = internalbackend.DeviceToHost
	DeviceToDevice = internalbackend.DeviceToDevice
)

// Errors, for use with errors.Is.
var (
	ErrNoBackend        = internalbackend.ErrNoBackend
	ErrInvalidTarget    = internalbackend.ErrInvalidTarget
	ErrInvalidPlace     = internalbackend.ErrInvalidPlace
	ErrDuplicateBackend = internalbackend.ErrDuplicateBackend
	ErrUnavailable      = internalbackend.ErrUnavailable
)

// NewRegistry returns a registry in which every target holds its stub.
func NewRegistry() *Registry { return internalbackend.NewRegistry() }

// IsMissing reports whether b is the stub of a target without a backend.
func IsMissing(b Backend) bool { return internalbackend.IsMissing(b) }

// CopyAsync enqueues a copy on s when b supports it, and otherwise copies
// synchronously.
func CopyAsync(b Backend, dst, src *Buffer, size int, dir Direction, s Stream) {
	internalbackend.CopyAsync(b, dst, src, size, dir, s)
}

// DefaultConfig returns the default configuration: every backend enabled and
// the host required.
func DefaultConfig() Config { return config.Defaults() }

// LoadConfig reads a YAML configuration file.
func LoadConfig(path string) (Config, error) { return config.Load(path) }

// Open builds a Registry from cfg. The caller closes it.
func Open(ctx context.Context, cfg Config) (*Registry, error) {
	return platform.Open(ctx, cfg)
}
