//go:build !windows

package webgpu

import (
	"github.com/pkg/errors"

	"github.com/born-ml/devrt/internal/backend"
)

// Backend is unavailable on this platform; New never returns one.
type Backend struct {
	*backend.Missing
}

// New reports that WebGPU is not supported on this platform.
func New(Config) (*Backend, error) {
	return nil, errors.Wrap(backend.ErrUnavailable, "webgpu: only supported on windows builds")
}

// IsAvailable reports false.
func IsAvailable() bool { return false }

// Close does nothing.
func (b *Backend) Close() error { return nil }
