//go:build !linux

package cuda

import (
	"github.com/pkg/errors"

	"github.com/born-ml/devrt/internal/backend"
)

// Backend is unavailable on this platform; New never returns one.
type Backend struct {
	*backend.Missing
}

// New reports that the CUDA driver cannot be loaded on this platform.
func New(cfg Config) (*Backend, error) {
	if cfg.Device < 0 {
		return nil, errors.Errorf("cuda: invalid device ordinal %d", cfg.Device)
	}
	return nil, errors.Wrap(backend.ErrUnavailable, "cuda: driver loading is only supported on linux")
}

// Close does nothing.
func (b *Backend) Close() error { return nil }
