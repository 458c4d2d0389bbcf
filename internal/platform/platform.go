// Package platform assembles the backend registry at process startup.
package platform

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/born-ml/devrt/internal/backend"
	"github.com/born-ml/devrt/internal/backend/cuda"
	"github.com/born-ml/devrt/internal/backend/host"
	"github.com/born-ml/devrt/internal/backend/webgpu"
	"github.com/born-ml/devrt/internal/config"
	"github.com/born-ml/devrt/internal/place"
)

// opener creates one optional backend.
type opener struct {
	target place.Target
	open   func() (backend.Backend, error)
}

func openers(cfg config.Config) []opener {
	var out []opener
	if cfg.CUDA.Enabled {
		cc := cuda.Config{
			Library:    cfg.CUDA.Library,
			Device:     cfg.CUDA.Device,
			MaxStreams: cfg.CUDA.MaxStreams,
		}
		out = append(out, opener{place.TargetCUDA, func() (backend.Backend, error) {
			b, err := cuda.New(cc)
			if err != nil {
				return nil, err
			}
			return b, nil
		}})
	}
	if cfg.WebGPU.Enabled {
		out = append(out, opener{place.TargetWebGPU, func() (backend.Backend, error) {
			b, err := webgpu.New(webgpu.DefaultConfig())
			if err != nil {
				return nil, err
			}
			return b, nil
		}})
	}
	return out
}

// Open validates cfg, registers the host backend, opens the enabled GPU
// backends concurrently and checks that every required target is served.
// A backend whose runtime is absent is skipped; any other open error, or a
// required target left without a backend, fails startup and releases what
// was opened.
func Open(ctx context.Context, cfg config.Config) (*backend.Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	required, err := cfg.RequiredTargets()
	if err != nil {
		return nil, err
	}

	reg := backend.NewRegistry()
	h, err := host.New(cfg.HostBackend())
	if err != nil {
		return nil, errors.Wrap(err, "platform: host backend")
	}
	if err := reg.Register(h); err != nil {
		return nil, err
	}

	pending := openers(cfg)
	opened := make([]backend.Backend, len(pending))
	g, ctx := errgroup.WithContext(ctx)
	for i, p := range pending {
		i, p := i, p
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			b, err := p.open()
			switch {
			case errors.Is(err, backend.ErrUnavailable):
				klog.V(1).Infof("platform: %s backend skipped: %v", p.target, err)
				return nil
			case err != nil:
				return errors.Wrapf(err, "platform: open %s backend", p.target)
			}
			opened[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		closeAll(opened)
		_ = reg.Close()
		return nil, err
	}

	for i, b := range opened {
		if b == nil {
			continue
		}
		if err := reg.Register(b); err != nil {
			closeAll(opened[i:])
			_ = reg.Close()
			return nil, err
		}
	}

	if err := reg.Require(required...); err != nil {
		_ = reg.Close()
		return nil, errors.WithMessage(err, "platform")
	}
	klog.V(1).Infof("platform: backends ready for %v", reg.Targets())
	return reg, nil
}

func closeAll(bs []backend.Backend) {
	for _, b := range bs {
		if c, ok := b.(io.Closer); ok {
			if err := c.Close(); err != nil {
				klog.Warningf("platform: closing %s: %v", b.Name(), err)
			}
		}
	}
}
