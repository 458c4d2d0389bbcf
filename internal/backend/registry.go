package backend

import (
	"io"
	"sync"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/devrt/internal/place"
)

// Errors reported by the Registry and by backend constructors.
var (
	// ErrNoBackend means the target has no dedicated backend.
	ErrNoBackend = errors.New("backend not available for target")
	// ErrInvalidTarget means the target is Unknown, Any or undeclared.
	ErrInvalidTarget = errors.New("invalid target")
	// ErrInvalidPlace means the place is not fully resolved.
	ErrInvalidPlace = errors.New("invalid place")
	// ErrDuplicateBackend means a dedicated backend is already registered.
	ErrDuplicateBackend = errors.New("backend already registered")
	// ErrUnavailable means a backend's runtime or device is not present.
	ErrUnavailable = errors.New("backend runtime unavailable")
)

// Registry maps each target to its backend. Every slot starts out holding
// the Missing stub for its target.
type Registry struct {
	mu    sync.RWMutex
	slots [place.NumTargets]Backend
}

// NewRegistry returns a registry with no dedicated backends.
func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.slots {
		r.slots[i] = NewMissing(place.TargetHost + place.Target(i))
	}
	return r
}

func slot(t place.Target) (int, bool) {
	if !t.Concrete() {
		return 0, false
	}
	return int(t - place.TargetHost), true
}

// Register installs b as the dedicated backend of b.Target().
func (r *Registry) Register(b Backend) error {
	t := b.Target()
	i, ok := slot(t)
	if !ok {
		return errors.Wrapf(ErrInvalidTarget, "register %s", b.Name())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !IsMissing(r.slots[i]) {
		return errors.Wrapf(ErrDuplicateBackend, "target %s has %s", t, r.slots[i].Name())
	}
	r.slots[i] = b
	klog.V(2).Infof("backend: registered %s for target %s", b.Name(), t)
	return nil
}

// Lookup returns the dedicated backend of t.
func (r *Registry) Lookup(t place.Target) (Backend, error) {
	i, ok := slot(t)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidTarget, "lookup target %d", int(t))
	}

	r.mu.RLock()
	b := r.slots[i]
	r.mu.RUnlock()
	if IsMissing(b) {
		return nil, errors.Wrapf(ErrNoBackend, "target %s", t)
	}
	return b, nil
}

// Get returns the backend in t's slot, which is the Missing stub when no
// dedicated backend is registered. It panics on Unknown, Any or an
// undeclared target.
func (r *Registry) Get(t place.Target) Backend {
	i, ok := slot(t)
	if !ok {
		panic(errors.Wrapf(ErrInvalidTarget, "get target %d", int(t)).Error())
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.slots[i]
}

// ForPlace returns the backend serving p. Places that are not fully
// resolved never select a backend.
func (r *Registry) ForPlace(p place.Place) (Backend, error) {
	if !p.IsValid() {
		return nil, errors.Wrapf(ErrInvalidPlace, "place %s", p)
	}
	return r.Lookup(p.Target())
}

// Require fails unless every target has a dedicated backend. It is meant to
// run at startup so a missing backend is reported before first use.
func (r *Registry) Require(targets ...place.Target) error {
	for _, t := range targets {
		if _, err := r.Lookup(t); err != nil {
			return errors.WithMessage(err, "required backend")
		}
	}
	return nil
}

// Targets returns the targets with a dedicated backend, in ascending order.
func (r *Registry) Targets() []place.Target {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []place.Target
	for i, b := range r.slots {
		if !IsMissing(b) {
			out = append(out, place.TargetHost+place.Target(i))
		}
	}
	return out
}

// Close releases every registered backend that holds runtime resources.
// The first error is returned; all backends are closed regardless.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var first error
	for i, b := range r.slots {
		c, ok := b.(io.Closer)
		if !ok {
			continue
		}
		if err := c.Close(); err != nil && first == nil {
			first = errors.Wrapf(err, "close %s", b.Name())
		}
		r.slots[i] = NewMissing(b.Target())
	}
	return first
}
