package backend

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/devrt/internal/place"
)

type closingFake struct {
	fakeBackend
	closed bool
	err    error
}

func (c *closingFake) Close() error {
	c.closed = true
	return c.err
}

func TestNewRegistryAllMissing(t *testing.T) {
	r := NewRegistry()
	assert.Empty(t, r.Targets())

	for _, target := range place.Targets() {
		if !target.Concrete() {
			continue
		}
		b := r.Get(target)
		assert.True(t, IsMissing(b), target.String())
		assert.Equal(t, target, b.Target())
		assert.Equal(t, 0, b.DeviceCount())

		_, err := r.Lookup(target)
		assert.ErrorIs(t, err, ErrNoBackend)
		assert.Contains(t, err.Error(), target.String())
	}
}

func TestRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	host := newFake(place.TargetHost)
	require.NoError(t, r.Register(host))

	got, err := r.Lookup(place.TargetHost)
	require.NoError(t, err)
	assert.Same(t, host, got)
	assert.Same(t, host, r.Get(place.TargetHost))
	assert.Equal(t, []place.Target{place.TargetHost}, r.Targets())

	err = r.Register(newFake(place.TargetHost))
	assert.ErrorIs(t, err, ErrDuplicateBackend)
	assert.Same(t, host, r.Get(place.TargetHost), "failed registration keeps the first backend")
}

func TestRegisterRejectsNonConcreteTargets(t *testing.T) {
	r := NewRegistry()
	assert.ErrorIs(t, r.Register(newFake(place.TargetUnknown)), ErrInvalidTarget)
	assert.ErrorIs(t, r.Register(newFake(place.TargetAny)), ErrInvalidTarget)
}

func TestLookupInvalidTarget(t *testing.T) {
	r := NewRegistry()
	for _, target := range []place.Target{place.TargetUnknown, place.TargetAny, place.Target(42), place.Target(-3)} {
		_, err := r.Lookup(target)
		assert.ErrorIs(t, err, ErrInvalidTarget)
		assert.Panics(t, func() { r.Get(target) })
	}
}

func TestForPlace(t *testing.T) {
	r := NewRegistry()
	host := newFake(place.TargetHost)
	require.NoError(t, r.Register(host))

	b, err := r.ForPlace(place.New(place.TargetHost, place.PrecisionFloat32, place.LayoutNCHW))
	require.NoError(t, err)
	assert.Same(t, host, b)

	_, err = r.ForPlace(place.New(place.TargetHost, place.PrecisionUnknown, place.LayoutNCHW))
	assert.ErrorIs(t, err, ErrInvalidPlace)

	_, err = r.ForPlace(place.New(place.TargetCUDA, place.PrecisionFloat32, place.LayoutNCHW))
	assert.ErrorIs(t, err, ErrNoBackend)

	_, err = r.ForPlace(place.New(place.TargetAny, place.PrecisionFloat32, place.LayoutNCHW))
	assert.ErrorIs(t, err, ErrInvalidTarget)
}

func TestRequire(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newFake(place.TargetHost)))

	assert.NoError(t, r.Require())
	assert.NoError(t, r.Require(place.TargetHost))

	err := r.Require(place.TargetHost, place.TargetCUDA)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoBackend)
	assert.Contains(t, err.Error(), "cuda")
}

func TestRegistryClose(t *testing.T) {
	r := NewRegistry()
	ok := &closingFake{fakeBackend: fakeBackend{target: place.TargetHost}}
	bad := &closingFake{fakeBackend: fakeBackend{target: place.TargetCUDA}, err: errors.New("ctx busy")}
	require.NoError(t, r.Register(ok))
	require.NoError(t, r.Register(bad))

	err := r.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ctx busy")
	assert.True(t, ok.closed)
	assert.True(t, bad.closed)
	assert.Empty(t, r.Targets())
}
