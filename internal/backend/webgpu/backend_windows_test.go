//go:build windows && go1.22

package webgpu

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/devrt/internal/backend"
)

func TestBackend_AdapterInfo(t *testing.T) {
	b := newTestBackend(t)

	info := b.AdapterInfo()
	require.NotNil(t, info)
	assert.Contains(t, b.Name(), info.Device)
	assert.Contains(t, b.Name(), info.Vendor)
}

func TestBackend_SyncEventReleasesStaging(t *testing.T) {
	b := newTestBackend(t)

	const size = 256
	dev := b.Allocate(size)
	defer dev.Release()

	s := b.CreateStream()
	defer b.DestroyStream(s)
	e := b.CreateEvent()
	defer b.DestroyEvent(e)

	for range 3 {
		b.CopyAsync(dev, hostBuffer(pattern(size)), size, backend.HostToDevice, s)
		b.RecordEvent(e, s)

		b.mu.Lock()
		assert.Empty(t, b.streams[s].staging, "recording moves staging to the event")
		require.Len(t, b.events[e].staging, 1)
		b.mu.Unlock()

		b.SyncEvent(e)

		b.mu.Lock()
		assert.Empty(t, b.events[e].staging, "sync releases staging")
		b.mu.Unlock()
	}
}

func TestBackend_DestroyEventReleasesStaging(t *testing.T) {
	b := newTestBackend(t)

	dev := b.Allocate(64)
	defer dev.Release()

	e := b.CreateEvent()
	b.CopyAsync(dev, hostBuffer(pattern(64)), 64, backend.HostToDevice, 0)
	b.RecordEvent(e, 0)
	b.DestroyEvent(e)

	b.mu.Lock()
	defer b.mu.Unlock()
	assert.NotContains(t, b.events, e)
	assert.Empty(t, b.streams[0].staging)
}

// filled returns an 8-byte device buffer holding 0xFF in every byte.
func filled(t *testing.T, b *Backend) *backend.Buffer {
	t.Helper()
	buf := b.Allocate(8)
	t.Cleanup(buf.Release)
	b.CopySync(buf, hostBuffer(bytes.Repeat([]byte{0xFF}, 8)), 8, backend.HostToDevice)
	return buf
}

func TestBackend_PartialWordCopyKeepsTrailingBytes(t *testing.T) {
	b := newTestBackend(t)

	src := pattern(5)
	want := append(pattern(5), 0xFF, 0xFF, 0xFF)
	dsrc := b.Allocate(5)
	defer dsrc.Release()
	b.CopySync(dsrc, hostBuffer(src), 5, backend.HostToDevice)

	copies := map[string]func(dst *backend.Buffer){
		"HtoD sync": func(dst *backend.Buffer) {
			b.CopySync(dst, hostBuffer(src), 5, backend.HostToDevice)
		},
		"DtoD sync": func(dst *backend.Buffer) {
			b.CopySync(dst, dsrc, 5, backend.DeviceToDevice)
		},
		"HtoD async": func(dst *backend.Buffer) {
			s := b.CreateStream()
			defer b.DestroyStream(s)
			b.CopyAsync(dst, hostBuffer(src), 5, backend.HostToDevice, s)
			b.StreamSync(s)
		},
		"DtoD async": func(dst *backend.Buffer) {
			b.CopyAsync(dst, dsrc, 5, backend.DeviceToDevice, 0)
			b.StreamSync(0)
		},
	}
	for name, run := range copies {
		t.Run(name, func(t *testing.T) {
			dst := filled(t, b)
			run(dst)

			out := make([]byte, 8)
			b.CopySync(hostBuffer(out), dst, 8, backend.DeviceToHost)
			assert.Equal(t, want, out)
		})
	}
}

func TestBackend_SyncCopySeesDefaultStream(t *testing.T) {
	b := newTestBackend(t)

	const size = 64
	dev := b.Allocate(size)
	defer dev.Release()

	b.CopyAsync(dev, hostBuffer(pattern(size)), size, backend.HostToDevice, 0)
	out := make([]byte, size)
	b.CopySync(hostBuffer(out), dev, size, backend.DeviceToHost)
	assert.Equal(t, pattern(size), out)
}
