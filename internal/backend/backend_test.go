package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/devrt/internal/place"
)

// fakeBackend is a host-memory backend that counts copy calls.
type fakeBackend struct {
	Defaults
	target     place.Target
	syncCopies int
}

func newFake(t place.Target) *fakeBackend { return &fakeBackend{target: t} }

func (f *fakeBackend) Target() place.Target { return f.target }
func (f *fakeBackend) Name() string         { return "fake(" + f.target.String() + ")" }

func (f *fakeBackend) Allocate(size int) *Buffer {
	return NewHostBuffer(f, 0, make([]byte, size))
}

func (f *fakeBackend) Free(buf *Buffer) {
	CheckOwner(f, buf)
	buf.MarkReleased()
	buf.Detach()
}

func (f *fakeBackend) CopySync(dst, src *Buffer, size int, _ Direction) {
	CheckCopy(dst, src, size)
	f.syncCopies++
	copy(dst.Bytes()[:size], src.Bytes()[:size])
}

// asyncFake additionally implements AsyncCopier.
type asyncFake struct {
	fakeBackend
	asyncCopies int
	lastStream  Stream
}

func (a *asyncFake) CopyAsync(dst, src *Buffer, size int, _ Direction, s Stream) {
	CheckCopy(dst, src, size)
	a.asyncCopies++
	a.lastStream = s
	copy(dst.Bytes()[:size], src.Bytes()[:size])
}

func TestDirectionString(t *testing.T) {
	assert.Equal(t, "HtoH", HostToHost.String())
	assert.Equal(t, "HtoD", HostToDevice.String())
	assert.Equal(t, "DtoH", DeviceToHost.String())
	assert.Equal(t, "DtoD", DeviceToDevice.String())
	assert.Equal(t, "Direction(9)", Direction(9).String())
}

func TestDefaults(t *testing.T) {
	var d Defaults
	assert.Equal(t, 0, d.DeviceCount())
	assert.Equal(t, 0, d.MaxStreamCount())

	s := d.CreateStream()
	e := d.CreateEvent()
	assert.NotPanics(t, func() {
		d.RecordEvent(e, s)
		d.SyncEvent(e)
		d.StreamSync(s)
		d.DestroyEvent(e)
		d.DestroyStream(s)
	})
}

func TestCopyAsyncFallsBackToSync(t *testing.T) {
	b := newFake(place.TargetHost)
	src := b.Allocate(8)
	dst := b.Allocate(8)
	copy(src.Bytes(), []byte{1, 2, 3, 4, 5, 6, 7, 8})

	CopyAsync(b, dst, src, 8, HostToHost, b.CreateStream())

	assert.Equal(t, 1, b.syncCopies)
	assert.Equal(t, src.Bytes(), dst.Bytes())
}

func TestCopyAsyncUsesAsyncCopier(t *testing.T) {
	b := &asyncFake{fakeBackend: fakeBackend{target: place.TargetX86}}
	src := b.Allocate(4)
	dst := b.Allocate(4)
	copy(src.Bytes(), []byte{9, 8, 7, 6})

	CopyAsync(b, dst, src, 4, DeviceToDevice, Stream(3))

	assert.Equal(t, 1, b.asyncCopies)
	assert.Equal(t, 0, b.syncCopies)
	assert.Equal(t, Stream(3), b.lastStream)
	assert.Equal(t, []byte{9, 8, 7, 6}, dst.Bytes())
}

func TestBufferRelease(t *testing.T) {
	b := newFake(place.TargetHost)
	buf := b.Allocate(16)

	assert.Equal(t, place.TargetHost, buf.Target())
	assert.Equal(t, 16, buf.Size())
	assert.True(t, buf.HostVisible())
	assert.NotZero(t, buf.Ptr())
	assert.False(t, buf.Released())

	buf.Release()
	assert.True(t, buf.Released())
	assert.Nil(t, buf.Bytes())

	assert.Panics(t, func() { buf.Release() }, "second release must panic")
}

func TestDeviceBuffer(t *testing.T) {
	b := newFake(place.TargetCUDA)
	buf := NewDeviceBuffer(b, 2, 64, 0xdead0000, "handle")

	assert.False(t, buf.HostVisible())
	assert.Nil(t, buf.Bytes())
	assert.Equal(t, uintptr(0xdead0000), buf.Ptr())
	assert.Equal(t, "handle", buf.Handle())
	assert.Equal(t, 2, buf.Device())
	assert.Same(t, b, buf.Owner())
}

func TestCheckOwner(t *testing.T) {
	a := newFake(place.TargetHost)
	b := newFake(place.TargetX86)
	buf := a.Allocate(4)

	assert.NotPanics(t, func() { CheckOwner(a, buf) })
	assert.Panics(t, func() { CheckOwner(b, buf) })
	assert.Panics(t, func() { CheckOwner(a, nil) })
	assert.Panics(t, func() { b.Free(buf) })
	assert.False(t, buf.Released(), "a rejected free leaves the buffer live")
}

func TestCheckCopy(t *testing.T) {
	b := newFake(place.TargetHost)
	small := b.Allocate(4)
	large := b.Allocate(8)

	tests := []struct {
		name     string
		dst, src *Buffer
		size     int
		panics   bool
	}{
		{"fits", large, small, 4, false},
		{"zero", small, large, 0, false},
		{"overflows dst", small, large, 8, true},
		{"overruns src", large, small, 8, true},
		{"negative", large, large, -1, true},
		{"nil dst", nil, small, 1, true},
		{"nil src", small, nil, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.panics {
				assert.Panics(t, func() { CheckCopy(tt.dst, tt.src, tt.size) })
			} else {
				assert.NotPanics(t, func() { CheckCopy(tt.dst, tt.src, tt.size) })
			}
		})
	}

	released := b.Allocate(4)
	released.Release()
	require.Panics(t, func() { CheckCopy(large, released, 1) })
}
