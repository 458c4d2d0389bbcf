// Package backend defines the per-target capability contract used by memory
// management: device discovery, stream and event lifecycle, allocation and
// copies. Backends are looked up by target through a Registry.
package backend

import (
	"fmt"

	"github.com/born-ml/devrt/internal/place"
)

// Direction is the direction of a memory copy.
type Direction int

// Copy directions.
const (
	HostToHost Direction = iota
	HostToDevice
	DeviceToHost
	DeviceToDevice
)

// String returns a short name for the direction.
func (d Direction) String() string {
	switch d {
	case HostToHost:
		return "HtoH"
	case HostToDevice:
		return "HtoD"
	case DeviceToHost:
		return "DtoH"
	case DeviceToDevice:
		return "DtoD"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// Stream is an ordered queue of asynchronous device work. The zero Stream is
// the backend's implicit default stream.
type Stream uintptr

// Event is a synchronization marker recorded on a stream.
type Event uintptr

// Backend is the capability set of one target kind.
//
// Work submitted to one stream runs in submission order. Different streams
// are unordered except through RecordEvent/SyncEvent pairs. StreamSync and
// SyncEvent are the only calls that block, and they do so without timeout.
// A stream must be synchronized before it is destroyed.
//
// Allocate, Free and CopySync never fail softly: a backend either performs
// them completely or aborts the process with a diagnostic.
type Backend interface {
	// Target returns the device kind served by this backend.
	Target() place.Target
	// Name returns a human-readable backend name.
	Name() string

	DeviceCount() int
	MaxStreamCount() int

	CreateStream() Stream
	DestroyStream(s Stream)

	CreateEvent() Event
	DestroyEvent(e Event)

	// RecordEvent marks e at the current tail of stream s.
	RecordEvent(e Event, s Stream)
	// SyncEvent blocks until all work preceding the recorded e has completed.
	SyncEvent(e Event)
	// StreamSync blocks until all work enqueued on s so far has completed.
	StreamSync(s Stream)

	// Allocate returns a buffer of at least size bytes owned by the caller.
	Allocate(size int) *Buffer
	// Free releases a buffer returned by Allocate. It must be called once.
	Free(buf *Buffer)
	// CopySync copies size bytes from src to dst and returns when done.
	CopySync(dst, src *Buffer, size int, dir Direction)
}

// AsyncCopier is implemented by backends that can enqueue copies on a stream
// without blocking the caller.
type AsyncCopier interface {
	CopyAsync(dst, src *Buffer, size int, dir Direction, s Stream)
}

// CopyAsync enqueues a copy on stream s when b supports asynchronous copies
// and otherwise performs it synchronously. The result is the same either
// way; only overlap with other work is lost.
func CopyAsync(b Backend, dst, src *Buffer, size int, dir Direction, s Stream) {
	if ac, ok := b.(AsyncCopier); ok {
		ac.CopyAsync(dst, src, size, dir, s)
		return
	}
	b.CopySync(dst, src, size, dir)
}

// Defaults provides the generic stream and device behaviour: no devices, no
// explicit streams, and no-op stream/event operations. Backends embed it and
// override what their target supports.
type Defaults struct{}

// DeviceCount returns 0.
func (Defaults) DeviceCount() int { return 0 }

// MaxStreamCount returns 0.
func (Defaults) MaxStreamCount() int { return 0 }

// CreateStream returns the implicit stream.
func (Defaults) CreateStream() Stream { return 0 }

// DestroyStream does nothing.
func (Defaults) DestroyStream(Stream) {}

// CreateEvent returns a no-op event.
func (Defaults) CreateEvent() Event { return 0 }

// DestroyEvent does nothing.
func (Defaults) DestroyEvent(Event) {}

// RecordEvent does nothing.
func (Defaults) RecordEvent(Event, Stream) {}

// SyncEvent returns immediately.
func (Defaults) SyncEvent(Event) {}

// StreamSync returns immediately.
func (Defaults) StreamSync(Stream) {}
