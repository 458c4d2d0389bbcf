package backend

import (
	"k8s.io/klog/v2"

	"github.com/born-ml/devrt/internal/place"
)

// Missing is the backend of a target that has no dedicated implementation.
// It reports no devices and treats streams and events as no-ops, but any
// allocation, release or copy aborts the process: a target either has a
// complete backend or does not exist for memory purposes.
type Missing struct {
	Defaults
	target place.Target
}

// NewMissing returns the missing backend for target t.
func NewMissing(t place.Target) *Missing { return &Missing{target: t} }

// Target returns the target this stub stands in for.
func (m *Missing) Target() place.Target { return m.target }

// Name returns "missing(<target>)".
func (m *Missing) Name() string { return "missing(" + m.target.String() + ")" }

// Allocate aborts the process.
func (m *Missing) Allocate(size int) *Buffer {
	klog.Fatalf("backend: no allocator implemented for target %s (requested %d bytes)", m.target, size)
	return nil
}

// Free aborts the process.
func (m *Missing) Free(*Buffer) {
	klog.Fatalf("backend: Free not implemented for target %s", m.target)
}

// CopySync aborts the process.
func (m *Missing) CopySync(_, _ *Buffer, size int, dir Direction) {
	klog.Fatalf("backend: CopySync (%s, %d bytes) not implemented for target %s", dir, size, m.target)
}

// IsMissing reports whether b is a missing-backend stub.
func IsMissing(b Backend) bool {
	_, ok := b.(*Missing)
	return ok
}
