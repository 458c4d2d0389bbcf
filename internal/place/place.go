package place

import (
	"cmp"
	"slices"
	"strconv"
)

// Place is the execution context of a kernel or of a kernel's input/output:
// device index Device of kind Target, holding Precision values arranged as
// Layout.
//
// Place is an immutable value. It is comparable, so == and map keys agree
// with Equal; the With* methods return modified copies.
type Place struct {
	target    Target
	precision Precision
	layout    Layout
	device    int16
}

// New returns a Place on device 0.
func New(target Target, precision Precision, layout Layout) Place {
	return Place{target: target, precision: precision, layout: layout}
}

// NewOnDevice returns a Place on the given device index.
func NewOnDevice(target Target, precision Precision, layout Layout, device int16) Place {
	return Place{target: target, precision: precision, layout: layout, device: device}
}

// Target returns the device kind.
func (p Place) Target() Target { return p.target }

// Precision returns the element precision.
func (p Place) Precision() Precision { return p.precision }

// Layout returns the memory layout.
func (p Place) Layout() Layout { return p.layout }

// Device returns the device index.
func (p Place) Device() int16 { return p.device }

// WithTarget returns a copy of p bound to target t.
func (p Place) WithTarget(t Target) Place { p.target = t; return p }

// WithPrecision returns a copy of p with precision pr.
func (p Place) WithPrecision(pr Precision) Place { p.precision = pr; return p }

// WithLayout returns a copy of p with layout l.
func (p Place) WithLayout(l Layout) Place { p.layout = l; return p }

// WithDevice returns a copy of p on device d.
func (p Place) WithDevice(d int16) Place { p.device = d; return p }

// IsValid reports whether target, precision and layout are all resolved.
// An invalid Place must never be used to select a backend or kernel.
func (p Place) IsValid() bool {
	return p.target != TargetUnknown &&
		p.precision != PrecisionUnknown &&
		p.layout != LayoutUnknown
}

// Equal reports exact field-wise equality. Any matches only Any.
func (p Place) Equal(q Place) bool { return p == q }

// Less reports whether p orders before q.
func (p Place) Less(q Place) bool { return Compare(p, q) < 0 }

// Compare orders places lexicographically by target, precision, layout and
// device. It returns -1, 0 or +1.
func Compare(a, b Place) int {
	if c := cmp.Compare(a.target, b.target); c != 0 {
		return c
	}
	if c := cmp.Compare(a.precision, b.precision); c != 0 {
		return c
	}
	if c := cmp.Compare(a.layout, b.layout); c != 0 {
		return c
	}
	return cmp.Compare(a.device, b.device)
}

// SortPlaces sorts places in ascending Compare order.
func SortPlaces(places []Place) { slices.SortStableFunc(places, Compare) }

// Hash returns a stable hash of p. Equal places hash equally. Each field is
// packed into 16 bits and the result is mixed by a bijection, so distinct
// places never collide while their kind ordinals fit in 16 bits.
func (p Place) Hash() uint64 {
	x := uint64(uint16(p.target))<<48 |
		uint64(uint16(p.precision))<<32 |
		uint64(uint16(p.layout))<<16 |
		uint64(uint16(p.device))
	// splitmix64 finalizer
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}

// DebugString renders p as "target/precision/layout", appending ":device"
// for non-zero device indices. It is meant for logs, not for parsing.
func (p Place) DebugString() string {
	s := p.target.String() + "/" + p.precision.String() + "/" + p.layout.String()
	if p.device != 0 {
		s += ":" + strconv.Itoa(int(p.device))
	}
	return s
}

// String implements fmt.Stringer.
func (p Place) String() string { return p.DebugString() }
