// Package place describes where and how a tensor buffer or kernel executes:
// the target device kind, the element precision, the memory layout and the
// device index, combined into the Place value type.
package place

import (
	"fmt"
	"slices"

	"github.com/pkg/errors"
)

// Target is the kind of device a kernel or buffer is bound to.
type Target int

// Supported targets. TargetAny declares "accepts any target" and is an
// ordinary enum member; it is not a wildcard under equality.
const (
	TargetUnknown Target = iota
	TargetHost
	TargetX86
	TargetCUDA
	TargetWebGPU
	TargetAny
	targetEnd
)

// NumTargets is the number of concrete target kinds, Any included.
// It sizes dense per-target tables.
const NumTargets = int(targetEnd - TargetHost)

// Precision is the numeric representation of tensor elements.
type Precision int

// Supported precisions.
const (
	PrecisionUnknown Precision = iota
	PrecisionFloat32
	PrecisionInt8
	PrecisionAny
	precisionEnd
)

// NumPrecisions is the number of concrete precisions, Any included.
const NumPrecisions = int(precisionEnd - PrecisionFloat32)

// Layout is the memory arrangement of multidimensional tensor data.
type Layout int

// Supported layouts.
const (
	LayoutUnknown Layout = iota
	LayoutNCHW
	LayoutAny
	layoutEnd
)

// NumLayouts is the number of concrete layouts, Any included.
const NumLayouts = int(layoutEnd - LayoutNCHW)

// Display names, keyed by variant rather than by ordinal position.
var (
	targetNames = map[Target]string{
		TargetUnknown: "unk",
		TargetHost:    "host",
		TargetX86:     "x86",
		TargetCUDA:    "cuda",
		TargetWebGPU:  "webgpu",
		TargetAny:     "any",
	}
	precisionNames = map[Precision]string{
		PrecisionUnknown: "unk",
		PrecisionFloat32: "float",
		PrecisionInt8:    "int8",
		PrecisionAny:     "any",
	}
	layoutNames = map[Layout]string{
		LayoutUnknown: "unk",
		LayoutNCHW:    "NCHW",
		LayoutAny:     "any",
	}
)

func init() {
	mustCover("target", targetNames, TargetUnknown, TargetAny)
	mustCover("precision", precisionNames, PrecisionUnknown, PrecisionAny)
	mustCover("layout", layoutNames, LayoutUnknown, LayoutAny)
}

// mustCover panics unless names holds exactly one distinct, non-empty entry
// for every variant in [first, last].
func mustCover[K ~int](kind string, names map[K]string, first, last K) {
	if len(names) != int(last-first)+1 {
		panic(fmt.Sprintf("place: %s names cover %d variants, want %d", kind, len(names), int(last-first)+1))
	}
	seen := make(map[string]K, len(names))
	for k := first; k <= last; k++ {
		name, ok := names[k]
		if !ok || name == "" {
			panic(fmt.Sprintf("place: %s %d has no name", kind, int(k)))
		}
		if prev, dup := seen[name]; dup {
			panic(fmt.Sprintf("place: %s %d and %d share name %q", kind, int(prev), int(k), name))
		}
		seen[name] = k
	}
}

// Valid reports whether t is a declared target, Unknown and Any included.
func (t Target) Valid() bool { return t >= TargetUnknown && t <= TargetAny }

// Concrete reports whether t names an actual device kind (neither Unknown nor Any).
func (t Target) Concrete() bool { return t > TargetUnknown && t < TargetAny }

// String returns the display name. An undeclared ordinal is a programming
// error and panics.
func (t Target) String() string {
	if !t.Valid() {
		panic(fmt.Sprintf("place: target ordinal %d out of range", int(t)))
	}
	return targetNames[t]
}

// Valid reports whether p is a declared precision.
func (p Precision) Valid() bool { return p >= PrecisionUnknown && p <= PrecisionAny }

// String returns the display name; panics on an undeclared ordinal.
func (p Precision) String() string {
	if !p.Valid() {
		panic(fmt.Sprintf("place: precision ordinal %d out of range", int(p)))
	}
	return precisionNames[p]
}

// Size returns the byte size of one element, or 0 for Unknown and Any.
func (p Precision) Size() int {
	switch p {
	case PrecisionFloat32:
		return 4
	case PrecisionInt8:
		return 1
	default:
		return 0
	}
}

// Valid reports whether l is a declared layout.
func (l Layout) Valid() bool { return l >= LayoutUnknown && l <= LayoutAny }

// String returns the display name; panics on an undeclared ordinal.
func (l Layout) String() string {
	if !l.Valid() {
		panic(fmt.Sprintf("place: layout ordinal %d out of range", int(l)))
	}
	return layoutNames[l]
}

// Targets returns every declared target from Unknown through Any.
func Targets() []Target { return span(TargetUnknown, TargetAny) }

// Precisions returns every declared precision from Unknown through Any.
func Precisions() []Precision { return span(PrecisionUnknown, PrecisionAny) }

// Layouts returns every declared layout from Unknown through Any.
func Layouts() []Layout { return span(LayoutUnknown, LayoutAny) }

func span[K ~int](first, last K) []K {
	out := make([]K, 0, int(last-first)+1)
	for k := first; k <= last; k++ {
		out = append(out, k)
	}
	return out
}

// ParseTarget returns the target whose display name is s.
func ParseTarget(s string) (Target, error) { return parse("target", targetNames, s) }

// ParsePrecision returns the precision whose display name is s.
func ParsePrecision(s string) (Precision, error) { return parse("precision", precisionNames, s) }

// ParseLayout returns the layout whose display name is s.
func ParseLayout(s string) (Layout, error) { return parse("layout", layoutNames, s) }

func parse[K ~int](kind string, names map[K]string, s string) (K, error) {
	for k, name := range names {
		if name == s {
			return k, nil
		}
	}
	known := make([]string, 0, len(names))
	for _, name := range names {
		known = append(known, name)
	}
	slices.Sort(known)
	return 0, errors.Errorf("place: unknown %s %q (known: %v)", kind, s, known)
}
