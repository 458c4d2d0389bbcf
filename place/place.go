// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package place

import (
	internalplace "github.com/born-ml/devrt/internal/place"
)

// Place identifies an execution context.
type Place = internalplace.Place

// Target is the device family.
type Target = internalplace.Target

// Precision is the element type.
type Precision = internalplace.Precision

// Layout is the data layout.
type Layout = internalplace.Layout

// Targets.
const (
	TargetUnknown = internalplace.TargetUnknown
	TargetHost    = internalplace.TargetHost
	TargetX86     = internalplace.TargetX86
	TargetCUDA    = internalplace.TargetCUDA
	TargetWebGPU  = internalplace.TargetWebGPU
	TargetAny     = internalplace.TargetAny
)

// Precisions.
const (
	PrecisionUnknown = internalplace.PrecisionUnknown
	PrecisionFloat32 = internalplace.PrecisionFloat32
	PrecisionInt8    = internalplace.PrecisionInt8
	PrecisionAny     = internalplace.PrecisionAny
)

// Layouts.
const (
	LayoutUnknown = internalplace.LayoutUnknown
	LayoutNCHW    = internalplace.LayoutNCHW
	LayoutAny     = internalplace.LayoutAny
)

// Kind counts, Any included.
const (
	NumTargets    = internalplace.NumTargets
	NumPrecisions = internalplace.NumPrecisions
	NumLayouts    = internalplace.NumLayouts
)

// New creates a Place on device 0.
func New(target Target, precision Precision, layout Layout) Place {
	return internalplace.New(target, precision, layout)
}

// NewOnDevice creates a Place on the given device ordinal.
func NewOnDevice(target Target, precision Precision, layout Layout, device int16) Place {
	return internalplace.NewOnDevice(target, precision, layout, device)
}

// Compare orders places by target, precision, layout, then device.
func Compare(a, b Place) int { return internalplace.Compare(a, b) }

// SortPlaces sorts places in ascending order.
func SortPlaces(places []Place) { internalplace.SortPlaces(places) }

// Targets returns every target value, Unknown and Any included.
func Targets() []Target { return internalplace.Targets() }

// Precisions returns every precision value, Unknown and Any included.
func Precisions() []Precision { return internalplace.Precisions() }

// Layouts returns every layout value, Unknown and Any included.
func Layouts() []Layout { return internalplace.Layouts() }

// ParseTarget returns the target with the given name.
func ParseTarget(s string) (Target, error) { return internalplace.ParseTarget(s) }

// ParsePrecision returns the precision with the given name.
func ParsePrecision(s string) (Precision, error) { return internalplace.ParsePrecision(s) }

// ParseLayout returns the layout with the given name.
func ParseLayout(s string) (Layout, error) { return internalplace.ParseLayout(s) }
