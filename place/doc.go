// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package place describes where a computation runs and how its data is
// represented.
//
// # Overview
//
// A Place combines three orthogonal kinds with a device ordinal:
//   - Target: the device family (host, x86, cuda, webgpu)
//   - Precision: the element type (float, int8)
//   - Layout: the data layout (NCHW)
//
// Each kind has an Unknown value and an Any value. A Place is valid when
// none of its kinds is Unknown. Any is an ordinary value: it equals only
// itself and matches nothing else.
//
// # Basic Usage
//
//	import "github.com/born-ml/devrt/place"
//
//	func main() {
//	    p := place.New(place.TargetHost, place.PrecisionFloat32, place.LayoutNCHW)
//	    fmt.Println(p.DebugString()) // host/float/NCHW
//
//	    kernels := map[place.Place]string{p: "gemm_host_f32"}
//	    _ = kernels
//	}
//
// Places are comparable values: use them directly as map keys, sort them
// with SortPlaces, or use Hash for custom hash tables.
package place
