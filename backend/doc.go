// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package backend provides per-target device backends: device discovery,
// streams and events, allocation and copies.
//
// # Overview
//
// Every target has exactly one backend in a Registry. Targets without a
// dedicated implementation hold a stub that reports no devices and aborts
// the process on any allocation or copy. Open builds a Registry from a
// Config:
//   - the host backend is always registered
//   - CUDA and WebGPU are opened concurrently and registered when present
//   - targets listed under require must be served, or Open fails
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/devrt/backend"
//	    "github.com/born-ml/devrt/place"
//	)
//
//	func main() {
//	    reg, err := backend.Open(context.Background(), backend.DefaultConfig())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer reg.Close()
//
//	    p := place.New(place.TargetHost, place.PrecisionFloat32, place.LayoutNCHW)
//	    b, _ := reg.ForPlace(p)
//	    src, dst := b.Allocate(1024), b.Allocate(1024)
//	    b.CopySync(dst, src, 1024, backend.HostToHost)
//	    src.Release()
//	    dst.Release()
//	}
//
// Backends that support it queue copies on streams; use CopyAsync, which
// falls back to a synchronous copy elsewhere.
package backend
