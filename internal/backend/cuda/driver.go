//go:build linux

package cuda

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/pkg/errors"
)

// CUresult error codes (subset we care about).
type CUresult int32

const (
	cudaSuccess             CUresult = 0
	cudaErrorInvalidValue   CUresult = 1
	cudaErrorOutOfMemory    CUresult = 2
	cudaErrorNotInitialized CUresult = 3
	cudaErrorNoDevice       CUresult = 100
	cudaErrorInvalidDevice  CUresult = 101
	cudaErrorInvalidContext CUresult = 201
	cudaErrorInvalidHandle  CUresult = 400
	cudaErrorNotReady       CUresult = 600
	cudaErrorLaunchFailed   CUresult = 719
)

func (r CUresult) Error() string {
	names := map[CUresult]string{
		cudaSuccess:             "SUCCESS",
		cudaErrorInvalidValue:   "INVALID_VALUE",
		cudaErrorOutOfMemory:    "OUT_OF_MEMORY",
		cudaErrorNotInitialized: "NOT_INITIALIZED",
		cudaErrorNoDevice:       "NO_DEVICE",
		cudaErrorInvalidDevice:  "INVALID_DEVICE",
		cudaErrorInvalidContext: "INVALID_CONTEXT",
		cudaErrorInvalidHandle:  "INVALID_HANDLE",
		cudaErrorNotReady:       "NOT_READY",
		cudaErrorLaunchFailed:   "LAUNCH_FAILED",
	}
	if name, ok := names[r]; ok {
		return fmt.Sprintf("CUDA_ERROR_%s (%d)", name, int32(r))
	}
	return fmt.Sprintf("CUDA_ERROR(%d)", int32(r))
}

// cuEventDisableTiming skips timestamp capture on events used only for
// synchronization.
const cuEventDisableTiming = 0x2

// Driver function pointers, populated by loadDriver.
type driver struct {
	cuInit           func(flags uint32) CUresult
	cuDeviceGetCount func(count *int32) CUresult
	cuDeviceGet      func(device *int32, ordinal int32) CUresult

	cuDevicePrimaryCtxRetain  func(pctx *uintptr, dev int32) CUresult
	cuDevicePrimaryCtxRelease func(dev int32) CUresult
	cuCtxSetCurrent           func(ctx uintptr) CUresult

	cuMemAlloc        func(dptr *uintptr, bytesize uint64) CUresult
	cuMemFree         func(dptr uintptr) CUresult
	cuMemcpyHtoD      func(dstDevice uintptr, srcHost unsafe.Pointer, byteCount uint64) CUresult
	cuMemcpyDtoH      func(dstHost unsafe.Pointer, srcDevice uintptr, byteCount uint64) CUresult
	cuMemcpyDtoD      func(dstDevice, srcDevice uintptr, byteCount uint64) CUresult
	cuMemcpyHtoDAsync func(dstDevice uintptr, srcHost unsafe.Pointer, byteCount uint64, stream uintptr) CUresult
	cuMemcpyDtoHAsync func(dstHost unsafe.Pointer, srcDevice uintptr, byteCount uint64, stream uintptr) CUresult
	cuMemcpyDtoDAsync func(dstDevice, srcDevice uintptr, byteCount uint64, stream uintptr) CUresult

	cuStreamCreate      func(phStream *uintptr, flags uint32) CUresult
	cuStreamDestroy     func(hStream uintptr) CUresult
	cuStreamSynchronize func(hStream uintptr) CUresult

	cuEventCreate      func(phEvent *uintptr, flags uint32) CUresult
	cuEventDestroy     func(hEvent uintptr) CUresult
	cuEventRecord      func(hEvent, hStream uintptr) CUresult
	cuEventSynchronize func(hEvent uintptr) CUresult
}

var (
	driversMu sync.Mutex
	drivers   = map[string]*driver{}
)

// loadDriver opens the driver library and binds every entry point. Results
// are cached per library name.
func loadDriver(library string) (*driver, error) {
	names := defaultLibraries
	if library != "" {
		names = []string{library}
	}

	driversMu.Lock()
	defer driversMu.Unlock()

	var lastErr error
	for _, name := range names {
		if d, ok := drivers[name]; ok {
			return d, nil
		}
		lib, err := purego.Dlopen(name, purego.RTLD_LAZY|purego.RTLD_GLOBAL)
		if err != nil {
			lastErr = errors.Wrapf(err, "cannot load %s (is the NVIDIA driver installed?)", name)
			continue
		}
		d, err := bind(lib)
		if err != nil {
			return nil, errors.Wrap(err, name)
		}
		drivers[name] = d
		return d, nil
	}
	return nil, lastErr
}

// bind registers all functions. purego panics on a missing symbol, which is
// reported as an error for drivers too old to export it.
func bind(lib uintptr) (d *driver, err error) {
	defer func() {
		if r := recover(); r != nil {
			d = nil
			err = errors.Errorf("incomplete driver: %v", r)
		}
	}()

	d = &driver{}
	purego.RegisterLibFunc(&d.cuInit, lib, "cuInit")
	purego.RegisterLibFunc(&d.cuDeviceGetCount, lib, "cuDeviceGetCount")
	purego.RegisterLibFunc(&d.cuDeviceGet, lib, "cuDeviceGet")
	purego.RegisterLibFunc(&d.cuDevicePrimaryCtxRetain, lib, "cuDevicePrimaryCtxRetain")
	purego.RegisterLibFunc(&d.cuDevicePrimaryCtxRelease, lib, "cuDevicePrimaryCtxRelease_v2")
	purego.RegisterLibFunc(&d.cuCtxSetCurrent, lib, "cuCtxSetCurrent")
	purego.RegisterLibFunc(&d.cuMemAlloc, lib, "cuMemAlloc_v2")
	purego.RegisterLibFunc(&d.cuMemFree, lib, "cuMemFree_v2")
	purego.RegisterLibFunc(&d.cuMemcpyHtoD, lib, "cuMemcpyHtoD_v2")
	purego.RegisterLibFunc(&d.cuMemcpyDtoH, lib, "cuMemcpyDtoH_v2")
	purego.RegisterLibFunc(&d.cuMemcpyDtoD, lib, "cuMemcpyDtoD_v2")
	purego.RegisterLibFunc(&d.cuMemcpyHtoDAsync, lib, "cuMemcpyHtoDAsync_v2")
	purego.RegisterLibFunc(&d.cuMemcpyDtoHAsync, lib, "cuMemcpyDtoHAsync_v2")
	purego.RegisterLibFunc(&d.cuMemcpyDtoDAsync, lib, "cuMemcpyDtoDAsync_v2")
	purego.RegisterLibFunc(&d.cuStreamCreate, lib, "cuStreamCreate")
	purego.RegisterLibFunc(&d.cuStreamDestroy, lib, "cuStreamDestroy_v2")
	purego.RegisterLibFunc(&d.cuStreamSynchronize, lib, "cuStreamSynchronize")
	purego.RegisterLibFunc(&d.cuEventCreate, lib, "cuEventCreate")
	purego.RegisterLibFunc(&d.cuEventDestroy, lib, "cuEventDestroy_v2")
	purego.RegisterLibFunc(&d.cuEventRecord, lib, "cuEventRecord")
	purego.RegisterLibFunc(&d.cuEventSynchronize, lib, "cuEventSynchronize")
	return d, nil
}
