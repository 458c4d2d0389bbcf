// Package cuda implements the CUDA backend on top of the CUDA driver API.
//
// The driver library is loaded at runtime through purego, so the package
// builds without cgo and without the CUDA toolkit. On platforms where the
// driver cannot be loaded, New reports backend.ErrUnavailable and the target
// keeps its missing-backend stub.
package cuda

// Config selects the driver library and device.
type Config struct {
	// Library is the driver library to load; empty tries libcuda.so.1 then
	// libcuda.so.
	Library string
	// Device is the ordinal of the device the backend binds to.
	Device int
	// MaxStreams is reported by MaxStreamCount.
	MaxStreams int
}

// DefaultConfig binds device 0 with up to 16 streams.
func DefaultConfig() Config {
	return Config{Device: 0, MaxStreams: 16}
}

var defaultLibraries = []string{"libcuda.so.1", "libcuda.so"}
