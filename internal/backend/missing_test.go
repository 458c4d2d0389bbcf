package backend

import (
	"os"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/devrt/internal/place"
)

// crashEnv selects the operation a re-executed test binary runs against the
// missing CUDA backend.
const crashEnv = "DEVRT_MISSING_BACKEND_CRASH"

// TestMissingBackendCrasher is the child half of the death tests. It does
// nothing unless the parent set crashEnv.
func TestMissingBackendCrasher(t *testing.T) {
	op := os.Getenv(crashEnv)
	if op == "" {
		t.Skip("only runs as a death-test child")
	}

	b := NewRegistry().Get(place.TargetCUDA)
	host := newFake(place.TargetHost)
	buf := host.Allocate(4)

	switch op {
	case "allocate":
		b.Allocate(1024)
	case "copy":
		b.CopySync(buf, buf, 4, HostToDevice)
	case "free":
		b.Free(buf)
	}
	t.Fatal("missing backend returned instead of aborting")
}

func runCrasher(t *testing.T, op string) (string, error) {
	t.Helper()
	cmd := exec.Command(os.Args[0], "-test.run=^TestMissingBackendCrasher$")
	cmd.Env = append(os.Environ(), crashEnv+"="+op)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

func TestMissingBackendAborts(t *testing.T) {
	tests := []struct {
		op   string
		want string
	}{
		{"allocate", "no allocator implemented for target cuda"},
		{"copy", "CopySync (HtoD, 4 bytes) not implemented for target cuda"},
		{"free", "Free not implemented for target cuda"},
	}
	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			out, err := runCrasher(t, tt.op)

			var exitErr *exec.ExitError
			require.ErrorAs(t, err, &exitErr, "process should exit non-zero, output:\n%s", out)
			assert.False(t, exitErr.Success())
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestMissingBackendDefaults(t *testing.T) {
	m := NewMissing(place.TargetWebGPU)
	assert.Equal(t, place.TargetWebGPU, m.Target())
	assert.Equal(t, "missing(webgpu)", m.Name())
	assert.Equal(t, 0, m.DeviceCount())
	assert.Equal(t, 0, m.MaxStreamCount())

	// Streams and events stay usable no-ops on a missing backend.
	s := m.CreateStream()
	e := m.CreateEvent()
	m.RecordEvent(e, s)
	m.SyncEvent(e)
	m.StreamSync(s)
	m.DestroyEvent(e)
	m.DestroyStream(s)

	var _ Backend = m
}
