package place

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounts(t *testing.T) {
	assert.Equal(t, 5, NumTargets)
	assert.Equal(t, 3, NumPrecisions)
	assert.Equal(t, 2, NumLayouts)

	// Names cover Unknown through Any, i.e. the counted kinds plus Unknown.
	assert.Len(t, targetNames, NumTargets+1)
	assert.Len(t, precisionNames, NumPrecisions+1)
	assert.Len(t, layoutNames, NumLayouts+1)
}

func TestNamesDistinctAndNonEmpty(t *testing.T) {
	t.Run("Targets", func(t *testing.T) {
		seen := map[string]bool{}
		for _, target := range Targets() {
			name := target.String()
			require.NotEmpty(t, name)
			assert.False(t, seen[name], "duplicate name %q", name)
			seen[name] = true
		}
		assert.Len(t, seen, NumTargets+1)
	})

	t.Run("Precisions", func(t *testing.T) {
		seen := map[string]bool{}
		for _, p := range Precisions() {
			name := p.String()
			require.NotEmpty(t, name)
			assert.False(t, seen[name], "duplicate name %q", name)
			seen[name] = true
		}
		assert.Len(t, seen, NumPrecisions+1)
	})

	t.Run("Layouts", func(t *testing.T) {
		seen := map[string]bool{}
		for _, l := range Layouts() {
			name := l.String()
			require.NotEmpty(t, name)
			assert.False(t, seen[name], "duplicate name %q", name)
			seen[name] = true
		}
		assert.Len(t, seen, NumLayouts+1)
	})
}

func TestKnownNames(t *testing.T) {
	assert.Equal(t, "host", TargetHost.String())
	assert.Equal(t, "x86", TargetX86.String())
	assert.Equal(t, "cuda", TargetCUDA.String())
	assert.Equal(t, "float", PrecisionFloat32.String())
	assert.Equal(t, "int8", PrecisionInt8.String())
	assert.Equal(t, "NCHW", LayoutNCHW.String())
	assert.Equal(t, "any", LayoutAny.String())
}

func TestStringOutOfRangePanics(t *testing.T) {
	assert.Panics(t, func() { _ = targetEnd.String() })
	assert.Panics(t, func() { _ = Target(-1).String() })
	assert.Panics(t, func() { _ = precisionEnd.String() })
	assert.Panics(t, func() { _ = layoutEnd.String() })
}

func TestMustCover(t *testing.T) {
	assert.NotPanics(t, func() {
		mustCover("layout", map[Layout]string{LayoutUnknown: "a", LayoutNCHW: "b", LayoutAny: "c"}, LayoutUnknown, LayoutAny)
	})
	assert.Panics(t, func() {
		mustCover("layout", map[Layout]string{LayoutUnknown: "a", LayoutNCHW: "b"}, LayoutUnknown, LayoutAny)
	}, "missing entry")
	assert.Panics(t, func() {
		mustCover("layout", map[Layout]string{LayoutUnknown: "a", LayoutNCHW: "a", LayoutAny: "c"}, LayoutUnknown, LayoutAny)
	}, "duplicate name")
	assert.Panics(t, func() {
		mustCover("layout", map[Layout]string{LayoutUnknown: "a", LayoutNCHW: "", LayoutAny: "c"}, LayoutUnknown, LayoutAny)
	}, "empty name")
	assert.Panics(t, func() {
		mustCover("layout", map[Layout]string{LayoutUnknown: "a", LayoutNCHW: "b", LayoutAny: "c", layoutEnd: "d"}, LayoutUnknown, LayoutAny)
	}, "entry past Any")
}

func TestParse(t *testing.T) {
	for _, target := range Targets() {
		got, err := ParseTarget(target.String())
		require.NoError(t, err)
		assert.Equal(t, target, got)
	}
	for _, p := range Precisions() {
		got, err := ParsePrecision(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
	for _, l := range Layouts() {
		got, err := ParseLayout(l.String())
		require.NoError(t, err)
		assert.Equal(t, l, got)
	}

	_, err := ParseTarget("tpu")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"tpu"`)
	_, hasStack := err.(interface{ StackTrace() errors.StackTrace })
	assert.True(t, hasStack, "parse errors carry a stack trace")
}

func TestTargetPredicates(t *testing.T) {
	assert.False(t, TargetUnknown.Concrete())
	assert.False(t, TargetAny.Concrete())
	assert.True(t, TargetHost.Concrete())
	assert.True(t, TargetWebGPU.Concrete())
	assert.True(t, TargetAny.Valid())
	assert.False(t, targetEnd.Valid())
}

func TestPrecisionSize(t *testing.T) {
	assert.Equal(t, 4, PrecisionFloat32.Size())
	assert.Equal(t, 1, PrecisionInt8.Size())
	assert.Equal(t, 0, PrecisionAny.Size())
	assert.Equal(t, 0, PrecisionUnknown.Size())
}
