package parallel

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFor(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunkSize: 8}

	var counter int64
	n := 1000

	For(n, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	assert.Equal(t, int64(n), counter)
}

func TestForRange_CoversExactlyOnce(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 3, MinChunkSize: 10}
	n := 1001
	hits := make([]int32, n)

	var mu sync.Mutex
	var spans int
	ForRange(n, func(lo, hi int) {
		mu.Lock()
		spans++
		mu.Unlock()
		for i := lo; i < hi; i++ {
			atomic.AddInt32(&hits[i], 1)
		}
	}, cfg)

	for i, h := range hits {
		if h != 1 {
			t.Fatalf("index %d visited %d times", i, h)
		}
	}
	assert.Equal(t, 3, spans)
}

func TestForRange_Sequential(t *testing.T) {
	cfg := Config{Enabled: false}

	var calls int
	ForRange(100, func(lo, hi int) {
		calls++
		assert.Equal(t, 0, lo)
		assert.Equal(t, 100, hi)
	}, cfg)

	assert.Equal(t, 1, calls)
}

func TestForRange_SmallInput(t *testing.T) {
	// Inputs under two chunks run as a single span.
	cfg := Config{Enabled: true, NumWorkers: 8, MinChunkSize: 64}

	var calls int
	ForRange(127, func(_, _ int) { calls++ }, cfg)
	assert.Equal(t, 1, calls)

	calls = 0
	ForRange(0, func(_, _ int) { calls++ }, cfg)
	assert.Equal(t, 0, calls)
}

func TestWithWorkers(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, cfg, cfg.WithWorkers(0))
	one := cfg.WithWorkers(1)
	assert.Equal(t, 1, one.NumWorkers)
	assert.False(t, one.Enabled)
	four := cfg.WithWorkers(4)
	assert.Equal(t, 4, four.NumWorkers)
	assert.True(t, four.Enabled)
}

func BenchmarkForRange(b *testing.B) {
	cfg := DefaultConfig()
	src := make([]byte, 8<<20)
	dst := make([]byte, len(src))

	b.Run("parallel", func(b *testing.B) {
		b.SetBytes(int64(len(src)))
		for i := 0; i < b.N; i++ {
			ForRange(len(src), func(lo, hi int) { copy(dst[lo:hi], src[lo:hi]) }, cfg)
		}
	})

	b.Run("sequential", func(b *testing.B) {
		b.SetBytes(int64(len(src)))
		seq := Config{Enabled: false}
		for i := 0; i < b.N; i++ {
			ForRange(len(src), func(lo, hi int) { copy(dst[lo:hi], src[lo:hi]) }, seq)
		}
	})
}
