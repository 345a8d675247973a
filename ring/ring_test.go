package ring

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidation(t *testing.T) {
	_, err := New(0, 2, 0)
	assert.Error(t, err)

	_, err = New(64, 0, 0)
	assert.Error(t, err)

	_, err = New(64, 2, 128)
	assert.Error(t, err, "priming beyond capacity")

	b, err := New(64, 2, 16)
	require.NoError(t, err)
	assert.Equal(t, 64, b.Cap())
	assert.Equal(t, 2, b.Channels())
}

func stereoFrames(start, frames int) []float32 {
	out := make([]float32, frames*2)
	for i := 0; i < frames; i++ {
		out[i*2] = float32(start + i)
		out[i*2+1] = -float32(start + i)
	}

	return out
}

func TestWriteReadRoundTrip(t *testing.T) {
	b, err := New(64, 2, 0)
	require.NoError(t, err)

	b.WriteFrames(stereoFrames(0, 10))
	assert.Equal(t, 10, b.Len())

	dst := make([]float32, 20)
	got := b.ReadFrames(dst)

	assert.Equal(t, 10, got)
	assert.Equal(t, stereoFrames(0, 10), dst)
	assert.Equal(t, 0, b.Len())
}

func TestReadReturnsAtMostRequested(t *testing.T) {
	b, _ := New(64, 1, 0)

	b.WriteFrames(make([]float32, 32))

	dst := make([]float32, 8)
	assert.Equal(t, 8, b.ReadFrames(dst))
	assert.Equal(t, 24, b.Len())
}

func TestDropOldestOnOverflow(t *testing.T) {
	b, _ := New(8, 1, 0)

	for i := 0; i < 12; i++ {
		b.WriteFrames([]float32{float32(i)})
	}

	assert.Equal(t, 8, b.Len())
	assert.Equal(t, uint64(4), b.DroppedFrames())

	dst := make([]float32, 8)
	require.Equal(t, 8, b.ReadFrames(dst))

	// The oldest four frames are gone; the newest eight survive in order.
	for i, want := range []float32{4, 5, 6, 7, 8, 9, 10, 11} {
		assert.Equal(t, want, dst[i], "frame %d", i)
	}
}

func TestOversizedWriteKeepsNewestTail(t *testing.T) {
	b, _ := New(4, 1, 0)

	b.WriteFrames([]float32{1, 2, 3, 4, 5, 6})

	assert.Equal(t, 4, b.Len())

	dst := make([]float32, 4)
	b.ReadFrames(dst)
	assert.Equal(t, []float32{3, 4, 5, 6}, dst)
}

func TestPrimingHoldsReadsBack(t *testing.T) {
	b, _ := New(64, 1, 16)

	b.WriteFrames(make([]float32, 8))

	dst := make([]float32, 8)
	assert.Equal(t, 0, b.ReadFrames(dst), "read before priming threshold")

	b.WriteFrames(make([]float32, 8))
	assert.Equal(t, 8, b.ReadFrames(dst), "read after priming threshold")
}

func TestUnderrunCountsAndReprimes(t *testing.T) {
	b, _ := New(64, 1, 4)

	b.WriteFrames(make([]float32, 4))

	dst := make([]float32, 8)
	require.Equal(t, 4, b.ReadFrames(dst))

	assert.Equal(t, 0, b.ReadFrames(dst))
	assert.Equal(t, uint64(1), b.Underruns())

	// After a full underrun the priming threshold applies again.
	b.WriteFrames(make([]float32, 2))
	assert.Equal(t, 0, b.ReadFrames(dst))

	b.WriteFrames(make([]float32, 2))
	assert.Equal(t, 4, b.ReadFrames(dst))
}

func TestReset(t *testing.T) {
	b, _ := New(16, 1, 4)

	b.WriteFrames(make([]float32, 8))
	b.Reset()

	assert.Equal(t, 0, b.Len())

	dst := make([]float32, 4)
	assert.Equal(t, 0, b.ReadFrames(dst), "reset restarts priming")
}

// The buffer must never exceed its configured capacity regardless of
// producer/consumer rate mismatch.
func TestBoundedMemoryProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("len never exceeds capacity", prop.ForAll(
		func(writes []int, reads []int) bool {
			b, err := New(128, 2, 8)
			if err != nil {
				return false
			}

			for i := 0; i < len(writes) || i < len(reads); i++ {
				if i < len(writes) {
					b.WriteFrames(make([]float32, writes[i]*2))
				}

				if b.Len() > b.Cap() {
					return false
				}

				if i < len(reads) {
					dst := make([]float32, reads[i]*2)
					b.ReadFrames(dst)
				}

				if b.Len() > b.Cap() {
					return false
				}
			}

			return true
		},
		gen.SliceOf(gen.IntRange(0, 512)),
		gen.SliceOf(gen.IntRange(0, 256)),
	))

	properties.TestingRun(t)
}
