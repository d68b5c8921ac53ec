package resample

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLobesMapping(t *testing.T) {
	tests := []struct {
		quality float64
		lobes   int
	}{
		{0, 3},
		{25, 5},
		{50, 16},
		{75, 36},
		{100, 64},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.lobes, Lobes(tt.quality), "quality %v", tt.quality)
	}
}

func TestLengthCeil(t *testing.T) {
	assert.Equal(t, int64(8000), Length(16000, 16000, 8000))
	assert.Equal(t, int64(16000), Length(16000, 16000, 16000))
	assert.Equal(t, int64(1090), Length(1001, 44100, 48000))
	assert.Equal(t, int64(6), Length(1, 8000, 44100))
	assert.Equal(t, int64(0), Length(0, 44100, 48000))
}

func TestWindowShape(t *testing.T) {
	w := New(50)
	require.Equal(t, 16, w.Lobes())

	// unity at the center, zero at the crossings
	assert.Equal(t, float32(1), w.at(0))
	assert.InDelta(t, 0, w.at(1), 1e-6)
	assert.InDelta(t, 0, w.at(-1), 1e-6)
	assert.InDelta(t, 0, w.at(float32(w.lobes)), 1e-6)

	// symmetric
	assert.InDelta(t, w.at(2.5), w.at(-2.5), 1e-6)
}

func TestIdentityRateCopies(t *testing.T) {
	w := New(50)
	src := make([]float32, 64)
	for i := range src {
		src[i] = float32(i%7) * 0.1
	}
	dst := make([]float32, 64)
	Into(dst, src, 8000, 8000, 1, w)

	for i := range src {
		assert.InDelta(t, src[i], dst[i], 1e-5, "frame %d", i)
	}
}

func TestDecimationByTwoHitsSourceFrames(t *testing.T) {
	w := New(50)
	src := make([]float32, 64)
	for i := range src {
		src[i] = float32(math.Sin(float64(i) * 0.3))
	}
	dst := make([]float32, Length(64, 16000, 8000))
	require.Len(t, dst, 32)
	Into(dst, src, 16000, 8000, 1, w)

	for o := range dst {
		assert.InDelta(t, src[2*o], dst[o], 1e-5, "frame %d", o)
	}
}

func TestFractionalRatioKeepsDC(t *testing.T) {
	w := New(50)
	src := make([]float32, 441)
	for i := range src {
		src[i] = 1
	}
	dst := make([]float32, Length(441, 44100, 48000))
	require.Len(t, dst, 480)
	Into(dst, src, 44100, 48000, 1, w)

	for o := 100; o < 380; o++ {
		assert.InDelta(t, 1.0, dst[o], 0.01, "frame %d", o)
	}
}

func TestSineToneFidelity(t *testing.T) {
	const (
		inRate  = 16000.0
		outRate = 12000.0
		freq    = 440.0
	)
	w := New(50)
	src := make([]float32, 1600)
	for i := range src {
		src[i] = float32(math.Sin(2 * math.Pi * freq * float64(i) / inRate))
	}
	dst := make([]float32, Length(1600, inRate, outRate))
	require.Len(t, dst, 1200)
	Into(dst, src, inRate, outRate, 1, w)

	for o := 100; o < 1100; o++ {
		want := math.Sin(2 * math.Pi * freq * float64(o) / outRate)
		assert.InDelta(t, want, dst[o], 0.02, "frame %d", o)
	}
}

func TestStereoChannelsStayIndependent(t *testing.T) {
	w := New(50)
	src := make([]float32, 2*400)
	for i := 0; i < len(src); i += 2 {
		src[i] = 0.5
		src[i+1] = -0.25
	}
	dst := make([]float32, 2*Length(400, 44100, 48000))
	Into(dst, src, 44100, 48000, 2, w)

	frames := len(dst) / 2
	for o := 50; o < frames-50; o++ {
		assert.InDelta(t, 0.5, dst[2*o], 0.01, "left %d", o)
		assert.InDelta(t, -0.25, dst[2*o+1], 0.01, "right %d", o)
	}
}

func TestFusedConvertToInt16(t *testing.T) {
	w := New(50)
	src := make([]float32, 64)
	for i := range src {
		src[i] = 0.75
	}
	dst := make([]int16, 32)
	Into(dst, src, 16000, 8000, 1, w)

	for o, v := range dst {
		assert.Equal(t, int16(24575), v, "frame %d", o)
	}
}

func TestEmptyInput(t *testing.T) {
	w := New(0)
	require.Equal(t, 3, w.Lobes())
	Into([]float32{}, []float32{}, 16000, 8000, 1, w)
}
