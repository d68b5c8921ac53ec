// Package resample converts audio between sampling rates with a windowed
// sinc interpolation filter. The filter coefficients are precomputed into a
// lookup table once per quality setting and shared read-only by all workers.
package resample

import (
	"math"

	"github.com/audiobatch/audiobatch-go/internal/sample"
)

// tableOversample is the number of lookup entries per input frame; values
// between entries are linearly interpolated.
const tableOversample = 32

// Lobes maps a quality setting in [0, 100] onto the sinc filter's lobe
// count: 0 gives 3 lobes, 50 gives 16 and 100 gives 64.
func Lobes(quality float64) int {
	return int(math.Round(0.007*quality*quality - 0.09*quality + 3))
}

// Length returns the number of frames produced when inFrames at inRate are
// resampled to outRate.
func Length(inFrames int64, inRate, outRate float64) int64 {
	return int64(math.Ceil(float64(inFrames) * outRate / inRate))
}

// Window holds the precomputed coefficient table of a Hann-windowed sinc
// filter spanning [-lobes, lobes] input frames. A Window is immutable after
// New and safe for concurrent use.
type Window struct {
	lobes  int
	center float32
	lookup []float32
}

// New precomputes the coefficient table for the given quality in [0, 100].
func New(quality float64) *Window {
	lobes := Lobes(quality)
	coeffs := 2*lobes*tableOversample + 1

	w := &Window{
		lobes: lobes,
		// leading zero plus interpolation slack at both ends
		lookup: make([]float32, coeffs+5),
	}
	center := (coeffs - 1) / 2
	for i := range coeffs {
		x := float64(i-center) / tableOversample
		w.lookup[i+1] = float32(sinc(x) * hann(x/float64(lobes)))
	}
	w.center = float32(center) + 1
	return w
}

// Lobes returns the filter's lobe count.
func (w *Window) Lobes() int { return w.lobes }

// at evaluates the window at x input frames from the filter center by
// linear interpolation over the lookup table. x must be in [-lobes, lobes].
func (w *Window) at(x float32) float32 {
	fi := x*tableOversample + w.center
	i := int(fi)
	di := fi - float32(i)
	return w.lookup[i] + di*(w.lookup[i+1]-w.lookup[i])
}

// inputRange returns the first and last input frame index covered by the
// filter centered at pos.
func (w *Window) inputRange(pos float64) (int, int) {
	i0 := int(math.Ceil(pos)) - w.lobes
	i1 := int(math.Floor(pos)) + w.lobes
	return i0, i1
}

// Into fills dst with src interpolated from inRate to outRate, converting
// each interpolated value into dst's representation. Both slices hold
// interleaved frames of the given channel count; dst's frame count decides
// how many output frames are produced, and callers size it with Length.
// The filter window is truncated at the clip boundaries.
func Into[T sample.Value](dst []T, src []float32, inRate, outRate float64, channels int, w *Window) {
	if channels == 1 {
		resampleChannel(dst, src, inRate/outRate, 1, 0, w)
		return
	}
	for c := range channels {
		resampleChannel(dst, src, inRate/outRate, channels, c, w)
	}
}

func resampleChannel[T sample.Value](dst []T, src []float32, scale float64, channels, ch int, w *Window) {
	inFrames := len(src) / channels
	outFrames := len(dst) / channels
	for o := range outFrames {
		pos := float64(o) * scale
		i0, i1 := w.inputRange(pos)
		if i0 < 0 {
			i0 = 0
		}
		if i1 > inFrames-1 {
			i1 = inFrames - 1
		}
		var acc float32
		x := float32(float64(i0) - pos)
		for i := i0; i <= i1; i++ {
			acc += src[i*channels+ch] * w.at(x)
			x++
		}
		dst[o*channels+ch] = sample.Saturate[T](acc)
	}
}

func sinc(x float64) float64 {
	x *= math.Pi
	if math.Abs(x) < 1e-10 {
		return 1 - x*x/6
	}
	return math.Sin(x) / x
}

func hann(x float64) float64 {
	return 0.5 * (1 + math.Cos(x*math.Pi))
}
