package sample

import "math"

// Value is the closed set of decoded PCM representations.
type Value interface {
	int16 | int32 | float32
}

const (
	maxInt16 = 32767.0
	maxInt32 = 2147483647.0
)

// Normalize maps a PCM value onto [-1, 1] as float32. Integer formats are
// scaled by their positive maximum, so a full-scale value maps to 1.0.
func Normalize[T Value](v T) float32 {
	switch x := any(v).(type) {
	case int16:
		return float32(x) * (1.0 / maxInt16)
	case int32:
		return float32(float64(x) * (1.0 / maxInt32))
	default:
		return any(v).(float32)
	}
}

// Saturate converts a normalized float32 into the target representation,
// rounding integer targets and clamping them to their representable range.
func Saturate[T Value](v float32) T {
	var out T
	switch any(out).(type) {
	case int16:
		out = any(satInt16(v)).(T)
	case int32:
		out = any(satInt32(v)).(T)
	default:
		out = any(v).(T)
	}
	return out
}

func satInt16(v float32) int16 {
	scaled := math.Round(float64(v) * maxInt16)
	if scaled > math.MaxInt16 {
		return math.MaxInt16
	}
	if scaled < math.MinInt16 {
		return math.MinInt16
	}
	return int16(scaled)
}

func satInt32(v float32) int32 {
	scaled := math.Round(float64(v) * maxInt32)
	if scaled >= math.MaxInt32 {
		return math.MaxInt32
	}
	if scaled < math.MinInt32 {
		return math.MinInt32
	}
	return int32(scaled)
}

// Convert re-expresses a single value in another representation, saturating
// integer targets. Same-type conversions are the identity.
func Convert[O, I Value](v I) O {
	if out, ok := any(v).(O); ok {
		return out
	}
	return Saturate[O](Normalize(v))
}

// ConvertSlice fills dst with src re-expressed in dst's representation.
// The slices must have equal length.
func ConvertSlice[O, I Value](dst []O, src []I) {
	if len(dst) != len(src) {
		panic("sample: convert length mismatch")
	}
	for i, v := range src {
		dst[i] = Convert[O](v)
	}
}

// NormalizeSlice fills dst with src mapped onto [-1, 1].
func NormalizeSlice[T Value](dst []float32, src []T) {
	if s, ok := any(src).([]float32); ok {
		copy(dst, s)
		return
	}
	for i, v := range src {
		dst[i] = Normalize(v)
	}
}

// Downmix averages interleaved multi-channel frames into mono, one output
// value per frame. Averaging happens in normalized float space and the mean
// is saturated back into the output representation. dst must hold
// len(src)/channels values.
func Downmix[O, I Value](dst []O, src []I, channels int) {
	frames := len(src) / channels
	switch channels {
	case 2:
		for i := range frames {
			l := Normalize(src[2*i])
			r := Normalize(src[2*i+1])
			dst[i] = Saturate[O]((l + r) * 0.5)
		}
	default:
		scale := 1.0 / float32(channels)
		for i := range frames {
			var sum float32
			for c := range channels {
				sum += Normalize(src[i*channels+c])
			}
			dst[i] = Saturate[O](sum * scale)
		}
	}
}
