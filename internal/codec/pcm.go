package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/audiobatch/audiobatch-go/internal/sample"
)

// fromPCMInt converts one machine-int PCM value at the given source bit
// depth into the destination representation. 8-bit values are unsigned per
// the WAV convention; all other depths are signed. Narrower depths are
// widened into the nearest representation before converting, so full scale
// stays full scale across depths.
func fromPCMInt[T sample.Value](v, depth int) T {
	switch depth {
	case 8:
		return sample.Convert[T](int16(v-128) << 8)
	case 16:
		return sample.Convert[T](int16(v))
	case 24:
		return sample.Convert[T](int32(v) << 8)
	default:
		return sample.Convert[T](int32(v))
	}
}

// fromPCMBytes parses interleaved little-endian signed PCM bytes at the
// given bit depth into dst and returns the number of values written. The
// byte count must not describe more values than dst can hold.
func fromPCMBytes[T sample.Value](dst []T, raw []byte, depth int) (int, error) {
	size := depth / 8
	n := len(raw) / size
	if n > len(dst) {
		return 0, fmt.Errorf("%w: %d values past the declared end", ErrInvalidData, n-len(dst))
	}
	switch depth {
	case 8:
		for i := range n {
			dst[i] = sample.Convert[T](int16(int8(raw[i])) << 8)
		}
	case 16:
		for i := range n {
			dst[i] = sample.Convert[T](int16(binary.LittleEndian.Uint16(raw[2*i:])))
		}
	case 24:
		for i := range n {
			v := int32(uint32(raw[3*i]) | uint32(raw[3*i+1])<<8 | uint32(raw[3*i+2])<<16)
			dst[i] = sample.Convert[T](v << 8)
		}
	case 32:
		for i := range n {
			dst[i] = sample.Convert[T](int32(binary.LittleEndian.Uint32(raw[4*i:])))
		}
	}
	return n, nil
}
