package audiobatch

import (
	"fmt"

	"github.com/audiobatch/audiobatch-go/internal/codec"
	"github.com/audiobatch/audiobatch-go/internal/resample"
	"github.com/audiobatch/audiobatch-go/internal/sample"
)

// arena holds one scratch slot per worker. Slots grow to the largest clip
// they have processed and never shrink, within or across batches.
type arena struct {
	slots []slotScratch
}

// slotScratch is one worker's reusable pair: a typed decode buffer whose
// element kind follows the batch's decode kind, and the float staging the
// resampling kernel reads from.
type slotScratch struct {
	decode any // []int16, []int32 or []float32
	stage  []float32
}

func newArena(size int) *arena {
	return &arena{slots: make([]slotScratch, size)}
}

// bytes reports the capacity held across all slots. Only accurate between
// batches.
func (a *arena) bytes() (decodeBytes, stageBytes int64) {
	for i := range a.slots {
		switch b := a.slots[i].decode.(type) {
		case []int16:
			decodeBytes += 2 * int64(cap(b))
		case []int32:
			decodeBytes += 4 * int64(cap(b))
		case []float32:
			decodeBytes += 4 * int64(cap(b))
		}
		stageBytes += 4 * int64(cap(a.slots[i].stage))
	}
	return decodeBytes, stageBytes
}

// decodeScratch returns s's decode buffer with room for n values,
// reallocating when a previous batch left a smaller or differently typed
// buffer behind.
func decodeScratch[D sample.Value](s *slotScratch, n int) []D {
	buf, _ := s.decode.([]D)
	if cap(buf) < n {
		buf = make([]D, n)
		s.decode = buf
	}
	return buf[:n]
}

// stageScratch returns s's float staging with room for n values.
func stageScratch(s *slotScratch, n int) []float32 {
	if cap(s.stage) < n {
		s.stage = make([]float32, n)
	}
	return s.stage[:n]
}

// pipelineFunc is the fused decode step instantiated for one (output kind,
// decode kind) pair, resolved once per batch.
type pipelineFunc func(bd *BatchDecoder, out *Output, idx, slot int) error

// resolvePipeline instantiates the fused pipeline for a batch's kind pair.
// Clips decode at the output kind except when resampling without downmixing
// forces a float32 decode.
func resolvePipeline(outKind, decodeKind Kind) (pipelineFunc, error) {
	switch {
	case outKind == Int16 && decodeKind == Int16:
		return decodeClip[int16, int16], nil
	case outKind == Int32 && decodeKind == Int32:
		return decodeClip[int32, int32], nil
	case outKind == Float32 && decodeKind == Float32:
		return decodeClip[float32, float32], nil
	case outKind == Int16 && decodeKind == Float32:
		return decodeClip[int16, float32], nil
	case outKind == Int32 && decodeKind == Float32:
		return decodeClip[int32, float32], nil
	default:
		return nil, fmt.Errorf("%w: output %s decoded as %s", ErrUnsupportedKind, outKind, decodeKind)
	}
}

// decodeClip decodes clip idx into its span of out, fusing downmix,
// resampling and numeric conversion as the clip requires. All intermediates
// come from the worker slot's scratch pair; nothing is allocated per clip.
func decodeClip[O, D sample.Value](bd *BatchDecoder, out *Output, idx, slot int) error {
	c := &bd.clips[idx]
	start, end := bd.plan.offsets[idx], bd.plan.offsets[idx+1]

	// Fast path: the decoder writes the destination directly. Untransformed
	// clips in an untransformed batch, where D and O coincide.
	if !c.resample && !c.downmix && bd.decodeKind == bd.plan.Kind {
		dst := flat[D](out)[start:end]
		_, err := decodeInto(c.dec, dst)
		return err
	}

	sl := &bd.scratch.slots[slot]
	buf := decodeScratch[D](sl, int(c.meta.Length)*c.meta.Channels)
	if _, err := decodeInto(c.dec, buf); err != nil {
		return err
	}

	dst := flat[O](out)[start:end]

	if c.resample {
		// The kernel reads float frames: a single downmixed channel, or a
		// normalized copy of the decoded clip.
		channels := c.meta.Channels
		if c.downmix {
			channels = 1
		}
		stage := stageScratch(sl, int(c.meta.Length)*channels)
		if c.downmix {
			sample.Downmix(stage, buf, c.meta.Channels)
		} else {
			sample.NormalizeSlice(stage, buf)
		}
		resample.Into(dst, stage, float64(c.meta.SampleRate), c.target, channels, bd.window)
		return nil
	}

	if c.downmix {
		sample.Downmix(dst, buf, c.meta.Channels)
		return nil
	}

	sample.ConvertSlice(dst, buf)
	return nil
}

// flat returns out's active audio buffer under its static type.
func flat[T sample.Value](out *Output) []T {
	var v []T
	switch p := any(&v).(type) {
	case *[]int16:
		*p = out.Int16
	case *[]int32:
		*p = out.Int32
	case *[]float32:
		*p = out.Float32
	}
	return v
}

// decodeInto dispatches dst's static type onto the decoder interface.
func decodeInto[D sample.Value](dec codec.Decoder, dst []D) (int, error) {
	switch d := any(dst).(type) {
	case []int16:
		return dec.DecodeInt16(d)
	case []int32:
		return dec.DecodeInt32(d)
	default:
		return dec.DecodeFloat32(any(dst).([]float32))
	}
}
