package audiobatch

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/audiobatch/audiobatch-go/internal/codec"
	"github.com/audiobatch/audiobatch-go/internal/errors"
	"github.com/audiobatch/audiobatch-go/internal/observability/metrics"
	"github.com/audiobatch/audiobatch-go/internal/resample"
)

// Plan describes every output of a batch before any audio is decoded.
type Plan struct {
	// Kind is the numeric format of the audio output.
	Kind Kind
	// Shapes holds one output shape per clip: [frames] when downmixing,
	// [frames, channels] otherwise.
	Shapes [][]int
	// Rates holds the realized output rate per clip: the target rate when
	// the clip resamples, its native rate otherwise.
	Rates []float64
	// Elements is the total element count across all clips.
	Elements int64

	offsets []int64
}

// Samples returns the batch size.
func (p *Plan) Samples() int {
	return len(p.Shapes)
}

// NewOutput allocates output buffers matching the plan.
func (p *Plan) NewOutput() *Output {
	out := &Output{plan: p, Rates: make([]float32, p.Samples())}
	switch p.Kind {
	case Int16:
		out.Int16 = make([]int16, p.Elements)
	case Int32:
		out.Int32 = make([]int32, p.Elements)
	default:
		out.Float32 = make([]float32, p.Elements)
	}
	return out
}

// Output receives a batch's decoded audio and realized sample rates. The
// typed buffer matching the plan's kind holds every clip back to back;
// Span locates one clip inside it. Callers may swap in their own buffers
// of the same size before Run.
type Output struct {
	plan *Plan

	// Exactly one typed buffer is active, matching the plan's kind.
	Int16   []int16
	Int32   []int32
	Float32 []float32

	// Rates receives one realized sample rate per clip during Run.
	Rates []float32
}

// Span returns the half-open range of clip i inside the active buffer.
func (o *Output) Span(i int) (start, end int64) {
	return o.plan.offsets[i], o.plan.offsets[i+1]
}

// Setup runs the sequential shape pass over a batch. Every clip's header is
// read and validated, output shapes are computed exactly, and the fused
// pipeline for the batch's kind pair is resolved, all before any decode
// work is dispatched. The opened decoders are retained for Run; a previous
// unfinished batch is discarded.
func (bd *BatchDecoder) Setup(samples []Sample) (*Plan, error) {
	bd.closeBatch()

	if len(bd.cfg.TargetRates) > 0 && len(bd.cfg.TargetRates) != len(samples) {
		return nil, errors.Newf("%d per-clip target rates for a batch of %d", len(bd.cfg.TargetRates), len(samples)).
			Category(errors.CategoryValidation).
			Build()
	}

	start := time.Now()
	batchID := uuid.New().String()

	useResampling := bd.cfg.TargetRate > 0 || len(bd.cfg.TargetRates) > 0
	decodeKind := bd.cfg.Kind
	if useResampling && !bd.cfg.Downmix {
		// resampling consumes float input, so decode straight to float
		// unless downmixing converts on its way through anyway
		decodeKind = Float32
	}
	pipeline, err := resolvePipeline(bd.cfg.Kind, decodeKind)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryValidation).
			Build()
	}

	clips := make([]clip, 0, len(samples))
	shapes := make([][]int, len(samples))
	rates := make([]float64, len(samples))
	offsets := make([]int64, len(samples)+1)

	for i := range samples {
		s := &samples[i]
		if err := validateInput(s); err != nil {
			closeClips(clips)
			return nil, errors.New(fmt.Errorf("sample %d (%s): %w", i, s.Source, err)).
				Category(errors.CategoryValidation).
				Context("source", s.Source).
				Context("sample_index", i).
				Build()
		}

		dec, meta, err := codec.Open(s.Data)
		if err != nil {
			closeClips(clips)
			return nil, errors.New(fmt.Errorf("opening sample %d (%s): %w", i, s.Source, err)).
				Category(errors.CategoryCodec).
				Context("source", s.Source).
				Context("sample_index", i).
				Build()
		}

		c := clip{dec: dec, meta: meta, source: s.Source}
		c.target = bd.targetRate(i, meta.SampleRate)
		c.resample = c.target != float64(meta.SampleRate)
		c.downmix = meta.Channels > 1 && bd.cfg.Downmix

		c.outFrames = meta.Length
		if c.resample {
			c.outFrames = resample.Length(meta.Length, float64(meta.SampleRate), c.target)
		}

		elements := c.outFrames
		if bd.cfg.Downmix {
			shapes[i] = []int{int(c.outFrames)}
		} else {
			shapes[i] = []int{int(c.outFrames), meta.Channels}
			elements *= int64(meta.Channels)
		}
		rates[i] = c.target
		offsets[i+1] = offsets[i] + elements
		clips = append(clips, c)
	}

	plan := &Plan{
		Kind:     bd.cfg.Kind,
		Shapes:   shapes,
		Rates:    rates,
		Elements: offsets[len(samples)],
		offsets:  offsets,
	}

	bd.clips = clips
	bd.plan = plan
	bd.pipeline = pipeline
	bd.decodeKind = decodeKind
	bd.batchID = batchID

	elapsed := time.Since(start)
	if bd.metrics != nil {
		bd.metrics.RecordBatchDuration(metrics.LabelSetup, elapsed.Seconds())
	}
	getLogger().Debug("batch planned",
		"batch_id", batchID,
		"samples", len(samples),
		"elements", plan.Elements,
		"decode_kind", decodeKind.String(),
		"duration_ms", elapsed.Milliseconds())
	return plan, nil
}

// validateInput enforces the rank-1 uint8 input contract.
func validateInput(s *Sample) error {
	if s.Shape != nil {
		if len(s.Shape) != 1 {
			return fmt.Errorf("%w: rank %d", ErrInputShape, len(s.Shape))
		}
		if s.Shape[0] != len(s.Data) {
			return fmt.Errorf("%w: declared %d elements over %d bytes", ErrInputShape, s.Shape[0], len(s.Data))
		}
	}
	if s.Kind != U8 {
		return fmt.Errorf("%w: %s", ErrInputKind, s.Kind)
	}
	return nil
}

// targetRate resolves clip i's realized output rate.
func (bd *BatchDecoder) targetRate(i, native int) float64 {
	if len(bd.cfg.TargetRates) > 0 {
		if r := bd.cfg.TargetRates[i]; r > 0 {
			return r
		}
		return float64(native)
	}
	if bd.cfg.TargetRate > 0 {
		return bd.cfg.TargetRate
	}
	return float64(native)
}

func closeClips(clips []clip) {
	for i := range clips {
		if clips[i].dec != nil {
			_ = clips[i].dec.Close()
		}
	}
}
