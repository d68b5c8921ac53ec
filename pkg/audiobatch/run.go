package audiobatch

import (
	"fmt"
	"time"

	"github.com/audiobatch/audiobatch-go/internal/codec"
	"github.com/audiobatch/audiobatch-go/internal/errors"
	"github.com/audiobatch/audiobatch-go/internal/observability/metrics"
)

// Run decodes the batch planned by the last Setup into out, in parallel
// over the worker pool. Heavier clips are dispatched first. The first
// failing clip fails the whole batch; clips already decoding run to
// completion, and the buffers of a failed batch must not be consumed. The
// batch's decoders are closed on return, success or failure, so decoding
// again requires a new Setup.
func (bd *BatchDecoder) Run(out *Output) error {
	if bd.plan == nil {
		return errors.Newf("no planned batch, call Setup first").
			Category(errors.CategoryState).
			Build()
	}
	if err := bd.validateOutput(out); err != nil {
		return err
	}

	start := time.Now()
	defer bd.closeBatch()

	for i := range bd.clips {
		c := &bd.clips[i]
		weight := c.meta.Length * int64(c.meta.Channels)
		bd.pool.Submit(weight, func(slot int) error {
			clipStart := time.Now()
			if err := bd.pipeline(bd, out, i, slot); err != nil {
				if bd.metrics != nil {
					bd.metrics.RecordSample(string(c.meta.Format), metrics.LabelError)
					bd.metrics.RecordDecodeError(string(c.meta.Format), errorLabel(err))
				}
				return errors.New(fmt.Errorf("%w: sample %d (%s): %w", ErrDecode, i, c.source, err)).
					Category(errors.CategoryDecode).
					Context("source", c.source).
					Context("sample_index", i).
					Build()
			}
			out.Rates[i] = float32(c.target)
			if bd.metrics != nil {
				format := string(c.meta.Format)
				bd.metrics.RecordSample(format, metrics.LabelSuccess)
				bd.metrics.RecordSampleDuration(format, time.Since(clipStart).Seconds())
				bd.metrics.RecordDecodedFrames(bd.plan.Kind.String(), c.outFrames)
				if c.resample {
					if c.target > float64(c.meta.SampleRate) {
						bd.metrics.RecordResample("up")
					} else {
						bd.metrics.RecordResample("down")
					}
				}
			}
			return nil
		})
	}

	err := bd.pool.Run()
	elapsed := time.Since(start)

	if bd.metrics != nil {
		status := metrics.LabelSuccess
		if err != nil {
			status = metrics.LabelError
		}
		bd.metrics.RecordBatch(status, len(bd.clips))
		bd.metrics.RecordBatchDuration(metrics.LabelDecode, elapsed.Seconds())
		decodeBytes, stageBytes := bd.scratch.bytes()
		bd.metrics.UpdateScratchBytes("decode", decodeBytes)
		bd.metrics.UpdateScratchBytes("resample", stageBytes)
	}

	if err != nil {
		getLogger().Error("batch decode failed",
			"batch_id", bd.batchID,
			"samples", len(bd.clips),
			"error", err)
		return err
	}
	getLogger().Debug("batch decoded",
		"batch_id", bd.batchID,
		"samples", len(bd.clips),
		"elements", bd.plan.Elements,
		"duration_ms", elapsed.Milliseconds())
	return nil
}

// validateOutput checks that out was built from the current plan and its
// buffers still match it.
func (bd *BatchDecoder) validateOutput(out *Output) error {
	if out == nil || out.plan != bd.plan {
		return errors.New(fmt.Errorf("%w: output was not created from the current plan", ErrShapeMismatch)).
			Category(errors.CategoryValidation).
			Build()
	}
	var have int64
	switch bd.plan.Kind {
	case Int16:
		have = int64(len(out.Int16))
	case Int32:
		have = int64(len(out.Int32))
	default:
		have = int64(len(out.Float32))
	}
	if have != bd.plan.Elements {
		return errors.New(fmt.Errorf("%w: audio buffer holds %d elements, plan needs %d", ErrShapeMismatch, have, bd.plan.Elements)).
			Category(errors.CategoryValidation).
			Build()
	}
	if len(out.Rates) != len(bd.clips) {
		return errors.New(fmt.Errorf("%w: rate buffer holds %d entries, batch has %d", ErrShapeMismatch, len(out.Rates), len(bd.clips))).
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}

// errorLabel maps a decode failure onto a coarse metrics label.
func errorLabel(err error) string {
	switch {
	case errors.Is(err, codec.ErrShortRead):
		return "short_read"
	case errors.Is(err, codec.ErrInvalidData):
		return "invalid_data"
	default:
		return "decode"
	}
}
