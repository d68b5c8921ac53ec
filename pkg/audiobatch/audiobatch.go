// Package audiobatch decodes batches of independently encoded audio clips
// into uniform numeric buffers, optionally downmixing to mono and resampling
// to a target rate. A batch is processed in two passes: Setup reads every
// clip's header sequentially and computes exact output shapes before any
// audio is decoded, then Run decodes all clips in parallel over a fixed
// worker pool, fusing decode, downmix, resample and numeric conversion into
// a single per-clip step backed by per-worker scratch buffers.
//
//	bd, err := audiobatch.New(audiobatch.DefaultConfig())
//	defer bd.Close()
//	plan, err := bd.Setup(samples)
//	out := plan.NewOutput()
//	err = bd.Run(out)
//
// A BatchDecoder processes one batch at a time and is not safe for
// concurrent use. Scratch buffers persist across batches and only grow.
package audiobatch

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/audiobatch/audiobatch-go/internal/codec"
	"github.com/audiobatch/audiobatch-go/internal/cpuspec"
	"github.com/audiobatch/audiobatch-go/internal/errors"
	"github.com/audiobatch/audiobatch-go/internal/logging"
	"github.com/audiobatch/audiobatch-go/internal/observability/metrics"
	"github.com/audiobatch/audiobatch-go/internal/resample"
	"github.com/audiobatch/audiobatch-go/internal/sample"
	"github.com/audiobatch/audiobatch-go/internal/workers"
)

// Kind identifies a numeric sample format.
type Kind = sample.Kind

// Supported sample kinds. U8 is accepted only as input data.
const (
	U8      = sample.U8
	Int16   = sample.Int16
	Int32   = sample.Int32
	Float32 = sample.Float32
)

// DefaultQuality is the resampling quality used by DefaultConfig.
const DefaultQuality = 50.0

var (
	// ErrInputShape reports an input buffer whose declared shape is not rank
	// 1 or disagrees with the buffer length.
	ErrInputShape = errors.NewStd("input buffer must be rank 1")
	// ErrInputKind reports an input buffer whose element kind is not uint8.
	ErrInputKind = errors.NewStd("input buffer must hold uint8 data")
	// ErrUnsupportedKind reports a sample kind outside the supported set.
	ErrUnsupportedKind = errors.NewStd("unsupported sample kind")
	// ErrShapeMismatch reports an output that does not match the batch plan.
	ErrShapeMismatch = errors.NewStd("output does not match plan")
	// ErrDecode wraps per-clip failures during the parallel decode pass.
	ErrDecode = errors.NewStd("batch decode failed")
)

// Package-level logger, lazily bound so library use without logging.Init
// falls back to the process default.
var (
	logger     *slog.Logger
	loggerOnce sync.Once
)

func getLogger() *slog.Logger {
	loggerOnce.Do(func() {
		if l := logging.Structured(); l != nil {
			logger = l.With("service", "audiobatch")
		} else {
			logger = slog.Default().With("service", "audiobatch")
		}
	})
	return logger
}

// Config controls how a BatchDecoder decodes its batches.
type Config struct {
	// Downmix averages all channels of every clip into a single channel.
	// Downmixed outputs are rank 1, others rank 2 [frames, channels].
	Downmix bool

	// Kind is the numeric format of the decoded output. The zero value
	// selects Float32.
	Kind Kind

	// TargetRate resamples every clip to this rate when positive. Zero or
	// negative disables resampling.
	TargetRate float64

	// TargetRates overrides TargetRate with one entry per clip. Entries
	// that are zero or negative keep that clip's native rate. When set,
	// its length must equal the batch size passed to Setup.
	TargetRates []float64

	// Quality selects the resampling filter quality in [0, 100]. Higher
	// values use wider windows: 0 maps to 3 lobes, 50 to 16, 100 to 64.
	Quality float64

	// Workers fixes the worker pool size. Zero or negative sizes the pool
	// from the host CPU's performance cores.
	Workers int
}

// DefaultConfig returns the documented defaults: float32 output, no
// downmixing, resampling disabled, quality 50 and an auto-sized pool.
func DefaultConfig() Config {
	return Config{Kind: Float32, Quality: DefaultQuality}
}

// Sample is one encoded clip handed to Setup.
type Sample struct {
	// Data is the clip's complete encoded byte stream.
	Data []byte

	// Shape optionally declares the input shape. When set it must be rank
	// 1 and its single dimension must equal len(Data).
	Shape []int

	// Kind optionally declares the input element kind. Only U8, the zero
	// value, is accepted.
	Kind Kind

	// Source names the clip in errors and logs, typically its file path.
	Source string
}

// clip is the per-sample state retained between the setup and run passes.
type clip struct {
	dec    codec.Decoder
	meta   codec.Metadata
	source string

	target    float64 // realized output rate
	resample  bool
	downmix   bool
	outFrames int64
}

// BatchDecoder turns batches of encoded clips into uniform numeric buffers.
// An instance owns a fixed worker pool with per-worker scratch that persists
// across batches, and processes one batch at a time: Setup computes shapes,
// Run decodes. Not safe for concurrent use.
type BatchDecoder struct {
	cfg     Config
	window  *resample.Window
	pool    *workers.Pool
	scratch *arena
	metrics *metrics.DecodeMetrics

	// Current batch, rebuilt by every Setup and released when Run returns.
	clips      []clip
	plan       *Plan
	pipeline   pipelineFunc
	decodeKind Kind
	batchID    string
}

// New validates cfg and builds a decoder with its worker pool, per-worker
// scratch slots and precomputed resampling window.
func New(cfg Config) (*BatchDecoder, error) {
	if cfg.Kind == U8 {
		cfg.Kind = Float32
	}
	switch cfg.Kind {
	case Int16, Int32, Float32:
	default:
		return nil, errors.New(fmt.Errorf("%w: %s", ErrUnsupportedKind, cfg.Kind)).
			Category(errors.CategoryValidation).
			Context("kind", cfg.Kind.String()).
			Build()
	}
	if cfg.Quality < 0 || cfg.Quality > 100 {
		return nil, errors.Newf("resampling quality %.1f is outside [0, 100]", cfg.Quality).
			Category(errors.CategoryConfiguration).
			Context("quality", cfg.Quality).
			Build()
	}

	size := determineWorkerCount(cfg.Workers)
	bd := &BatchDecoder{
		cfg:     cfg,
		window:  resample.New(cfg.Quality),
		pool:    workers.NewPool(size),
		scratch: newArena(size),
	}
	getLogger().Debug("batch decoder ready",
		"kind", cfg.Kind.String(),
		"downmix", cfg.Downmix,
		"quality", cfg.Quality,
		"workers", size)
	return bd, nil
}

// determineWorkerCount resolves the pool size from the configured value and
// the host CPU.
func determineWorkerCount(configured int) int {
	systemCPUCount := runtime.NumCPU()

	if configured <= 0 {
		spec := cpuspec.GetCPUSpec()
		if optimal := spec.GetOptimalThreadCount(); optimal > 0 {
			return min(optimal, systemCPUCount)
		}
		// unknown CPU, use all available cores
		return systemCPUCount
	}

	return min(configured, systemCPUCount)
}

// SetMetrics attaches decode metrics to the decoder. Call before the first
// batch; the setter is not synchronized with a running batch.
func (bd *BatchDecoder) SetMetrics(m *metrics.DecodeMetrics) {
	bd.metrics = m
}

// Workers returns the size of the decoder's worker pool.
func (bd *BatchDecoder) Workers() int {
	return bd.pool.Size()
}

// Close releases the worker pool and any decoders still held by an
// unfinished batch.
func (bd *BatchDecoder) Close() {
	bd.closeBatch()
	bd.pool.Close()
}

// closeBatch closes the current batch's decoders and drops its state.
// Decoders read their clip exactly once, so a finished batch cannot run
// again without a new Setup.
func (bd *BatchDecoder) closeBatch() {
	for i := range bd.clips {
		if bd.clips[i].dec != nil {
			_ = bd.clips[i].dec.Close()
			bd.clips[i].dec = nil
		}
	}
	bd.clips = nil
	bd.plan = nil
	bd.pipeline = nil
	bd.batchID = ""
}
