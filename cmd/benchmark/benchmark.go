// Package benchmark implements the benchmark command, which measures batch
// decode throughput on synthetic clips.
package benchmark

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/spf13/cobra"

	"github.com/audiobatch/audiobatch-go/internal/conf"
	"github.com/audiobatch/audiobatch-go/internal/observability"
	"github.com/audiobatch/audiobatch-go/internal/sample"
	"github.com/audiobatch/audiobatch-go/pkg/audiobatch"
)

// batchSize holds the batch size flag value
var batchSize int
var clipSeconds float64
var runSeconds int
var compareMode bool

func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "benchmark",
		Short: "Run batch decode benchmark",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Validate batch size
			if batchSize < 1 || batchSize > 4096 {
				return fmt.Errorf("batch size must be between 1 and 4096, got %d", batchSize)
			}
			if clipSeconds <= 0 || clipSeconds > 60 {
				return fmt.Errorf("clip length must be between 0 and 60 seconds, got %g", clipSeconds)
			}
			if runSeconds < 1 {
				return fmt.Errorf("duration must be at least 1 second, got %d", runSeconds)
			}
			if compareMode {
				return runPoolComparison(settings, batchSize)
			}
			return runBenchmark(settings, batchSize)
		},
	}

	cmd.Flags().IntVarP(&batchSize, "batch", "b", 64, "clips per batch (1-4096)")
	cmd.Flags().Float64Var(&clipSeconds, "clip", 3.0, "length of each synthetic clip in seconds")
	cmd.Flags().IntVar(&runSeconds, "duration", 10, "benchmark duration in seconds")
	cmd.Flags().BoolVar(&compareMode, "compare", false, "compare a single worker against the full pool to measure scaling")

	return cmd
}

func runBenchmark(settings *conf.Settings, batch int) error {
	bd, err := newDecoder(settings, settings.Decode.Workers)
	if err != nil {
		return err
	}
	defer bd.Close()

	metrics, stopMetrics, err := observability.StartIfEnabled(settings)
	if err != nil {
		return err
	}
	defer stopMetrics()
	if metrics != nil {
		bd.SetMetrics(metrics.Decode)
	}

	samples := syntheticBatch(batch, clipSeconds)
	fmt.Printf("📦 Batch size: %d clips of %.1f s stereo audio, %d workers\n\n", batch, clipSeconds, bd.Workers())

	results, err := measure(bd, samples, time.Duration(runSeconds)*time.Second)
	if err != nil {
		return fmt.Errorf("❌ benchmark failed: %w", err)
	}

	audioPerBatch := clipSeconds * float64(batch)
	fmt.Printf("\nResults:\n")
	fmt.Printf("Batches   Batch Time    Per-Clip      Throughput\n")
	fmt.Printf("────────  ────────────  ────────────  ──────────────────────\n")
	fmt.Printf("%-8d  %6.1f ms      %6.2f ms      %6.1f clips/sec\n",
		results.batches,
		float64(results.avgBatchTime.Microseconds())/1000,
		float64(results.avgBatchTime.Microseconds())/1000/float64(batch),
		results.clipsPerSecond)
	fmt.Printf("────────  ────────────  ────────────  ──────────────────────\n")
	fmt.Printf("\n🎧 Decoded %.0fx realtime (%.1f s of audio per wall second)\n",
		audioPerBatch/results.avgBatchTime.Seconds(), audioPerBatch/results.avgBatchTime.Seconds())
	return nil
}

// benchmarkResults stores benchmark metrics
type benchmarkResults struct {
	batches        int           // number of completed batches
	avgBatchTime   time.Duration // average wall time per batch
	clipsPerSecond float64       // throughput in clips per second
}

func measure(bd *audiobatch.BatchDecoder, samples []audiobatch.Sample, duration time.Duration) (benchmarkResults, error) {
	// Warmup pass grows the scratch arena before timing starts
	if err := decodeOnce(bd, samples); err != nil {
		return benchmarkResults{}, err
	}

	fmt.Printf("⏳ Running benchmark for %v...\n", duration)
	startTime := time.Now()
	var batches int
	var totalDuration time.Duration

	for time.Since(startTime) < duration {
		batchStart := time.Now()
		if err := decodeOnce(bd, samples); err != nil {
			return benchmarkResults{}, err
		}
		totalDuration += time.Since(batchStart)
		batches++

		// Update progress display
		if batches%5 == 0 {
			avgTime := totalDuration / time.Duration(batches)
			fmt.Printf("\r🔄 Batches: \033[1;36m%d\033[0m, Average batch time: \033[1;33m%dms\033[0m",
				batches, avgTime.Milliseconds())
		}
	}
	fmt.Println() // Add newline after progress display

	return benchmarkResults{
		batches:        batches,
		avgBatchTime:   totalDuration / time.Duration(batches),
		clipsPerSecond: float64(batches*len(samples)) / totalDuration.Seconds(),
	}, nil
}

// runPoolComparison decodes the same batch with a single worker and with the
// full pool to measure how well the decode scales across cores.
func runPoolComparison(settings *conf.Settings, batch int) error {
	samples := syntheticBatch(batch, clipSeconds)

	fmt.Printf("🔬 Worker Pool Scaling (batch of %d clips, %.1f s each)\n", batch, clipSeconds)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	singleTime, _, err := timeWorkers(settings, samples, 1)
	if err != nil {
		return fmt.Errorf("❌ single worker run failed: %w", err)
	}

	poolTime, poolSize, err := timeWorkers(settings, samples, 0)
	if err != nil {
		return fmt.Errorf("❌ pool run failed: %w", err)
	}

	fmt.Println("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("Workers   Batch Time    Per-Clip\n")
	fmt.Printf("────────  ────────────  ──────────\n")
	fmt.Printf("%-8d  %6.1f ms      %6.2f ms\n", 1,
		float64(singleTime.Microseconds())/1000,
		float64(singleTime.Microseconds())/1000/float64(batch))
	fmt.Printf("%-8d  %6.1f ms      %6.2f ms\n", poolSize,
		float64(poolTime.Microseconds())/1000,
		float64(poolTime.Microseconds())/1000/float64(batch))
	fmt.Printf("────────  ────────────  ──────────\n")

	speedup := singleTime.Seconds() / poolTime.Seconds()
	efficiency := speedup / float64(poolSize) * 100
	fmt.Printf("\n🚀 Speedup with %d workers: %.2fx (%.0f%% scaling efficiency)\n", poolSize, speedup, efficiency)

	switch {
	case efficiency > 80:
		fmt.Println("   → Decode scales almost linearly across cores")
	case efficiency > 50:
		fmt.Println("   → Reasonable scaling, part of each batch is the sequential shape pass")
	default:
		fmt.Println("   → Poor scaling, the batch is likely too small to keep the pool busy")
	}

	return nil
}

func timeWorkers(settings *conf.Settings, samples []audiobatch.Sample, workers int) (time.Duration, int, error) {
	bd, err := newDecoder(settings, workers)
	if err != nil {
		return 0, 0, err
	}
	defer bd.Close()

	// Warmup
	if err := decodeOnce(bd, samples); err != nil {
		return 0, 0, err
	}

	const iterations = 5
	fmt.Printf("\n📊 %d workers (%d iterations)\n", bd.Workers(), iterations)

	var total time.Duration
	for iter := range iterations {
		start := time.Now()
		if err := decodeOnce(bd, samples); err != nil {
			return 0, 0, err
		}
		elapsed := time.Since(start)
		total += elapsed
		fmt.Printf("   Iteration %d: %v\n", iter+1, elapsed.Round(time.Millisecond))
	}

	return total / iterations, bd.Workers(), nil
}

func newDecoder(settings *conf.Settings, workers int) (*audiobatch.BatchDecoder, error) {
	kind, err := sample.ParseKind(settings.Decode.Kind)
	if err != nil {
		return nil, err
	}
	return audiobatch.New(audiobatch.Config{
		Kind:       kind,
		Downmix:    settings.Decode.Downmix,
		TargetRate: settings.Decode.SampleRate,
		Quality:    settings.Decode.Quality,
		Workers:    workers,
	})
}

// decodeOnce runs one full setup and decode cycle over the batch.
func decodeOnce(bd *audiobatch.BatchDecoder, samples []audiobatch.Sample) error {
	plan, err := bd.Setup(samples)
	if err != nil {
		return err
	}
	out := plan.NewOutput()
	return bd.Run(out)
}

// syntheticBatch builds in-memory stereo WAV clips. Each clip carries a
// different tone so per-clip work is not identical.
func syntheticBatch(batch int, seconds float64) []audiobatch.Sample {
	samples := make([]audiobatch.Sample, batch)
	for i := range batch {
		freq := 220.0 * math.Pow(2, float64(i%24)/12.0)
		samples[i] = audiobatch.Sample{
			Data:   sineWAV(2, 44100, int(seconds*44100), freq),
			Source: fmt.Sprintf("synthetic-%d.wav", i),
		}
	}
	return samples
}

// sineWAV renders a 16-bit PCM WAV file in memory.
func sineWAV(channels, rate, frames int, freq float64) []byte {
	const bytesPerSample = 2
	dataSize := frames * channels * bytesPerSample
	buf := make([]byte, 0, 44+dataSize)

	buf = append(buf, "RIFF"...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(36+dataSize))
	buf = append(buf, "WAVE"...)
	buf = append(buf, "fmt "...)
	buf = binary.LittleEndian.AppendUint32(buf, 16)
	buf = binary.LittleEndian.AppendUint16(buf, 1)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(channels))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(rate))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(rate*channels*bytesPerSample))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(channels*bytesPerSample))
	buf = binary.LittleEndian.AppendUint16(buf, 16)
	buf = append(buf, "data"...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(dataSize))

	for n := range frames {
		v := int16(12000 * math.Sin(2*math.Pi*freq*float64(n)/float64(rate)))
		for range channels {
			buf = binary.LittleEndian.AppendUint16(buf, uint16(v))
		}
	}
	return buf
}
