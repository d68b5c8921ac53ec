// Package decode implements the decode command, which runs a batch of audio
// files through the full decode pipeline and writes uniform WAV outputs.
package decode

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/audiobatch/audiobatch-go/internal/codec"
	"github.com/audiobatch/audiobatch-go/internal/conf"
	"github.com/audiobatch/audiobatch-go/internal/observability"
	"github.com/audiobatch/audiobatch-go/internal/sample"
	"github.com/audiobatch/audiobatch-go/pkg/audiobatch"
)

// targetRates holds the --rates flag value
var targetRates []float64

// Command creates the decode command for batch decoding audio files.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode [files or directories]",
		Short: "Decode a batch of audio files into uniform WAV outputs",
		Long: `Decode reads every input file, plans the batch output shapes from the
container headers, decodes all clips in parallel and writes one WAV file per
input into the output directory, named after the input. All outputs share the
configured sample kind, and the downmix and resampling settings apply to the
whole batch.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecode(settings, args)
		},
	}

	cmd.Flags().StringVarP(&settings.Output.Path, "output", "o", viper.GetString("output.path"), "Path to output directory")
	cmd.Flags().Float64SliceVar(&targetRates, "rates", nil, "Per-clip target rates in Hz, one per input, -1 keeps that clip's native rate")

	return cmd
}

func runDecode(settings *conf.Settings, args []string) error {
	paths, err := collectInputs(args, settings.Decode.Formats)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no decodable audio files among the inputs")
	}

	samples, err := loadClips(paths)
	if err != nil {
		return err
	}

	kind, err := sample.ParseKind(settings.Decode.Kind)
	if err != nil {
		return err
	}
	bd, err := audiobatch.New(audiobatch.Config{
		Kind:        kind,
		Downmix:     settings.Decode.Downmix,
		TargetRate:  settings.Decode.SampleRate,
		TargetRates: targetRates,
		Quality:     settings.Decode.Quality,
		Workers:     settings.Decode.Workers,
	})
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

	start := time.Now()
	plan, err := bd.Setup(samples)
	if err != nil {
		return err
	}
	out := plan.NewOutput()
	if err := bd.Run(out); err != nil {
		return err
	}
	elapsed := time.Since(start)

	if err := os.MkdirAll(settings.Output.Path, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var audioSeconds float64
	for i := range plan.Samples() {
		outPath := filepath.Join(settings.Output.Path, outputName(paths[i]))
		if err := writeWAV(outPath, plan, out, i); err != nil {
			return fmt.Errorf("failed to write %s: %w", outPath, err)
		}
		audioSeconds += float64(plan.Shapes[i][0]) / float64(out.Rates[i])
		if settings.Debug {
			fmt.Printf("DEBUG: wrote %s shape %v rate %.0f\n", outPath, plan.Shapes[i], out.Rates[i])
		}
	}

	fmt.Printf("✅ Decoded %d clips (%.1f s of audio) as %s in %v (%.1fx realtime)\n",
		plan.Samples(), audioSeconds, plan.Kind,
		elapsed.Round(time.Millisecond), audioSeconds/elapsed.Seconds())
	return nil
}

// collectInputs expands the command arguments into a list of audio files.
// Directories are walked, files with unaccepted extensions are skipped with
// a warning.
func collectInputs(args []string, formats []string) ([]string, error) {
	allowed := allowedExtensions(formats)
	var paths []string

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}

		if !info.IsDir() {
			if !allowed[strings.ToLower(filepath.Ext(arg))] {
				fmt.Printf("⚠️ Skipping %s: not an accepted audio format\n", filepath.Base(arg))
				continue
			}
			paths = append(paths, arg)
			continue
		}

		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && allowed[strings.ToLower(filepath.Ext(path))] {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("error walking %s: %w", arg, err)
		}
	}

	return paths, nil
}

// allowedExtensions maps the accepted format list onto file extensions. An
// empty list accepts every registered codec.
func allowedExtensions(formats []string) map[string]bool {
	if len(formats) == 0 {
		formats = codec.Formats()
	}
	allowed := make(map[string]bool, len(formats))
	for _, f := range formats {
		allowed["."+strings.ToLower(f)] = true
	}
	return allowed
}

// loadClips reads every input file into memory concurrently. Clip order
// follows the path order regardless of which read finishes first.
func loadClips(paths []string) ([]audiobatch.Sample, error) {
	samples := make([]audiobatch.Sample, len(paths))

	g := new(errgroup.Group)
	g.SetLimit(runtime.NumCPU())
	for i, path := range paths {
		g.Go(func() error {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("error reading %s: %w", path, err)
			}
			samples[i] = audiobatch.Sample{Data: data, Source: filepath.Base(path)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return samples, nil
}

// outputName maps an input path to its output file name.
func outputName(inputPath string) string {
	base := filepath.Base(inputPath)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".wav"
}

// writeWAV writes clip i of the batch output as a WAV file. Integer kinds
// become PCM, float32 becomes IEEE float.
func writeWAV(path string, plan *audiobatch.Plan, out *audiobatch.Output, i int) error {
	channels := 1
	if shape := plan.Shapes[i]; len(shape) == 2 {
		channels = shape[1]
	}
	rate := int(out.Rates[i])
	start, end := out.Span(i)

	outFile, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer outFile.Close()

	format := &audio.Format{NumChannels: channels, SampleRate: rate}
	switch plan.Kind {
	case audiobatch.Int16:
		enc := wav.NewEncoder(outFile, rate, 16, channels, 1)
		if err := enc.Write(&audio.IntBuffer{Data: widen(out.Int16[start:end]), Format: format}); err != nil {
			return fmt.Errorf("failed to write to WAV encoder: %w", err)
		}
		return enc.Close()
	case audiobatch.Int32:
		enc := wav.NewEncoder(outFile, rate, 32, channels, 1)
		if err := enc.Write(&audio.IntBuffer{Data: widen(out.Int32[start:end]), Format: format}); err != nil {
			return fmt.Errorf("failed to write to WAV encoder: %w", err)
		}
		return enc.Close()
	default:
		// the encoder's buffer interface is integer-only, float samples go
		// through the per-frame interface
		enc := wav.NewEncoder(outFile, rate, 32, channels, 3)
		for _, v := range out.Float32[start:end] {
			if err := enc.WriteFrame(v); err != nil {
				return fmt.Errorf("failed to write to WAV encoder: %w", err)
			}
		}
		return enc.Close()
	}
}

// widen converts typed samples to the int slice the WAV encoder consumes.
func widen[T int16 | int32](src []T) []int {
	dst := make([]int, len(src))
	for i, v := range src {
		dst[i] = int(v)
	}
	return dst
}
