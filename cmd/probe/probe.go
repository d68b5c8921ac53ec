// Package probe implements the probe command, which runs only the shape
// pass and reports what decoding the same inputs would produce.
package probe

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/audiobatch/audiobatch-go/internal/codec"
	"github.com/audiobatch/audiobatch-go/internal/conf"
	"github.com/audiobatch/audiobatch-go/internal/sample"
	"github.com/audiobatch/audiobatch-go/pkg/audiobatch"
)

// Command creates the probe command for inspecting audio files.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "probe [files or directories]",
		Short: "Inspect audio files and show planned batch shapes",
		Long: `Probe opens each input, reads its container header and prints the native
metadata next to the output shape the current decode settings would produce.
No audio data is decoded.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProbe(settings, args)
		},
	}
}

// probedFile pairs one input with its header metadata or open error.
type probedFile struct {
	path string
	meta codec.Metadata
	err  error
	// index of this file inside the planned batch, -1 when unreadable
	planIndex int
}

func runProbe(settings *conf.Settings, args []string) error {
	paths, err := gatherFiles(args, settings.Decode.Formats)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no audio files among the inputs")
	}

	files := make([]probedFile, 0, len(paths))
	var readable []audiobatch.Sample
	for _, path := range paths {
		probed := probedFile{path: path, planIndex: -1}

		data, err := os.ReadFile(path)
		if err == nil {
			var dec codec.Decoder
			dec, probed.meta, err = codec.Open(data)
			if err == nil {
				_ = dec.Close()
				probed.planIndex = len(readable)
				readable = append(readable, audiobatch.Sample{Data: data, Source: filepath.Base(path)})
			}
		}
		probed.err = err
		files = append(files, probed)
	}

	kind, err := sample.ParseKind(settings.Decode.Kind)
	if err != nil {
		return err
	}
	bd, err := audiobatch.New(audiobatch.Config{
		Kind:       kind,
		Downmix:    settings.Decode.Downmix,
		TargetRate: settings.Decode.SampleRate,
		Quality:    settings.Decode.Quality,
		Workers:    settings.Decode.Workers,
	})
	if err != nil {
		return err
	}
	defer bd.Close()

	plan, err := bd.Setup(readable)
	if err != nil {
		return err
	}

	printTable(files, plan)

	if failed := len(files) - plan.Samples(); failed > 0 {
		return fmt.Errorf("%d of %d inputs could not be read", failed, len(files))
	}
	return nil
}

func printTable(files []probedFile, plan *audiobatch.Plan) {
	fmt.Printf("%-28s  %-6s  %8s  %3s  %10s  %8s  %-16s  %8s\n",
		"File", "Format", "Rate Hz", "Ch", "Frames", "Length", "Out shape", "Out rate")
	fmt.Printf("%s  %s  %s  %s  %s  %s  %s  %s\n",
		strings.Repeat("─", 28), strings.Repeat("─", 6), strings.Repeat("─", 8),
		strings.Repeat("─", 3), strings.Repeat("─", 10), strings.Repeat("─", 8),
		strings.Repeat("─", 16), strings.Repeat("─", 8))

	for i := range files {
		f := &files[i]
		name := truncateName(filepath.Base(f.path), 28)
		if f.err != nil {
			fmt.Printf("%-28s  ❌ %v\n", name, f.err)
			continue
		}

		duration := time.Duration(float64(f.meta.Length) / float64(f.meta.SampleRate) * float64(time.Second))
		fmt.Printf("%-28s  %-6s  %8d  %3d  %10d  %8s  %-16s  %8.0f\n",
			name, f.meta.Format, f.meta.SampleRate, f.meta.Channels, f.meta.Length,
			duration.Round(10*time.Millisecond),
			fmt.Sprint(plan.Shapes[f.planIndex]), plan.Rates[f.planIndex])
	}

	fmt.Printf("\nBatch plan: %d clips, %d %s values (%s), rate tensor [%d]\n",
		plan.Samples(), plan.Elements, plan.Kind,
		formatBytes(plan.Elements*int64(plan.Kind.Size())), plan.Samples())
}

// gatherFiles expands the command arguments into a list of candidate files.
// Explicitly named files are always probed, directory walks only pick up
// accepted extensions.
func gatherFiles(args []string, formats []string) ([]string, error) {
	if len(formats) == 0 {
		formats = codec.Formats()
	}
	allowed := make(map[string]bool, len(formats))
	for _, f := range formats {
		allowed["."+strings.ToLower(f)] = true
	}

	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}
		if !info.IsDir() {
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

func truncateName(name string, limit int) string {
	if len(name) <= limit {
		return name
	}
	return name[:limit-3] + "..."
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.1f GiB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
