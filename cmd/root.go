package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/audiobatch/audiobatch-go/cmd/benchmark"
	"github.com/audiobatch/audiobatch-go/cmd/decode"
	"github.com/audiobatch/audiobatch-go/cmd/probe"
	"github.com/audiobatch/audiobatch-go/internal/conf"
	"github.com/audiobatch/audiobatch-go/internal/logging"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "audiobatch",
		Short:   "Batch audio decoder CLI",
		Long:    `Audiobatch decodes batches of audio files into uniform numeric output, optionally downmixed to mono and resampled to a common rate.`,
		Version: fmt.Sprintf("%s (built %s)", settings.Version, settings.BuildDate),
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, settings); err != nil {
		logging.Error("Failed to bind command line flags", "error", err)
	}

	// Add sub-commands to the root command.
	subcommands := []*cobra.Command{
		decode.Command(settings),
		probe.Command(settings),
		benchmark.Command(settings),
	}
	rootCmd.AddCommand(subcommands...)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if settings.Debug {
			fileLogLevel.Set(slog.LevelDebug)
			if !settings.Log.Enabled {
				// with file logging active the level var above is enough,
				// the console loggers are not the default
				logging.SetLevel(slog.LevelDebug)
			}
		}

		// Flag values land directly in the settings struct, revalidate
		// before any subcommand consumes them.
		if err := conf.ValidateSettings(settings); err != nil {
			return err
		}

		configPath := "embedded defaults"
		if path, err := conf.FindConfigFile(); err == nil {
			configPath = path
		}
		logging.Debug("Configuration loaded",
			"config", configPath,
			"node", settings.Main.Name,
			"kind", settings.Decode.Kind,
			"downmix", settings.Decode.Downmix,
			"samplerate", settings.Decode.SampleRate,
			"workers", settings.Decode.Workers)
		return nil
	}

	return rootCmd
}

// fileLogLevel controls the verbosity of the optional file logger, raised to
// debug by the --debug flag.
var fileLogLevel = new(slog.LevelVar)

// Execute initializes logging, loads the configuration and runs the root
// command. version and buildDate come from the build through main.
func Execute(version, buildDate string) error {
	logging.Init()

	settings := conf.Setting()
	if settings == nil {
		return fmt.Errorf("configuration could not be loaded")
	}
	settings.Version = version
	settings.BuildDate = buildDate

	closeFileLog := setupFileLogging(settings)
	defer closeFileLog()

	return RootCommand(settings).Execute()
}

// setupFileLogging routes the default logger into the configured log file
// when file logging is enabled. The returned function closes the file.
func setupFileLogging(settings *conf.Settings) func() {
	if !settings.Log.Enabled {
		return func() {}
	}

	fileLogLevel.Set(slog.LevelInfo)
	fileLogger, closeLogger, err := logging.NewFileLogger(settings.Log.Path, "audiobatch", fileLogLevel)
	if err != nil {
		logging.Warn("File logging unavailable, keeping console logging", "path", settings.Log.Path, "error", err)
		return func() {}
	}
	slog.SetDefault(fileLogger)
	return func() { _ = closeLogger() }
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVarP(&settings.Decode.Kind, "kind", "k", viper.GetString("decode.kind"), "Output sample kind: int16, int32 or float32")
	rootCmd.PersistentFlags().BoolVar(&settings.Decode.Downmix, "downmix", viper.GetBool("decode.downmix"), "Average all channels down to mono")
	rootCmd.PersistentFlags().Float64VarP(&settings.Decode.SampleRate, "samplerate", "r", viper.GetFloat64("decode.samplerate"), "Resample every clip to this rate in Hz, 0 keeps native rates")
	rootCmd.PersistentFlags().Float64VarP(&settings.Decode.Quality, "quality", "q", viper.GetFloat64("decode.quality"), "Resampling quality between 0 (fastest) and 100 (best)")
	rootCmd.PersistentFlags().IntVarP(&settings.Decode.Workers, "workers", "w", viper.GetInt("decode.workers"), "Decode worker count, 0 sizes the pool from the CPU")
	rootCmd.PersistentFlags().BoolVar(&settings.Metrics.Enabled, "metrics", viper.GetBool("metrics.enabled"), "Expose prometheus metrics while the command runs")
	rootCmd.PersistentFlags().StringVar(&settings.Metrics.Listen, "metrics-listen", viper.GetString("metrics.listen"), "Metrics endpoint listen address")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}
