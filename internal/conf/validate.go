// conf/validate.go

package conf

import (
	"fmt"
	"net"
	"slices"
	"strings"

	"github.com/audiobatch/audiobatch-go/internal/codec"
	"github.com/audiobatch/audiobatch-go/internal/sample"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := validateDecodeSettings(&settings.Decode); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateOutputSettings(&settings.Output); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateMetricsSettings(&settings.Metrics); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

// validateDecodeSettings validates the decode-specific settings
func validateDecodeSettings(settings *DecodeSettings) error {
	var errs []string

	if kind, err := sample.ParseKind(settings.Kind); err != nil {
		errs = append(errs, fmt.Sprintf("decode kind %q is not supported", settings.Kind))
	} else if kind == sample.U8 {
		errs = append(errs, "decode kind uint8 is only valid for input data")
	}

	if settings.SampleRate < 0 {
		errs = append(errs, "decode samplerate must be 0 or a positive frequency in Hz")
	}

	if settings.Quality < 0 || settings.Quality > 100 {
		errs = append(errs, "decode quality must be between 0 and 100")
	}

	if settings.Workers < 0 {
		errs = append(errs, "decode workers must be at least 0")
	}

	known := codec.Formats()
	for _, format := range settings.Formats {
		if !slices.Contains(known, strings.ToLower(format)) {
			errs = append(errs, fmt.Sprintf("decode format %q is not a registered codec", format))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("decode settings errors: %v", errs)
	}

	return nil
}

// validateOutputSettings validates the output-specific settings
func validateOutputSettings(settings *OutputSettings) error {
	var errs []string

	if settings.Path == "" {
		errs = append(errs, "output path must not be empty")
	}

	if settings.Type != "wav" {
		errs = append(errs, fmt.Sprintf("output type %q is not supported, only wav", settings.Type))
	}

	if len(errs) > 0 {
		return fmt.Errorf("output settings errors: %v", errs)
	}

	return nil
}

// validateMetricsSettings validates the metrics endpoint settings
func validateMetricsSettings(settings *MetricsSettings) error {
	if !settings.Enabled {
		return nil
	}

	if _, _, err := net.SplitHostPort(settings.Listen); err != nil {
		return fmt.Errorf("metrics listen address %q is invalid: %w", settings.Listen, err)
	}

	return nil
}
