package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ZebulonRouseFrantzich/kinstall/internal/flasher"
	"github.com/ZebulonRouseFrantzich/kinstall/internal/release"
)

// Config is the parsed kinstall configuration. The lua tags name each field
// as it appears in the config file and in validation errors.
type Config struct {
	// DestDir receives release downloads and extracted firmware.
	DestDir string `lua:"destdir" validate:"notblank"`
	// Version is the default release, e.g. "v24.11.1".
	Version string `lua:"version" validate:"omitempty,release_version"`
	// Device is the default device identifier.
	Device string `lua:"device" validate:"omitempty,krux_device"`
	// Baudrate is the serial speed passed to the programmer.
	Baudrate int `lua:"baudrate" validate:"gt=0"`
	// Port overrides serial port discovery when set.
	Port string `lua:"port"`
	// Tool is the programmer executable name or path.
	Tool string `lua:"tool" validate:"notblank"`

	ReleaseBaseURL string `lua:"release_base_url" validate:"http_url"`
	PubkeyURL      string `lua:"pubkey_url" validate:"http_url"`

	// CompletionDelay is the pause after a download's final status.
	CompletionDelay time.Duration `lua:"completion_delay" validate:"gte=0s"`

	Timeouts Timeouts `lua:"timeouts"`

	LogLevel string `lua:"log_level" validate:"log_level"`
}

// Timeouts bounds each phase. Zero disables a bound.
type Timeouts struct {
	Download time.Duration `lua:"download" validate:"gte=0s"`
	Stall    time.Duration `lua:"stall" validate:"gte=0s"`
	Device   time.Duration `lua:"device" validate:"gte=0s"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DestDir:         DefaultDestDir(),
		Version:         DefaultVersion,
		Device:          DefaultDevice,
		Baudrate:        flasher.DefaultBaudrate,
		Tool:            DefaultTool,
		ReleaseBaseURL:  release.DefaultBaseURL,
		PubkeyURL:       release.DefaultPublicKeyURL,
		CompletionDelay: release.DefaultCompletionDelay,
		Timeouts: Timeouts{
			Download: DefaultDownloadTimeout,
			Stall:    DefaultStallTimeout,
			Device:   DefaultDeviceTimeout,
		},
		LogLevel: DefaultLogLevel,
	}
}

// DefaultDestDir returns ~/krux, or ./krux when the home directory is unknown.
func DefaultDestDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "krux"
	}
	return filepath.Join(home, "krux")
}

// Validate checks every field and reports the first failure. Version and
// device may be empty; commands that need them report their absence.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Message: err.Error()}
	}
	return newValidationError(fieldErrs[0])
}

// ValidationError represents a config validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return "config validation failed for " + e.Field + ": " + e.Message
	}
	return "config validation failed: " + e.Message
}
