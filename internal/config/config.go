package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/blob-installer/internal/checksum"
	"github.com/oshokin/blob-installer/internal/install"
	"github.com/oshokin/blob-installer/internal/transfer"
)

// Config holds everything a single installer run needs.
type Config struct {
	// InstallLocation is the final destination directory.
	InstallLocation string `yaml:"install_location" validate:"required"`
	// BaseURL is a remote URL, an s3:// location or a local directory.
	BaseURL string `yaml:"base_url" validate:"required"`
	// Filename is the archive name appended to BaseURL.
	Filename string `yaml:"filename" validate:"required"`
	// Checksum is the expected digest. Empty disables validation.
	Checksum string `yaml:"checksum"`
	// ChecksumType names the digest algorithm.
	ChecksumType string `yaml:"checksum_type" validate:"required,checksum_algorithm"`
	// BufferSize is the transfer and digest chunk size in bytes.
	BufferSize int `yaml:"buffer_size" validate:"gt=0"`
	// PayloadPath is the payload subtree inside the extracted archive.
	PayloadPath string `yaml:"payload_path" validate:"required"`
	// TempDir is the parent of the workspace and run marker. Empty means the OS default.
	TempDir string `yaml:"temp_dir"`
	// Timeout bounds remote requests. Zero means no timeout.
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
	// RateLimit caps the transfer in bytes per second. Zero means unlimited.
	RateLimit int64 `yaml:"rate_limit" validate:"gte=0"`
	// MetricsFile receives a Prometheus textfile after each run when set.
	MetricsFile string `yaml:"metrics_file"`
	// SupportContact is printed with every failure.
	SupportContact string `yaml:"support_contact"`
	// Keep selects merge mode instead of replace mode.
	Keep bool `yaml:"keep"`
	// Strict turns checksum mismatches and install failures into nonzero exits.
	Strict bool `yaml:"strict"`
	// LogLevel is one of debug, info, warn or error.
	LogLevel string `yaml:"log_level" validate:"required,log_level"`
	// Verbose enables debug logging and the progress line, overriding LogLevel.
	Verbose bool `yaml:"verbose"`
}

const (
	// DefaultConfigFilename is read when present and no --config is given.
	DefaultConfigFilename = "blob-installer.yaml"
	// DefaultInstallLocation is the compiled-in install prefix.
	DefaultInstallLocation = "/usr/share/blobs"
	// DefaultBaseURL is the compiled-in download location.
	DefaultBaseURL = "https://downloads.example.com/blobs/"
	// DefaultFilename is the compiled-in archive name.
	DefaultFilename = "blobs.zip"
	// DefaultLogLevel is used when no level is configured.
	DefaultLogLevel = "info"
	// DefaultSupportContact is shown next to failures.
	DefaultSupportContact = "https://github.com/oshokin/blob-installer/issues"

	// EnvInstallLocation overrides the default install location.
	EnvInstallLocation = "BLOB_INSTALLER_LOCATION"
	// EnvBaseURL overrides the default base URL.
	EnvBaseURL = "BLOB_INSTALLER_BASE_URL"
)

// Default returns the compiled-in configuration.
func Default() *Config {
	return &Config{
		InstallLocation: DefaultInstallLocation,
		BaseURL:         DefaultBaseURL,
		Filename:        DefaultFilename,
		ChecksumType:    checksum.DefaultAlgorithm,
		BufferSize:      transfer.DefaultBufferSize,
		PayloadPath:     install.DefaultPayloadPath,
		SupportContact:  DefaultSupportContact,
		LogLevel:        DefaultLogLevel,
	}
}

// Load reads the YAML file at path on top of cfg. Keys missing from the file
// keep their current values.
func Load(path string, cfg *Config) error {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("read settings: %w", err)
	}

	if err = yaml.Unmarshal(contents, cfg); err != nil {
		return fmt.Errorf("unmarshal settings: %w", err)
	}

	return nil
}

// Write dumps cfg as YAML.
func Write(w io.Writer, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)

	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	return encoder.Close()
}

// ApplyEnv overrides the install location and base URL from the environment.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	if value, ok := lookup(EnvInstallLocation); ok && value != "" {
		cfg.InstallLocation = value
	}

	if value, ok := lookup(EnvBaseURL); ok && value != "" {
		cfg.BaseURL = value
	}
}

// Normalize makes the install location absolute and gives HTTP base URLs a
// trailing slash.
func Normalize(cfg *Config) error {
	if cfg.InstallLocation != "" {
		abs, err := filepath.Abs(cfg.InstallLocation)
		if err != nil {
			return fmt.Errorf("resolve install location: %w", err)
		}

		cfg.InstallLocation = abs
	}

	if strings.HasPrefix(cfg.BaseURL, "http") {
		cfg.BaseURL = transfer.EnsureTrailingSlash(cfg.BaseURL)
	}

	cfg.ChecksumType = strings.ToLower(strings.TrimSpace(cfg.ChecksumType))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))

	return nil
}

// Sources lists the layers Resolve combines.
type Sources struct {
	// File is an explicit settings path. When empty, DefaultConfigFilename is
	// used if it exists.
	File string
	// LookupEnv reads environment variables; os.LookupEnv when nil.
	LookupEnv func(string) (string, bool)
	// Flags applies explicitly set command line values last.
	Flags func(*Config)
}

// Resolve builds the final configuration from src.
func Resolve(src Sources) (*Config, error) {
	cfg := Default()

	path := src.File
	if path == "" {
		if _, err := os.Stat(DefaultConfigFilename); err == nil {
			path = DefaultConfigFilename
		}
	}

	if path != "" {
		if err := Load(path, cfg); err != nil {
			return nil, err
		}
	}

	ApplyEnv(cfg, src.LookupEnv)

	if src.Flags != nil {
		src.Flags(cfg)
	}

	if err := Normalize(cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// errConfigIsNotSet is returned when a nil configuration is provided.
var errConfigIsNotSet = errors.New("configuration is not set")
