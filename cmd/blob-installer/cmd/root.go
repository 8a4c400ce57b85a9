package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/oshokin/blob-installer/internal/config"
	"github.com/oshokin/blob-installer/internal/logger"
	"github.com/oshokin/blob-installer/internal/service/installer"
	"github.com/oshokin/blob-installer/internal/version"
)

var (
	// configPath to the optional settings YAML file.
	configPath string
	// flagValues receives command line values; only changed flags are applied.
	flagValues = config.Default()

	// rootCmd downloads, verifies and installs the blob archive.
	rootCmd = &cobra.Command{
		Use:   "blob-installer",
		Short: "Download, verify and install a blob archive",
		Long: `Fetches an archive from a web server, an S3 bucket or a local directory,
verifies its checksum, unpacks it and installs the payload subtree into the
install location.

Settings are taken from compiled-in defaults, then the settings file, then the
environment (` + config.EnvInstallLocation + `, ` + config.EnvBaseURL + `, a .env file is
honoured), and finally the command line.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return config.LoadDotEnv()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}

			if err = logger.ApplyLevel(cfg.LogLevel, cfg.Verbose); err != nil {
				return err
			}

			_, err = installer.Run(ctx, &installer.Options{
				Config:   cfg,
				Progress: cmd.ErrOrStderr(),
			})
			if err != nil {
				return loggedError{err}
			}

			return nil
		},
	}
)

// loggedError marks errors the installer has already reported.
type loggedError struct {
	error
}

func (e loggedError) Unwrap() error {
	return e.error
}

// Execute runs the blob-installer CLI and exits with the status derived from the outcome.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	err := rootCmd.ExecuteContext(context.Background())
	if err != nil && !errors.As(err, new(loggedError)) {
		logger.Errorf(context.Background(), "%v", err)
	}

	logger.Sync()
	os.Exit(installer.ExitCode(err))
}

// resolveConfig layers defaults, settings file, environment and changed flags.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()

	return config.Resolve(config.Sources{
		File: configPath,
		Flags: func(cfg *config.Config) {
			applyChangedFlags(flags, flagValues, cfg)
		},
	})
}

// applyChangedFlags copies the explicitly set flags from values into cfg.
func applyChangedFlags(flags *pflag.FlagSet, values, cfg *config.Config) {
	setters := map[string]func(){
		"install-location": func() { cfg.InstallLocation = values.InstallLocation },
		"base-url":         func() { cfg.BaseURL = values.BaseURL },
		"filename":         func() { cfg.Filename = values.Filename },
		"checksum":         func() { cfg.Checksum = values.Checksum },
		"checksum-type":    func() { cfg.ChecksumType = values.ChecksumType },
		"buffer-size":      func() { cfg.BufferSize = values.BufferSize },
		"payload-path":     func() { cfg.PayloadPath = values.PayloadPath },
		"temp-dir":         func() { cfg.TempDir = values.TempDir },
		"timeout":          func() { cfg.Timeout = values.Timeout },
		"rate-limit":       func() { cfg.RateLimit = values.RateLimit },
		"metrics-file":     func() { cfg.MetricsFile = values.MetricsFile },
		"keep":             func() { cfg.Keep = values.Keep },
		"strict":           func() { cfg.Strict = values.Strict },
		"verbose":          func() { cfg.Verbose = values.Verbose },
		"log-level":        func() { cfg.LogLevel = values.LogLevel },
	}

	flags.Visit(func(flag *pflag.Flag) {
		if set, ok := setters[flag.Name]; ok {
			set()
		}
	})
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	registerFlags(rootCmd.PersistentFlags(), flagValues)

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"path to the settings file (default "+config.DefaultConfigFilename+" when present)")

	rootCmd.AddCommand(configCmd)
}

// registerFlags binds every setting flag to values.
func registerFlags(flags *pflag.FlagSet, values *config.Config) {
	flags.StringVarP(&values.InstallLocation, "install-location", "i", values.InstallLocation, "final destination directory")
	flags.IntVar(&values.BufferSize, "buffer-size", values.BufferSize, "transfer and checksum chunk size in bytes")
	flags.StringVarP(&values.BaseURL, "base-url", "b", values.BaseURL,
		"http(s) URL, s3://bucket/prefix or local directory holding the archive")
	flags.StringVarP(&values.Filename, "filename", "f", values.Filename, "archive filename")
	flags.StringVarP(&values.Checksum, "checksum", "c", values.Checksum, "expected digest, empty disables validation")
	flags.StringVarP(&values.ChecksumType, "checksum-type", "t", values.ChecksumType, "digest algorithm")
	flags.BoolVarP(&values.Keep, "keep", "k", values.Keep, "merge into the destination instead of replacing it")
	flags.BoolVarP(&values.Verbose, "verbose", "v", values.Verbose, "debug logging and a progress line")
	flags.StringVar(&values.LogLevel, "log-level", values.LogLevel, "log level: debug, info, warn or error")
	flags.StringVar(&values.PayloadPath, "payload-path", values.PayloadPath, "payload subtree inside the archive")
	flags.StringVar(&values.TempDir, "temp-dir", values.TempDir, "parent of the workspace and run marker (default OS temp)")
	flags.DurationVar(&values.Timeout, "timeout", values.Timeout, "remote request timeout, 0 disables it")
	flags.Int64Var(&values.RateLimit, "rate-limit", values.RateLimit, "transfer cap in bytes per second, 0 disables it")
	flags.StringVar(&values.MetricsFile, "metrics-file", values.MetricsFile, "write a Prometheus textfile here after the run")
	flags.BoolVar(&values.Strict, "strict", values.Strict,
		"exit with a nonzero status on checksum mismatch or install failure")
}
