package transcode

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"mediaagent/internal/config"
	"mediaagent/internal/logging"
	"mediaagent/internal/media/ffprobe"
	"mediaagent/internal/services"
)

// ErrStaleArtifact reports that the input was a temp output left behind by an
// interrupted conversion. The file has been deleted.
var ErrStaleArtifact = errors.New("stale conversion artifact")

// ProbeFunc inspects a media file.
type ProbeFunc func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// Options configures a Converter.
type Options struct {
	FFmpegBinary  string
	FFprobeBinary string
	LowPriority   bool
	VerifyOutput  bool
}

// Option customizes a Converter.
type Option func(*Converter)

// WithRunner replaces the command runner.
func WithRunner(r Runner) Option {
	return func(c *Converter) {
		c.runner = r
	}
}

// WithProbe replaces the ffprobe inspection used for verification.
func WithProbe(p ProbeFunc) Option {
	return func(c *Converter) {
		c.probe = p
	}
}

// Converter runs the primary and fallback ffmpeg profiles.
type Converter struct {
	opts   Options
	runner Runner
	probe  ProbeFunc
	logger *slog.Logger
}

// New constructs a Converter.
func New(opts Options, logger *slog.Logger, options ...Option) *Converter {
	if strings.TrimSpace(opts.FFmpegBinary) == "" {
		opts.FFmpegBinary = "ffmpeg"
	}
	if strings.TrimSpace(opts.FFprobeBinary) == "" {
		opts.FFprobeBinary = "ffprobe"
	}
	c := &Converter{
		opts:   opts,
		runner: CommandRunner{},
		probe:  ffprobe.Inspect,
		logger: logging.NewComponentLogger(logger, "transcode"),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// NewFromConfig builds a Converter from cfg. Low priority scheduling only
// applies on the primary host; remote agents are dedicated converters.
func NewFromConfig(cfg *config.Config, logger *slog.Logger, options ...Option) *Converter {
	return New(Options{
		FFmpegBinary:  cfg.Transcode.FFmpegBinary,
		FFprobeBinary: cfg.Transcode.FFprobeBinary,
		LowPriority:   cfg.Transcode.LowPriority && !cfg.Agent.RemoteAgent,
		VerifyOutput:  cfg.Transcode.VerifyOutput,
	}, logger, options...)
}

// Convert transforms input into output. On success the output is in place and
// the input is removed (unless they are the same path). On failure no temp
// file remains and the input is untouched.
func (c *Converter) Convert(ctx context.Context, input, output string) error {
	input = strings.TrimSpace(input)
	output = strings.TrimSpace(output)
	if input == "" || output == "" {
		return services.Wrap(services.ErrValidation, "transcode", "convert", "input and output paths are required", nil)
	}
	logger := logging.WithContext(ctx, c.logger).With(logging.String("input", input))

	if IsTempArtifact(input) {
		if err := os.Remove(input); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove stale artifact %q: %w", input, err)
		}
		logging.WarnWithContext(logger, "removed stale conversion artifact", "stale_artifact",
			logging.String(logging.FieldErrorHint, "a previous conversion was interrupted"),
			logging.String(logging.FieldImpact, "the original file is converted again on the next scan"),
		)
		return fmt.Errorf("%w: %s", ErrStaleArtifact, input)
	}
	if _, err := os.Stat(input); err != nil {
		return services.Wrap(services.ErrNotFound, "transcode", "stat input", "input file is not readable", err)
	}

	tmp := TempPath(output)
	c.removeTemp(tmp)

	primaryErr := c.run(ctx, PrimaryArgs(input, tmp))
	if primaryErr != nil {
		c.removeTemp(tmp)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Info("primary profile failed, attempting fallback",
			logging.Args(append(logging.DecisionAttrs("remux", "fallback", "primary profile failed"), logging.Error(primaryErr))...)...)
		if fallbackErr := c.run(ctx, RemuxArgs(input, tmp)); fallbackErr != nil {
			c.removeTemp(tmp)
			return services.Wrap(services.ErrExternalTool, "transcode", "convert",
				"both conversion profiles failed", errors.Join(primaryErr, fallbackErr))
		}
		logger.Info("fallback profile succeeded")
	}

	if c.opts.VerifyOutput {
		if err := c.verify(ctx, tmp); err != nil {
			c.removeTemp(tmp)
			return services.Wrap(services.ErrValidation, "transcode", "verify output", "converted file is not playable", err)
		}
	}

	if err := os.Rename(tmp, output); err != nil {
		c.removeTemp(tmp)
		return services.Wrap(services.ErrTransient, "transcode", "finalize output", "failed to move converted file into place", err)
	}
	if input != output {
		if err := os.Remove(input); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logging.WarnWithContext(logger, "original not removed after conversion", "input_cleanup_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "remove the original manually"),
				logging.String(logging.FieldImpact, "both the original and the converted file remain on disk"),
			)
		}
	}
	logger.Info("conversion finalized", logging.String("output", output))
	return nil
}

func (c *Converter) run(ctx context.Context, args []string) error {
	name, full := command(c.opts.FFmpegBinary, c.opts.LowPriority, args)
	c.logger.Debug("running ffmpeg", logging.String("command", name+" "+strings.Join(full, " ")))
	return c.runner.Run(ctx, name, full...)
}

func (c *Converter) verify(ctx context.Context, path string) error {
	result, err := c.probe(ctx, c.opts.FFprobeBinary, path)
	if err != nil {
		return err
	}
	return result.Playable()
}

func (c *Converter) removeTemp(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		c.logger.Debug("temp output not removed", logging.String("path", path), logging.Error(err))
	}
}
