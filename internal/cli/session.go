package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/galactic/internal/config"
	"github.com/roach88/galactic/internal/metrics"
	"github.com/roach88/galactic/internal/workspace"
)

// session is what a command that opens the repository needs: the
// resolved configuration, a logger, and the metrics registry.
type session struct {
	cfg      config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
}

// newLogger writes text logs to w, at debug level when verbose.
func newLogger(opts *RootOptions, w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// newSession loads the config file named by --config, applies override
// to it for command flags, and validates the result.
func newSession(cmd *cobra.Command, opts *RootOptions, override func(*config.Config)) (*session, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil && !config.IsValidationError(err) {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if override != nil {
		override(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid config", err)
	}

	logger := newLogger(opts, cmd.ErrOrStderr())
	reg := prometheus.NewRegistry()
	return &session{
		cfg:      cfg,
		logger:   logger,
		registry: reg,
		metrics:  metrics.New(reg),
	}, nil
}

// workspaceConfig maps the runtime configuration onto a workspace.
func (s *session) workspaceConfig() workspace.Config {
	return workspace.Config{
		Database:           s.cfg.Database,
		ClassesDir:         s.cfg.ClassesDir,
		Owner:              s.cfg.Owner,
		Creator:            s.cfg.Creator,
		DefaultSchema:      s.cfg.DefaultSchema,
		ExtraReferenceOIDs: s.cfg.ExtraReferenceOIDs,
		Logger:             s.logger,
		Metrics:            s.metrics,
	}
}

// open opens the configured repository. The caller closes it.
func (s *session) open(ctx context.Context) (*workspace.Workspace, error) {
	s.logger.Debug("opening repository", "db", s.cfg.Database)
	ws, err := workspace.Open(ctx, s.workspaceConfig())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open repository", err)
	}
	return ws, nil
}

// closeWorkspace closes ws, keeping err when it is already set.
func (s *session) closeWorkspace(ws *workspace.Workspace, err *error) {
	if cerr := ws.Close(); cerr != nil {
		s.logger.Error("error closing repository", "error", cerr)
		*err = errors.Join(*err, WrapExitError(ExitCommandError, "failed to close repository", cerr))
	}
}

// commandContext returns the command's context, or Background when the
// command runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
