package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/galactic/internal/codec"
	"github.com/roach88/galactic/internal/config"
	"github.com/roach88/galactic/internal/merge"
	"github.com/roach88/galactic/internal/metrics"
)

// ApplyOptions holds flags for the apply command.
type ApplyOptions struct {
	*RootOptions
	Database      string
	Force         bool
	NoRecompute   bool
	ReferenceData bool
	MetricsAddr   string
}

// Issue is one record-level problem reported by apply or validate.
type Issue struct {
	File    string `json:"file,omitempty"`
	Code    string `json:"code"`
	Index   int    `json:"index"`
	OID     string `json:"oid,omitempty"`
	Class   string `json:"class,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func issueOf(e *merge.RecordError) Issue {
	return Issue{
		Code:    string(e.Code),
		Index:   e.Index,
		OID:     e.OID,
		Class:   e.ClassName,
		Field:   e.Field,
		Message: e.Message,
	}
}

func (i Issue) String() string {
	s := fmt.Sprintf("%s record %d", i.Code, i.Index)
	if i.File != "" {
		s = fmt.Sprintf("%s %s[%d]", i.Code, i.File, i.Index)
	}
	if i.OID != "" {
		s += " " + i.OID
	}
	if i.Field != "" {
		s += " (" + i.Field + ")"
	}
	return s + ": " + i.Message
}

// ApplyResult is the outcome of an apply.
type ApplyResult struct {
	Files      []string       `json:"files"`
	Records    int            `json:"records"`
	Counts     map[string]int `json:"counts"`
	Objects    []string       `json:"objects"`
	Deleted    []string       `json:"deleted,omitempty"`
	Recomputed bool           `json:"recomputed"`
	Issues     []Issue        `json:"issues,omitempty"`
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ApplyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "apply <file|dir>...",
		Short: "Merge serialized batches into the repository",
		Long: `Merge one or more batch files into the repository.

Files are JSON or YAML arrays of flat records. Directories are searched
recursively for .json, .yaml, and .yml files. All files are merged as one
batch: a record for an existing object replaces it only when its
mod_datetime is later, unless --force is given.

Exit codes:
  0 - Every record was applied or was up to date
  1 - One or more records were rejected
  2 - Command error (missing files, bad config, database failure)

Examples:
  galactic apply --db ./galactic.db ./batches
  galactic apply --db ./galactic.db --force sc.yaml
  galactic apply --metrics-addr :9102 ./batches`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "apply records regardless of mod_datetime")
	cmd.Flags().BoolVar(&opts.NoRecompute, "no-recompute", false, "skip the parameter recompute")
	cmd.Flags().BoolVar(&opts.ReferenceData, "refdata", false, "apply reference data records too")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")

	return cmd
}

func runApply(opts *ApplyOptions, args []string, cmd *cobra.Command) (err error) {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	s, err := newSession(cmd, opts.RootOptions, func(c *config.Config) {
		if opts.Database != "" {
			c.Database = opts.Database
		}
		if opts.MetricsAddr != "" {
			c.MetricsAddr = opts.MetricsAddr
		}
		c.IncludeReferenceData = c.IncludeReferenceData || opts.ReferenceData
	})
	if err != nil {
		return err
	}

	files, err := ExpandBatchPaths(args)
	if err != nil {
		return loadFailure(formatter, err)
	}
	formatter.VerboseLog("Reading %d batch file(s)", len(files))

	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	if s.cfg.MetricsAddr != "" {
		_, stop, err := serveMetrics(ctx, s.cfg.MetricsAddr, s.registry, s.logger)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to start metrics server", err)
		}
		defer stop()
	}

	recs, err := codec.ReadBatchFiles(ctx, files)
	if err != nil {
		_ = formatter.Error(ErrCodeReadFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read batch", err)
	}

	ws, err := s.open(ctx)
	if err != nil {
		return err
	}
	defer s.closeWorkspace(ws, &err)

	res, err := ws.Apply(ctx, recs, merge.Options{
		IncludeReferenceData: s.cfg.IncludeReferenceData,
		ForceUpdate:          opts.Force,
		SuppressRecompute:    opts.NoRecompute,
	})
	if err != nil {
		_ = formatter.Error(ErrCodeWorkspace, err.Error(), nil)
		return WrapExitError(ExitCommandError, "apply failed", err)
	}

	result := ApplyResult{
		Files:      files,
		Records:    len(recs),
		Counts:     res.Counts(),
		Objects:    res.Touched(),
		Deleted:    res.Deleted,
		Recomputed: res.Recomputed,
	}
	for _, issue := range res.Issues {
		result.Issues = append(result.Issues, issueOf(issue))
	}

	text := func(w io.Writer) { writeApplyText(w, result, opts.Verbose) }
	if n := result.Counts["error"]; n > 0 {
		return formatter.Fail(ExitFailure, ErrCodeApplyIssues, fmt.Sprintf("%d record(s) rejected", n), result, text)
	}
	return formatter.Render(result, text)
}

func writeApplyText(w io.Writer, r ApplyResult, verbose bool) {
	fmt.Fprintf(w, "Applied %d record(s) from %d file(s)\n", r.Records, len(r.Files))
	c := r.Counts
	fmt.Fprintf(w, "  new: %d  modified: %d  unmodified: %d  error: %d  ignored: %d\n",
		c["new"], c["modified"], c["unmodified"], c["error"], c["ignored"])
	if len(r.Deleted) > 0 {
		fmt.Fprintf(w, "  deleted: %d\n", len(r.Deleted))
	}
	if r.Recomputed {
		fmt.Fprintln(w, "  parameters recomputed")
	}
	for _, issue := range r.Issues {
		if !verbose && (issue.Code == string(merge.ErrCodeStale) || issue.Code == string(merge.ErrCodeDecodeFallback)) {
			continue
		}
		fmt.Fprintf(w, "  ✗ %s\n", issue)
	}
}

// loadFailure reports a path expansion error.
func loadFailure(formatter *OutputFormatter, err error) error {
	code := ErrCodeGeneric
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		code = loadErr.Code
	}
	_ = formatter.Error(code, err.Error(), nil)
	return WrapExitError(ExitCommandError, "failed to find batch files", err)
}

// serveMetrics serves the registry at /metrics on addr until stop is
// called or ctx ends. The listener is bound before returning so address
// errors surface immediately; the bound address is returned.
func serveMetrics(ctx context.Context, addr string, g prometheus.Gatherer, logger *slog.Logger) (bound net.Addr, stop func(), err error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(g))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	ctx, cancel := context.WithCancel(ctx)
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		return srv.Shutdown(shutdownCtx)
	})
	logger.Info("serving metrics", "addr", ln.Addr().String())

	return ln.Addr(), func() {
		cancel()
		if err := group.Wait(); err != nil {
			logger.Warn("metrics server", "error", err)
		}
	}, nil
}
