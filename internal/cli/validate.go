package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/galactic/internal/codec"
	"github.com/roach88/galactic/internal/ir"
	"github.com/roach88/galactic/internal/merge"
	"github.com/roach88/galactic/internal/workspace"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool    `json:"valid"`
	Files    int     `json:"files"`
	Records  int     `json:"records"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file|dir>...",
		Short: "Check batch files without touching the repository",
		Long: `Check that batch files decode and would merge cleanly.

The files are merged, as one batch, into an empty in-memory repository
using the configured class definitions. Records that would be rejected
are errors; decode fallbacks are warnings. Each problem names the file
and the record's position in it.

Exit codes:
  0 - Every record is valid
  1 - One or more records would be rejected
  2 - Command error (missing files, undecodable batch)`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

// span locates the records of one file within the merged batch.
type span struct {
	file  string
	start int
}

func runValidate(opts *RootOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	s, err := newSession(cmd, opts, nil)
	if err != nil {
		return err
	}

	files, err := ExpandBatchPaths(args)
	if err != nil {
		return loadFailure(formatter, err)
	}

	var (
		recs  []ir.Record
		spans []span
	)
	for _, path := range files {
		batch, err := codec.ReadBatchFile(path)
		if err != nil {
			_ = formatter.Error(ErrCodeReadFailed, err.Error(), map[string]string{"file": path})
			return WrapExitError(ExitCommandError, "failed to read batch", err)
		}
		formatter.VerboseLog("%s: %d record(s)", path, len(batch))
		spans = append(spans, span{file: path, start: len(recs)})
		recs = append(recs, batch...)
	}

	issues, err := dryRun(commandContext(cmd), s, recs)
	if err != nil {
		return err
	}

	result := ValidationResult{Valid: true, Files: len(files), Records: len(recs)}
	for _, e := range issues {
		issue := issueOf(e)
		issue.File, issue.Index = locate(spans, e.Index)
		switch e.Code {
		case merge.ErrCodeDecodeFallback:
			result.Warnings = append(result.Warnings, issue)
		case merge.ErrCodeStale:
			// an empty repository only sees these for duplicate oids
			result.Warnings = append(result.Warnings, issue)
		default:
			result.Errors = append(result.Errors, issue)
			result.Valid = false
		}
	}

	text := func(w io.Writer) {
		for _, issue := range result.Errors {
			fmt.Fprintf(w, "✗ %s\n", issue)
		}
		for _, issue := range result.Warnings {
			fmt.Fprintf(w, "! %s\n", issue)
		}
		if result.Valid {
			fmt.Fprintf(w, "✓ All batches valid (%d record(s) in %d file(s))\n", result.Records, result.Files)
		}
	}
	if !result.Valid {
		return formatter.Fail(ExitFailure, ErrCodeInvalidBatch,
			fmt.Sprintf("%d invalid record(s)", len(result.Errors)), result, text)
	}
	return formatter.Render(result, text)
}

// dryRun merges recs into a throwaway in-memory repository.
func dryRun(ctx context.Context, s *session, recs []ir.Record) ([]*merge.RecordError, error) {
	cfg := s.workspaceConfig()
	cfg.Database = ":memory:"
	cfg.Metrics = nil
	cfg.Logger = slog.New(slog.DiscardHandler)
	ws, err := workspace.Open(ctx, cfg)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open scratch repository", err)
	}
	defer ws.Close()

	res, err := ws.Apply(ctx, recs, merge.Options{IncludeReferenceData: true, SuppressRecompute: true})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "dry run failed", err)
	}
	return res.Issues, nil
}

// locate maps a position in the merged batch back to its file.
func locate(spans []span, index int) (string, int) {
	for i := len(spans) - 1; i >= 0; i-- {
		if index >= spans[i].start {
			return spans[i].file, index - spans[i].start
		}
	}
	return "", index
}
