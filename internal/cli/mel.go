package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/galactic/internal/config"
	"github.com/roach88/galactic/internal/mel"
)

// MELOptions holds flags for the mel command.
type MELOptions struct {
	*RootOptions
	Database string
	Context  string
	Schema   string
}

// NewMELCommand creates the mel command.
func NewMELCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MELOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "mel",
		Short: "Reconcile the MEL view of a system or project",
		Long: `Bring the Master Equipment List view of a system or project up to
date with its assembly tree, then save it.

Rows keep their oids across runs: a row is reused while the usage it
shows still exists, and removed when it no longer does. Usages of the
same component under one assembly are shown as a single row.

Examples:
  galactic mel --db ./galactic.db --context test:sc
  galactic mel --context test:project --schema MEL --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMEL(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().StringVar(&opts.Context, "context", "", "oid of the system or project (required)")
	cmd.Flags().StringVar(&opts.Schema, "schema", "", "view schema name (default from config)")
	_ = cmd.MarkFlagRequired("context")

	return cmd
}

func runMEL(opts *MELOptions, cmd *cobra.Command) (err error) {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	s, err := newSession(cmd, opts.RootOptions, func(c *config.Config) {
		if opts.Database != "" {
			c.Database = opts.Database
		}
		if opts.Schema != "" {
			c.DefaultSchema = opts.Schema
		}
	})
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	ws, err := s.open(ctx)
	if err != nil {
		return err
	}
	defer s.closeWorkspace(ws, &err)

	rep, err := ws.RecomputeMEL(ctx, opts.Context, mel.Options{SchemaName: s.cfg.DefaultSchema})
	if err != nil {
		return WrapExitError(ExitCommandError, "reconcile failed", err)
	}
	if rep.Kind == "" {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("%s is not a system or project in the repository", opts.Context), nil)
		return NewExitError(ExitFailure, "nothing to reconcile")
	}
	if err := ws.Save(ctx); err != nil {
		_ = formatter.Error(ErrCodeWorkspace, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to save view", err)
	}

	return formatter.Render(rep, func(w io.Writer) { writeMELText(w, rep) })
}

func writeMELText(w io.Writer, rep *mel.Report) {
	fmt.Fprintf(w, "MEL of %s (%s): %d row(s), %d created, %d reused, %d purged\n",
		rep.Context, rep.Kind, len(rep.Rows), rep.Created, rep.Reused, rep.Purged)
	for _, row := range rep.Rows {
		indent := strings.Repeat("  ", row.Level)
		fmt.Fprintf(w, "%s%s  x%d  %g kg\n", indent, row.Name, row.Quantity, row.MassCBE)
	}
}
