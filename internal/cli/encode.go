package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/galactic/internal/codec"
	"github.com/roach88/galactic/internal/config"
	"github.com/roach88/galactic/internal/ir"
)

// EncodeOptions holds flags for the encode command.
type EncodeOptions struct {
	*RootOptions
	Database      string
	OIDs          []string
	Components    bool
	SubActivities bool
	ReferenceData bool
	Inverse       bool
	Out           string
	YAML          bool
}

// EncodeResult is reported when the batch goes to a file.
type EncodeResult struct {
	Path    string   `json:"path"`
	Format  string   `json:"format"`
	Records int      `json:"records"`
	OIDs    []string `json:"oids"`
}

// NewEncodeCommand creates the encode command.
func NewEncodeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EncodeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Serialize objects into a batch",
		Long: `Serialize objects and what they cascade to into a batch.

Products always bring their ports and internal flows. With --components
their usage links and components follow, one level deep; with
--subactivities activities bring their sub-activities. Without --oid every
object in the repository is encoded.

The batch is written to --out, or to stdout. The format follows the
extension of --out, or --yaml.

Examples:
  galactic encode --db ./galactic.db --oid test:sc --components
  galactic encode --oid test:sc --oid test:bus --out sc.yaml
  galactic encode --yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEncode(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().StringArrayVar(&opts.OIDs, "oid", nil, "oid to encode (repeatable; default all)")
	cmd.Flags().BoolVar(&opts.Components, "components", false, "include usage links and components")
	cmd.Flags().BoolVar(&opts.SubActivities, "subactivities", false, "include sub-activities")
	cmd.Flags().BoolVar(&opts.ReferenceData, "refdata", false, "keep reference data records")
	cmd.Flags().BoolVar(&opts.Inverse, "inverse", false, "include inverse fields")
	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&opts.YAML, "yaml", false, "write YAML instead of JSON")

	return cmd
}

func runEncode(opts *EncodeOptions, cmd *cobra.Command) (err error) {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	s, err := newSession(cmd, opts.RootOptions, func(c *config.Config) {
		if opts.Database != "" {
			c.Database = opts.Database
		}
		c.IncludeReferenceData = c.IncludeReferenceData || opts.ReferenceData
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

	codecOpts := codec.Options{
		IncludeComponents:    opts.Components,
		IncludeSubActivities: opts.SubActivities,
		IncludeReferenceData: s.cfg.IncludeReferenceData,
		IncludeInverseFields: opts.Inverse,
	}
	var recs []ir.Record
	if len(opts.OIDs) == 0 {
		recs, err = ws.EncodeAll(ctx, codecOpts)
	} else {
		for _, oid := range opts.OIDs {
			if _, ok := ws.Get(oid); !ok {
				s.logger.Warn("unknown oid", "oid", oid)
			}
		}
		recs, err = ws.Encode(ctx, opts.OIDs, codecOpts)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "encode failed", err)
	}

	format := codec.FormatJSON
	switch {
	case opts.YAML:
		format = codec.FormatYAML
	case opts.Out != "":
		format = codec.FormatFromPath(opts.Out)
	}

	if opts.Out == "" {
		if err := codec.WriteBatch(cmd.OutOrStdout(), recs, format); err != nil {
			return WrapExitError(ExitCommandError, "failed to write batch", err)
		}
		return nil
	}

	if err := writeBatchFile(opts.Out, recs, format); err != nil {
		_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to write batch", err)
	}
	result := EncodeResult{Path: opts.Out, Format: string(format), Records: len(recs), OIDs: make([]string, 0, len(recs))}
	for _, rec := range recs {
		result.OIDs = append(result.OIDs, rec.OID)
	}
	return formatter.Render(result, func(w io.Writer) {
		fmt.Fprintf(w, "Encoded %d record(s) to %s\n", result.Records, result.Path)
	})
}

func writeBatchFile(path string, recs []ir.Record, format codec.Format) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return codec.WriteBatch(f, recs, format)
}
