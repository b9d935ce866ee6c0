package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/galactic/internal/config"
	"github.com/roach88/galactic/internal/schema"
)

// ClassesOptions holds flags for the classes command.
type ClassesOptions struct {
	*RootOptions
	ClassesDir string
}

// ClassInfo describes one registered class.
type ClassInfo struct {
	Name     string   `json:"name"`
	Base     string   `json:"base,omitempty"`
	Abstract bool     `json:"abstract,omitempty"`
	Valued   bool     `json:"valued,omitempty"`
	Rank     int      `json:"rank"`
	Fields   []string `json:"fields"`
}

// NewClassesCommand creates the classes command.
func NewClassesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ClassesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "classes",
		Short: "List the registered classes",
		Long: `Compile the class definitions and list every class with its base
class and apply rank. With --classes, the CUE package in that directory is
unified with the built-in definitions first, so this doubles as a check of
extra class files.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClasses(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ClassesDir, "classes", "", "directory of extra CUE class definitions")

	return cmd
}

func runClasses(opts *ClassesOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	s, err := newSession(cmd, opts.RootOptions, func(c *config.Config) {
		if opts.ClassesDir != "" {
			c.ClassesDir = opts.ClassesDir
		}
	})
	if err != nil {
		return err
	}

	var reg *schema.Registry
	if s.cfg.ClassesDir == "" {
		reg, err = schema.Default()
	} else {
		formatter.VerboseLog("Loading classes from %s", s.cfg.ClassesDir)
		reg, err = schema.LoadDir(s.cfg.ClassesDir)
	}
	if err != nil {
		_ = formatter.Error(ErrCodeSchema, err.Error(), nil)
		return WrapExitError(ExitFailure, "class definitions failed to compile", err)
	}

	classes := classInfos(reg)
	return formatter.Render(classes, func(w io.Writer) {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "CLASS\tBASE\tRANK\tFIELDS")
		for _, c := range classes {
			name := c.Name
			if c.Abstract {
				name += " (abstract)"
			}
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", name, c.Base, c.Rank, len(c.Fields))
		}
		_ = tw.Flush()
	})
}

func classInfos(reg *schema.Registry) []ClassInfo {
	names := reg.Names()
	out := make([]ClassInfo, 0, len(names))
	for _, name := range names {
		c, ok := reg.Class(name)
		if !ok {
			continue
		}
		info := ClassInfo{
			Name:     c.Name,
			Base:     c.Base,
			Abstract: c.Abstract,
			Valued:   c.Valued,
			Rank:     reg.Rank(name),
			Fields:   make([]string, 0, len(c.Fields)),
		}
		for _, f := range c.Fields {
			info.Fields = append(info.Fields, f.Name)
		}
		out = append(out, info)
	}
	return out
}
