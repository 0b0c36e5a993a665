package main

import (
	"fmt"
	"io"
	"strings"

	"minivcs/internal/diff"
	"minivcs/internal/repo"

	"github.com/spf13/cobra"
)

func NewDiffCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "diff [path...]",
		Short: "Compare staged files with their last committed version",
		Long: `For each staged file, or the given subset, show a unified diff of the
newest committed version against the working copy.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			return e.withRepo(func(r *repo.Repository) error {
				diffs, err := r.Diff(e.paths(args)...)
				if err != nil {
					return err
				}
				if len(diffs) == 0 {
					fmt.Fprintln(w, "Nothing staged.")
					return nil
				}
				for _, d := range diffs {
					if msg := d.Message(); msg != "" {
						fmt.Fprintf(w, "%s: %s\n", d.Path, e.pal.notice.Sprint(msg))
						continue
					}
					e.printUnified(w, d.Unified())
					if !d.Result.Binary {
						fmt.Fprintln(w, summary(d.Result.Stats))
					}
				}
				return nil
			})
		},
	}
}

func (e *env) printUnified(w io.Writer, text string) {
	for _, line := range strings.SplitAfter(text, "\n") {
		if line == "" {
			continue
		}
		body := strings.TrimSuffix(line, "\n")
		switch {
		case strings.HasPrefix(line, "+++ "), strings.HasPrefix(line, "--- "):
			e.pal.header.Fprintln(w, body)
		case strings.HasPrefix(line, "@@"):
			e.pal.hunk.Fprintln(w, body)
		case strings.HasPrefix(line, "+"):
			e.pal.added.Fprintln(w, body)
		case strings.HasPrefix(line, "-"):
			e.pal.removed.Fprintln(w, body)
		default:
			fmt.Fprintln(w, body)
		}
	}
}

func summary(st diff.Stats) string {
	return fmt.Sprintf("%s(+), %s(-)", plural(st.Additions, "insertion"), plural(st.Deletions, "deletion"))
}
