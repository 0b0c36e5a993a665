package main

import (
	"fmt"
	"io"
	"time"

	"minivcs/internal/repo"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func NewStatusCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show staged, untracked and ignored files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			showIgnored, _ := cmd.Flags().GetBool("ignored")
			watch, _ := cmd.Flags().GetBool("watch")
			debounce, _ := cmd.Flags().GetDuration("debounce")

			render := func() error {
				return e.withRepo(func(r *repo.Repository) error {
					st, err := r.Status()
					if err != nil {
						return err
					}
					e.printStatus(cmd.OutOrStdout(), st, showIgnored)
					return nil
				})
			}

			if !watch {
				return render()
			}
			return e.watchStatus(cmd, render, debounce)
		},
	}

	cmd.Flags().Bool("ignored", false, "Also list files matched by .minivcsignore")
	cmd.Flags().Bool("watch", false, "Redraw whenever the working tree changes")
	cmd.Flags().Duration("debounce", 300*time.Millisecond, "Debounce window for --watch")
	return cmd
}

func (e *env) printStatus(w io.Writer, st *repo.Status, showIgnored bool) {
	section := func(title string, paths []string, c *color.Color) {
		if len(paths) == 0 {
			return
		}
		e.pal.header.Fprintf(w, "%s:\n", title)
		for _, p := range paths {
			fmt.Fprintf(w, "  %s\n", c.Sprint(p))
		}
	}

	section("Staged", st.Staged, e.pal.added)
	section("Untracked", st.Untracked, e.pal.untracked)
	if showIgnored {
		section("Ignored", st.Ignored, e.pal.ignored)
	}

	if len(st.Staged) == 0 && len(st.Untracked) == 0 && (!showIgnored || len(st.Ignored) == 0) {
		fmt.Fprintln(w, "Nothing staged, no untracked files.")
	}
}
