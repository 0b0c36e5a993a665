package main

import (
	"fmt"
	"time"

	"minivcs/internal/repo"

	"github.com/spf13/cobra"
)

func NewLogCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show commit history, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			oneline, _ := cmd.Flags().GetBool("oneline")
			w := cmd.OutOrStdout()

			return e.withRepo(func(r *repo.Repository) error {
				n := 0
				for c, err := range r.Log() {
					if err != nil {
						return err
					}
					n++

					if oneline {
						fmt.Fprintf(w, "%s %s\n", e.pal.commit.Sprint(c.ShortID()), c.Message)
						continue
					}
					if n > 1 {
						fmt.Fprintln(w)
					}
					e.pal.commit.Fprintf(w, "commit %s\n", c.ID)
					fmt.Fprintf(w, "Date:   %s\n\n", c.Timestamp.Local().Format(time.RFC1123Z))
					fmt.Fprintf(w, "    %s\n\n", c.Message)
					for _, p := range c.Paths() {
						fmt.Fprintf(w, "    %s\n", p)
					}
				}
				if n == 0 {
					fmt.Fprintln(w, "No commits yet.")
				}
				return nil
			})
		},
	}

	cmd.Flags().Bool("oneline", false, "Show one line per commit")
	return cmd
}
