package main

import (
	"fmt"

	"minivcs/internal/repo"

	"github.com/spf13/cobra"
)

func NewCommitCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "commit <message>",
		Short: "Record the staged files as a new commit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withRepo(func(r *repo.Repository) error {
				c, err := r.Commit(args[0])
				if c == nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s (%s)\n",
					e.pal.commit.Sprint(c.ShortID()), c.Message, plural(len(c.Tree), "file"))
				return err
			})
		},
	}
}
