package main

import (
	"fmt"

	"minivcs/internal/repo"

	verrors "minivcs/internal/errors"

	"github.com/spf13/cobra"
)

func NewCheckoutCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "checkout <commit>",
		Short: "Restore the files of a commit",
		Long: `Overwrite the working copy of every file recorded in the commit, given
as a full id, a unique id prefix or HEAD. Other files, HEAD and the staging
index are left as they are.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			return e.withRepo(func(r *repo.Repository) error {
				c, written, err := r.Checkout(args[0])
				for _, p := range written {
					fmt.Fprintf(w, "%s %s\n", e.pal.added.Sprint("restored"), p)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "Checked out %s %s (%s)\n",
					e.pal.commit.Sprint(c.ShortID()), c.Message, plural(len(written), "file"))
				return nil
			})
		},
	}
}

func NewVerifyCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check commits and stored content for corruption",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			return e.withRepo(func(r *repo.Repository) error {
				report, err := r.Verify()
				if err != nil {
					return err
				}

				fmt.Fprintf(w, "%s, %s staged, %s (%d bytes, %d stored)\n",
					plural(report.Commits, "commit"), plural(report.Staged, "path"),
					plural(report.Blobs.Blobs, "blob"), report.Blobs.Size, report.Blobs.StoredSize)

				if report.OK() {
					fmt.Fprintln(w, e.pal.added.Sprint("ok"))
					return nil
				}
				for _, p := range report.Problems {
					e.pal.removed.Fprintln(cmd.ErrOrStderr(), p)
				}
				return verrors.Storage("verification failed", fmt.Errorf("%s", plural(len(report.Problems), "problem")))
			})
		},
	}
}
