package main

import (
	"errors"

	"minivcs/internal/repo"

	"github.com/spf13/cobra"
)

func NewAddCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "add <path>...",
		Short: "Stage files for the next commit",
		Long: `Stage the current content of each path. Directories are staged
recursively, skipping hidden files and paths matched by .minivcsignore.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withRepo(func(r *repo.Repository) error {
				outcomes, err := r.Add(e.paths(args)...)
				return errors.Join(e.reportOutcomes(cmd.OutOrStdout(), outcomes, "staged"), err)
			})
		},
	}
}

func NewRemoveCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <path>...",
		Aliases: []string{"rm"},
		Short:   "Unstage files",
		Long:    `Remove paths from the staging index. Working files are not touched.`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withRepo(func(r *repo.Repository) error {
				outcomes, err := r.Remove(e.paths(args)...)
				return errors.Join(e.reportOutcomes(cmd.OutOrStdout(), outcomes, "unstaged"), err)
			})
		},
	}
}
