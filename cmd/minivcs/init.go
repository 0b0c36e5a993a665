package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"minivcs/internal/repo"

	verrors "minivcs/internal/errors"

	"github.com/spf13/cobra"
)

func NewInitCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create an empty repository",
		Long:  `Create the .minivcs control directory in the current directory.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			root, err := repo.Init(e.dir)
			if errors.Is(err, verrors.ErrAlreadyInitialized) {
				e.pal.notice.Fprintln(cmd.OutOrStdout(), "Repository already initialized.")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized empty minivcs repository in %s\n", filepath.Join(root, repo.ControlDir))
			return nil
		},
	}
}
