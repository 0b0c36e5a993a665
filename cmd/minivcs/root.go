package main

import (
	"fmt"
	"path/filepath"

	"minivcs/internal/config"
	"minivcs/internal/logging"
	"minivcs/internal/repo"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"
)

// env carries what every subcommand needs once flags are parsed.
type env struct {
	dir      string
	logLevel string
	color    string

	logger *logging.Logger
	pal    *palette
}

func NewRootCmd() *cobra.Command {
	e := &env{}

	rootCmd := &cobra.Command{
		Use:   "minivcs",
		Short: "A minimal local version control system",
		Long: `minivcs tracks a working directory through a staging index and
immutable, content-addressed commits. It can show what changed since the
last commit and restore files from any earlier commit.`,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: e.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			if e.logger != nil {
				_ = e.logger.Sync()
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&e.dir, "dir", "C", ".", "Run as if started in this directory")
	flags.StringVar(&e.logLevel, "log-level", "", "Log level (debug|info|warn|error)")
	flags.StringVar(&e.color, "color", "", "Color output (auto|always|never)")

	rootCmd.AddCommand(
		NewInitCmd(e),
		NewAddCmd(e),
		NewRemoveCmd(e),
		NewCommitCmd(e),
		NewLogCmd(e),
		NewStatusCmd(e),
		NewDiffCmd(e),
		NewCheckoutCmd(e),
		NewVerifyCmd(e),
	)
	return rootCmd
}

// setup resolves the working directory and builds the logger and palette.
// Flags win over the repository configuration, which already folds in the
// environment overrides.
func (e *env) setup(cmd *cobra.Command, _ []string) error {
	dir, err := filepath.Abs(e.dir)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", e.dir, err)
	}
	e.dir = dir

	cfg := e.config()
	level := cfg.LogLevel
	if e.logLevel != "" {
		level = e.logLevel
	}
	mode := cfg.Color
	if e.color != "" {
		mode = e.color
	}

	logger, err := logging.NewLogger(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	e.logger = logger.ForInvocation()
	e.pal = newPalette(colorEnabled(mode, cmd.OutOrStdout()))
	return nil
}

// config reads the configuration of the enclosing repository without taking
// the lock. Outside a repository, or when the file is unreadable, defaults
// apply; opening the repository reports the real problem.
func (e *env) config() *config.Config {
	root, err := repo.FindRoot(e.dir)
	if err != nil {
		root = e.dir
	}
	cfg, err := config.Load(osfs.New(filepath.Join(root, repo.ControlDir)), config.FileName)
	if err != nil {
		return config.Default()
	}
	return cfg
}

func (e *env) open() (*repo.Repository, error) {
	root, err := repo.FindRoot(e.dir)
	if err != nil {
		return nil, err
	}
	return repo.Open(root,
		repo.WithLogger(e.logger.Logger),
		repo.WithInvocationID(e.logger.InvocationID))
}

// withRepo runs fn against the open repository and always closes it.
func (e *env) withRepo(fn func(r *repo.Repository) error) (err error) {
	r, err := e.open()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := r.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(r)
}

// paths makes command-line paths absolute against the working directory.
func (e *env) paths(args []string) []string {
	out := make([]string, len(args))
	for i, arg := range args {
		if filepath.IsAbs(arg) {
			out[i] = arg
		} else {
			out[i] = filepath.Join(e.dir, arg)
		}
	}
	return out
}
