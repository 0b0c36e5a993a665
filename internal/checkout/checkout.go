// Package checkout restores the files recorded in a commit into the working
// tree.
package checkout

import (
	"path/filepath"

	"minivcs/internal/fsutil"
	"minivcs/internal/history"

	verrors "minivcs/internal/errors"

	"github.com/go-git/go-billy/v5"
	"go.uber.org/zap"
)

// BlobReader is the part of the content store checkout needs.
type BlobReader interface {
	Get(hash string) ([]byte, error)
}

type Engine struct {
	worktree billy.Filesystem
	blobs    BlobReader
	logger   *zap.Logger
}

func New(worktree billy.Filesystem, blobs BlobReader, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{worktree: worktree, blobs: blobs, logger: logger}
}

// Checkout writes every file in c's tree over the working copy. Files the
// tree does not mention are left alone, as are HEAD and the index. Every
// blob is read before the first file is touched, so a missing blob aborts
// without modifying the working tree.
func (e *Engine) Checkout(c *history.Commit) ([]string, error) {
	paths := c.Paths()

	contents := make(map[string][]byte, len(paths))
	for _, p := range paths {
		content, err := e.blobs.Get(c.Tree[p])
		if err != nil {
			return nil, verrors.Storage("commit "+c.ShortID()+" references missing content for "+p, err)
		}
		contents[p] = content
	}

	written := make([]string, 0, len(paths))
	for _, p := range paths {
		if err := fsutil.WriteFile(e.worktree, filepath.FromSlash(p), contents[p]); err != nil {
			return written, verrors.Storage("restoring "+p, err)
		}
		written = append(written, p)
	}

	e.logger.Info("checked out commit", zap.String("id", c.ID), zap.Int("files", len(written)))
	return written, nil
}
