package repo

import (
	"fmt"
	"iter"
	"os"
	"path/filepath"

	"minivcs/internal/diff"
	"minivcs/internal/history"
	"minivcs/internal/safe"

	verrors "minivcs/internal/errors"

	"github.com/go-git/go-billy/v5/util"
	"go.uber.org/zap"
)

const (
	MsgNoBase    = "no previous commit found for this path"
	MsgNoChanges = "no changes"
)

// Commit records the staged entries as a new commit on top of HEAD and
// clears the index. With nothing staged it fails with EmptyCommit and
// changes nothing.
func (r *Repository) Commit(message string) (*history.Commit, error) {
	if r.index.Len() == 0 {
		return nil, verrors.ErrEmptyCommit
	}

	parent, err := r.log.HeadID()
	if err != nil {
		return nil, err
	}

	c, err := r.log.Create(r.index.Tree(), message, parent)
	if err != nil {
		return nil, err
	}

	r.index.Clear()
	if err := r.index.Save(); err != nil {
		r.logger.Error("commit recorded but index not cleared",
			zap.String("commit", c.ID), zap.Error(err))
		return c, verrors.Storage(fmt.Sprintf(
			"commit %s recorded and HEAD advanced, but the index could not be cleared; run remove on the staged paths before the next commit",
			c.ShortID()), err)
	}
	return c, nil
}

// Log yields the history newest first.
func (r *Repository) Log() iter.Seq2[*history.Commit, error] {
	return r.log.All()
}

// FileDiff compares one staged path with its newest committed version.
// Base is nil when no commit contains the path.
type FileDiff struct {
	Path   string
	Base   *history.Commit
	Result *diff.Result
}

// Message is the one-line summary shown instead of a diff body, or "".
func (d *FileDiff) Message() string {
	switch {
	case d.Base == nil:
		return MsgNoBase
	case d.Result.Identical():
		return MsgNoChanges
	}
	return ""
}

func (d *FileDiff) Unified() string {
	if d.Result == nil {
		return ""
	}
	return d.Result.Unified("a/"+d.Path, "b/"+d.Path)
}

// Diff compares the staged paths, or the given subset of them, against the
// newest commit containing each. The working copy is the new side; when the
// file is gone from disk the staged content stands in.
func (r *Repository) Diff(paths ...string) ([]*FileDiff, error) {
	var targets []string
	if len(paths) == 0 {
		for _, e := range r.index.Entries() {
			targets = append(targets, e.Path)
		}
	} else {
		for _, arg := range paths {
			p, err := r.normalize(arg)
			if err != nil {
				return nil, err
			}
			staged := r.stagedUnder(p)
			if len(staged) == 0 {
				return nil, verrors.NotStaged(displayPath(p))
			}
			targets = append(targets, staged...)
		}
	}

	diffs := make([]*FileDiff, 0, len(targets))
	for _, p := range targets {
		d, err := r.diffPath(p)
		if err != nil {
			return diffs, err
		}
		diffs = append(diffs, d)
	}
	return diffs, nil
}

func (r *Repository) diffPath(p string) (*FileDiff, error) {
	d := &FileDiff{Path: p}

	base, err := r.log.LatestWith(p)
	if err != nil {
		return nil, err
	}
	if base == nil {
		return d, nil
	}
	d.Base = base

	old, err := r.blobs.Get(base.Tree[p])
	if err != nil {
		return nil, err
	}
	current, err := r.working(p)
	if err != nil {
		return nil, err
	}

	if d.Result, err = r.differ.Diff(old, current); err != nil {
		return nil, err
	}
	return d, nil
}

// working reads the working copy of a staged path, falling back to the
// staged blob when the file no longer exists.
func (r *Repository) working(p string) ([]byte, error) {
	content, err := util.ReadFile(r.worktree, filepath.FromSlash(p))
	if err == nil {
		return content, nil
	}
	if !os.IsNotExist(err) {
		return nil, verrors.Storage("reading "+p, err)
	}

	hash, ok := r.index.Lookup(p)
	if !ok {
		return nil, verrors.FileNotFound(p)
	}
	r.logger.Debug("working file missing, using staged content", zap.String("path", p))
	return r.blobs.Get(hash)
}

// Checkout overlays the tree of the commit ref resolves to onto the working
// directory. HEAD and the index are unchanged.
func (r *Repository) Checkout(ref string) (*history.Commit, []string, error) {
	c, err := r.log.Get(ref)
	if err != nil {
		return nil, nil, err
	}
	written, err := r.checkout.Checkout(c)
	return c, written, err
}

// Report is the outcome of Verify. Problems is empty for a sound repository.
type Report struct {
	Commits  int
	Staged   int
	Blobs    safe.Stats
	Problems []string
}

// Verify checks every commit's id against its content, walks the chain from
// HEAD, and re-hashes every blob referenced from a commit or the index.
func (r *Repository) Verify() (*Report, error) {
	report := &Report{}
	checked := make(map[string]error)

	checkBlob := func(owner, p, hash string) {
		err, seen := checked[hash]
		if !seen {
			err = r.blobs.Verify(hash)
			checked[hash] = err
		}
		if err != nil {
			report.Problems = append(report.Problems, fmt.Sprintf("%s: %s: %v", owner, p, err))
		}
	}

	ids, err := r.log.IDs()
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		c, err := r.log.Load(id)
		if err != nil {
			report.Problems = append(report.Problems, fmt.Sprintf("commit %s: %v", id, err))
			continue
		}
		report.Commits++
		for _, p := range c.Paths() {
			checkBlob("commit "+c.ShortID(), p, c.Tree[p])
		}
	}

	for _, err := range r.log.All() {
		if err != nil {
			report.Problems = append(report.Problems, fmt.Sprintf("history: %v", err))
			break
		}
	}

	for _, e := range r.index.Entries() {
		report.Staged++
		checkBlob("index", e.Path, e.Hash)
	}

	if report.Blobs, err = r.blobs.Stats(); err != nil {
		return nil, err
	}

	r.logger.Info("verified repository",
		zap.Int("commits", report.Commits),
		zap.Int("blobs", report.Blobs.Blobs),
		zap.Int("problems", len(report.Problems)))
	return report, nil
}

// OK reports whether Verify found nothing wrong.
func (rep *Report) OK() bool {
	return len(rep.Problems) == 0
}
