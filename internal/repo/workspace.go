package repo

import (
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	verrors "minivcs/internal/errors"

	"github.com/go-git/go-billy/v5/util"
	"go.uber.org/zap"
)

// Outcome is the result of add or remove for one path. Err is nil on
// success; benign kinds such as AlreadyStaged do not count as failures.
type Outcome struct {
	Path string
	Hash string
	Err  error
}

// Failed reports whether o is a real failure rather than a benign no-op.
func (o Outcome) Failed() bool {
	return o.Err != nil && !verrors.IsBenign(o.Err)
}

type Status struct {
	Staged    []string
	Untracked []string
	Ignored   []string
}

// normalize turns an absolute or root-relative path into a clean,
// slash-separated repository path. "" stands for the root itself.
func (r *Repository) normalize(p string) (string, error) {
	rel := p
	if filepath.IsAbs(p) {
		var err error
		if rel, err = filepath.Rel(r.root, p); err != nil {
			return "", verrors.WithPath(verrors.KindFileNotFound, p, "outside the repository")
		}
	}

	rel = filepath.ToSlash(filepath.Clean(rel))
	if rel == "." {
		return "", nil
	}
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", verrors.WithPath(verrors.KindFileNotFound, p, "outside the repository")
	}
	if first, _, _ := strings.Cut(rel, "/"); first == ControlDir {
		return "", verrors.WithPath(verrors.KindFileNotFound, p, "inside the control directory")
	}
	return rel, nil
}

func hidden(p string) bool {
	for _, part := range strings.Split(p, "/") {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

// walk calls fn for every regular file under dir that is not hidden and not
// inside the control directory. dir is a repository path, "" for the root.
func (r *Repository) walk(dir string, fn func(p string) error) error {
	start := "."
	if dir != "" {
		start = filepath.FromSlash(dir)
	}

	err := util.Walk(r.worktree, start, func(name string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}

		p := filepath.ToSlash(filepath.Clean(name))
		if p == "." {
			return nil
		}
		if info.IsDir() {
			if p == ControlDir || strings.HasPrefix(path.Base(p), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() || hidden(p) {
			return nil
		}
		return fn(p)
	})
	if err != nil {
		return verrors.Storage("walking "+start, err)
	}
	return nil
}

// expand resolves a repository path into the files add should stage. A
// directory yields its visible, non-ignored regular files.
func (r *Repository) expand(p string) ([]string, error) {
	if p != "" {
		info, err := r.worktree.Stat(filepath.FromSlash(p))
		if err != nil {
			if os.IsNotExist(err) {
				return nil, verrors.FileNotFound(p)
			}
			return nil, verrors.Storage("stat "+p, err)
		}
		if !info.IsDir() {
			return []string{p}, nil
		}
	}

	var files []string
	err := r.walk(p, func(f string) error {
		if !r.ignore.Match(f, false) {
			files = append(files, f)
		}
		return nil
	})
	return files, err
}

// Add stages each path. Directories are expanded. Per-path failures are
// reported in the outcomes; the returned error is reserved for failures that
// stop the whole operation.
func (r *Repository) Add(paths ...string) ([]Outcome, error) {
	var outcomes []Outcome
	changed := false

	for _, arg := range paths {
		p, err := r.normalize(arg)
		if err != nil {
			outcomes = append(outcomes, Outcome{Path: arg, Err: err})
			continue
		}

		files, err := r.expand(p)
		if err != nil {
			if verrors.KindOf(err) == verrors.KindStorage {
				return outcomes, err
			}
			outcomes = append(outcomes, Outcome{Path: displayPath(p), Err: err})
			continue
		}

		for _, f := range files {
			entry, err := r.index.Stage(f)
			if verrors.KindOf(err) == verrors.KindStorage {
				if changed {
					if saveErr := r.index.Save(); saveErr != nil {
						r.logger.Error("saving index", zap.Error(saveErr))
					}
				}
				return outcomes, err
			}
			if err == nil {
				changed = true
			}
			outcomes = append(outcomes, Outcome{Path: f, Hash: entry.Hash, Err: err})
		}
	}

	if changed {
		if err := r.index.Save(); err != nil {
			return outcomes, err
		}
	}
	return outcomes, nil
}

// Remove unstages each path. A directory unstages every staged path beneath
// it. The working files are never touched.
func (r *Repository) Remove(paths ...string) ([]Outcome, error) {
	var outcomes []Outcome
	changed := false

	for _, arg := range paths {
		p, err := r.normalize(arg)
		if err != nil {
			outcomes = append(outcomes, Outcome{Path: arg, Err: err})
			continue
		}

		targets := r.stagedUnder(p)
		if len(targets) == 0 {
			outcomes = append(outcomes, Outcome{Path: displayPath(p), Err: verrors.NotStaged(displayPath(p))})
			continue
		}
		for _, t := range targets {
			hash, _ := r.index.Lookup(t)
			err := r.index.Unstage(t)
			if err == nil {
				changed = true
			}
			outcomes = append(outcomes, Outcome{Path: t, Hash: hash, Err: err})
		}
	}

	if changed {
		if err := r.index.Save(); err != nil {
			return outcomes, err
		}
	}
	return outcomes, nil
}

// stagedUnder returns p itself if staged, otherwise the staged paths inside
// directory p.
func (r *Repository) stagedUnder(p string) []string {
	if _, ok := r.index.Lookup(p); ok {
		return []string{p}
	}
	var out []string
	for _, e := range r.index.Entries() {
		if p == "" || strings.HasPrefix(e.Path, p+"/") {
			out = append(out, e.Path)
		}
	}
	return out
}

// Status partitions the working tree. Staged paths come from the index and
// are listed even when hidden or missing on disk; every other visible
// regular file is either untracked or ignored.
func (r *Repository) Status() (*Status, error) {
	st := &Status{Staged: []string{}, Untracked: []string{}, Ignored: []string{}}
	for _, e := range r.index.Entries() {
		st.Staged = append(st.Staged, e.Path)
	}

	err := r.walk("", func(p string) error {
		if _, ok := r.index.Lookup(p); ok {
			return nil
		}
		if r.ignore.Match(p, false) {
			st.Ignored = append(st.Ignored, p)
		} else {
			st.Untracked = append(st.Untracked, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(st.Untracked)
	sort.Strings(st.Ignored)
	return st, nil
}

func displayPath(p string) string {
	if p == "" {
		return "."
	}
	return p
}
