// Package history is the commit log: an append-only set of content-addressed
// commits chained through parent ids, plus the HEAD pointer.
package history

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"time"

	"minivcs/internal/fsutil"
	"minivcs/internal/storage"

	verrors "minivcs/internal/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"go.uber.org/zap"
)

const (
	HeadFile   = "HEAD"
	CommitsDir = "commits"
	commitFile = "commit.json"
	idLength   = 64
)

// Log reads and appends commits under a control directory.
type Log struct {
	fs     billy.Filesystem // control directory
	ids    *storage.BadgerStore
	clock  func() time.Time
	logger *zap.Logger
}

type Option func(*Log)

// WithClock pins the timestamp source, which makes ids reproducible.
func WithClock(clock func() time.Time) Option {
	return func(l *Log) { l.clock = clock }
}

func WithLogger(logger *zap.Logger) Option {
	return func(l *Log) { l.logger = logger }
}

func New(fs billy.Filesystem, db *badger.DB, opts ...Option) *Log {
	l := &Log{
		fs:     fs,
		ids:    storage.NewBadgerStore(db, "commit"),
		clock:  time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// HeadID returns the current head id, or "" before the first commit.
func (l *Log) HeadID() (string, error) {
	data, err := util.ReadFile(l.fs, HeadFile)
	if err != nil {
		if os.IsNotExist(err) {
			return "", verrors.ErrNotInitialized
		}
		return "", verrors.Storage("reading HEAD", err)
	}

	id := strings.TrimSpace(string(data))
	if id != "" && !isFullID(id) {
		return "", verrors.Storage("HEAD is malformed", fmt.Errorf("%q is not a commit id", id))
	}
	return id, nil
}

// Head returns the current head commit, or nil before the first commit.
func (l *Log) Head() (*Commit, error) {
	id, err := l.HeadID()
	if err != nil || id == "" {
		return nil, err
	}
	return l.load(id, true)
}

// Create records a commit of tree on top of parent and advances HEAD to it.
// parent must be the head the caller observed; if HEAD has moved since, the
// commit is refused with StaleHead and nothing the caller staged is lost.
func (l *Log) Create(tree map[string]string, message, parent string) (*Commit, error) {
	if len(tree) == 0 {
		return nil, verrors.ErrEmptyCommit
	}

	head, err := l.HeadID()
	if err != nil {
		return nil, err
	}
	if head != parent {
		return nil, verrors.StaleHead(parent, head)
	}

	snapshot := make(map[string]string, len(tree))
	for p, h := range tree {
		snapshot[p] = h
	}

	c := &Commit{
		Parent:    parent,
		Timestamp: l.clock().UTC(),
		Message:   message,
		Tree:      snapshot,
	}
	c.ID = ComputeID(c.Parent, c.Timestamp, c.Message, c.Tree)

	if err := l.write(c); err != nil {
		return nil, err
	}

	// Re-check right before the swap; a commit written above and then
	// refused is unreferenced and harmless.
	head, err = l.HeadID()
	if err != nil {
		return nil, err
	}
	if head != parent {
		return nil, verrors.StaleHead(parent, head)
	}
	if err := fsutil.WriteFile(l.fs, HeadFile, []byte(c.ID+"\n")); err != nil {
		return nil, verrors.Storage("advancing HEAD", err)
	}

	l.remember(c)
	l.logger.Info("created commit",
		zap.String("id", c.ID),
		zap.String("parent", c.Parent),
		zap.Int("paths", len(c.Tree)))

	return c, nil
}

func (l *Log) write(c *Commit) error {
	name := commitPath(c.ID)
	exists, err := fsutil.Exists(l.fs, name)
	if err != nil {
		return verrors.Storage("checking commit", err)
	}
	if exists {
		return nil
	}

	data, err := json.MarshalIndent(c, "", "    ")
	if err != nil {
		return verrors.Storage("encoding commit", err)
	}
	if err := fsutil.WriteFile(l.fs, name, data); err != nil {
		return verrors.Storage("writing commit", err)
	}
	return nil
}

// remember records c in the id index. The commit files stay authoritative,
// so a failure here only costs a directory scan on the next prefix lookup.
func (l *Log) remember(c *Commit) {
	err := l.ids.Put(&summary{
		ID:        c.ID,
		Parent:    c.Parent,
		Timestamp: c.Timestamp,
		Message:   c.Message,
	})
	if err != nil {
		l.logger.Warn("indexing commit", zap.String("id", c.ID), zap.Error(err))
	}
}

// Get resolves a full id, an unambiguous hex prefix, or "HEAD".
func (l *Log) Get(ref string) (*Commit, error) {
	ref = strings.ToLower(strings.TrimSpace(ref))

	if ref == "head" {
		c, err := l.Head()
		if err != nil {
			return nil, err
		}
		if c == nil {
			return nil, verrors.CommitNotFound("HEAD")
		}
		return c, nil
	}

	if ref == "" || len(ref) > idLength || !isHex(ref) {
		return nil, verrors.CommitNotFound(ref)
	}
	if len(ref) == idLength {
		return l.load(ref, false)
	}

	ids, err := l.resolve(ref)
	if err != nil {
		return nil, err
	}

	switch len(ids) {
	case 0:
		return nil, verrors.CommitNotFound(ref)
	case 1:
		return l.load(ids[0], false)
	default:
		return nil, verrors.AmbiguousCommitID(ref, len(ids))
	}
}

// resolve returns every commit id starting with prefix. The commit
// directories are authoritative: an id index that lost or never saw some
// commits must not turn an ambiguous prefix into a unique one. Matches the
// index is missing are backfilled.
func (l *Log) resolve(prefix string) ([]string, error) {
	indexed, err := l.ids.IDsWithPrefix(prefix, 0)
	if err != nil {
		return nil, verrors.Storage("scanning commit index", err)
	}

	all, err := l.IDs()
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, id := range all {
		if strings.HasPrefix(id, prefix) {
			ids = append(ids, id)
		}
	}
	if len(ids) > len(indexed) {
		l.backfill(ids)
	}
	return ids, nil
}

func (l *Log) backfill(ids []string) {
	n := 0
	for _, id := range ids {
		known, err := l.ids.Has(id)
		if err != nil || known {
			continue
		}
		if c, err := l.load(id, false); err == nil {
			l.remember(c)
			n++
		}
	}
	if n > 0 {
		l.logger.Debug("commit index backfilled", zap.Int("commits", n))
	}
}

// IDs lists every stored commit id, referenced from HEAD or not.
func (l *Log) IDs() ([]string, error) {
	entries, err := l.fs.ReadDir(CommitsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, verrors.Storage("listing commits", err)
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() && isFullID(e.Name()) {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}

// Load reads the commit stored under the exact id and checks its integrity.
func (l *Log) Load(id string) (*Commit, error) {
	return l.load(id, false)
}

// load reads a commit. referenced marks ids reached through HEAD or a parent
// pointer, for which a missing file is corruption rather than a bad ref.
func (l *Log) load(id string, referenced bool) (*Commit, error) {
	data, err := util.ReadFile(l.fs, commitPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			if referenced {
				return nil, verrors.Storage("history is broken", fmt.Errorf("commit %s is missing", id))
			}
			return nil, verrors.CommitNotFound(id)
		}
		return nil, verrors.Storage("reading commit "+id, err)
	}

	var c Commit
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, verrors.Storage("commit "+id+" is malformed", err)
	}
	if c.Tree == nil {
		c.Tree = map[string]string{}
	}
	if c.ID != id || !c.Verify() {
		return nil, verrors.Storage("commit "+id+" fails verification", fmt.Errorf("content does not hash to its id"))
	}
	return &c, nil
}

// All yields commits newest first by following parent pointers from HEAD.
// Each range over the sequence starts again from the current HEAD.
func (l *Log) All() iter.Seq2[*Commit, error] {
	return func(yield func(*Commit, error) bool) {
		id, err := l.HeadID()
		if err != nil {
			yield(nil, err)
			return
		}

		seen := make(map[string]bool)
		for id != "" {
			if seen[id] {
				yield(nil, verrors.Storage("history is broken", fmt.Errorf("commit %s repeats", id)))
				return
			}
			seen[id] = true

			c, err := l.load(id, true)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(c, nil) {
				return
			}
			id = c.Parent
		}
	}
}

// LatestWith returns the newest commit whose tree contains p, or nil.
func (l *Log) LatestWith(p string) (*Commit, error) {
	for c, err := range l.All() {
		if err != nil {
			return nil, err
		}
		if _, ok := c.Tree[p]; ok {
			return c, nil
		}
	}
	return nil, nil
}

func commitPath(id string) string {
	return filepath.Join(CommitsDir, id, commitFile)
}

func isFullID(s string) bool {
	return len(s) == idLength && isHex(s)
}

func isHex(s string) bool {
	if len(s)%2 == 1 {
		s += "0"
	}
	_, err := hex.DecodeString(s)
	return err == nil && strings.ToLower(s) == s
}
