// Package repo is the repository facade: it owns the on-disk layout under
// the control directory and wires the content store, index, commit log, diff
// and checkout engines together behind one handle per command.
package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"minivcs/internal/checkout"
	"minivcs/internal/config"
	"minivcs/internal/diff"
	"minivcs/internal/fsutil"
	"minivcs/internal/history"
	"minivcs/internal/ignore"
	"minivcs/internal/index"
	"minivcs/internal/safe"
	"minivcs/internal/storage"

	verrors "minivcs/internal/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	ControlDir = ".minivcs"
	IndexFile  = "index.json"
	LockFile   = "lock"
	ObjectsDir = "objects"
	DBDir      = "db"
)

// Repository is an open repository. It holds the repository lock until Close.
type Repository struct {
	root     string
	worktree billy.Filesystem
	control  billy.Filesystem
	cfg      *config.Config

	lock  *fsutil.Lock
	db    *badger.DB
	blobs *safe.Safe
	index *index.Index
	log   *history.Log

	differ   *diff.Engine
	checkout *checkout.Engine
	ignore   *ignore.Matcher

	logger       *zap.Logger
	clock        func() time.Time
	invocationID string
}

type Option func(*Repository)

// WithClock sets the commit timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(r *Repository) { r.clock = clock }
}

func WithLogger(logger *zap.Logger) Option {
	return func(r *Repository) { r.logger = logger }
}

// WithInvocationID names the lock holder; a random id is used otherwise.
func WithInvocationID(id string) Option {
	return func(r *Repository) { r.invocationID = id }
}

// Init creates an empty repository at root. The control directory is built
// under a temporary name and renamed into place, so it either appears
// complete or not at all.
func Init(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", verrors.Storage("resolving "+root, err)
	}
	worktree := osfs.New(abs)

	exists, err := fsutil.Exists(worktree, ControlDir)
	if err != nil {
		return "", verrors.Storage("checking for "+ControlDir, err)
	}
	if exists {
		return abs, verrors.ErrAlreadyInitialized
	}

	staging := ControlDir + "-init-" + uuid.NewString()
	if err := populate(worktree, staging); err != nil {
		_ = util.RemoveAll(worktree, staging)
		return "", verrors.Storage("creating repository", err)
	}

	// Another init may have won while the staging directory was built.
	if exists, _ := fsutil.Exists(worktree, ControlDir); exists {
		_ = util.RemoveAll(worktree, staging)
		return abs, verrors.ErrAlreadyInitialized
	}
	if err := worktree.Rename(staging, ControlDir); err != nil {
		_ = util.RemoveAll(worktree, staging)
		return "", verrors.Storage("creating repository", err)
	}
	return abs, nil
}

func populate(worktree billy.Filesystem, dir string) error {
	for _, sub := range []string{ObjectsDir, history.CommitsDir} {
		if err := worktree.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return fmt.Errorf("creating %s: %w", sub, err)
		}
	}

	emptyIndex, err := index.Marshal(nil)
	if err != nil {
		return err
	}
	cfg, err := config.Marshal(config.Default())
	if err != nil {
		return err
	}

	files := []struct {
		name string
		data []byte
	}{
		{IndexFile, emptyIndex},
		{history.HeadFile, nil},
		{config.FileName, cfg},
	}
	for _, f := range files {
		if err := fsutil.WriteFile(worktree, filepath.Join(dir, f.name), f.data); err != nil {
			return err
		}
	}
	return nil
}

// FindRoot returns the nearest directory at or above start that contains a
// control directory.
func FindRoot(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", verrors.Storage("resolving "+start, err)
	}

	for {
		info, err := os.Stat(filepath.Join(dir, ControlDir))
		if err == nil && info.IsDir() {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", verrors.ErrNotInitialized
		}
		dir = parent
	}
}

// Open locks the repository at root and loads its state. The caller must
// Close the repository to release the lock.
func Open(root string, opts ...Option) (_ *Repository, err error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, verrors.Storage("resolving "+root, err)
	}

	r := &Repository{
		root:     abs,
		worktree: osfs.New(abs),
		clock:    time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.invocationID == "" {
		r.invocationID = uuid.NewString()
	}

	info, err := r.worktree.Stat(ControlDir)
	if err != nil || !info.IsDir() {
		return nil, verrors.ErrNotInitialized
	}
	if r.control, err = r.worktree.Chroot(ControlDir); err != nil {
		return nil, verrors.Storage("opening "+ControlDir, err)
	}

	if r.lock, err = fsutil.AcquireLock(r.control, LockFile, r.invocationID); err != nil {
		return nil, verrors.Storage("acquiring repository lock", err)
	}
	defer func() {
		if err != nil {
			r.Close()
		}
	}()

	if r.cfg, err = config.Load(r.control, config.FileName); err != nil {
		return nil, verrors.Storage("loading configuration", err)
	}

	if r.db, err = storage.Open(filepath.Join(abs, ControlDir, DBDir)); err != nil {
		return nil, verrors.Storage("opening metadata database", err)
	}

	objects, err := r.control.Chroot(ObjectsDir)
	if err != nil {
		return nil, verrors.Storage("opening object store", err)
	}
	r.blobs, err = safe.New(objects, r.db, safe.Options{
		CacheSize: r.cfg.Store.CacheSize,
		Compression: safe.CompressionOptions{
			MinSize: r.cfg.Store.CompressMinSize,
			Level:   r.cfg.Store.CompressionLevel,
		},
		Logger: r.logger.Named("safe"),
	})
	if err != nil {
		return nil, verrors.Storage("opening object store", err)
	}

	r.index = index.New(r.worktree, filepath.Join(ControlDir, IndexFile), r.blobs, r.logger.Named("index"))
	if err = r.index.Load(); err != nil {
		return nil, err
	}

	r.log = history.New(r.control, r.db,
		history.WithClock(r.clock),
		history.WithLogger(r.logger.Named("history")))

	r.differ = diff.NewEngine(r.cfg.Diff.ContextLines).WithMaxLCSCells(r.cfg.Diff.MaxLCSCells)
	r.checkout = checkout.New(r.worktree, r.blobs, r.logger.Named("checkout"))

	if r.ignore, err = ignore.Load(r.worktree); err != nil {
		return nil, err
	}

	r.logger.Debug("opened repository",
		zap.String("root", abs),
		zap.Int("ignore_patterns", r.ignore.Len()))
	return r, nil
}

// Close releases the database and the repository lock.
func (r *Repository) Close() error {
	var errs []error
	if r.db != nil {
		if err := r.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing database: %w", err))
		}
		r.db = nil
	}
	if err := r.lock.Release(); err != nil {
		errs = append(errs, fmt.Errorf("releasing lock: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		return verrors.Storage("closing repository", err)
	}
	return nil
}

func (r *Repository) Root() string { return r.root }

func (r *Repository) Config() *config.Config { return r.cfg }
