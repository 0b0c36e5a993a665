package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"minivcs/internal/fsutil"

	verrors "minivcs/internal/errors"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"go.uber.org/zap"
)

// Entry is one staged path and the blob hash of its content.
type Entry struct {
	Path string `json:"path"`
	Hash string `json:"hash"`
}

type indexFile struct {
	Staged []Entry `json:"staged"`
}

// BlobStore is the part of the content store staging needs.
type BlobStore interface {
	Put(content []byte) (string, error)
}

// Index is the staging area: the paths queued for the next commit. Paths are
// repository-relative and slash-separated.
type Index struct {
	worktree billy.Filesystem
	name     string // index file, relative to worktree
	blobs    BlobStore
	entries  map[string]string
	logger   *zap.Logger
}

func New(worktree billy.Filesystem, name string, blobs BlobStore, logger *zap.Logger) *Index {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Index{
		worktree: worktree,
		name:     name,
		blobs:    blobs,
		entries:  make(map[string]string),
		logger:   logger,
	}
}

// Marshal serializes entries in the on-disk format, sorted by path.
func Marshal(entries []Entry) ([]byte, error) {
	if entries == nil {
		entries = []Entry{}
	}
	sorted := append([]Entry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })
	return json.MarshalIndent(indexFile{Staged: sorted}, "", "    ")
}

// Load replaces the in-memory entries with the persisted ones. The index file
// is written by init, so its absence means there is no repository.
func (ix *Index) Load() error {
	data, err := util.ReadFile(ix.worktree, ix.name)
	if err != nil {
		if os.IsNotExist(err) {
			return verrors.ErrNotInitialized
		}
		return verrors.Storage("reading index", err)
	}

	var f indexFile
	if err := json.Unmarshal(data, &f); err != nil {
		return verrors.Storage("index is malformed", err)
	}

	entries := make(map[string]string, len(f.Staged))
	for _, e := range f.Staged {
		if e.Path == "" || e.Hash == "" {
			return verrors.Storage("index is malformed", fmt.Errorf("entry %+v is incomplete", e))
		}
		if _, dup := entries[e.Path]; dup {
			return verrors.Storage("index is malformed", fmt.Errorf("path %s staged twice", e.Path))
		}
		entries[e.Path] = e.Hash
	}

	ix.entries = entries
	ix.logger.Debug("loaded index", zap.Int("entries", len(entries)))
	return nil
}

// Save persists the entries; the previous file stays intact until the
// replacement is complete.
func (ix *Index) Save() error {
	data, err := Marshal(ix.Entries())
	if err != nil {
		return verrors.Storage("encoding index", err)
	}
	if err := fsutil.WriteFile(ix.worktree, ix.name, data); err != nil {
		return verrors.Storage("writing index", err)
	}
	return nil
}

// Stage hashes the working copy of path into the content store and records
// it. Staging unchanged content again returns an AlreadyStaged error and
// leaves the index as it was.
func (ix *Index) Stage(path string) (Entry, error) {
	osPath := filepath.FromSlash(path)

	info, err := ix.worktree.Stat(osPath)
	if err != nil {
		if os.IsNotExist(err) {
			return Entry{}, verrors.FileNotFound(path)
		}
		return Entry{}, verrors.Storage("stat "+path, err)
	}
	if !info.Mode().IsRegular() {
		return Entry{}, verrors.WithPath(verrors.KindFileNotFound, path, "not a regular file")
	}

	content, err := util.ReadFile(ix.worktree, osPath)
	if err != nil {
		return Entry{}, verrors.Storage("reading "+path, err)
	}

	hash, err := ix.blobs.Put(content)
	if err != nil {
		return Entry{}, err
	}

	entry := Entry{Path: path, Hash: hash}
	if prev, ok := ix.entries[path]; ok && prev == hash {
		return entry, verrors.AlreadyStaged(path)
	}

	ix.entries[path] = hash
	ix.logger.Debug("staged", zap.String("path", path), zap.String("hash", hash))
	return entry, nil
}

func (ix *Index) Unstage(path string) error {
	if _, ok := ix.entries[path]; !ok {
		return verrors.NotStaged(path)
	}
	delete(ix.entries, path)
	ix.logger.Debug("unstaged", zap.String("path", path))
	return nil
}

func (ix *Index) Clear() {
	ix.entries = make(map[string]string)
}

func (ix *Index) Lookup(path string) (string, bool) {
	hash, ok := ix.entries[path]
	return hash, ok
}

func (ix *Index) Len() int {
	return len(ix.entries)
}

// Entries returns a snapshot sorted by path.
func (ix *Index) Entries() []Entry {
	entries := make([]Entry, 0, len(ix.entries))
	for path, hash := range ix.entries {
		entries = append(entries, Entry{Path: path, Hash: hash})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries
}

// Tree returns the staged mapping as a fresh map.
func (ix *Index) Tree() map[string]string {
	tree := make(map[string]string, len(ix.entries))
	for path, hash := range ix.entries {
		tree[path] = hash
	}
	return tree
}
