// Package safe is the content store: immutable blobs addressed by the SHA-256
// of their uncompressed bytes. A blob, once written, is never rewritten or
// removed, so a hash resolves to the same bytes for the repository's lifetime.
package safe

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"minivcs/internal/fsutil"
	"minivcs/internal/storage"

	verrors "minivcs/internal/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// BlobMeta stores metadata about stored content
type BlobMeta struct {
	Hash       string    `json:"hash"`
	Size       int64     `json:"size"`
	StoredSize int64     `json:"stored_size"`
	Compressed bool      `json:"compressed"`
	StoredAt   time.Time `json:"stored_at"`
}

func (m *BlobMeta) GetID() string { return m.Hash }

// Stats summarizes the store.
type Stats struct {
	Blobs      int
	Size       int64
	StoredSize int64
}

// Safe provides deduplicated content storage
type Safe struct {
	fs     billy.Filesystem // objects directory
	meta   *storage.BadgerStore
	cache  *lru.Cache[string, []byte]
	comp   *compressionManager
	logger *zap.Logger
}

// Options configures Safe behavior
type Options struct {
	CacheSize   int
	Compression CompressionOptions
	Logger      *zap.Logger
}

// New creates a store over fs, the objects directory, with metadata in db.
func New(fs billy.Filesystem, db *badger.DB, opts Options) (*Safe, error) {
	if opts.CacheSize <= 0 {
		opts.CacheSize = 256
	}
	if opts.Compression == (CompressionOptions{}) {
		opts.Compression = DefaultCompressionOptions()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	cache, err := lru.New[string, []byte](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}

	comp, err := newCompressionManager(opts.Compression)
	if err != nil {
		return nil, err
	}

	return &Safe{
		fs:     fs,
		meta:   storage.NewBadgerStore(db, "blob"),
		cache:  cache,
		comp:   comp,
		logger: opts.Logger,
	}, nil
}

// Put stores content and returns its hash. Storing content that is already
// present is a no-op.
func (s *Safe) Put(content []byte) (string, error) {
	if content == nil {
		content = []byte{}
	}
	hash := HashContent(content)

	exists, err := s.Exists(hash)
	if err != nil {
		return "", err
	}
	if exists {
		s.logger.Debug("blob already stored", zap.String("hash", hash))
		return hash, nil
	}

	stored, compressed, err := s.comp.compress(content)
	if err != nil {
		return "", verrors.Storage("compressing blob", err)
	}

	if err := fsutil.WriteFile(s.fs, s.contentPath(hash), stored); err != nil {
		return "", verrors.Storage("writing blob", err)
	}

	meta := &BlobMeta{
		Hash:       hash,
		Size:       int64(len(content)),
		StoredSize: int64(len(stored)),
		Compressed: compressed,
		StoredAt:   time.Now().UTC(),
	}
	if err := s.meta.Put(meta); err != nil {
		// The blob file is authoritative; Get sniffs the format when
		// metadata is missing.
		s.logger.Warn("storing blob metadata", zap.String("hash", hash), zap.Error(err))
	}

	s.cache.Add(hash, content)
	s.logger.Debug("stored blob",
		zap.String("hash", hash),
		zap.Int64("size", meta.Size),
		zap.Bool("compressed", compressed))

	return hash, nil
}

// Get retrieves content by hash and checks it still hashes to hash.
func (s *Safe) Get(hash string) ([]byte, error) {
	if !isValidHash(hash) {
		return nil, verrors.NotFound(hash)
	}

	if content, ok := s.cache.Get(hash); ok {
		return content, nil
	}

	raw, err := util.ReadFile(s.fs, s.contentPath(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, verrors.NotFound(hash)
		}
		return nil, verrors.Storage("reading blob", err)
	}

	content, err := s.decode(hash, raw)
	if err != nil {
		return nil, err
	}

	s.cache.Add(hash, content)
	return content, nil
}

// decode undoes compression using the recorded metadata, or by sniffing the
// frame magic when the metadata write was lost.
func (s *Safe) decode(hash string, raw []byte) ([]byte, error) {
	var meta BlobMeta
	err := s.meta.Get(hash, &meta)
	switch {
	case err == nil:
		if !meta.Compressed {
			return s.check(hash, raw)
		}
		content, err := s.comp.decompress(raw)
		if err != nil {
			return nil, verrors.Storage("blob "+hash+" corrupted", err)
		}
		return s.check(hash, content)

	case looksCompressed(raw):
		if content, err := s.comp.decompress(raw); err == nil && HashContent(content) == hash {
			return content, nil
		}
		return s.check(hash, raw)

	default:
		return s.check(hash, raw)
	}
}

func (s *Safe) check(hash string, content []byte) ([]byte, error) {
	if HashContent(content) != hash {
		return nil, verrors.Storage("blob "+hash+" corrupted", fmt.Errorf("content hash mismatch"))
	}
	return content, nil
}

// Exists checks if content exists
func (s *Safe) Exists(hash string) (bool, error) {
	if !isValidHash(hash) {
		return false, nil
	}

	if s.cache.Contains(hash) {
		return true, nil
	}

	ok, err := fsutil.Exists(s.fs, s.contentPath(hash))
	if err != nil {
		return false, verrors.Storage("checking blob", err)
	}
	return ok, nil
}

// Verify re-reads the blob from disk, bypassing the cache, and checks its hash.
func (s *Safe) Verify(hash string) error {
	s.cache.Remove(hash)
	_, err := s.Get(hash)
	return err
}

// Stats totals the recorded blob metadata.
func (s *Safe) Stats() (Stats, error) {
	var st Stats
	err := s.meta.Each(func(_ string, raw []byte) error {
		var m BlobMeta
		if err := json.Unmarshal(raw, &m); err != nil {
			return err
		}
		st.Blobs++
		st.Size += m.Size
		st.StoredSize += m.StoredSize
		return nil
	})
	if err != nil {
		return Stats{}, verrors.Storage("reading blob metadata", err)
	}
	return st, nil
}

// HashContent returns the hex SHA-256 of content.
func HashContent(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

func (s *Safe) contentPath(hash string) string {
	return s.fs.Join(hash[:2], hash[2:])
}

func isValidHash(hash string) bool {
	if len(hash) != sha256.Size*2 || strings.ToLower(hash) != hash {
		return false
	}
	_, err := hex.DecodeString(hash)
	return err == nil
}
