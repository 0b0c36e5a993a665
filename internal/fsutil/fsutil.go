// Package fsutil holds the durability helpers shared by every component that
// persists state: whole-file replacement through a temp file plus rename, and
// the repository's advisory lock.
package fsutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
)

// WriteFile replaces name with data. Readers observe either the old or the
// new content, never a prefix of it.
func WriteFile(fs billy.Filesystem, name string, data []byte) error {
	dir := filepath.Dir(name)
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := fs.TempFile(dir, "."+filepath.Base(name)+".tmp-")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	closed, committed := false, false
	defer func() {
		if !closed {
			_ = tmp.Close()
		}
		if !committed {
			_ = fs.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("writing %s: %w", tmpName, err)
	}
	closed = true
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmpName, err)
	}
	if err := fs.Rename(tmpName, name); err != nil {
		return fmt.Errorf("renaming %s to %s: %w", tmpName, name, err)
	}
	committed = true
	return nil
}

// Exists reports whether name exists; errors other than "not exist" are returned.
func Exists(fs billy.Filesystem, name string) (bool, error) {
	_, err := fs.Stat(name)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Lock is an exclusive advisory lock held on a file for the life of one command.
type Lock struct {
	f billy.File
}

// AcquireLock blocks until the exclusive lock on name is held and records
// holder in the file for diagnostics. The file is never removed.
func AcquireLock(fs billy.Filesystem, name, holder string) (*Lock, error) {
	f, err := fs.OpenFile(name, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}
	if err := f.Lock(); err != nil {
		f.Close()
		return nil, fmt.Errorf("locking %s: %w", name, err)
	}

	l := &Lock{f: f}
	if err := l.record(holder); err != nil {
		l.Release()
		return nil, err
	}
	return l, nil
}

func (l *Lock) record(holder string) error {
	if err := l.f.Truncate(0); err != nil {
		return fmt.Errorf("truncating lock file: %w", err)
	}
	if _, err := l.f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seeking lock file: %w", err)
	}
	if _, err := fmt.Fprintf(l.f, "%s %d\n", holder, os.Getpid()); err != nil {
		return fmt.Errorf("writing lock holder: %w", err)
	}
	return nil
}

// Release unlocks and closes the lock file. Safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	f := l.f
	l.f = nil

	unlockErr := f.Unlock()
	closeErr := f.Close()
	if unlockErr != nil {
		return fmt.Errorf("unlocking: %w", unlockErr)
	}
	return closeErr
}
