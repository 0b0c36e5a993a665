package repo

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"minivcs/internal/history"

	verrors "minivcs/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var epoch = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

func tickingClock() func() time.Time {
	now := epoch
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func setupRepo(t *testing.T, opts ...Option) (*Repository, string) {
	t.Helper()
	root := t.TempDir()
	_, err := Init(root)
	require.NoError(t, err)
	return openRepo(t, root, opts...), root
}

func openRepo(t *testing.T, root string, opts ...Option) *Repository {
	t.Helper()
	opts = append([]Option{WithClock(tickingClock()), WithLogger(zaptest.NewLogger(t))}, opts...)
	r, err := Open(root, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func writeFile(t *testing.T, root, name, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
}

func readFile(t *testing.T, root, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(name)))
	require.NoError(t, err)
	return string(data)
}

func mustAdd(t *testing.T, r *Repository, paths ...string) []Outcome {
	t.Helper()
	outcomes, err := r.Add(paths...)
	require.NoError(t, err)
	for _, o := range outcomes {
		require.False(t, o.Failed(), "add %s: %v", o.Path, o.Err)
	}
	return outcomes
}

func collectLog(t *testing.T, r *Repository) []*history.Commit {
	t.Helper()
	var commits []*history.Commit
	for c, err := range r.Log() {
		require.NoError(t, err)
		commits = append(commits, c)
	}
	return commits
}

func TestInit(t *testing.T) {
	root := t.TempDir()

	abs, err := Init(root)
	require.NoError(t, err)
	assert.Equal(t, root, abs)

	for _, name := range []string{"HEAD", "index.json", "config.yaml", "objects", "commits"} {
		_, err := os.Stat(filepath.Join(root, ControlDir, name))
		assert.NoError(t, err, name)
	}
	assert.Empty(t, readFile(t, root, ".minivcs/HEAD"))
	assert.JSONEq(t, `{"staged": []}`, readFile(t, root, ".minivcs/index.json"))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no staging directory left behind")

	t.Run("Twice", func(t *testing.T) {
		_, err := Init(root)
		assert.True(t, errors.Is(err, verrors.ErrAlreadyInitialized))
		assert.True(t, verrors.IsBenign(err))
	})

	t.Run("OpenUninitialized", func(t *testing.T) {
		_, err := Open(t.TempDir())
		assert.True(t, errors.Is(err, verrors.ErrNotInitialized))
	})
}

func TestFindRoot(t *testing.T) {
	root := t.TempDir()
	_, err := Init(root)
	require.NoError(t, err)

	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))

	found, err := FindRoot(nested)
	require.NoError(t, err)
	assert.Equal(t, root, found)

	_, err = FindRoot(t.TempDir())
	assert.True(t, errors.Is(err, verrors.ErrNotInitialized))
}

func TestAddIdempotent(t *testing.T) {
	r, root := setupRepo(t)
	writeFile(t, root, "a.txt", "hello")

	first := mustAdd(t, r, "a.txt")
	require.Len(t, first, 1)
	assert.NoError(t, first[0].Err)

	second, err := r.Add("a.txt")
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.True(t, errors.Is(second[0].Err, verrors.ErrAlreadyStaged))
	assert.False(t, second[0].Failed())
	assert.Equal(t, first[0].Hash, second[0].Hash)

	st, err := r.Status()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, st.Staged)
}

func TestAddPaths(t *testing.T) {
	r, root := setupRepo(t)
	writeFile(t, root, "src/main.go", "package main\n")
	writeFile(t, root, "src/util/util.go", "package util\n")
	writeFile(t, root, "src/.hidden", "secret")
	writeFile(t, root, "src/build.tmp", "junk")
	writeFile(t, root, ".minivcsignore", "*.tmp\n")

	r = reopen(t, r, root)

	outcomes := mustAdd(t, r, "src")
	var paths []string
	for _, o := range outcomes {
		paths = append(paths, o.Path)
	}
	assert.Equal(t, []string{"src/main.go", "src/util/util.go"}, paths)

	t.Run("Absolute", func(t *testing.T) {
		writeFile(t, root, "abs.txt", "x")
		outcomes := mustAdd(t, r, filepath.Join(root, "abs.txt"))
		assert.Equal(t, "abs.txt", outcomes[0].Path)
	})

	t.Run("Rejected", func(t *testing.T) {
		for _, p := range []string{"missing.txt", ".minivcs/HEAD", "../outside.txt", filepath.Dir(root)} {
			outcomes, err := r.Add(p)
			require.NoError(t, err)
			require.Len(t, outcomes, 1, p)
			assert.True(t, errors.Is(outcomes[0].Err, verrors.ErrFileNotFound), p)
		}
	})
}

// reopen closes r and opens root again, picking up on-disk changes such as a
// new ignore file.
func reopen(t *testing.T, r *Repository, root string) *Repository {
	t.Helper()
	require.NoError(t, r.Close())
	return openRepo(t, root)
}

func TestRemove(t *testing.T) {
	r, root := setupRepo(t)
	writeFile(t, root, "a.txt", "a")
	writeFile(t, root, "dir/b.txt", "b")
	writeFile(t, root, "dir/c.txt", "c")
	mustAdd(t, r, "a.txt", "dir")

	outcomes, err := r.Remove("dir")
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, "dir/b.txt", outcomes[0].Path)

	outcomes, err = r.Remove("dir/b.txt")
	require.NoError(t, err)
	assert.True(t, errors.Is(outcomes[0].Err, verrors.ErrNotStaged))
	assert.True(t, outcomes[0].Failed())

	assert.Equal(t, "b", readFile(t, root, "dir/b.txt"), "working file untouched")

	r = reopen(t, r, root)
	st, err := r.Status()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, st.Staged)
}

func TestCommitEmpty(t *testing.T) {
	r, root := setupRepo(t)

	_, err := r.Commit("nothing")
	assert.True(t, errors.Is(err, verrors.ErrEmptyCommit))

	assert.Empty(t, collectLog(t, r))
	assert.Empty(t, readFile(t, root, ".minivcs/HEAD"))

	st, err := r.Status()
	require.NoError(t, err)
	assert.Empty(t, st.Staged)
}

func TestCommitClearsIndex(t *testing.T) {
	r, root := setupRepo(t)
	writeFile(t, root, "a.txt", "a")
	mustAdd(t, r, "a.txt")

	c, err := r.Commit("first")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a.txt": c.Tree["a.txt"]}, c.Tree)

	r = reopen(t, r, root)
	st, err := r.Status()
	require.NoError(t, err)
	assert.Empty(t, st.Staged)
	assert.Equal(t, []string{"a.txt"}, st.Untracked)
}

func TestCommitIndexNotCleared(t *testing.T) {
	r, root := setupRepo(t)
	writeFile(t, root, "a.txt", "a")
	mustAdd(t, r, "a.txt")

	// A non-empty directory where index.json belongs makes the save fail.
	index := filepath.Join(root, ControlDir, IndexFile)
	require.NoError(t, os.Remove(index))
	writeFile(t, root, filepath.Join(ControlDir, IndexFile, "blocker"), "x")

	c, err := r.Commit("first")
	require.Error(t, err)
	require.NotNil(t, c, "the commit exists and is reported")
	assert.Equal(t, verrors.KindStorage, verrors.KindOf(err))
	assert.Contains(t, err.Error(), c.ShortID())
	assert.Contains(t, err.Error(), "index could not be cleared")

	head, herr := r.log.HeadID()
	require.NoError(t, herr)
	assert.Equal(t, c.ID, head)
}

func TestStatusPartition(t *testing.T) {
	r, root := setupRepo(t)
	writeFile(t, root, ".minivcsignore", "logs/\n*.bak\n")
	writeFile(t, root, "a.txt", "a")
	writeFile(t, root, "b.txt", "b")
	writeFile(t, root, "notes.bak", "old")
	writeFile(t, root, "logs/today.log", "log")
	writeFile(t, root, "deep/nested/c.txt", "c")
	writeFile(t, root, ".env", "hidden")
	writeFile(t, root, ".cache/blob", "hidden")
	writeFile(t, root, "gone.txt", "soon deleted")

	r = reopen(t, r, root)
	mustAdd(t, r, "a.txt", ".env", "gone.txt")
	require.NoError(t, os.Remove(filepath.Join(root, "gone.txt")))

	st, err := r.Status()
	require.NoError(t, err)
	assert.Equal(t, []string{".env", "a.txt", "gone.txt"}, st.Staged)
	assert.Equal(t, []string{"b.txt", "deep/nested/c.txt"}, st.Untracked)
	assert.Equal(t, []string{"logs/today.log", "notes.bak"}, st.Ignored)

	seen := map[string]int{}
	for _, set := range [][]string{st.Staged, st.Untracked, st.Ignored} {
		for _, p := range set {
			seen[p]++
		}
	}
	for p, n := range seen {
		assert.Equal(t, 1, n, "%s listed %d times", p, n)
	}
}

func TestDiff(t *testing.T) {
	r, root := setupRepo(t)
	writeFile(t, root, "a.txt", "one\ntwo\n")
	writeFile(t, root, "b.txt", "bee\n")
	mustAdd(t, r, "a.txt", "b.txt")
	_, err := r.Commit("base")
	require.NoError(t, err)

	t.Run("NoBase", func(t *testing.T) {
		writeFile(t, root, "new.txt", "fresh\n")
		mustAdd(t, r, "new.txt")

		diffs, err := r.Diff("new.txt")
		require.NoError(t, err)
		require.Len(t, diffs, 1)
		assert.Equal(t, MsgNoBase, diffs[0].Message())
		assert.Empty(t, diffs[0].Unified())
		_, err = r.Remove("new.txt")
		require.NoError(t, err)
	})

	t.Run("NoChanges", func(t *testing.T) {
		mustAdd(t, r, "b.txt")
		diffs, err := r.Diff("b.txt")
		require.NoError(t, err)
		require.Len(t, diffs, 1)
		assert.Equal(t, MsgNoChanges, diffs[0].Message())
	})

	t.Run("AppendedLines", func(t *testing.T) {
		writeFile(t, root, "a.txt", "one\ntwo\nthree\n")
		mustAdd(t, r, "a.txt")

		want := "--- a/a.txt\n+++ b/a.txt\n@@ -1,2 +1,3 @@\n one\n two\n+three\n"
		diffs, err := r.Diff("a.txt")
		require.NoError(t, err)
		require.Len(t, diffs, 1)
		assert.Empty(t, diffs[0].Message())
		assert.Equal(t, want, diffs[0].Unified())

		// Staging order of unrelated files does not matter.
		all, err := r.Diff()
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "a.txt", all[0].Path)
		assert.Equal(t, want, all[0].Unified())
	})

	t.Run("WorkingFileGone", func(t *testing.T) {
		require.NoError(t, os.Remove(filepath.Join(root, "a.txt")))
		diffs, err := r.Diff("a.txt")
		require.NoError(t, err)
		assert.Contains(t, diffs[0].Unified(), "+three\n")
	})

	t.Run("NotStaged", func(t *testing.T) {
		_, err := r.Diff("untracked.txt")
		assert.True(t, errors.Is(err, verrors.ErrNotStaged))
	})
}

func TestHelloScenario(t *testing.T) {
	r, root := setupRepo(t)

	writeFile(t, root, "a.txt", "hello")
	mustAdd(t, r, "a.txt")
	first, err := r.Commit("first")
	require.NoError(t, err)

	writeFile(t, root, "a.txt", "hello world")
	mustAdd(t, r, "a.txt")

	diffs, err := r.Diff()
	require.NoError(t, err)
	require.Len(t, diffs, 1)
	assert.Equal(t,
		"--- a/a.txt\n+++ b/a.txt\n@@ -1 +1 @@\n"+
			"-hello\n\\ No newline at end of file\n"+
			"+hello world\n\\ No newline at end of file\n",
		diffs[0].Unified())
	require.Len(t, diffs[0].Result.Hunks, 1)

	c, written, err := r.Checkout(first.ID[:10])
	require.NoError(t, err)
	assert.Equal(t, first.ID, c.ID)
	assert.Equal(t, []string{"a.txt"}, written)
	assert.Equal(t, "hello", readFile(t, root, "a.txt"))

	head, err := r.log.HeadID()
	require.NoError(t, err)
	assert.Equal(t, first.ID, head, "checkout leaves HEAD alone")
	_, staged := r.index.Lookup("a.txt")
	assert.True(t, staged, "checkout leaves the index alone")
}

func TestLogScenario(t *testing.T) {
	r, root := setupRepo(t)

	writeFile(t, root, "a.txt", "a")
	mustAdd(t, r, "a.txt")
	first, err := r.Commit("first")
	require.NoError(t, err)

	writeFile(t, root, "b.txt", "b")
	writeFile(t, root, "c.txt", "c")
	mustAdd(t, r, "b.txt", "c.txt")
	second, err := r.Commit("second")
	require.NoError(t, err)

	r = reopen(t, r, root)
	commits := collectLog(t, r)
	require.Len(t, commits, 2)

	assert.Equal(t, second.ID, commits[0].ID)
	assert.Equal(t, "second", commits[0].Message)
	assert.Equal(t, []string{"b.txt", "c.txt"}, commits[0].Paths())
	assert.Equal(t, first.ID, commits[0].Parent)

	assert.Equal(t, first.ID, commits[1].ID)
	assert.Equal(t, "first", commits[1].Message)
	assert.Equal(t, []string{"a.txt"}, commits[1].Paths())
	assert.Empty(t, commits[1].Parent)
}

func TestCheckoutRoundTrip(t *testing.T) {
	r, root := setupRepo(t)
	files := map[string]string{
		"a.txt":        "alpha\n",
		"dir/b.txt":    "beta",
		"dir/sub/c.md": "# gamma\n\nbody\n",
		"empty":        "",
	}
	for name, content := range files {
		writeFile(t, root, name, content)
	}
	mustAdd(t, r, ".")
	c, err := r.Commit("snapshot")
	require.NoError(t, err)

	for name := range files {
		writeFile(t, root, name, "clobbered")
	}
	require.NoError(t, os.RemoveAll(filepath.Join(root, "dir")))
	writeFile(t, root, "extra.txt", "not in the commit")

	_, _, err = r.Checkout(c.ID)
	require.NoError(t, err)
	for name, content := range files {
		assert.Equal(t, content, readFile(t, root, name), name)
	}
	assert.Equal(t, "not in the commit", readFile(t, root, "extra.txt"), "overlay keeps other files")

	t.Run("UnknownRef", func(t *testing.T) {
		_, _, err := r.Checkout("ffffffffffff")
		assert.True(t, errors.Is(err, verrors.ErrCommitNotFound))
	})
}

func TestCommitIdentityPinned(t *testing.T) {
	pinned := WithClock(func() time.Time { return epoch })

	build := func() string {
		r, root := setupRepo(t, pinned)
		writeFile(t, root, "a.txt", "same")
		mustAdd(t, r, "a.txt")
		c, err := r.Commit("msg")
		require.NoError(t, err)
		return c.ID
	}
	assert.Equal(t, build(), build())
}

func TestVerify(t *testing.T) {
	r, root := setupRepo(t)
	writeFile(t, root, "a.txt", "content")
	mustAdd(t, r, "a.txt")
	c, err := r.Commit("first")
	require.NoError(t, err)

	report, err := r.Verify()
	require.NoError(t, err)
	assert.True(t, report.OK(), "%v", report.Problems)
	assert.Equal(t, 1, report.Commits)
	assert.Equal(t, 1, report.Blobs.Blobs)

	hash := c.Tree["a.txt"]
	blob := filepath.Join(root, ControlDir, ObjectsDir, hash[:2], hash[2:])
	require.NoError(t, os.WriteFile(blob, []byte("tampered"), 0644))

	report, err = r.Verify()
	require.NoError(t, err)
	assert.False(t, report.OK())
	assert.Len(t, report.Problems, 1)
}

func TestLockExcludesSecondOpen(t *testing.T) {
	r, root := setupRepo(t)

	opened := make(chan *Repository, 1)
	go func() {
		second, err := Open(root)
		if err != nil {
			opened <- nil
			return
		}
		opened <- second
	}()

	select {
	case <-opened:
		t.Fatal("second open must wait for the lock")
	case <-time.After(200 * time.Millisecond):
	}

	require.NoError(t, r.Close())

	select {
	case second := <-opened:
		require.NotNil(t, second)
		require.NoError(t, second.Close())
	case <-time.After(5 * time.Second):
		t.Fatal("second open never acquired the lock")
	}
}
