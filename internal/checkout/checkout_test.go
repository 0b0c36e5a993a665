package checkout

import (
	"errors"
	"testing"

	"minivcs/internal/history"

	verrors "minivcs/internal/errors"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type mapBlobs map[string][]byte

func (m mapBlobs) Get(hash string) ([]byte, error) {
	content, ok := m[hash]
	if !ok {
		return nil, verrors.NotFound(hash)
	}
	return content, nil
}

func TestCheckout(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "a.txt", []byte("modified"), 0644))
	require.NoError(t, util.WriteFile(fs, "untracked.txt", []byte("keep me"), 0644))

	blobs := mapBlobs{"h1": []byte("original a"), "h2": []byte("nested b")}
	c := &history.Commit{ID: "c1", Tree: map[string]string{"a.txt": "h1", "dir/sub/b.txt": "h2"}}

	written, err := New(fs, blobs, zaptest.NewLogger(t)).Checkout(c)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "dir/sub/b.txt"}, written)

	got, err := util.ReadFile(fs, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "original a", string(got))

	got, err = util.ReadFile(fs, "dir/sub/b.txt")
	require.NoError(t, err)
	assert.Equal(t, "nested b", string(got))

	got, err = util.ReadFile(fs, "untracked.txt")
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(got), "overlay never deletes or rewrites other files")
}

func TestCheckoutMissingBlob(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "a.txt", []byte("working"), 0644))

	blobs := mapBlobs{"h1": []byte("restored")}
	c := &history.Commit{ID: "c1", Tree: map[string]string{"a.txt": "h1", "b.txt": "gone"}}

	_, err := New(fs, blobs, nil).Checkout(c)
	assert.True(t, errors.Is(err, verrors.ErrStorage))

	got, err := util.ReadFile(fs, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "working", string(got), "nothing written when a blob is missing")
}
