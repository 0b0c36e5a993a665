package storage

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

func (r *record) GetID() string { return r.ID }

func setupTestDB(t *testing.T) *badger.DB {
	db, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestBadgerStore(t *testing.T) {
	db := setupTestDB(t)
	store := NewBadgerStore(db, "rec")
	other := NewBadgerStore(db, "other")

	t.Run("PutGet", func(t *testing.T) {
		require.NoError(t, store.Put(&record{ID: "abc1", Value: "one"}))

		var got record
		require.NoError(t, store.Get("abc1", &got))
		assert.Equal(t, "one", got.Value)
	})

	t.Run("PutReplaces", func(t *testing.T) {
		require.NoError(t, store.Put(&record{ID: "abc1", Value: "uno"}))

		var got record
		require.NoError(t, store.Get("abc1", &got))
		assert.Equal(t, "uno", got.Value)
	})

	t.Run("EmptyID", func(t *testing.T) {
		assert.Error(t, store.Put(&record{}))
	})

	t.Run("GetMissing", func(t *testing.T) {
		var got record
		err := store.Get("nope", &got)
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("Has", func(t *testing.T) {
		ok, err := store.Has("abc1")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = other.Has("abc1")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("IDsWithPrefix", func(t *testing.T) {
		require.NoError(t, store.Put(&record{ID: "abc2"}))
		require.NoError(t, store.Put(&record{ID: "abd3"}))
		require.NoError(t, other.Put(&record{ID: "abc9"}))

		ids, err := store.IDsWithPrefix("abc", 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"abc1", "abc2"}, ids)

		ids, err = store.IDsWithPrefix("ab", 2)
		require.NoError(t, err)
		assert.Len(t, ids, 2)

		ids, err = store.IDsWithPrefix("zz", 0)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("Each", func(t *testing.T) {
		seen := map[string]string{}
		err := store.Each(func(id string, raw []byte) error {
			var r record
			if err := json.Unmarshal(raw, &r); err != nil {
				return err
			}
			seen[id] = r.ID
			return nil
		})
		require.NoError(t, err)
		assert.Len(t, seen, 3)
		assert.Equal(t, "abd3", seen["abd3"])
	})
}
