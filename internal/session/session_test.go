package session_test

import (
	"path/filepath"
	"testing"

	"github.com/UnknownOlympus/hotelgate/internal/session"
	"github.com/UnknownOlympus/hotelgate/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepository(t *testing.T) (*session.Repository, storage.Store) {
	t.Helper()
	store, err := storage.OpenBolt(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return session.NewRepository(store), store
}

func TestRepository(t *testing.T) {
	t.Parallel()
	ctx := t.Context()

	t.Run("save get clear", func(t *testing.T) {
		t.Parallel()
		repo, _ := newRepository(t)
		sess := session.Session{ID: 3, Username: "lan", FullName: "Pham Lan", Role: "manager", Token: "tok-1"}

		require.NoError(t, repo.Save(ctx, sess))
		got, err := repo.Get(ctx, "tok-1")
		require.NoError(t, err)
		assert.Equal(t, sess, got)

		require.NoError(t, repo.Clear(ctx, "tok-1"))
		_, err = repo.Get(ctx, "tok-1")
		require.ErrorIs(t, err, session.ErrNoSession)
	})

	t.Run("stored record pairs token and user", func(t *testing.T) {
		t.Parallel()
		repo, store := newRepository(t)
		require.NoError(t, repo.Save(ctx, session.Session{Username: "an", Role: "staff", Token: "tok-2"}))

		raw, err := store.Get(ctx, "sessions/tok-2")
		require.NoError(t, err)
		assert.JSONEq(t,
			`{"version":1,"auth_token":"tok-2","user":{"id":0,"username":"an","fullName":"","email":"","role":"staff"}}`,
			string(raw))
	})

	t.Run("error - unknown version", func(t *testing.T) {
		t.Parallel()
		repo, store := newRepository(t)
		require.NoError(t, store.Put(ctx, "sessions/old", []byte(`{"version":7,"auth_token":"old","user":{}}`)))

		_, err := repo.Get(ctx, "old")
		require.ErrorIs(t, err, session.ErrSchemaVersion)
	})

	t.Run("error - token mismatch", func(t *testing.T) {
		t.Parallel()
		repo, store := newRepository(t)
		require.NoError(t, store.Put(ctx, "sessions/a", []byte(`{"version":1,"auth_token":"b","user":{}}`)))

		_, err := repo.Get(ctx, "a")
		require.ErrorIs(t, err, session.ErrNoSession)
	})

	t.Run("error - empty token", func(t *testing.T) {
		t.Parallel()
		repo, _ := newRepository(t)
		require.ErrorIs(t, repo.Save(ctx, session.Session{Username: "x"}), session.ErrEmptyToken)
		_, err := repo.Get(ctx, "")
		require.ErrorIs(t, err, session.ErrNoSession)
	})
}

func TestSession_HasRole(t *testing.T) {
	t.Parallel()

	sess := session.Session{Role: "Manager"}
	assert.True(t, sess.HasRole("admin", "manager"))
	assert.False(t, sess.HasRole("staff"))
	assert.False(t, sess.HasRole())
}
