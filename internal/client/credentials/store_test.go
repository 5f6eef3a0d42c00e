package credentials

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/docmark/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/docmark/internal/client/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openDB(t *testing.T) (*sql.DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docmark.db")
	db, err := storage.InitDatabase(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, path
}

// storeContract runs the behaviour every Store must share.
func storeContract(t *testing.T, s Store) {
	ctx := context.Background()

	snap, err := s.Load(ctx)
	require.NoError(t, err)
	assert.True(t, snap.Empty())

	require.NoError(t, s.Save(ctx, Snapshot{Token: "t1", User: []byte(`{"id":"u1"}`)}))
	snap, err = s.Load(ctx)
	require.NoError(t, err)
	assert.True(t, snap.Complete())
	assert.Equal(t, "t1", snap.Token)
	assert.JSONEq(t, `{"id":"u1"}`, string(snap.User))

	tok, err := s.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "t1", tok)

	require.NoError(t, s.SetToken(ctx, "t2"))
	tok, err = s.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "t2", tok)

	require.NoError(t, s.ClearToken(ctx))
	snap, err = s.Load(ctx)
	require.NoError(t, err)
	assert.False(t, snap.Complete(), "token cleared alone leaves a partial snapshot")
	assert.Empty(t, snap.Token)
	assert.NotEmpty(t, snap.User)

	require.NoError(t, s.Save(ctx, Snapshot{Token: "t3", User: []byte(`{}`)}))
	require.NoError(t, s.Clear(ctx))
	snap, err = s.Load(ctx)
	require.NoError(t, err)
	assert.True(t, snap.Empty())
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	db, _ := openDB(t)
	storeContract(t, NewSQLiteStore(db))
}

func TestSealedSQLiteStore(t *testing.T) {
	db, _ := openDB(t)
	s, err := NewSealedSQLiteStore(context.Background(), db, "secret")
	require.NoError(t, err)
	storeContract(t, s)
}

func TestSQLiteStore_DurableAcrossInstances(t *testing.T) {
	ctx := context.Background()
	db, path := openDB(t)

	require.NoError(t, NewSQLiteStore(db).Save(ctx, Snapshot{Token: "t1", User: []byte(`{"id":"u1"}`)}))
	require.NoError(t, db.Close())

	db2, err := storage.InitDatabase(ctx, path)
	require.NoError(t, err)
	defer db2.Close()

	snap, err := NewSQLiteStore(db2).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "t1", snap.Token)
}

func TestSealedSQLiteStore_EncryptsAtRest(t *testing.T) {
	ctx := context.Background()
	db, _ := openDB(t)

	s, err := NewSealedSQLiteStore(ctx, db, "secret")
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, Snapshot{Token: "bearer-xyz", User: []byte(`{"id":"u1"}`)}))

	raw, ok, err := metadata.NewSQLiteRepository(db).Get(ctx, KeyToken)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotContains(t, string(raw), "bearer-xyz")

	again, err := NewSealedSQLiteStore(ctx, db, "secret")
	require.NoError(t, err)
	tok, err := again.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bearer-xyz", tok, "salt is reused across instances")

	wrong, err := NewSealedSQLiteStore(ctx, db, "other")
	require.NoError(t, err)
	_, err = wrong.Load(ctx)
	assert.ErrorIs(t, err, ErrUnreadable)
}

func TestSQLiteStore_SetEmptyTokenClears(t *testing.T) {
	ctx := context.Background()
	db, _ := openDB(t)
	s := NewSQLiteStore(db)

	require.NoError(t, s.SetToken(ctx, "t1"))
	require.NoError(t, s.SetToken(ctx, ""))

	_, ok, err := metadata.NewSQLiteRepository(db).Get(ctx, KeyToken)
	require.NoError(t, err)
	assert.False(t, ok)
}
