package mirror

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/Ad1th/Poster-Website/internal/poster"
	"github.com/Ad1th/Poster-Website/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(filepath.Join(t.TempDir(), "nested", "mirror.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_Snapshot(t *testing.T) {
	// given
	store := openTestStore(t)
	_, found, err := store.Snapshot()
	require.NoError(t, err)
	require.False(t, found)

	at := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
	entries := []poster.Entry{{ID: "2", Name: "Wave", Quantity: 1, IsAvailable: true, CreatedAt: at}}

	// when
	require.NoError(t, store.SaveSnapshot(entries, at))
	snap, found, err := store.Snapshot()

	// then
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, at, snap.SavedAt)
	require.Len(t, snap.Entries, 1)
	assert.Equal(t, poster.ID("2"), snap.Entries[0].ID)
	assert.Equal(t, "Wave", snap.Entries[0].Name)
}

func TestStore_Session(t *testing.T) {
	// given
	store := openTestStore(t)
	session := auth.Session{Token: "abc.def.ghi", ExpiresAt: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)}

	// when
	require.NoError(t, store.SaveSession(session))
	got, found, err := store.Session()

	// then
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, session.Token, got.Token)
	assert.True(t, session.ExpiresAt.Equal(got.ExpiresAt))

	require.NoError(t, store.ClearSession())
	_, found, err = store.Session()
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_Closed(t *testing.T) {
	store, err := OpenStore(filepath.Join(t.TempDir(), "mirror.db"))
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	_, _, err = store.Snapshot()
	assert.ErrorIs(t, err, ErrStoreClosed)
	assert.ErrorIs(t, store.SaveSession(auth.Session{}), ErrStoreClosed)
}

func TestOpenStore_RequiresPath(t *testing.T) {
	_, err := OpenStore("  ")
	assert.Error(t, err)
}
