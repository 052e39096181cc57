package models

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()
	db, err := NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func intPtr(v int) *int {
	return &v
}

func TestListItemsOrdersAndFilters(t *testing.T) {
	db := newTestDatabase(t)

	items := []MediaItem{
		{ID: "e3", Type: MediaTypeEpisode, Name: "c", SeriesName: "B show", SeasonNumber: intPtr(1), EpisodeNumber: intPtr(1)},
		{ID: "e2", Type: MediaTypeEpisode, Name: "b", SeriesName: "A show", SeasonNumber: intPtr(2), EpisodeNumber: intPtr(1)},
		{ID: "e1", Type: MediaTypeEpisode, Name: "a", SeriesName: "A show", SeasonNumber: intPtr(1), EpisodeNumber: intPtr(5)},
		{ID: "e0", Type: MediaTypeEpisode, Name: "special", SeriesName: "A show"},
		{ID: "m1", Type: MediaTypeMovie, Name: "Zodiac", Path: "/media/movies/zodiac.mkv"},
		{ID: "m2", Type: MediaTypeMovie, Name: "Alien", Path: "/media/kids/alien.mkv"},
		{ID: "x1", Type: "trailer", Name: "Trailer"},
	}
	for i := range items {
		require.NoError(t, db.UpsertItem(&items[i]))
	}

	count, err := db.CountItems()
	require.NoError(t, err)
	assert.Equal(t, 7, count)

	account := LinkedAccount{ID: "acc", LocalUserID: "alice", ExcludedLocations: []string{"/media/kids/"}}
	listed, err := db.ListItems(account)
	require.NoError(t, err)

	var ids []string
	for _, item := range listed {
		ids = append(ids, item.ID)
	}
	// movies have no series name and sort first; nil season counts as 0
	assert.Equal(t, []string{"m1", "e0", "e1", "e2", "e3"}, ids)
}

func TestGetItemNotFound(t *testing.T) {
	db := newTestDatabase(t)
	_, err := db.GetItem("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserDataRoundTrip(t *testing.T) {
	db := newTestDatabase(t)

	data, err := db.GetUserData("alice", "m1")
	require.NoError(t, err)
	assert.False(t, data.Played)
	assert.Zero(t, data.PlayCount)

	ts := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	data.Played = true
	data.PlayCount = 2
	data.LastPlayedAt = &ts
	data.PlaybackPosition = 5 * time.Minute
	require.NoError(t, db.SaveUserData(data))

	stored, err := db.GetUserData("alice", "m1")
	require.NoError(t, err)
	assert.True(t, stored.Equal(data))

	other, err := db.GetUserData("bob", "m1")
	require.NoError(t, err)
	assert.False(t, other.Played)
}

func TestSaveUserDataValidates(t *testing.T) {
	db := newTestDatabase(t)
	assert.Error(t, db.SaveUserData(&UserData{ItemID: "m1"}))
	assert.Error(t, db.SaveUserData(&UserData{UserID: "alice", ItemID: "m1", PlayCount: -1}))
}

func TestSeedTokenKeepsStoredToken(t *testing.T) {
	db := newTestDatabase(t)
	account := LinkedAccount{ID: "acc", AccessToken: "configured", RefreshToken: "r"}

	require.NoError(t, db.SeedToken(account))
	token, err := db.GetToken("acc")
	require.NoError(t, err)
	assert.Equal(t, "configured", token.AccessToken)
	assert.True(t, token.ExpiresAt.After(time.Now().Add(80*24*time.Hour)))

	require.NoError(t, db.SaveToken("acc", &Token{AccessToken: "refreshed", RefreshToken: "r2", ExpiresAt: time.Now().Add(time.Hour)}))
	require.NoError(t, db.SeedToken(account))

	token, err = db.GetToken("acc")
	require.NoError(t, err)
	assert.Equal(t, "refreshed", token.AccessToken)

	_, err = db.GetToken("other")
	assert.ErrorIs(t, err, ErrNotFound)
}
