package controllers

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amaumene/traktsync/internal/models"
)

type recordingHandler struct {
	mu       sync.Mutex
	accounts []string
	events   []models.PlaystateEvent
}

func (h *recordingHandler) HandleEvent(_ context.Context, event models.PlaystateEvent, account models.LinkedAccount) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.accounts = append(h.accounts, account.ID)
	h.events = append(h.events, event)
	return nil
}

func TestDispatchRoutesToEligibleAccounts(t *testing.T) {
	item := movieItem("m1", "tt1")
	item.Path = "/media/movies/m1.mkv"
	library := newFakeLibrary(item)

	accounts := []models.LinkedAccount{
		{ID: "enabled", LocalUserID: "alice", PostWatchedHistory: true},
		{ID: "disabled", LocalUserID: "alice"},
		{ID: "excluded", LocalUserID: "alice", PostWatchedHistory: true, ExcludedLocations: []string{"/media/movies"}},
		{ID: "other-user", LocalUserID: "bob", PostWatchedHistory: true},
	}
	handler := &recordingHandler{}
	dispatcher := NewDispatcher(library, handler, accounts, testLogger())

	n, err := dispatcher.Dispatch(context.Background(), "alice", "m1", true, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"enabled"}, handler.accounts)

	event := handler.events[0]
	assert.Equal(t, "alice", event.UserID)
	assert.True(t, event.Played)
	assert.NotNil(t, event.PlayedAt)
	assert.Equal(t, "m1", event.Item.ID)
}

func TestDispatchUnknownItem(t *testing.T) {
	dispatcher := NewDispatcher(newFakeLibrary(), &recordingHandler{}, []models.LinkedAccount{alice}, testLogger())

	_, err := dispatcher.Dispatch(context.Background(), "alice", "missing", false, nil)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestDispatchUnplayedKeepsNilTimestamp(t *testing.T) {
	library := newFakeLibrary(episodeItem("e1", "1", 1, 1))
	handler := &recordingHandler{}
	account := models.LinkedAccount{ID: "acc", LocalUserID: "alice", PostWatchedHistory: true}

	n, err := NewDispatcher(library, handler, []models.LinkedAccount{account}, testLogger()).Dispatch(context.Background(), "alice", "e1", false, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Nil(t, handler.events[0].PlayedAt)
}
