package controllers

import (
	"context"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/amaumene/traktsync/internal/models"
	"github.com/amaumene/traktsync/internal/services/trakt"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func intPtr(v int) *int {
	return &v
}

type fakeLibrary struct {
	mu       sync.Mutex
	items    []models.MediaItem
	userData map[string]*models.UserData
	saveErr  map[string]error
	saves    int
}

func newFakeLibrary(items ...models.MediaItem) *fakeLibrary {
	return &fakeLibrary{
		items:    items,
		userData: make(map[string]*models.UserData),
		saveErr:  make(map[string]error),
	}
}

func (l *fakeLibrary) ListItems(account models.LinkedAccount) ([]models.MediaItem, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var items []models.MediaItem
	for _, item := range l.items {
		if account.CanSync(item) {
			items = append(items, item)
		}
	}
	return items, nil
}

func (l *fakeLibrary) GetItem(id string) (*models.MediaItem, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, item := range l.items {
		if item.ID == id {
			copied := item
			return &copied, nil
		}
	}
	return nil, models.ErrNotFound
}

func (l *fakeLibrary) GetUserData(userID, itemID string) (*models.UserData, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if data, ok := l.userData[models.UserDataKey(userID, itemID)]; ok {
		return data.Clone(), nil
	}
	return &models.UserData{UserID: userID, ItemID: itemID}, nil
}

func (l *fakeLibrary) SaveUserData(data *models.UserData) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.saveErr[data.ItemID]; err != nil {
		return err
	}
	l.saves++
	l.userData[models.UserDataKey(data.UserID, data.ItemID)] = data.Clone()
	return nil
}

func (l *fakeLibrary) set(data models.UserData) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.userData[models.UserDataKey(data.UserID, data.ItemID)] = data.Clone()
}

func (l *fakeLibrary) get(userID, itemID string) *models.UserData {
	data, _ := l.GetUserData(userID, itemID)
	return data
}

type sentBatch struct {
	accountID string
	mediaType models.MediaType
	seen      bool
	events    []models.PlaystateEvent
}

type scrobble struct {
	accountID string
	itemID    string
	action    trakt.ScrobbleAction
	progress  float64
}

type fakeRemote struct {
	mu sync.Mutex

	watchedMovies    []trakt.WatchedMovie
	watchedShows     []trakt.WatchedShow
	playbackMovies   []trakt.PlaybackMovie
	playbackEpisodes []trakt.PlaybackEpisode

	fetchErr     map[string]error // by account id
	sendErr      error
	playbackErr  error
	playbackGets int

	sent      []sentBatch
	scrobbles []scrobble
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{fetchErr: make(map[string]error)}
}

func (r *fakeRemote) GetWatchedMovies(_ context.Context, account models.LinkedAccount) ([]trakt.WatchedMovie, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.watchedMovies, r.fetchErr[account.ID]
}

func (r *fakeRemote) GetWatchedShows(_ context.Context, account models.LinkedAccount) ([]trakt.WatchedShow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.watchedShows, r.fetchErr[account.ID]
}

func (r *fakeRemote) GetPlaybackMovies(_ context.Context, account models.LinkedAccount) ([]trakt.PlaybackMovie, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.playbackGets++
	if r.playbackErr != nil {
		return nil, r.playbackErr
	}
	return r.playbackMovies, r.fetchErr[account.ID]
}

func (r *fakeRemote) GetPlaybackEpisodes(_ context.Context, account models.LinkedAccount) ([]trakt.PlaybackEpisode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.playbackGets++
	if r.playbackErr != nil {
		return nil, r.playbackErr
	}
	return r.playbackEpisodes, r.fetchErr[account.ID]
}

func (r *fakeRemote) record(account models.LinkedAccount, mediaType models.MediaType, events []models.PlaystateEvent, seen bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := append([]models.PlaystateEvent(nil), events...)
	r.sent = append(r.sent, sentBatch{accountID: account.ID, mediaType: mediaType, seen: seen, events: copied})
	return r.sendErr
}

func (r *fakeRemote) SendMoviePlaystates(_ context.Context, account models.LinkedAccount, events []models.PlaystateEvent, seen bool) error {
	return r.record(account, models.MediaTypeMovie, events, seen)
}

func (r *fakeRemote) SendEpisodePlaystates(_ context.Context, account models.LinkedAccount, events []models.PlaystateEvent, seen bool) error {
	return r.record(account, models.MediaTypeEpisode, events, seen)
}

func (r *fakeRemote) ScrobbleMovie(_ context.Context, account models.LinkedAccount, item models.MediaItem, action trakt.ScrobbleAction, progress float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scrobbles = append(r.scrobbles, scrobble{accountID: account.ID, itemID: item.ID, action: action, progress: progress})
	return nil
}

func (r *fakeRemote) ScrobbleEpisode(_ context.Context, account models.LinkedAccount, item models.MediaItem, action trakt.ScrobbleAction, progress float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scrobbles = append(r.scrobbles, scrobble{accountID: account.ID, itemID: item.ID, action: action, progress: progress})
	return nil
}

func (r *fakeRemote) sentBatches() []sentBatch {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sentBatch(nil), r.sent...)
}

func (r *fakeRemote) scrobbled() []scrobble {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]scrobble(nil), r.scrobbles...)
}
