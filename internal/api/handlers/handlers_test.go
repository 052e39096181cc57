package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amaumene/traktsync/internal/controllers"
	"github.com/amaumene/traktsync/internal/models"
	"github.com/amaumene/traktsync/internal/scheduler"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type dispatchCall struct {
	userID, itemID string
	played         bool
}

type fakeDispatcher struct {
	calls []dispatchCall
	err   error
}

func (d *fakeDispatcher) Dispatch(_ context.Context, userID, itemID string, played bool, _ *time.Time) (int, error) {
	d.calls = append(d.calls, dispatchCall{userID, itemID, played})
	if d.err != nil {
		return 0, d.err
	}
	return 1, nil
}

type fakeStore struct {
	items    map[string]models.MediaItem
	userData map[string]models.UserData
}

func newFakeStore() *fakeStore {
	return &fakeStore{items: make(map[string]models.MediaItem), userData: make(map[string]models.UserData)}
}

func (s *fakeStore) UpsertItem(item *models.MediaItem) error {
	s.items[item.ID] = *item
	return nil
}

func (s *fakeStore) GetItem(id string) (*models.MediaItem, error) {
	item, ok := s.items[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &item, nil
}

func (s *fakeStore) GetUserData(userID, itemID string) (*models.UserData, error) {
	data, ok := s.userData[models.UserDataKey(userID, itemID)]
	if !ok {
		return &models.UserData{UserID: userID, ItemID: itemID}, nil
	}
	return &data, nil
}

func (s *fakeStore) SaveUserData(data *models.UserData) error {
	s.userData[models.UserDataKey(data.UserID, data.ItemID)] = *data
	return nil
}

func (s *fakeStore) CountItems() (int, error) {
	return len(s.items), nil
}

type fakeTrigger struct {
	err     error
	running bool
}

func (f *fakeTrigger) Trigger() error { return f.err }
func (f *fakeTrigger) Running() bool  { return f.running }

type fakePending map[string]controllers.PendingCounts

func (p fakePending) Pending() map[string]controllers.PendingCounts { return p }

func newTestApp() *fiber.App {
	return fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				return c.Status(fiberErr.Code).JSON(fiber.Map{"error": fiberErr.Message})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	var decoded map[string]interface{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp, decoded
}

func TestHealth(t *testing.T) {
	app := newTestApp()
	app.Get("/health", NewHealthHandler(testLogger()).Get)

	resp, body := doJSON(t, app, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
}

func TestStatusReportsPendingPerAccount(t *testing.T) {
	store := newFakeStore()
	store.items["m1"] = models.MediaItem{ID: "m1"}
	accounts := []models.LinkedAccount{{ID: "a", Username: "alice"}, {ID: "b"}}
	pending := fakePending{"a": {SeenMovies: 2}}

	app := newTestApp()
	app.Get("/status", NewStatusHandler(store, pending, &fakeTrigger{running: true}, accounts, testLogger()).Get)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status StatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, 1, status.LibraryItems)
	assert.True(t, status.ImportRunning)
	require.Len(t, status.Accounts, 2)
	require.NotNil(t, status.Accounts[0].Pending)
	assert.Equal(t, 2, status.Accounts[0].Pending.SeenMovies)
	assert.Nil(t, status.Accounts[1].Pending)
}

func TestPostEvent(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	app := newTestApp()
	app.Post("/api/events", NewEventsHandler(dispatcher, testLogger()).Post)

	resp, body := doJSON(t, app, http.MethodPost, "/api/events", `{"user_id":"alice","item_id":"m1","played":true}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, float64(1), body["accounts"])
	assert.Equal(t, []dispatchCall{{"alice", "m1", true}}, dispatcher.calls)

	resp, _ = doJSON(t, app, http.MethodPost, "/api/events", `{"user_id":"alice"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	dispatcher.err = models.ErrNotFound
	resp, _ = doJSON(t, app, http.MethodPost, "/api/events", `{"user_id":"alice","item_id":"missing"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPutItemsValidates(t *testing.T) {
	store := newFakeStore()
	app := newTestApp()
	app.Put("/api/library/items", NewLibraryHandler(store, &fakeDispatcher{}, testLogger()).PutItems)

	resp, body := doJSON(t, app, http.MethodPut, "/api/library/items",
		`[{"id":"m1","type":"movie","name":"Heat","year":1995,"provider_ids":{"imdb":"tt0113277"}},
		  {"id":"e1","type":"episode","series_id":"s1","season_number":1,"episode_number":2}]`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["upserted"])
	assert.Equal(t, "tt0113277", store.items["m1"].ProviderIDs.IMDB)
	require.NotNil(t, store.items["e1"].EpisodeNumber)
	assert.Equal(t, 2, *store.items["e1"].EpisodeNumber)

	resp, _ = doJSON(t, app, http.MethodPut, "/api/library/items", `[{"id":"x","type":"series"}]`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_, stored := store.items["x"]
	assert.False(t, stored)
}

func TestPutUserDataDispatchesPlayedChanges(t *testing.T) {
	store := newFakeStore()
	store.items["m1"] = models.MediaItem{ID: "m1", Type: models.MediaTypeMovie}
	dispatcher := &fakeDispatcher{}

	app := newTestApp()
	app.Put("/api/library/userdata", NewLibraryHandler(store, dispatcher, testLogger()).PutUserData)

	resp, body := doJSON(t, app, http.MethodPut, "/api/library/userdata", `{"user_id":"alice","item_id":"m1","played":true,"play_count":1}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["dispatched"])

	// Same played flag: stored, not dispatched
	resp, body = doJSON(t, app, http.MethodPut, "/api/library/userdata", `{"user_id":"alice","item_id":"m1","played":true,"play_count":2}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(0), body["dispatched"])
	assert.Len(t, dispatcher.calls, 1)
	assert.Equal(t, 2, store.userData[models.UserDataKey("alice", "m1")].PlayCount)

	resp, _ = doJSON(t, app, http.MethodPut, "/api/library/userdata", `{"user_id":"alice","item_id":"unknown","played":true}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPostImport(t *testing.T) {
	trigger := &fakeTrigger{}
	app := newTestApp()
	app.Post("/api/import", NewImportHandler(trigger, testLogger()).Post)

	resp, _ := doJSON(t, app, http.MethodPost, "/api/import", "")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	trigger.err = scheduler.ErrImportRunning
	resp, _ = doJSON(t, app, http.MethodPost, "/api/import", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}
