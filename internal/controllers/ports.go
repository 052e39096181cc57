package controllers

import (
	"context"

	"github.com/amaumene/traktsync/internal/models"
	"github.com/amaumene/traktsync/internal/services/trakt"
)

// Library is the local media library as seen by the sync engine
type Library interface {
	ListItems(account models.LinkedAccount) ([]models.MediaItem, error)
	GetItem(id string) (*models.MediaItem, error)
	GetUserData(userID, itemID string) (*models.UserData, error)
	SaveUserData(data *models.UserData) error
}

// Remote is the Trakt API as seen by the sync engine
type Remote interface {
	GetWatchedMovies(ctx context.Context, account models.LinkedAccount) ([]trakt.WatchedMovie, error)
	GetWatchedShows(ctx context.Context, account models.LinkedAccount) ([]trakt.WatchedShow, error)
	GetPlaybackMovies(ctx context.Context, account models.LinkedAccount) ([]trakt.PlaybackMovie, error)
	GetPlaybackEpisodes(ctx context.Context, account models.LinkedAccount) ([]trakt.PlaybackEpisode, error)

	SendMoviePlaystates(ctx context.Context, account models.LinkedAccount, events []models.PlaystateEvent, seen bool) error
	SendEpisodePlaystates(ctx context.Context, account models.LinkedAccount, events []models.PlaystateEvent, seen bool) error

	ScrobbleMovie(ctx context.Context, account models.LinkedAccount, item models.MediaItem, action trakt.ScrobbleAction, progress float64) error
	ScrobbleEpisode(ctx context.Context, account models.LinkedAccount, item models.MediaItem, action trakt.ScrobbleAction, progress float64) error
}
