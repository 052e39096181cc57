package trakt

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/amaumene/traktsync/internal/models"
)

// GetWatchedMovies retrieves every watched movie of an account
func (c *Client) GetWatchedMovies(ctx context.Context, account models.LinkedAccount) ([]WatchedMovie, error) {
	var items []WatchedMovie
	if err := c.doRequest(ctx, account, "GET", "/sync/watched/movies", nil, &items); err != nil {
		return nil, fmt.Errorf("failed to get watched movies: %w", err)
	}
	return items, nil
}

// GetWatchedShows retrieves every watched show of an account with its seasons and episodes
func (c *Client) GetWatchedShows(ctx context.Context, account models.LinkedAccount) ([]WatchedShow, error) {
	var items []WatchedShow
	if err := c.doRequest(ctx, account, "GET", "/sync/watched/shows", nil, &items); err != nil {
		return nil, fmt.Errorf("failed to get watched shows: %w", err)
	}
	return items, nil
}

// GetPlaybackMovies retrieves the paused, not yet finished movies of an account
func (c *Client) GetPlaybackMovies(ctx context.Context, account models.LinkedAccount) ([]PlaybackMovie, error) {
	var items []PlaybackMovie
	if err := c.doRequest(ctx, account, "GET", "/sync/playback/movies", nil, &items); err != nil {
		return nil, fmt.Errorf("failed to get playback movies: %w", err)
	}
	return items, nil
}

// GetPlaybackEpisodes retrieves the paused, not yet finished episodes of an account
func (c *Client) GetPlaybackEpisodes(ctx context.Context, account models.LinkedAccount) ([]PlaybackEpisode, error) {
	var items []PlaybackEpisode
	if err := c.doRequest(ctx, account, "GET", "/sync/playback/episodes", nil, &items); err != nil {
		return nil, fmt.Errorf("failed to get playback episodes: %w", err)
	}
	return items, nil
}

// SendMoviePlaystates adds movies to (seen) or removes them from (unseen) the watch history
func (c *Client) SendMoviePlaystates(ctx context.Context, account models.LinkedAccount, events []models.PlaystateEvent, seen bool) error {
	if len(events) == 0 {
		return nil
	}

	req := SyncRequest{Movies: make([]SyncMovie, 0, len(events))}
	for _, event := range events {
		req.Movies = append(req.Movies, SyncMovie{
			Title:     event.Item.Name,
			Year:      event.Item.Year,
			IDs:       IDsFromProvider(event.Item.ProviderIDs),
			WatchedAt: watchedAt(event, seen),
		})
	}

	return c.sendHistory(ctx, account, req, seen)
}

// SendEpisodePlaystates adds episodes to (seen) or removes them from (unseen) the watch history.
// Episodes are grouped by show and season; episodes without season/episode numbers
// are sent by their own ids.
func (c *Client) SendEpisodePlaystates(ctx context.Context, account models.LinkedAccount, events []models.PlaystateEvent, seen bool) error {
	if len(events) == 0 {
		return nil
	}
	return c.sendHistory(ctx, account, BuildEpisodeSyncRequest(events, seen), seen)
}

// BuildEpisodeSyncRequest groups episode events into a sync request body
func BuildEpisodeSyncRequest(events []models.PlaystateEvent, seen bool) SyncRequest {
	var req SyncRequest
	showIndex := make(map[string]int)

	for _, event := range events {
		item := event.Item
		if item.SeasonNumber == nil || item.EpisodeNumber == nil {
			ids := IDsFromProvider(item.ProviderIDs)
			req.Episodes = append(req.Episodes, SyncEpisode{IDs: &ids, WatchedAt: watchedAt(event, seen)})
			continue
		}

		idx, ok := showIndex[item.SeriesID]
		if !ok {
			req.Shows = append(req.Shows, SyncShow{
				Title: item.SeriesName,
				Year:  item.SeriesYear,
				IDs:   IDsFromProvider(item.SeriesProviderIDs),
			})
			idx = len(req.Shows) - 1
			showIndex[item.SeriesID] = idx
		}
		show := &req.Shows[idx]

		season := findOrAddSeason(show, *item.SeasonNumber)
		season.Episodes = append(season.Episodes, SyncEpisode{
			Number:    *item.EpisodeNumber,
			WatchedAt: watchedAt(event, seen),
		})
	}

	for i := range req.Shows {
		sort.Slice(req.Shows[i].Seasons, func(a, b int) bool {
			return req.Shows[i].Seasons[a].Number < req.Shows[i].Seasons[b].Number
		})
	}
	return req
}

func findOrAddSeason(show *SyncShow, number int) *SyncSeason {
	for i := range show.Seasons {
		if show.Seasons[i].Number == number {
			return &show.Seasons[i]
		}
	}
	show.Seasons = append(show.Seasons, SyncSeason{Number: number})
	return &show.Seasons[len(show.Seasons)-1]
}

func watchedAt(event models.PlaystateEvent, seen bool) string {
	if !seen || event.PlayedAt == nil {
		return ""
	}
	return event.PlayedAt.UTC().Format(time.RFC3339)
}

func (c *Client) sendHistory(ctx context.Context, account models.LinkedAccount, req SyncRequest, seen bool) error {
	path := "/sync/history"
	if !seen {
		path = "/sync/history/remove"
	}

	var resp SyncResponse
	if err := c.doRequest(ctx, account, "POST", path, req, &resp); err != nil {
		return fmt.Errorf("failed to update watch history: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"account":            account.ID,
		"seen":               seen,
		"added_movies":       resp.Added.Movies,
		"added_episodes":     resp.Added.Episodes,
		"deleted_movies":     resp.Deleted.Movies,
		"deleted_episodes":   resp.Deleted.Episodes,
		"not_found_movies":   len(resp.NotFound.Movies),
		"not_found_shows":    len(resp.NotFound.Shows),
		"not_found_episodes": len(resp.NotFound.Episodes),
	}).Info("Watch history updated")

	return nil
}
