package trakt

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/amaumene/traktsync/internal/models"
)

// ScrobbleMovie sends a playback status transition for a movie
func (c *Client) ScrobbleMovie(ctx context.Context, account models.LinkedAccount, item models.MediaItem, action ScrobbleAction, progress float64) error {
	req := ScrobbleRequest{
		Movie: &Movie{
			Title: item.Name,
			Year:  item.Year,
			IDs:   IDsFromProvider(item.ProviderIDs),
		},
		Progress: progress,
	}
	return c.scrobble(ctx, account, action, req)
}

// ScrobbleEpisode sends a playback status transition for an episode
func (c *Client) ScrobbleEpisode(ctx context.Context, account models.LinkedAccount, item models.MediaItem, action ScrobbleAction, progress float64) error {
	episode := &Episode{IDs: IDsFromProvider(item.ProviderIDs)}
	if item.SeasonNumber != nil {
		episode.Season = *item.SeasonNumber
	}
	if item.EpisodeNumber != nil {
		episode.Number = *item.EpisodeNumber
	}

	req := ScrobbleRequest{
		Show: &Show{
			Title: item.SeriesName,
			Year:  item.SeriesYear,
			IDs:   IDsFromProvider(item.SeriesProviderIDs),
		},
		Episode:  episode,
		Progress: progress,
	}
	return c.scrobble(ctx, account, action, req)
}

func (c *Client) scrobble(ctx context.Context, account models.LinkedAccount, action ScrobbleAction, req ScrobbleRequest) error {
	switch action {
	case ScrobbleStart, ScrobblePause, ScrobbleStop:
	default:
		return fmt.Errorf("unknown scrobble action %q", action)
	}

	var resp ScrobbleResponse
	if err := c.doRequest(ctx, account, "POST", "/scrobble/"+string(action), req, &resp); err != nil {
		return fmt.Errorf("failed to scrobble %s: %w", action, err)
	}

	c.logger.WithFields(logrus.Fields{
		"account":  account.ID,
		"action":   resp.Action,
		"progress": resp.Progress,
	}).Debug("Scrobble sent")
	return nil
}
