package controllers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/amaumene/traktsync/internal/match"
	"github.com/amaumene/traktsync/internal/metrics"
	"github.com/amaumene/traktsync/internal/models"
	"github.com/amaumene/traktsync/internal/services/trakt"
)

const tracerName = "github.com/amaumene/traktsync/internal/controllers"

// AccountResult summarises one account import pass
type AccountResult struct {
	AccountID string
	Items     int
	Updated   int
	Unchanged int
	Failed    int // local writes that failed
	Err       error
}

// ImportReport collects the results of an import run
type ImportReport struct {
	Results []AccountResult
}

// Failed returns the results of accounts whose pass was aborted
func (r *ImportReport) Failed() []AccountResult {
	var failed []AccountResult
	for _, result := range r.Results {
		if result.Err != nil {
			failed = append(failed, result)
		}
	}
	return failed
}

// snapshot holds the remote state fetched once per account pass
type snapshot struct {
	watchedMovies    []trakt.WatchedMovie
	watchedShows     []trakt.WatchedShow
	playbackMovies   []trakt.PlaybackMovie
	playbackEpisodes []trakt.PlaybackEpisode
}

type itemOutcome string

const (
	outcomeUpdated   itemOutcome = "updated"
	outcomeUnchanged itemOutcome = "unchanged"
	outcomeFailed    itemOutcome = "failed"
)

// SyncController imports Trakt watch state into the local library
type SyncController struct {
	library     Library
	remote      Remote
	accounts    []models.LinkedAccount
	concurrency int
	logger      *logrus.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewSyncController creates a new sync controller
func NewSyncController(library Library, remote Remote, accounts []models.LinkedAccount, concurrency int, logger *logrus.Logger) *SyncController {
	if concurrency < 1 {
		concurrency = 1
	}
	return &SyncController{
		library:     library,
		remote:      remote,
		accounts:    accounts,
		concurrency: concurrency,
		logger:      logger,
		tracer:      otel.Tracer(tracerName),
		now:         time.Now,
	}
}

// ImportAll runs an import pass for every linked account.
// progress receives values from 0 to 100. A failing account is recorded in the
// report and does not stop the others; only cancellation is returned as error.
func (c *SyncController) ImportAll(ctx context.Context, progress func(float64)) (*ImportReport, error) {
	if progress == nil {
		progress = func(float64) {}
	}

	report := &ImportReport{Results: make([]AccountResult, len(c.accounts))}
	if len(c.accounts) == 0 {
		c.logger.Info("No linked accounts, nothing to import")
		progress(100)
		return report, nil
	}

	tracker := newProgressTracker(len(c.accounts), progress)
	p := pool.New().WithMaxGoroutines(c.concurrency)

	for i, account := range c.accounts {
		i, account := i, account
		p.Go(func() {
			result, err := c.ImportAccount(ctx, account, func(fraction float64) {
				tracker.set(i, fraction)
			})
			result.Err = err
			report.Results[i] = result
			tracker.set(i, 1)

			if err != nil {
				c.logger.WithError(err).WithField("account", account.ID).Error("Error importing Trakt data for account")
			}
		})
	}
	p.Wait()

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// ImportAccount runs one import pass for an account. progress receives the
// completed fraction (0 to 1) of the account's items.
func (c *SyncController) ImportAccount(ctx context.Context, account models.LinkedAccount, progress func(float64)) (AccountResult, error) {
	ctx, span := c.tracer.Start(ctx, "import.account", trace.WithAttributes(attribute.String("account", account.ID)))
	defer span.End()

	start := time.Now()
	result, err := c.importAccount(ctx, account, progress)
	metrics.ImportDuration.Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		metrics.ImportRuns.WithLabelValues("ok").Inc()
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		metrics.ImportRuns.WithLabelValues("cancelled").Inc()
	default:
		metrics.ImportRuns.WithLabelValues("error").Inc()
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(
		attribute.Int("items", result.Items),
		attribute.Int("updated", result.Updated),
		attribute.Int("failed", result.Failed),
	)

	return result, err
}

func (c *SyncController) importAccount(ctx context.Context, account models.LinkedAccount, progress func(float64)) (AccountResult, error) {
	result := AccountResult{AccountID: account.ID}
	if progress == nil {
		progress = func(float64) {}
	}
	logger := c.logger.WithField("account", account.ID)

	snap, err := c.fetchSnapshot(ctx, account)
	if err != nil {
		return result, err
	}

	logger.WithFields(logrus.Fields{
		"watched_movies":    len(snap.watchedMovies),
		"watched_shows":     len(snap.watchedShows),
		"playback_movies":   len(snap.playbackMovies),
		"playback_episodes": len(snap.playbackEpisodes),
	}).Info("Fetched Trakt snapshots")

	items, err := c.library.ListItems(account)
	if err != nil {
		return result, fmt.Errorf("failed to list library items: %w", err)
	}

	// Movies first, then episodes in series order
	ordered := make([]models.MediaItem, 0, len(items))
	for _, item := range items {
		if item.IsMovie() {
			ordered = append(ordered, item)
		}
	}
	for _, item := range items {
		if item.IsEpisode() {
			ordered = append(ordered, item)
		}
	}
	result.Items = len(ordered)

	for i, item := range ordered {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		var outcome itemOutcome
		if item.IsMovie() {
			outcome = c.importMovie(account, item, snap)
		} else {
			outcome = c.importEpisode(account, item, snap)
		}
		metrics.ImportItems.WithLabelValues(string(outcome)).Inc()

		switch outcome {
		case outcomeUpdated:
			result.Updated++
		case outcomeUnchanged:
			result.Unchanged++
		case outcomeFailed:
			result.Failed++
		}

		progress(float64(i+1) / float64(len(ordered)))
	}

	logger.WithFields(logrus.Fields{
		"items":     result.Items,
		"updated":   result.Updated,
		"unchanged": result.Unchanged,
		"failed":    result.Failed,
	}).Info("Trakt import completed for account")

	return result, nil
}

// fetchSnapshot downloads the four remote sets; any failure aborts the pass
func (c *SyncController) fetchSnapshot(ctx context.Context, account models.LinkedAccount) (*snapshot, error) {
	var snap snapshot
	var err error

	if snap.watchedMovies, err = c.remote.GetWatchedMovies(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to fetch watched movies: %w", err)
	}
	if snap.watchedShows, err = c.remote.GetWatchedShows(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to fetch watched shows: %w", err)
	}
	if snap.playbackMovies, err = c.remote.GetPlaybackMovies(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to fetch playback movies: %w", err)
	}
	if snap.playbackEpisodes, err = c.remote.GetPlaybackEpisodes(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to fetch playback episodes: %w", err)
	}

	return &snap, nil
}

func (c *SyncController) importMovie(account models.LinkedAccount, item models.MediaItem, snap *snapshot) itemOutcome {
	logger := c.itemLogger(account, item)

	watched, isWatched := match.Find(match.KindMovie, match.Movie(item), snap.watchedMovies, func(w trakt.WatchedMovie) match.Identity {
		return w.Movie.Identity()
	})
	playback, isPaused := match.Find(match.KindMovie, match.Movie(item), snap.playbackMovies, func(p trakt.PlaybackMovie) match.Identity {
		return p.Movie.Identity()
	})
	if !isWatched && !isPaused {
		return outcomeUnchanged
	}

	current, err := c.library.GetUserData(account.LocalUserID, item.ID)
	if err != nil {
		c.logger.WithError(err).WithField("item_id", item.ID).Error("Failed to read user data")
		return outcomeFailed
	}

	updated := current.Clone()
	changed := false
	if isWatched {
		logger.Log(c.itemLevel(account), "Movie is in watched list")
		if mergeWatched(updated, watched.Plays, watched.LastWatchedAt, c.now()) {
			changed = true
		}
	}
	if isPaused {
		if applyProgress(updated, item.Runtime, playback.Progress) {
			changed = true
		}
	}

	return c.save(account, item, updated, changed)
}

func (c *SyncController) importEpisode(account models.LinkedAccount, item models.MediaItem, snap *snapshot) itemOutcome {
	logger := c.itemLogger(account, item)
	level := c.itemLevel(account)

	show, ok := match.Find(match.KindShow, match.Series(item), snap.watchedShows, func(w trakt.WatchedShow) match.Identity {
		return w.Show.Identity()
	})
	if !ok {
		logger.Log(level, "No show match in watched shows list")
		return outcomeUnchanged
	}

	seasonNumber := 0
	if item.SeasonNumber != nil {
		seasonNumber = *item.SeasonNumber
	}
	season, ok := show.Season(seasonNumber)
	if !ok {
		// Trakt has no opinion about this season
		logger.Log(level, "No season match in watched shows list")
		return outcomeUnchanged
	}

	current, err := c.library.GetUserData(account.LocalUserID, item.ID)
	if err != nil {
		c.logger.WithError(err).WithField("item_id", item.ID).Error("Failed to read user data")
		return outcomeFailed
	}

	updated := current.Clone()
	changed := false

	// a missing episode number never matches, not even a remote entry numbered -1
	var episode *trakt.WatchedEpisode
	found := false
	if item.EpisodeNumber != nil {
		episode, found = season.Episode(*item.EpisodeNumber)
	}

	if found {
		logger.Log(level, "Episode is in watched list")

		lastWatched := episode.LastWatchedAt
		if lastWatched == nil {
			lastWatched = show.LastWatchedAt
		}
		if mergeWatched(updated, episode.Plays, lastWatched, c.now()) {
			changed = true
		}

		playback, isPaused := match.Find(match.KindShow, match.Episode(item), snap.playbackEpisodes, func(p trakt.PlaybackEpisode) match.Identity {
			return p.Episode.Identity()
		})
		if isPaused && applyProgress(updated, item.Runtime, playback.Progress) {
			changed = true
		}
	} else if !account.SkipUnwatchedImport {
		logger.Log(level, "Episode not in watched season, marking unwatched")
		changed = markUnwatched(updated)
	}

	return c.save(account, item, updated, changed)
}

// save writes the merged state when it differs from what was read
func (c *SyncController) save(account models.LinkedAccount, item models.MediaItem, data *models.UserData, changed bool) itemOutcome {
	if !changed {
		return outcomeUnchanged
	}

	if err := c.library.SaveUserData(data); err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"account": account.ID,
			"item_id": item.ID,
			"item":    item.String(),
		}).Error("Failed to save user data")
		return outcomeFailed
	}

	c.itemLogger(account, item).WithFields(logrus.Fields{
		"played":     data.Played,
		"play_count": data.PlayCount,
	}).Log(c.itemLevel(account), "User data updated from Trakt")
	return outcomeUpdated
}

func (c *SyncController) itemLogger(account models.LinkedAccount, item models.MediaItem) *logrus.Entry {
	return c.logger.WithFields(logrus.Fields{
		"account": account.ID,
		"item_id": item.ID,
		"item":    item.String(),
	})
}

// itemLevel promotes per-item decisions to info for accounts with extra logging
func (c *SyncController) itemLevel(account models.LinkedAccount) logrus.Level {
	if account.ExtraLogging {
		return logrus.InfoLevel
	}
	return logrus.DebugLevel
}

// progressTracker combines per-account fractions into one 0-100 value
type progressTracker struct {
	mu     sync.Mutex
	parts  []float64
	report func(float64)
}

func newProgressTracker(n int, report func(float64)) *progressTracker {
	return &progressTracker{parts: make([]float64, n), report: report}
}

func (t *progressTracker) set(i int, fraction float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if fraction > t.parts[i] {
		t.parts[i] = fraction
	}
	total := 0.0
	for _, part := range t.parts {
		total += part
	}
	t.report(100 * total / float64(len(t.parts)))
}
