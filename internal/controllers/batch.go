package controllers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/amaumene/traktsync/internal/match"
	"github.com/amaumene/traktsync/internal/metrics"
	"github.com/amaumene/traktsync/internal/models"
	"github.com/amaumene/traktsync/internal/services/trakt"
)

// ErrBatcherClosed is returned for events handed to a closed batcher
var ErrBatcherClosed = errors.New("batcher is closed")

const (
	triggerCap    = "cap"
	triggerSeries = "series_change"
	triggerTimer  = "timer"
	triggerClose  = "close"
)

// pendingBatch holds the buffered events of one linked account
type pendingBatch struct {
	account       models.LinkedAccount
	currentSeries string

	seenMovies     []models.PlaystateEvent
	unseenMovies   []models.PlaystateEvent
	seenEpisodes   []models.PlaystateEvent
	unseenEpisodes []models.PlaystateEvent
}

func (p *pendingBatch) size() int {
	return len(p.seenMovies) + len(p.unseenMovies) + len(p.seenEpisodes) + len(p.unseenEpisodes)
}

// flush is a bucket swapped out of a pending batch, ready to be sent
type flush struct {
	account   models.LinkedAccount
	mediaType models.MediaType
	seen      bool
	trigger   string
	events    []models.PlaystateEvent
}

// PendingCounts reports the buffered events of one account
type PendingCounts struct {
	SeenMovies     int `json:"seen_movies"`
	UnseenMovies   int `json:"unseen_movies"`
	SeenEpisodes   int `json:"seen_episodes"`
	UnseenEpisodes int `json:"unseen_episodes"`
}

// Batcher turns live playstate events into bulk watch history calls.
//
// One debounce timer is shared by every account: any event postpones the
// flush of all pending batches until no event arrived for the quiet period.
// Buckets reaching maxSize are flushed right away, and an episode of another
// series flushes the account's episode buckets first.
type Batcher struct {
	remote   Remote
	quiet    time.Duration
	maxSize  int
	playback *playbackLookup
	logger   *logrus.Logger
	tracer   trace.Tracer

	mu      sync.Mutex
	batches map[string]*pendingBatch
	order   []string
	timer   *time.Timer
	closed  bool

	inflight sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewBatcher creates a new batcher
func NewBatcher(remote Remote, quiet time.Duration, maxSize int, playbackTTL time.Duration, logger *logrus.Logger) *Batcher {
	if maxSize < 1 {
		maxSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Batcher{
		remote:   remote,
		quiet:    quiet,
		maxSize:  maxSize,
		playback: newPlaybackLookup(remote, playbackTTL),
		logger:   logger,
		tracer:   otel.Tracer(tracerName),
		batches:  make(map[string]*pendingBatch),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// HandleEvent buffers one playstate event for an account.
// Flushes forced by the size cap or a series change are sent before
// returning. A played event also stops a matching in-progress record.
func (b *Batcher) HandleEvent(ctx context.Context, event models.PlaystateEvent, account models.LinkedAccount) error {
	if !event.Item.IsMovie() && !event.Item.IsEpisode() {
		return fmt.Errorf("unsupported item type %q", event.Item.Type)
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBatcherClosed
	}

	b.armTimer()
	batch := b.batchFor(account)

	var flushes []flush
	if event.Item.IsMovie() {
		bucket := &batch.unseenMovies
		if event.Played {
			bucket = &batch.seenMovies
		}
		*bucket = append(*bucket, event)
		if len(*bucket) >= b.maxSize {
			flushes = append(flushes, takeBucket(batch, bucket, models.MediaTypeMovie, event.Played, triggerCap))
		}
	} else {
		if batch.currentSeries != event.Item.SeriesID {
			flushes = append(flushes,
				takeBucket(batch, &batch.unseenEpisodes, models.MediaTypeEpisode, false, triggerSeries),
				takeBucket(batch, &batch.seenEpisodes, models.MediaTypeEpisode, true, triggerSeries),
			)
			batch.currentSeries = event.Item.SeriesID
		}

		bucket := &batch.unseenEpisodes
		if event.Played {
			bucket = &batch.seenEpisodes
		}
		*bucket = append(*bucket, event)
		if len(*bucket) >= b.maxSize {
			flushes = append(flushes, takeBucket(batch, bucket, models.MediaTypeEpisode, event.Played, triggerCap))
		}
	}

	b.inflight.Add(1)
	b.updatePendingGauge()
	b.mu.Unlock()

	metrics.Events.WithLabelValues(string(event.Item.Type), strconv.FormatBool(event.Played)).Inc()

	b.sendAll(flushes)
	b.inflight.Done()

	if event.Played {
		b.pointCheck(ctx, event, account)
	}
	return nil
}

// Pending returns the buffered event counts per account
func (b *Batcher) Pending() map[string]PendingCounts {
	b.mu.Lock()
	defer b.mu.Unlock()

	pending := make(map[string]PendingCounts, len(b.batches))
	for id, batch := range b.batches {
		pending[id] = PendingCounts{
			SeenMovies:     len(batch.seenMovies),
			UnseenMovies:   len(batch.unseenMovies),
			SeenEpisodes:   len(batch.seenEpisodes),
			UnseenEpisodes: len(batch.unseenEpisodes),
		}
	}
	return pending
}

// Close stops the timer, flushes every pending bucket and waits for
// in-flight flushes. Events handed in afterwards are rejected.
func (b *Batcher) Close(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	if b.timer != nil {
		b.timer.Stop()
	}
	flushes := b.takeAll(triggerClose)
	b.updatePendingGauge()
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.sendAll(flushes)
		b.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.cancel()
		return nil
	case <-ctx.Done():
		b.cancel()
		return fmt.Errorf("waiting for pending flushes: %w", ctx.Err())
	}
}

// armTimer (re)starts the shared debounce timer. Caller holds b.mu.
func (b *Batcher) armTimer() {
	if b.timer == nil {
		b.timer = time.AfterFunc(b.quiet, b.onTimer)
		return
	}
	b.timer.Reset(b.quiet)
}

// batchFor returns the pending batch of an account. Caller holds b.mu.
func (b *Batcher) batchFor(account models.LinkedAccount) *pendingBatch {
	batch, ok := b.batches[account.ID]
	if !ok {
		batch = &pendingBatch{}
		b.batches[account.ID] = batch
		b.order = append(b.order, account.ID)
	}
	batch.account = account
	return batch
}

func (b *Batcher) onTimer() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	flushes := b.takeAll(triggerTimer)
	b.inflight.Add(1)
	b.updatePendingGauge()
	b.mu.Unlock()

	defer b.inflight.Done()
	if len(flushes) > 0 {
		b.logger.WithField("count", len(flushes)).Debug("Debounce timer fired, flushing pending batches")
	}
	b.sendAll(flushes)
}

// takeAll swaps out every non-empty bucket of every account. Caller holds b.mu.
func (b *Batcher) takeAll(trigger string) []flush {
	var flushes []flush
	for _, id := range b.order {
		batch := b.batches[id]
		flushes = append(flushes,
			takeBucket(batch, &batch.unseenMovies, models.MediaTypeMovie, false, trigger),
			takeBucket(batch, &batch.seenMovies, models.MediaTypeMovie, true, trigger),
			takeBucket(batch, &batch.unseenEpisodes, models.MediaTypeEpisode, false, trigger),
			takeBucket(batch, &batch.seenEpisodes, models.MediaTypeEpisode, true, trigger),
		)
	}
	return flushes
}

// takeBucket detaches a bucket so later events start a new generation
func takeBucket(batch *pendingBatch, bucket *[]models.PlaystateEvent, mediaType models.MediaType, seen bool, trigger string) flush {
	events := *bucket
	*bucket = nil
	return flush{
		account:   batch.account,
		mediaType: mediaType,
		seen:      seen,
		trigger:   trigger,
		events:    events,
	}
}

func (b *Batcher) updatePendingGauge() {
	total := 0
	for _, batch := range b.batches {
		total += batch.size()
	}
	metrics.PendingItems.Set(float64(total))
}

func (b *Batcher) sendAll(flushes []flush) {
	for _, f := range flushes {
		if len(f.events) == 0 {
			continue
		}
		b.send(f)
	}
}

// send issues one bulk history call. Failed batches are logged and dropped.
func (b *Batcher) send(f flush) {
	flushID := uuid.NewString()
	seen := strconv.FormatBool(f.seen)

	ctx, span := b.tracer.Start(b.ctx, "batch.flush", trace.WithAttributes(
		attribute.String("flush_id", flushID),
		attribute.String("account", f.account.ID),
		attribute.String("type", string(f.mediaType)),
		attribute.Bool("seen", f.seen),
		attribute.Int("count", len(f.events)),
	))
	defer span.End()

	logger := b.logger.WithFields(logrus.Fields{
		"flush_id": flushID,
		"account":  f.account.ID,
		"type":     f.mediaType,
		"seen":     f.seen,
		"trigger":  f.trigger,
		"count":    len(f.events),
	})

	var err error
	if f.mediaType == models.MediaTypeMovie {
		err = b.remote.SendMoviePlaystates(ctx, f.account, f.events, f.seen)
	} else {
		err = b.remote.SendEpisodePlaystates(ctx, f.account, f.events, f.seen)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.Flushes.WithLabelValues(string(f.mediaType), seen, f.trigger, "error").Inc()
		logger.WithError(err).WithField("items", describeEvents(f.events)).Error("Failed to send playstates, batch discarded")
		return
	}

	metrics.Flushes.WithLabelValues(string(f.mediaType), seen, f.trigger, "ok").Inc()
	metrics.FlushedItems.WithLabelValues(string(f.mediaType), seen).Add(float64(len(f.events)))
	logger.Info("Playstates sent to Trakt")
}

// pointCheck stops a remote in-progress record matching a played item
func (b *Batcher) pointCheck(ctx context.Context, event models.PlaystateEvent, account models.LinkedAccount) {
	item := event.Item
	logger := b.logger.WithFields(logrus.Fields{
		"account": account.ID,
		"item_id": item.ID,
		"item":    item.String(),
	})

	var found bool
	var err error
	if item.IsMovie() {
		var records []trakt.PlaybackMovie
		if records, err = b.playback.movies(ctx, account); err == nil {
			_, found = match.Find(match.KindMovie, match.Movie(item), records, func(p trakt.PlaybackMovie) match.Identity {
				return p.Movie.Identity()
			})
			if found {
				err = b.remote.ScrobbleMovie(ctx, account, item, trakt.ScrobbleStop, 100)
			}
		}
	} else {
		var records []trakt.PlaybackEpisode
		if records, err = b.playback.episodes(ctx, account); err == nil {
			_, found = match.Find(match.KindShow, match.Episode(item), records, func(p trakt.PlaybackEpisode) match.Identity {
				return p.Episode.Identity()
			})
			if found {
				err = b.remote.ScrobbleEpisode(ctx, account, item, trakt.ScrobbleStop, 100)
			}
		}
	}

	switch {
	case err != nil:
		metrics.PointChecks.WithLabelValues("error").Inc()
		logger.WithError(err).Warn("Failed to clear in-progress playback on Trakt")
	case found:
		b.playback.invalidate(account.ID)
		metrics.PointChecks.WithLabelValues("stopped").Inc()
		logger.Info("Cleared in-progress playback on Trakt")
	default:
		metrics.PointChecks.WithLabelValues("no_match").Inc()
	}
}

func describeEvents(events []models.PlaystateEvent) []string {
	items := make([]string, 0, len(events))
	for _, event := range events {
		items = append(items, event.Item.ID+" "+event.Item.String())
	}
	return items
}
