package controllers

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/amaumene/traktsync/internal/models"
	"github.com/amaumene/traktsync/internal/services/trakt"
)

// playbackLookup serves in-progress snapshots for point checks.
// Concurrent lookups for one account share a single remote call and the
// result is kept for a short time.
type playbackLookup struct {
	remote Remote
	ttl    time.Duration
	cache  *cache.Cache
	group  singleflight.Group
}

func newPlaybackLookup(remote Remote, ttl time.Duration) *playbackLookup {
	return &playbackLookup{
		remote: remote,
		ttl:    ttl,
		cache:  cache.New(ttl, time.Minute),
	}
}

func (p *playbackLookup) movies(ctx context.Context, account models.LinkedAccount) ([]trakt.PlaybackMovie, error) {
	v, err := p.load(ctx, "movies:"+account.ID, func() (interface{}, error) {
		return p.remote.GetPlaybackMovies(ctx, account)
	})
	if err != nil {
		return nil, err
	}
	return v.([]trakt.PlaybackMovie), nil
}

func (p *playbackLookup) episodes(ctx context.Context, account models.LinkedAccount) ([]trakt.PlaybackEpisode, error) {
	v, err := p.load(ctx, "episodes:"+account.ID, func() (interface{}, error) {
		return p.remote.GetPlaybackEpisodes(ctx, account)
	})
	if err != nil {
		return nil, err
	}
	return v.([]trakt.PlaybackEpisode), nil
}

func (p *playbackLookup) load(ctx context.Context, key string, fetch func() (interface{}, error)) (interface{}, error) {
	if v, ok := p.cache.Get(key); ok {
		return v, nil
	}

	v, err, _ := p.group.Do(key, func() (interface{}, error) {
		items, err := fetch()
		if err != nil {
			return nil, err
		}
		if p.ttl > 0 {
			p.cache.Set(key, items, p.ttl)
		}
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return v, nil
}

// invalidate drops the cached snapshots of an account
func (p *playbackLookup) invalidate(accountID string) {
	p.cache.Delete("movies:" + accountID)
	p.cache.Delete("episodes:" + accountID)
}
