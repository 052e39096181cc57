package controllers

import (
	"time"

	"github.com/amaumene/traktsync/internal/models"
)

// mergeWatched applies a remote watched record to local user data.
//
// The item becomes played, the play count never decreases and the
// last-played timestamp is the later of the local and remote values.
// now is only used when an item becomes played and neither side has a
// timestamp. Returns whether anything changed.
func mergeWatched(data *models.UserData, plays int, remoteLastWatched *time.Time, now time.Time) bool {
	before := data.Clone()

	latest := laterOf(data.LastPlayedAt, remoteLastWatched)
	if !data.Played {
		data.Played = true
		if latest == nil {
			latest = &now
		}
	}
	if latest != nil {
		t := latest.UTC()
		data.LastPlayedAt = &t
	}

	if plays > data.PlayCount {
		data.PlayCount = plays
	}

	return !data.Equal(before)
}

// applyProgress overwrites the resume point from a remote paused record
func applyProgress(data *models.UserData, runtime time.Duration, progress float64) bool {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	position := time.Duration(float64(runtime) * (progress / 100))
	if data.PlaybackPosition == position {
		return false
	}
	data.PlaybackPosition = position
	return true
}

// markUnwatched resets an item the remote side reports as not watched
func markUnwatched(data *models.UserData) bool {
	changed := data.Played || data.PlayCount != 0 || data.LastPlayedAt != nil
	data.Played = false
	data.PlayCount = 0
	data.LastPlayedAt = nil
	return changed
}

func laterOf(a, b *time.Time) *time.Time {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case b.After(*a):
		return b
	default:
		return a
	}
}
