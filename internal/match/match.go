// Package match decides whether a local library item and a Trakt record
// describe the same movie, show or episode.
package match

import (
	"strconv"
	"strings"

	"github.com/amaumene/traktsync/internal/models"
)

// Kind selects the rules used to compare two identities
type Kind int

const (
	// KindMovie compares IMDB and TMDB ids, then falls back to title and year
	KindMovie Kind = iota
	// KindShow compares IMDB, TMDB, TVDB and TVRage ids; used for shows and episodes
	KindShow
)

// Identity is the side-neutral view of an item used for matching
type Identity struct {
	Title string
	Year  int
	IDs   models.ProviderIDs
}

// outcome of a single identifier test
type outcome int

const (
	incomparable outcome = iota
	mismatch
	matched
)

// IsMatch reports whether a and b are the same item.
//
// Identifier tests run in order IMDB, TMDB, TVDB, TVRage (the last two for
// shows only) and the first equal pair wins. A test only applies when both
// sides carry that identifier. When no identifier matched, movies fall back
// to exact title and year unless both sides carry differing IMDB ids.
func IsMatch(kind Kind, a, b Identity) bool {
	tests := []outcome{
		compareStrings(a.IDs.IMDB, b.IDs.IMDB),
		compareNumeric(a.IDs.TMDB, b.IDs.TMDB),
	}
	if kind == KindShow {
		tests = append(tests,
			compareStrings(a.IDs.TVDB, b.IDs.TVDB),
			compareStrings(a.IDs.TVRage, b.IDs.TVRage),
		)
	}

	for _, result := range tests {
		if result == matched {
			return true
		}
	}

	// a conflicting IMDB id is decisive
	if kind != KindMovie || tests[0] == mismatch {
		return false
	}
	return a.Title != "" && a.Title == b.Title && a.Year == b.Year
}

// Find returns the first candidate matching target
func Find[T any](kind Kind, target Identity, candidates []T, identity func(T) Identity) (T, bool) {
	for _, candidate := range candidates {
		if IsMatch(kind, target, identity(candidate)) {
			return candidate, true
		}
	}
	var zero T
	return zero, false
}

// Movie returns the identity of a local movie
func Movie(item models.MediaItem) Identity {
	return Identity{Title: item.Name, Year: item.Year, IDs: item.ProviderIDs}
}

// Series returns the identity of the series a local episode belongs to
func Series(item models.MediaItem) Identity {
	return Identity{Title: item.SeriesName, Year: item.SeriesYear, IDs: item.SeriesProviderIDs}
}

// Episode returns the identity of a local episode
func Episode(item models.MediaItem) Identity {
	return Identity{Title: item.Name, IDs: item.ProviderIDs}
}

func compareStrings(a, b string) outcome {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return incomparable
	}
	if strings.EqualFold(a, b) {
		return matched
	}
	return mismatch
}

func compareNumeric(a, b string) outcome {
	x, okA := parseID(a)
	y, okB := parseID(b)
	if !okA || !okB {
		return incomparable
	}
	if x == y {
		return matched
	}
	return mismatch
}

func parseID(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}
