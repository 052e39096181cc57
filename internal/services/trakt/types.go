package trakt

import (
	"strconv"
	"time"

	"github.com/amaumene/traktsync/internal/match"
	"github.com/amaumene/traktsync/internal/models"
)

// IDs holds the identifiers Trakt attaches to movies, shows and episodes
type IDs struct {
	Trakt  int    `json:"trakt,omitempty"`
	Slug   string `json:"slug,omitempty"`
	IMDB   string `json:"imdb,omitempty"`
	TMDB   int    `json:"tmdb,omitempty"`
	TVDB   int    `json:"tvdb,omitempty"`
	TVRage int    `json:"tvrage,omitempty"`
}

// ProviderIDs converts Trakt ids to the library representation
func (ids IDs) ProviderIDs() models.ProviderIDs {
	return models.ProviderIDs{
		IMDB:   ids.IMDB,
		TMDB:   itoa(ids.TMDB),
		TVDB:   itoa(ids.TVDB),
		TVRage: itoa(ids.TVRage),
	}
}

// IDsFromProvider converts library provider ids to Trakt ids; unparsable numbers are dropped
func IDsFromProvider(p models.ProviderIDs) IDs {
	return IDs{
		IMDB:   p.IMDB,
		TMDB:   atoi(p.TMDB),
		TVDB:   atoi(p.TVDB),
		TVRage: atoi(p.TVRage),
	}
}

func itoa(v int) string {
	if v <= 0 {
		return ""
	}
	return strconv.Itoa(v)
}

func atoi(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// Movie is a Trakt movie reference
type Movie struct {
	Title string `json:"title,omitempty"`
	Year  int    `json:"year,omitempty"`
	IDs   IDs    `json:"ids"`
}

// Identity returns the matching view of the movie
func (m Movie) Identity() match.Identity {
	return match.Identity{Title: m.Title, Year: m.Year, IDs: m.IDs.ProviderIDs()}
}

// Show is a Trakt show reference
type Show struct {
	Title string `json:"title,omitempty"`
	Year  int    `json:"year,omitempty"`
	IDs   IDs    `json:"ids"`
}

// Identity returns the matching view of the show
func (s Show) Identity() match.Identity {
	return match.Identity{Title: s.Title, Year: s.Year, IDs: s.IDs.ProviderIDs()}
}

// Episode is a Trakt episode reference
type Episode struct {
	Season int    `json:"season"`
	Number int    `json:"number"`
	Title  string `json:"title,omitempty"`
	IDs    IDs    `json:"ids"`
}

// Identity returns the matching view of the episode
func (e Episode) Identity() match.Identity {
	return match.Identity{Title: e.Title, IDs: e.IDs.ProviderIDs()}
}

// WatchedMovie is an entry of /sync/watched/movies
type WatchedMovie struct {
	Plays         int        `json:"plays"`
	LastWatchedAt *time.Time `json:"last_watched_at"`
	Movie         Movie      `json:"movie"`
}

// WatchedShow is an entry of /sync/watched/shows
type WatchedShow struct {
	Plays         int             `json:"plays"`
	LastWatchedAt *time.Time      `json:"last_watched_at"`
	Show          Show            `json:"show"`
	Seasons       []WatchedSeason `json:"seasons"`
}

// WatchedSeason lists the watched episodes of one season
type WatchedSeason struct {
	Number   int              `json:"number"`
	Episodes []WatchedEpisode `json:"episodes"`
}

// WatchedEpisode is one watched episode with its play count
type WatchedEpisode struct {
	Number        int        `json:"number"`
	Plays         int        `json:"plays"`
	LastWatchedAt *time.Time `json:"last_watched_at"`
}

// Season returns the watched season with the given number
func (s WatchedShow) Season(number int) (*WatchedSeason, bool) {
	for i := range s.Seasons {
		if s.Seasons[i].Number == number {
			return &s.Seasons[i], true
		}
	}
	return nil, false
}

// Episode returns the watched episode with the given number
func (s WatchedSeason) Episode(number int) (*WatchedEpisode, bool) {
	for i := range s.Episodes {
		if s.Episodes[i].Number == number {
			return &s.Episodes[i], true
		}
	}
	return nil, false
}

// PlaybackMovie is an in-progress movie from /sync/playback/movies
type PlaybackMovie struct {
	ID       int64     `json:"id"`
	Progress float64   `json:"progress"` // 0-100
	PausedAt time.Time `json:"paused_at"`
	Movie    Movie     `json:"movie"`
}

// PlaybackEpisode is an in-progress episode from /sync/playback/episodes
type PlaybackEpisode struct {
	ID       int64     `json:"id"`
	Progress float64   `json:"progress"` // 0-100
	PausedAt time.Time `json:"paused_at"`
	Episode  Episode   `json:"episode"`
	Show     Show      `json:"show"`
}

// SyncRequest is the body of /sync/history and /sync/history/remove
type SyncRequest struct {
	Movies   []SyncMovie   `json:"movies,omitempty"`
	Shows    []SyncShow    `json:"shows,omitempty"`
	Episodes []SyncEpisode `json:"episodes,omitempty"`
}

// SyncMovie is a movie entry of a sync request
type SyncMovie struct {
	Title     string `json:"title,omitempty"`
	Year      int    `json:"year,omitempty"`
	IDs       IDs    `json:"ids"`
	WatchedAt string `json:"watched_at,omitempty"`
}

// SyncShow is a show entry of a sync request
type SyncShow struct {
	Title   string       `json:"title,omitempty"`
	Year    int          `json:"year,omitempty"`
	IDs     IDs          `json:"ids"`
	Seasons []SyncSeason `json:"seasons"`
}

// SyncSeason is a season entry of a sync request
type SyncSeason struct {
	Number   int           `json:"number"`
	Episodes []SyncEpisode `json:"episodes"`
}

// SyncEpisode is an episode entry of a sync request
type SyncEpisode struct {
	Number    int    `json:"number,omitempty"`
	IDs       *IDs   `json:"ids,omitempty"`
	WatchedAt string `json:"watched_at,omitempty"`
}

// SyncCounts counts movies and episodes in a sync response
type SyncCounts struct {
	Movies   int `json:"movies"`
	Episodes int `json:"episodes"`
}

// SyncResponse is the response of /sync/history and /sync/history/remove
type SyncResponse struct {
	Added    SyncCounts `json:"added"`
	Deleted  SyncCounts `json:"deleted"`
	Existing SyncCounts `json:"existing"`
	NotFound struct {
		Movies   []SyncMovie   `json:"movies"`
		Shows    []SyncShow    `json:"shows"`
		Episodes []SyncEpisode `json:"episodes"`
	} `json:"not_found"`
}

// ScrobbleAction is a playback status transition
type ScrobbleAction string

const (
	ScrobbleStart ScrobbleAction = "start"
	ScrobblePause ScrobbleAction = "pause"
	ScrobbleStop  ScrobbleAction = "stop"
)

// ScrobbleRequest is the body of /scrobble/{action}
type ScrobbleRequest struct {
	Movie    *Movie   `json:"movie,omitempty"`
	Show     *Show    `json:"show,omitempty"`
	Episode  *Episode `json:"episode,omitempty"`
	Progress float64  `json:"progress"`
}

// ScrobbleResponse is the response of /scrobble/{action}
type ScrobbleResponse struct {
	ID       int64   `json:"id"`
	Action   string  `json:"action"`
	Progress float64 `json:"progress"`
}
