package models

import (
	"fmt"
	"time"
)

// MediaItem is a movie or episode known to the local library
type MediaItem struct {
	ID       string    `boltholdKey:"ID" json:"id"`
	Type     MediaType `boltholdIndex:"Type" json:"type"`
	Name     string    `json:"name"`
	SortName string    `json:"sort_name,omitempty"`
	Year     int       `json:"year,omitempty"`
	Path     string    `json:"path,omitempty"`

	ProviderIDs ProviderIDs   `json:"provider_ids"`
	Runtime     time.Duration `json:"runtime"`

	// Episode specific fields
	SeriesID          string      `json:"series_id,omitempty"`
	SeriesName        string      `json:"series_name,omitempty"`
	SeriesYear        int         `json:"series_year,omitempty"`
	SeriesProviderIDs ProviderIDs `json:"series_provider_ids"`
	SeasonNumber      *int        `json:"season_number,omitempty"`  // nil when unknown
	EpisodeNumber     *int        `json:"episode_number,omitempty"` // nil when unknown
}

// IsMovie reports whether the item is a movie
func (m MediaItem) IsMovie() bool {
	return m.Type == MediaTypeMovie
}

// IsEpisode reports whether the item is an episode
func (m MediaItem) IsEpisode() bool {
	return m.Type == MediaTypeEpisode
}

// String returns a human readable description used in logs
func (m MediaItem) String() string {
	if !m.IsEpisode() {
		return fmt.Sprintf("%s (%d)", m.Name, m.Year)
	}

	season, episode := "null", "null"
	if m.SeasonNumber != nil {
		season = fmt.Sprint(*m.SeasonNumber)
	}
	if m.EpisodeNumber != nil {
		episode = fmt.Sprint(*m.EpisodeNumber)
	}
	series := m.SeriesName
	if series == "" {
		series = "unknown series"
	}
	return fmt.Sprintf("%sx%s '%s' (%s)", season, episode, m.Name, series)
}

// PlaystateEvent is a local played/unplayed transition for one item
type PlaystateEvent struct {
	UserID   string
	Item     MediaItem
	Played   bool
	PlayedAt *time.Time
}
