package models

import "errors"

// ErrNotFound is returned when a library record does not exist
var ErrNotFound = errors.New("not found")

// MediaType represents the type of a library item
type MediaType string

const (
	MediaTypeMovie   MediaType = "movie"
	MediaTypeEpisode MediaType = "episode"
)

// ProviderIDs holds the external identifiers known for an item.
// An empty string means the provider id is absent.
type ProviderIDs struct {
	IMDB   string `json:"imdb,omitempty" mapstructure:"imdb"`
	TMDB   string `json:"tmdb,omitempty" mapstructure:"tmdb"`
	TVDB   string `json:"tvdb,omitempty" mapstructure:"tvdb"`
	TVRage string `json:"tvrage,omitempty" mapstructure:"tvrage"`
}

// IsEmpty reports whether no provider id is set
func (p ProviderIDs) IsEmpty() bool {
	return p.IMDB == "" && p.TMDB == "" && p.TVDB == "" && p.TVRage == ""
}
