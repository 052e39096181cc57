package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanSync(t *testing.T) {
	account := LinkedAccount{ExcludedLocations: []string{"/media/kids", "", "/srv/tv/"}}

	tests := []struct {
		path string
		want bool
	}{
		{"", true},
		{"/media/movies/heat.mkv", true},
		{"/media/kids/cars.mkv", false},
		{"/media/kids", false},
		{"/media/kidsmovies/up.mkv", true},
		{"/srv/tv/show/s01e01.mkv", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, account.CanSync(MediaItem{Path: tt.path}), tt.path)
	}
}

func TestMediaItemString(t *testing.T) {
	movie := MediaItem{Type: MediaTypeMovie, Name: "Heat", Year: 1995}
	assert.Equal(t, "Heat (1995)", movie.String())

	season := 2
	episode := MediaItem{Type: MediaTypeEpisode, Name: "Pilot", SeriesName: "Show", SeasonNumber: &season}
	assert.Equal(t, "2xnull 'Pilot' (Show)", episode.String())
}
