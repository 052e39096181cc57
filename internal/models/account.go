package models

import (
	"path/filepath"
	"strings"
	"time"
)

// LinkedAccount links a local user to a Trakt account
type LinkedAccount struct {
	ID           string `mapstructure:"id" json:"id"`
	LocalUserID  string `mapstructure:"local_user_id" json:"local_user_id"`
	Username     string `mapstructure:"username" json:"username"`
	AccessToken  string `mapstructure:"access_token" json:"-"`
	RefreshToken string `mapstructure:"refresh_token" json:"-"`

	// Sync toggles
	SkipUnwatchedImport bool `mapstructure:"skip_unwatched_import" json:"skip_unwatched_import"`
	PostWatchedHistory  bool `mapstructure:"post_watched_history" json:"post_watched_history"`
	SyncCollection      bool `mapstructure:"sync_collection" json:"sync_collection"` // collection sync is not implemented; reported only
	ExtraLogging        bool `mapstructure:"extra_logging" json:"extra_logging"`

	ExcludedLocations []string `mapstructure:"excluded_locations" json:"excluded_locations"`
}

// CanSync reports whether an item lies outside every excluded location
func (a LinkedAccount) CanSync(item MediaItem) bool {
	if item.Path == "" {
		return true
	}
	path := filepath.Clean(item.Path)
	for _, location := range a.ExcludedLocations {
		if location == "" {
			continue
		}
		location = filepath.Clean(location)
		if path == location || strings.HasPrefix(path, location+string(filepath.Separator)) {
			return false
		}
	}
	return true
}

// Token is the persisted Trakt credential of a linked account
type Token struct {
	AccountID    string    `boltholdKey:"AccountID" json:"-"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}
