package models

import "time"

// UserData holds the watch state of one item for one local user
type UserData struct {
	Key    string `boltholdKey:"Key" json:"-"`
	UserID string `boltholdIndex:"UserID" json:"user_id"`
	ItemID string `json:"item_id"`

	Played           bool          `json:"played"`
	PlayCount        int           `json:"play_count"`
	LastPlayedAt     *time.Time    `json:"last_played_at,omitempty"`
	PlaybackPosition time.Duration `json:"playback_position"` // resume point, zero when not in progress
}

// UserDataKey builds the store key for a (user, item) pair
func UserDataKey(userID, itemID string) string {
	return userID + ":" + itemID
}

// Clone returns a deep copy so that merges never alias the read state
func (u *UserData) Clone() *UserData {
	c := *u
	if u.LastPlayedAt != nil {
		t := *u.LastPlayedAt
		c.LastPlayedAt = &t
	}
	return &c
}

// Equal reports whether two records hold the same watch state
func (u *UserData) Equal(other *UserData) bool {
	if u.Played != other.Played || u.PlayCount != other.PlayCount || u.PlaybackPosition != other.PlaybackPosition {
		return false
	}
	if u.LastPlayedAt == nil || other.LastPlayedAt == nil {
		return u.LastPlayedAt == nil && other.LastPlayedAt == nil
	}
	return u.LastPlayedAt.Equal(*other.LastPlayedAt)
}
