package models

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/timshannon/bolthold"
	"go.etcd.io/bbolt"
)

// Database wraps the bolthold store
type Database struct {
	store *bolthold.Store
}

// NewDatabase creates a new database connection
func NewDatabase(path string) (*Database, error) {
	store, err := bolthold.Open(path, 0600, &bolthold.Options{
		Options: &bbolt.Options{
			Timeout: 1 * time.Second,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Database{store: store}, nil
}

// Close closes the database connection
func (db *Database) Close() error {
	return db.store.Close()
}

// Library item operations

// UpsertItem creates or replaces a library item
func (db *Database) UpsertItem(item *MediaItem) error {
	if item.ID == "" {
		return fmt.Errorf("item id is required")
	}
	return db.store.Upsert(item.ID, item)
}

// GetItem retrieves a library item by ID
func (db *Database) GetItem(id string) (*MediaItem, error) {
	var item MediaItem
	err := db.store.Get(id, &item)
	if errors.Is(err, bolthold.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// CountItems returns the number of library items
func (db *Database) CountItems() (int, error) {
	count, err := db.store.Count(&MediaItem{}, nil)
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

// ListItems returns the movies and episodes an account may sync, ordered by
// series then season/episode then sort name
func (db *Database) ListItems(account LinkedAccount) ([]MediaItem, error) {
	var items []MediaItem
	if err := db.store.Find(&items, nil); err != nil {
		return nil, err
	}

	eligible := items[:0]
	for _, item := range items {
		if !item.IsMovie() && !item.IsEpisode() {
			continue
		}
		if account.CanSync(item) {
			eligible = append(eligible, item)
		}
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		return itemLess(eligible[i], eligible[j])
	})
	return eligible, nil
}

func itemLess(a, b MediaItem) bool {
	if a.SeriesName != b.SeriesName {
		return a.SeriesName < b.SeriesName
	}
	if sa, sb := intOr(a.SeasonNumber, 0), intOr(b.SeasonNumber, 0); sa != sb {
		return sa < sb
	}
	if ea, eb := intOr(a.EpisodeNumber, -1), intOr(b.EpisodeNumber, -1); ea != eb {
		return ea < eb
	}
	return sortName(a) < sortName(b)
}

func sortName(item MediaItem) string {
	if item.SortName != "" {
		return item.SortName
	}
	return item.Name
}

func intOr(v *int, fallback int) int {
	if v == nil {
		return fallback
	}
	return *v
}

// User data operations

// GetUserData retrieves the watch state of an item for a user.
// A zero record is returned when nothing has been stored yet.
func (db *Database) GetUserData(userID, itemID string) (*UserData, error) {
	key := UserDataKey(userID, itemID)

	var data UserData
	err := db.store.Get(key, &data)
	if errors.Is(err, bolthold.ErrNotFound) {
		return &UserData{Key: key, UserID: userID, ItemID: itemID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &data, nil
}

// SaveUserData stores the watch state of an item for a user
func (db *Database) SaveUserData(data *UserData) error {
	if data.UserID == "" || data.ItemID == "" {
		return fmt.Errorf("user id and item id are required")
	}
	if data.PlayCount < 0 {
		return fmt.Errorf("play count cannot be negative: %d", data.PlayCount)
	}
	data.Key = UserDataKey(data.UserID, data.ItemID)
	return db.store.Upsert(data.Key, data)
}

// Token operations

// GetToken retrieves the stored Trakt token of an account
func (db *Database) GetToken(accountID string) (*Token, error) {
	var token Token
	err := db.store.Get(accountID, &token)
	if errors.Is(err, bolthold.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// SaveToken stores the Trakt token of an account
func (db *Database) SaveToken(accountID string, token *Token) error {
	token.AccountID = accountID
	return db.store.Upsert(accountID, token)
}

// SeedToken stores the configured credentials of an account unless a token
// (possibly refreshed since) is already stored
func (db *Database) SeedToken(account LinkedAccount) error {
	if account.AccessToken == "" {
		return nil
	}
	if _, err := db.GetToken(account.ID); err == nil {
		return nil
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	// Expiry unknown: assume a fresh Trakt token (valid for three months)
	return db.SaveToken(account.ID, &Token{
		AccessToken:  account.AccessToken,
		RefreshToken: account.RefreshToken,
		ExpiresAt:    time.Now().Add(90 * 24 * time.Hour),
	})
}
