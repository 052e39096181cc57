package controllers

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/amaumene/traktsync/internal/models"
)

// EventHandler accepts playstate events for one linked account
type EventHandler interface {
	HandleEvent(ctx context.Context, event models.PlaystateEvent, account models.LinkedAccount) error
}

// Dispatcher routes local playstate changes to the linked accounts of a user
type Dispatcher struct {
	library  Library
	handler  EventHandler
	accounts []models.LinkedAccount
	logger   *logrus.Logger
}

// NewDispatcher creates a new dispatcher
func NewDispatcher(library Library, handler EventHandler, accounts []models.LinkedAccount, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		library:  library,
		handler:  handler,
		accounts: accounts,
		logger:   logger,
	}
}

// Dispatch resolves an item and hands the event to every eligible account.
// It returns the number of accounts the event was handed to.
func (d *Dispatcher) Dispatch(ctx context.Context, userID, itemID string, played bool, playedAt *time.Time) (int, error) {
	item, err := d.library.GetItem(itemID)
	if err != nil {
		return 0, fmt.Errorf("failed to get item %s: %w", itemID, err)
	}
	if !item.IsMovie() && !item.IsEpisode() {
		d.logger.WithField("item_id", itemID).Debug("Ignoring event for unsupported item type")
		return 0, nil
	}

	if played && playedAt == nil {
		now := time.Now().UTC()
		playedAt = &now
	}
	event := models.PlaystateEvent{
		UserID:   userID,
		Item:     *item,
		Played:   played,
		PlayedAt: playedAt,
	}

	dispatched := 0
	for _, account := range d.accounts {
		if account.LocalUserID != userID {
			continue
		}

		logger := d.logger.WithFields(logrus.Fields{
			"account": account.ID,
			"item_id": item.ID,
			"item":    item.String(),
			"played":  played,
		})
		if !account.PostWatchedHistory {
			logger.Debug("Watched history export disabled for account")
			continue
		}
		if !account.CanSync(*item) {
			logger.Debug("Item is in an excluded location")
			continue
		}

		if err := d.handler.HandleEvent(ctx, event, account); err != nil {
			return dispatched, fmt.Errorf("failed to handle event for account %s: %w", account.ID, err)
		}
		dispatched++
	}

	return dispatched, nil
}
