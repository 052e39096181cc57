package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/amaumene/traktsync/internal/models"
)

// LibraryStore is the local library written by the media server
type LibraryStore interface {
	UpsertItem(item *models.MediaItem) error
	GetItem(id string) (*models.MediaItem, error)
	GetUserData(userID, itemID string) (*models.UserData, error)
	SaveUserData(data *models.UserData) error
}

// LibraryHandler handles library and user data updates
type LibraryHandler struct {
	store      LibraryStore
	dispatcher EventDispatcher
	logger     *logrus.Logger
}

// NewLibraryHandler creates a new library handler
func NewLibraryHandler(store LibraryStore, dispatcher EventDispatcher, logger *logrus.Logger) *LibraryHandler {
	return &LibraryHandler{
		store:      store,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// PutItems upserts a list of library items
func (h *LibraryHandler) PutItems(c *fiber.Ctx) error {
	var items []models.MediaItem
	if err := c.BodyParser(&items); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	for i := range items {
		if err := validateItem(items[i]); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
	}

	for i := range items {
		if err := h.store.UpsertItem(&items[i]); err != nil {
			h.logger.WithError(err).WithField("item_id", items[i].ID).Error("Failed to upsert item")
			return fiber.NewError(fiber.StatusInternalServerError, "Internal server error")
		}
	}

	h.logger.WithField("count", len(items)).Info("Library items updated")
	return c.JSON(fiber.Map{"upserted": len(items)})
}

func validateItem(item models.MediaItem) error {
	if item.ID == "" {
		return fmt.Errorf("item id is required")
	}
	switch item.Type {
	case models.MediaTypeMovie:
	case models.MediaTypeEpisode:
		if item.SeriesID == "" {
			return fmt.Errorf("episode %s has no series_id", item.ID)
		}
	default:
		return fmt.Errorf("item %s has unsupported type %q", item.ID, item.Type)
	}
	return nil
}

// PutUserData stores the watch state of one item. A change of the played
// flag is dispatched to the linked accounts of the user.
func (h *LibraryHandler) PutUserData(c *fiber.Ctx) error {
	var data models.UserData
	if err := c.BodyParser(&data); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if data.UserID == "" || data.ItemID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "user_id and item_id are required")
	}
	if data.PlayCount < 0 {
		return fiber.NewError(fiber.StatusBadRequest, "play_count cannot be negative")
	}

	if _, err := h.store.GetItem(data.ItemID); err != nil {
		return dispatchError(h.logger, err)
	}

	previous, err := h.store.GetUserData(data.UserID, data.ItemID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to read user data")
		return fiber.NewError(fiber.StatusInternalServerError, "Internal server error")
	}
	if err := h.store.SaveUserData(&data); err != nil {
		h.logger.WithError(err).Error("Failed to save user data")
		return fiber.NewError(fiber.StatusInternalServerError, "Internal server error")
	}

	dispatched := 0
	if previous.Played != data.Played {
		dispatched, err = h.dispatcher.Dispatch(c.UserContext(), data.UserID, data.ItemID, data.Played, data.LastPlayedAt)
		if err != nil {
			return dispatchError(h.logger, err)
		}
	}

	return c.JSON(fiber.Map{"dispatched": dispatched})
}
