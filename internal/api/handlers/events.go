package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/amaumene/traktsync/internal/models"
)

// EventDispatcher routes a local playstate change to the linked accounts
type EventDispatcher interface {
	Dispatch(ctx context.Context, userID, itemID string, played bool, playedAt *time.Time) (int, error)
}

// PlaystateRequest is a local played/unplayed notification
type PlaystateRequest struct {
	UserID   string     `json:"user_id"`
	ItemID   string     `json:"item_id"`
	Played   bool       `json:"played"`
	PlayedAt *time.Time `json:"played_at,omitempty"`
}

// Validate checks the required fields
func (r PlaystateRequest) Validate() error {
	if r.UserID == "" || r.ItemID == "" {
		return errors.New("user_id and item_id are required")
	}
	return nil
}

// EventsHandler handles playstate notifications
type EventsHandler struct {
	dispatcher EventDispatcher
	logger     *logrus.Logger
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(dispatcher EventDispatcher, logger *logrus.Logger) *EventsHandler {
	return &EventsHandler{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Post handles a playstate notification
func (h *EventsHandler) Post(c *fiber.Ctx) error {
	var req PlaystateRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.WithError(err).Error("Failed to decode playstate event")
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := req.Validate(); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	h.logger.WithFields(logrus.Fields{
		"user_id": req.UserID,
		"item_id": req.ItemID,
		"played":  req.Played,
	}).Debug("Received playstate event")

	dispatched, err := h.dispatcher.Dispatch(c.UserContext(), req.UserID, req.ItemID, req.Played, req.PlayedAt)
	if err != nil {
		return dispatchError(h.logger, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"accounts": dispatched})
}

func dispatchError(logger *logrus.Logger, err error) error {
	if errors.Is(err, models.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "Item not found")
	}
	logger.WithError(err).Error("Failed to dispatch playstate event")
	return fiber.NewError(fiber.StatusInternalServerError, "Internal server error")
}
