package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/amaumene/traktsync/internal/scheduler"
)

// ImportTrigger starts an import in the background
type ImportTrigger interface {
	Trigger() error
}

// ImportHandler handles manual import requests
type ImportHandler struct {
	trigger ImportTrigger
	logger  *logrus.Logger
}

// NewImportHandler creates a new import handler
func NewImportHandler(trigger ImportTrigger, logger *logrus.Logger) *ImportHandler {
	return &ImportHandler{
		trigger: trigger,
		logger:  logger,
	}
}

// Post starts an import run
func (h *ImportHandler) Post(c *fiber.Ctx) error {
	if err := h.trigger.Trigger(); err != nil {
		if errors.Is(err, scheduler.ErrImportRunning) {
			return fiber.NewError(fiber.StatusConflict, err.Error())
		}
		h.logger.WithError(err).Error("Failed to start import")
		return fiber.NewError(fiber.StatusInternalServerError, "Internal server error")
	}

	h.logger.Info("Import triggered via API")
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "started"})
}
