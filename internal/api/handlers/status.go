package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/amaumene/traktsync/internal/controllers"
	"github.com/amaumene/traktsync/internal/models"
)

// ItemCounter counts library items
type ItemCounter interface {
	CountItems() (int, error)
}

// PendingReporter reports buffered playstate events per account
type PendingReporter interface {
	Pending() map[string]controllers.PendingCounts
}

// ImportState reports whether an import is in progress
type ImportState interface {
	Running() bool
}

// StatusHandler handles status requests
type StatusHandler struct {
	items    ItemCounter
	pending  PendingReporter
	imports  ImportState
	accounts []models.LinkedAccount
	logger   *logrus.Logger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(items ItemCounter, pending PendingReporter, imports ImportState, accounts []models.LinkedAccount, logger *logrus.Logger) *StatusHandler {
	return &StatusHandler{
		items:    items,
		pending:  pending,
		imports:  imports,
		accounts: accounts,
		logger:   logger,
	}
}

// AccountStatus describes one linked account
type AccountStatus struct {
	ID                 string                     `json:"id"`
	Username           string                     `json:"username"`
	LocalUserID        string                     `json:"local_user_id"`
	PostWatchedHistory bool                       `json:"post_watched_history"`
	SyncCollection     bool                       `json:"sync_collection"`
	Pending            *controllers.PendingCounts `json:"pending,omitempty"`
}

// StatusResponse represents the status response
type StatusResponse struct {
	LibraryItems  int             `json:"library_items"`
	ImportRunning bool            `json:"import_running"`
	Accounts      []AccountStatus `json:"accounts"`
}

// Get handles the status endpoint
func (h *StatusHandler) Get(c *fiber.Ctx) error {
	count, err := h.items.CountItems()
	if err != nil {
		h.logger.WithError(err).Error("Failed to count library items")
		return fiber.NewError(fiber.StatusInternalServerError, "Internal server error")
	}

	pending := h.pending.Pending()
	response := StatusResponse{
		LibraryItems:  count,
		ImportRunning: h.imports.Running(),
		Accounts:      make([]AccountStatus, 0, len(h.accounts)),
	}

	for _, account := range h.accounts {
		status := AccountStatus{
			ID:                 account.ID,
			Username:           account.Username,
			LocalUserID:        account.LocalUserID,
			PostWatchedHistory: account.PostWatchedHistory,
			SyncCollection:     account.SyncCollection,
		}
		if counts, ok := pending[account.ID]; ok {
			status.Pending = &counts
		}
		response.Accounts = append(response.Accounts, status)
	}

	return c.JSON(response)
}
