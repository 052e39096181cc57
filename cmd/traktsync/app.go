package main

import (
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/amaumene/traktsync/internal/config"
	"github.com/amaumene/traktsync/internal/controllers"
	"github.com/amaumene/traktsync/internal/models"
	"github.com/amaumene/traktsync/internal/services/trakt"
	"github.com/amaumene/traktsync/internal/utils"
)

// app holds the components shared by every command
type app struct {
	cfg      *config.Config
	logger   *logrus.Logger
	db       *models.Database
	trakt    *trakt.Client
	syncCtrl *controllers.SyncController
}

func newApp() (*app, error) {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// 2. Setup logger
	logger := utils.NewLogger(cfg.LogLevel, cfg.LogFile)
	logger.WithFields(logrus.Fields{
		"config_dir": filepath.Dir(cfg.DatabaseFile),
		"accounts":   len(cfg.Accounts),
	}).Info("Configuration loaded")

	// 3. Initialize database
	db, err := models.NewDatabase(cfg.DatabaseFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	for _, account := range cfg.Accounts {
		if err := db.SeedToken(account); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to store token for account %s: %w", account.ID, err)
		}
	}
	logger.Info("Database initialized")

	// 4. Initialize services
	traktClient, err := trakt.NewClient(cfg, db, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize Trakt client: %w", err)
	}
	logger.Info("Trakt client initialized")

	return &app{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		trakt:    traktClient,
		syncCtrl: controllers.NewSyncController(db, traktClient, cfg.Accounts, cfg.ImportConcurrency, logger),
	}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).Error("Failed to close database")
	}
}
