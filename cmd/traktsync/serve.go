package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/amaumene/traktsync/internal/api"
	"github.com/amaumene/traktsync/internal/controllers"
	"github.com/amaumene/traktsync/internal/events"
	"github.com/amaumene/traktsync/internal/scheduler"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run scheduled imports and export live playstate changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
}

func serve() error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()
	logger := a.logger
	logger.Info("Starting traktsync")

	// Export direction
	batcher := controllers.NewBatcher(a.trakt, a.cfg.BatchQuietPeriod, a.cfg.BatchMaxSize, a.cfg.PlaybackCacheTTL, logger)
	dispatcher := controllers.NewDispatcher(a.db, batcher, a.cfg.Accounts, logger)
	logger.Info("Controllers initialized")

	// Import direction
	sched := scheduler.NewScheduler(a.syncCtrl, a.cfg.ImportSchedule, a.cfg.ImportOnStart, logger)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	var subscriber *events.Subscriber
	if a.cfg.NATSURL != "" {
		subscriber = events.NewSubscriber(dispatcher, logger)
		if err := subscriber.Start(a.cfg.NATSURL, a.cfg.NATSSubject); err != nil {
			sched.Stop()
			return err
		}
	}

	server := api.NewServer(a.cfg, a.db, dispatcher, batcher, sched, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverErrChan := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil {
			serverErrChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("traktsync is running")

	var runErr error
	select {
	case err := <-serverErrChan:
		runErr = fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		logger.WithField("signal", sig).Info("Received shutdown signal")
		if err := server.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Error("Error during server shutdown")
		}
	}

	// Stop event sources before flushing what they produced
	if subscriber != nil {
		if err := subscriber.Close(); err != nil {
			logger.WithError(err).Error("Error closing NATS subscriber")
		}
	}
	sched.Stop()

	flushCtx, flushCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer flushCancel()
	if err := batcher.Close(flushCtx); err != nil {
		logger.WithError(err).Error("Pending playstates were not fully flushed")
	}

	logger.Info("traktsync stopped")
	return runErr
}
