package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/amaumene/traktsync/internal/controllers"
)

// ErrImportRunning is returned when an import is triggered while one is in progress
var ErrImportRunning = errors.New("import already running")

// Importer runs an import pass for every linked account
type Importer interface {
	ImportAll(ctx context.Context, progress func(float64)) (*controllers.ImportReport, error)
}

// Scheduler manages scheduled imports
type Scheduler struct {
	cron       *cron.Cron
	importer   Importer
	schedule   string
	runOnStart bool
	logger     *logrus.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool
}

// NewScheduler creates a new scheduler
func NewScheduler(importer Importer, schedule string, runOnStart bool, logger *logrus.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:       cron.New(),
		importer:   importer,
		schedule:   schedule,
		runOnStart: runOnStart,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.logger.WithField("schedule", s.schedule).Info("Starting scheduler")

	_, err := s.cron.AddFunc(s.schedule, func() {
		if err := s.Trigger(); err != nil {
			s.logger.WithError(err).Warn("Skipping scheduled import")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add import job: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Scheduler started")

	if s.runOnStart {
		if err := s.Trigger(); err != nil {
			s.logger.WithError(err).Warn("Skipping initial import")
		}
	}

	return nil
}

// Trigger starts an import in the background
func (s *Scheduler) Trigger() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrImportRunning
	}
	if s.ctx.Err() != nil {
		return fmt.Errorf("scheduler stopped: %w", s.ctx.Err())
	}

	s.running = true
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
		}()
		s.runImport(s.ctx)
	}()
	return nil
}

// Running reports whether an import is in progress
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stop stops the scheduler and cancels an in-flight import
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	<-s.cron.Stop().Done()
	s.cancel()
	s.wg.Wait()
}

// runImport executes the import job
func (s *Scheduler) runImport(ctx context.Context) {
	s.logger.Info("Running Trakt import")

	report, err := s.importer.ImportAll(ctx, progressLogger(s.logger))
	if err != nil {
		s.logger.WithError(err).Error("Import job failed")
		return
	}

	failed := report.Failed()
	for _, result := range failed {
		s.logger.WithError(result.Err).WithField("account", result.AccountID).Error("Import failed for account")
	}
	s.logger.WithFields(logrus.Fields{
		"accounts": len(report.Results),
		"failed":   len(failed),
	}).Info("Import job completed")
}

// progressLogger logs import progress in 10% steps
func progressLogger(logger *logrus.Logger) func(float64) {
	last := -1
	return func(progress float64) {
		step := int(progress / 10)
		if step <= last {
			return
		}
		last = step
		logger.WithField("progress", fmt.Sprintf("%d%%", step*10)).Info("Import progress")
	}
}
