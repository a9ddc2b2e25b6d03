package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lodge_billing_notifier/internal/app" // For NotificationService interface

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Alerter notifies the operator about passes that need attention.
type Alerter interface {
	Alert(ctx context.Context, text string) error
}

// PruneObserver is told how many ledger records each prune removed.
type PruneObserver interface {
	ObservePrune(removed int64)
}

const alertTimeout = 30 * time.Second

type NotificationScheduler struct {
	cronEngine          *cron.Cron
	notifService        app.NotificationService // Using the interface
	alerter             Alerter
	pruneObserver       PruneObserver
	logger              *logrus.Entry
	cronSpecEvaluate    string // e.g., "0 9 * * *" (9 AM daily)
	cronSpecLedgerPrune string // e.g., "30 3 * * *"
	passTimeout         time.Duration
	now                 func() time.Time
}

func NewNotificationScheduler(
	notifService app.NotificationService,
	alerter Alerter,
	pruneObserver PruneObserver,
	logger *logrus.Entry,
	location *time.Location,
	cronSpecEvaluate string,
	cronSpecLedgerPrune string,
	passTimeout time.Duration,
) *NotificationScheduler {
	if location == nil {
		location = time.Local
	}
	cronLogger := cron.PrintfLogger(logger)
	return &NotificationScheduler{
		cronEngine:          cron.New(cron.WithLocation(location), cron.WithChain(cron.Recover(cronLogger))),
		notifService:        notifService,
		alerter:             alerter,
		pruneObserver:       pruneObserver,
		logger:              logger,
		cronSpecEvaluate:    cronSpecEvaluate,
		cronSpecLedgerPrune: cronSpecLedgerPrune,
		passTimeout:         passTimeout,
		now:                 time.Now,
	}
}

// Start registers the jobs and starts the cron engine.
func (s *NotificationScheduler) Start() error {
	s.logger.Info("Starting notification scheduler...")

	if _, err := s.cronEngine.AddFunc(s.cronSpecEvaluate, s.runEvaluation); err != nil {
		return fmt.Errorf("could not add evaluation cron job %q: %w", s.cronSpecEvaluate, err)
	}
	if _, err := s.cronEngine.AddFunc(s.cronSpecLedgerPrune, s.runPrune); err != nil {
		return fmt.Errorf("could not add ledger prune cron job %q: %w", s.cronSpecLedgerPrune, err)
	}

	s.cronEngine.Start()
	s.logger.WithFields(logrus.Fields{
		"evaluate":     s.cronSpecEvaluate,
		"ledger_prune": s.cronSpecLedgerPrune,
	}).Info("Notification scheduler started with jobs.")
	return nil
}

func (s *NotificationScheduler) runEvaluation() {
	s.logger.Info("Cron job triggered for notification pass.")
	ctx, cancel := context.WithTimeout(context.Background(), s.passTimeout)
	defer cancel()

	report, err := s.notifService.RunPass(ctx, s.now())
	switch {
	case errors.Is(err, app.ErrPassInProgress):
		s.logger.Info("Notification pass skipped: another pass is running.")
	case err != nil:
		s.logger.WithError(err).Error("Notification pass failed")
		s.alert(fmt.Sprintf("⚠️ Notification pass failed: %v", err))
	case report.Failed > 0 || report.Aborted:
		s.alert(fmt.Sprintf("⚠️ Notification pass finished with problems: %s", report))
	}
}

func (s *NotificationScheduler) runPrune() {
	s.logger.Info("Cron job triggered for ledger prune.")
	ctx, cancel := context.WithTimeout(context.Background(), s.passTimeout)
	defer cancel()

	removed, err := s.notifService.PruneLedger(ctx, s.now())
	if err != nil {
		s.logger.WithError(err).Error("Ledger prune failed")
		return
	}
	if s.pruneObserver != nil {
		s.pruneObserver.ObservePrune(removed)
	}
}

func (s *NotificationScheduler) alert(text string) {
	if s.alerter == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), alertTimeout)
	defer cancel()
	if err := s.alerter.Alert(ctx, text); err != nil {
		s.logger.WithError(err).Warn("Failed to deliver operator alert")
	}
}

func (s *NotificationScheduler) Stop() {
	s.logger.Info("Stopping notification scheduler...")
	ctx := s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
	<-ctx.Done()               // Wait for graceful shutdown
	s.logger.Info("Notification scheduler gracefully stopped.")
}
