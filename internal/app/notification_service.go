// internal/app/notification_service.go
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lodge_billing_notifier/internal/domain/billing"
	"lodge_billing_notifier/internal/domain/evaluation"
	"lodge_billing_notifier/internal/domain/ledger"
	"lodge_billing_notifier/internal/domain/notification"
	"lodge_billing_notifier/internal/domain/rule"
	"lodge_billing_notifier/internal/infra/lock"

	"github.com/sirupsen/logrus"
)

// ErrSourceUnavailable aborts a pass before anything is sent or recorded.
var ErrSourceUnavailable = errors.New("notification source unavailable")

// ErrLedgerWrite aborts a pass whose outcome could not be recorded.
var ErrLedgerWrite = errors.New("failed to record notification outcome")

// ErrPassInProgress is returned when another pass holds the pass lock.
var ErrPassInProgress = errors.New("another notification pass is in progress")

// recordTimeout bounds a ledger write that outlives a cancelled pass.
const recordTimeout = 10 * time.Second

// NotificationService defines the operations of the billing notification process.
type NotificationService interface {
	// RunPass evaluates every enabled rule against outstanding bills and sends what is due.
	RunPass(ctx context.Context, now time.Time) (*PassReport, error)
	// PreviewDue returns what a pass at now would send, without sending or recording anything.
	PreviewDue(ctx context.Context, now time.Time) ([]evaluation.Due, []evaluation.Warning, error)
	// PruneLedger removes ledger records older than the retention horizon.
	PruneLedger(ctx context.Context, now time.Time) (int64, error)
}

// PassLock keeps passes from overlapping. Acquire fails with lock.ErrHeld when taken.
type PassLock interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// PassObserver is told about every finished pass, successful or not.
type PassObserver interface {
	ObservePass(report *PassReport, err error)
}

// PassReport summarizes one pass.
type PassReport struct {
	StartedAt  time.Time
	FinishedAt time.Time
	DryRun     bool
	Due        int // pairs produced by the evaluator
	Sent       int
	Failed     int
	Pending    int // recorded without sending (dry run)
	Duplicates int // already recorded as sent by a concurrent pass
	Skipped    int // member inactive, unknown or in another lodge
	Warnings   []evaluation.Warning
	Aborted    bool // context ended before every due pair was handled
}

func (r *PassReport) String() string {
	return fmt.Sprintf("due=%d sent=%d failed=%d pending=%d duplicates=%d skipped=%d warnings=%d aborted=%t",
		r.Due, r.Sent, r.Failed, r.Pending, r.Duplicates, r.Skipped, len(r.Warnings), r.Aborted)
}

// PassSettings are the tunables of the pass runner.
type PassSettings struct {
	Location        *time.Location // calendar of "today"; defaults to time.Local
	DryRun          bool
	LedgerRetention time.Duration
}

// NotificationServiceImpl implements the NotificationService interface.
type NotificationServiceImpl struct {
	ruleRepo   rule.Repository
	billRepo   billing.BillRepository
	memberRepo billing.MemberRepository
	ledgerRepo ledger.Repository
	emitter    notification.Emitter
	passLock   PassLock
	observer   PassObserver
	settings   PassSettings
	logger     *logrus.Entry
}

func NewNotificationServiceImpl(
	rr rule.Repository,
	br billing.BillRepository,
	mr billing.MemberRepository,
	lr ledger.Repository,
	emitter notification.Emitter,
	passLock PassLock,
	observer PassObserver,
	settings PassSettings,
	logger *logrus.Entry,
) *NotificationServiceImpl {
	if settings.Location == nil {
		settings.Location = time.Local
	}
	if passLock == nil {
		passLock = lock.NewLocalLock()
	}
	return &NotificationServiceImpl{
		ruleRepo:   rr,
		billRepo:   br,
		memberRepo: mr,
		ledgerRepo: lr,
		emitter:    emitter,
		passLock:   passLock,
		observer:   observer,
		settings:   settings,
		logger:     logger,
	}
}

// snapshot is everything a pass reads before sending anything.
type snapshot struct {
	rules   []*rule.Rule
	bills   []*billing.Bill
	members map[int64]*billing.Member
	history ledger.History
}

func (s *NotificationServiceImpl) loadSnapshot(ctx context.Context, now time.Time) (*snapshot, error) {
	rules, err := s.ruleRepo.ListEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: rules: %v", ErrSourceUnavailable, err)
	}
	bills, err := s.billRepo.ListOutstanding(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: bills: %v", ErrSourceUnavailable, err)
	}
	members, err := s.memberRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: members: %v", ErrSourceUnavailable, err)
	}
	history, err := s.ledgerRepo.ListSince(ctx, ledger.StartOfDay(now))
	if err != nil {
		return nil, fmt.Errorf("%w: ledger: %v", ErrSourceUnavailable, err)
	}

	byID := make(map[int64]*billing.Member, len(members))
	for _, m := range members {
		byID[m.ID] = m
	}
	return &snapshot{rules: rules, bills: bills, members: byID, history: history}, nil
}

// RunPass runs one synchronous notification pass at now.
//
// Sends happen one at a time and each outcome is recorded before the next
// pair is handled. A cancelled ctx stops the pass between pairs; the ledger
// stays consistent and the next pass picks up what was left.
func (s *NotificationServiceImpl) RunPass(ctx context.Context, now time.Time) (report *PassReport, err error) {
	now = now.In(s.settings.Location)
	began := time.Now()
	report = &PassReport{StartedAt: now, DryRun: s.settings.DryRun}
	defer func() {
		report.FinishedAt = now.Add(time.Since(began))
		if s.observer != nil {
			s.observer.ObservePass(report, err)
		}
	}()

	release, err := s.passLock.Acquire(ctx)
	if err != nil {
		if errors.Is(err, lock.ErrHeld) {
			s.logger.Info("Skipping notification pass: another pass holds the lock")
			return report, ErrPassInProgress
		}
		return report, fmt.Errorf("failed to acquire pass lock: %w", err)
	}
	defer release()

	snap, err := s.loadSnapshot(ctx, now)
	if err != nil {
		s.logger.WithError(err).Error("Aborting notification pass")
		return report, err
	}

	seq, warnings := evaluation.Evaluate(now, snap.rules, snap.bills, snap.history)
	report.Warnings = warnings
	for _, w := range warnings {
		s.logger.WithField("rule_id", w.RuleID).WithError(w.Err).Warn("Skipping malformed rule")
	}

	for due := range seq {
		if ctx.Err() != nil {
			report.Aborted = true
			s.logger.WithError(ctx.Err()).Warn("Notification pass interrupted; remaining pairs left for the next pass")
			break
		}
		report.Due++

		if err := s.handle(ctx, now, due, snap.members, report); err != nil {
			return report, err
		}
	}

	s.logger.WithField("report", report.String()).Info("Notification pass finished")
	return report, nil
}

// handle sends one due pair and records its outcome.
func (s *NotificationServiceImpl) handle(ctx context.Context, now time.Time, due evaluation.Due, members map[int64]*billing.Member, report *PassReport) error {
	log := s.logger.WithFields(logrus.Fields{
		"rule_id":   due.Rule.ID,
		"bill_id":   due.Bill.ID,
		"member_id": due.Bill.MemberID,
		"channel":   due.Rule.Channel,
		"trigger":   due.Trigger.String(),
	})

	member, ok := members[due.Bill.MemberID]
	if !ok {
		report.Skipped++
		log.Warn("Member is inactive or unknown; not notifying")
		return nil
	}
	if member.LodgeID != due.Bill.LodgeID {
		report.Skipped++
		log.WithField("member_lodge_id", member.LodgeID).Warn("Member belongs to another lodge; not notifying")
		return nil
	}

	outcome := ledger.OutcomePending
	reason := ""
	if !s.settings.DryRun {
		if sendErr := s.emitter.Send(ctx, due.Rule.Channel, due.Rule.TemplateRef, member, due.Bill); sendErr != nil {
			outcome = ledger.OutcomeFailed
			reason = sendErr.Error()
			log.WithError(sendErr).Error("Failed to send notification")
		} else {
			outcome = ledger.OutcomeSent
		}
	}

	rec := ledger.NewRecord(due.Rule.ID, due.Bill.ID, due.Bill.MemberID, due.Subject, due.Rule.Channel, outcome, reason, now)
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := s.ledgerRepo.Record(recordCtx, rec); err != nil {
		if errors.Is(err, ledger.ErrAlreadyFired) {
			report.Duplicates++
			log.Warn("Notification was already recorded as sent today")
			return nil
		}
		log.WithError(err).Error("Failed to record notification outcome; aborting pass")
		return fmt.Errorf("%w: %v", ErrLedgerWrite, err)
	}

	switch outcome {
	case ledger.OutcomeSent:
		report.Sent++
		log.Info("Notification sent")
	case ledger.OutcomeFailed:
		report.Failed++
	default:
		report.Pending++
		log.Info("Dry run: notification recorded as pending")
	}
	return nil
}

func (s *NotificationServiceImpl) PreviewDue(ctx context.Context, now time.Time) ([]evaluation.Due, []evaluation.Warning, error) {
	now = now.In(s.settings.Location)
	snap, err := s.loadSnapshot(ctx, now)
	if err != nil {
		return nil, nil, err
	}
	seq, warnings := evaluation.Evaluate(now, snap.rules, snap.bills, snap.history)
	return evaluation.Collect(seq), warnings, nil
}

func (s *NotificationServiceImpl) PruneLedger(ctx context.Context, now time.Time) (int64, error) {
	before := ledger.StartOfDay(now.In(s.settings.Location)).Add(-s.settings.LedgerRetention)
	removed, err := s.ledgerRepo.PruneBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune execution ledger: %w", err)
	}
	s.logger.WithFields(logrus.Fields{"before": before.Format(time.RFC3339), "removed": removed}).Info("Execution ledger pruned")
	return removed, nil
}
