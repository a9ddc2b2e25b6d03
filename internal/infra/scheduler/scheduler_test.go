package scheduler

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"lodge_billing_notifier/internal/app"
	"lodge_billing_notifier/internal/domain/evaluation"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

type notifServiceStub struct {
	report   *app.PassReport
	err      error
	pruned   int64
	passes   int
	deadline bool
}

func (s *notifServiceStub) RunPass(ctx context.Context, _ time.Time) (*app.PassReport, error) {
	s.passes++
	_, s.deadline = ctx.Deadline()
	return s.report, s.err
}

func (s *notifServiceStub) PreviewDue(context.Context, time.Time) ([]evaluation.Due, []evaluation.Warning, error) {
	return nil, nil, nil
}

func (s *notifServiceStub) PruneLedger(context.Context, time.Time) (int64, error) {
	return s.pruned, nil
}

type alerterStub struct {
	alerts []string
}

func (a *alerterStub) Alert(_ context.Context, text string) error {
	a.alerts = append(a.alerts, text)
	return nil
}

type pruneCounter struct {
	total int64
}

func (p *pruneCounter) ObservePrune(removed int64) { p.total += removed }

func newTestScheduler(svc app.NotificationService, alerter Alerter, pruned PruneObserver) *NotificationScheduler {
	logger, _ := test.NewNullLogger()
	return NewNotificationScheduler(svc, alerter, pruned, logrus.NewEntry(logger), time.UTC, "0 9 * * *", "30 3 * * *", time.Minute)
}

func TestRunEvaluation_AlertsOnFailure(t *testing.T) {
	svc := &notifServiceStub{err: fmt.Errorf("%w: bills: timeout", app.ErrSourceUnavailable)}
	alerter := &alerterStub{}
	s := newTestScheduler(svc, alerter, nil)

	s.runEvaluation()

	if svc.passes != 1 || !svc.deadline {
		t.Fatalf("expected one pass with a deadline, got %d passes (deadline %t)", svc.passes, svc.deadline)
	}
	if len(alerter.alerts) != 1 || !strings.Contains(alerter.alerts[0], "source unavailable") {
		t.Fatalf("unexpected alerts %v", alerter.alerts)
	}
}

func TestRunEvaluation_QuietWhenLockedOrClean(t *testing.T) {
	alerter := &alerterStub{}

	newTestScheduler(&notifServiceStub{err: app.ErrPassInProgress}, alerter, nil).runEvaluation()
	newTestScheduler(&notifServiceStub{report: &app.PassReport{Sent: 2}}, alerter, nil).runEvaluation()

	if len(alerter.alerts) != 0 {
		t.Fatalf("expected no alerts, got %v", alerter.alerts)
	}
}

func TestRunEvaluation_AlertsOnSendFailures(t *testing.T) {
	alerter := &alerterStub{}
	newTestScheduler(&notifServiceStub{report: &app.PassReport{Sent: 2, Failed: 1}}, alerter, nil).runEvaluation()

	if len(alerter.alerts) != 1 || !strings.Contains(alerter.alerts[0], "failed=1") {
		t.Fatalf("unexpected alerts %v", alerter.alerts)
	}
}

func TestRunPrune_ReportsRemoved(t *testing.T) {
	counter := &pruneCounter{}
	newTestScheduler(&notifServiceStub{pruned: 12}, nil, counter).runPrune()

	if counter.total != 12 {
		t.Fatalf("expected 12 pruned, got %d", counter.total)
	}
}

func TestStart_RejectsBadSpec(t *testing.T) {
	logger, _ := test.NewNullLogger()
	s := NewNotificationScheduler(&notifServiceStub{}, nil, nil, logrus.NewEntry(logger), time.UTC, "not a spec", "30 3 * * *", time.Minute)

	if err := s.Start(); err == nil {
		s.Stop()
		t.Fatal("expected an error for an invalid cron spec")
	}
}
