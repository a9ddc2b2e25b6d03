package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"lodge_billing_notifier/internal/domain/ledger"
	"lodge_billing_notifier/internal/domain/rule"

	"github.com/google/uuid"
)

func sentAt(ruleID uuid.UUID, subject string, at time.Time) *ledger.ExecutionRecord {
	return ledger.NewRecord(ruleID, 7, 3, subject, rule.ChannelEmail, ledger.OutcomeSent, "", at)
}

func TestLedger_RejectsSecondSentSameDay(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(0)
	ruleID := uuid.New()
	morning := time.Date(2024, 6, 12, 9, 0, 0, 0, time.UTC)

	if err := l.Record(ctx, sentAt(ruleID, "bill:7", morning)); err != nil {
		t.Fatalf("first record: %v", err)
	}
	err := l.Record(ctx, sentAt(ruleID, "bill:7", morning.Add(5*time.Hour)))
	if !errors.Is(err, ledger.ErrAlreadyFired) {
		t.Fatalf("expected ErrAlreadyFired, got %v", err)
	}
	if fired, err := l.HasFiredToday(ctx, ruleID, "bill:7", morning.Add(14*time.Hour)); err != nil || !fired {
		t.Fatalf("expected HasFiredToday true later the same day, got %t (%v)", fired, err)
	}
	nextDay := morning.Add(24 * time.Hour)
	if fired, err := l.HasFiredToday(ctx, ruleID, "bill:7", nextDay); err != nil || fired {
		t.Fatalf("expected HasFiredToday false on the next day, got %t (%v)", fired, err)
	}
	if err := l.Record(ctx, sentAt(ruleID, "bill:7", nextDay)); err != nil {
		t.Fatalf("next-day record: %v", err)
	}
	if l.Len() != 2 {
		t.Fatalf("expected 2 records, got %d", l.Len())
	}
}

func TestLedger_FailedDoesNotBlock(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(0)
	ruleID := uuid.New()
	now := time.Date(2024, 6, 12, 9, 0, 0, 0, time.UTC)

	failed := ledger.NewRecord(ruleID, 7, 3, "bill:7", rule.ChannelSMS, ledger.OutcomeFailed, "gateway timeout", now)
	if err := l.Record(ctx, failed); err != nil {
		t.Fatalf("record failed: %v", err)
	}
	fired, err := l.HasFiredToday(ctx, ruleID, "bill:7", now)
	if err != nil {
		t.Fatalf("HasFiredToday: %v", err)
	}
	if fired {
		t.Fatal("a failed record must not count as fired")
	}
	if err := l.Record(ctx, sentAt(ruleID, "bill:7", now.Add(time.Hour))); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	fired, _ = l.HasFiredToday(ctx, ruleID, "bill:7", now)
	if !fired {
		t.Fatal("expected fired after a sent record")
	}
}

func TestLedger_RollingWindowEvicts(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(DefaultWindow)
	ruleID := uuid.New()
	start := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		if err := l.Record(ctx, sentAt(ruleID, "bill:7", start.AddDate(0, 0, i))); err != nil {
			t.Fatalf("record day %d: %v", i, err)
		}
	}
	// days 3 and 4 remain; day 2 is exactly 48h before day 4 and is kept too
	if got := l.Len(); got != 3 {
		t.Fatalf("expected 3 records inside the window, got %d", got)
	}
}

func TestLedger_ListRecentFiltersAndOrders(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(0)
	ruleA, ruleB := uuid.New(), uuid.New()
	now := time.Date(2024, 6, 12, 9, 0, 0, 0, time.UTC)

	_ = l.Record(ctx, sentAt(ruleA, "bill:1", now))
	_ = l.Record(ctx, ledger.NewRecord(ruleA, 2, 3, "bill:2", rule.ChannelEmail, ledger.OutcomeFailed, "smtp down", now.Add(time.Minute)))
	_ = l.Record(ctx, sentAt(ruleB, "bill:3", now.Add(2*time.Minute)))

	recent, err := l.ListRecent(ctx, ledger.Filter{RuleID: ruleA})
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(recent) != 2 || recent[0].Subject != "bill:2" {
		t.Fatalf("expected newest-first records of rule A, got %+v", recent)
	}
	if !recent[0].FailureReason.Valid || recent[0].FailureReason.String != "smtp down" {
		t.Fatalf("expected failure reason kept, got %+v", recent[0].FailureReason)
	}

	failed, _ := l.ListRecent(ctx, ledger.Filter{Outcome: ledger.OutcomeFailed})
	if len(failed) != 1 {
		t.Fatalf("expected 1 failed record, got %d", len(failed))
	}
	limited, _ := l.ListRecent(ctx, ledger.Filter{Limit: 1})
	if len(limited) != 1 || limited[0].RuleID != ruleB {
		t.Fatalf("expected the newest record only, got %+v", limited)
	}
}

func TestLedger_PruneBefore(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(30 * 24 * time.Hour)
	ruleID := uuid.New()
	now := time.Date(2024, 6, 12, 9, 0, 0, 0, time.UTC)

	_ = l.Record(ctx, sentAt(ruleID, "bill:1", now.AddDate(0, 0, -10)))
	_ = l.Record(ctx, sentAt(ruleID, "bill:1", now))

	removed, err := l.PruneBefore(ctx, now.AddDate(0, 0, -1))
	if err != nil {
		t.Fatalf("PruneBefore: %v", err)
	}
	if removed != 1 || l.Len() != 1 {
		t.Fatalf("expected 1 removed and 1 kept, got %d removed and %d kept", removed, l.Len())
	}
}
