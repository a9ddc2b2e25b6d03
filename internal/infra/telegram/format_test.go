package telegram

import (
	"strings"
	"testing"
	"time"

	"lodge_billing_notifier/internal/app"
	"lodge_billing_notifier/internal/domain/ledger"
	"lodge_billing_notifier/internal/domain/rule"

	"github.com/google/uuid"
)

func TestParseAddRuleArgs(t *testing.T) {
	in, err := parseAddRuleArgs([]string{"3", "days_before_due", "5", "email", "due_soon", "Five", "days", "notice"})
	if err != nil {
		t.Fatalf("parseAddRuleArgs: %v", err)
	}
	if in.LodgeID != 3 || in.Trigger != "days_before_due" || in.TriggerValue != 5 || in.Channel != "email" || in.TemplateRef != "due_soon" {
		t.Fatalf("unexpected input %+v", in)
	}
	if in.Name != "Five days notice" {
		t.Fatalf("unexpected name %q", in.Name)
	}

	for _, args := range [][]string{
		{"3", "days_before_due", "5", "email"},
		{"x", "days_before_due", "5", "email", "due_soon"},
		{"3", "days_before_due", "five", "email", "due_soon"},
	} {
		if _, err := parseAddRuleArgs(args); err == nil {
			t.Fatalf("expected an error for %v", args)
		}
	}
}

func TestFormatRecords_ShowsFailureReason(t *testing.T) {
	rec := ledger.NewRecord(uuid.New(), 100, 1, ledger.BillSubject(100), rule.ChannelSMS, ledger.OutcomeFailed, "gateway timeout", time.Date(2024, time.June, 12, 9, 0, 0, 0, time.UTC))

	text := formatRecords([]*ledger.ExecutionRecord{rec}, time.UTC)
	if !strings.Contains(text, "FAILED bill:100") || !strings.Contains(text, "reason: gateway timeout") {
		t.Fatalf("unexpected text:\n%s", text)
	}
}

func TestFormatRule_MalformedStillRenders(t *testing.T) {
	r := &rule.Rule{TriggerKind: "WEEKLY", TriggerValue: 2, Channel: rule.ChannelEmail, TemplateRef: "x"}

	if text := formatRule(r); !strings.Contains(text, "WEEKLY(2)") || !strings.Contains(text, "(unnamed)") {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestFormatReport(t *testing.T) {
	text := formatReport(&app.PassReport{DryRun: true, Due: 2, Pending: 2})
	if !strings.HasPrefix(text, "Dry-run pass finished: 2 due") {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("á", maxMessageLen+10)
	if got := []rune(truncate(long)); len(got) != maxMessageLen {
		t.Fatalf("expected %d runes, got %d", maxMessageLen, len(got))
	}
	if truncate("short") != "short" {
		t.Fatal("short text must be unchanged")
	}
}

func TestTruncate_KeepsWholeLines(t *testing.T) {
	ruleID := uuid.New()
	at := time.Date(2024, time.June, 12, 9, 0, 0, 0, time.UTC)
	records := make([]*ledger.ExecutionRecord, 0, 200)
	for i := 0; i < 200; i++ {
		records = append(records, ledger.NewRecord(ruleID, int64(i), 1, ledger.BillSubject(int64(i)), rule.ChannelSMS, ledger.OutcomeFailed, "gateway timeout", at))
	}

	full := formatRecords(records, time.UTC)
	if len([]rune(full)) <= maxMessageLen {
		t.Fatalf("expected 200 records to exceed one message, got %d runes", len([]rune(full)))
	}
	text := truncate(full)
	if n := len([]rune(text)); n > maxMessageLen {
		t.Fatalf("expected at most %d runes, got %d", maxMessageLen, n)
	}
	if !strings.HasPrefix(text, "Last 200 executions:") || !strings.HasSuffix(text, "\n…") {
		t.Fatalf("unexpected head or tail:\n%s", text)
	}
	if !strings.HasPrefix(full, strings.TrimSuffix(text, "\n…")) {
		t.Fatal("truncated text must be a prefix of the full text")
	}
}
