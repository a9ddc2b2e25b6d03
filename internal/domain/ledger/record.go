// internal/domain/ledger/record.go
package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"lodge_billing_notifier/internal/domain/rule"

	"github.com/google/uuid"
)

// ErrAlreadyFired is returned when a Sent record already exists for the same rule, subject and day.
var ErrAlreadyFired = errors.New("notification already sent today for this rule and subject")

// Outcome is the result of one notification firing.
type Outcome string

const (
	OutcomePending Outcome = "PENDING" // evaluated but not dispatched (dry run)
	OutcomeSent    Outcome = "SENT"
	OutcomeFailed  Outcome = "FAILED"
)

// Valid reports whether o is a known outcome.
func (o Outcome) Valid() bool {
	return o == OutcomePending || o == OutcomeSent || o == OutcomeFailed
}

// ExecutionRecord is one ledger entry.
// Corresponds to the 'execution_records' table.
type ExecutionRecord struct {
	ID            uuid.UUID
	RuleID        uuid.UUID
	BillID        int64
	MemberID      int64
	Subject       string // idempotence subject, see BillSubject and MemberSubject
	Channel       rule.Channel
	FiredAt       time.Time
	Outcome       Outcome
	FailureReason sql.NullString
}

// NewRecord builds a record for a firing at firedAt. reason is kept only for failures.
func NewRecord(ruleID uuid.UUID, billID, memberID int64, subject string, channel rule.Channel, outcome Outcome, reason string, firedAt time.Time) *ExecutionRecord {
	rec := &ExecutionRecord{
		ID:       uuid.New(),
		RuleID:   ruleID,
		BillID:   billID,
		MemberID: memberID,
		Subject:  subject,
		Channel:  channel,
		FiredAt:  firedAt,
		Outcome:  outcome,
	}
	if outcome == OutcomeFailed && reason != "" {
		rec.FailureReason = sql.NullString{String: reason, Valid: true}
	}
	return rec
}

// BillSubject is the idempotence subject of per-bill triggers.
func BillSubject(billID int64) string {
	return fmt.Sprintf("bill:%d", billID)
}

// MemberSubject is the idempotence subject of per-member triggers.
func MemberSubject(memberID int64) string {
	return fmt.Sprintf("member:%d", memberID)
}

// StartOfDay truncates t to midnight of its calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// SameDay reports whether a falls on the same calendar day as ref, in ref's location.
func SameDay(a, ref time.Time) bool {
	a = a.In(ref.Location())
	ay, am, ad := a.Date()
	ry, rm, rd := ref.Date()
	return ay == ry && am == rm && ad == rd
}
