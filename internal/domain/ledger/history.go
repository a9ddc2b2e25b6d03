package ledger

import (
	"time"

	"github.com/google/uuid"
)

// History is a snapshot of ledger records, used by the evaluator for the fired-today check.
type History []*ExecutionRecord

// HasFiredToday reports whether the snapshot holds a Sent record for the rule
// and subject on now's calendar day. Failed and Pending records do not count,
// so a failed send is retried on the next pass.
func (h History) HasFiredToday(ruleID uuid.UUID, subject string, now time.Time) bool {
	for _, rec := range h {
		if rec.Outcome != OutcomeSent || rec.RuleID != ruleID || rec.Subject != subject {
			continue
		}
		if SameDay(rec.FiredAt, now) {
			return true
		}
	}
	return false
}
