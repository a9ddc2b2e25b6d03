// internal/domain/evaluation/evaluator.go
package evaluation

import (
	"fmt"
	"iter"
	"time"

	"lodge_billing_notifier/internal/domain/billing"
	"lodge_billing_notifier/internal/domain/ledger"
	"lodge_billing_notifier/internal/domain/rule"

	"github.com/google/uuid"
)

// FiredChecker answers the idempotence question for one (rule, subject) on now's day.
// ledger.History implements it.
type FiredChecker interface {
	HasFiredToday(ruleID uuid.UUID, subject string, now time.Time) bool
}

// Due is a (rule, bill) pair whose trigger matches now and that has not fired today.
// For per-member triggers Bill is the member's earliest pending bill.
type Due struct {
	Rule    *rule.Rule
	Trigger rule.Trigger
	Bill    *billing.Bill
	Subject string
}

// Warning reports a rule that was skipped because it is malformed.
type Warning struct {
	RuleID uuid.UUID
	Err    error
}

func (w Warning) Error() string {
	return fmt.Sprintf("rule %s skipped: %v", w.RuleID, w.Err)
}

func (w Warning) Unwrap() error { return w.Err }

type candidate struct {
	rule    *rule.Rule
	trigger rule.Trigger
}

// Evaluate returns the pairs due at now. It reads no clock other than now.
//
// Disabled rules are ignored. Malformed rules are skipped and returned as
// warnings; they never stop evaluation of the remaining rules. The returned
// sequence is computed lazily from the inputs and is meant to be consumed once.
func Evaluate(now time.Time, rules []*rule.Rule, bills []*billing.Bill, history FiredChecker) (iter.Seq[Due], []Warning) {
	var warnings []Warning
	active := make([]candidate, 0, len(rules))
	for _, r := range rules {
		if r == nil || !r.Enabled {
			continue
		}
		t, err := r.Validate()
		if err != nil {
			warnings = append(warnings, Warning{RuleID: r.ID, Err: err})
			continue
		}
		active = append(active, candidate{rule: r, trigger: t})
	}

	seq := func(yield func(Due) bool) {
		for _, c := range active {
			var targets []*billing.Bill
			if c.trigger.PerMember() {
				if !Matches(c.trigger, now, time.Time{}) {
					continue
				}
				targets = earliestPendingPerMember(c.rule.LodgeID, bills)
			} else {
				targets = matchingBills(c, now, bills)
			}

			for _, b := range targets {
				d := Due{Rule: c.rule, Trigger: c.trigger, Bill: b, Subject: subjectFor(c.trigger, b)}
				if history != nil && history.HasFiredToday(c.rule.ID, d.Subject, now) {
					continue
				}
				if !yield(d) {
					return
				}
			}
		}
	}
	return seq, warnings
}

// Collect drains an evaluation into a slice.
func Collect(seq iter.Seq[Due]) []Due {
	var out []Due
	for d := range seq {
		out = append(out, d)
	}
	return out
}

// Matches reports whether trigger t fires at now for a bill due on dueDate.
// dueDate is ignored for MonthlyDate triggers.
func Matches(t rule.Trigger, now, dueDate time.Time) bool {
	switch t.Kind() {
	case rule.KindDaysBeforeDue:
		return DaysBetween(now, dueDate) == t.Value()
	case rule.KindDaysAfterDue:
		return DaysBetween(dueDate, now) == t.Value()
	case rule.KindMonthlyDate:
		return now.Day() == clampDayOfMonth(now, t.Value())
	default:
		return false
	}
}

func matchingBills(c candidate, now time.Time, bills []*billing.Bill) []*billing.Bill {
	var out []*billing.Bill
	for _, b := range bills {
		if b == nil || !b.Pending() || b.LodgeID != c.rule.LodgeID {
			continue
		}
		if Matches(c.trigger, now, b.DueDate) {
			out = append(out, b)
		}
	}
	return out
}

// earliestPendingPerMember picks one pending bill per member of the lodge,
// in order of each member's first appearance in bills.
func earliestPendingPerMember(lodgeID int64, bills []*billing.Bill) []*billing.Bill {
	var order []int64
	best := make(map[int64]*billing.Bill)
	for _, b := range bills {
		if b == nil || !b.Pending() || b.LodgeID != lodgeID {
			continue
		}
		current, seen := best[b.MemberID]
		if !seen {
			order = append(order, b.MemberID)
			best[b.MemberID] = b
			continue
		}
		if earlier(b, current) {
			best[b.MemberID] = b
		}
	}

	out := make([]*billing.Bill, 0, len(order))
	for _, memberID := range order {
		out = append(out, best[memberID])
	}
	return out
}

func earlier(a, b *billing.Bill) bool {
	if da, db := civilDate(a.DueDate), civilDate(b.DueDate); !da.Equal(db) {
		return da.Before(db)
	}
	return a.ID < b.ID
}

func subjectFor(t rule.Trigger, b *billing.Bill) string {
	if t.PerMember() {
		return ledger.MemberSubject(b.MemberID)
	}
	return ledger.BillSubject(b.ID)
}
