// internal/domain/rule/trigger.go
package rule

import (
	"fmt"
	"strings"
)

// TriggerKind is the stored name of a trigger variant.
type TriggerKind string

const (
	KindDaysBeforeDue TriggerKind = "DAYS_BEFORE_DUE"
	KindDaysAfterDue  TriggerKind = "DAYS_AFTER_DUE"
	KindMonthlyDate   TriggerKind = "MONTHLY_DATE"
)

const (
	minDayOffset  = 0
	maxDayOffset  = 365
	minDayOfMonth = 1
	maxDayOfMonth = 31
)

// Trigger is one of DaysBeforeDue(n), DaysAfterDue(n) or MonthlyDate(d).
// The zero value is not a valid trigger; build one with the constructors
// or ParseTrigger.
type Trigger struct {
	kind  TriggerKind
	value int
}

// DaysBeforeDue fires when a pending bill is due exactly n calendar days from now.
func DaysBeforeDue(n int) (Trigger, error) {
	if n < minDayOffset || n > maxDayOffset {
		return Trigger{}, fmt.Errorf("%w: days before due must be between %d and %d, got %d", ErrInvalidRule, minDayOffset, maxDayOffset, n)
	}
	return Trigger{kind: KindDaysBeforeDue, value: n}, nil
}

// DaysAfterDue fires when a pending bill is overdue by exactly n calendar days.
func DaysAfterDue(n int) (Trigger, error) {
	if n < minDayOffset || n > maxDayOffset {
		return Trigger{}, fmt.Errorf("%w: days after due must be between %d and %d, got %d", ErrInvalidRule, minDayOffset, maxDayOffset, n)
	}
	return Trigger{kind: KindDaysAfterDue, value: n}, nil
}

// MonthlyDate fires on day d of every month, clamped to the month's last day.
func MonthlyDate(d int) (Trigger, error) {
	if d < minDayOfMonth || d > maxDayOfMonth {
		return Trigger{}, fmt.Errorf("%w: day of month must be between %d and %d, got %d", ErrInvalidRule, minDayOfMonth, maxDayOfMonth, d)
	}
	return Trigger{kind: KindMonthlyDate, value: d}, nil
}

// ParseTrigger builds a Trigger from its stored kind and value.
func ParseTrigger(kind string, value int) (Trigger, error) {
	switch TriggerKind(strings.ToUpper(strings.TrimSpace(kind))) {
	case KindDaysBeforeDue:
		return DaysBeforeDue(value)
	case KindDaysAfterDue:
		return DaysAfterDue(value)
	case KindMonthlyDate:
		return MonthlyDate(value)
	default:
		return Trigger{}, fmt.Errorf("%w: unknown trigger %q", ErrInvalidRule, kind)
	}
}

func (t Trigger) Kind() TriggerKind { return t.kind }
func (t Trigger) Value() int { return t.value }

// IsZero reports whether t was never constructed.
func (t Trigger) IsZero() bool { return t.kind == "" }

// PerMember reports whether the trigger emits one event per member instead of one per bill.
func (t Trigger) PerMember() bool { return t.kind == KindMonthlyDate }

func (t Trigger) String() string {
	switch t.kind {
	case KindDaysBeforeDue:
		return fmt.Sprintf("%d day(s) before due", t.value)
	case KindDaysAfterDue:
		return fmt.Sprintf("%d day(s) after due", t.value)
	case KindMonthlyDate:
		return fmt.Sprintf("monthly on day %d", t.value)
	default:
		return "invalid trigger"
	}
}
