// internal/domain/ledger/repository.go
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Filter narrows ListRecent. Zero values mean "any".
type Filter struct {
	Outcome Outcome
	RuleID  uuid.UUID
	Limit   int
}

// Repository is the append-only execution ledger.
type Repository interface {
	// Record appends rec. A Sent record that would duplicate an existing Sent
	// record for the same (rule, subject, day) is rejected with ErrAlreadyFired.
	Record(ctx context.Context, rec *ExecutionRecord) error
	// HasFiredToday reports whether a Sent record exists for the rule and subject on now's calendar day.
	HasFiredToday(ctx context.Context, ruleID uuid.UUID, subject string, now time.Time) (bool, error)
	ListSince(ctx context.Context, since time.Time) ([]*ExecutionRecord, error)
	ListRecent(ctx context.Context, filter Filter) ([]*ExecutionRecord, error)
	// PruneBefore drops records fired before the given instant and returns how many were removed.
	PruneBefore(ctx context.Context, before time.Time) (int64, error)
}
