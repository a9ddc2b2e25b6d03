// Package memory holds in-process implementations of the domain repositories.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"lodge_billing_notifier/internal/domain/ledger"

	"github.com/google/uuid"
)

// DefaultWindow keeps today and yesterday, enough for the fired-today check
// in any time zone.
const DefaultWindow = 48 * time.Hour

// Ledger is a mutex-guarded, rolling-window execution ledger.
// Records older than the window are dropped on every write.
type Ledger struct {
	mu      sync.Mutex
	window  time.Duration
	records []*ledger.ExecutionRecord
}

// NewLedger returns an empty ledger. A non-positive window selects DefaultWindow.
func NewLedger(window time.Duration) *Ledger {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Ledger{window: window}
}

func (l *Ledger) Record(ctx context.Context, rec *ledger.ExecutionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if rec.Outcome == ledger.OutcomeSent && l.hasFired(rec.RuleID, rec.Subject, rec.FiredAt) {
		return ledger.ErrAlreadyFired
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	copied := *rec
	l.records = append(l.records, &copied)
	l.evict(rec.FiredAt.Add(-l.window))
	return nil
}

func (l *Ledger) HasFiredToday(ctx context.Context, ruleID uuid.UUID, subject string, now time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hasFired(ruleID, subject, now), nil
}

func (l *Ledger) ListSince(ctx context.Context, since time.Time) ([]*ledger.ExecutionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]*ledger.ExecutionRecord, 0)
	for _, rec := range l.records {
		if !rec.FiredAt.Before(since) {
			copied := *rec
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (l *Ledger) ListRecent(ctx context.Context, filter ledger.Filter) ([]*ledger.ExecutionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]*ledger.ExecutionRecord, 0)
	for _, rec := range l.records {
		if filter.Outcome != "" && rec.Outcome != filter.Outcome {
			continue
		}
		if filter.RuleID != uuid.Nil && rec.RuleID != filter.RuleID {
			continue
		}
		copied := *rec
		out = append(out, &copied)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FiredAt.After(out[j].FiredAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (l *Ledger) PruneBefore(ctx context.Context, before time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.evict(before), nil
}

// Len reports how many records are currently held.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

func (l *Ledger) hasFired(ruleID uuid.UUID, subject string, now time.Time) bool {
	return ledger.History(l.records).HasFiredToday(ruleID, subject, now)
}

// evict drops records fired before cutoff. Callers hold mu.
func (l *Ledger) evict(cutoff time.Time) int64 {
	kept := l.records[:0]
	var removed int64
	for _, rec := range l.records {
		if rec.FiredAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	for i := len(kept); i < len(l.records); i++ {
		l.records[i] = nil
	}
	l.records = kept
	return removed
}
