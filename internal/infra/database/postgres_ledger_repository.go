// internal/infra/database/postgres_ledger_repository.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"lodge_billing_notifier/internal/domain/ledger"
	"lodge_billing_notifier/internal/domain/rule"

	"github.com/google/uuid"
)

const recordColumns = `id, rule_id, bill_id, member_id, subject, channel, fired_at, outcome, failure_reason`

// defaultRecentLimit caps ListRecent when the filter sets no limit.
const defaultRecentLimit = 50

// PostgresLedgerRepository is the append-only execution ledger.
// The partial unique index on (rule_id, subject, fired_day) WHERE outcome = 'SENT'
// makes a duplicate Sent insert a no-op, which Record reports as ledger.ErrAlreadyFired.
type PostgresLedgerRepository struct {
	db *sql.DB
}

func NewPostgresLedgerRepository(db *sql.DB) *PostgresLedgerRepository {
	return &PostgresLedgerRepository{db: db}
}

// firedDay is the calendar day of t in t's own location, as a DATE literal.
func firedDay(t time.Time) string {
	return t.Format(time.DateOnly)
}

// recordExecutionQuery only suppresses a duplicate Sent for the same rule,
// subject and day. The target matches execution_records_sent_once_idx.
const recordExecutionQuery = `INSERT INTO execution_records (id, rule_id, bill_id, member_id, subject, channel, fired_at, fired_day, outcome, failure_reason)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
               ON CONFLICT (rule_id, subject, fired_day) WHERE outcome = 'SENT' DO NOTHING`

func (r *PostgresLedgerRepository) Record(ctx context.Context, rec *ledger.ExecutionRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	res, err := r.db.ExecContext(ctx, recordExecutionQuery,
		rec.ID, rec.RuleID, rec.BillID, rec.MemberID, rec.Subject, string(rec.Channel),
		rec.FiredAt, firedDay(rec.FiredAt), string(rec.Outcome), rec.FailureReason,
	)
	if err != nil {
		return fmt.Errorf("error recording execution: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking recorded execution: %w", err)
	}
	if n == 0 {
		return ledger.ErrAlreadyFired
	}
	return nil
}

func (r *PostgresLedgerRepository) HasFiredToday(ctx context.Context, ruleID uuid.UUID, subject string, now time.Time) (bool, error) {
	query := `SELECT EXISTS (
                   SELECT 1 FROM execution_records
                   WHERE rule_id = $1 AND subject = $2 AND fired_day = $3 AND outcome = $4
               )`
	var exists bool
	err := r.db.QueryRowContext(ctx, query, ruleID, subject, firedDay(now), string(ledger.OutcomeSent)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("error checking execution ledger: %w", err)
	}
	return exists, nil
}

func (r *PostgresLedgerRepository) ListSince(ctx context.Context, since time.Time) ([]*ledger.ExecutionRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM execution_records WHERE fired_at >= $1 ORDER BY fired_at, id`
	return r.list(ctx, query, since)
}

// ListRecent returns the newest records first.
func (r *PostgresLedgerRepository) ListRecent(ctx context.Context, filter ledger.Filter) ([]*ledger.ExecutionRecord, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Outcome != "" {
		args = append(args, string(filter.Outcome))
		conds = append(conds, fmt.Sprintf("outcome = $%d", len(args)))
	}
	if filter.RuleID != uuid.Nil {
		args = append(args, filter.RuleID)
		conds = append(conds, fmt.Sprintf("rule_id = $%d", len(args)))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	args = append(args, limit)

	query := `SELECT ` + recordColumns + ` FROM execution_records`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += fmt.Sprintf(` ORDER BY fired_at DESC, id LIMIT $%d`, len(args))
	return r.list(ctx, query, args...)
}

func (r *PostgresLedgerRepository) PruneBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM execution_records WHERE fired_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("error pruning execution ledger: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error counting pruned executions: %w", err)
	}
	return n, nil
}

func (r *PostgresLedgerRepository) list(ctx context.Context, query string, args ...any) ([]*ledger.ExecutionRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing executions: %w", err)
	}
	defer rows.Close()

	records := make([]*ledger.ExecutionRecord, 0)
	for rows.Next() {
		rec := &ledger.ExecutionRecord{}
		var channel, outcome string
		if err := rows.Scan(&rec.ID, &rec.RuleID, &rec.BillID, &rec.MemberID, &rec.Subject, &channel, &rec.FiredAt, &outcome, &rec.FailureReason); err != nil {
			return nil, fmt.Errorf("error scanning execution: %w", err)
		}
		rec.Channel = rule.Channel(channel)
		rec.Outcome = ledger.Outcome(outcome)
		records = append(records, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}
	return records, nil
}
