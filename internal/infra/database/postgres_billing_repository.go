package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"lodge_billing_notifier/internal/domain/billing"

	"github.com/shopspring/decimal"
)

// PostgresBillingRepository reads bills and members owned by the billing system.
// It implements both billing.BillRepository and billing.MemberRepository.
type PostgresBillingRepository struct {
	db *sql.DB
}

func NewPostgresBillingRepository(db *sql.DB) *PostgresBillingRepository {
	return &PostgresBillingRepository{db: db}
}

func (r *PostgresBillingRepository) ListOutstanding(ctx context.Context) ([]*billing.Bill, error) {
	query := `SELECT id, lodge_id, member_id, COALESCE(description, ''), amount, to_char(due_date, 'YYYY-MM-DD'), status
               FROM bills WHERE status = $1 ORDER BY due_date, id`

	rows, err := r.db.QueryContext(ctx, query, string(billing.BillStatusPending))
	if err != nil {
		return nil, fmt.Errorf("error listing outstanding bills: %w", err)
	}
	defer rows.Close()

	bills := make([]*billing.Bill, 0)
	for rows.Next() {
		b := &billing.Bill{}
		var amount decimal.Decimal
		var dueDate, status string
		if err := rows.Scan(&b.ID, &b.LodgeID, &b.MemberID, &b.Description, &amount, &dueDate, &status); err != nil {
			return nil, fmt.Errorf("error scanning outstanding bill: %w", err)
		}
		// DATE columns carry no zone; keep the calendar date as written.
		b.DueDate, err = time.Parse(time.DateOnly, dueDate)
		if err != nil {
			return nil, fmt.Errorf("error parsing due date of bill %d: %w", b.ID, err)
		}
		b.Amount = amount
		b.Status = billing.BillStatus(status)
		bills = append(bills, b)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outstanding bills: %w", err)
	}
	return bills, nil
}

func (r *PostgresBillingRepository) ListActive(ctx context.Context) ([]*billing.Member, error) {
	query := `SELECT id, lodge_id, full_name, COALESCE(email, ''), COALESCE(phone, ''),
                      COALESCE(whatsapp, ''), COALESCE(push_player_id, ''), active
               FROM members WHERE active = TRUE ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing active members: %w", err)
	}
	defer rows.Close()

	members := make([]*billing.Member, 0)
	for rows.Next() {
		m := &billing.Member{}
		if err := rows.Scan(&m.ID, &m.LodgeID, &m.FullName, &m.Email, &m.Phone, &m.WhatsApp, &m.PushPlayerID, &m.Active); err != nil {
			return nil, fmt.Errorf("error scanning active member: %w", err)
		}
		members = append(members, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating active members: %w", err)
	}
	return members, nil
}
