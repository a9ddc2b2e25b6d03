package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"lodge_billing_notifier/internal/domain/rule"

	"github.com/google/uuid"
)

// ErrRuleNotFound is returned when no automation rule matches the given ID.
var ErrRuleNotFound = fmt.Errorf("automation rule not found")

const ruleColumns = `id, lodge_id, name, trigger_kind, trigger_value, channel, template_ref, enabled, created_at, updated_at`

type PostgresRuleRepository struct {
	db *sql.DB
}

func NewPostgresRuleRepository(db *sql.DB) *PostgresRuleRepository {
	return &PostgresRuleRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*rule.Rule, error) {
	r := &rule.Rule{}
	var kind, channel string
	err := row.Scan(&r.ID, &r.LodgeID, &r.Name, &kind, &r.TriggerValue, &channel, &r.TemplateRef, &r.Enabled, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	// Stored values are kept as-is; the evaluator validates them and warns on bad rows.
	r.TriggerKind = rule.TriggerKind(kind)
	r.Channel = rule.Channel(channel)
	return r, nil
}

func (repo *PostgresRuleRepository) Create(ctx context.Context, r *rule.Rule) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	query := `INSERT INTO automation_rules (id, lodge_id, name, trigger_kind, trigger_value, channel, template_ref, enabled)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
               RETURNING created_at, updated_at`
	err := repo.db.QueryRowContext(ctx, query,
		r.ID, r.LodgeID, r.Name, string(r.TriggerKind), r.TriggerValue, string(r.Channel), r.TemplateRef, r.Enabled,
	).Scan(&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating automation rule: %w", err)
	}
	return nil
}

func (repo *PostgresRuleRepository) GetByID(ctx context.Context, id uuid.UUID) (*rule.Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM automation_rules WHERE id = $1`
	r, err := scanRule(repo.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRuleNotFound
		}
		return nil, fmt.Errorf("error getting automation rule by ID: %w", err)
	}
	return r, nil
}

func (repo *PostgresRuleRepository) Update(ctx context.Context, r *rule.Rule) error {
	query := `UPDATE automation_rules
               SET name = $1, trigger_kind = $2, trigger_value = $3, channel = $4, template_ref = $5, enabled = $6, updated_at = NOW()
               WHERE id = $7
               RETURNING updated_at`
	err := repo.db.QueryRowContext(ctx, query,
		r.Name, string(r.TriggerKind), r.TriggerValue, string(r.Channel), r.TemplateRef, r.Enabled, r.ID,
	).Scan(&r.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrRuleNotFound
		}
		return fmt.Errorf("error updating automation rule: %w", err)
	}
	return nil
}

// Delete removes the rule permanently. Its execution records are kept.
func (repo *PostgresRuleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM automation_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting automation rule: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking deleted automation rule: %w", err)
	}
	if n == 0 {
		return ErrRuleNotFound
	}
	return nil
}

func (repo *PostgresRuleRepository) ListAll(ctx context.Context) ([]*rule.Rule, error) {
	return repo.list(ctx, `SELECT `+ruleColumns+` FROM automation_rules ORDER BY created_at, id`)
}

func (repo *PostgresRuleRepository) ListEnabled(ctx context.Context) ([]*rule.Rule, error) {
	return repo.list(ctx, `SELECT `+ruleColumns+` FROM automation_rules WHERE enabled = TRUE ORDER BY created_at, id`)
}

func (repo *PostgresRuleRepository) list(ctx context.Context, query string) ([]*rule.Rule, error) {
	rows, err := repo.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing automation rules: %w", err)
	}
	defer rows.Close()

	rules := make([]*rule.Rule, 0)
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning automation rule: %w", err)
		}
		rules = append(rules, r)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating automation rules: %w", err)
	}
	return rules, nil
}
