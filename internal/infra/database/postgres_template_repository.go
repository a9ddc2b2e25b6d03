package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"lodge_billing_notifier/internal/domain/template"
)

var ErrTemplateNotFound = fmt.Errorf("message template not found")

type PostgresTemplateRepository struct {
	db *sql.DB
}

func NewPostgresTemplateRepository(db *sql.DB) *PostgresTemplateRepository {
	return &PostgresTemplateRepository{db: db}
}

func (r *PostgresTemplateRepository) GetByRef(ctx context.Context, ref string) (*template.Template, error) {
	query := `SELECT ref, subject, body, updated_at FROM message_templates WHERE ref = $1`
	t := &template.Template{}
	err := r.db.QueryRowContext(ctx, query, ref).Scan(&t.Ref, &t.Subject, &t.Body, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %q", ErrTemplateNotFound, ref)
		}
		return nil, fmt.Errorf("error getting message template: %w", err)
	}
	return t, nil
}
