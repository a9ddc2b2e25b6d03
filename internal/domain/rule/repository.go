package rule

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the operations for persisting and retrieving automation rules.
type Repository interface {
	Create(ctx context.Context, r *Rule) error
	GetByID(ctx context.Context, id uuid.UUID) (*Rule, error)
	Update(ctx context.Context, r *Rule) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListAll(ctx context.Context) ([]*Rule, error)
	ListEnabled(ctx context.Context) ([]*Rule, error)
}
