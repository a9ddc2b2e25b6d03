// internal/domain/template/template.go
package template

import (
	"context"
	"time"
)

// Template is a message template referenced by automation rules.
// Subject is only used by the email channel.
type Template struct {
	Ref       string
	Subject   string
	Body      string
	UpdatedAt time.Time
}

// Repository defines read access to message templates.
type Repository interface {
	GetByRef(ctx context.Context, ref string) (*Template, error)
}
