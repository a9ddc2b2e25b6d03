// internal/domain/notification/emitter.go
package notification

import (
	"context"

	"lodge_billing_notifier/internal/domain/billing"
	"lodge_billing_notifier/internal/domain/rule"
)

// Emitter delivers one rendered notification to a member.
// A nil error means the message was handed off (Sent); any error is a send
// failure whose text is stored verbatim in the ledger.
type Emitter interface {
	Send(ctx context.Context, channel rule.Channel, templateRef string, member *billing.Member, bill *billing.Bill) error
}
