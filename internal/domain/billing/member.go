package billing

import (
	"strings"

	"lodge_billing_notifier/internal/domain/rule"
)

// Member is a lodge member with the contact data the notifier needs.
type Member struct {
	ID           int64
	LodgeID      int64
	FullName     string
	Email        string
	Phone        string
	WhatsApp     string // falls back to Phone when empty
	PushPlayerID string
	Active       bool
}

// FirstName returns the first word of the member's full name.
func (m *Member) FirstName() string {
	fields := strings.Fields(m.FullName)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Address returns the member's contact for the given channel, or "" when none is on file.
func (m *Member) Address(channel rule.Channel) string {
	switch channel {
	case rule.ChannelEmail:
		return strings.TrimSpace(m.Email)
	case rule.ChannelSMS:
		return strings.TrimSpace(m.Phone)
	case rule.ChannelWhatsApp:
		if wa := strings.TrimSpace(m.WhatsApp); wa != "" {
			return wa
		}
		return strings.TrimSpace(m.Phone)
	case rule.ChannelPush:
		return strings.TrimSpace(m.PushPlayerID)
	default:
		return ""
	}
}
