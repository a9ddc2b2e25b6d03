// internal/domain/rule/rule.go
package rule

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidRule marks a rule whose trigger, channel or template cannot be used.
var ErrInvalidRule = errors.New("invalid automation rule")

// Channel is the delivery channel of a rule.
type Channel string

const (
	ChannelEmail    Channel = "EMAIL"
	ChannelSMS      Channel = "SMS"
	ChannelWhatsApp Channel = "WHATSAPP"
	ChannelPush     Channel = "PUSH"
)

// Channels lists every supported channel in display order.
var Channels = []Channel{ChannelEmail, ChannelSMS, ChannelWhatsApp, ChannelPush}

// ParseChannel normalizes a user or stored channel name.
func ParseChannel(raw string) (Channel, error) {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	normalized = strings.NewReplacer("-", "", "_", "", " ", "").Replace(normalized)
	switch normalized {
	case "EMAIL", "MAIL":
		return ChannelEmail, nil
	case "SMS":
		return ChannelSMS, nil
	case "WHATSAPP", "WA":
		return ChannelWhatsApp, nil
	case "PUSH":
		return ChannelPush, nil
	default:
		return "", fmt.Errorf("%w: unknown channel %q", ErrInvalidRule, raw)
	}
}

// Valid reports whether c is one of the supported channels.
func (c Channel) Valid() bool {
	for _, known := range Channels {
		if c == known {
			return true
		}
	}
	return false
}

// Rule is an administrator-configured notification automation.
// Corresponds to the 'automation_rules' table.
type Rule struct {
	ID           uuid.UUID
	LodgeID      int64
	Name         string
	TriggerKind  TriggerKind
	TriggerValue int
	Channel      Channel
	TemplateRef  string
	Enabled      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// New builds an enabled rule, rejecting invalid input.
func New(lodgeID int64, name string, trigger Trigger, channel Channel, templateRef string) (*Rule, error) {
	if lodgeID <= 0 {
		return nil, fmt.Errorf("%w: lodge id must be positive", ErrInvalidRule)
	}
	r := &Rule{
		ID:      uuid.New(),
		LodgeID: lodgeID,
		Name:    strings.TrimSpace(name),
		Enabled: true,
	}
	if err := r.Set(trigger, channel, templateRef); err != nil {
		return nil, err
	}
	return r, nil
}

// Set replaces the trigger, channel and template of r after validating them.
func (r *Rule) Set(trigger Trigger, channel Channel, templateRef string) error {
	if trigger.IsZero() {
		return fmt.Errorf("%w: trigger is required", ErrInvalidRule)
	}
	if !channel.Valid() {
		return fmt.Errorf("%w: unknown channel %q", ErrInvalidRule, channel)
	}
	templateRef = strings.TrimSpace(templateRef)
	if templateRef == "" {
		return fmt.Errorf("%w: template reference is required", ErrInvalidRule)
	}
	r.TriggerKind = trigger.Kind()
	r.TriggerValue = trigger.Value()
	r.Channel = channel
	r.TemplateRef = templateRef
	return nil
}

// Trigger parses the stored trigger fields.
func (r *Rule) Trigger() (Trigger, error) {
	return ParseTrigger(string(r.TriggerKind), r.TriggerValue)
}

// Validate re-checks a stored rule and returns its trigger.
// Rows edited outside the admin flows may not satisfy New's checks.
func (r *Rule) Validate() (Trigger, error) {
	t, err := r.Trigger()
	if err != nil {
		return Trigger{}, err
	}
	if !r.Channel.Valid() {
		return Trigger{}, fmt.Errorf("%w: unknown channel %q", ErrInvalidRule, r.Channel)
	}
	if strings.TrimSpace(r.TemplateRef) == "" {
		return Trigger{}, fmt.Errorf("%w: template reference is required", ErrInvalidRule)
	}
	return t, nil
}
