// Package dispatch turns a due (rule, bill) pair into a delivered message.
package dispatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	texttemplate "text/template"
	"time"

	"lodge_billing_notifier/internal/domain/billing"
	"lodge_billing_notifier/internal/domain/rule"
	"lodge_billing_notifier/internal/domain/template"
	"lodge_billing_notifier/internal/infra/email"

	"github.com/sirupsen/logrus"
)

var (
	// ErrNoContact means the member has no address on file for the rule's channel.
	ErrNoContact = errors.New("member has no contact for channel")
	// ErrChannelUnavailable means the channel has no configured transport.
	ErrChannelUnavailable = errors.New("notification channel is not configured")
)

// EmailSender delivers email messages.
type EmailSender interface {
	Send(ctx context.Context, msg email.Message) error
}

// Publisher hands messages for the other channels to the gateway workers.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body any) error
}

// GatewayMessage is the payload published for SMS, WhatsApp and push gateways.
type GatewayMessage struct {
	Channel     rule.Channel `json:"channel"`
	To          string       `json:"to"`
	Body        string       `json:"body"`
	MemberID    int64        `json:"member_id"`
	BillID      int64        `json:"bill_id"`
	TemplateRef string       `json:"template_ref"`
	CreatedAt   time.Time    `json:"created_at"`
}

// RoutingKey is the topic a channel's messages are published under.
func RoutingKey(channel rule.Channel) string {
	return "notification." + strings.ToLower(string(channel))
}

// Emitter implements notification.Emitter.
// A nil email sender or publisher disables the channels it serves.
type Emitter struct {
	templates  template.Repository
	email      EmailSender
	publisher  Publisher
	senderName string
	logger     *logrus.Entry
}

func NewEmitter(templates template.Repository, emailSender EmailSender, publisher Publisher, senderName string, logger *logrus.Entry) *Emitter {
	return &Emitter{
		templates:  templates,
		email:      emailSender,
		publisher:  publisher,
		senderName: senderName,
		logger:     logger,
	}
}

func (e *Emitter) Send(ctx context.Context, channel rule.Channel, templateRef string, member *billing.Member, bill *billing.Bill) error {
	to := member.Address(channel)
	if to == "" {
		return fmt.Errorf("%w %s", ErrNoContact, channel)
	}

	tmpl, err := e.templates.GetByRef(ctx, templateRef)
	if err != nil {
		return fmt.Errorf("failed to load template %q: %w", templateRef, err)
	}
	subject, body, err := Render(tmpl, NewMessageData(member, bill, e.senderName))
	if err != nil {
		return err
	}

	log := e.logger.WithFields(logrus.Fields{"channel": channel, "member_id": member.ID, "bill_id": bill.ID})
	switch channel {
	case rule.ChannelEmail:
		if e.email == nil {
			return fmt.Errorf("%w: %s", ErrChannelUnavailable, channel)
		}
		if err := e.email.Send(ctx, email.Message{To: to, ToName: member.FullName, Subject: subject, Body: body}); err != nil {
			return err
		}
	case rule.ChannelSMS, rule.ChannelWhatsApp, rule.ChannelPush:
		if e.publisher == nil {
			return fmt.Errorf("%w: %s", ErrChannelUnavailable, channel)
		}
		msg := GatewayMessage{
			Channel:     channel,
			To:          to,
			Body:        body,
			MemberID:    member.ID,
			BillID:      bill.ID,
			TemplateRef: templateRef,
			CreatedAt:   time.Now().UTC(),
		}
		if err := e.publisher.Publish(ctx, RoutingKey(channel), msg); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: unknown channel %q", rule.ErrInvalidRule, channel)
	}
	log.Debug("Notification handed off")
	return nil
}

// MessageData is what templates can reference, e.g. {{.Member.FirstName}} or {{.Bill.Amount}}.
type MessageData struct {
	Member struct {
		FirstName string
		FullName  string
	}
	Bill struct {
		ID          int64
		Description string
		Amount      string
		DueDate     string
	}
	Sender string
}

func NewMessageData(member *billing.Member, bill *billing.Bill, sender string) MessageData {
	var d MessageData
	d.Member.FirstName = member.FirstName()
	d.Member.FullName = member.FullName
	d.Bill.ID = bill.ID
	d.Bill.Description = bill.Description
	d.Bill.Amount = bill.Amount.StringFixed(2)
	d.Bill.DueDate = bill.DueDate.Format("02/01/2006")
	d.Sender = sender
	return d
}

// Render executes the template's subject and body against data.
// References to unknown fields are errors.
func Render(tmpl *template.Template, data MessageData) (subject, body string, err error) {
	subject, err = execute(tmpl.Ref+":subject", tmpl.Subject, data)
	if err != nil {
		return "", "", err
	}
	body, err = execute(tmpl.Ref+":body", tmpl.Body, data)
	if err != nil {
		return "", "", err
	}
	return strings.TrimSpace(subject), body, nil
}

func execute(name, text string, data MessageData) (string, error) {
	t, err := texttemplate.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", name, err)
	}
	return buf.String(), nil
}
