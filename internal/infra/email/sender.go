// Package email delivers rendered notifications over SMTP.
package email

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/badoux/checkmail"
	"gopkg.in/gomail.v2"
)

// ErrInvalidAddress is returned for recipients that are not well-formed email addresses.
var ErrInvalidAddress = errors.New("invalid email address")

// Message is one outgoing email. Body is plain text.
type Message struct {
	To      string
	ToName  string
	Subject string
	Body    string
}

// Sender sends mail through one SMTP server.
type Sender struct {
	dialer    *gomail.Dialer
	fromEmail string
	fromName  string
}

func NewSender(host string, port int, username, password, fromEmail, fromName string) *Sender {
	return &Sender{
		dialer:    gomail.NewDialer(host, port, username, password),
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

// Send validates the recipient and delivers msg. The SMTP exchange itself is not
// interruptible, so ctx is only checked before dialing.
func (s *Sender) Send(ctx context.Context, msg Message) error {
	m, err := s.buildMessage(msg)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("error sending email: %w", err)
	}
	return nil
}

func (s *Sender) buildMessage(msg Message) (*gomail.Message, error) {
	to := strings.TrimSpace(msg.To)
	if err := checkmail.ValidateFormat(to); err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidAddress, to, err)
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.fromEmail, s.fromName)
	if msg.ToName != "" {
		m.SetAddressHeader("To", to, msg.ToName)
	} else {
		m.SetHeader("To", to)
	}
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)
	return m, nil
}
