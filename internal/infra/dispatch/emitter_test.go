package dispatch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"lodge_billing_notifier/internal/domain/billing"
	"lodge_billing_notifier/internal/domain/rule"
	"lodge_billing_notifier/internal/domain/template"
	idb "lodge_billing_notifier/internal/infra/database"
	"lodge_billing_notifier/internal/infra/email"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

type templateRepoStub map[string]*template.Template

func (s templateRepoStub) GetByRef(_ context.Context, ref string) (*template.Template, error) {
	if t, ok := s[ref]; ok {
		return t, nil
	}
	return nil, idb.ErrTemplateNotFound
}

type emailStub struct {
	sent []email.Message
	err  error
}

func (s *emailStub) Send(_ context.Context, msg email.Message) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

type published struct {
	routingKey string
	body       any
}

type publisherStub struct {
	published []published
}

func (s *publisherStub) Publish(_ context.Context, routingKey string, body any) error {
	s.published = append(s.published, published{routingKey: routingKey, body: body})
	return nil
}

var templates = templateRepoStub{
	"due_soon": {
		Ref:     "due_soon",
		Subject: "Dues reminder: {{.Bill.Description}}",
		Body:    "Hello {{.Member.FirstName}}, {{.Bill.Amount}} is due on {{.Bill.DueDate}}. {{.Sender}}",
	},
	"broken": {Ref: "broken", Body: "Hello {{.Member.Nickname}}"},
}

func testMember() *billing.Member {
	return &billing.Member{ID: 1, LodgeID: 3, FullName: "Ana Souza", Email: "ana@example.org", Phone: "+5511999990000"}
}

func testBill() *billing.Bill {
	return &billing.Bill{
		ID: 100, LodgeID: 3, MemberID: 1, Description: "June dues",
		Amount:  decimal.RequireFromString("150.5"),
		DueDate: time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC),
		Status:  billing.BillStatusPending,
	}
}

func newTestEmitter(mail EmailSender, pub Publisher) *Emitter {
	logger, _ := test.NewNullLogger()
	return NewEmitter(templates, mail, pub, "The Secretary", logrus.NewEntry(logger))
}

func TestSend_EmailRendersTemplate(t *testing.T) {
	mail := &emailStub{}
	e := newTestEmitter(mail, nil)

	if err := e.Send(context.Background(), rule.ChannelEmail, "due_soon", testMember(), testBill()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(mail.sent) != 1 {
		t.Fatalf("expected one email, got %d", len(mail.sent))
	}
	msg := mail.sent[0]
	if msg.To != "ana@example.org" || msg.Subject != "Dues reminder: June dues" {
		t.Fatalf("unexpected email %+v", msg)
	}
	if msg.Body != "Hello Ana, 150.50 is due on 15/06/2024. The Secretary" {
		t.Fatalf("unexpected body %q", msg.Body)
	}
}

func TestSend_WhatsAppFallsBackToPhone(t *testing.T) {
	pub := &publisherStub{}
	e := newTestEmitter(nil, pub)

	if err := e.Send(context.Background(), rule.ChannelWhatsApp, "due_soon", testMember(), testBill()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(pub.published) != 1 || pub.published[0].routingKey != "notification.whatsapp" {
		t.Fatalf("unexpected publish %+v", pub.published)
	}
	msg, ok := pub.published[0].body.(GatewayMessage)
	if !ok || msg.To != "+5511999990000" || msg.BillID != 100 {
		t.Fatalf("unexpected gateway message %+v", pub.published[0].body)
	}
}

func TestSend_Failures(t *testing.T) {
	noPush := testMember()

	cases := []struct {
		name    string
		emitter *Emitter
		channel rule.Channel
		ref     string
		want    error
	}{
		{name: "no push id", emitter: newTestEmitter(nil, &publisherStub{}), channel: rule.ChannelPush, ref: "due_soon", want: ErrNoContact},
		{name: "sms without broker", emitter: newTestEmitter(nil, nil), channel: rule.ChannelSMS, ref: "due_soon", want: ErrChannelUnavailable},
		{name: "email without smtp", emitter: newTestEmitter(nil, nil), channel: rule.ChannelEmail, ref: "due_soon", want: ErrChannelUnavailable},
		{name: "missing template", emitter: newTestEmitter(&emailStub{}, nil), channel: rule.ChannelEmail, ref: "nope", want: idb.ErrTemplateNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.emitter.Send(context.Background(), tc.channel, tc.ref, noPush, testBill())
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestSend_BrokenTemplateFails(t *testing.T) {
	mail := &emailStub{}
	e := newTestEmitter(mail, nil)

	err := e.Send(context.Background(), rule.ChannelEmail, "broken", testMember(), testBill())
	if err == nil || !strings.Contains(err.Error(), "broken") {
		t.Fatalf("expected a render error, got %v", err)
	}
	if len(mail.sent) != 0 {
		t.Fatal("expected nothing sent")
	}
}

func TestSend_TransportErrorIsReturnedVerbatim(t *testing.T) {
	mail := &emailStub{err: errors.New("554 mailbox unavailable")}
	e := newTestEmitter(mail, nil)

	err := e.Send(context.Background(), rule.ChannelEmail, "due_soon", testMember(), testBill())
	if err == nil || err.Error() != "554 mailbox unavailable" {
		t.Fatalf("expected the transport error, got %v", err)
	}
}
