package email

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestSend_RejectsMalformedAddress(t *testing.T) {
	s := NewSender("smtp.invalid", 587, "", "", "secretary@lodge.org", "Lodge Secretary")

	err := s.Send(context.Background(), Message{To: "not-an-address", Subject: "Dues", Body: "hello"})
	if !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress, got %v", err)
	}
}

func TestSend_CancelledContextDoesNotDial(t *testing.T) {
	s := NewSender("smtp.invalid", 587, "", "", "secretary@lodge.org", "Lodge Secretary")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Send(ctx, Message{To: "ana@example.org", Subject: "Dues", Body: "hello"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestBuildMessage_Headers(t *testing.T) {
	s := NewSender("smtp.example.org", 587, "", "", "secretary@lodge.org", "Lodge Secretary")

	m, err := s.buildMessage(Message{To: " ana@example.org ", ToName: "Ana Souza", Subject: "Your dues", Body: "Hello Ana"})
	if err != nil {
		t.Fatalf("buildMessage: %v", err)
	}
	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	raw := buf.String()
	for _, want := range []string{"Subject: Your dues", "ana@example.org", "secretary@lodge.org", "Hello Ana"} {
		if !strings.Contains(raw, want) {
			t.Fatalf("expected %q in message:\n%s", want, raw)
		}
	}
}
