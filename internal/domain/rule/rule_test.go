package rule

import (
	"errors"
	"testing"
)

func TestParseTrigger(t *testing.T) {
	cases := []struct {
		kind    string
		value   int
		wantErr bool
	}{
		{"DAYS_BEFORE_DUE", 3, false},
		{"days_after_due", 0, false},
		{" MONTHLY_DATE ", 31, false},
		{"MONTHLY_DATE", 0, true},
		{"MONTHLY_DATE", 32, true},
		{"DAYS_BEFORE_DUE", -1, true},
		{"DAYS_AFTER_DUE", 366, true},
		{"WEEKLY", 1, true},
		{"", 1, true},
	}
	for _, tc := range cases {
		trigger, err := ParseTrigger(tc.kind, tc.value)
		if tc.wantErr {
			if !errors.Is(err, ErrInvalidRule) {
				t.Fatalf("ParseTrigger(%q, %d): expected ErrInvalidRule, got %v", tc.kind, tc.value, err)
			}
			if !trigger.IsZero() {
				t.Fatalf("ParseTrigger(%q, %d): expected zero trigger on error", tc.kind, tc.value)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseTrigger(%q, %d): unexpected error %v", tc.kind, tc.value, err)
		}
		if trigger.Value() != tc.value {
			t.Fatalf("ParseTrigger(%q, %d): got value %d", tc.kind, tc.value, trigger.Value())
		}
	}
}

func TestParseChannel(t *testing.T) {
	cases := map[string]Channel{
		"email":     ChannelEmail,
		"E-Mail":    ChannelEmail,
		"sms":       ChannelSMS,
		"WhatsApp":  ChannelWhatsApp,
		"whats_app": ChannelWhatsApp,
		"push":      ChannelPush,
	}
	for raw, want := range cases {
		got, err := ParseChannel(raw)
		if err != nil {
			t.Fatalf("ParseChannel(%q): %v", raw, err)
		}
		if got != want {
			t.Fatalf("ParseChannel(%q): expected %s, got %s", raw, want, got)
		}
	}
	if _, err := ParseChannel("pigeon"); !errors.Is(err, ErrInvalidRule) {
		t.Fatalf("expected unknown channel to be rejected, got %v", err)
	}
}

func TestNew_RejectsInvalidInput(t *testing.T) {
	trigger, err := DaysBeforeDue(3)
	if err != nil {
		t.Fatalf("DaysBeforeDue: %v", err)
	}

	if _, err := New(0, "n", trigger, ChannelEmail, "tpl"); !errors.Is(err, ErrInvalidRule) {
		t.Fatalf("expected lodge id to be required, got %v", err)
	}
	if _, err := New(1, "n", Trigger{}, ChannelEmail, "tpl"); !errors.Is(err, ErrInvalidRule) {
		t.Fatalf("expected zero trigger to be rejected, got %v", err)
	}
	if _, err := New(1, "n", trigger, Channel("FAX"), "tpl"); !errors.Is(err, ErrInvalidRule) {
		t.Fatalf("expected unknown channel to be rejected, got %v", err)
	}
	if _, err := New(1, "n", trigger, ChannelEmail, "   "); !errors.Is(err, ErrInvalidRule) {
		t.Fatalf("expected blank template to be rejected, got %v", err)
	}

	r, err := New(1, " Dues reminder ", trigger, ChannelSMS, " dues-3d ")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !r.Enabled || r.Name != "Dues reminder" || r.TemplateRef != "dues-3d" {
		t.Fatalf("unexpected rule %+v", r)
	}
	if got, err := r.Validate(); err != nil || got != trigger {
		t.Fatalf("Validate: got %v, %v", got, err)
	}
}
