package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"lodge_billing_notifier/internal/domain/rule"
	idb "lodge_billing_notifier/internal/infra/database"
)

func TestRuleRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewRuleRepository()
	clock := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	trigger, _ := rule.MonthlyDate(10)
	first, _ := rule.New(3, "monthly", trigger, rule.ChannelEmail, "monthly")
	second, _ := rule.New(3, "monthly sms", trigger, rule.ChannelSMS, "monthly")
	second.Enabled = false
	for _, r := range []*rule.Rule{first, second} {
		if err := repo.Create(ctx, r); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	all, _ := repo.ListAll(ctx)
	if len(all) != 2 || all[0].ID != first.ID {
		t.Fatalf("expected creation order, got %+v", all)
	}
	enabled, _ := repo.ListEnabled(ctx)
	if len(enabled) != 1 || enabled[0].ID != first.ID {
		t.Fatalf("expected only the enabled rule, got %+v", enabled)
	}

	got, _ := repo.GetByID(ctx, first.ID)
	got.Enabled = false
	if stored, _ := repo.GetByID(ctx, first.ID); !stored.Enabled {
		t.Fatal("mutating a returned rule must not change the stored one")
	}

	if err := repo.Delete(ctx, first.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.GetByID(ctx, first.ID); !errors.Is(err, idb.ErrRuleNotFound) {
		t.Fatalf("expected ErrRuleNotFound, got %v", err)
	}
	if err := repo.Update(ctx, first); !errors.Is(err, idb.ErrRuleNotFound) {
		t.Fatalf("expected ErrRuleNotFound on update, got %v", err)
	}
}
