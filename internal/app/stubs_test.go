package app

import (
	"context"
	"errors"
	"sync"

	"lodge_billing_notifier/internal/domain/billing"
	"lodge_billing_notifier/internal/domain/rule"
	idb "lodge_billing_notifier/internal/infra/database"

	"github.com/google/uuid"
)

type ruleRepoStub struct {
	rules     []*rule.Rule
	listErr   error
	updateErr error
}

func (s *ruleRepoStub) Create(_ context.Context, r *rule.Rule) error {
	s.rules = append(s.rules, r)
	return nil
}

func (s *ruleRepoStub) GetByID(_ context.Context, id uuid.UUID) (*rule.Rule, error) {
	for _, r := range s.rules {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, idb.ErrRuleNotFound
}

func (s *ruleRepoStub) Update(_ context.Context, r *rule.Rule) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	for i, existing := range s.rules {
		if existing.ID == r.ID {
			s.rules[i] = r
			return nil
		}
	}
	return idb.ErrRuleNotFound
}

func (s *ruleRepoStub) Delete(_ context.Context, id uuid.UUID) error {
	for i, r := range s.rules {
		if r.ID == id {
			s.rules = append(s.rules[:i], s.rules[i+1:]...)
			return nil
		}
	}
	return idb.ErrRuleNotFound
}

func (s *ruleRepoStub) ListAll(context.Context) ([]*rule.Rule, error) {
	return s.rules, s.listErr
}

func (s *ruleRepoStub) ListEnabled(context.Context) ([]*rule.Rule, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []*rule.Rule
	for _, r := range s.rules {
		if r.Enabled {
			out = append(out, r)
		}
	}
	return out, nil
}

type billingStub struct {
	bills      []*billing.Bill
	members    []*billing.Member
	billsErr   error
	membersErr error
}

func (s *billingStub) ListOutstanding(context.Context) ([]*billing.Bill, error) {
	return s.bills, s.billsErr
}

func (s *billingStub) ListActive(context.Context) ([]*billing.Member, error) {
	return s.members, s.membersErr
}

type sentMessage struct {
	channel     rule.Channel
	templateRef string
	memberID    int64
	billID      int64
}

// emitterStub fails every send to a member listed in failFor.
type emitterStub struct {
	mu      sync.Mutex
	sent    []sentMessage
	failFor map[int64]error
	onSend  func()
}

func (e *emitterStub) Send(_ context.Context, channel rule.Channel, templateRef string, member *billing.Member, bill *billing.Bill) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.onSend != nil {
		e.onSend()
	}
	if err, ok := e.failFor[member.ID]; ok {
		return err
	}
	e.sent = append(e.sent, sentMessage{channel: channel, templateRef: templateRef, memberID: member.ID, billID: bill.ID})
	return nil
}

var errGatewayDown = errors.New("gateway timeout")
