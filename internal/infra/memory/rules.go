package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"lodge_billing_notifier/internal/domain/rule"
	idb "lodge_billing_notifier/internal/infra/database"

	"github.com/google/uuid"
)

// RuleRepository keeps automation rules in memory. It returns copies so callers
// cannot mutate stored rules without Update.
type RuleRepository struct {
	mu    sync.RWMutex
	rules map[uuid.UUID]*rule.Rule
	now   func() time.Time
}

func NewRuleRepository() *RuleRepository {
	return &RuleRepository{rules: make(map[uuid.UUID]*rule.Rule), now: time.Now}
}

func (r *RuleRepository) Create(_ context.Context, rl *rule.Rule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rl.ID == uuid.Nil {
		rl.ID = uuid.New()
	}
	rl.CreatedAt = r.now()
	rl.UpdatedAt = rl.CreatedAt
	copied := *rl
	r.rules[rl.ID] = &copied
	return nil
}

func (r *RuleRepository) GetByID(_ context.Context, id uuid.UUID) (*rule.Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored, ok := r.rules[id]
	if !ok {
		return nil, idb.ErrRuleNotFound
	}
	copied := *stored
	return &copied, nil
}

func (r *RuleRepository) Update(_ context.Context, rl *rule.Rule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rules[rl.ID]; !ok {
		return idb.ErrRuleNotFound
	}
	rl.UpdatedAt = r.now()
	copied := *rl
	r.rules[rl.ID] = &copied
	return nil
}

func (r *RuleRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rules[id]; !ok {
		return idb.ErrRuleNotFound
	}
	delete(r.rules, id)
	return nil
}

func (r *RuleRepository) ListAll(context.Context) ([]*rule.Rule, error) {
	return r.list(func(*rule.Rule) bool { return true }), nil
}

func (r *RuleRepository) ListEnabled(context.Context) ([]*rule.Rule, error) {
	return r.list(func(rl *rule.Rule) bool { return rl.Enabled }), nil
}

// list returns matching rules ordered by creation, like the Postgres repository.
func (r *RuleRepository) list(keep func(*rule.Rule) bool) []*rule.Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*rule.Rule, 0, len(r.rules))
	for _, stored := range r.rules {
		if keep(stored) {
			copied := *stored
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}
