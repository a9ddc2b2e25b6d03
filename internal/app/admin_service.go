package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"lodge_billing_notifier/internal/domain/ledger"
	"lodge_billing_notifier/internal/domain/rule"
	idb "lodge_billing_notifier/internal/infra/database"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Custom application-level errors for admin service
var ErrAdminNotAuthorized = fmt.Errorf("performing user is not authorized as an admin")
var ErrRuleAlreadyInState = fmt.Errorf("automation rule is already in the requested state")
var ErrInvalidFilter = fmt.Errorf("invalid execution filter")

const (
	defaultExecutionsPage = 20
	maxExecutionsPage     = 200
)

// RuleInput holds the editable fields of an automation rule.
type RuleInput struct {
	Name         string `json:"name" validate:"omitempty,max=120"`
	Trigger      string `json:"trigger" validate:"required"`
	TriggerValue int    `json:"trigger_value" validate:"gte=0,lte=365"`
	Channel      string `json:"channel" validate:"required"`
	TemplateRef  string `json:"template_ref" validate:"required,max=100"`
}

// NewRuleInput is RuleInput plus the owning lodge, which cannot change later.
type NewRuleInput struct {
	LodgeID int64 `json:"lodge_id" validate:"required,gt=0"`
	RuleInput
}

type AdminService struct {
	ruleRepo        rule.Repository
	ledgerRepo      ledger.Repository
	validate        *validator.Validate
	adminTelegramID int64
}

func NewAdminService(rr rule.Repository, lr ledger.Repository, adminID int64) *AdminService {
	return &AdminService{
		ruleRepo:        rr,
		ledgerRepo:      lr,
		validate:        validator.New(),
		adminTelegramID: adminID,
	}
}

// AdminID returns the configured administrator's Telegram ID.
func (s *AdminService) AdminID() int64 {
	return s.adminTelegramID
}

// IsAdmin reports whether userID is the configured administrator.
func (s *AdminService) IsAdmin(userID int64) bool {
	return s.adminTelegramID != 0 && userID == s.adminTelegramID
}

func (s *AdminService) authorize(performingAdminID int64) error {
	if !s.IsAdmin(performingAdminID) {
		return ErrAdminNotAuthorized
	}
	return nil
}

// parseInput converts in to domain values.
func (s *AdminService) parseInput(in RuleInput) (rule.Trigger, rule.Channel, error) {
	trigger, err := rule.ParseTrigger(in.Trigger, in.TriggerValue)
	if err != nil {
		return rule.Trigger{}, "", err
	}
	channel, err := rule.ParseChannel(in.Channel)
	if err != nil {
		return rule.Trigger{}, "", err
	}
	return trigger, channel, nil
}

func (s *AdminService) validateStruct(v any) error {
	if err := s.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", strings.ToLower(fe.Field()), fe.Tag()))
			}
			return fmt.Errorf("%w: invalid fields: %s", rule.ErrInvalidRule, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", rule.ErrInvalidRule, err)
	}
	return nil
}

// AddRule creates a new enabled automation rule.
func (s *AdminService) AddRule(ctx context.Context, performingAdminID int64, in NewRuleInput) (*rule.Rule, error) {
	if err := s.authorize(performingAdminID); err != nil {
		return nil, err
	}
	if err := s.validateStruct(in); err != nil {
		return nil, err
	}
	trigger, channel, err := s.parseInput(in.RuleInput)
	if err != nil {
		return nil, err
	}
	r, err := rule.New(in.LodgeID, in.Name, trigger, channel, in.TemplateRef)
	if err != nil {
		return nil, err
	}
	if err := s.ruleRepo.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to create automation rule: %w", err)
	}
	return r, nil
}

// UpdateRule replaces the editable fields of an existing rule. Enabled is left untouched.
func (s *AdminService) UpdateRule(ctx context.Context, performingAdminID int64, id uuid.UUID, in RuleInput) (*rule.Rule, error) {
	if err := s.authorize(performingAdminID); err != nil {
		return nil, err
	}
	if err := s.validateStruct(in); err != nil {
		return nil, err
	}
	trigger, channel, err := s.parseInput(in)
	if err != nil {
		return nil, err
	}

	r, err := s.ruleRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, idb.ErrRuleNotFound) {
			return nil, idb.ErrRuleNotFound
		}
		return nil, fmt.Errorf("failed to get automation rule for update: %w", err)
	}
	if err := r.Set(trigger, channel, in.TemplateRef); err != nil {
		return nil, err
	}
	if name := strings.TrimSpace(in.Name); name != "" {
		r.Name = name
	}
	if err := s.ruleRepo.Update(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to update automation rule: %w", err)
	}
	return r, nil
}

// SetRuleEnabled soft-toggles a rule. Disabled rules stay stored but never fire.
func (s *AdminService) SetRuleEnabled(ctx context.Context, performingAdminID int64, id uuid.UUID, enabled bool) (*rule.Rule, error) {
	if err := s.authorize(performingAdminID); err != nil {
		return nil, err
	}
	r, err := s.ruleRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, idb.ErrRuleNotFound) {
			return nil, idb.ErrRuleNotFound
		}
		return nil, fmt.Errorf("failed to get automation rule: %w", err)
	}
	if r.Enabled == enabled {
		return r, ErrRuleAlreadyInState
	}
	r.Enabled = enabled
	if err := s.ruleRepo.Update(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to update automation rule state: %w", err)
	}
	return r, nil
}

// PatchRule applies an optional field edit and an optional enabled flag in one write.
// Everything is validated before the rule is stored, so a rejected patch changes nothing.
func (s *AdminService) PatchRule(ctx context.Context, performingAdminID int64, id uuid.UUID, in *RuleInput, enabled *bool) (*rule.Rule, error) {
	if err := s.authorize(performingAdminID); err != nil {
		return nil, err
	}
	if in == nil && enabled == nil {
		return nil, fmt.Errorf("%w: nothing to update", rule.ErrInvalidRule)
	}
	var (
		trigger rule.Trigger
		channel rule.Channel
	)
	if in != nil {
		if err := s.validateStruct(*in); err != nil {
			return nil, err
		}
		var err error
		if trigger, channel, err = s.parseInput(*in); err != nil {
			return nil, err
		}
	}

	stored, err := s.ruleRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, idb.ErrRuleNotFound) {
			return nil, idb.ErrRuleNotFound
		}
		return nil, fmt.Errorf("failed to get automation rule for update: %w", err)
	}
	r := *stored
	if in != nil {
		if err := r.Set(trigger, channel, in.TemplateRef); err != nil {
			return nil, err
		}
		if name := strings.TrimSpace(in.Name); name != "" {
			r.Name = name
		}
	}
	if enabled != nil {
		r.Enabled = *enabled
	}
	if err := s.ruleRepo.Update(ctx, &r); err != nil {
		return nil, fmt.Errorf("failed to update automation rule: %w", err)
	}
	return &r, nil
}

// DeleteRule removes a rule permanently. Its ledger history is kept.
func (s *AdminService) DeleteRule(ctx context.Context, performingAdminID int64, id uuid.UUID) error {
	if err := s.authorize(performingAdminID); err != nil {
		return err
	}
	if err := s.ruleRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, idb.ErrRuleNotFound) {
			return idb.ErrRuleNotFound
		}
		return fmt.Errorf("failed to delete automation rule: %w", err)
	}
	return nil
}

// ListRules returns every rule, enabled or not.
func (s *AdminService) ListRules(ctx context.Context, performingAdminID int64) ([]*rule.Rule, error) {
	if err := s.authorize(performingAdminID); err != nil {
		return nil, err
	}
	rules, err := s.ruleRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list automation rules: %w", err)
	}
	return rules, nil
}

// ListExecutions returns the newest ledger records matching filter.
func (s *AdminService) ListExecutions(ctx context.Context, performingAdminID int64, filter ledger.Filter) ([]*ledger.ExecutionRecord, error) {
	if err := s.authorize(performingAdminID); err != nil {
		return nil, err
	}
	if filter.Outcome != "" && !filter.Outcome.Valid() {
		return nil, fmt.Errorf("%w: unknown outcome %q", ErrInvalidFilter, filter.Outcome)
	}
	switch {
	case filter.Limit <= 0:
		filter.Limit = defaultExecutionsPage
	case filter.Limit > maxExecutionsPage:
		filter.Limit = maxExecutionsPage
	}
	records, err := s.ledgerRepo.ListRecent(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	return records, nil
}
