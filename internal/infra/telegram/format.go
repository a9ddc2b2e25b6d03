package telegram

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"lodge_billing_notifier/internal/app"
	"lodge_billing_notifier/internal/domain/evaluation"
	"lodge_billing_notifier/internal/domain/ledger"
	"lodge_billing_notifier/internal/domain/rule"
)

const addRuleUsage = "Usage: /add_rule <lodge_id> <trigger> <value> <channel> <template_ref> [name]\n" +
	"Triggers: days_before_due, days_after_due, monthly_date\n" +
	"Channels: email, sms, whatsapp, push"

// parseAddRuleArgs reads the arguments of /add_rule. Everything after the template is the name.
func parseAddRuleArgs(args []string) (app.NewRuleInput, error) {
	if len(args) < 5 {
		return app.NewRuleInput{}, fmt.Errorf("expected at least 5 arguments, got %d", len(args))
	}
	lodgeID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return app.NewRuleInput{}, fmt.Errorf("lodge id must be a number")
	}
	value, err := strconv.Atoi(args[2])
	if err != nil {
		return app.NewRuleInput{}, fmt.Errorf("trigger value must be a number")
	}
	return app.NewRuleInput{
		LodgeID: lodgeID,
		RuleInput: app.RuleInput{
			Trigger:      args[1],
			TriggerValue: value,
			Channel:      args[3],
			TemplateRef:  args[4],
			Name:         strings.Join(args[5:], " "),
		},
	}, nil
}

func formatRule(r *rule.Rule) string {
	status := "enabled"
	if !r.Enabled {
		status = "disabled"
	}
	trigger := fmt.Sprintf("%s(%d)", r.TriggerKind, r.TriggerValue)
	if t, err := r.Trigger(); err == nil {
		trigger = t.String()
	}
	name := r.Name
	if name == "" {
		name = "(unnamed)"
	}
	return fmt.Sprintf("%s\n  %s · lodge %d · %s · %s · template %q · %s",
		r.ID, name, r.LodgeID, trigger, r.Channel, r.TemplateRef, status)
}

func formatRules(rules []*rule.Rule) string {
	if len(rules) == 0 {
		return "No automation rules configured. Use /add_rule to create one."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Automation rules (%d):\n", len(rules))
	for _, r := range rules {
		b.WriteString("\n")
		b.WriteString(formatRule(r))
	}
	return b.String()
}

func formatRecords(records []*ledger.ExecutionRecord, loc *time.Location) string {
	if len(records) == 0 {
		return "No executions recorded yet."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Last %d executions:\n", len(records))
	for _, rec := range records {
		fmt.Fprintf(&b, "\n%s %s %s via %s (rule %s)",
			rec.FiredAt.In(loc).Format("2006-01-02 15:04"), rec.Outcome, rec.Subject, rec.Channel, shortID(rec.RuleID.String()))
		if rec.FailureReason.Valid {
			fmt.Fprintf(&b, "\n  reason: %s", rec.FailureReason.String)
		}
	}
	return b.String()
}

func formatPreview(due []evaluation.Due, warnings []evaluation.Warning) string {
	var b strings.Builder
	if len(due) == 0 {
		b.WriteString("Nothing is due right now.")
	} else {
		fmt.Fprintf(&b, "%d notifications due:\n", len(due))
		for _, d := range due {
			fmt.Fprintf(&b, "\n%s → %s via %s (bill %d, due %s)",
				d.Trigger, d.Subject, d.Rule.Channel, d.Bill.ID, d.Bill.DueDate.Format(time.DateOnly))
		}
	}
	if len(warnings) > 0 {
		fmt.Fprintf(&b, "\n\n%d malformed rules skipped:", len(warnings))
		for _, w := range warnings {
			fmt.Fprintf(&b, "\n- %v", w)
		}
	}
	return b.String()
}

func formatReport(r *app.PassReport) string {
	prefix := "Pass finished"
	if r.DryRun {
		prefix = "Dry-run pass finished"
	}
	return fmt.Sprintf("%s: %d due, %d sent, %d failed, %d pending, %d duplicates, %d skipped, %d warnings.",
		prefix, r.Due, r.Sent, r.Failed, r.Pending, r.Duplicates, r.Skipped, len(r.Warnings))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
