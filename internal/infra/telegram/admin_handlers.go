package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"lodge_billing_notifier/internal/app"
	"lodge_billing_notifier/internal/domain/ledger"
	"lodge_billing_notifier/internal/domain/rule"
	idb "lodge_billing_notifier/internal/infra/database"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const unauthorizedReply = "Error: you are not allowed to run this command."

// AdminHandlerDeps groups what the admin commands need.
type AdminHandlerDeps struct {
	AdminService *app.AdminService
	NotifService app.NotificationService
	Location     *time.Location
	PassTimeout  time.Duration
}

// RegisterAdminHandlers registers the rule management and pass commands.
// Every command is restricted to the configured admin.
func RegisterAdminHandlers(ctx context.Context, b *telebot.Bot, deps AdminHandlerDeps, baseLogger *logrus.Entry) {
	handle := func(command string, fn func(c telebot.Context, log *logrus.Entry) error) {
		b.Handle(command, func(c telebot.Context) error {
			handlerLogger := baseLogger.WithFields(logrus.Fields{
				"handler":   command,
				"sender_id": c.Sender().ID,
			})
			handlerLogger.Info("Command received")

			if !deps.AdminService.IsAdmin(c.Sender().ID) {
				handlerLogger.Warn("Unauthorized access attempt")
				return c.Send(unauthorizedReply)
			}
			return fn(c, handlerLogger)
		})
	}

	handle("/rules", func(c telebot.Context, log *logrus.Entry) error {
		rules, err := deps.AdminService.ListRules(ctx, c.Sender().ID)
		if err != nil {
			return replyError(c, log, "Failed to list rules", err)
		}
		log.WithField("rules_count", len(rules)).Info("Listed rules")
		return c.Send(truncate(formatRules(rules)))
	})

	handle("/add_rule", func(c telebot.Context, log *logrus.Entry) error {
		in, err := parseAddRuleArgs(c.Args())
		if err != nil {
			log.WithError(err).Warn("Invalid command format")
			return c.Send(fmt.Sprintf("Error: %v\n%s", err, addRuleUsage))
		}
		created, err := deps.AdminService.AddRule(ctx, c.Sender().ID, in)
		if err != nil {
			return replyError(c, log, "Failed to add rule", err)
		}
		log.WithField("rule_id", created.ID).Info("Rule added successfully")
		return c.Send("Rule created:\n" + formatRule(created))
	})

	toggle := func(enabled bool) func(c telebot.Context, log *logrus.Entry) error {
		return func(c telebot.Context, log *logrus.Entry) error {
			id, err := ruleIDArg(c.Args())
			if err != nil {
				return c.Send(err.Error())
			}
			log = log.WithField("rule_id", id)
			updated, err := deps.AdminService.SetRuleEnabled(ctx, c.Sender().ID, id, enabled)
			if errors.Is(err, app.ErrRuleAlreadyInState) {
				return c.Send("Nothing to change:\n" + formatRule(updated))
			}
			if err != nil {
				return replyError(c, log, "Failed to change rule state", err)
			}
			log.WithField("enabled", enabled).Info("Rule state changed")
			return c.Send("Rule updated:\n" + formatRule(updated))
		}
	}
	handle("/enable_rule", toggle(true))
	handle("/disable_rule", toggle(false))

	handle("/delete_rule", func(c telebot.Context, log *logrus.Entry) error {
		id, err := ruleIDArg(c.Args())
		if err != nil {
			return c.Send(err.Error())
		}
		log = log.WithField("rule_id", id)
		if err := deps.AdminService.DeleteRule(ctx, c.Sender().ID, id); err != nil {
			return replyError(c, log, "Failed to delete rule", err)
		}
		log.Info("Rule deleted")
		return c.Send(fmt.Sprintf("Rule %s deleted. Its execution history is kept.", id))
	})

	handle("/history", func(c telebot.Context, log *logrus.Entry) error {
		filter := ledger.Filter{Limit: 10}
		args := c.Args()
		if len(args) > 0 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n <= 0 {
				return c.Send("Usage: /history [count] [sent|failed|pending]")
			}
			filter.Limit = n
		}
		if len(args) > 1 {
			filter.Outcome = ledger.Outcome(strings.ToUpper(args[1]))
		}
		records, err := deps.AdminService.ListExecutions(ctx, c.Sender().ID, filter)
		if err != nil {
			return replyError(c, log, "Failed to list executions", err)
		}
		return c.Send(truncate(formatRecords(records, deps.Location)))
	})

	handle("/preview", func(c telebot.Context, log *logrus.Entry) error {
		due, warnings, err := deps.NotifService.PreviewDue(ctx, time.Now())
		if err != nil {
			return replyError(c, log, "Failed to preview due notifications", err)
		}
		return c.Send(truncate(formatPreview(due, warnings)))
	})

	handle("/run_now", func(c telebot.Context, log *logrus.Entry) error {
		passCtx, cancel := context.WithTimeout(ctx, deps.PassTimeout)
		defer cancel()
		report, err := deps.NotifService.RunPass(passCtx, time.Now())
		if errors.Is(err, app.ErrPassInProgress) {
			return c.Send("Another pass is already running. Try again later.")
		}
		if err != nil {
			return replyError(c, log, "Manual notification pass failed", err)
		}
		log.WithField("report", report.String()).Info("Manual notification pass finished")
		return c.Send(formatReport(report))
	})
}

func ruleIDArg(args []string) (uuid.UUID, error) {
	if len(args) != 1 {
		return uuid.Nil, errors.New("Usage: <command> <rule_id>")
	}
	id, err := uuid.Parse(args[0])
	if err != nil {
		return uuid.Nil, errors.New("Error: rule id must be a UUID (see /rules).")
	}
	return id, nil
}

// replyError maps service errors to a reply and logs them at a matching level.
func replyError(c telebot.Context, log *logrus.Entry, msg string, err error) error {
	logWithError := log.WithError(err)
	switch {
	case errors.Is(err, app.ErrAdminNotAuthorized):
		logWithError.Warn("Admin not authorized (service level)")
		return c.Send(unauthorizedReply)
	case errors.Is(err, idb.ErrRuleNotFound):
		logWithError.Warn("Rule not found")
		return c.Send("Error: rule not found (see /rules).")
	case errors.Is(err, rule.ErrInvalidRule), errors.Is(err, app.ErrInvalidFilter):
		logWithError.Warn(msg)
		return c.Send(fmt.Sprintf("Error: %v", err))
	default:
		logWithError.Error(msg)
		return c.Send(fmt.Sprintf("%s: %v", msg, err))
	}
}
