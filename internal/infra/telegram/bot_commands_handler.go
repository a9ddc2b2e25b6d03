// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"fmt"
	"strings"

	"lodge_billing_notifier/internal/infra/config"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func RegisterBotCommands(
	b *telebot.Bot,
	cfg *config.AppConfig, // For AdminTelegramID
	baseLogger *logrus.Entry, // For contextual logging
) {
	startHelpLogger := baseLogger.WithField("handler_group", "start_help")

	b.Handle("/start", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/start").WithField("sender_id", senderID)
		logCtx.Info("Processing /start command")

		if senderID == cfg.AdminTelegramID {
			logCtx.Info("User identified as Admin")
			return c.Send(fmt.Sprintf("Hello, %s! The billing notifier is running. Use /help for the list of commands.", c.Sender().FirstName))
		}

		logCtx.Info("User is unknown")
		return c.Send("This bot only serves the lodge secretary. Members receive their reminders by email, SMS or WhatsApp.")
	})

	b.Handle("/help", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/help").WithField("sender_id", senderID)
		logCtx.Info("Processing /help command")

		if senderID != cfg.AdminTelegramID {
			logCtx.Info("User is not the admin, sending restricted help.")
			return c.Send("No commands are available to you.")
		}

		return c.Send(adminHelpText(cfg.DryRun), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	})
}

// adminHelpText is sent with legacy Markdown. Underscores and asterisks must
// stay inside code spans.
func adminHelpText(dryRun bool) string {
	var helpText strings.Builder
	helpText.WriteString("Admin commands:\n\n")
	helpText.WriteString("`/rules`\n - List all automation rules.\n\n")
	helpText.WriteString("`/add_rule <lodge_id> <trigger> <value> <channel> <template_ref> [name]`\n - Create a rule. Triggers: `days_before_due`, `days_after_due`, `monthly_date`.\n\n")
	helpText.WriteString("`/enable_rule <rule_id>` / `/disable_rule <rule_id>`\n - Turn a rule on or off without deleting it.\n\n")
	helpText.WriteString("`/delete_rule <rule_id>`\n - Delete a rule permanently. History is kept.\n\n")
	helpText.WriteString("`/history [count] [sent|failed|pending]`\n - Show recent executions with failure reasons.\n\n")
	helpText.WriteString("`/preview`\n - Show what would be sent right now.\n\n")
	helpText.WriteString("`/run_now`\n - Run a notification pass immediately.")
	if dryRun {
		helpText.WriteString("\n\nDry run is ON: passes record notifications as pending without sending them.")
	}
	return helpText.String()
}
