// internal/infra/telegram/client.go
package telegram

import (
	"context"
	"strings"

	"gopkg.in/telebot.v3"
)

// maxMessageLen is Telegram's limit for one text message.
const maxMessageLen = 4096

// TelebotAdapter sends plain messages through a telebot.v3 bot.
type TelebotAdapter struct {
	bot *telebot.Bot
}

func NewTelebotAdapter(b *telebot.Bot) *TelebotAdapter {
	return &TelebotAdapter{bot: b}
}

// SendMessage sends text to a private chat.
func (tba *TelebotAdapter) SendMessage(recipientChatID int64, text string, options *telebot.SendOptions) error {
	if options == nil {
		options = &telebot.SendOptions{DisableWebPagePreview: true}
	}
	recipient := &telebot.User{ID: recipientChatID}
	_, err := tba.bot.Send(recipient, truncate(text), options)
	return err
}

// MessageSender is the part of TelebotAdapter the Alerter needs.
type MessageSender interface {
	SendMessage(recipientChatID int64, text string, options *telebot.SendOptions) error
}

// Alerter forwards operator alerts to the admin's chat.
type Alerter struct {
	sender  MessageSender
	adminID int64
}

func NewAlerter(sender MessageSender, adminID int64) *Alerter {
	return &Alerter{sender: sender, adminID: adminID}
}

// Alert sends text to the admin. Telebot calls are not cancellable, so ctx is
// only checked up front.
func (a *Alerter) Alert(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.sender.SendMessage(a.adminID, text, nil)
}

func truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= maxMessageLen {
		return text
	}
	cut := string(runes[:maxMessageLen-1])
	// keep whole lines when there are any
	if i := strings.LastIndexByte(cut, '\n'); i > 0 {
		return cut[:i] + "\n…"
	}
	return cut + "…"
}
