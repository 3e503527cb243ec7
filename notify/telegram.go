package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"sportstiming-notifier/pkg/ticket"

	"gopkg.in/telebot.v3"
)

// Telegram sends alerts to one or more chats through a bot.
type Telegram struct {
	bot     *telebot.Bot
	chatIDs []int64
	logger  *slog.Logger
}

// NewTelegram creates the Telegram channel. Bot creation verifies the token
// against the API unless offline is set (tests).
func NewTelegram(token string, chatIDs []string, offline bool, logger *slog.Logger) (*Telegram, error) {
	ids := make([]int64, 0, len(chatIDs))
	for _, s := range chatIDs {
		id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid telegram chat id %q: %w", s, err)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("telegram: no chat ids")
	}

	bot, err := telebot.NewBot(telebot.Settings{
		Token:   token,
		Offline: offline,
	})
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	return &Telegram{bot: bot, chatIDs: ids, logger: logger}, nil
}

// Name implements Notifier.
func (*Telegram) Name() string { return "telegram" }

// Send delivers the message to every chat. A failing chat does not stop
// delivery to the remaining chats; the first error is returned.
func (t *Telegram) Send(_ context.Context, msg *ticket.Message) error {
	text := t.format(msg)

	var firstErr error
	sent := 0
	for _, chatID := range t.chatIDs {
		_, err := t.bot.Send(telebot.ChatID(chatID), text, &telebot.SendOptions{
			ParseMode: telebot.ModeMarkdown,
		})
		if err != nil {
			t.logger.Warn("Telegram send failed for chat",
				"chat_id", chatID,
				"error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("chat %d: %w", chatID, err)
			}
			continue
		}
		sent++
	}

	t.logger.Info("Telegram delivery finished",
		"sent", sent,
		"chats", len(t.chatIDs))
	return firstErr
}

func (t *Telegram) format(msg *ticket.Message) string {
	var b strings.Builder
	b.WriteString("*Sportstiming Ticket Alert*\n\n")
	fmt.Fprintf(&b, "*Status:* %s\n", escapeMarkdown(msg.Status.String()))
	fmt.Fprintf(&b, "%s\n", escapeMarkdown(msg.Body))
	fmt.Fprintf(&b, "*Time:* %s\n", time.Now().Format("2006-01-02 15:04:05"))
	for _, link := range msg.Links {
		fmt.Fprintf(&b, "\n[Check Website](%s)", link)
	}
	return b.String()
}

// escapeMarkdown escapes characters Telegram's Markdown parser treats as
// formatting, so raw status text never breaks a message.
func escapeMarkdown(s string) string {
	r := strings.NewReplacer(
		"_", "\\_",
		"*", "\\*",
		"[", "\\[",
		"`", "\\`",
	)
	return r.Replace(s)
}
