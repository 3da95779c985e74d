package services

import (
	"context"
	"fmt"
	"html"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"veriboard/internal/logger"
)

// AdminNotifier alerts reviewers about new manual-review work. Best effort.
type AdminNotifier interface {
	NotifyAdmins(ctx context.Context, text string)
}

type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegramNotifier(botToken string, chatID int64) (*TelegramNotifier, error) {
	if botToken == "" || chatID == 0 {
		return nil, fmt.Errorf("telegram bot token and admin chat id are required")
	}
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("telegram init: %w", err)
	}
	logger.Log.WithField("bot", bot.Self.UserName).Info("[tg] admin notifier ready")
	return &TelegramNotifier{bot: bot, chatID: chatID}, nil
}

func (t *TelegramNotifier) NotifyAdmins(_ context.Context, text string) {
	if t == nil || t.bot == nil {
		return
	}
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		logger.Log.WithFields(logrus.Fields{"chat_id": t.chatID}).WithError(err).Warn("[tg][send] failed")
	}
}

type noopNotifier struct{}

func (noopNotifier) NotifyAdmins(context.Context, string) {}

// NoopNotifier is used when Telegram is not configured.
func NoopNotifier() AdminNotifier { return noopNotifier{} }

func escapeHTML(s string) string { return html.EscapeString(s) }
