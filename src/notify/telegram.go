// Package notify delivers explosion-risk alerts to operators outside the simulator.
package notify

import (
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Sender delivers a formatted message
type Sender interface {
	Send(text string) error
}

// TelegramSender posts HTML messages to one chat
type TelegramSender struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    *zap.Logger
}

// NewTelegramSender authorises the bot and checks it can reach Telegram
func NewTelegramSender(token, chatID string, logger *zap.Logger) (*TelegramSender, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("creating telegram bot: %w", err)
	}

	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing telegram chat id: %w", err)
	}

	s := &TelegramSender{bot: bot, chatID: id, log: logger}
	if err := s.testConnection(); err != nil {
		return nil, err
	}
	logger.Info("Telegram bot authorized", zap.String("username", bot.Self.UserName))
	return s, nil
}

func (s *TelegramSender) testConnection() error {
	const maxRetries = 3
	for attempt := 1; attempt <= maxRetries; attempt++ {
		_, err := s.bot.GetMe()
		if err == nil {
			return nil
		}
		s.log.Warn("Telegram connection failed", zap.Int("attempt", attempt), zap.Error(err))
		if attempt < maxRetries {
			time.Sleep(time.Duration(attempt) * time.Second)
		}
	}
	return fmt.Errorf("failed to connect to Telegram after %d attempts", maxRetries)
}

// Send posts text to the configured chat
func (s *TelegramSender) Send(text string) error {
	msg := tgbotapi.NewMessage(s.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if _, err := s.bot.Send(msg); err != nil {
		return fmt.Errorf("sending telegram message: %w", err)
	}
	return nil
}
