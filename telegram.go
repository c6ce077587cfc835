package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	telegramMaxMsgLen   = 4000
	telegramPollTimeout = 30
)

var errUpdatesClosed = errors.New("telegram updates channel closed")

var _ Chat = (*Telegram)(nil)

// Telegram implements Chat for one Telegram group.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *slog.Logger
}

func NewTelegram(cfg TelegramConfig, logger *slog.Logger) (*Telegram, error) {
	return newTelegram(cfg, tgbotapi.APIEndpoint, http.DefaultClient, logger)
}

func newTelegram(cfg TelegramConfig, endpoint string, client tgbotapi.HTTPClient, logger *slog.Logger) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	logger.Info("telegram bot connected", "username", bot.Self.UserName, "id", bot.Self.ID)

	return &Telegram{
		bot:    bot,
		chatID: cfg.ChatID,
		logger: logger,
	}, nil
}

func (t *Telegram) Name() string { return "Telegram" }

// Receive long-polls for updates. The updates channel closing while ctx is
// alive is a stream failure.
func (t *Telegram) Receive(ctx context.Context, fn func(InboundMessage) error) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = telegramPollTimeout
	updates := t.bot.GetUpdatesChan(u)
	defer t.bot.StopReceivingUpdates()

	t.logger.Info("telegram polling started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return errUpdatesClosed
			}
			msg, ok := telegramInbound(update)
			if !ok {
				continue
			}
			if err := fn(msg); err != nil {
				return err
			}
		}
	}
}

func (t *Telegram) Send(ctx context.Context, text string, silent bool) error {
	return t.send(ctx, text, silent, 0)
}

func (t *Telegram) Reply(ctx context.Context, replyTo MessageID, text string) error {
	id, err := strconv.Atoi(string(replyTo))
	if err != nil {
		t.logger.Warn("reply target is not a telegram message id, sending plain", "reply_to", replyTo)
		id = 0
	}
	return t.send(ctx, text, false, id)
}

// send splits text at the Telegram size limit. Only the first chunk is
// threaded under replyTo.
func (t *Telegram) send(ctx context.Context, text string, silent bool, replyTo int) error {
	if text == "" {
		return errEmptyMessage
	}
	for _, chunk := range splitMessage(text, telegramMaxMsgLen) {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(t.chatID, chunk)
		msg.DisableNotification = silent
		if replyTo != 0 {
			msg.ReplyToMessageID = replyTo
			msg.AllowSendingWithoutReply = true
			replyTo = 0
		}
		if _, err := t.bot.Send(msg); err != nil {
			return fmt.Errorf("send to Telegram: %w", err)
		}
	}
	return nil
}

// Close is a no-op: polling stops when Receive returns.
func (t *Telegram) Close() error { return nil }

func telegramInbound(update tgbotapi.Update) (InboundMessage, bool) {
	m := update.Message
	if m == nil || m.Chat == nil {
		return InboundMessage{}, false
	}

	msg := InboundMessage{
		ChatID:        strconv.FormatInt(m.Chat.ID, 10),
		MessageID:     MessageID(strconv.Itoa(m.MessageID)),
		Text:          m.Text,
		HasAttachment: len(m.Photo) > 0 || m.Document != nil,
	}
	if m.From != nil {
		msg.Sender = m.From.FirstName
	}
	return msg, true
}
