package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// ChatListener turns messages from one chat into bus events.
type ChatListener struct {
	receiver ChatReceiver
	bus      Publisher
	chatID   string
	prefix   string
	logger   *slog.Logger
}

func NewChatListener(receiver ChatReceiver, bus Publisher, chatID, prefix string, logger *slog.Logger) *ChatListener {
	if prefix == "" {
		prefix = "/"
	}
	return &ChatListener{
		receiver: receiver,
		bus:      bus,
		chatID:   chatID,
		prefix:   prefix,
		logger:   logger,
	}
}

// Run blocks until the receive stream fails or a publish fails.
func (l *ChatListener) Run(ctx context.Context) error {
	l.logger.Info("starting chat listener", "chat_id", l.chatID)

	err := l.receiver.Receive(ctx, func(msg InboundMessage) error {
		event, ok := l.toEvent(msg)
		if !ok {
			return nil
		}
		return l.bus.Publish(ctx, event)
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("chat receive: %w", err)
	}
	return nil
}

func (l *ChatListener) toEvent(msg InboundMessage) (Event, bool) {
	if msg.ChatID != l.chatID {
		l.logger.Debug("ignoring message from other chat", "chat_id", msg.ChatID)
		return nil, false
	}
	if msg.Sender == "" {
		l.logger.Warn("skipping message without sender name", "message_id", msg.MessageID)
		return nil, false
	}

	switch {
	case msg.Text == "" && msg.HasAttachment:
		return ChatMessage{Text: msg.Sender + ": [IMG]"}, true
	case msg.Text == "":
		return nil, false
	case strings.HasPrefix(msg.Text, l.prefix):
		return ChatCommand{ReplyTo: msg.MessageID, Command: msg.Text}, true
	default:
		return ChatMessage{Text: msg.Sender + ": " + msg.Text}, true
	}
}
