package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"
)

const discordMaxMsgLen = 2000

var _ Chat = (*Discord)(nil)

// Discord implements Chat for one Discord text channel.
type Discord struct {
	session   *discordgo.Session
	channelID string
	inbound   chan InboundMessage
	stop      chan struct{}
	stopOnce  sync.Once
	logger    *slog.Logger
}

func NewDiscord(cfg DiscordConfig, logger *slog.Logger) (*Discord, error) {
	session, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("discordgo session: %w", err)
	}

	dc := &Discord{
		session:   session,
		channelID: cfg.ChannelID,
		inbound:   make(chan InboundMessage, 100),
		stop:      make(chan struct{}),
		logger:    logger,
	}

	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentMessageContent
	session.AddHandler(dc.onMessage)

	return dc, nil
}

func (dc *Discord) Name() string { return "Discord" }

// Receive opens the gateway session and hands over messages until ctx is
// cancelled.
func (dc *Discord) Receive(ctx context.Context, fn func(InboundMessage) error) error {
	if err := dc.session.Open(); err != nil {
		return fmt.Errorf("discord open: %w", err)
	}
	defer dc.session.Close()
	if u := dc.session.State.User; u != nil {
		dc.logger.Info("discord bot connected", "username", u.Username)
	}
	return dc.deliver(ctx, fn)
}

// deliver hands queued messages to fn. Once it returns, the gateway handler
// drops new messages instead of blocking.
func (dc *Discord) deliver(ctx context.Context, fn func(InboundMessage) error) error {
	defer dc.stopOnce.Do(func() { close(dc.stop) })

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-dc.inbound:
			if err := fn(msg); err != nil {
				return err
			}
		}
	}
}

func (dc *Discord) Send(ctx context.Context, text string, silent bool) error {
	return dc.send(ctx, text, silent, "")
}

func (dc *Discord) Reply(ctx context.Context, replyTo MessageID, text string) error {
	return dc.send(ctx, text, false, replyTo)
}

func (dc *Discord) send(ctx context.Context, text string, silent bool, replyTo MessageID) error {
	if text == "" {
		return errEmptyMessage
	}
	for _, chunk := range splitMessage(text, discordMaxMsgLen) {
		data := discordMessage(dc.channelID, chunk, silent, replyTo)
		replyTo = ""
		if _, err := dc.session.ChannelMessageSendComplex(dc.channelID, data, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("send to Discord: %w", err)
		}
	}
	return nil
}

func (dc *Discord) Close() error {
	return dc.session.Close()
}

func (dc *Discord) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if s.State != nil && s.State.User != nil && m.Author.ID == s.State.User.ID {
		return
	}
	select {
	case dc.inbound <- discordInbound(m):
	case <-dc.stop:
		dc.logger.Debug("discord message after shutdown dropped", "id", m.ID)
	}
}

func discordInbound(m *discordgo.MessageCreate) InboundMessage {
	msg := InboundMessage{
		ChatID:        m.ChannelID,
		MessageID:     MessageID(m.ID),
		Text:          m.Content,
		HasAttachment: len(m.Attachments) > 0,
	}
	if m.Author != nil {
		msg.Sender = m.Author.GlobalName
		if msg.Sender == "" {
			msg.Sender = m.Author.Username
		}
	}
	return msg
}

// discordMessage builds the outgoing message. Silent messages suppress push
// notifications; replies do not fail when the original is gone.
func discordMessage(channelID, text string, silent bool, replyTo MessageID) *discordgo.MessageSend {
	data := &discordgo.MessageSend{Content: text}
	if silent {
		data.Flags = discordgo.MessageFlagsSuppressNotifications
	}
	if replyTo != "" {
		failIfNotExists := false
		data.Reference = &discordgo.MessageReference{
			MessageID:       string(replyTo),
			ChannelID:       channelID,
			FailIfNotExists: &failIfNotExists,
		}
	}
	return data
}
