package main

import "context"

// Event is a unit of work on the bus. The set of implementations is closed:
// every event dispatches itself to the matching EventHandler method, so a new
// kind does not compile until the router handles it.
type Event interface {
	Kind() string
	Apply(ctx context.Context, h EventHandler) error
}

// EventHandler receives each event kind.
type EventHandler interface {
	HandleGameMessage(ctx context.Context, e GameMessage) error
	HandleChatMessage(ctx context.Context, e ChatMessage) error
	HandleChatCommand(ctx context.Context, e ChatCommand) error
}

// GameMessage is a line from the game log destined for the chat.
// Silent messages are delivered without a notification.
type GameMessage struct {
	Text   string
	Silent bool
}

func (GameMessage) Kind() string { return "game_message" }

func (e GameMessage) Apply(ctx context.Context, h EventHandler) error {
	return h.HandleGameMessage(ctx, e)
}

// ChatMessage is sender-qualified chat text destined for the game console.
type ChatMessage struct {
	Text string
}

func (ChatMessage) Kind() string { return "chat_message" }

func (e ChatMessage) Apply(ctx context.Context, h EventHandler) error {
	return h.HandleChatMessage(ctx, e)
}

// ChatCommand is a prefixed chat message. The console response is sent back
// as a reply to ReplyTo.
type ChatCommand struct {
	ReplyTo MessageID
	Command string
}

func (ChatCommand) Kind() string { return "chat_command" }

func (e ChatCommand) Apply(ctx context.Context, h EventHandler) error {
	return h.HandleChatCommand(ctx, e)
}

// MessageID identifies a chat message on its platform.
type MessageID string

// InboundMessage is one message received from the chat platform.
type InboundMessage struct {
	ChatID        string
	MessageID     MessageID
	Sender        string // display name, empty when it cannot be resolved
	Text          string
	HasAttachment bool
}
