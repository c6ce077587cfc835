package main

import (
	"context"
	"errors"
	"unicode/utf8"
)

var errEmptyMessage = errors.New("empty message text")

// ChatSender delivers text to the configured chat.
type ChatSender interface {
	Send(ctx context.Context, text string, silent bool) error
	// Reply threads text under replyTo, or sends it plainly when the
	// original message is gone.
	Reply(ctx context.Context, replyTo MessageID, text string) error
}

// ChatReceiver streams inbound messages to fn until ctx is cancelled, fn
// returns an error, or the platform stream fails.
type ChatReceiver interface {
	Receive(ctx context.Context, fn func(InboundMessage) error) error
}

// Chat abstracts an external chat platform (Telegram, Discord).
type Chat interface {
	Name() string
	ChatSender
	ChatReceiver
	Close() error
}

// CommandExecutor runs a game console command and returns its output.
type CommandExecutor interface {
	Execute(ctx context.Context, cmd string) (string, error)
}

// splitMessage cuts text into chunks of at most limit bytes, preferring line
// breaks in the second half of a chunk.
func splitMessage(text string, limit int) []string {
	var chunks []string
	for len(text) > limit {
		cut := limit
		for i := limit - 1; i >= limit/2; i-- {
			if text[i] == '\n' {
				cut = i
				break
			}
		}
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		chunks = append(chunks, text[:cut])
		text = text[cut:]
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}
