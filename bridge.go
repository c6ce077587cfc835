package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

var _ EventHandler = (*Router)(nil)

// Router is the single consumer of the bus. It dispatches one event at a
// time to the chat or the game console and records the outcome.
type Router struct {
	events   <-chan Event
	chat     ChatSender
	console  CommandExecutor
	recorder *Recorder
	logger   *slog.Logger
}

func NewRouter(events <-chan Event, chat ChatSender, console CommandExecutor, recorder *Recorder, logger *slog.Logger) *Router {
	return &Router{
		events:   events,
		chat:     chat,
		console:  console,
		recorder: recorder,
		logger:   logger,
	}
}

// Run drains the bus until it is closed or ctx is cancelled. Sink failures
// are logged and never end the loop.
func (r *Router) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-r.events:
			if !ok {
				return nil
			}
			r.dispatch(ctx, event)
		}
	}
}

func (r *Router) dispatch(ctx context.Context, event Event) {
	r.logger.Debug("event", "kind", event.Kind(), "event", fmt.Sprintf("%+v", event))

	start := time.Now()
	err := event.Apply(ctx, r)
	if err != nil {
		r.logger.Warn("event dropped", "kind", event.Kind(), "err", err)
	}
	r.recorder.Routed(ctx, event, time.Since(start), err)
}

func (r *Router) HandleGameMessage(ctx context.Context, e GameMessage) error {
	if err := r.chat.Send(ctx, e.Text, e.Silent); err != nil {
		return fmt.Errorf("send to chat: %w", err)
	}
	return nil
}

// HandleChatMessage forwards the text verbatim as a console command. On
// Factorio, plain text shows up in game chat as the server; anything that
// looks like a command is executed.
func (r *Router) HandleChatMessage(ctx context.Context, e ChatMessage) error {
	if _, err := r.console.Execute(ctx, e.Text); err != nil {
		return fmt.Errorf("send to game: %w", err)
	}
	return nil
}

// HandleChatCommand runs the command and replies with its output. A failed
// command gets no reply.
func (r *Router) HandleChatCommand(ctx context.Context, e ChatCommand) error {
	resp, err := r.console.Execute(ctx, e.Command)
	if err != nil {
		return fmt.Errorf("run command: %w", err)
	}
	if err := r.chat.Reply(ctx, e.ReplyTo, resp); err != nil {
		return fmt.Errorf("reply to chat: %w", err)
	}
	return nil
}
