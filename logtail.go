package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/nxadm/tail"
)

var errTailClosed = errors.New("log tail closed")

// LineSource yields appended log lines to fn until ctx is cancelled, fn
// returns an error, or the source fails.
type LineSource interface {
	Lines(ctx context.Context, fn func(line string) error) error
}

// Publisher puts events on the bus.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// LogWatcher turns game log lines into GameMessages on the bus.
type LogWatcher struct {
	source LineSource
	bus    Publisher
	game   GameConfig
	logger *slog.Logger
}

func NewLogWatcher(source LineSource, bus Publisher, game GameConfig, logger *slog.Logger) *LogWatcher {
	return &LogWatcher{
		source: source,
		bus:    bus,
		game:   game,
		logger: logger,
	}
}

// Run blocks until the source fails or a publish fails. Cancellation of ctx
// is not an error.
func (w *LogWatcher) Run(ctx context.Context) error {
	w.logger.Info("starting game log watcher")

	err := w.source.Lines(ctx, func(line string) error {
		return w.handleLine(ctx, line)
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("game log: %w", err)
	}
	return nil
}

func (w *LogWatcher) handleLine(ctx context.Context, line string) error {
	rec, ok := parseLogLine(strings.TrimRight(line, "\r"))
	if !ok {
		return nil
	}
	if !w.game.eventAllowed(rec.Kind.String()) {
		return nil
	}
	return w.bus.Publish(ctx, rec.toEvent())
}

// FileSource follows growth of a single file. Rotation is not followed.
type FileSource struct {
	path      string
	fromStart bool
	poll      bool
}

func NewFileSource(cfg LogConfig) *FileSource {
	return &FileSource{
		path:      cfg.File,
		fromStart: cfg.FromStart,
		poll:      cfg.Poll,
	}
}

func (s *FileSource) Lines(ctx context.Context, fn func(string) error) error {
	whence := io.SeekEnd
	if s.fromStart {
		whence = io.SeekStart
	}
	t, err := tail.TailFile(s.path, tail.Config{
		Follow:    true,
		MustExist: true,
		Poll:      s.poll,
		Location:  &tail.SeekInfo{Offset: 0, Whence: whence},
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("tail %s: %w", s.path, err)
	}
	defer t.Cleanup()
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-t.Lines:
			if !ok {
				if err := t.Wait(); err != nil {
					return fmt.Errorf("tail %s: %w", s.path, err)
				}
				return errTailClosed
			}
			if line.Err != nil {
				return fmt.Errorf("tail %s: %w", s.path, line.Err)
			}
			if err := fn(line.Text); err != nil {
				return err
			}
		}
	}
}
