package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("factorio-chat-bridge failed", "err", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath   string
		logFile      string
		rconHost     string
		rconPassword string
		platform     string
		logLevel     string
		fromStart    bool
	)

	cmd := &cobra.Command{
		Use:           "factorio-chat-bridge",
		Short:         "Relay Factorio chat to Telegram or Discord and back",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadDotenv(); err != nil {
				return err
			}

			cfg, err := loadConfig(configPath)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}

			flags := cmd.Flags()
			if flags.Changed("log-file") {
				cfg.Log.File = logFile
			}
			if flags.Changed("rcon-host") {
				cfg.RCON.Host = rconHost
			}
			if flags.Changed("rcon-password") {
				cfg.RCON.Password = rconPassword
			}
			if flags.Changed("platform") {
				cfg.Chat.Platform = platform
			}
			if flags.Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if flags.Changed("from-start") {
				cfg.Log.FromStart = fromStart
			}
			if err := cfg.validate(); err != nil {
				return fmt.Errorf("config: %w", err)
			}

			logger := newLogger(cfg.LogLevel)
			slog.SetDefault(logger)

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return run(ctx, cfg, logger)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&configPath, "config", "c", "", "path to config.yaml (default: $CONFIG_PATH or /etc/factorio-chat-bridge/config.yaml)")
	f.StringVar(&logFile, "log-file", "", "Factorio console log file to follow")
	f.StringVar(&rconHost, "rcon-host", "", "RCON host, optionally host:port")
	f.StringVar(&rconPassword, "rcon-password", "", "RCON password (prefer RCON_PASSWORD)")
	f.StringVar(&platform, "platform", "", "chat platform: telegram or discord")
	f.StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	f.BoolVar(&fromStart, "from-start", false, "read the log file from the beginning")

	return cmd
}

// loadDotenv reads .env (or the given files) into the environment. A missing
// file is fine; a malformed one is not.
func loadDotenv(filenames ...string) error {
	if err := godotenv.Load(filenames...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func run(ctx context.Context, cfg Config, logger *slog.Logger) error {
	tel, err := NewTelemetry(ctx, cfg.OTel)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer tel.Shutdown(context.Background())

	bus := NewBus(cfg.Bridge.QueueSize)

	recorder, err := NewRecorder(tel.Logger, tel.Meter, bus)
	if err != nil {
		return fmt.Errorf("recorder: %w", err)
	}

	chat, err := newChat(cfg, logger)
	if err != nil {
		return err
	}
	defer chat.Close()

	console := NewConsole(cfg.RCON)
	watcher := NewLogWatcher(newLineSource(cfg.Log, logger), bus, cfg.Game, logger)
	listener := NewChatListener(chat, bus, cfg.chatID(), cfg.Chat.CommandPrefix, logger)
	router := NewRouter(bus.Events(), chat, console, recorder, logger)

	logger.Info("factorio-chat-bridge started",
		"platform", chat.Name(),
		"log_source", cfg.Log.Source,
		"rcon", cfg.RCON.Address(),
		"queue_size", cfg.Bridge.QueueSize,
	)

	if err := runTasks(ctx, watcher.Run, listener.Run, router.Run); err != nil {
		return err
	}
	logger.Info("shutting down")
	return nil
}

// runTasks runs tasks until the first one returns, with or without error,
// or ctx is cancelled. Remaining tasks are cancelled; queued events are not
// drained. The first error is returned.
func runTasks(ctx context.Context, tasks ...func(context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	for _, task := range tasks {
		g.Go(func() error {
			defer cancel()
			return task(ctx)
		})
	}
	return g.Wait()
}

func newChat(cfg Config, logger *slog.Logger) (Chat, error) {
	switch cfg.Chat.Platform {
	case platformDiscord:
		dc, err := NewDiscord(cfg.Discord, logger)
		if err != nil {
			return nil, fmt.Errorf("discord: %w", err)
		}
		return dc, nil
	default:
		tg, err := NewTelegram(cfg.Telegram, logger)
		if err != nil {
			return nil, fmt.Errorf("telegram: %w", err)
		}
		return tg, nil
	}
}

func newLineSource(cfg LogConfig, logger *slog.Logger) LineSource {
	if cfg.Source == sourceKubernetes {
		return NewPodLogSource(NewK8sClient(cfg.Namespace), cfg.PodLabel, logger)
	}
	return NewFileSource(cfg)
}

func newLogger(level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(level)}))
}

// parseLevel maps "debug", "info", "warn" and "error" to a slog.Level.
// Unknown strings default to info.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
