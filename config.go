package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	platformTelegram = "telegram"
	platformDiscord  = "discord"

	sourceFile       = "file"
	sourceKubernetes = "kubernetes"
)

// Config is built once at startup and passed by value to each component.
type Config struct {
	LogLevel string         `yaml:"log_level"`
	Log      LogConfig      `yaml:"log"`
	RCON     RCONConfig     `yaml:"rcon"`
	Chat     ChatConfig     `yaml:"chat"`
	Telegram TelegramConfig `yaml:"telegram"`
	Discord  DiscordConfig  `yaml:"discord"`
	Game     GameConfig     `yaml:"game"`
	Bridge   BridgeConfig   `yaml:"bridge"`
	OTel     OTelConfig     `yaml:"otel"`
}

type LogConfig struct {
	Source    string `yaml:"source"` // "file" or "kubernetes"
	File      string `yaml:"file"`
	FromStart bool   `yaml:"from_start"`
	Poll      bool   `yaml:"poll"`
	Namespace string `yaml:"namespace"`
	PodLabel  string `yaml:"pod_label"`
}

type RCONConfig struct {
	Host     string        `yaml:"host"`
	Port     string        `yaml:"port"`
	Password string        `yaml:"-"` // from env only
	Timeout  time.Duration `yaml:"timeout"`
}

type ChatConfig struct {
	Platform      string `yaml:"platform"`
	CommandPrefix string `yaml:"command_prefix"`
}

type TelegramConfig struct {
	Token  string `yaml:"-"` // from env only
	ChatID int64  `yaml:"chat_id"`
}

type DiscordConfig struct {
	BotToken  string `yaml:"-"` // from env only
	ChannelID string `yaml:"channel_id"`
}

type GameConfig struct {
	Events []string `yaml:"events"` // "chat", "join", "leave", or ["all"]
}

type BridgeConfig struct {
	QueueSize int `yaml:"queue_size"`
}

type OTelConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Endpoint       string        `yaml:"endpoint"`
	ServiceName    string        `yaml:"service_name"`
	MetricInterval time.Duration `yaml:"metric_interval"`
}

func defaultConfig() Config {
	return Config{
		LogLevel: "info",
		Log: LogConfig{
			Source:    sourceFile,
			Namespace: "factorio",
			PodLabel:  "app=factorio-factorio-server-charts",
		},
		RCON: RCONConfig{
			Host:    "127.0.0.1",
			Port:    "27015",
			Timeout: 5 * time.Second,
		},
		Chat: ChatConfig{
			Platform:      platformTelegram,
			CommandPrefix: "/",
		},
		Game: GameConfig{
			Events: []string{"all"},
		},
		Bridge: BridgeConfig{
			QueueSize: defaultQueueSize,
		},
		OTel: OTelConfig{
			ServiceName:    "factorio-chat-bridge",
			MetricInterval: 15 * time.Second,
		},
	}
}

// loadConfig reads defaults, then the optional YAML file at path, then the
// environment. Secrets come from the environment only.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = envOr("CONFIG_PATH", "/etc/factorio-chat-bridge/config.yaml")
	}
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.RCON.Password = os.Getenv("RCON_PASSWORD")
	cfg.Telegram.Token = os.Getenv("TELEGRAM_TOKEN")
	cfg.Discord.BotToken = os.Getenv("DISCORD_BOT_TOKEN")

	if v := os.Getenv("RCON_HOST"); v != "" {
		cfg.RCON.Host = v
	}
	if v := os.Getenv("RCON_PORT"); v != "" {
		cfg.RCON.Port = v
	}
	if v := os.Getenv("FACTORIO_LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
	if v := os.Getenv("CHAT_PLATFORM"); v != "" {
		cfg.Chat.Platform = v
	}
	if v := os.Getenv("DISCORD_CHANNEL_ID"); v != "" {
		cfg.Discord.ChannelID = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.Telegram.ChatID = id
	}

	return cfg, nil
}

// validate reports the first missing or inconsistent setting.
func (c Config) validate() error {
	if c.RCON.Password == "" {
		return errors.New("RCON_PASSWORD env is required")
	}

	switch c.Log.Source {
	case sourceFile:
		if c.Log.File == "" {
			return errors.New("log file is required (FACTORIO_LOG_FILE or --log-file)")
		}
	case sourceKubernetes:
		if c.Log.PodLabel == "" {
			return errors.New("log.pod_label is required for the kubernetes source")
		}
	default:
		return fmt.Errorf("unknown log source %q", c.Log.Source)
	}

	switch c.Chat.Platform {
	case platformTelegram:
		if c.Telegram.Token == "" {
			return errors.New("TELEGRAM_TOKEN env is required")
		}
		if c.Telegram.ChatID == 0 {
			return errors.New("TELEGRAM_CHAT_ID is required")
		}
	case platformDiscord:
		if c.Discord.BotToken == "" {
			return errors.New("DISCORD_BOT_TOKEN env is required")
		}
		if c.Discord.ChannelID == "" {
			return errors.New("DISCORD_CHANNEL_ID is required")
		}
	default:
		return fmt.Errorf("unknown chat platform %q", c.Chat.Platform)
	}

	if c.Chat.CommandPrefix == "" {
		return errors.New("chat.command_prefix must not be empty")
	}
	return nil
}

// chatID is the identity of the one chat the bridge listens to.
func (c Config) chatID() string {
	if c.Chat.Platform == platformDiscord {
		return c.Discord.ChannelID
	}
	return strconv.FormatInt(c.Telegram.ChatID, 10)
}

// Address joins host and port. A host that already carries a port wins.
func (c RCONConfig) Address() string {
	if _, _, err := net.SplitHostPort(c.Host); err == nil {
		return c.Host
	}
	return net.JoinHostPort(c.Host, c.Port)
}

// eventAllowed returns whether a log record kind is relayed to the chat.
func (g GameConfig) eventAllowed(kind string) bool {
	for _, e := range g.Events {
		if e == "all" || e == kind {
			return true
		}
	}
	return false
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
