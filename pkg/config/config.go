// Package config loads picopager settings from an optional YAML file, then
// applies PICOPAGER_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sipeed/picopager/pkg/paginator"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "PICOPAGER_"

type Config struct {
	Log       LogConfig       `yaml:"log" envPrefix:"LOG_"`
	Bot       BotConfig       `yaml:"bot" envPrefix:"BOT_"`
	Paginator PaginatorConfig `yaml:"paginator" envPrefix:"PAGINATOR_"`
	Discord   DiscordConfig   `yaml:"discord" envPrefix:"DISCORD_"`
	Slack     SlackConfig     `yaml:"slack" envPrefix:"SLACK_"`
	Telegram  TelegramConfig  `yaml:"telegram" envPrefix:"TELEGRAM_"`
	Lark      LarkConfig      `yaml:"lark" envPrefix:"LARK_"`
	Console   ConsoleConfig   `yaml:"console" envPrefix:"CONSOLE_"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

type BotConfig struct {
	Prefix            string   `yaml:"prefix" env:"PREFIX"`
	Items             []string `yaml:"items" env:"ITEMS" envSeparator:"|"`
	RestrictToInvoker bool     `yaml:"restrict_to_invoker" env:"RESTRICT_TO_INVOKER"`
}

type PaginatorConfig struct {
	ItemsPerPage    int           `yaml:"items_per_page" env:"ITEMS_PER_PAGE"`
	Columns         int           `yaml:"columns" env:"COLUMNS"`
	ShowPageNumbers bool          `yaml:"show_page_numbers" env:"SHOW_PAGE_NUMBERS"`
	NumberItems     bool          `yaml:"number_items" env:"NUMBER_ITEMS"`
	Color           string        `yaml:"color" env:"COLOR"`
	Text            string        `yaml:"text" env:"TEXT"`
	Timeout         time.Duration `yaml:"timeout" env:"TIMEOUT"`
	AuthorizedUsers []string      `yaml:"authorized_users" env:"AUTHORIZED_USERS"`
	AuthorizedRoles []string      `yaml:"authorized_roles" env:"AUTHORIZED_ROLES"`
}

type DiscordConfig struct {
	Enabled   bool     `yaml:"enabled" env:"ENABLED"`
	Token     string   `yaml:"token" env:"TOKEN"`
	AllowFrom []string `yaml:"allow_from" env:"ALLOW_FROM"`
}

type SlackConfig struct {
	Enabled   bool     `yaml:"enabled" env:"ENABLED"`
	BotToken  string   `yaml:"bot_token" env:"BOT_TOKEN"`
	AppToken  string   `yaml:"app_token" env:"APP_TOKEN"`
	AllowFrom []string `yaml:"allow_from" env:"ALLOW_FROM"`
}

type TelegramConfig struct {
	Enabled   bool     `yaml:"enabled" env:"ENABLED"`
	Token     string   `yaml:"token" env:"TOKEN"`
	AllowFrom []string `yaml:"allow_from" env:"ALLOW_FROM"`
}

type LarkConfig struct {
	Enabled           bool     `yaml:"enabled" env:"ENABLED"`
	AppID             string   `yaml:"app_id" env:"APP_ID"`
	AppSecret         string   `yaml:"app_secret" env:"APP_SECRET"`
	VerificationToken string   `yaml:"verification_token" env:"VERIFICATION_TOKEN"`
	EncryptKey        string   `yaml:"encrypt_key" env:"ENCRYPT_KEY"`
	AllowFrom         []string `yaml:"allow_from" env:"ALLOW_FROM"`
}

type ConsoleConfig struct {
	Enabled     bool     `yaml:"enabled" env:"ENABLED"`
	UserID      string   `yaml:"user_id" env:"USER_ID"`
	GuildID     string   `yaml:"guild_id" env:"GUILD_ID"`
	Roles       []string `yaml:"roles" env:"ROLES"`
	HistoryFile string   `yaml:"history_file" env:"HISTORY_FILE"`
}

func DefaultConfig() Config {
	return Config{
		Log: LogConfig{Level: "info", Format: "text"},
		Bot: BotConfig{Prefix: "!"},
		Paginator: PaginatorConfig{
			ItemsPerPage:    10,
			Columns:         1,
			ShowPageNumbers: true,
			NumberItems:     true,
			Timeout:         time.Minute,
		},
		Console: ConsoleConfig{UserID: "console-user"},
	}
}

// Load reads path (if non-empty) over the defaults, then the environment.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error

	if !c.Discord.Enabled && !c.Slack.Enabled && !c.Telegram.Enabled && !c.Lark.Enabled && !c.Console.Enabled {
		errs = append(errs, errors.New("no channel enabled"))
	}
	if c.Discord.Enabled && c.Discord.Token == "" {
		errs = append(errs, errors.New("discord.token is required"))
	}
	if c.Slack.Enabled && (c.Slack.BotToken == "" || c.Slack.AppToken == "") {
		errs = append(errs, errors.New("slack.bot_token and slack.app_token are required"))
	}
	if c.Telegram.Enabled && c.Telegram.Token == "" {
		errs = append(errs, errors.New("telegram.token is required"))
	}
	if c.Lark.Enabled && (c.Lark.AppID == "" || c.Lark.AppSecret == "") {
		errs = append(errs, errors.New("lark.app_id and lark.app_secret are required"))
	}
	if c.Bot.Prefix == "" {
		errs = append(errs, errors.New("bot.prefix must not be empty"))
	}
	if c.Paginator.ItemsPerPage < 1 {
		errs = append(errs, errors.New("paginator.items_per_page must be at least 1"))
	}
	if c.Paginator.Columns < 1 || c.Paginator.Columns > paginator.MaxColumns {
		errs = append(errs, fmt.Errorf("paginator.columns must be between 1 and %d", paginator.MaxColumns))
	} else if c.Paginator.Columns > c.Paginator.ItemsPerPage && c.Paginator.ItemsPerPage >= 1 {
		errs = append(errs, errors.New("paginator.columns must not exceed paginator.items_per_page"))
	}
	if c.Paginator.Timeout < 0 {
		errs = append(errs, errors.New("paginator.timeout must not be negative"))
	}
	if _, err := ParseColor(c.Paginator.Color); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// ParseColor accepts "#RRGGBB", "0xRRGGBB" or "RRGGBB"; empty means no color.
func ParseColor(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	hex := strings.TrimPrefix(strings.TrimPrefix(strings.ToLower(s), "#"), "0x")
	v, err := strconv.ParseInt(hex, 16, 32)
	if err != nil || len(hex) != 6 {
		return 0, fmt.Errorf("paginator.color %q is not a hex RGB value", s)
	}
	return int(v), nil
}
