package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sipeed/picopager/pkg/bot"
	"github.com/sipeed/picopager/pkg/bus"
	"github.com/sipeed/picopager/pkg/channels"
	"github.com/sipeed/picopager/pkg/config"
	"github.com/sipeed/picopager/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "picopager:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", os.Getenv(config.EnvPrefix+"CONFIG"), "path to YAML config file")
	console := flag.Bool("console", false, "enable the local console channel")
	flag.Parse()

	if *console {
		if err := os.Setenv(config.EnvPrefix+"CONSOLE_ENABLED", "true"); err != nil {
			return err
		}
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	logger.Init(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	mb := bus.NewMessageBus()
	b := bot.New(cfg, mb)

	var consoleDone <-chan struct{}
	if cfg.Discord.Enabled {
		dc, err := channels.NewDiscordChannel(cfg.Discord, mb)
		if err != nil {
			return err
		}
		b.AddChannel(dc)
	}
	if cfg.Slack.Enabled {
		b.AddChannel(channels.NewSlackChannel(cfg.Slack, mb))
	}
	if cfg.Telegram.Enabled {
		tc, err := channels.NewTelegramChannel(cfg.Telegram, mb)
		if err != nil {
			return err
		}
		b.AddChannel(tc)
	}
	if cfg.Lark.Enabled {
		b.AddChannel(channels.NewLarkChannel(cfg.Lark, mb))
	}
	if cfg.Console.Enabled {
		cc := channels.NewConsoleChannel(cfg.Console, mb)
		consoleDone = cc.Done()
		b.AddChannel(cc)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := b.Start(ctx); err != nil {
		return err
	}
	logger.InfoCF("main", "picopager running", map[string]any{
		"items":  len(cfg.Bot.Items),
		"prefix": cfg.Bot.Prefix,
	})

	select {
	case <-ctx.Done():
	case <-consoleDone:
	}
	cancel()

	logger.InfoC("main", "Shutting down")
	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()
	return b.Stop(stopCtx)
}
