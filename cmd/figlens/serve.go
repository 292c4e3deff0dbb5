package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"figlens/internal/bridge"
	"figlens/internal/bus"
	"figlens/internal/config"
	"figlens/internal/domain"
	"figlens/internal/figma"
	"figlens/internal/inspector"
	"figlens/internal/markup"
	"figlens/internal/notify"
	"figlens/internal/panel"
	"figlens/internal/preview"
	"figlens/internal/serialize"
	"figlens/internal/store"

	"github.com/spf13/cobra"
	"github.com/thejerf/suture/v4"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the host bridge, inspector, and panel",
		Long:  "Starts the websocket bridge for the plugin, the serialization pipeline, and the panel web UI. Press Ctrl+C to stop.",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger = buildLogger(cfg)
	slog.SetDefault(logger)

	if err := os.MkdirAll(cfg.General.DataDir, 0o755); err != nil {
		return err
	}

	// Graceful shutdown on signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eventBus := bus.New(16, logger)
	defer eventBus.Close()

	settings, err := store.NewSQLiteStore(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("settings store: %w", err)
	}
	defer settings.Close()

	rules, err := serialize.LoadRules(cfg.Markup.RulesPath)
	if err != nil {
		return fmt.Errorf("category rules: %w", err)
	}
	serializer := serialize.New(serialize.WithCategories(rules))
	generator := markup.NewGenerator(cfg.Markup.CenterTolerance)

	comments := figma.NewCommentsClient(settings, figma.CommentsConfig{
		APIBase:       cfg.Figma.APIBase,
		Timeout:       time.Duration(cfg.Figma.RequestTimeoutSeconds) * time.Second,
		RatePerMinute: float64(cfg.Figma.RateLimitPerMinute),
		Logger:        logger,
	})

	hostBridge := bridge.New(bridge.Config{
		Host:          cfg.Bridge.Host,
		Port:          cfg.Bridge.Port,
		ExportTimeout: time.Duration(cfg.Bridge.ExportTimeoutSeconds) * time.Second,
		Heartbeat:     time.Duration(cfg.Bridge.HeartbeatSeconds) * time.Second,
		Logger:        logger,
	}, eventBus)

	insp := inspector.New(inspector.Config{
		Serializer: serializer,
		Exporter:   hostBridge,
		Comments:   comments,
		Bus:        eventBus,
		Logger:     logger,
	})

	supervisor := suture.NewSimple("figlens")
	supervisor.Add(hostBridge)
	supervisor.Add(insp)

	if cfg.Panel.Enabled {
		var previewer panel.Previewer
		if cfg.Preview.Enabled {
			previewer = preview.New(preview.Config{
				ChromePath: cfg.Preview.ChromePath,
				Width:      cfg.Preview.Width,
				Height:     cfg.Preview.Height,
				Logger:     logger,
			})
		}

		webPanel := panel.New(panel.Config{
			Host:       cfg.Panel.Host,
			Port:       cfg.Panel.Port,
			Logger:     logger,
			Config:     cfg,
			ConfigPath: cfgPath,
			Version:    version,
			Store:      settings,
			Source:     insp,
			Bridge:     hostBridge,
			Generator:  generator,
			Previewer:  previewer,
		})
		webPanel.Register(eventBus)
		supervisor.Add(webPanel)
		logger.Info("panel enabled", "url", fmt.Sprintf("http://%s:%d", cfg.Panel.Host, cfg.Panel.Port))
	} else {
		logger.Info("panel disabled")
	}

	if notifiers := buildNotifiers(cfg); len(notifiers) > 0 {
		dispatcher := notify.New(notify.Config{
			Notifiers: notifiers,
			Store:     settings,
			Logger:    logger,
		})
		dispatcher.Register(eventBus)
		supervisor.Add(dispatcher)
	}

	logger.Info("figlens started",
		"version", version,
		"bridge", fmt.Sprintf("ws://%s:%d/host", cfg.Bridge.Host, cfg.Bridge.Port),
	)

	err = supervisor.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

// buildLogger creates the serve logger from config: level from general.logLevel,
// output to stderr plus general.logFile when set.
func buildLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.General.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var out io.Writer = os.Stderr
	if cfg.General.LogFile != "" {
		f, err := os.OpenFile(cfg.General.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "cannot open log file %s: %v\n", cfg.General.LogFile, err)
		} else {
			out = io.MultiWriter(os.Stderr, f)
		}
	}

	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
}

// buildNotifiers constructs every enabled notifier. A notifier that fails to
// initialize is skipped so the rest of the daemon still comes up.
func buildNotifiers(cfg *config.Config) []domain.Notifier {
	var notifiers []domain.Notifier

	if cfg.Notify.Slack.Enabled {
		notifiers = append(notifiers, notify.NewSlack(notify.SlackConfig{
			BotToken: cfg.Notify.Slack.BotToken,
			Channel:  cfg.Notify.Slack.Channel,
			Logger:   logger,
		}))
		logger.Info("slack notifier enabled", "channel", cfg.Notify.Slack.Channel)
	}

	if cfg.Notify.Telegram.Enabled {
		tg, err := notify.NewTelegram(notify.TelegramConfig{
			Token:   cfg.Notify.Telegram.Token,
			ChatIDs: cfg.Notify.Telegram.ChatIDs,
			Logger:  logger,
		})
		if err != nil {
			logger.Error("telegram notifier disabled", "err", err)
		} else {
			notifiers = append(notifiers, tg)
			logger.Info("telegram notifier enabled", "chats", len(cfg.Notify.Telegram.ChatIDs))
		}
	}

	if cfg.Notify.Discord.Enabled {
		dc, err := notify.NewDiscord(notify.DiscordConfig{
			Token:     cfg.Notify.Discord.Token,
			ChannelID: cfg.Notify.Discord.ChannelID,
			Logger:    logger,
		})
		if err != nil {
			logger.Error("discord notifier disabled", "err", err)
		} else {
			notifiers = append(notifiers, dc)
			logger.Info("discord notifier enabled", "channel", cfg.Notify.Discord.ChannelID)
		}
	}

	return notifiers
}
