package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jirabot/jirabot/internal/config"
	"github.com/jirabot/jirabot/internal/dispatch"
	"github.com/jirabot/jirabot/internal/slackbot"
	"github.com/jirabot/jirabot/internal/telemetry"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Connect to Slack and start answering commands",
	Long: `Starts the bot in the foreground. The bot connects via Socket Mode and
answers "jira ..." messages in every channel it has been invited to.

Settings come from flags, JIRABOT_* environment variables and config.yaml,
in that order of precedence. The essentials:

  JIRABOT_SLACK_BOT_TOKEN   Slack bot token (xoxb-...)
  JIRABOT_SLACK_APP_TOKEN   Slack app-level token (xapp-...)
  JIRABOT_BACKEND_KIND      mock (default) or jira
  JIRABOT_JIRA_URL, JIRABOT_JIRA_USERNAME, JIRABOT_JIRA_API_TOKEN, JIRABOT_JIRA_PROJECT
  JIRABOT_NATS_URL          publish ticket events to NATS JetStream (optional)

Run 'jirabot config show' to see every setting.`,
	RunE: runStart,
}

// startFlags maps start flags onto config keys.
var startFlags = map[string]string{
	"bot-token":   config.KeySlackBotToken,
	"app-token":   config.KeySlackAppToken,
	"health-port": config.KeyHealthPort,
	"backend":     config.KeyBackendKind,
	"nats-url":    config.KeyNATSURL,
	"debug":       config.KeySlackDebug,
}

func init() {
	rootCmd.AddCommand(startCmd)

	startCmd.Flags().String("bot-token", "", "Slack bot token (or JIRABOT_SLACK_BOT_TOKEN env)")
	startCmd.Flags().String("app-token", "", "Slack app token (or JIRABOT_SLACK_APP_TOKEN env)")
	startCmd.Flags().Int("health-port", 8080, "Health check HTTP port (or JIRABOT_HEALTH_PORT env)")
	startCmd.Flags().String("backend", "", "Ticket backend: mock or jira (or JIRABOT_BACKEND_KIND env)")
	startCmd.Flags().String("nats-url", "", "NATS URL for ticket events (or JIRABOT_NATS_URL env)")
	startCmd.Flags().Bool("debug", false, "Log raw Slack client traffic")
}

func runStart(cmd *cobra.Command, args []string) error {
	applyFlagOverrides(cmd, startFlags)
	if err := config.Validate(); err != nil {
		return err
	}

	level := new(slog.LevelVar)
	level.Set(parseLevel(config.GetString(config.KeyLogLevel)))
	logger := newLogger(os.Stderr, level, config.GetBool(config.KeyLogJSON))
	slog.SetDefault(logger)

	config.Watch(func(e fsnotify.Event) {
		next := parseLevel(config.GetString(config.KeyLogLevel))
		if next != level.Level() {
			level.Set(next)
			logger.Info("log level changed", "level", next.String(), "file", e.Name)
		}
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := telemetry.Init(ctx, "jirabot", Version); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		telemetry.Shutdown(shutdownCtx)
	}()

	svc, err := newBackend(logger)
	if err != nil {
		return err
	}

	events, closeEvents, err := newPublisher(logger)
	if err != nil {
		return err
	}
	defer closeEvents()

	dispatcher := dispatch.New(svc, logger, events, dispatchOptions()...)

	bot, err := slackbot.NewBot(slackbot.BotConfig{
		BotToken: config.GetString(config.KeySlackBotToken),
		AppToken: config.GetString(config.KeySlackAppToken),
		Debug:    config.GetBool(config.KeySlackDebug),
		Logger:   logger,
	}, dispatcher)
	if err != nil {
		return fmt.Errorf("create Slack bot: %w", err)
	}

	health := slackbot.NewHealthServer(bot, config.GetInt(config.KeyHealthPort), logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return health.Start(gctx) })
	g.Go(func() error { return bot.Run(gctx) })

	logger.Info("jirabot starting",
		"version", Version,
		"backend", config.GetString(config.KeyBackendKind),
		"health_port", config.GetInt(config.KeyHealthPort),
	)
	err = g.Wait()

	// Let in-flight messages finish their replies before exiting.
	bot.Wait()
	logger.Info("jirabot stopped")

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
