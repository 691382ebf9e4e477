package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jirabot/jirabot/internal/config"
	"github.com/jirabot/jirabot/internal/dispatch"
	"github.com/jirabot/jirabot/internal/eventbus"
	"github.com/jirabot/jirabot/internal/idgen"
	"github.com/jirabot/jirabot/internal/jira"
	"github.com/jirabot/jirabot/internal/telemetry"
	"github.com/jirabot/jirabot/internal/tickets"
)

// parseLevel maps a log.level value to a slog level, defaulting to info.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// newLogger builds the process logger. level may be changed later to adjust
// verbosity without rebuilding the logger.
func newLogger(w io.Writer, level *slog.LevelVar, jsonFormat bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if jsonFormat {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// newBackend builds the ticket backend named by backend.kind, wrapped with
// telemetry when it is enabled.
func newBackend(logger *slog.Logger) (tickets.Service, error) {
	switch kind := config.GetString(config.KeyBackendKind); kind {
	case config.BackendMock, "":
		latency := config.GetDuration(config.KeyBackendMockLatency)
		prefix := config.GetString(config.KeyTicketPrefix)
		logger.Info("using mock ticket backend", "prefix", prefix, "latency", latency)
		ids := idgen.NewRandom(prefix, time.Now().UnixNano())
		return telemetry.WrapService(tickets.NewMockService(ids, tickets.WithLatency(latency))), nil

	case config.BackendJira:
		url := config.GetString(config.KeyJiraURL)
		client := jira.NewClient(url, config.GetString(config.KeyJiraUsername), config.GetString(config.KeyJiraAPIToken))
		logger.Info("using Jira ticket backend", "url", url, "project", config.GetString(config.KeyJiraProject))
		svc := jira.NewService(client, config.GetString(config.KeyJiraProject),
			jira.WithSearchLimit(config.GetInt(config.KeyJiraSearchLimit)))
		return telemetry.WrapService(svc), nil

	default:
		return nil, fmt.Errorf("unknown backend %q (want %q or %q)", kind, config.BackendMock, config.BackendJira)
	}
}

// newPublisher builds the ticket event bus. Events are always logged; they
// are also published to JetStream when nats.url is set. The returned func
// closes the NATS connection, if any.
func newPublisher(logger *slog.Logger) (eventbus.Publisher, func(), error) {
	subject := config.GetString(config.KeyNATSSubject)
	bus := eventbus.New(subject)
	bus.SetLogger(logger)
	bus.Register(&eventbus.LogHandler{Logger: logger})

	url := config.GetString(config.KeyNATSURL)
	if url == "" {
		return bus, func() {}, nil
	}

	nc, js, err := eventbus.Connect(url, config.GetString(config.KeyNATSToken), subject)
	if err != nil {
		return nil, nil, err
	}
	bus.SetJetStream(js)
	logger.Info("publishing ticket events", "nats", url, "subject", subject)

	return bus, func() {
		if err := nc.Drain(); err != nil {
			logger.Warn("nats drain failed", "error", err)
		}
	}, nil
}

// dispatchOptions maps config onto dispatcher options.
func dispatchOptions() []dispatch.Option {
	var opts []dispatch.Option
	if d := config.GetDuration(config.KeyBackendTimeout); d > 0 {
		opts = append(opts, dispatch.WithBackendTimeout(d))
	}
	if p := config.GetString(config.KeyJiraProject); p != "" {
		opts = append(opts, dispatch.WithProjectID(p))
	}
	return opts
}

// applyFlagOverrides copies explicitly set flags into config so they win
// over file and environment values.
func applyFlagOverrides(cmd *cobra.Command, flagToKey map[string]string) {
	for flag, key := range flagToKey {
		f := cmd.Flags().Lookup(flag)
		if f != nil && f.Changed {
			config.Set(key, f.Value.String())
		}
	}
}
