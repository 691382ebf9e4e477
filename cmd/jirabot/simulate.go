package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jirabot/jirabot/internal/config"
	"github.com/jirabot/jirabot/internal/debug"
	"github.com/jirabot/jirabot/internal/dispatch"
	"github.com/jirabot/jirabot/internal/idgen"
	"github.com/jirabot/jirabot/internal/tickets"
	"github.com/jirabot/jirabot/internal/ui"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate [message...]",
	Short: "Try bot commands locally against the mock backend",
	Long: `Runs messages through the same dispatcher the Slack bot uses, backed by
the in-memory mock, and prints every reply. Nothing is sent to Slack or Jira.

With arguments, they are joined into a single message. Without arguments,
each line of stdin is one message.

Examples:
  jirabot simulate jira_test
  jirabot simulate "jira create Printer on fire; Floor 3 near the kitchen; bug"
  printf 'jira create a; b\njira get a\n' | jirabot simulate`,
	RunE: runSimulate,
}

var (
	simulateUser    string
	simulateLatency time.Duration
	simulateSeed    int64
)

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().StringVar(&simulateUser, "user", "U0LOCAL", "Slack user id the messages appear to come from")
	simulateCmd.Flags().DurationVar(&simulateLatency, "latency", 0, "Simulated backend latency")
	simulateCmd.Flags().Int64Var(&simulateSeed, "seed", 0, "Seed for ticket ids (0 = time based)")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	ui.Enabled = ui.ShouldUseColor()

	level := new(slog.LevelVar)
	level.Set(slog.LevelWarn)
	if debug.Enabled() {
		level.Set(slog.LevelDebug)
	}
	logger := newLogger(cmd.ErrOrStderr(), level, false)

	seed := simulateSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	ids := idgen.NewRandom(config.GetString(config.KeyTicketPrefix), seed)
	svc := tickets.NewMockService(ids, tickets.WithLatency(simulateLatency))

	sim := &simulator{
		dispatcher: dispatch.New(svc, logger, nil, dispatchOptions()...),
		out:        cmd.OutOrStdout(),
		user:       simulateUser,
	}

	if len(args) > 0 {
		return sim.send(cmd.Context(), strings.Join(args, " "))
	}
	return sim.repl(cmd.Context(), cmd.InOrStdin(), ui.IsInputTerminal())
}

// simulator feeds messages to a dispatcher and prints the replies as a
// chat transcript.
type simulator struct {
	dispatcher *dispatch.Dispatcher
	out        io.Writer
	user       string
}

func (s *simulator) send(ctx context.Context, text string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	msg := dispatch.Message{Text: text, SenderID: s.user, ChannelID: "local"}
	reply := dispatch.ReplierFunc(func(ctx context.Context, text string) error {
		_, err := fmt.Fprintf(s.out, "%s\n%s\n", ui.RenderSpeaker("jirabot"), ui.RenderReply(text))
		return err
	})
	return s.dispatcher.Handle(ctx, msg, reply)
}

func (s *simulator) repl(ctx context.Context, in io.Reader, interactive bool) error {
	prompt := func() {
		if interactive {
			fmt.Fprint(s.out, ui.RenderMuted(s.user+"> "))
		}
	}

	scanner := bufio.NewScanner(in)
	prompt()
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) != "" {
			if err := s.send(ctx, line); err != nil {
				return err
			}
		}
		prompt()
	}
	if interactive {
		fmt.Fprintln(s.out)
	}
	return scanner.Err()
}
