// Package slackbot connects the command dispatcher to Slack.
// It uses the slack-go/slack library with Socket Mode for WebSocket-based communication.
package slackbot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/jirabot/jirabot/internal/dispatch"
)

// MessageHandler processes one inbound chat message. *dispatch.Dispatcher
// implements it.
type MessageHandler interface {
	Handle(ctx context.Context, msg dispatch.Message, reply dispatch.Replier) error
}

// Bot relays Slack channel messages to a MessageHandler and posts its
// replies back to the originating channel or thread.
type Bot struct {
	client     SlackAPI
	socketMode *socketmode.Client
	handler    MessageHandler
	logger     *slog.Logger

	// Bot identity for filtering out own messages
	botUserID string

	connected atomic.Bool
	started   atomic.Bool
	inflight  sync.WaitGroup
}

// BotConfig holds configuration for the Slack bot.
type BotConfig struct {
	BotToken string // xoxb-... Slack bot token
	AppToken string // xapp-... Slack app-level token (for Socket Mode)
	Debug    bool
	Logger   *slog.Logger // defaults to slog.Default()
}

// NewBot creates a new Slack bot.
func NewBot(cfg BotConfig, handler MessageHandler) (*Bot, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	if cfg.AppToken == "" {
		return nil, fmt.Errorf("app token is required for Socket Mode")
	}
	if !strings.HasPrefix(cfg.AppToken, "xapp-") {
		return nil, fmt.Errorf("app token must start with xapp-")
	}
	if handler == nil {
		return nil, fmt.Errorf("message handler is required")
	}

	client := slack.New(
		cfg.BotToken,
		slack.OptionDebug(cfg.Debug),
		slack.OptionAppLevelToken(cfg.AppToken),
	)

	socketClient := socketmode.New(
		client,
		socketmode.OptionDebug(cfg.Debug),
	)

	return &Bot{
		client:     client,
		socketMode: socketClient,
		handler:    handler,
		logger:     componentLogger(cfg.Logger, "slackbot"),
	}, nil
}

// newBotForTest creates a Bot with injectable mock dependencies for testing.
// No Slack connection or token validation is performed.
func newBotForTest(slackAPI SlackAPI, handler MessageHandler) *Bot {
	return &Bot{
		client:  slackAPI,
		handler: handler,
		logger:  componentLogger(nil, "slackbot"),
	}
}

func componentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("component", component)
}

// Run starts the bot event loop. Blocks until context is canceled.
// Messages already being handled keep running; call Wait to drain them.
func (b *Bot) Run(ctx context.Context) error {
	b.identify()
	b.started.Store(true)

	go func() {
		for evt := range b.socketMode.Events {
			b.handleEvent(evt)
		}
	}()

	return b.socketMode.RunContext(ctx)
}

// Wait blocks until every message handed to the dispatcher has finished.
func (b *Bot) Wait() {
	b.inflight.Wait()
}

// IsConnected returns whether the bot is currently connected to Slack.
func (b *Bot) IsConnected() bool {
	return b.connected.Load()
}

// IsReady reports whether Run has resolved the bot identity and started
// consuming events.
func (b *Bot) IsReady() bool {
	return b.started.Load()
}

// BotUserID returns the bot's own Slack user id, once known.
func (b *Bot) BotUserID() string {
	return b.botUserID
}

func (b *Bot) identify() {
	authResp, err := b.client.AuthTest()
	if err != nil {
		b.logger.Warn("failed to get bot user ID", "error", err)
		return
	}
	b.botUserID = authResp.UserID
	b.logger.Info("identified bot", "user_id", b.botUserID)
}

// ---------- Event dispatch ----------

func (b *Bot) handleEvent(evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeConnecting:
		b.logger.Info("connecting to Socket Mode")

	case socketmode.EventTypeConnected:
		b.logger.Info("connected to Socket Mode")
		b.connected.Store(true)

	case socketmode.EventTypeConnectionError:
		b.logger.Warn("connection error", "error", evt.Data)
		b.connected.Store(false)

	case socketmode.EventTypeDisconnect:
		b.logger.Warn("disconnected from Socket Mode")
		b.connected.Store(false)

	case socketmode.EventTypeEventsAPI:
		eventsAPIEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok {
			return
		}
		b.ack(evt)
		b.handleEventsAPI(eventsAPIEvent)
	}
}

// ack confirms receipt so Slack does not redeliver the envelope.
func (b *Bot) ack(evt socketmode.Event) {
	if b.socketMode == nil || evt.Request == nil {
		return
	}
	b.socketMode.Ack(*evt.Request)
}

// ---------- Events API ----------

func (b *Bot) handleEventsAPI(event slackevents.EventsAPIEvent) {
	if event.Type != slackevents.CallbackEvent {
		return
	}

	if ev, ok := event.InnerEvent.Data.(*slackevents.MessageEvent); ok {
		if !commandSubtypes[ev.SubType] {
			return
		}
		b.handleMessage(ev)
	}
}

// commandSubtypes lists the message subtypes whose text a user typed.
// Edits, joins, deletions and bot posts are not commands.
var commandSubtypes = map[string]bool{
	"":                 true,
	"file_share":       true,
	"thread_broadcast": true,
}

// slackUnescaper reverses the three entities Slack escapes in message text.
// Link markup such as <https://...|label> uses literal brackets and is left
// intact.
var slackUnescaper = strings.NewReplacer("&lt;", "<", "&gt;", ">", "&amp;", "&")

// handleMessage hands one message to the dispatcher on its own goroutine
// so a slow backend never blocks the socket reader.
func (b *Bot) handleMessage(ev *slackevents.MessageEvent) {
	msg := dispatch.Message{
		Text:      slackUnescaper.Replace(ev.Text),
		SenderID:  ev.User,
		IsFromBot: b.isOwnOrBotMessage(ev),
		ChannelID: ev.Channel,
		ThreadTS:  ev.ThreadTimeStamp,
	}
	b.logger.Debug("message received", "sender", msg.SenderID, "channel", msg.ChannelID, "from_bot", msg.IsFromBot)

	reply := b.replier(ev.Channel, ev.ThreadTimeStamp)
	b.inflight.Add(1)
	go func() {
		defer b.inflight.Done()
		// Shutdown must not cut a message off between ack and result.
		if err := b.handler.Handle(context.Background(), msg, reply); err != nil {
			b.logger.Error("failed to handle message", "sender", msg.SenderID, "channel", msg.ChannelID, "error", err)
		}
	}()
}

func (b *Bot) isOwnOrBotMessage(ev *slackevents.MessageEvent) bool {
	return ev.BotID != "" || (b.botUserID != "" && ev.User == b.botUserID)
}

// replier posts replies to channelID, inside the thread when threadTS is set.
func (b *Bot) replier(channelID, threadTS string) dispatch.Replier {
	return dispatch.ReplierFunc(func(ctx context.Context, text string) error {
		opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
		if threadTS != "" {
			opts = append(opts, slack.MsgOptionTS(threadTS))
		}
		if _, _, err := b.client.PostMessageContext(ctx, channelID, opts...); err != nil {
			return fmt.Errorf("post message to %s: %w", channelID, err)
		}
		return nil
	})
}
