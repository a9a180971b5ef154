package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
)

// Handler consumes chat messages relayed from Slack. The bridge is the
// one implementation; tests substitute their own.
type Handler interface {
	HandleMessage(ctx context.Context, userID string, text string) error
}

/*
SlackService connects to Slack over Socket Mode and relays direct
messages and app mentions to a Handler. Replies travel back through
SendText, which remembers which conversation each user spoke up in.
*/
type SlackService struct {
	appToken  string
	botToken  string
	debug     bool
	maxLen    int
	handler   Handler
	api       *slack.Client
	botUserID string
	ctx       context.Context

	mu            sync.RWMutex
	conversations map[string]string
}

func NewSlackService(appToken string, botToken string, maxLen int) *SlackService {
	return &SlackService{
		appToken:      appToken,
		botToken:      botToken,
		maxLen:        maxLen,
		conversations: make(map[string]string),
	}
}

/*
Run connects to Slack and pumps events into the handler until the
context is canceled. It blocks for the lifetime of the connection.
*/
func (srv *SlackService) Run(ctx context.Context, handler Handler) error {
	srv.handler = handler
	srv.ctx = ctx

	srv.api = slack.New(
		srv.botToken,
		slack.OptionDebug(srv.debug),
		slack.OptionAppLevelToken(srv.appToken),
	)

	identity, err := srv.api.AuthTest()

	if err != nil {
		return fmt.Errorf("slack auth failed: %w", err)
	}

	srv.botUserID = identity.UserID
	log.Info("slack connected", "bot_user", identity.UserID, "team", identity.Team)

	client := socketmode.New(
		srv.api,
		socketmode.OptionDebug(srv.debug),
	)

	socketmodeHandler := socketmode.NewSocketmodeHandler(client)

	socketmodeHandler.Handle(socketmode.EventTypeConnecting, middlewareConnecting)
	socketmodeHandler.Handle(socketmode.EventTypeConnectionError, middlewareConnectionError)
	socketmodeHandler.Handle(socketmode.EventTypeConnected, middlewareConnected)
	socketmodeHandler.Handle(socketmode.EventTypeHello, middlewareHello)
	socketmodeHandler.HandleEvents(slackevents.AppMention, srv.onMention)
	socketmodeHandler.HandleEvents(slackevents.Message, srv.onDirectMessage)

	return socketmodeHandler.RunEventLoopContext(ctx)
}

func middlewareConnecting(evt *socketmode.Event, client *socketmode.Client) {
	log.Info("connecting to slack")
}

func middlewareConnectionError(evt *socketmode.Event, client *socketmode.Client) {
	log.Error("slack connection failed, retrying")
}

func middlewareConnected(evt *socketmode.Event, client *socketmode.Client) {
	log.Info("connected to slack")
}

func middlewareHello(evt *socketmode.Event, client *socketmode.Client) {
	log.Debug("slack hello received")
}

func (srv *SlackService) onMention(evt *socketmode.Event, client *socketmode.Client) {
	eventsAPIEvent, ok := evt.Data.(slackevents.EventsAPIEvent)

	if !ok {
		log.Error("unexpected event payload", "type", evt.Type)
		return
	}

	client.Ack(*evt.Request)

	ev, ok := eventsAPIEvent.InnerEvent.Data.(*slackevents.AppMentionEvent)

	if !ok {
		return
	}

	srv.remember(ev.User, ev.Channel)

	log.Info("mention received", "user", ev.User, "channel", ev.Channel)
	srv.dispatch(ev.User, srv.stripMention(ev.Text))
}

func (srv *SlackService) onDirectMessage(evt *socketmode.Event, client *socketmode.Client) {
	eventsAPIEvent, ok := evt.Data.(slackevents.EventsAPIEvent)

	if !ok {
		log.Error("unexpected event payload", "type", evt.Type)
		return
	}

	client.Ack(*evt.Request)

	ev, ok := eventsAPIEvent.InnerEvent.Data.(*slackevents.MessageEvent)

	if !ok {
		return
	}

	// Only fresh direct messages from humans. Everything else arriving on
	// this event type is channel chatter, edits, or our own replies.
	if ev.ChannelType != "im" || ev.BotID != "" || ev.SubType != "" ||
		ev.User == "" || ev.User == srv.botUserID {
		return
	}

	srv.remember(ev.User, ev.Channel)

	log.Info("direct message received", "user", ev.User)
	srv.dispatch(ev.User, ev.Text)
}

// dispatch hands the message off so slow agents never stall the socket
// mode event loop.
func (srv *SlackService) dispatch(userID string, text string) {
	go func() {
		if err := srv.handler.HandleMessage(srv.ctx, userID, text); err != nil {
			log.Error("message handling failed", "user", userID, "error", err)
		}
	}()
}

/*
SendText posts a reply into the conversation the user last spoke up in,
splitting it into chunks when it exceeds the message length limit.
*/
func (srv *SlackService) SendText(ctx context.Context, userID string, text string) error {
	channel := srv.channelFor(userID)

	if channel == "" {
		return fmt.Errorf("no conversation with user %s yet", userID)
	}

	for _, chunk := range ChunkText(text, srv.maxLen) {
		if _, _, err := srv.api.PostMessageContext(
			ctx,
			channel,
			slack.MsgOptionText(chunk, false),
		); err != nil {
			return fmt.Errorf("posting message: %w", err)
		}
	}

	return nil
}

func (srv *SlackService) remember(userID string, channel string) {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	srv.conversations[userID] = channel
}

func (srv *SlackService) channelFor(userID string) string {
	srv.mu.RLock()
	defer srv.mu.RUnlock()

	return srv.conversations[userID]
}

func (srv *SlackService) stripMention(text string) string {
	return strings.TrimSpace(
		strings.ReplaceAll(text, "<@"+srv.botUserID+">", " "),
	)
}
