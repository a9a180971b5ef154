/*
Package bridge connects a chat surface to A2A agents.  Incoming chat
messages become tasks on the user's pooled client and task results are
rendered back into chat-sized text.  Slash commands let each user point
the bridge at a different agent server without affecting anyone else.
*/
package bridge

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/theapemachine/a2a-bridge/pkg/a2a"
	"github.com/theapemachine/a2a-bridge/pkg/pool"
	"github.com/theapemachine/a2a-bridge/pkg/stores"
	"github.com/theapemachine/a2a-bridge/pkg/stores/s3"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultPollBudget   = 10 * time.Minute
)

/*
Sender delivers rendered replies back to the chat surface.
*/
type Sender interface {
	SendText(ctx context.Context, userID string, text string) error
}

/*
Config wires the bridge to its collaborators.  Vault may be nil, in
which case inline file artifacts are mentioned by name instead of
linked.  Ack, when set, is sent as soon as a task starts working so the
user knows the agent picked it up.
*/
type Config struct {
	Pool         *pool.Pool
	Prefs        stores.PreferenceStore
	Sender       Sender
	Vault        *s3.Vault
	DefaultURL   string
	Ack          string
	PollInterval time.Duration
	PollBudget   time.Duration
}

/*
Bridge routes chat traffic to per-user A2A clients and renders the
results.  Session IDs are remembered per user, so conversation context
survives a client being invalidated or evicted.
*/
type Bridge struct {
	cfg Config

	mu       sync.Mutex
	sessions map[string]string
}

func New(cfg Config) *Bridge {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}

	if cfg.PollBudget <= 0 {
		cfg.PollBudget = defaultPollBudget
	}

	return &Bridge{
		cfg:      cfg,
		sessions: make(map[string]string),
	}
}

/*
HandleMessage processes one chat message from a user.  Slash commands
are handled by the bridge itself, everything else is relayed to the
user's agent as a task.  The returned error reports delivery failures
on the chat side; agent-side failures are rendered into the reply
instead of escalated.
*/
func (bridge *Bridge) HandleMessage(ctx context.Context, userID string, text string) error {
	text = strings.TrimSpace(text)

	if text == "" {
		return nil
	}

	if strings.HasPrefix(text, "/") {
		return bridge.handleCommand(ctx, userID, text)
	}

	return bridge.relay(ctx, userID, text)
}

func (bridge *Bridge) relay(ctx context.Context, userID string, text string) error {
	lease, err := bridge.cfg.Pool.Acquire(ctx, userID)

	if err != nil {
		log.Error("acquiring client", "user_id", userID, "error", err)
		return bridge.reply(ctx, userID, renderError(err))
	}

	defer lease.Release()

	session := lease.Client().Session(bridge.sessionFor(userID))
	task, err := session.Send(ctx, a2a.NewTextMessage(a2a.RoleUser, text))

	if err != nil {
		log.Error("submitting task", "user_id", userID, "error", err)
		return bridge.reply(ctx, userID, renderError(err))
	}

	log.Info(
		"task submitted",
		"user_id", userID,
		"task_id", task.ID,
		"state", task.Status.State,
	)

	if !settled(task.Status.State) {
		if bridge.cfg.Ack != "" {
			if err := bridge.reply(ctx, userID, bridge.cfg.Ack); err != nil {
				log.Error("sending ack", "user_id", userID, "error", err)
			}
		}

		pollCtx, cancel := context.WithTimeout(ctx, bridge.cfg.PollBudget)
		defer cancel()

		polled, err := session.Poll(pollCtx, bridge.cfg.PollInterval)

		if err != nil {
			log.Warn(
				"polling stopped early",
				"user_id", userID,
				"task_id", task.ID,
				"error", err,
			)
		}

		if polled == nil {
			return bridge.reply(ctx, userID, renderError(err))
		}

		task = polled
	}

	return bridge.reply(ctx, userID, bridge.renderTask(ctx, task))
}

/*
sessionFor returns the user's stable conversation ID, minting one on
first contact.  The ID deliberately outlives any single pooled client:
a rebuilt client keeps talking on the same A2A session.
*/
func (bridge *Bridge) sessionFor(userID string) string {
	bridge.mu.Lock()
	defer bridge.mu.Unlock()

	id, ok := bridge.sessions[userID]

	if !ok {
		id = uuid.New().String()
		bridge.sessions[userID] = id
	}

	return id
}

func (bridge *Bridge) reply(ctx context.Context, userID string, text string) error {
	if text == "" {
		return nil
	}

	return bridge.cfg.Sender.SendText(ctx, userID, text)
}

// settled means no amount of waiting will advance the task further.
func settled(state a2a.TaskState) bool {
	return state.Terminal() || state == a2a.TaskStateInputReq
}
