package bridge

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"
	v "github.com/cohesivestack/valgo"
)

var serverURLPattern = regexp.MustCompile(`^https?://\S+$`)

const helpText = `Talk to the agent by just typing a message.

/help        show this help
/server      show which agent server you are talking to
/setserver   point your messages at a different server, e.g. /setserver http://localhost:3210
/resetserver go back to the default server`

func (bridge *Bridge) handleCommand(ctx context.Context, userID string, text string) error {
	fields := strings.Fields(text)
	command := strings.ToLower(fields[0])

	switch command {
	case "/help":
		return bridge.reply(ctx, userID, helpText)
	case "/server":
		return bridge.showServer(ctx, userID)
	case "/setserver":
		if len(fields) < 2 {
			return bridge.reply(ctx, userID, "Usage: /setserver http://host:port")
		}

		return bridge.setServer(ctx, userID, fields[1])
	case "/resetserver":
		return bridge.resetServer(ctx, userID)
	}

	return bridge.reply(ctx, userID, fmt.Sprintf("Unknown command %s. Try /help.", command))
}

func (bridge *Bridge) showServer(ctx context.Context, userID string) error {
	url, custom, err := bridge.effectiveServer(ctx, userID)

	if err != nil {
		log.Error("loading server preference", "user_id", userID, "error", err)
		return bridge.reply(ctx, userID, "I could not look up your server preference. Please try again.")
	}

	label := "default"

	if custom {
		label = "custom"
	}

	return bridge.reply(ctx, userID, fmt.Sprintf("You are talking to %s (%s).", url, label))
}

func (bridge *Bridge) effectiveServer(ctx context.Context, userID string) (string, bool, error) {
	if bridge.cfg.Prefs == nil {
		return bridge.cfg.DefaultURL, false, nil
	}

	override, ok, err := bridge.cfg.Prefs.Override(ctx, userID)

	if err != nil {
		return "", false, err
	}

	if ok {
		return override, true, nil
	}

	return bridge.cfg.DefaultURL, false, nil
}

func (bridge *Bridge) setServer(ctx context.Context, userID string, raw string) error {
	val := v.Is(v.String(raw, "server_url").Not().Blank().MatchingTo(serverURLPattern))

	if !val.Valid() {
		return bridge.reply(ctx, userID, "That does not look like a server URL. Use /setserver http://host:port")
	}

	if bridge.cfg.Prefs == nil {
		return bridge.reply(ctx, userID, "Server overrides are not enabled on this bridge.")
	}

	url := strings.TrimRight(raw, "/")

	if err := bridge.cfg.Prefs.SetOverride(ctx, userID, url); err != nil {
		log.Error("saving server preference", "user_id", userID, "error", err)
		return bridge.reply(ctx, userID, "I could not save your server preference. Please try again.")
	}

	// The pooled client still points at the old endpoint.
	bridge.cfg.Pool.Invalidate(userID)

	log.Info("server override set", "user_id", userID, "server_url", url)
	return bridge.reply(ctx, userID, fmt.Sprintf("Done. Your messages now go to %s.", url))
}

func (bridge *Bridge) resetServer(ctx context.Context, userID string) error {
	if bridge.cfg.Prefs == nil {
		return bridge.reply(ctx, userID, "Server overrides are not enabled on this bridge.")
	}

	if err := bridge.cfg.Prefs.ClearOverride(ctx, userID); err != nil {
		log.Error("clearing server preference", "user_id", userID, "error", err)
		return bridge.reply(ctx, userID, "I could not reset your server preference. Please try again.")
	}

	bridge.cfg.Pool.Invalidate(userID)

	log.Info("server override cleared", "user_id", userID)
	return bridge.reply(ctx, userID, fmt.Sprintf("Back to the default server %s.", bridge.cfg.DefaultURL))
}
