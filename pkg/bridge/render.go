package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/a2a-bridge/pkg/a2a"
	"github.com/theapemachine/a2a-bridge/pkg/errors"
)

// How much of a structured payload is worth pasting into a chat.
const dataPreviewLimit = 100

/*
renderTask turns a task into the text a chat user should see for it.
*/
func (bridge *Bridge) renderTask(ctx context.Context, task *a2a.Task) string {
	switch task.Status.State {
	case a2a.TaskStateCompleted:
		return bridge.renderCompleted(ctx, task)
	case a2a.TaskStateInputReq:
		if text := statusText(task); text != "" {
			return text
		}

		return "The agent needs more input to continue. Just reply here."
	case a2a.TaskStateFailed:
		if text := statusText(task); text != "" {
			return fmt.Sprintf("The task failed: %s", text)
		}

		return "The task failed without an error message."
	case a2a.TaskStateCanceled:
		return "The task was canceled."
	}

	return "The agent did not finish in time. Try again later, or check /server if this keeps happening."
}

func (bridge *Bridge) renderCompleted(ctx context.Context, task *a2a.Task) string {
	var sections []string

	for _, artifact := range task.Artifacts {
		for _, part := range artifact.Parts {
			if text := bridge.renderPart(ctx, task.ID, part); text != "" {
				sections = append(sections, text)
			}
		}
	}

	if len(sections) == 0 {
		if text := statusText(task); text != "" {
			return text
		}

		return "The task completed without producing any output."
	}

	return strings.Join(sections, "\n\n")
}

func (bridge *Bridge) renderPart(ctx context.Context, taskID string, part a2a.Part) string {
	switch part.Type {
	case a2a.PartTypeText:
		return strings.TrimSpace(part.Text)
	case a2a.PartTypeData:
		return renderData(part.Data)
	case a2a.PartTypeFile:
		return bridge.renderFile(ctx, taskID, part.File)
	}

	return ""
}

func renderData(data map[string]any) string {
	if len(data) == 0 {
		return ""
	}

	encoded, err := json.Marshal(data)

	if err != nil {
		return ""
	}

	preview := string(encoded)
	runes := []rune(preview)

	if len(runes) > dataPreviewLimit {
		preview = string(runes[:dataPreviewLimit]) + "..."
	}

	return fmt.Sprintf("Structured result: %s", preview)
}

/*
renderFile delivers a file artifact the best way available: inline bytes
go through the vault and come back as a download link, references are
passed along as-is, and anything else is at least mentioned by name.
*/
func (bridge *Bridge) renderFile(ctx context.Context, taskID string, file *a2a.FilePart) string {
	if file == nil {
		return ""
	}

	if file.Data != "" && bridge.cfg.Vault != nil {
		link, err := bridge.cfg.Vault.Store(ctx, taskID, file)

		if err != nil {
			log.Error("storing file artifact", "task_id", taskID, "error", err)
			return fmt.Sprintf("The agent produced a file (%s) but I could not store it.", file.DisplayName())
		}

		return fmt.Sprintf("File %s: %s", file.DisplayName(), link)
	}

	if file.URI != "" {
		return fmt.Sprintf("File %s: %s", file.DisplayName(), file.URI)
	}

	return fmt.Sprintf("The agent produced a file (%s) that cannot be delivered here.", file.DisplayName())
}

func statusText(task *a2a.Task) string {
	if task.Status.Message == nil {
		return ""
	}

	return strings.TrimSpace(task.Status.Message.String())
}

/*
renderError maps a client-side failure to a message the user can act on.
The taxonomy keeps transport trouble, protocol trouble and agent-reported
failures apart, and each reads differently in chat.
*/
func renderError(err error) string {
	switch {
	case errors.IsNotFound(err):
		return "That task is gone on the server. Send your message again to start over."
	case errors.IsPool(err):
		return "I could not set up your agent connection. Please try again."
	case errors.IsTransport(err):
		return "I could not reach your agent server. It may be down; check /server or try again in a moment."
	case errors.IsServer(err):
		if server, ok := errors.AsServer(err); ok && server.Message != "" {
			return fmt.Sprintf("The agent reported an error: %s", server.Message)
		}

		return "The agent reported an error."
	case errors.IsProtocol(err):
		return "The server answered in a way I do not understand. Is /server pointing at an A2A agent?"
	}

	return "Something went wrong handling that message. Please try again."
}
