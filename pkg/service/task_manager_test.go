package service

import (
	"context"
	"testing"
	"time"

	"github.com/theapemachine/a2a-bridge/pkg/a2a"
)

func TestEchoTaskManagerValidation(t *testing.T) {
	manager := NewEchoTaskManager(0)
	ctx := context.Background()

	tests := []struct {
		name        string
		id          string
		message     a2a.Message
		expectError bool
	}{
		{
			name:        "valid text message",
			id:          "task-1",
			message:     *a2a.NewTextMessage(a2a.RoleUser, "Hello"),
			expectError: false,
		},
		{
			name:        "missing task id",
			id:          "",
			message:     *a2a.NewTextMessage(a2a.RoleUser, "Hello"),
			expectError: true,
		},
		{
			name:        "whitespace only text",
			id:          "task-2",
			message:     *a2a.NewTextMessage(a2a.RoleUser, "   "),
			expectError: true,
		},
		{
			name:        "data message",
			id:          "task-3",
			message:     *a2a.NewDataMessage(a2a.RoleUser, map[string]any{"key": "value"}),
			expectError: false,
		},
		{
			name:        "empty data message",
			id:          "task-4",
			message:     *a2a.NewDataMessage(a2a.RoleUser, map[string]any{}),
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := manager.SendTask(ctx, a2a.TaskSendParams{
				ID:      tt.id,
				Message: tt.message,
			})

			if tt.expectError && err == nil {
				t.Errorf("SendTask expected an error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("SendTask unexpected error: %v", err)
			}
		})
	}
}

func TestEchoTaskManagerCompletesSynchronously(t *testing.T) {
	manager := NewEchoTaskManager(0)

	task, rpcErr := manager.SendTask(context.Background(), a2a.TaskSendParams{
		ID:      "sync-task",
		Message: *a2a.NewTextMessage(a2a.RoleUser, "marco"),
	})

	if rpcErr != nil {
		t.Fatalf("SendTask unexpected error: %v", rpcErr)
	}

	if task.Status.State != a2a.TaskStateCompleted {
		t.Errorf("expected completed state, got %s", task.Status.State)
	}

	if len(task.Artifacts) != 1 {
		t.Fatalf("expected a single artifact, got %d", len(task.Artifacts))
	}

	if got := task.Artifacts[0].Parts[0].Text; got != "marco" {
		t.Errorf("expected echoed text %q, got %q", "marco", got)
	}

	if len(task.History) != 1 {
		t.Errorf("expected one history entry, got %d", len(task.History))
	}
}

func TestEchoTaskManagerWorkDelay(t *testing.T) {
	manager := NewEchoTaskManager(30 * time.Millisecond)
	ctx := context.Background()

	task, rpcErr := manager.SendTask(ctx, a2a.TaskSendParams{
		ID:      "slow-task",
		Message: *a2a.NewTextMessage(a2a.RoleUser, "polo"),
	})

	if rpcErr != nil {
		t.Fatalf("SendTask unexpected error: %v", rpcErr)
	}

	if task.Status.State != a2a.TaskStateWorking {
		t.Fatalf("expected working state right after send, got %s", task.Status.State)
	}

	deadline := time.Now().Add(2 * time.Second)

	for {
		polled, rpcErr := manager.GetTask(ctx, a2a.TaskQueryParams{
			TaskIDParams: a2a.TaskIDParams{ID: "slow-task"},
		})

		if rpcErr != nil {
			t.Fatalf("GetTask unexpected error: %v", rpcErr)
		}

		if polled.Status.State == a2a.TaskStateCompleted {
			if len(polled.Artifacts) != 1 || polled.Artifacts[0].Parts[0].Text != "polo" {
				t.Errorf("expected echoed artifact after completion, got %+v", polled.Artifacts)
			}
			return
		}

		if time.Now().After(deadline) {
			t.Fatalf("task never completed, last state %s", polled.Status.State)
		}

		time.Sleep(10 * time.Millisecond)
	}
}

func TestEchoTaskManagerGetUnknownTask(t *testing.T) {
	manager := NewEchoTaskManager(0)

	_, rpcErr := manager.GetTask(context.Background(), a2a.TaskQueryParams{
		TaskIDParams: a2a.TaskIDParams{ID: "never-sent"},
	})

	if rpcErr == nil {
		t.Fatal("expected an error for an unknown task")
	}

	if rpcErr.Code != -32000 {
		t.Errorf("expected task not found code -32000, got %d", rpcErr.Code)
	}
}

func TestEchoTaskManagerHistoryTrim(t *testing.T) {
	manager := NewEchoTaskManager(0)
	ctx := context.Background()

	for _, text := range []string{"first", "second"} {
		if _, rpcErr := manager.SendTask(ctx, a2a.TaskSendParams{
			ID:      "history-task",
			Message: *a2a.NewTextMessage(a2a.RoleUser, text),
		}); rpcErr != nil {
			t.Fatalf("SendTask unexpected error: %v", rpcErr)
		}
	}

	one := 1
	trimmed, rpcErr := manager.GetTask(ctx, a2a.TaskQueryParams{
		TaskIDParams:  a2a.TaskIDParams{ID: "history-task"},
		HistoryLength: &one,
	})

	if rpcErr != nil {
		t.Fatalf("GetTask unexpected error: %v", rpcErr)
	}

	if len(trimmed.History) != 1 {
		t.Fatalf("expected history trimmed to one entry, got %d", len(trimmed.History))
	}

	if got := trimmed.History[0].String(); got != "second" {
		t.Errorf("expected newest entry to survive the trim, got %q", got)
	}

	full, rpcErr := manager.GetTask(ctx, a2a.TaskQueryParams{
		TaskIDParams: a2a.TaskIDParams{ID: "history-task"},
	})

	if rpcErr != nil {
		t.Fatalf("GetTask unexpected error: %v", rpcErr)
	}

	if len(full.History) != 2 {
		t.Errorf("expected full history without a length hint, got %d entries", len(full.History))
	}
}
