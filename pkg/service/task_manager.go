package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/theapemachine/a2a-bridge/pkg/a2a"
	"github.com/theapemachine/a2a-bridge/pkg/errors"
)

/*
TaskManager is the server-side behaviour behind the task lifecycle RPC
methods. Each method does its own validation and returns an RpcError when
the request is invalid or cannot be fulfilled.
*/
type TaskManager interface {
	SendTask(ctx context.Context, params a2a.TaskSendParams) (*a2a.Task, *errors.RpcError)
	GetTask(ctx context.Context, params a2a.TaskQueryParams) (*a2a.Task, *errors.RpcError)
}

/*
EchoTaskManager fulfils every task by echoing back the first text part.
It keeps tasks in memory so repeated sends continue the same conversation
and polls observe state transitions. With a work delay configured, tasks
answer as working first and complete in the background, which exercises
the same poll loop a real agent would.
*/
type EchoTaskManager struct {
	mu        sync.Mutex
	tasks     map[string]*a2a.Task
	workDelay time.Duration
}

func NewEchoTaskManager(workDelay time.Duration) *EchoTaskManager {
	return &EchoTaskManager{
		tasks:     make(map[string]*a2a.Task),
		workDelay: workDelay,
	}
}

func (manager *EchoTaskManager) SendTask(
	ctx context.Context, params a2a.TaskSendParams,
) (*a2a.Task, *errors.RpcError) {
	if params.ID == "" {
		return nil, errors.ErrInvalidParams.WithMessagef("task id is required")
	}

	if params.Message.Empty() {
		return nil, errors.ErrInvalidParams.WithMessagef("message has no content")
	}

	echo := firstText(params.Message)

	manager.mu.Lock()
	defer manager.mu.Unlock()

	task, ok := manager.tasks[params.ID]

	if !ok {
		task = a2a.NewTask(params.ID, params.SessionID)
		manager.tasks[params.ID] = task
	}

	task.AddMessage(params.Message)

	if manager.workDelay > 0 {
		task.ToStatus(a2a.TaskStateWorking, nil)
		go manager.completeLater(params.ID, echo)
	} else {
		complete(task, echo)
	}

	return copyTask(task), nil
}

func (manager *EchoTaskManager) GetTask(
	ctx context.Context, params a2a.TaskQueryParams,
) (*a2a.Task, *errors.RpcError) {
	manager.mu.Lock()
	defer manager.mu.Unlock()

	task, ok := manager.tasks[params.ID]

	if !ok {
		return nil, errors.ErrTaskNotFound
	}

	response := copyTask(task)

	if params.HistoryLength != nil && *params.HistoryLength < len(response.History) {
		response.History = response.History[len(response.History)-*params.HistoryLength:]
	}

	return response, nil
}

func (manager *EchoTaskManager) completeLater(id string, echo string) {
	time.Sleep(manager.workDelay)

	manager.mu.Lock()
	defer manager.mu.Unlock()

	if task, ok := manager.tasks[id]; ok && !task.Status.State.Terminal() {
		complete(task, echo)
	}
}

func complete(task *a2a.Task, echo string) {
	if echo != "" {
		task.AddArtifact(a2a.NewTextArtifact("echo", echo))
	}

	task.ToStatus(a2a.TaskStateCompleted, nil)
}

func firstText(msg a2a.Message) string {
	for _, part := range msg.Parts {
		if part.Type == a2a.PartTypeText {
			return strings.TrimSpace(part.Text)
		}
	}

	return ""
}

// copyTask hands callers a snapshot so later mutations under the manager
// lock never race with marshalling.
func copyTask(task *a2a.Task) *a2a.Task {
	clone := *task
	clone.History = append([]a2a.Message(nil), task.History...)
	clone.Artifacts = append([]a2a.Artifact(nil), task.Artifacts...)

	return &clone
}
