package a2a

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultPollInterval = 2 * time.Second

/*
TaskRunner is the slice of Client a session needs. Tests substitute it to
script task lifecycles without a server.
*/
type TaskRunner interface {
	SubmitTask(ctx context.Context, params TaskSendParams) (*Task, error)
	GetTask(ctx context.Context, params TaskQueryParams) (*Task, error)
}

/*
TaskSession ties consecutive messages into one conversation. Each send
normally opens a fresh task under the shared session ID, with one
exception: when the previous task stopped to ask for more input, the next
message continues that same task instead of opening a new one.
*/
type TaskSession struct {
	runner    TaskRunner
	sessionID string

	mu        sync.Mutex
	taskID    string
	lastState TaskState
}

func NewTaskSession(runner TaskRunner, sessionID string) *TaskSession {
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	return &TaskSession{
		runner:    runner,
		sessionID: sessionID,
	}
}

func (session *TaskSession) ID() string {
	return session.sessionID
}

/*
Send submits a message on this session and records the task it lands on.
*/
func (session *TaskSession) Send(ctx context.Context, message *Message) (*Task, error) {
	session.mu.Lock()
	taskID := session.taskID

	if taskID == "" || session.lastState != TaskStateInputReq {
		taskID = uuid.New().String()
	}
	session.mu.Unlock()

	task, err := session.runner.SubmitTask(ctx, TaskSendParams{
		ID:        taskID,
		SessionID: session.sessionID,
		Message:   *message,
	})

	if err != nil {
		return nil, err
	}

	session.observe(task)

	return task, nil
}

/*
Poll fetches the current task until it settles: a terminal state, or the
agent asking for more input. The first fetch happens immediately so tasks
that finish fast do not wait out a full tick. On context cancellation the
last observed task is returned together with the context error.
*/
func (session *TaskSession) Poll(ctx context.Context, interval time.Duration) (*Task, error) {
	session.mu.Lock()
	taskID := session.taskID
	session.mu.Unlock()

	if taskID == "" {
		return nil, fmt.Errorf("session %s has no task to poll", session.sessionID)
	}

	if interval <= 0 {
		interval = defaultPollInterval
	}

	last, err := session.fetch(ctx, taskID)

	if err != nil {
		return nil, err
	}

	if settled(last.Status.State) {
		return last, nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
			task, err := session.fetch(ctx, taskID)

			if err != nil {
				return last, err
			}

			last = task

			if settled(task.Status.State) {
				return task, nil
			}
		}
	}
}

// Current returns the task this session last observed, if any.
func (session *TaskSession) Current() (taskID string, state TaskState) {
	session.mu.Lock()
	defer session.mu.Unlock()

	return session.taskID, session.lastState
}

func (session *TaskSession) fetch(ctx context.Context, taskID string) (*Task, error) {
	task, err := session.runner.GetTask(ctx, TaskQueryParams{
		TaskIDParams: TaskIDParams{ID: taskID},
	})

	if err != nil {
		return nil, err
	}

	session.observe(task)

	return task, nil
}

func (session *TaskSession) observe(task *Task) {
	session.mu.Lock()
	defer session.mu.Unlock()

	session.taskID = task.ID
	session.lastState = task.Status.State
}

// settled means the server will not advance the task without new input.
func settled(state TaskState) bool {
	return state.Terminal() || state == TaskStateInputReq
}
