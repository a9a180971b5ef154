package bridge

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/theapemachine/a2a-bridge/pkg/a2a"
	"github.com/theapemachine/a2a-bridge/pkg/errors"
	"github.com/theapemachine/a2a-bridge/pkg/pool"
	"github.com/theapemachine/a2a-bridge/pkg/stores"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []string
}

func (sender *fakeSender) SendText(ctx context.Context, userID string, text string) error {
	sender.mu.Lock()
	defer sender.mu.Unlock()

	sender.sent = append(sender.sent, text)
	return nil
}

func (sender *fakeSender) messages() []string {
	sender.mu.Lock()
	defer sender.mu.Unlock()

	return append([]string(nil), sender.sent...)
}

func (sender *fakeSender) last() string {
	sender.mu.Lock()
	defer sender.mu.Unlock()

	if len(sender.sent) == 0 {
		return ""
	}

	return sender.sent[len(sender.sent)-1]
}

/*
fakeAgent scripts an A2A server behind the pool.Client surface.  The
default behavior echoes every message back as a completed task; tests
install submit/get hooks for richer lifecycles.
*/
type fakeAgent struct {
	endpoint string
	closed   atomic.Int32

	mu       sync.Mutex
	sessions map[string]*a2a.TaskSession
	submits  []a2a.TaskSendParams
	getCount map[string]int

	submit func(params a2a.TaskSendParams) (*a2a.Task, error)
	get    func(id string, call int) (*a2a.Task, error)
}

func (agent *fakeAgent) SubmitTask(ctx context.Context, params a2a.TaskSendParams) (*a2a.Task, error) {
	agent.mu.Lock()
	agent.submits = append(agent.submits, params)
	submit := agent.submit
	agent.mu.Unlock()

	if submit != nil {
		return submit(params)
	}

	task := a2a.NewTask(params.ID, params.SessionID)
	task.Status.State = a2a.TaskStateCompleted
	task.AddArtifact(a2a.NewTextArtifact("result", "echo: "+params.Message.String()))
	return task, nil
}

func (agent *fakeAgent) GetTask(ctx context.Context, params a2a.TaskQueryParams) (*a2a.Task, error) {
	agent.mu.Lock()
	call := agent.getCount[params.ID]
	agent.getCount[params.ID] = call + 1
	get := agent.get
	agent.mu.Unlock()

	if get == nil {
		return nil, &errors.NotFoundError{TaskID: params.ID}
	}

	return get(params.ID, call)
}

func (agent *fakeAgent) HealthCheck(ctx context.Context) bool { return true }

func (agent *fakeAgent) Session(id string) *a2a.TaskSession {
	agent.mu.Lock()
	defer agent.mu.Unlock()

	if session, ok := agent.sessions[id]; ok {
		return session
	}

	session := a2a.NewTaskSession(agent, id)
	agent.sessions[session.ID()] = session
	return session
}

func (agent *fakeAgent) Close() error {
	agent.closed.Add(1)
	return nil
}

func (agent *fakeAgent) submitted() []a2a.TaskSendParams {
	agent.mu.Lock()
	defer agent.mu.Unlock()

	return append([]a2a.TaskSendParams(nil), agent.submits...)
}

type agentFactory struct {
	mu      sync.Mutex
	agents  []*fakeAgent
	program func(agent *fakeAgent)
}

func (factory *agentFactory) build(endpoint string) pool.Client {
	factory.mu.Lock()
	defer factory.mu.Unlock()

	agent := &fakeAgent{
		endpoint: endpoint,
		sessions: make(map[string]*a2a.TaskSession),
		getCount: make(map[string]int),
	}

	if factory.program != nil {
		factory.program(agent)
	}

	factory.agents = append(factory.agents, agent)
	return agent
}

func (factory *agentFactory) agent(index int) *fakeAgent {
	factory.mu.Lock()
	defer factory.mu.Unlock()

	return factory.agents[index]
}

type harness struct {
	bridge  *Bridge
	sender  *fakeSender
	factory *agentFactory
	prefs   *stores.MemoryPrefs
	pool    *pool.Pool
}

func newHarness(program func(agent *fakeAgent)) *harness {
	sender := &fakeSender{}
	factory := &agentFactory{program: program}
	prefs := stores.NewMemoryPrefs()

	clientPool := pool.New(pool.Config{
		DefaultEndpoint: "http://default:3210",
		Prefs:           prefs,
		Factory:         factory.build,
	})

	bridge := New(Config{
		Pool:         clientPool,
		Prefs:        prefs,
		Sender:       sender,
		DefaultURL:   "http://default:3210",
		PollInterval: 5 * time.Millisecond,
		PollBudget:   500 * time.Millisecond,
	})

	return &harness{
		bridge:  bridge,
		sender:  sender,
		factory: factory,
		prefs:   prefs,
		pool:    clientPool,
	}
}

func TestHandleMessageEchoesCompletedTask(t *testing.T) {
	h := newHarness(nil)

	require.NoError(t, h.bridge.HandleMessage(context.Background(), "user1", "hello there"))

	require.Len(t, h.sender.messages(), 1)
	assert.Equal(t, "echo: hello there", h.sender.last())
}

func TestHandleMessageIgnoresEmptyText(t *testing.T) {
	h := newHarness(nil)

	require.NoError(t, h.bridge.HandleMessage(context.Background(), "user1", "   "))

	assert.Empty(t, h.sender.messages())
	assert.Equal(t, 0, h.pool.Size())
}

func TestHandleMessagePollsUntilTaskCompletes(t *testing.T) {
	h := newHarness(func(agent *fakeAgent) {
		agent.submit = func(params a2a.TaskSendParams) (*a2a.Task, error) {
			task := a2a.NewTask(params.ID, params.SessionID)
			task.Status.State = a2a.TaskStateWorking
			return task, nil
		}

		agent.get = func(id string, call int) (*a2a.Task, error) {
			task := a2a.NewTask(id, "sess")

			if call < 2 {
				task.Status.State = a2a.TaskStateWorking
				return task, nil
			}

			task.Status.State = a2a.TaskStateCompleted
			task.AddArtifact(a2a.NewTextArtifact("result", "all done"))
			return task, nil
		}
	})

	h.bridge.cfg.Ack = "Working on it..."

	require.NoError(t, h.bridge.HandleMessage(context.Background(), "user1", "long job"))

	messages := h.sender.messages()
	require.Len(t, messages, 2)
	assert.Equal(t, "Working on it...", messages[0])
	assert.Equal(t, "all done", messages[1])
}

func TestHandleMessageGivesUpAfterPollBudget(t *testing.T) {
	h := newHarness(func(agent *fakeAgent) {
		agent.submit = func(params a2a.TaskSendParams) (*a2a.Task, error) {
			task := a2a.NewTask(params.ID, params.SessionID)
			task.Status.State = a2a.TaskStateWorking
			return task, nil
		}

		agent.get = func(id string, call int) (*a2a.Task, error) {
			task := a2a.NewTask(id, "sess")
			task.Status.State = a2a.TaskStateWorking
			return task, nil
		}
	})

	h.bridge.cfg.PollBudget = 40 * time.Millisecond

	require.NoError(t, h.bridge.HandleMessage(context.Background(), "user1", "never ends"))
	assert.Contains(t, h.sender.last(), "did not finish in time")
}

func TestHandleMessageContinuesInputRequiredTask(t *testing.T) {
	h := newHarness(func(agent *fakeAgent) {
		agent.submit = func(params a2a.TaskSendParams) (*a2a.Task, error) {
			task := a2a.NewTask(params.ID, params.SessionID)

			if params.Message.String() == "book a flight" {
				task.Status.State = a2a.TaskStateInputReq
				task.Status.Message = a2a.NewTextMessage(a2a.RoleAgent, "Which city?")
				return task, nil
			}

			task.Status.State = a2a.TaskStateCompleted
			task.AddArtifact(a2a.NewTextArtifact("result", "Booked a flight to "+params.Message.String()))
			return task, nil
		}
	})

	ctx := context.Background()

	require.NoError(t, h.bridge.HandleMessage(ctx, "user1", "book a flight"))
	require.NoError(t, h.bridge.HandleMessage(ctx, "user1", "Paris"))

	messages := h.sender.messages()
	require.Len(t, messages, 2)
	assert.Equal(t, "Which city?", messages[0])
	assert.Equal(t, "Booked a flight to Paris", messages[1])

	submits := h.factory.agent(0).submitted()
	require.Len(t, submits, 2)
	assert.Equal(t, submits[0].ID, submits[1].ID, "the follow-up should continue the same task")
	assert.Equal(t, submits[0].SessionID, submits[1].SessionID)

	// Once the task completed, the next message opens a fresh one.
	require.NoError(t, h.bridge.HandleMessage(ctx, "user1", "another thing"))

	submits = h.factory.agent(0).submitted()
	require.Len(t, submits, 3)
	assert.NotEqual(t, submits[1].ID, submits[2].ID)
}

func TestServerCommands(t *testing.T) {
	h := newHarness(nil)
	ctx := context.Background()

	// Warm the pool against the default endpoint.
	require.NoError(t, h.bridge.HandleMessage(ctx, "user1", "hello"))
	require.Equal(t, 1, h.pool.Size())

	require.NoError(t, h.bridge.HandleMessage(ctx, "user1", "/server"))
	assert.Contains(t, h.sender.last(), "http://default:3210")
	assert.Contains(t, h.sender.last(), "default")

	require.NoError(t, h.bridge.HandleMessage(ctx, "user1", "/setserver http://custom:4444"))
	assert.Contains(t, h.sender.last(), "http://custom:4444")

	// The old client was closed, and the next message builds a new one
	// against the override.
	assert.Equal(t, int32(1), h.factory.agent(0).closed.Load())

	require.NoError(t, h.bridge.HandleMessage(ctx, "user1", "hello again"))
	assert.Equal(t, "http://custom:4444", h.factory.agent(1).endpoint)

	require.NoError(t, h.bridge.HandleMessage(ctx, "user1", "/server"))
	assert.Contains(t, h.sender.last(), "http://custom:4444")
	assert.Contains(t, h.sender.last(), "custom")

	require.NoError(t, h.bridge.HandleMessage(ctx, "user1", "/resetserver"))
	assert.Contains(t, h.sender.last(), "http://default:3210")

	require.NoError(t, h.bridge.HandleMessage(ctx, "user1", "ping"))
	assert.Equal(t, "http://default:3210", h.factory.agent(2).endpoint)

	// The conversation ID survives every server switch.
	first := h.factory.agent(0).submitted()
	second := h.factory.agent(1).submitted()
	require.NotEmpty(t, first)
	require.NotEmpty(t, second)
	assert.Equal(t, first[0].SessionID, second[0].SessionID)
}

func TestSetServerRejectsBadURLs(t *testing.T) {
	h := newHarness(nil)
	ctx := context.Background()

	require.NoError(t, h.bridge.HandleMessage(ctx, "user1", "/setserver"))
	assert.Contains(t, h.sender.last(), "Usage")

	for _, raw := range []string{"localhost:3210", "ftp://files.example.com", "http://"} {
		require.NoError(t, h.bridge.HandleMessage(ctx, "user1", "/setserver "+raw))
		assert.Contains(t, h.sender.last(), "does not look like", "url %q", raw)
	}

	_, ok, err := h.prefs.Override(ctx, "user1")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestHelpListsCommands(t *testing.T) {
	h := newHarness(nil)

	require.NoError(t, h.bridge.HandleMessage(context.Background(), "user1", "/help"))

	for _, command := range []string{"/server", "/setserver", "/resetserver"} {
		assert.Contains(t, h.sender.last(), command)
	}
}

func TestUnknownCommand(t *testing.T) {
	h := newHarness(nil)

	require.NoError(t, h.bridge.HandleMessage(context.Background(), "user1", "/frobnicate"))
	assert.Contains(t, h.sender.last(), "/help")
}

func TestHandleMessageRendersAgentFailures(t *testing.T) {
	h := newHarness(func(agent *fakeAgent) {
		agent.submit = func(params a2a.TaskSendParams) (*a2a.Task, error) {
			return nil, &errors.TransportError{
				Op:       "tasks/send",
				Attempts: 3,
				Err:      fmt.Errorf("connection refused"),
			}
		}
	})

	require.NoError(t, h.bridge.HandleMessage(context.Background(), "user1", "hello"))
	assert.Contains(t, h.sender.last(), "could not reach")
}

type brokenPrefs struct {
	*stores.MemoryPrefs
}

func (prefs *brokenPrefs) Override(context.Context, string) (string, bool, error) {
	return "", false, fmt.Errorf("store offline")
}

func TestHandleMessageReportsPoolFailures(t *testing.T) {
	sender := &fakeSender{}
	factory := &agentFactory{}
	prefs := &brokenPrefs{MemoryPrefs: stores.NewMemoryPrefs()}

	clientPool := pool.New(pool.Config{
		DefaultEndpoint: "http://default:3210",
		Prefs:           prefs,
		Factory:         factory.build,
	})

	bridge := New(Config{
		Pool:       clientPool,
		Prefs:      prefs,
		Sender:     sender,
		DefaultURL: "http://default:3210",
	})

	ctx := context.Background()

	require.NoError(t, bridge.HandleMessage(ctx, "user1", "hello"))
	assert.Contains(t, sender.last(), "could not set up")

	require.NoError(t, bridge.HandleMessage(ctx, "user1", "/server"))
	assert.Contains(t, sender.last(), "could not look up")
}

func TestRenderTaskStates(t *testing.T) {
	bridge := New(Config{})
	ctx := context.Background()

	failed := a2a.NewTask("t1", "s1")
	failed.Status.State = a2a.TaskStateFailed
	failed.Status.Message = a2a.NewTextMessage(a2a.RoleAgent, "out of memory")
	assert.Contains(t, bridge.renderTask(ctx, failed), "out of memory")

	canceled := a2a.NewTask("t2", "s1")
	canceled.Status.State = a2a.TaskStateCanceled
	assert.Contains(t, bridge.renderTask(ctx, canceled), "canceled")

	bare := a2a.NewTask("t3", "s1")
	bare.Status.State = a2a.TaskStateCompleted
	assert.Contains(t, bridge.renderTask(ctx, bare), "without producing any output")

	working := a2a.NewTask("t4", "s1")
	working.Status.State = a2a.TaskStateWorking
	assert.Contains(t, bridge.renderTask(ctx, working), "did not finish in time")
}

func TestRenderCompletedArtifacts(t *testing.T) {
	bridge := New(Config{})
	ctx := context.Background()

	task := a2a.NewTask("t1", "s1")
	task.Status.State = a2a.TaskStateCompleted
	task.AddArtifact(a2a.NewTextArtifact("answer", "42"))
	task.AddArtifact(a2a.Artifact{Parts: []a2a.Part{
		a2a.NewDataPart(map[string]any{"total": 7}),
	}})

	name := "report.pdf"
	uri := "https://files.example.com/report.pdf"
	task.AddArtifact(a2a.Artifact{Parts: []a2a.Part{{
		Type: a2a.PartTypeFile,
		File: &a2a.FilePart{Name: &name, URI: uri},
	}}})

	text := bridge.renderTask(ctx, task)

	assert.Contains(t, text, "42")
	assert.Contains(t, text, `"total":7`)
	assert.Contains(t, text, "report.pdf")
	assert.Contains(t, text, uri)
}

func TestRenderInlineFileWithoutVault(t *testing.T) {
	bridge := New(Config{})

	name := "data.bin"
	task := a2a.NewTask("t1", "s1")
	task.Status.State = a2a.TaskStateCompleted
	task.AddArtifact(a2a.Artifact{Parts: []a2a.Part{{
		Type: a2a.PartTypeFile,
		File: &a2a.FilePart{Name: &name, Data: "aGVsbG8="},
	}}})

	text := bridge.renderTask(context.Background(), task)

	assert.Contains(t, text, "data.bin")
	assert.Contains(t, text, "cannot be delivered")
}

func TestRenderDataTruncatesLongPayloads(t *testing.T) {
	payload := map[string]any{"blob": strings.Repeat("x", 300)}

	text := renderData(payload)

	assert.Contains(t, text, "Structured result:")
	assert.True(t, strings.HasSuffix(text, "..."))
	assert.Less(t, len(text), 150)
}

func TestRenderErrorKinds(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{&errors.TransportError{Op: "tasks/send", Err: fmt.Errorf("refused")}, "could not reach"},
		{&errors.ProtocolError{Reason: "malformed response body"}, "do not understand"},
		{&errors.ServerError{Code: -32603, Message: "boom"}, "boom"},
		{&errors.NotFoundError{TaskID: "t1"}, "gone"},
		{&errors.PoolError{UserID: "u1", Err: fmt.Errorf("store offline")}, "connection"},
		{fmt.Errorf("plain"), "Something went wrong"},
	}

	for _, tc := range cases {
		assert.Contains(t, renderError(tc.err), tc.want)
	}
}
