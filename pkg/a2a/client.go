package a2a

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/a2a-bridge/pkg/errors"
	"github.com/theapemachine/a2a-bridge/pkg/jsonrpc"
	"github.com/theapemachine/a2a-bridge/pkg/retry"
)

const (
	defaultTimeout = 120 * time.Second
	healthTimeout  = 10 * time.Second
)

// ErrEmptyMessage rejects a submit before it reaches the wire.
var ErrEmptyMessage = fmt.Errorf("message has no content")

/*
Client speaks the A2A protocol against a single agent endpoint. RPC methods
go through the retry policy; the agent card lives on a plain GET and is
fetched outside of it. A Client also tracks the task sessions opened
through it so conversational context survives between messages.
*/
type Client struct {
	baseURL   string
	rpc       *jsonrpc.RPCClient
	web       *http.Client
	retryCfg  retry.Config
	timeout   time.Duration
	reconnect bool

	mu       sync.Mutex
	sessions map[string]*TaskSession
	closed   bool
}

type ClientOption func(*Client)

// WithRetry replaces the default retry policy.
func WithRetry(cfg retry.Config) ClientOption {
	return func(client *Client) {
		client.retryCfg = cfg
	}
}

// WithTimeout bounds each RPC attempt. Retries get a fresh budget.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(client *Client) {
		if timeout > 0 {
			client.timeout = timeout
		}
	}
}

/*
WithReconnect controls whether pooled connections are dropped between retry
attempts. Enabled by default, since a stale keep-alive connection is the
most common reason a retry against a healthy server fails the same way.
*/
func WithReconnect(reconnect bool) ClientOption {
	return func(client *Client) {
		client.reconnect = reconnect
	}
}

// WithSigner adds credentials to every outbound RPC request.
func WithSigner(signer jsonrpc.Signer) ClientOption {
	return func(client *Client) {
		client.rpc.Auth = signer
	}
}

/*
NewClient creates a new A2A client for the agent at baseURL.
*/
func NewClient(baseURL string, opts ...ClientOption) *Client {
	client := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		web:       &http.Client{},
		retryCfg:  retry.DefaultConfig(),
		timeout:   defaultTimeout,
		reconnect: true,
		sessions:  make(map[string]*TaskSession),
	}

	client.rpc = jsonrpc.NewRPCClient(client.baseURL + "/rpc")

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// URL returns the endpoint this client was built against.
func (client *Client) URL() string {
	return client.baseURL
}

/*
SubmitTask sends a task message to the agent. The returned task is in state
submitted, or further along if the server completed it synchronously.
*/
func (client *Client) SubmitTask(ctx context.Context, params TaskSendParams) (*Task, error) {
	if params.Message.Empty() {
		return nil, ErrEmptyMessage
	}

	var task Task

	if err := client.call(ctx, "tasks/send", params, &task); err != nil {
		return nil, err
	}

	return &task, nil
}

/*
GetTask retrieves the current status and artifacts of a task. Returns
*errors.NotFoundError when the server no longer recognizes the task ID.
*/
func (client *Client) GetTask(ctx context.Context, params TaskQueryParams) (*Task, error) {
	var task Task

	if err := client.call(ctx, "tasks/get", params, &task); err != nil {
		if errors.IsNotFound(err) {
			return nil, &errors.NotFoundError{TaskID: params.ID}
		}

		return nil, err
	}

	return &task, nil
}

/*
HealthCheck probes the agent by fetching its card. Connectivity failures
come back as false, never as an error, so callers can probe freely.
*/
func (client *Client) HealthCheck(ctx context.Context) bool {
	if _, err := client.Card(ctx); err != nil {
		log.Debug("agent health check failed", "url", client.baseURL, "error", err)
		return false
	}

	return true
}

/*
Card fetches the agent card from the well-known discovery path.
*/
func (client *Client) Card(ctx context.Context) (*AgentCard, error) {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, client.baseURL+"/.well-known/agent.json", nil,
	)

	if err != nil {
		return nil, err
	}

	resp, err := client.web.Do(req)

	if err != nil {
		return nil, &errors.TransportError{Op: "agent card", Err: err}
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &errors.ProtocolError{
			Reason: fmt.Sprintf("unexpected status %s fetching agent card", resp.Status),
		}
	}

	var card AgentCard

	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		return nil, &errors.ProtocolError{Reason: "malformed agent card", Err: err}
	}

	return &card, nil
}

/*
Session returns the task session with the given ID, creating it on first
use. Sessions returned here share the client's connection and retry policy.
*/
func (client *Client) Session(id string) *TaskSession {
	client.mu.Lock()
	defer client.mu.Unlock()

	if session, ok := client.sessions[id]; ok {
		return session
	}

	session := NewTaskSession(client, id)
	client.sessions[session.ID()] = session

	return session
}

/*
Close releases held transport resources. Idempotent; calls made after
Close fail without touching the network.
*/
func (client *Client) Close() error {
	client.mu.Lock()
	defer client.mu.Unlock()

	if client.closed {
		return nil
	}

	client.closed = true
	client.rpc.Reset()
	client.web.CloseIdleConnections()

	return nil
}

func (client *Client) isClosed() bool {
	client.mu.Lock()
	defer client.mu.Unlock()

	return client.closed
}

/*
call runs one RPC method through the retry policy. Only transport failures
are retried; when configured, the connection pool is flushed before each
new attempt so a retry never reuses the connection that just failed.
*/
func (client *Client) call(ctx context.Context, method string, params any, result any) error {
	if client.isClosed() {
		return fmt.Errorf("client is closed")
	}

	maxAttempts := client.retryCfg.MaxAttempts

	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if client.reconnect {
				client.rpc.Reset()
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(client.retryCfg.Delay(attempt - 1)):
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, client.timeout)
		lastErr = client.rpc.Call(attemptCtx, method, params, result)
		cancel()

		if lastErr == nil {
			return nil
		}

		if !retry.ShouldRetry(lastErr, attempt, maxAttempts) {
			break
		}

		log.Warn(
			"retrying call",
			"method", method,
			"attempt", attempt+1,
			"max_attempts", maxAttempts,
			"error", lastErr,
		)
	}

	if transportErr, ok := errors.AsTransport(lastErr); ok {
		transportErr.Attempts = maxAttempts
	}

	return lastErr
}
