package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/theapemachine/a2a-bridge/pkg/errors"
)

/*
Signer adds credentials to an outbound request before it is sent. The auth
package provides implementations for static tokens and minted JWTs.
*/
type Signer interface {
	Sign(req *http.Request) error
}

/*
RPCClient posts JSON-RPC 2.0 requests to a single endpoint and maps every
failure onto the transport/protocol/server error kinds in pkg/errors, so
callers can decide what is worth retrying without inspecting strings.
*/
type RPCClient struct {
	URL    string
	Client *http.Client
	Auth   Signer

	nextID atomic.Int64
}

func NewRPCClient(url string) *RPCClient {
	return &RPCClient{
		URL:    url,
		Client: &http.Client{},
	}
}

/*
Call performs a single request/response round trip. The error it returns is
a *errors.TransportError when the request never produced a usable HTTP
response (dial failures, timeouts, 5xx), a *errors.ProtocolError when the
response could not be understood, and whatever errors.FromRpc maps a
well-formed error object to otherwise.
*/
func (c *RPCClient) Call(
	ctx context.Context,
	method string,
	params any,
	result any,
) error {
	if c.Client == nil {
		c.Client = http.DefaultClient
	}

	payload := RPCRequest{
		JSONRPC: "2.0",
		ID:      mustMarshalID(c.nextID.Add(1)),
		Method:  method,
	}

	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshal params: %w", err)
		}
		payload.Params = b
	}

	body, err := json.Marshal(payload)

	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))

	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	if c.Auth != nil {
		if err := c.Auth.Sign(httpReq); err != nil {
			return fmt.Errorf("authentication failed: %w", err)
		}
	}

	resp, err := c.Client.Do(httpReq)

	if err != nil {
		return &errors.TransportError{Op: method, Err: err}
	}

	defer resp.Body.Close()

	// A 5xx means the server never processed the call, so the request is
	// safe to repeat. Anything else outside 2xx is the server talking a
	// dialect we do not understand.
	if resp.StatusCode >= http.StatusInternalServerError {
		return &errors.TransportError{
			Op:  method,
			Err: fmt.Errorf("server returned %s", resp.Status),
		}
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return &errors.ProtocolError{Reason: "unauthorized: invalid or expired token"}
	case http.StatusForbidden:
		return &errors.ProtocolError{Reason: "forbidden: insufficient permissions"}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &errors.ProtocolError{
			Reason: fmt.Sprintf("unexpected status %s", resp.Status),
		}
	}

	var rpcResp struct {
		JSONRPC string           `json:"jsonrpc"`
		ID      json.RawMessage  `json:"id"`
		Result  json.RawMessage  `json:"result"`
		Error   *errors.RpcError `json:"error"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return &errors.ProtocolError{Reason: "malformed response body", Err: err}
	}

	if rpcResp.JSONRPC != "2.0" {
		return &errors.ProtocolError{
			Reason: fmt.Sprintf("unexpected jsonrpc version %q", rpcResp.JSONRPC),
		}
	}

	if rpcResp.Error != nil {
		return errors.FromRpc(rpcResp.Error)
	}

	if result != nil {
		if len(rpcResp.Result) == 0 || bytes.Equal(rpcResp.Result, []byte("null")) {
			return &errors.ProtocolError{Reason: "response carries neither result nor error"}
		}

		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return &errors.ProtocolError{Reason: "malformed result payload", Err: err}
		}
	}

	return nil
}

/*
Reset drops pooled keep-alive connections so the next call dials fresh.
Used between retry attempts to recover from half-dead connections.
*/
func (c *RPCClient) Reset() {
	if c.Client != nil {
		c.Client.CloseIdleConnections()
	}
}

func mustMarshalID(v int64) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}
