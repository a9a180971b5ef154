/*
Package jsonrpc implements the JSON-RPC 2.0 envelope the A2A protocol rides
on. The wire types are shared between the outbound client and the agent
endpoint in pkg/service.
*/
package jsonrpc

import (
	"encoding/json"

	"github.com/theapemachine/a2a-bridge/pkg/errors"
)

type RPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"` // accepts string | number | null
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type RPCResponse struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      json.RawMessage  `json:"id,omitempty"`
	Result  any              `json:"result,omitempty"`
	Error   *errors.RpcError `json:"error,omitempty"`
}

/*
NewResponse wraps a handler result in a response envelope that echoes the
request ID.
*/
func NewResponse(id json.RawMessage, result any) RPCResponse {
	return RPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	}
}

/*
NewErrorResponse wraps an RPC error in a response envelope. A nil error is
promoted to internal error so the mandatory code and message are always set.
*/
func NewErrorResponse(id json.RawMessage, e *errors.RpcError) RPCResponse {
	if e == nil {
		e = errors.ErrInternal
	}

	return RPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   e,
	}
}
