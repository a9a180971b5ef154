package errors

// Client-side error taxonomy for outbound A2A calls.  Every failure a caller
// can see falls into one of the kinds below, which is what makes the retry
// decision and the user-facing messages in the bridge straightforward: only
// TransportError is worth retrying, everything else is reported as-is.

import (
	"errors"
	"fmt"
)

/*
TransportError wraps a network-level failure: connection refused, timeout,
or an HTTP 5xx before a JSON-RPC envelope could be read.  Attempts records
how many tries were made before giving up.
*/
type TransportError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("transport failure during %s after %d attempts: %v", e.Op, e.Attempts, e.Err)
	}

	return fmt.Sprintf("transport failure during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

/*
ProtocolError indicates the response was not a well-formed JSON-RPC 2.0
envelope, or carried a reserved protocol-level error code.  It usually means
the client and server disagree about the protocol and retrying will not help.
*/
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol violation: %s: %v", e.Reason, e.Err)
	}

	return fmt.Sprintf("protocol violation: %s", e.Reason)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

/*
ServerError carries an application-level failure code reported by the remote
agent inside a well-formed response.
*/
type ServerError struct {
	Code    int
	Message string
	Data    any
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.Code, e.Message)
}

/*
NotFoundError means the server no longer recognizes the referenced task.
The task has to be resubmitted; retrying the lookup is pointless.
*/
type NotFoundError struct {
	TaskID string
}

func (e *NotFoundError) Error() string {
	if e.TaskID == "" {
		return "task not found"
	}

	return fmt.Sprintf("task %s not found", e.TaskID)
}

/*
PoolError reports an acquire failure in the client pool, typically because
the preference store could not resolve the user's endpoint.  No pooled entry
is left behind, so the next request can retry cleanly.
*/
type PoolError struct {
	UserID string
	Err    error
}

func (e *PoolError) Error() string {
	return fmt.Sprintf("pool failure for user %s: %v", e.UserID, e.Err)
}

func (e *PoolError) Unwrap() error { return e.Err }

/*
FromRpc converts a wire-level RPC error into the client taxonomy.  Reserved
JSON-RPC codes become ProtocolError, the task-not-found code becomes
NotFoundError, and everything else is an application-level ServerError.
*/
func FromRpc(rpcErr *RpcError) error {
	switch rpcErr.Code {
	case ErrParseError.Code, ErrInvalidRequest.Code, ErrMethodNotFound.Code, ErrInvalidParams.Code:
		return &ProtocolError{Reason: rpcErr.Message, Err: rpcErr}
	case ErrTaskNotFound.Code:
		return &NotFoundError{}
	default:
		return &ServerError{Code: rpcErr.Code, Message: rpcErr.Message, Data: rpcErr.Data}
	}
}

func IsTransport(err error) bool {
	var e *TransportError
	return errors.As(err, &e)
}

func IsProtocol(err error) bool {
	var e *ProtocolError
	return errors.As(err, &e)
}

func IsServer(err error) bool {
	var e *ServerError
	return errors.As(err, &e)
}

func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

func IsPool(err error) bool {
	var e *PoolError
	return errors.As(err, &e)
}

// AsTransport extracts the TransportError from a chain, if present.
func AsTransport(err error) (*TransportError, bool) {
	var e *TransportError
	ok := errors.As(err, &e)
	return e, ok
}

// AsServer extracts the ServerError from a chain, if present.
func AsServer(err error) (*ServerError, bool) {
	var e *ServerError
	ok := errors.As(err, &e)
	return e, ok
}
