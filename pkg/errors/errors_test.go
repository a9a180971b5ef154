package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromRpcReservedCodesAreProtocolErrors(t *testing.T) {
	for _, rpcErr := range []*RpcError{ErrParseError, ErrInvalidRequest, ErrMethodNotFound, ErrInvalidParams} {
		err := FromRpc(rpcErr)
		assert.True(t, IsProtocol(err), "code %d should map to ProtocolError", rpcErr.Code)
		assert.False(t, IsServer(err))
	}
}

func TestFromRpcTaskNotFound(t *testing.T) {
	err := FromRpc(ErrTaskNotFound)

	assert.True(t, IsNotFound(err))
	assert.Equal(t, "task not found", err.Error())
}

func TestFromRpcApplicationCodesAreServerErrors(t *testing.T) {
	err := FromRpc(&RpcError{Code: -32002, Message: "Task creation failed"})

	assert.True(t, IsServer(err))

	serverErr, ok := AsServer(err)
	assert.True(t, ok)
	assert.Equal(t, -32002, serverErr.Code)
	assert.Equal(t, "Task creation failed", serverErr.Message)
}

func TestFromRpcInternalErrorIsServerError(t *testing.T) {
	// -32603 means the server itself fell over, not that the request was
	// malformed, so it belongs to the application tier.
	assert.True(t, IsServer(FromRpc(ErrInternal)))
}

func TestTransportErrorMessageIncludesAttempts(t *testing.T) {
	cause := fmt.Errorf("connection refused")

	single := &TransportError{Op: "tasks/send", Attempts: 1, Err: cause}
	assert.Equal(t, "transport failure during tasks/send: connection refused", single.Error())

	multi := &TransportError{Op: "tasks/send", Attempts: 3, Err: cause}
	assert.Contains(t, multi.Error(), "after 3 attempts")
	assert.ErrorIs(t, multi, cause)
}

func TestWrappedKindsSurviveErrorWrapping(t *testing.T) {
	err := fmt.Errorf("submit failed: %w", &TransportError{Op: "tasks/send", Err: fmt.Errorf("dial tcp: timeout")})

	assert.True(t, IsTransport(err))

	transportErr, ok := AsTransport(err)
	assert.True(t, ok)
	assert.Equal(t, "tasks/send", transportErr.Op)
}

func TestPoolErrorUnwrapsCause(t *testing.T) {
	cause := fmt.Errorf("database is locked")
	err := &PoolError{UserID: "U123", Err: cause}

	assert.True(t, IsPool(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "U123")
}

func TestNotFoundErrorWithTaskID(t *testing.T) {
	err := &NotFoundError{TaskID: "task-9"}
	assert.Equal(t, "task task-9 not found", err.Error())
}

func TestWithMessagefLeavesOriginalIntact(t *testing.T) {
	custom := ErrInternal.WithMessagef("task %s exploded", "t-1")

	assert.Equal(t, "Internal error", ErrInternal.Message)
	assert.Equal(t, "task t-1 exploded", custom.Message)
	assert.Equal(t, ErrInternal.Code, custom.Code)
}
