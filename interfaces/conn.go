package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned when a transaction is attempted before
	// the connection is ready.
	ErrNotConnected = errors.New("connection not established")

	// ErrConnClosed is returned from operations on a closed connection.
	ErrConnClosed = errors.New("connection closed")

	// ErrNoResult is delivered through the error callback when a
	// transaction completes without pushing any result payload.
	ErrNoResult = errors.New("transaction completed without a result")
)

// RemoteError is a failure reported by the contract runtime for a
// transaction, as opposed to a transport failure reaching it.
type RemoteError struct {
	// Op is the operation that failed.
	Op Operation

	// Message is the failure description reported by the runtime.
	Message string
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error in %s: %s", e.Op, e.Message)
}

// Tx is a single named transaction prepared on a connection. Callbacks must
// be registered before Send; transports may invoke them during Send or
// after, and may invoke OnResult more than once when the operation pushes
// several results.
type Tx interface {
	// OnResult registers the callback invoked with result payloads pushed
	// for this transaction.
	OnResult(func(json.RawMessage))

	// OnError registers the callback invoked when the transaction fails
	// remotely.
	OnError(func(error))

	// Send submits the transaction. It returns an error only when
	// submission itself fails; remote outcomes are delivered through the
	// registered callbacks.
	Send(ctx context.Context) error
}

// Conn is an established session with a contract runtime.
type Conn interface {
	// WaitReady blocks until the connection is ready, the connection
	// bootstrap fails, or ctx is done. Readiness is event-driven; callers
	// are woken on state changes rather than polling.
	WaitReady(ctx context.Context) error

	// Connected reports whether the connection is currently established.
	Connected() bool

	// NewTx prepares a transaction invoking op on app, tagged with
	// requestID.
	NewTx(app AppID, op Operation, requestID RequestID, payload any) (Tx, error)

	// Close tears the connection down. In-flight transactions fail with
	// ErrConnClosed.
	Close() error
}
