package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"go.uber.org/atomic"

	"github.com/ruteri/tee-dataroom-backend/contract"
	"github.com/ruteri/tee-dataroom-backend/interfaces"
)

// Loopback is an in-process connection driving a contract runtime directly,
// with no wire in between. It serves tests and the CLI's local mode.
//
// Transactions are serialized: the contract sees one writer at a time, the
// same guarantee the gateway gives remote callers.
type Loopback struct {
	app       *contract.App
	collector *contract.Collector
	identity  interfaces.UserID
	log       *slog.Logger

	execMu sync.Mutex
	closed *atomic.Bool
}

// NewLoopback creates a connection around a fresh contract runtime on the
// given ledger and key store. All transactions run as identity.
func NewLoopback(ledger interfaces.Ledger, store interfaces.KeyStore, identity interfaces.UserID, log *slog.Logger) *Loopback {
	collector := contract.NewCollector()
	return &Loopback{
		app:       contract.NewApp(ledger, store, collector, log),
		collector: collector,
		identity:  identity,
		log:       log,
		closed:    atomic.NewBool(false),
	}
}

// WaitReady reports readiness immediately; an in-process runtime has no
// bootstrap to wait for.
func (c *Loopback) WaitReady(ctx context.Context) error {
	if c.closed.Load() {
		return interfaces.ErrConnClosed
	}
	return nil
}

// Connected reports whether the connection is open.
func (c *Loopback) Connected() bool {
	return !c.closed.Load()
}

// NewTx prepares a transaction. The application identifier is validated but
// otherwise ignored; a loopback runtime hosts exactly one application.
func (c *Loopback) NewTx(app interfaces.AppID, op interfaces.Operation, requestID interfaces.RequestID, payload any) (interfaces.Tx, error) {
	if c.closed.Load() {
		return nil, interfaces.ErrConnClosed
	}
	if err := app.Validate(); err != nil {
		return nil, err
	}
	if err := op.Validate(); err != nil {
		return nil, err
	}
	if err := requestID.Validate(); err != nil {
		return nil, err
	}

	body, err := marshalPayload(payload)
	if err != nil {
		return nil, err
	}

	return &loopbackTx{conn: c, op: op, requestID: requestID, body: body}, nil
}

// Close shuts the connection down. The underlying runtime state is owned by
// the ledger and survives.
func (c *Loopback) Close() error {
	c.closed.Store(true)
	return nil
}

type loopbackTx struct {
	conn      *Loopback
	op        interfaces.Operation
	requestID interfaces.RequestID
	body      json.RawMessage

	onResult func(json.RawMessage)
	onError  func(error)
}

// OnResult registers the result payload callback.
func (tx *loopbackTx) OnResult(cb func(json.RawMessage)) {
	tx.onResult = cb
}

// OnError registers the remote failure callback.
func (tx *loopbackTx) OnError(cb func(error)) {
	tx.onError = cb
}

// Send runs the transaction against the contract. Remote outcomes are
// delivered through the callbacks before Send returns; a transaction
// without an error callback reports remote failures from Send instead.
func (tx *loopbackTx) Send(ctx context.Context) error {
	if tx.conn.closed.Load() {
		return interfaces.ErrConnClosed
	}

	tx.conn.execMu.Lock()
	err := tx.conn.app.Execute(ctx, tx.conn.identity, tx.op, tx.requestID, tx.body)
	payloads := tx.conn.collector.Take(tx.requestID)
	tx.conn.execMu.Unlock()

	if err == nil && len(payloads) == 0 {
		err = interfaces.ErrNoResult
	}
	if err != nil {
		if tx.onError == nil {
			return err
		}
		tx.onError(err)
		return nil
	}

	for _, payload := range payloads {
		if tx.onResult != nil {
			tx.onResult(payload)
		}
	}
	return nil
}

func marshalPayload(payload any) (json.RawMessage, error) {
	if payload == nil {
		return nil, nil
	}
	if raw, ok := payload.(json.RawMessage); ok {
		return raw, nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("could not serialize transaction payload: %w", err)
	}
	return body, nil
}
