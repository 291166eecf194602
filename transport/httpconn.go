package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/ruteri/tee-dataroom-backend/api"
	"github.com/ruteri/tee-dataroom-backend/attestation"
	"github.com/ruteri/tee-dataroom-backend/interfaces"
)

// bootstrapTimeout bounds the connection handshake: health probe plus
// attestation fetch and verification.
const bootstrapTimeout = 15 * time.Second

// HTTPConnConfig configures a gateway connection.
type HTTPConnConfig struct {
	// ServerAddr is the gateway base URL, e.g. http://127.0.0.1:8080.
	ServerAddr string

	// App is the application the connection targets. The gateway's
	// attestation evidence is verified against it during bootstrap.
	App interfaces.AppID

	// Identity is the user identity transactions run as.
	Identity interfaces.UserID

	// Client overrides the HTTP client when set.
	Client *http.Client
}

// HTTPConn is a connection to a contract runtime behind the development
// gateway. Construction starts the bootstrap handshake in the background;
// WaitReady blocks until it settles.
type HTTPConn struct {
	cfg    HTTPConnConfig
	client *http.Client
	log    *slog.Logger

	connected *atomic.Bool
	closed    *atomic.Bool

	cancelBootstrap context.CancelFunc
	bootstrapErr    error
	done            chan struct{}
	closeCh         chan struct{}
	closeOnce       sync.Once
}

// NewHTTPConn creates a connection and starts its bootstrap handshake. The
// returned connection is not usable until WaitReady reports nil.
func NewHTTPConn(cfg HTTPConnConfig, log *slog.Logger) (*HTTPConn, error) {
	if cfg.ServerAddr == "" {
		return nil, fmt.Errorf("empty gateway address")
	}
	if err := cfg.App.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Identity.Validate(); err != nil {
		return nil, err
	}

	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}

	ctx, cancel := context.WithTimeout(context.Background(), bootstrapTimeout)
	conn := &HTTPConn{
		cfg:             cfg,
		client:          client,
		log:             log,
		connected:       atomic.NewBool(false),
		closed:          atomic.NewBool(false),
		cancelBootstrap: cancel,
		done:            make(chan struct{}),
		closeCh:         make(chan struct{}),
	}
	go conn.bootstrap(ctx)
	return conn, nil
}

// bootstrap probes gateway health, fetches its attestation evidence and
// verifies it against the configured application. The outcome is published
// by closing done; bootstrapErr is written first.
func (c *HTTPConn) bootstrap(ctx context.Context) {
	defer c.cancelBootstrap()
	defer close(c.done)

	if err := c.probeHealth(ctx); err != nil {
		c.bootstrapErr = fmt.Errorf("gateway health probe failed: %w", err)
		return
	}

	doc, err := c.fetchAttestation(ctx)
	if err != nil {
		c.bootstrapErr = fmt.Errorf("could not fetch gateway attestation: %w", err)
		return
	}

	measurements, err := attestation.Verify(doc, c.cfg.App)
	if err != nil {
		c.bootstrapErr = fmt.Errorf("gateway attestation rejected: %w", err)
		return
	}

	c.log.Debug("Connection bootstrap complete",
		slog.String("app", c.cfg.App.String()),
		slog.String("attestationType", doc.Type.String()),
		slog.Int("measurements", len(measurements)))
	c.connected.Store(true)
}

func (c *HTTPConn) probeHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.ServerAddr+"/livez", nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway returned %d", resp.StatusCode)
	}
	return nil
}

func (c *HTTPConn) fetchAttestation(ctx context.Context) (attestation.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.ServerAddr+"/api/v0/attestation", nil)
	if err != nil {
		return attestation.Document{}, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return attestation.Document{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return attestation.Document{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return attestation.Document{}, fmt.Errorf("gateway returned %d: %s", resp.StatusCode, string(body))
	}

	var doc attestation.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return attestation.Document{}, fmt.Errorf("could not parse attestation document: %w", err)
	}
	return doc, nil
}

// WaitReady blocks until the bootstrap handshake settles, the connection is
// closed, or ctx is done.
func (c *HTTPConn) WaitReady(ctx context.Context) error {
	select {
	case <-c.done:
		if c.closed.Load() {
			return interfaces.ErrConnClosed
		}
		if c.bootstrapErr != nil {
			return c.bootstrapErr
		}
		return nil
	case <-c.closeCh:
		return interfaces.ErrConnClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Connected reports whether the bootstrap handshake has completed and the
// connection is open.
func (c *HTTPConn) Connected() bool {
	return c.connected.Load()
}

// NewTx prepares a transaction invoking op, tagged with requestID. The
// application must be the one the connection was bootstrapped for.
func (c *HTTPConn) NewTx(app interfaces.AppID, op interfaces.Operation, requestID interfaces.RequestID, payload any) (interfaces.Tx, error) {
	if c.closed.Load() {
		return nil, interfaces.ErrConnClosed
	}
	if app != c.cfg.App {
		return nil, fmt.Errorf("connection serves application %s, not %s", c.cfg.App, app)
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

	return &httpTx{conn: c, op: op, requestID: requestID, body: body}, nil
}

// Close tears the connection down and aborts an in-flight bootstrap.
func (c *HTTPConn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.connected.Store(false)
		c.cancelBootstrap()
		close(c.closeCh)
	})
	return nil
}

type httpTx struct {
	conn      *HTTPConn
	op        interfaces.Operation
	requestID interfaces.RequestID
	body      json.RawMessage

	onResult func(json.RawMessage)
	onError  func(error)
}

// OnResult registers the result payload callback.
func (tx *httpTx) OnResult(cb func(json.RawMessage)) {
	tx.onResult = cb
}

// OnError registers the remote failure callback.
func (tx *httpTx) OnError(cb func(error)) {
	tx.onError = cb
}

// Send submits the transaction to the gateway. Remote outcomes are
// delivered through the callbacks before Send returns; a transaction
// without an error callback reports remote failures from Send instead.
// Transport failures reaching the gateway are returned directly.
func (tx *httpTx) Send(ctx context.Context) error {
	if tx.conn.closed.Load() {
		return interfaces.ErrConnClosed
	}
	if !tx.conn.connected.Load() {
		return interfaces.ErrNotConnected
	}

	url := fmt.Sprintf("%s/api/v0/tx/%s", tx.conn.cfg.ServerAddr, tx.op)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(tx.body))
	if err != nil {
		return fmt.Errorf("could not initialize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(api.AppHeader, tx.conn.cfg.App.String())
	req.Header.Set(api.SenderHeader, tx.conn.cfg.Identity.String())
	req.Header.Set(api.RequestIDHeader, tx.requestID.String())

	resp, err := tx.conn.client.Do(req)
	if err != nil {
		return fmt.Errorf("could not reach gateway: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("could not read gateway response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return tx.deliverError(&interfaces.RemoteError{
			Op:      tx.op,
			Message: strings.TrimSpace(string(body)),
		})
	}

	var txResp api.TxResponse
	if err := json.Unmarshal(body, &txResp); err != nil {
		return fmt.Errorf("could not parse gateway response: %w", err)
	}
	if len(txResp.Results) == 0 {
		return tx.deliverError(interfaces.ErrNoResult)
	}

	for _, payload := range txResp.Results {
		if tx.onResult != nil {
			tx.onResult(payload)
		}
	}
	return nil
}

func (tx *httpTx) deliverError(err error) error {
	if tx.onError == nil {
		return err
	}
	tx.onError(err)
	return nil
}
