package contract

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ruteri/tee-dataroom-backend/interfaces"
)

// Collector buffers notification payloads per request id so a caller can
// collect everything an invocation emitted once it returns. The gateway and
// the loopback transport drain it after each transaction.
type Collector struct {
	mu       sync.Mutex
	payloads map[interfaces.RequestID][]json.RawMessage
}

// NewCollector creates an empty notification collector.
func NewCollector() *Collector {
	return &Collector{
		payloads: make(map[interfaces.RequestID][]json.RawMessage),
	}
}

// Notify serializes payload and appends it to the request's buffer.
func (c *Collector) Notify(requestID interfaces.RequestID, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("could not serialize notification payload: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.payloads[requestID] = append(c.payloads[requestID], data)
	return nil
}

// Take returns the buffered payloads for a request and clears them. A
// request with no emissions returns nil.
func (c *Collector) Take(requestID interfaces.RequestID) []json.RawMessage {
	c.mu.Lock()
	defer c.mu.Unlock()

	payloads := c.payloads[requestID]
	delete(c.payloads, requestID)
	return payloads
}

// LogNotifier writes notification payloads to a structured logger. Used by
// the CLI and development setups where no caller collects results.
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier creates a notifier backed by the given logger.
func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

// Notify logs the payload tagged with its request id.
func (n *LogNotifier) Notify(requestID interfaces.RequestID, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("could not serialize notification payload: %w", err)
	}

	n.log.Info("Notification", slog.String("requestId", requestID.String()), slog.String("payload", string(data)))
	return nil
}
