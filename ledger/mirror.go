package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ruteri/tee-dataroom-backend/interfaces"
)

// MirrorLedger aggregates multiple ledger backends. Writes go to every
// available backend; reads return the first hit. It provides redundancy,
// not consistency: a backend that misses writes while unavailable serves
// stale rows until overwritten.
type MirrorLedger struct {
	ledgers []interfaces.Ledger
	log     *slog.Logger
}

// NewMirrorLedger creates a new mirror over the given backends.
func NewMirrorLedger(ledgers []interfaces.Ledger, logger *slog.Logger) *MirrorLedger {
	if logger == nil {
		logger = slog.Default()
	}

	return &MirrorLedger{
		ledgers: ledgers,
		log:     logger,
	}
}

// Table returns the named table mirrored across all backends.
func (m *MirrorLedger) Table(name string) interfaces.Table {
	tables := make([]mirroredTable, 0, len(m.ledgers))
	for _, ledger := range m.ledgers {
		tables = append(tables, mirroredTable{
			parent: ledger,
			table:  ledger.Table(name),
		})
	}
	return &mirrorTable{name: name, tables: tables, log: m.log}
}

// Available checks if any backend is available.
func (m *MirrorLedger) Available(ctx context.Context) bool {
	for _, ledger := range m.ledgers {
		if ledger.Available(ctx) {
			return true
		}
	}
	return false
}

// Name returns the name of this backend.
func (m *MirrorLedger) Name() string {
	return "mirror"
}

// LocationURI returns the combined URI of all mirrored backends.
func (m *MirrorLedger) LocationURI() string {
	var locations []string
	for _, ledger := range m.ledgers {
		locations = append(locations, ledger.LocationURI())
	}
	return "mirror:[" + strings.Join(locations, ",") + "]"
}

// Close closes every mirrored backend that holds resources.
func (m *MirrorLedger) Close() error {
	var errs []error
	for _, ledger := range m.ledgers {
		if closer, ok := ledger.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", ledger.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}

type mirroredTable struct {
	parent interfaces.Ledger
	table  interfaces.Table
}

type mirrorTable struct {
	name   string
	tables []mirroredTable
	log    *slog.Logger
}

// Get returns the row from the first available backend that has it.
func (t *mirrorTable) Get(ctx context.Context, key string) ([]byte, error) {
	var errs []error

	for _, mirrored := range t.tables {
		if !mirrored.parent.Available(ctx) {
			t.log.Debug("Backend unavailable",
				slog.String("backend_name", mirrored.parent.Name()),
				slog.String("table", t.name))
			continue
		}

		value, err := mirrored.table.Get(ctx, key)
		if err == nil {
			return value, nil
		}
		if errors.Is(err, interfaces.ErrRowNotFound) {
			continue
		}

		errs = append(errs, fmt.Errorf("%s: %w", mirrored.parent.Name(), err))
		t.log.Debug("Failed to read from backend",
			slog.String("backend_name", mirrored.parent.Name()),
			slog.String("table", t.name),
			"err", err)
	}

	if len(errs) == 0 {
		return nil, interfaces.ErrRowNotFound
	}
	return nil, fmt.Errorf("all backends failed to read %s/%s: %v", t.name, key, errs)
}

// Set writes the row to all available backends. It succeeds when at least
// one backend accepted the write.
func (t *mirrorTable) Set(ctx context.Context, key string, value []byte) error {
	var success bool
	var errs []error

	for _, mirrored := range t.tables {
		if !mirrored.parent.Available(ctx) {
			t.log.Debug("Backend unavailable", slog.String("backend_name", mirrored.parent.Name()))
			continue
		}

		if err := mirrored.table.Set(ctx, key, value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", mirrored.parent.Name(), err))
			t.log.Debug("Failed to write to backend",
				slog.String("backend_name", mirrored.parent.Name()),
				slog.String("table", t.name),
				"err", err)
			continue
		}
		success = true
	}

	if !success {
		t.log.Error("All backends failed to store row",
			slog.String("table", t.name),
			slog.Int("failed_backends", len(errs)))
		return fmt.Errorf("all backends failed to store %s/%s: %v", t.name, key, errs)
	}
	return nil
}

// Delete removes the row from every available backend. A failure on any
// reachable backend is reported so divergence does not go unnoticed.
func (t *mirrorTable) Delete(ctx context.Context, key string) error {
	var errs []error

	for _, mirrored := range t.tables {
		if !mirrored.parent.Available(ctx) {
			continue
		}
		if err := mirrored.table.Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", mirrored.parent.Name(), err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("failed to delete %s/%s: %v", t.name, key, errs)
	}
	return nil
}

// Keys returns the union of row keys across all available backends.
func (t *mirrorTable) Keys(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var keys []string
	var errs []error
	var reachable bool

	for _, mirrored := range t.tables {
		if !mirrored.parent.Available(ctx) {
			continue
		}
		reachable = true

		backendKeys, err := mirrored.table.Keys(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", mirrored.parent.Name(), err))
			continue
		}
		for _, key := range backendKeys {
			if !seen[key] {
				seen[key] = true
				keys = append(keys, key)
			}
		}
	}

	if !reachable {
		return nil, interfaces.ErrBackendUnavailable
	}
	if len(keys) == 0 && len(errs) > 0 {
		return nil, fmt.Errorf("all backends failed to list %s: %v", t.name, errs)
	}
	return keys, nil
}
