package ledger

import (
	"context"
	"sync"

	"github.com/ruteri/tee-dataroom-backend/interfaces"
)

// MemoryLedger keeps tables in process memory. State is lost on restart;
// it backs tests and the default development configuration.
type MemoryLedger struct {
	mu     sync.Mutex
	tables map[string]*memoryTable
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{tables: make(map[string]*memoryTable)}
}

// Table returns the named table, creating it on first use.
func (l *MemoryLedger) Table(name string) interfaces.Table {
	l.mu.Lock()
	defer l.mu.Unlock()

	table, ok := l.tables[name]
	if !ok {
		table = &memoryTable{rows: make(map[string][]byte)}
		l.tables[name] = table
	}
	return table
}

// Available always reports true.
func (l *MemoryLedger) Available(ctx context.Context) bool {
	return true
}

// Name returns a unique identifier for this ledger backend.
func (l *MemoryLedger) Name() string {
	return "memory"
}

// LocationURI returns the URI that identifies this ledger backend.
func (l *MemoryLedger) LocationURI() string {
	return "memory://"
}

type memoryTable struct {
	mu   sync.RWMutex
	rows map[string][]byte
}

func (t *memoryTable) Get(ctx context.Context, key string) ([]byte, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	value, ok := t.rows[key]
	if !ok {
		return nil, interfaces.ErrRowNotFound
	}

	// Copy so callers cannot mutate the stored row
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (t *memoryTable) Set(ctx context.Context, key string, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows[key] = stored
	return nil
}

func (t *memoryTable) Delete(ctx context.Context, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.rows, key)
	return nil
}

func (t *memoryTable) Keys(ctx context.Context) ([]string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	keys := make([]string, 0, len(t.rows))
	for key := range t.rows {
		keys = append(keys, key)
	}
	return keys, nil
}
