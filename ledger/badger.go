package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/ruteri/tee-dataroom-backend/interfaces"
)

// BadgerLedger implements a ledger backend on an embedded Badger database.
// Rows from all tables share one keyspace, prefixed with the table name.
type BadgerLedger struct {
	db          *badger.DB
	dir         string
	log         *slog.Logger
	locationURI string
}

// NewBadgerLedger opens (or creates) a Badger database in the specified
// directory. The returned ledger must be closed to release the directory
// lock.
func NewBadgerLedger(dir string, log *slog.Logger) (*BadgerLedger, error) {
	opts := badger.DefaultOptions(dir)
	// Badger's own logger writes unstructured lines; keep it quiet
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	return &BadgerLedger{
		db:          db,
		dir:         dir,
		log:         log,
		locationURI: fmt.Sprintf("badger://%s", dir),
	}, nil
}

// Close releases the database and its directory lock.
func (l *BadgerLedger) Close() error {
	return l.db.Close()
}

// Table returns the named table.
func (l *BadgerLedger) Table(name string) interfaces.Table {
	return &badgerTable{
		db:     l.db,
		prefix: []byte(name + "/"),
		log:    l.log,
	}
}

// Available reports whether the database is open.
func (l *BadgerLedger) Available(ctx context.Context) bool {
	return !l.db.IsClosed()
}

// Name returns a unique identifier for this ledger backend.
func (l *BadgerLedger) Name() string {
	return fmt.Sprintf("badger-%s", filepath.Base(l.dir))
}

// LocationURI returns the URI that identifies this ledger backend.
func (l *BadgerLedger) LocationURI() string {
	return l.locationURI
}

type badgerTable struct {
	db     *badger.DB
	prefix []byte
	log    *slog.Logger
}

func (t *badgerTable) rowKey(key string) []byte {
	return append(append([]byte{}, t.prefix...), key...)
}

func (t *badgerTable) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := t.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(t.rowKey(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, interfaces.ErrRowNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read row: %w", err)
	}
	return value, nil
}

func (t *badgerTable) Set(ctx context.Context, key string, value []byte) error {
	err := t.db.Update(func(txn *badger.Txn) error {
		return txn.Set(t.rowKey(key), value)
	})
	if err != nil {
		return fmt.Errorf("failed to write row: %w", err)
	}

	t.log.Debug("Stored row in badger",
		slog.String("key", string(t.rowKey(key))),
		slog.Int("size", len(value)))

	return nil
}

func (t *badgerTable) Delete(ctx context.Context, key string) error {
	err := t.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(t.rowKey(key))
	})
	if err != nil {
		return fmt.Errorf("failed to delete row: %w", err)
	}
	return nil
}

func (t *badgerTable) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := t.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(t.prefix); it.ValidForPrefix(t.prefix); it.Next() {
			keys = append(keys, string(it.Item().Key()[len(t.prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list rows: %w", err)
	}
	return keys, nil
}
