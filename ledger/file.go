package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	"github.com/ruteri/tee-dataroom-backend/interfaces"
)

// FileLedger implements a ledger backend using the local file system.
// Each table is a directory under the base directory; each row is a file
// named after the URL-escaped row key.
type FileLedger struct {
	baseDir     string
	log         *slog.Logger
	locationURI string
}

// NewFileLedger creates a new file ledger backend using the specified base
// directory, creating it if needed.
func NewFileLedger(baseDir string, log *slog.Logger) (*FileLedger, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &FileLedger{
		baseDir:     baseDir,
		log:         log,
		locationURI: fmt.Sprintf("file://%s", baseDir),
	}, nil
}

// Table returns the named table. The table directory is created on the
// first write.
func (l *FileLedger) Table(name string) interfaces.Table {
	return &fileTable{
		dir: filepath.Join(l.baseDir, url.PathEscape(name)),
		log: l.log,
	}
}

// Available checks if the file backend is accessible by verifying the base
// directory exists.
func (l *FileLedger) Available(ctx context.Context) bool {
	_, err := os.Stat(l.baseDir)
	if err != nil {
		l.log.Debug("File ledger unavailable", "err", err)
		return false
	}
	return true
}

// Name returns a unique identifier for this ledger backend.
func (l *FileLedger) Name() string {
	return fmt.Sprintf("file-%s", filepath.Base(l.baseDir))
}

// LocationURI returns the URI that identifies this ledger backend.
func (l *FileLedger) LocationURI() string {
	return l.locationURI
}

type fileTable struct {
	dir string
	log *slog.Logger
}

func (t *fileTable) rowPath(key string) string {
	return filepath.Join(t.dir, url.PathEscape(key))
}

func (t *fileTable) Get(ctx context.Context, key string) ([]byte, error) {
	rowPath := t.rowPath(key)

	data, err := os.ReadFile(rowPath)
	if os.IsNotExist(err) {
		return nil, interfaces.ErrRowNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read row: %w", err)
	}

	t.log.Debug("Fetched row from file",
		slog.String("path", rowPath),
		slog.Int("size", len(data)))

	return data, nil
}

func (t *fileTable) Set(ctx context.Context, key string, value []byte) error {
	if err := os.MkdirAll(t.dir, 0755); err != nil {
		return fmt.Errorf("failed to create table directory: %w", err)
	}

	rowPath := t.rowPath(key)
	if err := os.WriteFile(rowPath, value, 0644); err != nil {
		return fmt.Errorf("failed to write row: %w", err)
	}

	t.log.Debug("Stored row in file",
		slog.String("path", rowPath),
		slog.Int("size", len(value)))

	return nil
}

func (t *fileTable) Delete(ctx context.Context, key string) error {
	err := os.Remove(t.rowPath(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete row: %w", err)
	}
	return nil
}

func (t *fileTable) Keys(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(t.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list table directory: %w", err)
	}

	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		key, err := url.PathUnescape(entry.Name())
		if err != nil {
			// Not a row file we wrote
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}
