package filestore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ruteri/tee-dataroom-backend/interfaces"
)

// FileBackend stores room file content on the local file system, one file
// per digest under the base directory.
type FileBackend struct {
	baseDir string
	log     *slog.Logger
}

// NewFileBackend creates a file store rooted at the specified base
// directory, creating it if needed.
func NewFileBackend(baseDir string, log *slog.Logger) (*FileBackend, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &FileBackend{
		baseDir: baseDir,
		log:     log,
	}, nil
}

// Put saves data under its digest and returns the digest. Storing the same
// content twice is harmless.
func (b *FileBackend) Put(ctx context.Context, data []byte) (interfaces.FileDigest, error) {
	digest := interfaces.ComputeFileDigest(data)
	filePath := b.pathFor(digest)

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return digest, fmt.Errorf("failed to write file: %w", err)
	}

	b.log.Debug("Stored content in file store",
		slog.String("path", filePath),
		slog.Int("size", len(data)))

	return digest, nil
}

// Get retrieves the content stored under digest. The bytes are re-hashed
// on the way out, so on-disk corruption surfaces as an error instead of
// wrong content.
func (b *FileBackend) Get(ctx context.Context, digest interfaces.FileDigest) ([]byte, error) {
	filePath := b.pathFor(digest)

	data, err := os.ReadFile(filePath)
	if os.IsNotExist(err) {
		return nil, interfaces.ErrFileNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	if !interfaces.ComputeFileDigest(data).Equal(digest) {
		return nil, fmt.Errorf("content under %s does not match its digest", digest)
	}

	b.log.Debug("Fetched content from file store",
		slog.String("path", filePath),
		slog.Int("size", len(data)))

	return data, nil
}

// Available checks if the base directory is accessible.
func (b *FileBackend) Available(ctx context.Context) bool {
	info, err := os.Stat(b.baseDir)
	return err == nil && info.IsDir()
}

// Name returns a unique identifier for this store.
func (b *FileBackend) Name() string {
	return fmt.Sprintf("file-%s", filepath.Base(b.baseDir))
}

func (b *FileBackend) pathFor(digest interfaces.FileDigest) string {
	return filepath.Join(b.baseDir, digest.String())
}
