package filestore

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ruteri/tee-dataroom-backend/interfaces"
)

// Factory creates file stores from store locations.
type Factory struct {
	log *slog.Logger
}

// NewFileStoreFactory creates a new factory instance that can create file
// store backends.
func NewFileStoreFactory(logger *slog.Logger) *Factory {
	return &Factory{log: logger}
}

// StoreFor creates a file store from a store location.
//
// Supported schemes:
//   - file:// - Local filesystem, one file per digest
//   - ipfs:// - IPFS node, ipfs://host:port
//
// Returns an error if the scheme is not a file store scheme.
func (f *Factory) StoreFor(location interfaces.StoreLocation) (interfaces.FileStore, error) {
	switch {
	case location.IsFile():
		return f.createFileStore(location)
	case location.IsIPFS():
		return f.createIPFSStore(location)
	default:
		return nil, fmt.Errorf("unsupported file store scheme: %s", location.Scheme)
	}
}

func (f *Factory) createFileStore(location interfaces.StoreLocation) (interfaces.FileStore, error) {
	f.log.Debug("Creating file store", slog.String("uri", location.String()))

	path := location.Path
	if location.Host != "" {
		path = location.Host + "/" + strings.TrimPrefix(path, "/")
	}
	if path == "" {
		return nil, fmt.Errorf("empty path in file URI: %s", location.Raw)
	}
	return NewFileBackend(path, f.log)
}

func (f *Factory) createIPFSStore(location interfaces.StoreLocation) (interfaces.FileStore, error) {
	f.log.Debug("Creating IPFS store", slog.String("uri", location.String()))

	host := "localhost"
	port := "5001"
	if location.Host != "" {
		parts := strings.Split(location.Host, ":")
		host = parts[0]
		if len(parts) > 1 {
			port = parts[1]
		}
	}
	return NewIPFSBackend(host, port, f.log), nil
}
