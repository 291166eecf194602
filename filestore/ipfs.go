package filestore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	shell "github.com/ipfs/go-ipfs-api"
	"github.com/ruteri/tee-dataroom-backend/interfaces"
)

// IPFSBackend stores room file content in IPFS. Because IPFS addresses
// content by CID rather than by plain SHA-256, the backend keeps a
// digest-to-CID index for everything stored through it; digests stored by
// other processes are not resolvable. The file backend is the durable
// store, this one handles distribution in development setups.
type IPFSBackend struct {
	shell *shell.Shell
	host  string
	port  string
	log   *slog.Logger

	mu   sync.RWMutex
	cids map[interfaces.FileDigest]string
}

// NewIPFSBackend creates an IPFS store connected to the node at the
// specified host and port.
func NewIPFSBackend(host, port string, log *slog.Logger) *IPFSBackend {
	return &IPFSBackend{
		shell: shell.NewShell(fmt.Sprintf("%s:%s", host, port)),
		host:  host,
		port:  port,
		log:   log,
		cids:  make(map[interfaces.FileDigest]string),
	}
}

// Put adds data to IPFS and returns its digest. Returns
// ErrBackendUnavailable if the IPFS node is not accessible.
func (b *IPFSBackend) Put(ctx context.Context, data []byte) (interfaces.FileDigest, error) {
	digest := interfaces.ComputeFileDigest(data)

	if !b.shell.IsUp() {
		return digest, interfaces.ErrBackendUnavailable
	}

	cid, err := b.shell.Add(bytes.NewReader(data))
	if err != nil {
		return digest, fmt.Errorf("failed to add data to IPFS: %w", err)
	}

	b.mu.Lock()
	b.cids[digest] = cid
	b.mu.Unlock()

	b.log.Debug("Stored content in IPFS",
		slog.String("ipfsCID", cid),
		slog.String("digest", digest.String()),
		slog.Int("size", len(data)))

	return digest, nil
}

// Get retrieves content by digest. Content never stored through this
// backend reports ErrFileNotFound.
func (b *IPFSBackend) Get(ctx context.Context, digest interfaces.FileDigest) ([]byte, error) {
	b.mu.RLock()
	cid, ok := b.cids[digest]
	b.mu.RUnlock()
	if !ok {
		b.log.Debug("Digest not in IPFS index", slog.String("digest", digest.String()))
		return nil, interfaces.ErrFileNotFound
	}

	if !b.shell.IsUp() {
		b.log.Warn("IPFS node unavailable",
			slog.String("host", b.host),
			slog.String("port", b.port))
		return nil, interfaces.ErrBackendUnavailable
	}

	reader, err := b.shell.Cat(fmt.Sprintf("/ipfs/%s", cid))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch data from IPFS: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read data from IPFS: %w", err)
	}

	if !interfaces.ComputeFileDigest(data).Equal(digest) {
		return nil, fmt.Errorf("content under %s does not match its digest", digest)
	}

	b.log.Debug("Fetched content from IPFS",
		slog.String("ipfsCID", cid),
		slog.String("digest", digest.String()),
		slog.Int("size", len(data)))

	return data, nil
}

// Available checks if the IPFS node is accessible.
func (b *IPFSBackend) Available(ctx context.Context) bool {
	return b.shell.IsUp()
}

// Name returns a unique identifier for this store.
func (b *IPFSBackend) Name() string {
	return fmt.Sprintf("ipfs-%s-%s", b.host, b.port)
}
