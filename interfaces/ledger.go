package interfaces

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

// StoreLocation represents a parsed backend URI for ledger or file storage.
type StoreLocation struct {
	Raw    string     // Original URI
	Scheme string     // Protocol
	Host   string     // Hostname
	Path   string     // Resource path
	Query  url.Values // Query parameters
	Auth   string     // Authentication info
}

// NewStoreLocation creates a new store location from a URI string with
// validation.
func NewStoreLocation(uri string) (StoreLocation, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return StoreLocation{}, fmt.Errorf("invalid URI format: %w", err)
	}

	// Validate scheme is supported
	scheme := parsed.Scheme
	switch scheme {
	case "memory", "file", "badger", "vault", "s3", "ipfs":
		// Valid scheme
	default:
		return StoreLocation{}, fmt.Errorf("unsupported store scheme: %s", scheme)
	}

	// Parse authentication info if present
	var auth string
	if parsed.User != nil {
		auth = parsed.User.String()
	}

	return StoreLocation{
		Raw:    uri,
		Scheme: scheme,
		Host:   parsed.Host,
		Path:   parsed.Path,
		Query:  parsed.Query(),
		Auth:   auth,
	}, nil
}

// String returns the original URI string.
func (loc StoreLocation) String() string {
	return loc.Raw
}

// IsMemory checks if this is an in-memory store location.
func (loc StoreLocation) IsMemory() bool {
	return loc.Scheme == "memory"
}

// IsFile checks if this is a file system store location.
func (loc StoreLocation) IsFile() bool {
	return loc.Scheme == "file"
}

// IsBadger checks if this is an embedded Badger store location.
func (loc StoreLocation) IsBadger() bool {
	return loc.Scheme == "badger"
}

// IsVault checks if this is a Vault store location.
func (loc StoreLocation) IsVault() bool {
	return loc.Scheme == "vault"
}

// IsS3 checks if this is an S3 store location.
func (loc StoreLocation) IsS3() bool {
	return loc.Scheme == "s3"
}

// IsIPFS checks if this is an IPFS store location.
func (loc StoreLocation) IsIPFS() bool {
	return loc.Scheme == "ipfs"
}

// GetParam returns a query parameter value.
func (loc StoreLocation) GetParam(name string) string {
	return loc.Query.Get(name)
}

// GetParamBool returns a boolean query parameter value.
func (loc StoreLocation) GetParamBool(name string) bool {
	value := loc.Query.Get(name)
	return value == "true" || value == "1" || value == "yes"
}

var (
	// ErrRowNotFound is returned when a requested row does not exist in a
	// ledger table.
	ErrRowNotFound = errors.New("ledger row not found")

	// ErrBackendUnavailable is returned when a storage backend is not
	// accessible. This could be due to network issues, authentication
	// failures, or service outages.
	ErrBackendUnavailable = errors.New("storage backend unavailable")

	// ErrInvalidLocationURI is returned when a store location URI is
	// malformed or unsupported. URIs must follow the format:
	// [scheme]://[auth@]host[:port][/path][?params]
	ErrInvalidLocationURI = errors.New("invalid store location URI")
)

// Table is a row-addressed view of one named ledger table.
type Table interface {
	// Get returns the value stored under key, or ErrRowNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, overwriting any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes the row. Deleting an absent row is not an error.
	Delete(ctx context.Context, key string) error

	// Keys lists the row keys present in the table.
	Keys(ctx context.Context) ([]string, error)
}

// Ledger provides named key/value tables backed by a persistence layer.
// The contract relies on the backing runtime for transactional consistency;
// the development backends serialize writers at the gateway instead.
type Ledger interface {
	// Table returns the named table, creating it on first use.
	Table(name string) Table

	// Available checks if the backing store is accessible.
	Available(ctx context.Context) bool

	// Name returns identifier for logging.
	Name() string

	// LocationURI returns URI identifying this ledger backend.
	LocationURI() string
}

// LedgerFactory creates ledger backends.
type LedgerFactory interface {
	// LedgerFor creates a backend from a URI.
	// Supports memory://, file://, badger://, vault://, s3://
	LedgerFor(location StoreLocation) (Ledger, error)

	// CreateMirrorLedger creates an aggregated ledger that writes to all
	// and reads from the first available backend.
	CreateMirrorLedger(locations []StoreLocation) (Ledger, error)
}
