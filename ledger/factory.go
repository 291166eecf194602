package ledger

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ruteri/tee-dataroom-backend/interfaces"
)

// Factory creates ledger backends from store locations and manages
// mirrored configurations for redundant persistence.
type Factory struct {
	log *slog.Logger
}

// NewLedgerFactory creates a new factory instance that can create ledger
// backends.
func NewLedgerFactory(logger *slog.Logger) *Factory {
	return &Factory{log: logger}
}

// LedgerFor creates a ledger backend from a store location.
//
// Supported schemes:
//   - memory:// - In-process tables, lost on restart
//   - file:// - Local filesystem tables
//   - badger:// - Embedded Badger database
//   - vault:// - HashiCorp Vault KV v2
//   - s3:// - Amazon S3 or compatible object storage
//
// Returns an error if the scheme is not a ledger scheme.
func (f *Factory) LedgerFor(location interfaces.StoreLocation) (interfaces.Ledger, error) {
	switch {
	case location.IsMemory():
		return NewMemoryLedger(), nil
	case location.IsFile():
		return f.createFileLedger(location)
	case location.IsBadger():
		return f.createBadgerLedger(location)
	case location.IsVault():
		return f.createVaultLedger(location)
	case location.IsS3():
		return f.createS3Ledger(location)
	default:
		return nil, fmt.Errorf("unsupported ledger scheme: %s", location.Scheme)
	}
}

// CreateMirrorLedger creates a mirror ledger from a list of store
// locations. Locations that fail to construct are skipped with a warning;
// at least one backend must succeed.
func (f *Factory) CreateMirrorLedger(locations []interfaces.StoreLocation) (interfaces.Ledger, error) {
	ledgers := make([]interfaces.Ledger, 0, len(locations))

	for _, location := range locations {
		backend, err := f.LedgerFor(location)
		if err != nil {
			f.log.Warn("Failed to create ledger backend",
				"err", err,
				slog.String("locationURI", location.String()))
			continue
		}
		ledgers = append(ledgers, backend)
	}

	if len(ledgers) == 0 {
		return nil, fmt.Errorf("no valid ledger backends created")
	}

	return NewMirrorLedger(ledgers, f.log), nil
}

// localPath joins the host and path parts of a file-style URI into a
// filesystem path, so both file:///abs/path and file://./relative work.
func localPath(location interfaces.StoreLocation) (string, error) {
	path := location.Path
	if location.Host != "" {
		path = location.Host + "/" + strings.TrimPrefix(path, "/")
	}
	if path == "" {
		return "", fmt.Errorf("empty path in %s URI: %s", location.Scheme, location.Raw)
	}
	return path, nil
}

func (f *Factory) createFileLedger(location interfaces.StoreLocation) (interfaces.Ledger, error) {
	f.log.Debug("Creating file ledger", slog.String("uri", location.String()))

	path, err := localPath(location)
	if err != nil {
		return nil, err
	}
	return NewFileLedger(path, f.log)
}

func (f *Factory) createBadgerLedger(location interfaces.StoreLocation) (interfaces.Ledger, error) {
	f.log.Debug("Creating badger ledger", slog.String("uri", location.String()))

	path, err := localPath(location)
	if err != nil {
		return nil, err
	}
	return NewBadgerLedger(path, f.log)
}

// createVaultLedger creates a Vault ledger backend.
// URI format: vault://[token@]host:port/mount/path?insecure=true
// The first path segment is the KV v2 mount, the rest the data path.
func (f *Factory) createVaultLedger(location interfaces.StoreLocation) (interfaces.Ledger, error) {
	f.log.Debug("Creating vault ledger", slog.String("uri", location.String()))

	scheme := "https"
	if location.GetParamBool("insecure") {
		scheme = "http"
	}
	address := fmt.Sprintf("%s://%s", scheme, location.Host)

	mountPath := "secret"
	dataPath := "dataroom"
	if trimmed := strings.Trim(location.Path, "/"); trimmed != "" {
		parts := strings.SplitN(trimmed, "/", 2)
		mountPath = parts[0]
		if len(parts) > 1 {
			dataPath = parts[1]
		}
	}

	token := location.Auth
	if token == "" {
		token = location.GetParam("token")
	}

	return NewVaultLedger(address, mountPath, dataPath, token, f.log)
}

// createS3Ledger creates an S3 ledger backend.
// URI format: s3://[ACCESS_KEY:SECRET_KEY@]bucket-name/prefix/?region=us-west-2&endpoint=custom.s3.com
func (f *Factory) createS3Ledger(location interfaces.StoreLocation) (interfaces.Ledger, error) {
	f.log.Debug("Creating S3 ledger", slog.String("uri", location.String()))

	bucketName := location.Host
	prefix := strings.TrimPrefix(location.Path, "/")

	region := location.GetParam("region")
	if region == "" {
		region = "us-east-1"
	}
	endpoint := location.GetParam("endpoint")

	var accessKey, secretKey string
	if location.Auth != "" {
		accessKey, secretKey, _ = strings.Cut(location.Auth, ":")
		if secretKey == "" {
			f.log.Debug("S3 credentials missing secret key, falling back to public access")
			accessKey = ""
		}
	} else {
		f.log.Debug("No credentials provided, S3 bucket assumed to be public, write operations may fail")
	}

	return NewS3Ledger(bucketName, prefix, region, endpoint, accessKey, secretKey, f.log)
}
