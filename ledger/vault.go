package ledger

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"

	"github.com/ruteri/tee-dataroom-backend/interfaces"
)

// VaultLedger implements a ledger backend using HashiCorp Vault's KV v2
// secret engine. Row values are base64-wrapped so binary values survive
// Vault's JSON encoding.
type VaultLedger struct {
	client      *api.Client
	mountPath   string
	dataPath    string
	log         *slog.Logger
	locationURI string
}

// NewVaultLedger creates a new Vault ledger backend.
//
// Parameters:
//   - address: Vault server address (e.g. https://vault.example.com:8200)
//   - mountPath: KV v2 mount path (e.g. "secret")
//   - dataPath: Path within the mount (e.g. "dataroom")
//   - token: Vault token; when empty the VAULT_TOKEN environment variable
//     applies
//   - log: Structured logger for operational insights
func NewVaultLedger(address, mountPath, dataPath, token string, log *slog.Logger) (*VaultLedger, error) {
	config := api.DefaultConfig()
	config.Address = address

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if token != "" {
		client.SetToken(token)
	}

	mountPath = strings.TrimSuffix(mountPath, "/")
	dataPath = strings.Trim(dataPath, "/")

	return &VaultLedger{
		client:      client,
		mountPath:   mountPath,
		dataPath:    dataPath,
		log:         log,
		locationURI: fmt.Sprintf("vault://%s/%s/%s", address, mountPath, dataPath),
	}, nil
}

// Table returns the named table.
func (l *VaultLedger) Table(name string) interfaces.Table {
	return &vaultTable{backend: l, table: name}
}

// Available checks if the Vault backend is accessible. It uses the health
// endpoint to verify that Vault is initialized and unsealed.
func (l *VaultLedger) Available(ctx context.Context) bool {
	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	health, err := l.client.Sys().HealthWithContext(healthCtx)
	if err != nil {
		l.log.Debug("Vault health check failed", "err", err)
		return false
	}

	if !health.Initialized || health.Sealed {
		l.log.Debug("Vault is not available",
			slog.Bool("initialized", health.Initialized),
			slog.Bool("sealed", health.Sealed))
		return false
	}

	return true
}

// Name returns a unique identifier for this ledger backend.
func (l *VaultLedger) Name() string {
	return fmt.Sprintf("vault-%s-%s", l.mountPath, l.dataPath)
}

// LocationURI returns the URI that identifies this ledger backend.
func (l *VaultLedger) LocationURI() string {
	return l.locationURI
}

type vaultTable struct {
	backend *VaultLedger
	table   string
}

// dataPathFor returns the KV v2 data path for a row.
func (t *vaultTable) dataPathFor(key string) string {
	return fmt.Sprintf("%s/data/%s/%s/%s", t.backend.mountPath, t.backend.dataPath, t.table, key)
}

// metadataPath returns the KV v2 metadata path for the table listing.
func (t *vaultTable) metadataPath() string {
	return fmt.Sprintf("%s/metadata/%s/%s", t.backend.mountPath, t.backend.dataPath, t.table)
}

func (t *vaultTable) Get(ctx context.Context, key string) ([]byte, error) {
	path := t.dataPathFor(key)

	secret, err := t.backend.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		t.backend.log.Error("Failed to read from Vault",
			slog.String("path", path),
			"err", err)
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}

	if secret == nil || secret.Data == nil {
		return nil, interfaces.ErrRowNotFound
	}

	// KV v2 wraps the stored fields in a "data" map
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid data format in Vault response")
	}
	content, ok := data["content"].(string)
	if !ok {
		return nil, fmt.Errorf("content key not found in Vault data")
	}

	value, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return nil, fmt.Errorf("invalid content encoding in Vault data: %w", err)
	}
	return value, nil
}

func (t *vaultTable) Set(ctx context.Context, key string, value []byte) error {
	path := t.dataPathFor(key)

	secretData := map[string]interface{}{
		"data": map[string]interface{}{
			"content": base64.StdEncoding.EncodeToString(value),
		},
	}

	_, err := t.backend.client.Logical().WriteWithContext(ctx, path, secretData)
	if err != nil {
		t.backend.log.Error("Failed to write to Vault",
			slog.String("path", path),
			"err", err)
		return fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}

	t.backend.log.Debug("Stored row in Vault", slog.String("path", path))
	return nil
}

func (t *vaultTable) Delete(ctx context.Context, key string) error {
	metaPath := fmt.Sprintf("%s/metadata/%s/%s/%s", t.backend.mountPath, t.backend.dataPath, t.table, key)

	// Deleting metadata removes all row versions
	_, err := t.backend.client.Logical().DeleteWithContext(ctx, metaPath)
	if err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}
	return nil
}

func (t *vaultTable) Keys(ctx context.Context) ([]string, error) {
	secret, err := t.backend.client.Logical().ListWithContext(ctx, t.metadataPath())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, nil
	}

	listing, ok := secret.Data["keys"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid listing format in Vault response")
	}

	keys := make([]string, 0, len(listing))
	for _, entry := range listing {
		key, ok := entry.(string)
		if !ok {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}
