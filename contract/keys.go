package contract

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/ruteri/tee-dataroom-backend/interfaces"
)

const keysTable = "keys"

type serverKeyRefs struct {
	KlaveServerKey   interfaces.KeyName `json:"klaveServerPrivateKey"`
	StorageServerKey interfaces.KeyName `json:"storageServerPrivateKey"`
}

// Keys is the ledger-backed record of the application's two server key
// references: the klave server key (secp256k1) and the storage server key
// (P-256). The record holds key store reference names only, never key
// material. It is persisted as one JSON blob under the allRow key of the
// keys table.
type Keys struct {
	table interfaces.Table
	refs  serverKeyRefs
}

// LoadKeys reads the key record from the ledger. An absent row yields an
// empty record rather than an error.
func LoadKeys(ctx context.Context, ledger interfaces.Ledger) (*Keys, error) {
	keys := &Keys{table: ledger.Table(keysTable)}

	data, err := keys.table.Get(ctx, allRow)
	if errors.Is(err, interfaces.ErrRowNotFound) {
		return keys, nil
	} else if err != nil {
		return nil, fmt.Errorf("could not read key record: %w", err)
	}

	if err := json.Unmarshal(data, &keys.refs); err != nil {
		return nil, fmt.Errorf("corrupt key record: %w", err)
	}
	return keys, nil
}

// Save persists the key references.
func (k *Keys) Save(ctx context.Context) error {
	data, err := json.Marshal(k.refs)
	if err != nil {
		return fmt.Errorf("could not serialize key record: %w", err)
	}

	if err := k.table.Set(ctx, allRow, data); err != nil {
		return fmt.Errorf("could not persist key record: %w", err)
	}
	return nil
}

// KlaveServerKey returns the klave server key reference, empty when unset.
func (k *Keys) KlaveServerKey() interfaces.KeyName {
	return k.refs.KlaveServerKey
}

// StorageServerKey returns the storage server key reference, empty when
// unset.
func (k *Keys) StorageServerKey() interfaces.KeyName {
	return k.refs.StorageServerKey
}

// IsSet reports whether both server key references are present.
func (k *Keys) IsSet() bool {
	return k.refs.KlaveServerKey != "" && k.refs.StorageServerKey != ""
}

// GenerateKlaveServerKey creates a fresh secp256k1 key in the store and
// persists its reference. Each generation uses a new reference name, so
// material left behind by ClearKeys is never overwritten.
func (k *Keys) GenerateKlaveServerKey(ctx context.Context, store interfaces.KeyStore) error {
	name := interfaces.KeyName("klave-server-" + uuid.NewString())
	if err := store.Generate(ctx, name, interfaces.AlgorithmSecp256k1); err != nil {
		return fmt.Errorf("could not generate klave server key: %w", err)
	}

	k.refs.KlaveServerKey = name
	return k.Save(ctx)
}

// GenerateStorageServerKey creates a fresh P-256 key in the store and
// persists its reference.
func (k *Keys) GenerateStorageServerKey(ctx context.Context, store interfaces.KeyStore) error {
	name := interfaces.KeyName("storage-server-" + uuid.NewString())
	if err := store.Generate(ctx, name, interfaces.AlgorithmECDSAP256); err != nil {
		return fmt.Errorf("could not generate storage server key: %w", err)
	}

	k.refs.StorageServerKey = name
	return k.Save(ctx)
}

// ExportStorageServerPrivateKey returns the storage server private key as
// text: base64 for the raw and pkcs8 formats, PEM armor as-is for pem. The
// failure modes stay distinct so callers can tell a missing reference from
// a missing store entry, an unsupported encoding, or material that does not
// decode to text.
func (k *Keys) ExportStorageServerPrivateKey(ctx context.Context, store interfaces.KeyStore, format interfaces.ExportFormat) (ExportedKey, error) {
	if k.refs.StorageServerKey == "" {
		return ExportedKey{}, ErrNoStorageKey
	}
	if !store.Exists(ctx, k.refs.StorageServerKey) {
		return ExportedKey{}, fmt.Errorf("storage server key %s: %w", k.refs.StorageServerKey, interfaces.ErrKeyNotFound)
	}

	material, err := store.Export(ctx, k.refs.StorageServerKey, format)
	if err != nil {
		return ExportedKey{}, fmt.Errorf("could not export storage server key: %w", err)
	}

	text, err := encodeKeyText(format, material)
	if err != nil {
		return ExportedKey{}, fmt.Errorf("could not encode storage server key: %w", err)
	}

	return ExportedKey{Format: format, Key: text}, nil
}

// ClearKeys forgets both server key references and persists the empty
// record. The underlying key material is NOT destroyed: the store keeps it
// under the now-forgotten names, so anything that obtained the material
// before the clear retains it. Callers that need actual revocation must
// destroy the store entries as well.
func (k *Keys) ClearKeys(ctx context.Context) error {
	k.refs = serverKeyRefs{}
	return k.Save(ctx)
}

// PublicKeys returns the PEM-encoded public halves of both server keys.
func (k *Keys) PublicKeys(ctx context.Context, store interfaces.KeyStore) (PublicKeysResult, error) {
	klavePub, err := store.PublicKey(ctx, k.refs.KlaveServerKey)
	if err != nil {
		return PublicKeysResult{}, fmt.Errorf("could not resolve klave server public key: %w", err)
	}

	storagePub, err := store.PublicKey(ctx, k.refs.StorageServerKey)
	if err != nil {
		return PublicKeysResult{}, fmt.Errorf("could not resolve storage server public key: %w", err)
	}

	return PublicKeysResult{
		KlaveServerPublicKey:   klavePub.String(),
		StorageServerPublicKey: storagePub.String(),
	}, nil
}

func encodeKeyText(format interfaces.ExportFormat, material []byte) (string, error) {
	if format == interfaces.FormatPEM {
		if !utf8.Valid(material) {
			return "", errors.New("pem material is not valid text")
		}
		return string(material), nil
	}
	return base64.StdEncoding.EncodeToString(material), nil
}
