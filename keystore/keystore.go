package keystore

import (
	"context"
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/crypto/argon2"

	"github.com/ruteri/tee-dataroom-backend/cryptoutils"
	"github.com/ruteri/tee-dataroom-backend/interfaces"
)

// entriesTable is the ledger table holding sealed key slots.
const entriesTable = "keystore"

// entry is one in-memory key slot.
type entry struct {
	algorithm   interfaces.KeyAlgorithm
	key         *ecdsa.PrivateKey
	extractable bool
	usages      []interfaces.KeyUsage
}

// allows reports whether the slot permits the usage. An empty usage list
// means unrestricted.
func (e *entry) allows(usage interfaces.KeyUsage) bool {
	if len(e.usages) == 0 {
		return true
	}
	for _, u := range e.usages {
		if u == usage {
			return true
		}
	}
	return false
}

// storedEntry is the at-rest form of a key slot, sealed before it reaches
// the ledger.
type storedEntry struct {
	Algorithm   string   `json:"algorithm"`
	Key         []byte   `json:"key"`
	Extractable bool     `json:"extractable"`
	Usages      []string `json:"usages,omitempty"`
}

// Store is an in-memory key store with optional sealed persistence.
// It derives its sealing key deterministically from a master key, suitable
// for development and single-instance deployments.
type Store struct {
	masterKey []byte
	mu        sync.RWMutex
	entries   map[interfaces.KeyName]*entry

	sealPub  interfaces.PublicKeyPEM
	sealPriv interfaces.PrivateKeyPEM

	ledger interfaces.Ledger
	log    *slog.Logger
}

// NewKeyStore creates a new instance with the provided master key.
// The master key must be at least 32 bytes long.
func NewKeyStore(masterKey []byte) (*Store, error) {
	if len(masterKey) < 32 {
		return nil, errors.New("master key must be at least 32 bytes")
	}

	s := &Store{
		masterKey: make([]byte, len(masterKey)),
		entries:   make(map[interfaces.KeyName]*entry),
	}
	copy(s.masterKey, masterKey)

	sealKey, err := deriveP256Key(s.masterKey, "seal")
	if err != nil {
		return nil, fmt.Errorf("failed to derive sealing key: %w", err)
	}
	s.sealPriv, err = cryptoutils.EncodePrivateKeyPEM(sealKey)
	if err != nil {
		return nil, err
	}
	s.sealPub, err = cryptoutils.PublicKeyToPEM(&sealKey.PublicKey)
	if err != nil {
		return nil, err
	}

	return s, nil
}

// WithLedger creates a new Store that mirrors every key slot into the
// given ledger, sealed. Call Load to restore previously persisted slots.
func (s *Store) WithLedger(ledger interfaces.Ledger, log *slog.Logger) *Store {
	ns := s.clone()
	ns.ledger = ledger
	ns.log = log
	return ns
}

func (s *Store) clone() *Store {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ns := &Store{
		masterKey: make([]byte, len(s.masterKey)),
		entries:   make(map[interfaces.KeyName]*entry, len(s.entries)),
		sealPub:   s.sealPub,
		sealPriv:  s.sealPriv,
		ledger:    s.ledger,
		log:       s.log,
	}
	copy(ns.masterKey, s.masterKey)
	for name, e := range s.entries {
		ns.entries[name] = e
	}
	return ns
}

// Load restores sealed key slots from the ledger. Slots already present in
// memory are overwritten.
func (s *Store) Load(ctx context.Context) error {
	if s.ledger == nil {
		return nil
	}

	table := s.ledger.Table(entriesTable)
	names, err := table.Keys(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sealed key slots: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range names {
		sealed, err := table.Get(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to read sealed key slot %s: %w", name, err)
		}

		e, err := s.unseal(sealed)
		if err != nil {
			return fmt.Errorf("failed to unseal key slot %s: %w", name, err)
		}
		s.entries[interfaces.KeyName(name)] = e
	}

	s.log.Debug("Restored sealed key slots", slog.Int("count", len(names)))
	return nil
}

// Generate creates a new extractable key pair under name.
func (s *Store) Generate(ctx context.Context, name interfaces.KeyName, algorithm interfaces.KeyAlgorithm) error {
	if err := algorithm.Validate(); err != nil {
		return err
	}

	var key *ecdsa.PrivateKey
	var err error
	switch algorithm {
	case interfaces.AlgorithmSecp256k1:
		key, err = cryptoutils.GenerateSecp256k1Key()
	default:
		key, err = cryptoutils.GenerateP256Key()
	}
	if err != nil {
		return fmt.Errorf("failed to generate %s key: %w", algorithm, err)
	}

	return s.put(ctx, name, &entry{algorithm: algorithm, key: key, extractable: true})
}

// Derive creates a new extractable key pair under name, derived
// deterministically from the master key and name. The same master key and
// name always produce the same key.
func (s *Store) Derive(ctx context.Context, name interfaces.KeyName, algorithm interfaces.KeyAlgorithm) error {
	if err := algorithm.Validate(); err != nil {
		return err
	}

	var key *ecdsa.PrivateKey
	var err error
	switch algorithm {
	case interfaces.AlgorithmSecp256k1:
		key, err = deriveSecp256k1Key(s.masterKey, "key-"+name.String())
	default:
		key, err = deriveP256Key(s.masterKey, "key-"+name.String())
	}
	if err != nil {
		return fmt.Errorf("failed to derive %s key: %w", algorithm, err)
	}

	return s.put(ctx, name, &entry{algorithm: algorithm, key: key, extractable: true})
}

// Import stores externally supplied key material under name.
func (s *Store) Import(ctx context.Context, name interfaces.KeyName, material interfaces.KeyMaterial) error {
	key, algorithm, err := parseMaterial(material)
	if err != nil {
		return err
	}

	return s.put(ctx, name, &entry{
		algorithm:   algorithm,
		key:         key,
		extractable: material.Extractable,
		usages:      material.Usages,
	})
}

// Exists reports whether key material is stored under name.
func (s *Store) Exists(ctx context.Context, name interfaces.KeyName) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[name]
	return ok
}

// PublicKey returns the PEM-encoded public key for name.
func (s *Store) PublicKey(ctx context.Context, name interfaces.KeyName) (interfaces.PublicKeyPEM, error) {
	e, err := s.get(name)
	if err != nil {
		return nil, err
	}
	return cryptoutils.PublicKeyToPEM(&e.key.PublicKey)
}

// Export returns the private key material for name in the given format.
// Keys imported as non-extractable return ErrKeyNotExtractable. secp256k1
// keys cannot be exported as PKCS #8 or PEM.
func (s *Store) Export(ctx context.Context, name interfaces.KeyName, format interfaces.ExportFormat) ([]byte, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}

	e, err := s.get(name)
	if err != nil {
		return nil, err
	}
	if !e.extractable {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrKeyNotExtractable, name)
	}

	switch format {
	case interfaces.FormatPKCS8:
		der, err := cryptoutils.MarshalPKCS8PrivateKey(e.key)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", interfaces.ErrUnsupportedFormat, err)
		}
		return der, nil
	case interfaces.FormatPEM:
		pem, err := cryptoutils.EncodePrivateKeyPEM(e.key)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", interfaces.ErrUnsupportedFormat, err)
		}
		return []byte(pem), nil
	default:
		return cryptoutils.PrivateKeyRaw(e.key), nil
	}
}

// Sign signs the SHA-256 digest of data with the named key. P-256 keys
// produce ASN.1 DER signatures, secp256k1 keys the 65-byte recoverable
// form.
func (s *Store) Sign(ctx context.Context, name interfaces.KeyName, data []byte) ([]byte, error) {
	e, err := s.get(name)
	if err != nil {
		return nil, err
	}
	if !e.allows(interfaces.UsageSign) {
		return nil, fmt.Errorf("%w: %s cannot sign", interfaces.ErrKeyUsageNotAllowed, name)
	}

	digest := sha256.Sum256(data)
	return cryptoutils.SignDigest(e.key, digest[:])
}

// Verify checks signature over data against the named key. The returned
// error reports lookup failures; signature validity is the boolean.
func (s *Store) Verify(ctx context.Context, name interfaces.KeyName, data, signature []byte) (bool, error) {
	e, err := s.get(name)
	if err != nil {
		return false, err
	}
	if !e.allows(interfaces.UsageVerify) {
		return false, fmt.Errorf("%w: %s cannot verify", interfaces.ErrKeyUsageNotAllowed, name)
	}

	digest := sha256.Sum256(data)
	return cryptoutils.VerifyDigest(&e.key.PublicKey, digest[:], signature), nil
}

// Destroy removes the key material under name.
func (s *Store) Destroy(ctx context.Context, name interfaces.KeyName) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[name]; !ok {
		return fmt.Errorf("%w: %s", interfaces.ErrKeyNotFound, name)
	}
	delete(s.entries, name)

	if s.ledger != nil {
		if err := s.ledger.Table(entriesTable).Delete(ctx, name.String()); err != nil {
			return fmt.Errorf("failed to remove sealed key slot %s: %w", name, err)
		}
		s.log.Debug("Removed key slot", slog.String("name", name.String()))
	}
	return nil
}

// get returns the slot under name or ErrKeyNotFound.
func (s *Store) get(name interfaces.KeyName) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrKeyNotFound, name)
	}
	return e, nil
}

// put installs a slot under name, refusing to overwrite, and mirrors it to
// the ledger when one is attached.
func (s *Store) put(ctx context.Context, name interfaces.KeyName, e *entry) error {
	if err := name.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[name]; ok {
		return fmt.Errorf("%w: %s", interfaces.ErrKeyExists, name)
	}

	if s.ledger != nil {
		sealed, err := s.seal(e)
		if err != nil {
			return fmt.Errorf("failed to seal key slot %s: %w", name, err)
		}
		if err := s.ledger.Table(entriesTable).Set(ctx, name.String(), sealed); err != nil {
			return fmt.Errorf("failed to persist key slot %s: %w", name, err)
		}
		s.log.Debug("Persisted sealed key slot",
			slog.String("name", name.String()),
			slog.String("algorithm", e.algorithm.String()))
	}

	s.entries[name] = e
	return nil
}

func (s *Store) seal(e *entry) ([]byte, error) {
	stored := storedEntry{
		Algorithm:   e.algorithm.String(),
		Key:         cryptoutils.PrivateKeyRaw(e.key),
		Extractable: e.extractable,
	}
	for _, u := range e.usages {
		stored.Usages = append(stored.Usages, string(u))
	}

	blob, err := json.Marshal(stored)
	if err != nil {
		return nil, err
	}
	return cryptoutils.SealToPublicKey(s.sealPub, blob)
}

func (s *Store) unseal(sealed []byte) (*entry, error) {
	blob, err := cryptoutils.OpenWithPrivateKey(s.sealPriv, sealed)
	if err != nil {
		return nil, err
	}

	var stored storedEntry
	if err := json.Unmarshal(blob, &stored); err != nil {
		return nil, fmt.Errorf("invalid key slot structure: %w", err)
	}

	algorithm, err := interfaces.NewKeyAlgorithm(stored.Algorithm)
	if err != nil {
		return nil, err
	}

	var key *ecdsa.PrivateKey
	switch algorithm {
	case interfaces.AlgorithmSecp256k1:
		key, err = cryptoutils.ParseSecp256k1PrivateKeyRaw(stored.Key)
	default:
		key, err = cryptoutils.ParseP256PrivateKeyRaw(stored.Key)
	}
	if err != nil {
		return nil, err
	}

	e := &entry{algorithm: algorithm, key: key, extractable: stored.Extractable}
	for _, u := range stored.Usages {
		e.usages = append(e.usages, interfaces.KeyUsage(u))
	}
	return e, nil
}

// parseMaterial decodes imported key material into a private key and its
// algorithm.
func parseMaterial(material interfaces.KeyMaterial) (*ecdsa.PrivateKey, interfaces.KeyAlgorithm, error) {
	format := material.Format
	if format == "" {
		format = interfaces.FormatRaw
	}
	if err := format.Validate(); err != nil {
		return nil, "", err
	}

	var key *ecdsa.PrivateKey
	var err error
	switch format {
	case interfaces.FormatRaw:
		switch material.Algorithm {
		case interfaces.AlgorithmSecp256k1:
			key, err = cryptoutils.ParseSecp256k1PrivateKeyRaw(material.Data)
		case interfaces.AlgorithmECDSAP256:
			key, err = cryptoutils.ParseP256PrivateKeyRaw(material.Data)
		default:
			return nil, "", fmt.Errorf("%w: raw key material requires an algorithm", interfaces.ErrUnsupportedAlgorithm)
		}
		if err != nil {
			return nil, "", fmt.Errorf("invalid raw key material: %w", err)
		}
		return key, material.Algorithm, nil

	case interfaces.FormatPKCS8:
		key, err = cryptoutils.ParsePKCS8PrivateKey(material.Data)
	default:
		key, err = cryptoutils.PrivateKeyPEM(material.Data).GetECDSAPrivateKey()
	}
	if err != nil {
		return nil, "", fmt.Errorf("invalid key material: %w", err)
	}

	algorithm := interfaces.AlgorithmECDSAP256
	if cryptoutils.IsSecp256k1(key.Curve) {
		algorithm = interfaces.AlgorithmSecp256k1
	}
	if material.Algorithm != "" && material.Algorithm != algorithm {
		return nil, "", fmt.Errorf("%w: material is %s, declared %s", interfaces.ErrUnsupportedAlgorithm, algorithm, material.Algorithm)
	}
	return key, algorithm, nil
}

// deriveP256Key derives a P-256 key from the master key and a label using
// Argon2id. Out-of-range candidates are rejected and re-derived with a
// bumped salt.
func deriveP256Key(masterKey []byte, label string) (*ecdsa.PrivateKey, error) {
	salt := append([]byte("DATA-ROOM-KEY-"), []byte(label)...)
	for i := 0; i < 64; i++ {
		candidate := argon2.IDKey(masterKey, append(salt, byte(i)), 1, 64*1024, 4, 32)
		key, err := cryptoutils.ParseP256PrivateKeyRaw(candidate)
		if err == nil {
			return key, nil
		}
	}
	return nil, errors.New("could not derive a valid P-256 scalar")
}

// deriveSecp256k1Key derives a secp256k1 key the same way.
func deriveSecp256k1Key(masterKey []byte, label string) (*ecdsa.PrivateKey, error) {
	salt := append([]byte("DATA-ROOM-KEY-"), []byte(label)...)
	for i := 0; i < 64; i++ {
		candidate := argon2.IDKey(masterKey, append(salt, byte(i)), 1, 64*1024, 4, 32)
		key, err := cryptoutils.ParseSecp256k1PrivateKeyRaw(candidate)
		if err == nil {
			return key, nil
		}
	}
	return nil, errors.New("could not derive a valid secp256k1 scalar")
}
