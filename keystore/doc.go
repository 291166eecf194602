// Package keystore implements the named-key cryptographic subsystem.
//
// Key material is addressed by key-store references: opaque names handed
// out to callers in place of the material itself. The package implements
// the interfaces.KeyStore interface:
//
//	// KeyStore is the named-key cryptographic subsystem.
//	type KeyStore interface {
//	    // Generate creates a new extractable key pair under name.
//	    Generate(ctx context.Context, name KeyName, algorithm KeyAlgorithm) error
//
//	    // Import stores externally supplied key material under name.
//	    Import(ctx context.Context, name KeyName, material KeyMaterial) error
//
//	    // Sign signs the SHA-256 digest of data with the named key.
//	    Sign(ctx context.Context, name KeyName, data []byte) ([]byte, error)
//
//	    // ... Exists, PublicKey, Export, Verify, Destroy
//	}
//
// Supported algorithms are ECDSA over NIST P-256 and over secp256k1.
// Private material round-trips through three encodings: the bare 32-byte
// scalar, PKCS #8 DER, and PEM-armored PKCS #8. secp256k1 keys are limited
// to the raw scalar encoding because crypto/x509 does not know the curve.
//
// # In-Memory Store
//
// The Store keeps key slots in memory behind a read-write mutex. Keys
// created through Generate are extractable and unrestricted; imported keys
// carry the extractability flag and usage list supplied with the material,
// and every operation is checked against them.
//
// # Sealing At Rest
//
// With a ledger attached, every slot mutation is mirrored into a ledger
// table. Slots are sealed with ECIES to a P-256 key derived from the
// store's master key, so the backing ledger only ever sees ciphertext.
// Load restores the sealed slots after a restart:
//
//	store, err := keystore.NewKeyStore(masterKey)
//	if err != nil {
//	    log.Fatalf("Failed to create key store: %v", err)
//	}
//	store = store.WithLedger(ledger, logger)
//	if err := store.Load(ctx); err != nil {
//	    log.Fatalf("Failed to restore key store: %v", err)
//	}
//
// # Deterministic Derivation
//
// Derive creates a key slot deterministically from the master key and the
// slot name using Argon2id. The same master key and name always produce
// the same key, which gives development setups stable identities without
// persistence. Generate, by contrast, always draws fresh randomness, so
// identity rotation produces genuinely new keys.
package keystore
