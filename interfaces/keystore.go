package interfaces

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ruteri/tee-dataroom-backend/cryptoutils"
)

type PublicKeyPEM = cryptoutils.PublicKeyPEM
type PrivateKeyPEM = cryptoutils.PrivateKeyPEM

// KeyAlgorithm names a supported signature algorithm.
type KeyAlgorithm string

const (
	// AlgorithmECDSAP256 is ECDSA over NIST P-256.
	AlgorithmECDSAP256 KeyAlgorithm = "ecdsa-p256"
	// AlgorithmSecp256k1 is ECDSA over secp256k1.
	AlgorithmSecp256k1 KeyAlgorithm = "secp256k1"
)

// NewKeyAlgorithm normalizes an algorithm name. Common aliases from key
// import payloads are accepted; the empty string defaults to P-256.
func NewKeyAlgorithm(algorithm string) (KeyAlgorithm, error) {
	switch strings.ToLower(algorithm) {
	case "", "ecdsa", "p-256", "p256", "ecdsa-p256":
		return AlgorithmECDSAP256, nil
	case "secp256k1", "k-256", "k256":
		return AlgorithmSecp256k1, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, algorithm)
	}
}

// String returns the algorithm name.
func (a KeyAlgorithm) String() string {
	return string(a)
}

// Validate checks the algorithm is supported.
func (a KeyAlgorithm) Validate() error {
	switch a {
	case AlgorithmECDSAP256, AlgorithmSecp256k1:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, string(a))
	}
}

// ExportFormat names a private key wire encoding.
type ExportFormat string

const (
	// FormatRaw is the bare private scalar, big-endian.
	FormatRaw ExportFormat = "raw"
	// FormatPKCS8 is a DER-encoded PKCS #8 structure.
	FormatPKCS8 ExportFormat = "pkcs8"
	// FormatPEM is a PEM-armored PKCS #8 structure.
	FormatPEM ExportFormat = "pem"
)

// NewExportFormat normalizes a format name. The empty string defaults to
// raw.
func NewExportFormat(format string) (ExportFormat, error) {
	switch strings.ToLower(format) {
	case "", "raw":
		return FormatRaw, nil
	case "pkcs8", "pkcs#8":
		return FormatPKCS8, nil
	case "pem":
		return FormatPEM, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// String returns the format name.
func (f ExportFormat) String() string {
	return string(f)
}

// Validate checks the format is supported.
func (f ExportFormat) Validate() error {
	switch f {
	case FormatRaw, FormatPKCS8, FormatPEM:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, string(f))
	}
}

// KeyUsage restricts what an imported key may be used for.
type KeyUsage string

const (
	// UsageSign permits signing with the key.
	UsageSign KeyUsage = "sign"
	// UsageVerify permits signature verification with the key.
	UsageVerify KeyUsage = "verify"
)

// KeyMaterial is externally supplied private key material for import.
type KeyMaterial struct {
	// Format of Data: raw scalar, PKCS #8 DER, or PEM.
	Format ExportFormat

	// Data is the key bytes in the given format.
	Data []byte

	// Algorithm the key is for. Required for raw scalars; PKCS #8 carries
	// its own curve identification and is checked against this when set.
	Algorithm KeyAlgorithm

	// Extractable permits later export of the private material.
	Extractable bool

	// Usages restricts operations with the key. Empty means unrestricted.
	Usages []KeyUsage
}

var (
	// ErrKeyNotFound is returned when no key material is stored under the
	// requested key-store reference.
	ErrKeyNotFound = errors.New("key not found in key store")

	// ErrKeyExists is returned when generating or importing under a
	// reference that is already in use.
	ErrKeyExists = errors.New("key already exists in key store")

	// ErrKeyNotExtractable is returned when exporting a key that was
	// imported without the extractable flag.
	ErrKeyNotExtractable = errors.New("key is not extractable")

	// ErrKeyUsageNotAllowed is returned when an operation is outside the
	// usages the key was imported with.
	ErrKeyUsageNotAllowed = errors.New("key usage not allowed")

	// ErrUnsupportedAlgorithm is returned for algorithms the key store does
	// not implement.
	ErrUnsupportedAlgorithm = errors.New("unsupported key algorithm")

	// ErrUnsupportedFormat is returned for unknown import or export
	// formats.
	ErrUnsupportedFormat = errors.New("unsupported key format")
)

// KeyStore is the named-key cryptographic subsystem. Key material is
// addressed by key-store reference names and never leaves the store except
// through an explicit Export.
type KeyStore interface {
	// Generate creates a new extractable key pair under name.
	Generate(ctx context.Context, name KeyName, algorithm KeyAlgorithm) error

	// Import stores externally supplied key material under name.
	Import(ctx context.Context, name KeyName, material KeyMaterial) error

	// Exists reports whether key material is stored under name.
	Exists(ctx context.Context, name KeyName) bool

	// PublicKey returns the PEM-encoded public key for name.
	PublicKey(ctx context.Context, name KeyName) (PublicKeyPEM, error)

	// Export returns the private key material for name in the given
	// format.
	Export(ctx context.Context, name KeyName, format ExportFormat) ([]byte, error)

	// Sign signs the SHA-256 digest of data with the named key. The
	// signature encoding is algorithm-specific; Verify accepts whatever
	// Sign produced.
	Sign(ctx context.Context, name KeyName, data []byte) ([]byte, error)

	// Verify checks signature over data against the named key. The error
	// reports lookup failures; signature validity is the boolean.
	Verify(ctx context.Context, name KeyName, data, signature []byte) (bool, error)

	// Destroy removes the key material under name.
	Destroy(ctx context.Context, name KeyName) error
}
